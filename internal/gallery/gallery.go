package gallery

import (
	"time"

	"github.com/ancestrio/family-archive/internal"
)

// Item is a photograph or scanned document in the archive gallery. The
// image itself is always stored web-servable; isPublic only controls
// whether the item appears on the anonymous surface.
type Item struct {
	ID            int64
	Title         string
	Description   *string
	ImagePath     string
	IsPublic      bool
	ArchiveSource *string
	DocumentCode  *string
	Location      *string
	Year          *string
	Photographer  *string
	UploadedBy    int64
	UploaderName  string
	UploaderEmail string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	ErrNotFound  = internal.NewNotFoundError("Gallery item not found", internal.ErrCodeGalleryNotFound)
	ErrForbidden = internal.NewForbiddenError("Forbidden", internal.ErrCodeForbidden)
)

// UploaderSummary is the embedded uploader reference on public and admin
// views. Email is only populated for admins.
type UploaderSummary struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email,omitempty"`
}

type View struct {
	ID            int64            `json:"id"`
	Title         string           `json:"title"`
	Description   *string          `json:"description"`
	ImagePath     string           `json:"imagePath"`
	IsPublic      bool             `json:"isPublic"`
	ArchiveSource *string          `json:"archiveSource"`
	DocumentCode  *string          `json:"documentCode"`
	Location      *string          `json:"location"`
	Year          *string          `json:"year"`
	Photographer  *string          `json:"photographer"`
	UploadedBy    int64            `json:"uploadedBy"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	Uploader      *UploaderSummary `json:"uploader,omitempty"`
}

func (i *Item) view() View {
	return View{
		ID:            i.ID,
		Title:         i.Title,
		Description:   i.Description,
		ImagePath:     i.ImagePath,
		IsPublic:      i.IsPublic,
		ArchiveSource: i.ArchiveSource,
		DocumentCode:  i.DocumentCode,
		Location:      i.Location,
		Year:          i.Year,
		Photographer:  i.Photographer,
		UploadedBy:    i.UploadedBy,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

func (i *Item) publicView() View {
	v := i.view()
	if i.UploaderName != "" {
		v.Uploader = &UploaderSummary{ID: i.UploadedBy, FullName: i.UploaderName}
	}
	return v
}

func (i *Item) adminView() View {
	v := i.view()
	if i.UploaderName != "" || i.UploaderEmail != "" {
		v.Uploader = &UploaderSummary{ID: i.UploadedBy, FullName: i.UploaderName, Email: i.UploaderEmail}
	}
	return v
}
