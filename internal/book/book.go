package book

import (
	"time"

	"github.com/ancestrio/family-archive/internal"
	"github.com/ancestrio/family-archive/internal/filestore"
)

// Book is the domain entity for an archived publication. FilePath and
// CoverPath hold the persisted storage convention; services convert them
// through filestore.Parse before touching disk.
type Book struct {
	ID            int64
	Title         string
	Author        *string
	Description   *string
	Category      *string
	ArchiveSource *string
	DocumentCode  *string
	FilePath      string
	CoverPath     *string
	FileSize      *int64
	DownloadCount int64
	IsPublic      bool
	UploadedBy    int64
	UploaderName  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	ErrNotFound     = internal.NewNotFoundError("Not found", internal.ErrCodeBookNotFound)
	ErrFileNotFound = internal.NewNotFoundError("File not found", internal.ErrCodeFileNotFound)
	ErrForbidden    = internal.NewForbiddenError("Forbidden", internal.ErrCodeForbidden)
	ErrInvalidID    = internal.NewValidationError("Invalid book id", internal.ErrCodeInvalidID)
)

// PublicView is the anonymous catalogue shape. fileUrl is always exposed
// here because only public rows ever reach this mapper.
type PublicView struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Author        *string   `json:"author"`
	Description   *string   `json:"description"`
	Category      *string   `json:"category"`
	ArchiveSource string    `json:"archiveSource"`
	DocumentCode  string    `json:"documentCode"`
	FileURL       string    `json:"fileUrl"`
	CoverURL      *string   `json:"coverUrl"`
	FileSize      *int64    `json:"fileSize"`
	Downloads     int64     `json:"downloads"`
	CreatedAt     time.Time `json:"createdAt"`
}

// OwnerView adds the visibility flag; fileUrl is nulled for private files
// so the web client falls back to the authenticated download route.
type OwnerView struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Author        *string   `json:"author"`
	Description   *string   `json:"description"`
	Category      *string   `json:"category"`
	ArchiveSource string    `json:"archiveSource"`
	DocumentCode  string    `json:"documentCode"`
	FileURL       *string   `json:"fileUrl"`
	CoverURL      *string   `json:"coverUrl"`
	FileSize      *int64    `json:"fileSize"`
	Downloads     int64     `json:"downloads"`
	IsPublic      bool      `json:"isPublic"`
	CreatedAt     time.Time `json:"createdAt"`
}

// AdminView is OwnerView plus the uploader's display name.
type AdminView struct {
	OwnerView
	UploadedBy string `json:"uploadedBy"`
}

func (b *Book) publicView() PublicView {
	return PublicView{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Description:   b.Description,
		Category:      b.Category,
		ArchiveSource: orEmpty(b.ArchiveSource),
		DocumentCode:  orEmpty(b.DocumentCode),
		FileURL:       b.FilePath,
		CoverURL:      b.CoverPath,
		FileSize:      b.FileSize,
		Downloads:     b.DownloadCount,
		CreatedAt:     b.CreatedAt,
	}
}

func (b *Book) ownerView() OwnerView {
	return OwnerView{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Description:   b.Description,
		Category:      b.Category,
		ArchiveSource: orEmpty(b.ArchiveSource),
		DocumentCode:  orEmpty(b.DocumentCode),
		FileURL:       publicURLOnly(b.FilePath),
		CoverURL:      b.CoverPath,
		FileSize:      b.FileSize,
		Downloads:     b.DownloadCount,
		IsPublic:      b.IsPublic,
		CreatedAt:     b.CreatedAt,
	}
}

func (b *Book) adminView() AdminView {
	view := AdminView{OwnerView: b.ownerView(), UploadedBy: b.UploaderName}
	if view.UploadedBy == "" {
		view.UploadedBy = "Unknown"
	}
	return view
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// publicURLOnly returns the stored path when it is web-servable and nil
// otherwise, so private files never leak a direct URL.
func publicURLOnly(stored string) *string {
	p, ok := filestore.Parse(stored)
	if !ok || p.Visibility != filestore.Public {
		return nil
	}
	return &stored
}
