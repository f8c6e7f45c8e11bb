package tree

import (
	"time"

	"github.com/ancestrio/family-archive/internal"
	"github.com/ancestrio/family-archive/internal/filestore"
)

// FamilyTree is an uploaded genealogy. GedcomPath is nullable: a tree can
// exist as metadata only. Members is the count of derived Person rows.
type FamilyTree struct {
	ID            int64
	UserID        int64
	Title         string
	Description   *string
	GedcomPath    *string
	IsPublic      bool
	ArchiveSource *string
	DocumentCode  *string
	Members       int64
	OwnerName     string
	OwnerEmail    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Person is one individual extracted from a GEDCOM file. Rows are fully
// regenerated whenever the tree's file changes.
type Person struct {
	ID     int64
	TreeID int64
	Name   string
}

var (
	ErrNotFound     = internal.NewNotFoundError("Not found", internal.ErrCodeTreeNotFound)
	ErrFileNotFound = internal.NewNotFoundError("File not found", internal.ErrCodeFileNotFound)
	ErrForbidden    = internal.NewForbiddenError("Forbidden", internal.ErrCodeForbidden)
)

// OwnerSummary identifies the tree owner on admin views.
type OwnerSummary struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type PublicView struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   *string   `json:"description"`
	ArchiveSource string    `json:"archiveSource"`
	DocumentCode  string    `json:"documentCode"`
	IsPublic      bool      `json:"isPublic"`
	Owner         string    `json:"owner"`
	HasGedcom     bool      `json:"hasGedcom"`
	GedcomURL     *string   `json:"gedcomUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type OwnerView struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   *string   `json:"description"`
	ArchiveSource string    `json:"archiveSource"`
	DocumentCode  string    `json:"documentCode"`
	HasGedcom     bool      `json:"hasGedcom"`
	GedcomURL     *string   `json:"gedcomUrl"`
	IsPublic      bool      `json:"isPublic"`
	Members       int64     `json:"members"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type AdminView struct {
	ID            int64        `json:"id"`
	Title         string       `json:"title"`
	Description   *string      `json:"description"`
	ArchiveSource string       `json:"archiveSource"`
	DocumentCode  string       `json:"documentCode"`
	IsPublic      bool         `json:"isPublic"`
	HasGedcom     bool         `json:"hasGedcom"`
	Members       int64        `json:"members"`
	Owner         OwnerSummary `json:"owner"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

func (t *FamilyTree) publicView() PublicView {
	owner := t.OwnerName
	if owner == "" {
		owner = "Unknown"
	}
	return PublicView{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		ArchiveSource: orEmpty(t.ArchiveSource),
		DocumentCode:  orEmpty(t.DocumentCode),
		IsPublic:      t.IsPublic,
		Owner:         owner,
		HasGedcom:     t.GedcomPath != nil,
		GedcomURL:     publicURLOnly(t.GedcomPath),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func (t *FamilyTree) ownerView() OwnerView {
	return OwnerView{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		ArchiveSource: orEmpty(t.ArchiveSource),
		DocumentCode:  orEmpty(t.DocumentCode),
		HasGedcom:     t.GedcomPath != nil,
		GedcomURL:     publicURLOnly(t.GedcomPath),
		IsPublic:      t.IsPublic,
		Members:       t.Members,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func (t *FamilyTree) adminView() AdminView {
	return AdminView{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		ArchiveSource: orEmpty(t.ArchiveSource),
		DocumentCode:  orEmpty(t.DocumentCode),
		IsPublic:      t.IsPublic,
		HasGedcom:     t.GedcomPath != nil,
		Members:       t.Members,
		Owner:         OwnerSummary{ID: t.UserID, FullName: t.OwnerName, Email: t.OwnerEmail},
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func publicURLOnly(stored *string) *string {
	if stored == nil {
		return nil
	}
	p, ok := filestore.Parse(*stored)
	if !ok || p.Visibility != filestore.Public {
		return nil
	}
	return stored
}
