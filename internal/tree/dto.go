package tree

import (
	"strings"

	"github.com/ancestrio/family-archive/internal/transport"
)

// CreateInput carries the parsed multipart form for a new tree. The
// GEDCOM file is optional; trees can start as metadata only.
type CreateInput struct {
	Title         string
	Description   *string
	ArchiveSource *string
	DocumentCode  *string
	IsPublic      *bool
	Gedcom        *transport.Upload
}

// UpdateInput carries a partial update: nil keeps the stored value, a
// provided blank collapses to null.
type UpdateInput struct {
	Title         *string
	Description   *string
	ArchiveSource *string
	DocumentCode  *string
	IsPublic      *bool
	Gedcom        *transport.Upload
}

func cleanText(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func pickNullable(provided *string, current *string) *string {
	if provided == nil {
		return current
	}
	return cleanText(*provided)
}
