package gallery

import (
	"strings"

	"github.com/ancestrio/family-archive/internal/transport"
)

type CreateInput struct {
	Title         string
	Description   *string
	ArchiveSource *string
	DocumentCode  *string
	Location      *string
	Year          *string
	Photographer  *string
	IsPublic      *bool
	Image         *transport.Upload
}

// UpdateInput carries a partial update: nil keeps the stored value, a
// provided blank collapses to null.
type UpdateInput struct {
	Title         *string
	Description   *string
	ArchiveSource *string
	DocumentCode  *string
	Location      *string
	Year          *string
	Photographer  *string
	IsPublic      *bool
	Image         *transport.Upload
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
