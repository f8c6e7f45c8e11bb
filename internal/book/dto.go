package book

import (
	"strings"

	"github.com/ancestrio/family-archive/internal/transport"
)

// CreateInput carries the parsed multipart form for a new book. File and
// Cover are both mandatory on create.
type CreateInput struct {
	Title         string
	Author        *string
	Description   *string
	Category      *string
	ArchiveSource *string
	DocumentCode  *string
	IsPublic      *bool
	File          *transport.Upload
	Cover         *transport.Upload
}

// UpdateInput carries a partial update: nil means the field was omitted
// and keeps its stored value, a provided blank collapses to null.
type UpdateInput struct {
	Title         *string
	Author        *string
	Description   *string
	Category      *string
	ArchiveSource *string
	DocumentCode  *string
	IsPublic      *bool
	File          *transport.Upload
	Cover         *transport.Upload
}

// cleanText trims a provided value and collapses blanks to nil.
func cleanText(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// pickNullable keeps the stored value when the field was omitted and
// trim-and-nullifies it otherwise.
func pickNullable(provided *string, current *string) *string {
	if provided == nil {
		return current
	}
	return cleanText(*provided)
}
