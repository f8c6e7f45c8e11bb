package transport

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// Upload is a single received multipart file part. Callers must Close it
// once consumed.
type Upload struct {
	Reader io.Reader
	Ext    string
	Size   int64

	file multipart.File
}

func (u *Upload) Close() error {
	if u == nil || u.file == nil {
		return nil
	}
	return u.file.Close()
}

// FileFromForm opens the first file sent under the named field, or returns
// nil when the part is absent. ParseMultipartForm must have run already.
func FileFromForm(r *http.Request, field string) (*Upload, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, nil
	}
	header := r.MultipartForm.File[field][0]
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	return &Upload{
		Reader: f,
		Ext:    filepath.Ext(header.Filename),
		Size:   header.Size,
		file:   f,
	}, nil
}

// StringFromForm distinguishes an absent field (nil) from a provided one,
// which is what partial-update semantics hang on.
func StringFromForm(r *http.Request, field string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[field]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

// BoolFromForm parses a form flag. Absent or unrecognized values return
// nil so callers fall back to their default.
func BoolFromForm(r *http.Request, field string) *bool {
	raw := StringFromForm(r, field)
	if raw == nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(*raw)) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}
