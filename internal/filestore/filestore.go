package filestore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Visibility tags where a stored file lives and whether it is web-servable.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// Kinds of stored content, one subtree per resource type.
const (
	KindBooks   = "books"
	KindGallery = "gallery"
	KindTrees   = "trees"
)

const publicPrefix = "/uploads/"
const privatePrefix = "private/"

// StoredPath is the typed form of a persisted file reference. The string
// convention ("/uploads/<kind>/<name>" vs "private/<kind>/<name>") exists
// only at the database edge; everything else works with this struct.
type StoredPath struct {
	Visibility Visibility
	Kind       string
	Name       string
}

// Parse converts a persisted path string into a StoredPath. It returns
// false when the string follows neither recognized convention.
func Parse(stored string) (StoredPath, bool) {
	var rest string
	var vis Visibility

	switch {
	case strings.HasPrefix(stored, publicPrefix):
		vis = Public
		rest = strings.TrimPrefix(stored, publicPrefix)
	case strings.HasPrefix(stored, privatePrefix):
		vis = Private
		rest = strings.TrimPrefix(stored, privatePrefix)
	default:
		return StoredPath{}, false
	}

	kind, name, ok := strings.Cut(rest, "/")
	if !ok || kind == "" || name == "" || strings.Contains(name, "/") {
		return StoredPath{}, false
	}
	// stored names are generated server-side; reject anything traversal-shaped
	if name != filepath.Base(name) {
		return StoredPath{}, false
	}
	return StoredPath{Visibility: vis, Kind: kind, Name: name}, true
}

// String serializes back to the persisted convention.
func (p StoredPath) String() string {
	if p.Visibility == Private {
		return privatePrefix + p.Kind + "/" + p.Name
	}
	return publicPrefix + p.Kind + "/" + p.Name
}

func (p StoredPath) IsZero() bool {
	return p.Name == ""
}

// WithVisibility returns the same file reference under the other subtree.
func (p StoredPath) WithVisibility(vis Visibility) StoredPath {
	p.Visibility = vis
	return p
}

// Store performs all local disk operations for stored content. It is
// permission-blind: callers decide what is public.
type Store struct {
	publicRoot  string
	privateRoot string
	logger      *slog.Logger
}

func New(publicDir, privateDir string, logger *slog.Logger) *Store {
	return &Store{publicRoot: publicDir, privateRoot: privateDir, logger: logger}
}

// Resolve maps a StoredPath to its absolute on-disk location.
func (s *Store) Resolve(p StoredPath) string {
	root := s.publicRoot
	if p.Visibility == Private {
		root = s.privateRoot
	}
	return filepath.Join(root, p.Kind, p.Name)
}

// ResolveStored parses a persisted path string and resolves it. The second
// return is false for nil/empty/unrecognized stored values.
func (s *Store) ResolveStored(stored string) (string, bool) {
	p, ok := Parse(stored)
	if !ok {
		return "", false
	}
	return s.Resolve(p), true
}

// Exists reports whether the backing file is present on disk.
func (s *Store) Exists(p StoredPath) bool {
	if p.IsZero() {
		return false
	}
	_, err := os.Stat(s.Resolve(p))
	return err == nil
}

// Save writes uploaded content to the subtree matching the requested
// visibility under a generated unique name and returns its StoredPath.
func (s *Store) Save(r io.Reader, kind string, vis Visibility, ext string) (StoredPath, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	p := StoredPath{
		Visibility: vis,
		Kind:       kind,
		Name:       strings.ReplaceAll(uuid.NewString(), "-", "") + ext,
	}

	dst := s.Resolve(p)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return StoredPath{}, fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return StoredPath{}, fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(dst)
		return StoredPath{}, fmt.Errorf("write upload file: %w", err)
	}
	return p, nil
}

// Relocate moves a stored file between the public and private subtrees and
// returns the rewritten StoredPath. When the file is already under the
// requested subtree, or is missing on disk, the path is returned unchanged:
// a missing file is a data-integrity gap for download to report, not a
// reason to fail the update.
func (s *Store) Relocate(p StoredPath, vis Visibility) StoredPath {
	if p.IsZero() || p.Visibility == vis {
		return p
	}

	src := s.Resolve(p)
	if _, err := os.Stat(src); err != nil {
		return p
	}

	next := p.WithVisibility(vis)
	if err := s.move(src, s.Resolve(next)); err != nil {
		s.logger.Error("relocate failed, keeping stored path", "from", src, "error", err)
		return p
	}
	return next
}

// Remove deletes the backing file best-effort; a missing file on disk is
// not an application error.
func (s *Store) Remove(p StoredPath) {
	if p.IsZero() {
		return
	}
	if err := os.Remove(s.Resolve(p)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("file removal failed", "path", p.String(), "error", err)
	}
}

// move tolerates identical src/dst and an already-absent src, and falls
// back to copy+delete when rename crosses filesystems.
func (s *Store) move(src, dst string) error {
	if src == dst {
		return nil
	}
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
