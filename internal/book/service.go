package book

import (
	"errors"
	"log/slog"

	"github.com/ancestrio/family-archive/internal"
	"github.com/ancestrio/family-archive/internal/activity"
	"github.com/ancestrio/family-archive/internal/auth"
	"github.com/ancestrio/family-archive/internal/filestore"
	"github.com/ancestrio/family-archive/internal/storage"
)

// Repository is the storage contract for books. Implementations return
// ErrNotFound for absent rows.
type Repository interface {
	ListPublic() ([]Book, error)
	ListByUploader(userID int64) ([]Book, error)
	ListAll() ([]Book, error)
	GetByID(id int64) (*Book, error)
	GetByIDWithUploader(id int64) (*Book, error)
	Create(b *Book) error
	Update(b *Book) error
	Delete(id int64) error
	IncrementDownloads(id int64) error
}

// ServiceAPI is the surface consumed by the HTTP handler.
type ServiceAPI interface {
	ListPublic() ([]PublicView, error)
	GetPublic(id int64) (*PublicView, error)
	DownloadPublic(id int64) (string, error)
	ListMine(userID int64) ([]OwnerView, error)
	Get(id int64, actor *auth.User) (*OwnerView, error)
	Create(actor *auth.User, in CreateInput) (int64, error)
	Update(id int64, actor *auth.User, in UpdateInput) (int64, error)
	Download(id int64, actor *auth.User) (string, error)
	Delete(id int64, actor *auth.User) error
	ListAll() ([]AdminView, error)
	GetAdmin(id int64) (*AdminView, error)
}

type Service struct {
	repo     Repository
	files    *filestore.Store
	guard    *storage.Guard
	activity activity.Recorder
	logger   *slog.Logger
}

func NewService(repo Repository, files *filestore.Store, guard *storage.Guard, recorder activity.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = activity.Nop{}
	}
	return &Service{repo: repo, files: files, guard: guard, activity: recorder, logger: logger}
}

func (s *Service) ListPublic() ([]PublicView, error) {
	if err := s.guard.Check(); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListPublic()
	if err != nil {
		return nil, s.guard.Normalize(err)
	}
	views := make([]PublicView, 0, len(rows))
	for i := range rows {
		views = append(views, rows[i].publicView())
	}
	return views, nil
}

func (s *Service) GetPublic(id int64) (*PublicView, error) {
	b, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !b.IsPublic {
		return nil, ErrForbidden
	}
	view := b.publicView()
	return &view, nil
}

// DownloadPublic resolves the backing file for an anonymous download and
// bumps the counter. A row whose file is gone from disk reads as 404.
func (s *Service) DownloadPublic(id int64) (string, error) {
	b, err := s.load(id)
	if err != nil {
		return "", err
	}
	if !b.IsPublic {
		return "", ErrForbidden
	}
	return s.serveFile(b)
}

func (s *Service) ListMine(userID int64) ([]OwnerView, error) {
	if err := s.guard.Check(); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByUploader(userID)
	if err != nil {
		return nil, s.guard.Normalize(err)
	}
	views := make([]OwnerView, 0, len(rows))
	for i := range rows {
		views = append(views, rows[i].ownerView())
	}
	return views, nil
}

func (s *Service) Get(id int64, actor *auth.User) (*OwnerView, error) {
	b, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if err := authorize(b, actor); err != nil {
		return nil, err
	}
	view := b.ownerView()
	return &view, nil
}

func (s *Service) Create(actor *auth.User, in CreateInput) (int64, error) {
	title := cleanText(in.Title)
	if title == nil || in.File == nil {
		return 0, internal.NewValidationError("Title and file are required", internal.ErrCodeFileRequired)
	}
	if in.Cover == nil {
		return 0, internal.NewValidationError("Cover image is required", internal.ErrCodeCoverRequired)
	}
	if err := s.guard.Check(); err != nil {
		return 0, err
	}

	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	filePath, err := s.files.Save(in.File.Reader, filestore.KindBooks, visibilityOf(isPublic), in.File.Ext)
	if err != nil {
		return 0, internal.NewInternalError("Upload failed", err)
	}
	coverPath, err := s.files.Save(in.Cover.Reader, filestore.KindBooks, filestore.Public, in.Cover.Ext)
	if err != nil {
		s.files.Remove(filePath)
		return 0, internal.NewInternalError("Upload failed", err)
	}

	cover := coverPath.String()
	size := in.File.Size
	b := &Book{
		Title:         *title,
		Author:        pickNullable(in.Author, nil),
		Description:   pickNullable(in.Description, nil),
		Category:      pickNullable(in.Category, nil),
		ArchiveSource: pickNullable(in.ArchiveSource, nil),
		DocumentCode:  pickNullable(in.DocumentCode, nil),
		FilePath:      filePath.String(),
		CoverPath:     &cover,
		FileSize:      &size,
		IsPublic:      isPublic,
		UploadedBy:    actor.ID,
	}
	if err := s.repo.Create(b); err != nil {
		s.files.Remove(filePath)
		s.files.Remove(coverPath)
		return 0, s.guard.Normalize(err)
	}

	s.activity.Record(actor.ID, "books", "Uploaded book: "+b.Title)
	return b.ID, nil
}

func (s *Service) Update(id int64, actor *auth.User, in UpdateInput) (int64, error) {
	b, err := s.load(id)
	if err != nil {
		return 0, err
	}
	if err := authorize(b, actor); err != nil {
		return 0, err
	}

	title := b.Title
	if in.Title != nil {
		cleaned := cleanText(*in.Title)
		if cleaned == nil {
			return 0, internal.NewValidationError("Title is required", internal.ErrCodeTitleRequired)
		}
		title = *cleaned
	}

	isPublic := b.IsPublic
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	if in.File != nil {
		newPath, err := s.files.Save(in.File.Reader, filestore.KindBooks, visibilityOf(isPublic), in.File.Ext)
		if err != nil {
			return 0, internal.NewInternalError("Update failed", err)
		}
		if old, ok := filestore.Parse(b.FilePath); ok {
			s.files.Remove(old)
		}
		b.FilePath = newPath.String()
		size := in.File.Size
		b.FileSize = &size
	} else if p, ok := filestore.Parse(b.FilePath); ok {
		// visibility toggled without a replacement file: relocate in place
		b.FilePath = s.files.Relocate(p, visibilityOf(isPublic)).String()
	}

	if in.Cover != nil {
		newCover, err := s.files.Save(in.Cover.Reader, filestore.KindBooks, filestore.Public, in.Cover.Ext)
		if err != nil {
			return 0, internal.NewInternalError("Update failed", err)
		}
		if b.CoverPath != nil {
			if old, ok := filestore.Parse(*b.CoverPath); ok {
				s.files.Remove(old)
			}
		}
		cover := newCover.String()
		b.CoverPath = &cover
	}

	b.Title = title
	b.Author = pickNullable(in.Author, b.Author)
	b.Description = pickNullable(in.Description, b.Description)
	b.Category = pickNullable(in.Category, b.Category)
	b.ArchiveSource = pickNullable(in.ArchiveSource, b.ArchiveSource)
	b.DocumentCode = pickNullable(in.DocumentCode, b.DocumentCode)
	b.IsPublic = isPublic

	if err := s.repo.Update(b); err != nil {
		return 0, s.guard.Normalize(err)
	}

	s.activity.Record(actor.ID, "books", "Updated book: "+b.Title)
	return b.ID, nil
}

func (s *Service) Download(id int64, actor *auth.User) (string, error) {
	b, err := s.load(id)
	if err != nil {
		return "", err
	}
	if err := authorize(b, actor); err != nil {
		return "", err
	}
	return s.serveFile(b)
}

func (s *Service) Delete(id int64, actor *auth.User) error {
	b, err := s.load(id)
	if err != nil {
		return err
	}
	if err := authorize(b, actor); err != nil {
		return err
	}

	if err := s.repo.Delete(b.ID); err != nil {
		return s.guard.Normalize(err)
	}
	if p, ok := filestore.Parse(b.FilePath); ok {
		s.files.Remove(p)
	}
	if b.CoverPath != nil {
		if p, ok := filestore.Parse(*b.CoverPath); ok {
			s.files.Remove(p)
		}
	}

	s.activity.Record(actor.ID, "books", "Deleted book: "+b.Title)
	return nil
}

func (s *Service) ListAll() ([]AdminView, error) {
	if err := s.guard.Check(); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListAll()
	if err != nil {
		return nil, s.guard.Normalize(err)
	}
	views := make([]AdminView, 0, len(rows))
	for i := range rows {
		views = append(views, rows[i].adminView())
	}
	return views, nil
}

func (s *Service) GetAdmin(id int64) (*AdminView, error) {
	if err := s.guard.Check(); err != nil {
		return nil, err
	}
	b, err := s.repo.GetByIDWithUploader(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.guard.Normalize(err)
	}
	view := b.adminView()
	return &view, nil
}

func (s *Service) load(id int64) (*Book, error) {
	if err := s.guard.Check(); err != nil {
		return nil, err
	}
	b, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.guard.Normalize(err)
	}
	return b, nil
}

// serveFile resolves the stored path, verifies the file is actually on
// disk and bumps the download counter before handing back the absolute
// path for streaming.
func (s *Service) serveFile(b *Book) (string, error) {
	p, ok := filestore.Parse(b.FilePath)
	if !ok || !s.files.Exists(p) {
		return "", ErrFileNotFound
	}
	if err := s.repo.IncrementDownloads(b.ID); err != nil {
		return "", s.guard.Normalize(err)
	}
	return s.files.Resolve(p), nil
}

// authorize allows the uploader and anyone holding the manage permission.
func authorize(b *Book, actor *auth.User) error {
	if actor == nil {
		return ErrForbidden
	}
	if !actor.HasPermission(auth.PermManageBooks) && b.UploadedBy != actor.ID {
		return ErrForbidden
	}
	return nil
}

func visibilityOf(isPublic bool) filestore.Visibility {
	if isPublic {
		return filestore.Public
	}
	return filestore.Private
}
