package gallery

import (
	"errors"
	"log/slog"

	"github.com/ancestrio/family-archive/internal"
	"github.com/ancestrio/family-archive/internal/activity"
	"github.com/ancestrio/family-archive/internal/auth"
	"github.com/ancestrio/family-archive/internal/filestore"
	"github.com/ancestrio/family-archive/internal/storage"
)

type Repository interface {
	ListPublic() ([]Item, error)
	ListByUploader(userID int64) ([]Item, error)
	ListAll() ([]Item, error)
	GetByID(id int64) (*Item, error)
	GetByIDWithUploader(id int64) (*Item, error)
	Create(item *Item) error
	Update(item *Item) error
	Delete(id int64) error
}

type ServiceAPI interface {
	ListPublic() ([]View, error)
	GetPublic(id int64) (*View, error)
	ListMine(userID int64) ([]View, error)
	Get(id int64, actor *auth.User) (*View, error)
	Create(actor *auth.User, in CreateInput) (*View, error)
	Update(id int64, actor *auth.User, in UpdateInput) (*View, error)
	Delete(id int64, actor *auth.User) error
	ListAll() ([]View, error)
	GetAdmin(id int64) (*View, error)
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

func (s *Service) ListPublic() ([]View, error) {
	if err := s.guard.Check(); err != nil {
		return nil, err
	}
	items, err := s.repo.ListPublic()
	if err != nil {
		return nil, s.guard.Normalize(err)
	}
	views := make([]View, 0, len(items))
	for i := range items {
		views = append(views, items[i].publicView())
	}
	return views, nil
}

func (s *Service) GetPublic(id int64) (*View, error) {
	item, err := s.loadWithUploader(id)
	if err != nil {
		return nil, err
	}
	if !item.IsPublic {
		return nil, ErrForbidden
	}
	view := item.publicView()
	return &view, nil
}

func (s *Service) ListMine(userID int64) ([]View, error) {
	if err := s.guard.Check(); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByUploader(userID)
	if err != nil {
		return nil, s.guard.Normalize(err)
	}
	views := make([]View, 0, len(items))
	for i := range items {
		views = append(views, items[i].view())
	}
	return views, nil
}

func (s *Service) Get(id int64, actor *auth.User) (*View, error) {
	item, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if err := authorize(item, actor); err != nil {
		return nil, err
	}
	view := item.view()
	return &view, nil
}

func (s *Service) Create(actor *auth.User, in CreateInput) (*View, error) {
	if in.Image == nil {
		return nil, internal.NewValidationError("Image file is required", internal.ErrCodeImageRequired)
	}
	title := cleanText(in.Title)
	if title == nil {
		return nil, internal.NewValidationError("Title is required", internal.ErrCodeTitleRequired)
	}
	if err := s.guard.Check(); err != nil {
		return nil, err
	}

	imagePath, err := s.files.Save(in.Image.Reader, filestore.KindGallery, filestore.Public, in.Image.Ext)
	if err != nil {
		return nil, internal.NewInternalError("Failed to upload gallery item", err)
	}

	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	item := &Item{
		Title:         *title,
		Description:   pickNullable(in.Description, nil),
		ImagePath:     imagePath.String(),
		IsPublic:      isPublic,
		ArchiveSource: pickNullable(in.ArchiveSource, nil),
		DocumentCode:  pickNullable(in.DocumentCode, nil),
		Location:      pickNullable(in.Location, nil),
		Year:          pickNullable(in.Year, nil),
		Photographer:  pickNullable(in.Photographer, nil),
		UploadedBy:    actor.ID,
	}
	if err := s.repo.Create(item); err != nil {
		s.files.Remove(imagePath)
		return nil, s.guard.Normalize(err)
	}

	s.activity.Record(actor.ID, "gallery", "Uploaded gallery item: "+item.Title)
	view := item.view()
	return &view, nil
}

func (s *Service) Update(id int64, actor *auth.User, in UpdateInput) (*View, error) {
	item, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if err := authorize(item, actor); err != nil {
		return nil, err
	}

	title := item.Title
	if in.Title != nil {
		cleaned := cleanText(*in.Title)
		if cleaned == nil {
			return nil, internal.NewValidationError("Title is required", internal.ErrCodeTitleRequired)
		}
		title = *cleaned
	}

	if in.Image != nil {
		newImage, err := s.files.Save(in.Image.Reader, filestore.KindGallery, filestore.Public, in.Image.Ext)
		if err != nil {
			return nil, internal.NewInternalError("Failed to update gallery item", err)
		}
		if old, ok := filestore.Parse(item.ImagePath); ok {
			s.files.Remove(old)
		}
		item.ImagePath = newImage.String()
	}

	item.Title = title
	item.Description = pickNullable(in.Description, item.Description)
	item.ArchiveSource = pickNullable(in.ArchiveSource, item.ArchiveSource)
	item.DocumentCode = pickNullable(in.DocumentCode, item.DocumentCode)
	item.Location = pickNullable(in.Location, item.Location)
	item.Year = pickNullable(in.Year, item.Year)
	item.Photographer = pickNullable(in.Photographer, item.Photographer)
	if in.IsPublic != nil {
		item.IsPublic = *in.IsPublic
	}

	if err := s.repo.Update(item); err != nil {
		return nil, s.guard.Normalize(err)
	}

	s.activity.Record(actor.ID, "gallery", "Updated gallery item: "+item.Title)
	view := item.view()
	return &view, nil
}

func (s *Service) Delete(id int64, actor *auth.User) error {
	item, err := s.load(id)
	if err != nil {
		return err
	}
	if err := authorize(item, actor); err != nil {
		return err
	}

	if err := s.repo.Delete(item.ID); err != nil {
		return s.guard.Normalize(err)
	}
	if p, ok := filestore.Parse(item.ImagePath); ok {
		s.files.Remove(p)
	}

	s.activity.Record(actor.ID, "gallery", "Deleted gallery item: "+item.Title)
	return nil
}

func (s *Service) ListAll() ([]View, error) {
	if err := s.guard.Check(); err != nil {
		return nil, err
	}
	items, err := s.repo.ListAll()
	if err != nil {
		return nil, s.guard.Normalize(err)
	}
	views := make([]View, 0, len(items))
	for i := range items {
		views = append(views, items[i].adminView())
	}
	return views, nil
}

func (s *Service) GetAdmin(id int64) (*View, error) {
	item, err := s.loadWithUploader(id)
	if err != nil {
		return nil, err
	}
	view := item.adminView()
	return &view, nil
}

func (s *Service) load(id int64) (*Item, error) {
	if err := s.guard.Check(); err != nil {
		return nil, err
	}
	item, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.guard.Normalize(err)
	}
	return item, nil
}

func (s *Service) loadWithUploader(id int64) (*Item, error) {
	if err := s.guard.Check(); err != nil {
		return nil, err
	}
	item, err := s.repo.GetByIDWithUploader(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.guard.Normalize(err)
	}
	return item, nil
}

func authorize(item *Item, actor *auth.User) error {
	if actor == nil {
		return ErrForbidden
	}
	if !actor.HasPermission(auth.PermManageGallery) && item.UploadedBy != actor.ID {
		return ErrForbidden
	}
	return nil
}
