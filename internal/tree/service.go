package tree

import (
	"errors"
	"log/slog"
	"os"

	"github.com/ancestrio/family-archive/internal"
	"github.com/ancestrio/family-archive/internal/activity"
	"github.com/ancestrio/family-archive/internal/auth"
	"github.com/ancestrio/family-archive/internal/filestore"
	"github.com/ancestrio/family-archive/internal/gedcom"
	"github.com/ancestrio/family-archive/internal/storage"
)

type Repository interface {
	ListPublic() ([]FamilyTree, error)
	ListByOwner(userID int64) ([]FamilyTree, error)
	ListAll() ([]FamilyTree, error)
	GetByID(id int64) (*FamilyTree, error)
	Create(t *FamilyTree) error
	Update(t *FamilyTree) error
	// Delete removes the tree and its Person rows together.
	Delete(id int64) error
	// ReplacePeople atomically swaps the derived Person rows for a tree.
	ReplacePeople(treeID int64, names []string) error
}

type ServiceAPI interface {
	ListPublic() ([]PublicView, error)
	GetPublic(id int64) (*PublicView, error)
	DownloadPublicGedcom(id int64) (string, error)
	ListMine(userID int64) ([]OwnerView, error)
	Get(id int64, actor *auth.User) (*OwnerView, error)
	Create(actor *auth.User, in CreateInput) (int64, error)
	Update(id int64, actor *auth.User, in UpdateInput) (int64, error)
	Delete(id int64, actor *auth.User) error
	DownloadGedcom(id int64, actor *auth.User) (string, error)
	ListAll() ([]AdminView, error)
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
	t, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !t.IsPublic {
		return nil, ErrForbidden
	}
	view := t.publicView()
	return &view, nil
}

func (s *Service) DownloadPublicGedcom(id int64) (string, error) {
	t, err := s.load(id)
	if err != nil {
		return "", err
	}
	if !t.IsPublic {
		return "", ErrForbidden
	}
	return s.gedcomFile(t)
}

func (s *Service) ListMine(userID int64) ([]OwnerView, error) {
	if err := s.guard.Check(); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByOwner(userID)
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
	t, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if err := authorize(t, actor); err != nil {
		return nil, err
	}
	view := t.ownerView()
	return &view, nil
}

func (s *Service) Create(actor *auth.User, in CreateInput) (int64, error) {
	title := cleanText(in.Title)
	if title == nil {
		return 0, internal.NewValidationError("Title is required", internal.ErrCodeTitleRequired)
	}
	if err := s.guard.Check(); err != nil {
		return 0, err
	}

	// trees are private unless explicitly published
	isPublic := false
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	var gedcomPath *string
	if in.Gedcom != nil {
		saved, err := s.files.Save(in.Gedcom.Reader, filestore.KindTrees, visibilityOf(isPublic), in.Gedcom.Ext)
		if err != nil {
			return 0, internal.NewInternalError("Create tree failed", err)
		}
		stored := saved.String()
		gedcomPath = &stored
	}

	t := &FamilyTree{
		UserID:        actor.ID,
		Title:         *title,
		Description:   pickNullable(in.Description, nil),
		GedcomPath:    gedcomPath,
		IsPublic:      isPublic,
		ArchiveSource: pickNullable(in.ArchiveSource, nil),
		DocumentCode:  pickNullable(in.DocumentCode, nil),
	}
	if err := s.repo.Create(t); err != nil {
		if gedcomPath != nil {
			if p, ok := filestore.Parse(*gedcomPath); ok {
				s.files.Remove(p)
			}
		}
		return 0, s.guard.Normalize(err)
	}

	if gedcomPath != nil {
		s.rebuildPeople(t.ID, *gedcomPath)
	}

	s.activity.Record(actor.ID, "trees", "Created tree: "+t.Title)
	return t.ID, nil
}

func (s *Service) Update(id int64, actor *auth.User, in UpdateInput) (int64, error) {
	t, err := s.load(id)
	if err != nil {
		return 0, err
	}
	if err := authorize(t, actor); err != nil {
		return 0, err
	}

	title := t.Title
	if in.Title != nil {
		cleaned := cleanText(*in.Title)
		if cleaned == nil {
			return 0, internal.NewValidationError("Title is required", internal.ErrCodeTitleRequired)
		}
		title = *cleaned
	}

	isPublic := t.IsPublic
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	fileReplaced := false
	if in.Gedcom != nil {
		saved, err := s.files.Save(in.Gedcom.Reader, filestore.KindTrees, visibilityOf(isPublic), in.Gedcom.Ext)
		if err != nil {
			return 0, internal.NewInternalError("Update tree failed", err)
		}
		if t.GedcomPath != nil {
			if old, ok := filestore.Parse(*t.GedcomPath); ok {
				s.files.Remove(old)
			}
		}
		stored := saved.String()
		t.GedcomPath = &stored
		fileReplaced = true
	} else if t.GedcomPath != nil {
		if p, ok := filestore.Parse(*t.GedcomPath); ok {
			relocated := s.files.Relocate(p, visibilityOf(isPublic)).String()
			t.GedcomPath = &relocated
		}
	}

	t.Title = title
	t.Description = pickNullable(in.Description, t.Description)
	t.ArchiveSource = pickNullable(in.ArchiveSource, t.ArchiveSource)
	t.DocumentCode = pickNullable(in.DocumentCode, t.DocumentCode)
	t.IsPublic = isPublic

	if err := s.repo.Update(t); err != nil {
		return 0, s.guard.Normalize(err)
	}

	if fileReplaced {
		s.rebuildPeople(t.ID, *t.GedcomPath)
	}

	s.activity.Record(actor.ID, "trees", "Updated tree: "+t.Title)
	return t.ID, nil
}

func (s *Service) Delete(id int64, actor *auth.User) error {
	t, err := s.load(id)
	if err != nil {
		return err
	}
	if err := authorize(t, actor); err != nil {
		return err
	}

	if err := s.repo.Delete(t.ID); err != nil {
		return s.guard.Normalize(err)
	}
	if t.GedcomPath != nil {
		if p, ok := filestore.Parse(*t.GedcomPath); ok {
			s.files.Remove(p)
		}
	}

	s.activity.Record(actor.ID, "trees", "Deleted tree: "+t.Title)
	return nil
}

func (s *Service) DownloadGedcom(id int64, actor *auth.User) (string, error) {
	t, err := s.load(id)
	if err != nil {
		return "", err
	}
	if err := authorize(t, actor); err != nil {
		return "", err
	}
	return s.gedcomFile(t)
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

func (s *Service) load(id int64) (*FamilyTree, error) {
	if err := s.guard.Check(); err != nil {
		return nil, err
	}
	t, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.guard.Normalize(err)
	}
	return t, nil
}

func (s *Service) gedcomFile(t *FamilyTree) (string, error) {
	if t.GedcomPath == nil {
		return "", ErrFileNotFound
	}
	p, ok := filestore.Parse(*t.GedcomPath)
	if !ok || !s.files.Exists(p) {
		return "", ErrFileNotFound
	}
	return s.files.Resolve(p), nil
}

// rebuildPeople regenerates the derived Person rows from the stored
// GEDCOM. The tree row is already committed, so failures here are logged
// and never surfaced; an unreadable file leaves the tree with zero rows.
func (s *Service) rebuildPeople(treeID int64, gedcomPath string) {
	names := s.parseStoredGedcom(gedcomPath)
	if err := s.repo.ReplacePeople(treeID, names); err != nil {
		s.logger.Error("rebuild of tree people failed", "tree_id", treeID, "error", err)
	}
}

func (s *Service) parseStoredGedcom(gedcomPath string) []string {
	p, ok := filestore.Parse(gedcomPath)
	if !ok {
		return nil
	}
	content, err := os.ReadFile(s.files.Resolve(p))
	if err != nil {
		s.logger.Warn("gedcom file unreadable, tree keeps zero people", "path", gedcomPath, "error", err)
		return nil
	}
	people := gedcom.Parse(string(content))
	names := make([]string, 0, len(people))
	for _, person := range people {
		names = append(names, person.Name)
	}
	return names
}

func authorize(t *FamilyTree, actor *auth.User) error {
	if actor == nil {
		return ErrForbidden
	}
	if !actor.HasPermission(auth.PermManageAllTrees) && t.UserID != actor.ID {
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
