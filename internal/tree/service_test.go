package tree_test

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ancestrio/family-archive/internal/auth"
	"github.com/ancestrio/family-archive/internal/filestore"
	"github.com/ancestrio/family-archive/internal/storage"
	"github.com/ancestrio/family-archive/internal/transport"
	"github.com/ancestrio/family-archive/internal/tree"
)

const sampleGedcom = "0 HEAD\n0 @I1@ INDI\n1 NAME John /Smith/\n0 @I2@ INDI\n1 GIVN Jane\n1 SURN Doe\n0 TRLR\n"

type mockTreeRepository struct {
	trees      map[int64]*tree.FamilyTree
	people     map[int64][]string
	nextID     int64
	replaceErr error
}

func newMockTreeRepository() *mockTreeRepository {
	return &mockTreeRepository{
		trees:  make(map[int64]*tree.FamilyTree),
		people: make(map[int64][]string),
		nextID: 1,
	}
}

func (m *mockTreeRepository) ListPublic() ([]tree.FamilyTree, error) {
	var out []tree.FamilyTree
	for _, t := range m.trees {
		if t.IsPublic {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockTreeRepository) ListByOwner(userID int64) ([]tree.FamilyTree, error) {
	var out []tree.FamilyTree
	for _, t := range m.trees {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockTreeRepository) ListAll() ([]tree.FamilyTree, error) {
	var out []tree.FamilyTree
	for _, t := range m.trees {
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockTreeRepository) GetByID(id int64) (*tree.FamilyTree, error) {
	t, ok := m.trees[id]
	if !ok {
		return nil, tree.ErrNotFound
	}
	clone := *t
	clone.Members = int64(len(m.people[id]))
	return &clone, nil
}

func (m *mockTreeRepository) Create(t *tree.FamilyTree) error {
	t.ID = m.nextID
	m.nextID++
	clone := *t
	clone.CreatedAt = time.Now()
	m.trees[t.ID] = &clone
	return nil
}

func (m *mockTreeRepository) Update(t *tree.FamilyTree) error {
	clone := *t
	m.trees[t.ID] = &clone
	return nil
}

func (m *mockTreeRepository) Delete(id int64) error {
	delete(m.trees, id)
	delete(m.people, id)
	return nil
}

func (m *mockTreeRepository) ReplacePeople(treeID int64, names []string) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.people[treeID] = names
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func upload(content, ext string) *transport.Upload {
	return &transport.Upload{
		Reader: strings.NewReader(content),
		Ext:    ext,
		Size:   int64(len(content)),
	}
}

func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

var _ = Describe("TreeService", func() {
	var (
		repo    *mockTreeRepository
		files   *filestore.Store
		service *tree.Service

		owner    *auth.User
		stranger *auth.User
		keeper   *auth.User
	)

	BeforeEach(func() {
		repo = newMockTreeRepository()
		files = filestore.New(GinkgoT().TempDir(), GinkgoT().TempDir(), testLogger())
		guard := storage.NewGuard(storage.NewBreaker(time.Second, nil), testLogger())
		service = tree.NewService(repo, files, guard, nil, testLogger())

		owner = &auth.User{ID: 30, RoleID: 2, RoleName: "member"}
		stranger = &auth.User{ID: 31, RoleID: 2, RoleName: "member"}
		keeper = &auth.User{ID: 32, RoleID: 3, RoleName: "editor", Permissions: []string{auth.PermManageAllTrees}}
	})

	createTree := func(actor *auth.User, gedcomContent string, isPublic bool) int64 {
		in := tree.CreateInput{
			Title:    "Van der Berg family",
			IsPublic: boolPtr(isPublic),
		}
		if gedcomContent != "" {
			in.Gedcom = upload(gedcomContent, ".ged")
		}
		id, err := service.Create(actor, in)
		Expect(err).ToNot(HaveOccurred())
		return id
	}

	Describe("Create", func() {
		It("requires a title", func() {
			_, err := service.Create(owner, tree.CreateInput{Title: "  "})
			Expect(err).To(MatchError(ContainSubstring("Title is required")))
		})

		It("defaults to private, unlike the other resources", func() {
			id, err := service.Create(owner, tree.CreateInput{Title: "Default visibility"})
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.trees[id].IsPublic).To(BeFalse())
		})

		It("works without a GEDCOM file", func() {
			id := createTree(owner, "", false)
			Expect(repo.trees[id].GedcomPath).To(BeNil())
			Expect(repo.people[id]).To(BeEmpty())
		})

		It("stores a private tree's file under the private subtree", func() {
			id := createTree(owner, sampleGedcom, false)
			Expect(*repo.trees[id].GedcomPath).To(HavePrefix("private/trees/"))
		})

		It("derives the people roster from the uploaded GEDCOM", func() {
			id := createTree(owner, sampleGedcom, true)
			Expect(repo.people[id]).To(Equal([]string{"John Smith", "Jane Doe"}))
		})

		It("still succeeds when the roster rebuild fails", func() {
			repo.replaceErr = errors.New("people table locked")

			id, err := service.Create(owner, tree.CreateInput{
				Title:  "Rebuild fails quietly",
				Gedcom: upload(sampleGedcom, ".ged"),
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.trees).To(HaveKey(id))
		})
	})

	Describe("Update", func() {
		It("re-derives people when the file is replaced", func() {
			id := createTree(owner, sampleGedcom, true)

			replacement := "0 @I9@ INDI\n1 NAME Willem /Bakker/\n0 TRLR\n"
			_, err := service.Update(id, owner, tree.UpdateInput{Gedcom: upload(replacement, ".ged")})
			Expect(err).ToNot(HaveOccurred())

			Expect(repo.people[id]).To(Equal([]string{"Willem Bakker"}))
		})

		It("replacing the same content yields the same roster", func() {
			id := createTree(owner, sampleGedcom, true)
			first := repo.people[id]

			_, err := service.Update(id, owner, tree.UpdateInput{Gedcom: upload(sampleGedcom, ".ged")})
			Expect(err).ToNot(HaveOccurred())

			Expect(repo.people[id]).To(Equal(first))
		})

		It("keeps the roster on a metadata-only update", func() {
			id := createTree(owner, sampleGedcom, true)

			_, err := service.Update(id, owner, tree.UpdateInput{Description: strPtr("Annotated")})
			Expect(err).ToNot(HaveOccurred())

			Expect(repo.people[id]).To(Equal([]string{"John Smith", "Jane Doe"}))
		})

		It("relocates a kept GEDCOM when visibility toggles", func() {
			id := createTree(owner, sampleGedcom, true)
			before, _ := filestore.Parse(*repo.trees[id].GedcomPath)

			_, err := service.Update(id, owner, tree.UpdateInput{IsPublic: boolPtr(false)})
			Expect(err).ToNot(HaveOccurred())

			after := *repo.trees[id].GedcomPath
			Expect(after).To(HavePrefix("private/trees/"))
			Expect(files.Exists(before)).To(BeFalse())
			afterPath, ok := filestore.Parse(after)
			Expect(ok).To(BeTrue())
			Expect(files.Exists(afterPath)).To(BeTrue())
		})

		It("rejects a non-owner without manage_all_trees", func() {
			id := createTree(owner, "", false)

			_, err := service.Update(id, stranger, tree.UpdateInput{Title: strPtr("Hijacked")})
			Expect(err).To(MatchError(tree.ErrForbidden))
		})

		It("allows a keeper holding manage_all_trees", func() {
			id := createTree(owner, "", false)

			_, err := service.Update(id, keeper, tree.UpdateInput{Title: strPtr("Kept")})
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.trees[id].Title).To(Equal("Kept"))
		})
	})

	Describe("GEDCOM download", func() {
		It("serves the file for a public tree", func() {
			id := createTree(owner, sampleGedcom, true)

			path, err := service.DownloadPublicGedcom(id)
			Expect(err).ToNot(HaveOccurred())

			content, err := os.ReadFile(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(Equal(sampleGedcom))
		})

		It("refuses a private tree on the public route", func() {
			id := createTree(owner, sampleGedcom, false)

			_, err := service.DownloadPublicGedcom(id)
			Expect(err).To(MatchError(tree.ErrForbidden))
		})

		It("returns file-not-found for a tree without a GEDCOM", func() {
			id := createTree(owner, "", true)
			repo.trees[id].IsPublic = true

			_, err := service.DownloadPublicGedcom(id)
			Expect(err).To(MatchError(tree.ErrFileNotFound))
		})

		It("returns file-not-found when the disk file is gone", func() {
			id := createTree(owner, sampleGedcom, true)
			p, _ := filestore.Parse(*repo.trees[id].GedcomPath)
			files.Remove(p)

			_, err := service.DownloadPublicGedcom(id)
			Expect(err).To(MatchError(tree.ErrFileNotFound))
		})

		It("lets the owner download a private tree's file", func() {
			id := createTree(owner, sampleGedcom, false)

			_, err := service.DownloadGedcom(id, owner)
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("reads", func() {
		It("refuses a private tree on the public detail route", func() {
			id := createTree(owner, "", false)

			_, err := service.GetPublic(id)
			Expect(err).To(MatchError(tree.ErrForbidden))
		})

		It("reports the member count on owner views", func() {
			id := createTree(owner, sampleGedcom, false)

			view, err := service.Get(id, owner)
			Expect(err).ToNot(HaveOccurred())
			Expect(view.Members).To(Equal(int64(2)))
			Expect(view.HasGedcom).To(BeTrue())
		})

		It("nulls gedcomUrl for private files", func() {
			id := createTree(owner, sampleGedcom, false)

			view, err := service.Get(id, owner)
			Expect(err).ToNot(HaveOccurred())
			Expect(view.GedcomURL).To(BeNil())
		})

		It("exposes gedcomUrl for public files", func() {
			id := createTree(owner, sampleGedcom, true)
			repo.trees[id].IsPublic = true

			view, err := service.GetPublic(id)
			Expect(err).ToNot(HaveOccurred())
			Expect(view.GedcomURL).ToNot(BeNil())
			Expect(*view.GedcomURL).To(HavePrefix("/uploads/trees/"))
		})
	})

	Describe("Delete", func() {
		It("removes the tree, its roster and the file", func() {
			id := createTree(owner, sampleGedcom, true)
			p, _ := filestore.Parse(*repo.trees[id].GedcomPath)

			Expect(service.Delete(id, owner)).To(Succeed())

			Expect(repo.trees).ToNot(HaveKey(id))
			Expect(repo.people).ToNot(HaveKey(id))
			Expect(files.Exists(p)).To(BeFalse())
		})

		It("rejects a non-owner without manage_all_trees", func() {
			id := createTree(owner, "", false)

			Expect(service.Delete(id, stranger)).To(MatchError(tree.ErrForbidden))
		})
	})
})
