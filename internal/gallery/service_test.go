package gallery_test

import (
	"log/slog"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ancestrio/family-archive/internal/auth"
	"github.com/ancestrio/family-archive/internal/filestore"
	"github.com/ancestrio/family-archive/internal/gallery"
	"github.com/ancestrio/family-archive/internal/storage"
	"github.com/ancestrio/family-archive/internal/transport"
)

type mockGalleryRepository struct {
	items  map[int64]*gallery.Item
	nextID int64
}

func newMockGalleryRepository() *mockGalleryRepository {
	return &mockGalleryRepository{items: make(map[int64]*gallery.Item), nextID: 1}
}

func (m *mockGalleryRepository) ListPublic() ([]gallery.Item, error) {
	var out []gallery.Item
	for _, item := range m.items {
		if item.IsPublic {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *mockGalleryRepository) ListByUploader(userID int64) ([]gallery.Item, error) {
	var out []gallery.Item
	for _, item := range m.items {
		if item.UploadedBy == userID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *mockGalleryRepository) ListAll() ([]gallery.Item, error) {
	var out []gallery.Item
	for _, item := range m.items {
		out = append(out, *item)
	}
	return out, nil
}

func (m *mockGalleryRepository) GetByID(id int64) (*gallery.Item, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, gallery.ErrNotFound
	}
	clone := *item
	return &clone, nil
}

func (m *mockGalleryRepository) GetByIDWithUploader(id int64) (*gallery.Item, error) {
	return m.GetByID(id)
}

func (m *mockGalleryRepository) Create(item *gallery.Item) error {
	item.ID = m.nextID
	m.nextID++
	clone := *item
	clone.CreatedAt = time.Now()
	m.items[item.ID] = &clone
	return nil
}

func (m *mockGalleryRepository) Update(item *gallery.Item) error {
	clone := *item
	m.items[item.ID] = &clone
	return nil
}

func (m *mockGalleryRepository) Delete(id int64) error {
	delete(m.items, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
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

var _ = Describe("GalleryService", func() {
	var (
		repo    *mockGalleryRepository
		files   *filestore.Store
		service *gallery.Service

		owner    *auth.User
		stranger *auth.User
		curator  *auth.User
	)

	BeforeEach(func() {
		repo = newMockGalleryRepository()
		files = filestore.New(GinkgoT().TempDir(), GinkgoT().TempDir(), testLogger())
		guard := storage.NewGuard(storage.NewBreaker(time.Second, nil), testLogger())
		service = gallery.NewService(repo, files, guard, nil, testLogger())

		owner = &auth.User{ID: 20, RoleID: 2, RoleName: "member"}
		stranger = &auth.User{ID: 21, RoleID: 2, RoleName: "member"}
		curator = &auth.User{ID: 22, RoleID: 3, RoleName: "editor", Permissions: []string{auth.PermManageGallery}}
	})

	createItem := func(actor *auth.User, isPublic bool) int64 {
		view, err := service.Create(actor, gallery.CreateInput{
			Title:        "Wedding portrait 1921",
			Location:     strPtr("Leiden"),
			Year:         strPtr("1921"),
			Photographer: strPtr("Studio van Dam"),
			IsPublic:     boolPtr(isPublic),
			Image:        upload("jpeg-bytes", ".jpg"),
		})
		Expect(err).ToNot(HaveOccurred())
		return view.ID
	}

	Describe("Create", func() {
		It("requires an image file", func() {
			_, err := service.Create(owner, gallery.CreateInput{Title: "No image"})
			Expect(err).To(MatchError(ContainSubstring("Image file is required")))
		})

		It("requires a title", func() {
			_, err := service.Create(owner, gallery.CreateInput{
				Title: "   ",
				Image: upload("x", ".jpg"),
			})
			Expect(err).To(MatchError(ContainSubstring("Title is required")))
		})

		It("always stores the image under the public subtree", func() {
			id := createItem(owner, false)

			stored := repo.items[id]
			Expect(stored.ImagePath).To(HavePrefix("/uploads/gallery/"))
			Expect(stored.IsPublic).To(BeFalse())

			p, ok := filestore.Parse(stored.ImagePath)
			Expect(ok).To(BeTrue())
			Expect(files.Exists(p)).To(BeTrue())
		})

		It("defaults to public", func() {
			view, err := service.Create(owner, gallery.CreateInput{
				Title: "Defaults",
				Image: upload("x", ".jpg"),
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.items[view.ID].IsPublic).To(BeTrue())
		})
	})

	Describe("Update", func() {
		It("keeps omitted fields and nullifies provided blanks", func() {
			id := createItem(owner, true)

			_, err := service.Update(id, owner, gallery.UpdateInput{
				Photographer: strPtr("  "),
				Description:  strPtr("Restored print"),
			})
			Expect(err).ToNot(HaveOccurred())

			stored := repo.items[id]
			Expect(stored.Title).To(Equal("Wedding portrait 1921"))
			Expect(*stored.Location).To(Equal("Leiden"))
			Expect(stored.Photographer).To(BeNil())
			Expect(*stored.Description).To(Equal("Restored print"))
		})

		It("replacing the image deletes the old file", func() {
			id := createItem(owner, true)
			old, _ := filestore.Parse(repo.items[id].ImagePath)

			_, err := service.Update(id, owner, gallery.UpdateInput{Image: upload("new-jpeg", ".jpg")})
			Expect(err).ToNot(HaveOccurred())

			Expect(files.Exists(old)).To(BeFalse())
			next, ok := filestore.Parse(repo.items[id].ImagePath)
			Expect(ok).To(BeTrue())
			Expect(files.Exists(next)).To(BeTrue())
		})

		It("rejects a non-owner without the manage permission", func() {
			id := createItem(owner, true)

			_, err := service.Update(id, stranger, gallery.UpdateInput{Title: strPtr("Hijacked")})
			Expect(err).To(MatchError(gallery.ErrForbidden))
		})

		It("allows a curator holding manage_gallery", func() {
			id := createItem(owner, true)

			_, err := service.Update(id, curator, gallery.UpdateInput{Title: strPtr("Curated")})
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.items[id].Title).To(Equal("Curated"))
		})
	})

	Describe("reads", func() {
		It("refuses a private item on the public detail route", func() {
			id := createItem(owner, false)

			_, err := service.GetPublic(id)
			Expect(err).To(MatchError(gallery.ErrForbidden))
		})

		It("hides private rows from the public list", func() {
			createItem(owner, true)
			createItem(owner, false)

			listed, err := service.ListPublic()
			Expect(err).ToNot(HaveOccurred())
			Expect(listed).To(HaveLen(1))
		})

		It("only lists the caller's rows on the owner surface", func() {
			createItem(owner, true)
			createItem(stranger, true)

			mine, err := service.ListMine(owner.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(mine).To(HaveLen(1))
		})

		It("returns not-found for an absent row", func() {
			_, err := service.GetPublic(404)
			Expect(err).To(MatchError(gallery.ErrNotFound))
		})
	})

	Describe("Delete", func() {
		It("removes the row and the image", func() {
			id := createItem(owner, true)
			imagePath, _ := filestore.Parse(repo.items[id].ImagePath)

			Expect(service.Delete(id, owner)).To(Succeed())

			Expect(repo.items).ToNot(HaveKey(id))
			Expect(files.Exists(imagePath)).To(BeFalse())
		})

		It("rejects a non-owner without the manage permission", func() {
			id := createItem(owner, true)

			Expect(service.Delete(id, stranger)).To(MatchError(gallery.ErrForbidden))
		})
	})
})
