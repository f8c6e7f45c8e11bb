package book_test

import (
	"log/slog"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ancestrio/family-archive/internal"
	"github.com/ancestrio/family-archive/internal/auth"
	"github.com/ancestrio/family-archive/internal/book"
	"github.com/ancestrio/family-archive/internal/filestore"
	"github.com/ancestrio/family-archive/internal/storage"
	"github.com/ancestrio/family-archive/internal/transport"
)

type mockBookRepository struct {
	books  map[int64]*book.Book
	nextID int64
}

func newMockBookRepository() *mockBookRepository {
	return &mockBookRepository{books: make(map[int64]*book.Book), nextID: 1}
}

func (m *mockBookRepository) ListPublic() ([]book.Book, error) {
	var out []book.Book
	for _, b := range m.books {
		if b.IsPublic {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBookRepository) ListByUploader(userID int64) ([]book.Book, error) {
	var out []book.Book
	for _, b := range m.books {
		if b.UploadedBy == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBookRepository) ListAll() ([]book.Book, error) {
	var out []book.Book
	for _, b := range m.books {
		out = append(out, *b)
	}
	return out, nil
}

func (m *mockBookRepository) GetByID(id int64) (*book.Book, error) {
	b, ok := m.books[id]
	if !ok {
		return nil, book.ErrNotFound
	}
	clone := *b
	return &clone, nil
}

func (m *mockBookRepository) GetByIDWithUploader(id int64) (*book.Book, error) {
	return m.GetByID(id)
}

func (m *mockBookRepository) Create(b *book.Book) error {
	b.ID = m.nextID
	m.nextID++
	clone := *b
	clone.CreatedAt = time.Now()
	m.books[b.ID] = &clone
	return nil
}

func (m *mockBookRepository) Update(b *book.Book) error {
	clone := *b
	m.books[b.ID] = &clone
	return nil
}

func (m *mockBookRepository) Delete(id int64) error {
	delete(m.books, id)
	return nil
}

func (m *mockBookRepository) IncrementDownloads(id int64) error {
	if b, ok := m.books[id]; ok {
		b.DownloadCount++
	}
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

var _ = Describe("BookService", func() {
	var (
		repo    *mockBookRepository
		files   *filestore.Store
		service *book.Service

		owner    *auth.User
		stranger *auth.User
		curator  *auth.User
	)

	BeforeEach(func() {
		repo = newMockBookRepository()
		files = filestore.New(GinkgoT().TempDir(), GinkgoT().TempDir(), testLogger())
		guard := storage.NewGuard(storage.NewBreaker(time.Second, nil), testLogger())
		service = book.NewService(repo, files, guard, nil, testLogger())

		owner = &auth.User{ID: 10, RoleID: 2, RoleName: "member"}
		stranger = &auth.User{ID: 11, RoleID: 2, RoleName: "member"}
		curator = &auth.User{ID: 12, RoleID: 3, RoleName: "editor", Permissions: []string{auth.PermManageBooks}}
	})

	createBook := func(actor *auth.User, isPublic bool) int64 {
		id, err := service.Create(actor, book.CreateInput{
			Title:    "Parish Register 1850",
			Author:   strPtr("J. Archivist"),
			IsPublic: boolPtr(isPublic),
			File:     upload("pdf-bytes", ".pdf"),
			Cover:    upload("jpeg-bytes", ".jpg"),
		})
		Expect(err).ToNot(HaveOccurred())
		return id
	}

	Describe("Create", func() {
		It("requires a title and a file", func() {
			_, err := service.Create(owner, book.CreateInput{
				Title: "   ",
				File:  upload("x", ".pdf"),
				Cover: upload("x", ".jpg"),
			})
			Expect(err).To(MatchError(ContainSubstring("Title and file are required")))

			_, err = service.Create(owner, book.CreateInput{
				Title: "No file",
				Cover: upload("x", ".jpg"),
			})
			Expect(err).To(MatchError(ContainSubstring("Title and file are required")))
		})

		It("requires a cover image", func() {
			_, err := service.Create(owner, book.CreateInput{
				Title: "No cover",
				File:  upload("x", ".pdf"),
			})
			Expect(err).To(MatchError(ContainSubstring("Cover image is required")))
		})

		It("defaults to public and stores the file under the public subtree", func() {
			id, err := service.Create(owner, book.CreateInput{
				Title: "Defaults",
				File:  upload("x", ".pdf"),
				Cover: upload("x", ".jpg"),
			})
			Expect(err).ToNot(HaveOccurred())

			stored := repo.books[id]
			Expect(stored.IsPublic).To(BeTrue())
			Expect(stored.FilePath).To(HavePrefix("/uploads/books/"))

			p, ok := filestore.Parse(stored.FilePath)
			Expect(ok).To(BeTrue())
			Expect(files.Exists(p)).To(BeTrue())
		})

		It("stores a private upload under the private subtree, cover stays public", func() {
			id := createBook(owner, false)

			stored := repo.books[id]
			Expect(stored.FilePath).To(HavePrefix("private/books/"))
			Expect(*stored.CoverPath).To(HavePrefix("/uploads/books/"))

			p, ok := filestore.Parse(stored.FilePath)
			Expect(ok).To(BeTrue())
			Expect(files.Exists(p)).To(BeTrue())
		})

		It("records the file size from the upload", func() {
			id := createBook(owner, true)
			Expect(*repo.books[id].FileSize).To(Equal(int64(len("pdf-bytes"))))
		})
	})

	Describe("Update", func() {
		It("keeps omitted fields and nullifies provided blanks", func() {
			id := createBook(owner, true)

			_, err := service.Update(id, owner, book.UpdateInput{
				Author:      strPtr("   "),
				Description: strPtr("New description"),
			})
			Expect(err).ToNot(HaveOccurred())

			stored := repo.books[id]
			Expect(stored.Title).To(Equal("Parish Register 1850"))
			Expect(stored.Author).To(BeNil())
			Expect(*stored.Description).To(Equal("New description"))
		})

		It("rejects a blank title", func() {
			id := createBook(owner, true)

			_, err := service.Update(id, owner, book.UpdateInput{Title: strPtr("  ")})
			Expect(err).To(MatchError(ContainSubstring("Title is required")))
		})

		It("relocates the kept file when visibility toggles", func() {
			id := createBook(owner, true)
			before := repo.books[id].FilePath

			_, err := service.Update(id, owner, book.UpdateInput{IsPublic: boolPtr(false)})
			Expect(err).ToNot(HaveOccurred())

			after := repo.books[id].FilePath
			Expect(after).To(HavePrefix("private/books/"))

			beforePath, _ := filestore.Parse(before)
			afterPath, ok := filestore.Parse(after)
			Expect(ok).To(BeTrue())
			Expect(files.Exists(beforePath)).To(BeFalse())
			Expect(files.Exists(afterPath)).To(BeTrue())
		})

		It("relocates back to public on a second toggle", func() {
			id := createBook(owner, false)

			_, err := service.Update(id, owner, book.UpdateInput{IsPublic: boolPtr(true)})
			Expect(err).ToNot(HaveOccurred())

			Expect(repo.books[id].FilePath).To(HavePrefix("/uploads/books/"))
		})

		It("replacing the file deletes the old one", func() {
			id := createBook(owner, true)
			old, _ := filestore.Parse(repo.books[id].FilePath)

			_, err := service.Update(id, owner, book.UpdateInput{File: upload("new-bytes", ".pdf")})
			Expect(err).ToNot(HaveOccurred())

			Expect(files.Exists(old)).To(BeFalse())
			next, ok := filestore.Parse(repo.books[id].FilePath)
			Expect(ok).To(BeTrue())
			Expect(files.Exists(next)).To(BeTrue())
			Expect(*repo.books[id].FileSize).To(Equal(int64(len("new-bytes"))))
		})

		It("rejects a non-owner without the manage permission", func() {
			id := createBook(owner, true)

			_, err := service.Update(id, stranger, book.UpdateInput{Title: strPtr("Hijacked")})
			Expect(err).To(MatchError(book.ErrForbidden))
		})

		It("allows a curator holding manage_books", func() {
			id := createBook(owner, true)

			_, err := service.Update(id, curator, book.UpdateInput{Title: strPtr("Curated title")})
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.books[id].Title).To(Equal("Curated title"))
		})
	})

	Describe("Download", func() {
		It("increments the counter once per download", func() {
			id := createBook(owner, true)

			_, err := service.DownloadPublic(id)
			Expect(err).ToNot(HaveOccurred())
			_, err = service.DownloadPublic(id)
			Expect(err).ToNot(HaveOccurred())

			Expect(repo.books[id].DownloadCount).To(Equal(int64(2)))
		})

		It("refuses a private book on the public route", func() {
			id := createBook(owner, false)

			_, err := service.DownloadPublic(id)
			Expect(err).To(MatchError(book.ErrForbidden))
		})

		It("lets the owner download a private book", func() {
			id := createBook(owner, false)

			path, err := service.Download(id, owner)
			Expect(err).ToNot(HaveOccurred())
			Expect(path).ToNot(BeEmpty())
		})

		It("returns file-not-found when the row exists but the disk file is gone", func() {
			id := createBook(owner, true)
			p, _ := filestore.Parse(repo.books[id].FilePath)
			files.Remove(p)

			_, err := service.DownloadPublic(id)
			Expect(err).To(MatchError(book.ErrFileNotFound))
			Expect(repo.books[id].DownloadCount).To(BeZero())
		})
	})

	Describe("Get and lists", func() {
		It("refuses a private book on the public detail route", func() {
			id := createBook(owner, false)

			_, err := service.GetPublic(id)
			Expect(err).To(MatchError(book.ErrForbidden))
		})

		It("nulls fileUrl in owner views for private files", func() {
			id := createBook(owner, false)

			view, err := service.Get(id, owner)
			Expect(err).ToNot(HaveOccurred())
			Expect(view.FileURL).To(BeNil())
			Expect(view.IsPublic).To(BeFalse())
		})

		It("only lists the caller's own rows on the owner surface", func() {
			createBook(owner, true)
			createBook(stranger, true)

			mine, err := service.ListMine(owner.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(mine).To(HaveLen(1))
		})

		It("hides private rows from the public list", func() {
			createBook(owner, true)
			createBook(owner, false)

			listed, err := service.ListPublic()
			Expect(err).ToNot(HaveOccurred())
			Expect(listed).To(HaveLen(1))
		})
	})

	Describe("Delete", func() {
		It("removes the row and the backing files", func() {
			id := createBook(owner, true)
			filePath, _ := filestore.Parse(repo.books[id].FilePath)
			coverPath, _ := filestore.Parse(*repo.books[id].CoverPath)

			Expect(service.Delete(id, owner)).To(Succeed())

			Expect(repo.books).ToNot(HaveKey(id))
			Expect(files.Exists(filePath)).To(BeFalse())
			Expect(files.Exists(coverPath)).To(BeFalse())
		})

		It("rejects a non-owner without the manage permission", func() {
			id := createBook(owner, true)

			Expect(service.Delete(id, stranger)).To(MatchError(book.ErrForbidden))
			Expect(repo.books).To(HaveKey(id))
		})

		It("returns not-found for an absent row", func() {
			Expect(service.Delete(999, owner)).To(MatchError(book.ErrNotFound))
		})
	})

	Describe("unavailable storage", func() {
		It("fails fast with the uniform message while the breaker is open", func() {
			breaker := storage.NewBreaker(time.Minute, nil)
			breaker.Trip()
			service = book.NewService(repo, files, storage.NewGuard(breaker, testLogger()), nil, testLogger())

			_, err := service.ListPublic()

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(503))
			Expect(appErr.Message).To(Equal("Database unavailable. Please try again later."))
		})
	})
})
