package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/ancestrio/family-archive/internal/auth"
	"github.com/ancestrio/family-archive/internal/book"
	"github.com/ancestrio/family-archive/internal/gallery"
	"github.com/ancestrio/family-archive/internal/transport/middleware"
	"github.com/ancestrio/family-archive/internal/transport/swagger"
	"github.com/ancestrio/family-archive/internal/tree"
)

// RouterDeps collects everything the HTTP surface needs wired in.
type RouterDeps struct {
	DB             *sql.DB
	AuthHandler    *auth.Handler
	BookHandler    *book.Handler
	GalleryHandler *gallery.Handler
	TreeHandler    *tree.Handler
	AllowedOrigins string
	PublicDir      string
	MaxUploadSize  int64
	Logger         *slog.Logger
}

// RegisterAllRoutes wires the public, owner and admin surfaces under
// /api, plus swagger, health and static uploads.
func RegisterAllRoutes(router *chi.Mux, deps RouterDeps) {
	healthHandler := NewHealthHandler(deps.DB)

	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.BodyLimit(deps.MaxUploadSize))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.LoggingMiddleware(deps.Logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	// public files referenced by stored /uploads/... paths
	router.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.PublicDir))))

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/signup", deps.AuthHandler.Signup)
			sr.Post("/login", deps.AuthHandler.Login)
			sr.Group(func(ar chi.Router) {
				ar.Use(deps.AuthHandler.AuthMiddleware)
				ar.Post("/logout", deps.AuthHandler.Logout)
				ar.Get("/me", deps.AuthHandler.Me)
			})
		})

		// anonymous catalogue
		r.Get("/books", deps.BookHandler.ListPublic)
		r.Get("/books/{id}", deps.BookHandler.GetPublic)
		r.Get("/books/{id}/download", deps.BookHandler.DownloadPublic)
		r.Get("/gallery", deps.GalleryHandler.ListPublic)
		r.Get("/gallery/{id}", deps.GalleryHandler.GetPublic)
		r.Get("/trees", deps.TreeHandler.ListPublic)
		r.Get("/trees/{id}", deps.TreeHandler.GetPublic)
		r.Get("/trees/{id}/gedcom", deps.TreeHandler.DownloadPublicGedcom)

		// owner surface
		r.Group(func(pr chi.Router) {
			pr.Use(deps.AuthHandler.AuthMiddleware)

			pr.Route("/my/books", func(br chi.Router) {
				br.Get("/", deps.BookHandler.ListMine)
				br.Post("/", deps.BookHandler.Create)
				br.Get("/{id}", deps.BookHandler.GetMine)
				br.Put("/{id}", deps.BookHandler.Update)
				br.Delete("/{id}", deps.BookHandler.Delete)
				br.Get("/{id}/download", deps.BookHandler.Download)
			})

			pr.Route("/my/gallery", func(gr chi.Router) {
				gr.Get("/", deps.GalleryHandler.ListMine)
				gr.Post("/", deps.GalleryHandler.Create)
				gr.Get("/{id}", deps.GalleryHandler.GetMine)
				gr.Put("/{id}", deps.GalleryHandler.Update)
				gr.Delete("/{id}", deps.GalleryHandler.Delete)
			})

			pr.Route("/my/trees", func(tr chi.Router) {
				tr.Get("/", deps.TreeHandler.ListMine)
				tr.Post("/", deps.TreeHandler.Create)
				tr.Get("/{id}", deps.TreeHandler.GetMine)
				tr.Put("/{id}", deps.TreeHandler.Update)
				tr.Delete("/{id}", deps.TreeHandler.Delete)
				tr.Get("/{id}/gedcom", deps.TreeHandler.DownloadGedcom)
			})

			// admin surface, each resource behind its manage permission
			pr.Route("/admin/books", func(ar chi.Router) {
				ar.Use(middleware.RequirePermission(deps.Logger, auth.PermManageBooks))
				ar.Get("/", deps.BookHandler.ListAdmin)
				ar.Post("/", deps.BookHandler.Create)
				ar.Get("/{id}", deps.BookHandler.GetAdmin)
				ar.Put("/{id}", deps.BookHandler.Update)
				ar.Delete("/{id}", deps.BookHandler.Delete)
				ar.Get("/{id}/download", deps.BookHandler.Download)
			})

			pr.Route("/admin/gallery", func(ar chi.Router) {
				ar.Use(middleware.RequirePermission(deps.Logger, auth.PermManageGallery))
				ar.Get("/", deps.GalleryHandler.ListAdmin)
				ar.Post("/", deps.GalleryHandler.Create)
				ar.Get("/{id}", deps.GalleryHandler.GetAdmin)
				ar.Put("/{id}", deps.GalleryHandler.Update)
				ar.Delete("/{id}", deps.GalleryHandler.Delete)
			})

			pr.Route("/admin/trees", func(ar chi.Router) {
				ar.Use(middleware.RequirePermission(deps.Logger, auth.PermManageAllTrees))
				ar.Get("/", deps.TreeHandler.ListAdmin)
				ar.Get("/{id}", deps.TreeHandler.GetMine)
				ar.Put("/{id}", deps.TreeHandler.Update)
				ar.Delete("/{id}", deps.TreeHandler.Delete)
				ar.Get("/{id}/gedcom", deps.TreeHandler.DownloadGedcom)
			})
		})
	})
}
