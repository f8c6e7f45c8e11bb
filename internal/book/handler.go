package book

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/ancestrio/family-archive/internal/auth"
	"github.com/ancestrio/family-archive/internal/transport"
	"github.com/ancestrio/family-archive/pkg/logger"
)

const maxUploadMemory = 32 << 20

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.L()),
		Service:     svc,
	}
}

func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	h.NoStore(w)
	views, err := h.Service.ListPublic()
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}
	view, err := h.Service.GetPublic(id)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) DownloadPublic(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}
	path, err := h.Service.DownloadPublic(id)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.sendFile(w, r, path)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	h.NoStore(w)
	views, err := h.Service.ListMine(user.ID)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}
	view, err := h.Service.Get(id, user)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	in, cleanup, ok := h.parseCreateForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	id, err := h.Service.Create(user, in)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}
	in, cleanup, ok := h.parseUpdateForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	updatedID, err := h.Service.Update(id, user, in)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]int64{"id": updatedID})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}
	path, err := h.Service.Download(id, user)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.sendFile(w, r, path)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(id, user); err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "Deleted")
}

func (h *Handler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	h.NoStore(w)
	views, err := h.Service.ListAll()
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}
	view, err := h.Service.GetAdmin(id)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) parseCreateForm(w http.ResponseWriter, r *http.Request) (CreateInput, func(), bool) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return CreateInput{}, nil, false
	}

	file, err := transport.FileFromForm(r, "file")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return CreateInput{}, nil, false
	}
	cover, err := transport.FileFromForm(r, "cover")
	if err != nil {
		file.Close()
		h.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return CreateInput{}, nil, false
	}

	in := CreateInput{
		Title:         r.FormValue("title"),
		Author:        transport.StringFromForm(r, "author"),
		Description:   transport.StringFromForm(r, "description"),
		Category:      transport.StringFromForm(r, "category"),
		ArchiveSource: transport.StringFromForm(r, "archiveSource"),
		DocumentCode:  transport.StringFromForm(r, "documentCode"),
		IsPublic:      transport.BoolFromForm(r, "isPublic"),
		File:          file,
		Cover:         cover,
	}
	return in, func() { file.Close(); cover.Close() }, true
}

func (h *Handler) parseUpdateForm(w http.ResponseWriter, r *http.Request) (UpdateInput, func(), bool) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return UpdateInput{}, nil, false
	}

	file, err := transport.FileFromForm(r, "file")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return UpdateInput{}, nil, false
	}
	cover, err := transport.FileFromForm(r, "cover")
	if err != nil {
		file.Close()
		h.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return UpdateInput{}, nil, false
	}

	in := UpdateInput{
		Title:         transport.StringFromForm(r, "title"),
		Author:        transport.StringFromForm(r, "author"),
		Description:   transport.StringFromForm(r, "description"),
		Category:      transport.StringFromForm(r, "category"),
		ArchiveSource: transport.StringFromForm(r, "archiveSource"),
		DocumentCode:  transport.StringFromForm(r, "documentCode"),
		IsPublic:      transport.BoolFromForm(r, "isPublic"),
		File:          file,
		Cover:         cover,
	}
	return in, func() { file.Close(); cover.Close() }, true
}

func (h *Handler) bookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "Invalid book id")
		return 0, false
	}
	return id, true
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return user, true
}

func (h *Handler) sendFile(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}
