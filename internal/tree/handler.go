package tree

import (
	"net/http"
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
	id, ok := h.treeID(w, r)
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

func (h *Handler) DownloadPublicGedcom(w http.ResponseWriter, r *http.Request) {
	id, ok := h.treeID(w, r)
	if !ok {
		return
	}
	path, err := h.Service.DownloadPublicGedcom(id)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.sendGedcom(w, r, path)
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
	id, ok := h.treeID(w, r)
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
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	gedcomFile, err := transport.FileFromForm(r, "gedcom")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	defer gedcomFile.Close()

	id, err := h.Service.Create(user, CreateInput{
		Title:         r.FormValue("title"),
		Description:   transport.StringFromForm(r, "description"),
		ArchiveSource: transport.StringFromForm(r, "archiveSource"),
		DocumentCode:  transport.StringFromForm(r, "documentCode"),
		IsPublic:      transport.BoolFromForm(r, "isPublic"),
		Gedcom:        gedcomFile,
	})
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
	id, ok := h.treeID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	gedcomFile, err := transport.FileFromForm(r, "gedcom")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	defer gedcomFile.Close()

	updatedID, err := h.Service.Update(id, user, UpdateInput{
		Title:         transport.StringFromForm(r, "title"),
		Description:   transport.StringFromForm(r, "description"),
		ArchiveSource: transport.StringFromForm(r, "archiveSource"),
		DocumentCode:  transport.StringFromForm(r, "documentCode"),
		IsPublic:      transport.BoolFromForm(r, "isPublic"),
		Gedcom:        gedcomFile,
	})
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]int64{"id": updatedID})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.treeID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(id, user); err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "Deleted")
}

func (h *Handler) DownloadGedcom(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.treeID(w, r)
	if !ok {
		return
	}
	path, err := h.Service.DownloadGedcom(id, user)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.sendGedcom(w, r, path)
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

func (h *Handler) treeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "Invalid tree id")
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

// GEDCOM is served as plain text so browsers render instead of download.
func (h *Handler) sendGedcom(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeFile(w, r, path)
}
