package gallery

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/ancestrio/family-archive/internal/auth"
	"github.com/ancestrio/family-archive/internal/transport"
	"github.com/ancestrio/family-archive/pkg/logger"
)

const maxUploadMemory = 10 << 20

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

// Gallery payloads keep their historical envelope: lists under "gallery",
// single rows under "item".
func (h *Handler) writeList(w http.ResponseWriter, views []View) {
	h.WriteJSON(w, http.StatusOK, map[string][]View{"gallery": views})
}

func (h *Handler) writeItem(w http.ResponseWriter, status int, view *View, message string) {
	if message == "" {
		h.WriteJSON(w, status, map[string]*View{"item": view})
		return
	}
	h.WriteJSON(w, status, map[string]interface{}{"message": message, "item": view})
}

func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	h.NoStore(w)
	views, err := h.Service.ListPublic()
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.writeList(w, views)
}

func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	view, err := h.Service.GetPublic(id)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.writeItem(w, http.StatusOK, view, "")
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
	h.writeList(w, views)
}

func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	view, err := h.Service.Get(id, user)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.writeItem(w, http.StatusOK, view, "")
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
	image, err := transport.FileFromForm(r, "image")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	defer image.Close()

	view, err := h.Service.Create(user, CreateInput{
		Title:         r.FormValue("title"),
		Description:   transport.StringFromForm(r, "description"),
		ArchiveSource: transport.StringFromForm(r, "archiveSource"),
		DocumentCode:  transport.StringFromForm(r, "documentCode"),
		Location:      transport.StringFromForm(r, "location"),
		Year:          transport.StringFromForm(r, "year"),
		Photographer:  transport.StringFromForm(r, "photographer"),
		IsPublic:      transport.BoolFromForm(r, "isPublic"),
		Image:         image,
	})
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.writeItem(w, http.StatusCreated, view, "Gallery item uploaded successfully")
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	image, err := transport.FileFromForm(r, "image")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	defer image.Close()

	view, err := h.Service.Update(id, user, UpdateInput{
		Title:         transport.StringFromForm(r, "title"),
		Description:   transport.StringFromForm(r, "description"),
		ArchiveSource: transport.StringFromForm(r, "archiveSource"),
		DocumentCode:  transport.StringFromForm(r, "documentCode"),
		Location:      transport.StringFromForm(r, "location"),
		Year:          transport.StringFromForm(r, "year"),
		Photographer:  transport.StringFromForm(r, "photographer"),
		IsPublic:      transport.BoolFromForm(r, "isPublic"),
		Image:         image,
	})
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.writeItem(w, http.StatusOK, view, "Gallery item updated successfully")
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(id, user); err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "Gallery item deleted successfully")
}

func (h *Handler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	h.NoStore(w)
	views, err := h.Service.ListAll()
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.writeList(w, views)
}

func (h *Handler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	view, err := h.Service.GetAdmin(id)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.writeItem(w, http.StatusOK, view, "")
}

func (h *Handler) itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "Invalid gallery id")
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
