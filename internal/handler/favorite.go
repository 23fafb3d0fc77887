package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/course-review/internal/auth"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/service"
)

type FavoriteHandler struct {
	favorites *service.FavoriteService
	validate  *Validator
	logger    *slog.Logger
}

func NewFavoriteHandler(favorites *service.FavoriteService, validate *Validator, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{favorites: favorites, validate: validate, logger: logger}
}

type favoriteRequest struct {
	Type string `json:"type" validate:"required,oneof=course instructor"`
	Key  string `json:"key"  validate:"required,max=200"`
}

// HTTP: GET /api/me/favorites
func (h *FavoriteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	list, err := h.favorites.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// HTTP: POST /api/me/favorites
func (h *FavoriteHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req favoriteRequest
	if err := h.validate.bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	f, err := h.favorites.Add(r.Context(), userID, model.FavoriteKind(req.Type), req.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// HTTP: DELETE /api/me/favorites/{type}/{key}
func (h *FavoriteHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	kind := model.FavoriteKind(chi.URLParam(r, "type"))
	if err := h.favorites.Remove(r.Context(), userID, kind, chi.URLParam(r, "key")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
