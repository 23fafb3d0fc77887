package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/course-review/internal/auth"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/service"
)

// ReviewHandler serves /api/reviews and /api/me/reviews.
//
// The body of POST and PUT is the review payload the form builds. Its rating
// fields are tri-state (null, -1 or a score), so it is decoded straight into
// model.ReviewPayload, whose Rating type keeps the three apart; the service
// then re-runs every form rule on it.
type ReviewHandler struct {
	reviews *service.ReviewService
	logger  *slog.Logger
}

func NewReviewHandler(reviews *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

// HTTP: GET /api/reviews/{id}
// Auth: Optional (authors see their own anonymous reviews unredacted)
func (h *ReviewHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	rv, err := h.reviews.Get(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

// HTTP: POST /api/reviews
// Auth: Required
func (h *ReviewHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var p model.ReviewPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, err)
		return
	}
	rv, err := h.reviews.Create(r.Context(), userID, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

// HTTP: PUT /api/reviews/{id}
// Auth: Required (author only)
func (h *ReviewHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var p model.ReviewPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, err)
		return
	}
	rv, err := h.reviews.Update(r.Context(), userID, chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

// HTTP: DELETE /api/reviews/{id}
// Auth: Required (author only)
func (h *ReviewHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.reviews.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: GET /api/me/reviews
// Auth: Required
func (h *ReviewHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	list, err := h.reviews.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// HTTP: GET /api/courses/{code}/reviews
// Auth: Optional
func (h *ReviewHandler) HandleListByCourse(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	list, err := h.reviews.ListByCourse(r.Context(), viewer, chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// nonNil makes empty lists encode as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
