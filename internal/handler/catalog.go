package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/course-review/internal/catalog"
	"github.com/sakif/course-review/internal/i18n"
	"github.com/sakif/course-review/internal/service"
)

// CatalogHandler serves the read-only catalog: courses, terms, teaching
// records and the two listing pages.
type CatalogHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

func NewCatalogHandler(svc *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: svc, logger: logger}
}

// HTTP: GET /api/courses
func (h *CatalogHandler) HandleCourses(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.Courses(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// HTTP: GET /api/courses/{code}
func (h *CatalogHandler) HandleCourse(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalog.Course(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HTTP: GET /api/courses/{code}/teaching-records
func (h *CatalogHandler) HandleTeachingRecords(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.TeachingRecords(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// HTTP: GET /api/terms
func (h *CatalogHandler) HandleTerms(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.Terms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// HTTP: GET /api/terms/{code}
func (h *CatalogHandler) HandleTerm(w http.ResponseWriter, r *http.Request) {
	t, err := h.catalog.Term(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleCourseListing answers one page of the course listing. Title sorting
// uses the lang query parameter, or the negotiated request language.
//
// HTTP: GET /api/listings/courses?q=&department=&language=&service_learning=&term=&sort=&order=&page=&page_size=&lang=
func (h *CatalogHandler) HandleCourseListing(w http.ResponseWriter, r *http.Request) {
	q := catalog.ParseCourseQuery(r.URL.Query())
	if q.Lang == "" {
		q.Lang = i18n.FromContext(r.Context())
	}
	page, err := h.catalog.ListCourses(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HTTP: GET /api/listings/instructors?q=&department=&term=&sort=&order=&page=&page_size=
func (h *CatalogHandler) HandleInstructorListing(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.ListInstructors(r.Context(), catalog.ParseInstructorQuery(r.URL.Query()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
