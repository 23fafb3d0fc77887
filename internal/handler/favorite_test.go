package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/course-review/internal/handler"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/service"
)

func TestFavoriteHandler(t *testing.T) {
	e := newTestEnv(t)
	e.seedCatalog(t)
	user := e.signup(t, "chan@ln.hk", "chan")
	h := handler.NewFavoriteHandler(service.NewFavoriteService(e.db, e.db, e.logger), e.validate, e.logger)

	add := func(t *testing.T, body map[string]string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.HandleAdd(rr, asUser(jsonRequest(t, http.MethodPost, "/api/me/favorites", body), user.Token))
		return rr
	}
	list := func(t *testing.T) []model.Favorite {
		rr := httptest.NewRecorder()
		h.HandleList(rr, asUser(httptest.NewRequest(http.MethodGet, "/api/me/favorites", nil), user.Token))
		require.Equal(t, http.StatusOK, rr.Code)
		return decode[[]model.Favorite](t, rr)
	}

	assert.Empty(t, list(t))

	rr := add(t, map[string]string{"type": "course", "key": "BUS1001"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = add(t, map[string]string{"type": "instructor", "key": "Dr. LEE"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Len(t, list(t), 2)

	t.Run("bad type", func(t *testing.T) {
		rr := add(t, map[string]string{"type": "term", "key": "2023-24 Term 1"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "type", decode[handler.ErrorResponse](t, rr).Field)
	})

	t.Run("unknown course", func(t *testing.T) {
		rr := add(t, map[string]string{"type": "course", "key": "XYZ9999"})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("remove twice", func(t *testing.T) {
		for range 2 {
			rr := httptest.NewRecorder()
			req := withParams(httptest.NewRequest(http.MethodDelete, "/api/me/favorites/course/BUS1001", nil), "type", "course", "key", "BUS1001")
			h.HandleRemove(rr, asUser(req, user.Token))
			assert.Equal(t, http.StatusNoContent, rr.Code)
		}
		favs := list(t)
		require.Len(t, favs, 1)
		assert.Equal(t, model.FavoriteInstructor, favs[0].Kind)
	})
}
