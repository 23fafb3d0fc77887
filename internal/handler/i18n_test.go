package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/course-review/internal/handler"
	"github.com/sakif/course-review/internal/i18n"
)

func TestI18nHandler(t *testing.T) {
	e := newTestEnv(t)
	h := handler.NewI18nHandler(i18n.NewLoader(i18n.EmbeddedSource, e.logger), e.validate, handler.CookieConfig{}, e.logger)

	t.Run("dictionary by loose language code", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.HandleTranslations(rr, withParams(httptest.NewRequest(http.MethodGet, "/api/i18n/zh-tw", nil), "lang", "zh-tw"))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "zh-TW", rr.Header().Get("Content-Language"))
		assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
		dict := decode[map[string]string](t, rr)
		assert.Equal(t, "English", dict["language.en"])
	})

	t.Run("unsupported language", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.HandleTranslations(rr, withParams(httptest.NewRequest(http.MethodGet, "/api/i18n/fr", nil), "lang", "fr"))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("set language cookie", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.HandleSetLanguage(rr, jsonRequest(t, http.MethodPut, "/api/language", map[string]string{"language": "zh_cn"}))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, map[string]string{"language": "zh-CN"}, decode[map[string]string](t, rr))
		ck := cookieNamed(rr, i18n.CookieName)
		require.NotNil(t, ck)
		assert.Equal(t, "zh-CN", ck.Value)
		assert.False(t, ck.HttpOnly)
	})

	t.Run("reject unknown language", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.HandleSetLanguage(rr, jsonRequest(t, http.MethodPut, "/api/language", map[string]string{"language": "de"}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "language", decode[handler.ErrorResponse](t, rr).Field)
		assert.Nil(t, cookieNamed(rr, i18n.CookieName))
	})
}
