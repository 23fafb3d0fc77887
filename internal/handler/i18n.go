package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/i18n"
)

// languageCookieAge is how long the chosen UI language is remembered.
const languageCookieAge = 365 * 24 * time.Hour

// I18nHandler serves the translation dictionaries and stores the language
// choice.
type I18nHandler struct {
	texts    *i18n.Loader
	validate *Validator
	cookies  CookieConfig
	logger   *slog.Logger
}

func NewI18nHandler(texts *i18n.Loader, validate *Validator, cookies CookieConfig, logger *slog.Logger) *I18nHandler {
	return &I18nHandler{texts: texts, validate: validate, cookies: cookies, logger: logger}
}

// HandleTranslations returns the flattened dictionary of one language. It
// is the same for every user, so browsers may cache it for an hour.
//
// HTTP: GET /api/i18n/{lang}
func (h *I18nHandler) HandleTranslations(w http.ResponseWriter, r *http.Request) {
	lang, ok := i18n.Canonical(chi.URLParam(r, "lang"))
	if !ok {
		writeError(w, apperror.NotFound("language", chi.URLParam(r, "lang")))
		return
	}
	dict, err := h.texts.Load(r.Context(), lang)
	if err != nil {
		if errors.Is(err, i18n.ErrUnsupportedLanguage) {
			writeError(w, apperror.NotFound("language", lang))
			return
		}
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Content-Language", lang)
	writeJSON(w, http.StatusOK, dict)
}

type languageRequest struct {
	Language string `json:"language" validate:"required"`
}

// HandleSetLanguage remembers the UI language in the language cookie. The
// cookie is readable by scripts because the client renders with it before
// any API call.
//
// HTTP: PUT /api/language
func (h *I18nHandler) HandleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := h.validate.bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	lang, ok := i18n.Canonical(req.Language)
	if !ok {
		writeError(w, apperror.ValidationFailed("language", "language must be one of en, zh-TW, zh-CN"))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     i18n.CookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   int(languageCookieAge.Seconds()),
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"language": lang})
}
