package i18n

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

// CookieName is the cookie remembering the chosen language.
const CookieName = "language"

// QueryParam overrides cookie and header for a single request.
const QueryParam = "lang"

var matcher = language.NewMatcher([]language.Tag{
	language.MustParse(English),
	language.MustParse(TraditionalChinese),
	language.MustParse(SimplifiedChinese),
})

// Negotiate picks the language from, in order, an explicit query value, the
// language cookie and the Accept-Language header. Script-only and regional
// variants match by script, so "zh-Hant" or "zh-HK" give zh-TW and "zh" gives
// zh-CN. Anything else falls back to English.
func Negotiate(query, cookie, acceptLanguage string) string {
	for _, explicit := range []string{query, cookie} {
		if lang, ok := Canonical(explicit); ok {
			return lang
		}
	}
	if acceptLanguage == "" {
		return DefaultLanguage
	}
	_, idx, conf := matcher.Match(parseAccept(acceptLanguage)...)
	if conf == language.No {
		return DefaultLanguage
	}
	return Languages[idx]
}

func parseAccept(header string) []language.Tag {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return nil
	}
	return tags
}

type contextKey struct{}

// WithLanguage stores lang in ctx.
func WithLanguage(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, contextKey{}, lang)
}

// FromContext returns the request language, DefaultLanguage when unset.
func FromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(contextKey{}).(string); ok {
		return lang
	}
	return DefaultLanguage
}

// Middleware negotiates the language of each request and stores it in the
// request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cookie string
		if c, err := r.Cookie(CookieName); err == nil {
			cookie = c.Value
		}
		lang := Negotiate(r.URL.Query().Get(QueryParam), cookie, r.Header.Get("Accept-Language"))
		next.ServeHTTP(w, r.WithContext(WithLanguage(r.Context(), lang)))
	})
}
