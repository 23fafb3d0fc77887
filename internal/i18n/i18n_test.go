package i18n

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =========================================================================
// DICTIONARIES
// =========================================================================

func TestParse_FlattensNestedKeys(t *testing.T) {
	d, err := Parse([]byte(`{"review":{"submitted":"Done","nested":{"deep":"x"}},"top":"y"}`))
	require.NoError(t, err)

	assert.Equal(t, Dictionary{
		"review.submitted":   "Done",
		"review.nested.deep": "x",
		"top":                "y",
	}, d)
}

func TestParse_RejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`not json`, `["a"]`, `"str"`} {
		_, err := Parse([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestEmbeddedSource_AllLanguagesShareKeys(t *testing.T) {
	en, err := EmbeddedSource(context.Background(), English)
	require.NoError(t, err)
	require.NotEmpty(t, en)

	for _, lang := range Languages[1:] {
		d, err := EmbeddedSource(context.Background(), lang)
		require.NoError(t, err, lang)
		for key := range en {
			assert.Contains(t, d, key, "%s is missing %s", lang, key)
		}
	}
}

func TestEmbeddedSource_Unsupported(t *testing.T) {
	_, err := EmbeddedSource(context.Background(), "fr")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

// =========================================================================
// LOADER
// =========================================================================

func TestLoader_CachesAndDeduplicates(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	src := func(ctx context.Context, lang string) (Dictionary, error) {
		calls.Add(1)
		<-release
		return Dictionary{"k": lang}, nil
	}
	l := NewLoader(src, discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Load(context.Background(), TraditionalChinese)
			assert.NoError(t, err)
			assert.Equal(t, TraditionalChinese, d["k"])
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	_, err := l.Load(context.Background(), TraditionalChinese)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoader_FailureIsNotCached(t *testing.T) {
	var calls atomic.Int32
	src := func(ctx context.Context, lang string) (Dictionary, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("offline")
		}
		return Dictionary{"k": "v"}, nil
	}
	l := NewLoader(src, discardLogger())

	_, err := l.Load(context.Background(), English)
	require.Error(t, err)
	_, err = l.Load(context.Background(), English)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoader_T_FallsBack(t *testing.T) {
	l := NewLoader(func(ctx context.Context, lang string) (Dictionary, error) {
		if lang == English {
			return Dictionary{"greet": "Hello", "bye": "Bye"}, nil
		}
		return Dictionary{"greet": "你好"}, nil
	}, discardLogger())

	assert.Equal(t, "greet", l.T(TraditionalChinese, "greet"), "nothing loaded yet")

	require.NoError(t, l.Preload(context.Background(), English, TraditionalChinese))

	assert.Equal(t, "你好", l.T(TraditionalChinese, "greet"))
	assert.Equal(t, "Bye", l.T(TraditionalChinese, "bye"))
	assert.Equal(t, "missing.key", l.T(TraditionalChinese, "missing.key"))
}

func TestLoader_UnsupportedLanguage(t *testing.T) {
	l := NewLoader(nil, discardLogger())
	_, err := l.Load(context.Background(), "de")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

// =========================================================================
// NEGOTIATION
// =========================================================================

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name                  string
		query, cookie, accept string
		want                  string
	}{
		{"query wins", "zh-CN", "zh-TW", "en", SimplifiedChinese},
		{"query is case-insensitive", "ZH_tw", "", "", TraditionalChinese},
		{"cookie next", "", "zh-TW", "zh-CN", TraditionalChinese},
		{"bad query falls through", "klingon", "zh-CN", "", SimplifiedChinese},
		{"header english", "", "", "en-US,en;q=0.9", English},
		{"header traditional script", "", "", "zh-Hant", TraditionalChinese},
		{"header bare chinese", "", "", "zh", SimplifiedChinese},
		{"header unsupported", "", "", "fr-FR", English},
		{"nothing", "", "", "", English},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Negotiate(tt.query, tt.cookie, tt.accept))
		})
	}
}

func TestMiddleware_StoresLanguage(t *testing.T) {
	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "zh-TW"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, TraditionalChinese, got)
	assert.Equal(t, English, FromContext(context.Background()))
}
