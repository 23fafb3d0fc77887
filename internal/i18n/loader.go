package i18n

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Source fetches the dictionary for one language.
type Source func(ctx context.Context, lang string) (Dictionary, error)

// Loader caches dictionaries per language. Concurrent loads of the same
// language share one Source call; failed loads are not cached, so the next
// call retries.
type Loader struct {
	source Source
	logger *slog.Logger

	mu    sync.RWMutex
	dicts map[string]Dictionary
	group singleflight.Group
}

func NewLoader(source Source, logger *slog.Logger) *Loader {
	if source == nil {
		source = EmbeddedSource
	}
	return &Loader{source: source, logger: logger, dicts: make(map[string]Dictionary)}
}

func (l *Loader) cached(lang string) (Dictionary, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.dicts[lang]
	return d, ok
}

// Load returns the dictionary for lang, fetching it on first use.
func (l *Loader) Load(ctx context.Context, lang string) (Dictionary, error) {
	if !Supported(lang) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	if d, ok := l.cached(lang); ok {
		return d, nil
	}

	v, err, _ := l.group.Do(lang, func() (any, error) {
		if d, ok := l.cached(lang); ok {
			return d, nil
		}
		d, err := l.source(ctx, lang)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.dicts[lang] = d
		l.mu.Unlock()
		l.logger.Debug("dictionary loaded", slog.String("lang", lang), slog.Int("keys", len(d)))
		return d, nil
	})
	if err != nil {
		return nil, fmt.Errorf("i18n: loading %s: %w", lang, err)
	}
	return v.(Dictionary), nil
}

// Preload loads langs in parallel and returns the first error.
func (l *Loader) Preload(ctx context.Context, langs ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, lang := range langs {
		g.Go(func() error {
			_, err := l.Load(ctx, lang)
			return err
		})
	}
	return g.Wait()
}

// T translates key using only cached dictionaries: lang first, then
// English, then the key itself. It never blocks on a Source.
func (l *Loader) T(lang, key string) string {
	if d, ok := l.cached(lang); ok {
		if s, ok := d[key]; ok {
			return s
		}
	}
	if d, ok := l.cached(DefaultLanguage); ok {
		if s, ok := d[key]; ok {
			return s
		}
	}
	return key
}
