// Package i18n loads per-language message dictionaries, caches them in
// memory and picks the language of a request.
//
// Dictionaries are nested JSON objects flattened to dotted keys:
//
//	{"review": {"submitted": "..."}}  →  "review.submitted"
//
// The server embeds the three dictionaries; clients load them from
// GET /api/i18n/{lang} through the same Loader with a different Source.
package i18n

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Supported languages, in preference order for negotiation ties.
const (
	English            = "en"
	TraditionalChinese = "zh-TW"
	SimplifiedChinese  = "zh-CN"

	DefaultLanguage = English
)

// Languages lists every supported language code.
var Languages = []string{English, TraditionalChinese, SimplifiedChinese}

var ErrUnsupportedLanguage = errors.New("i18n: unsupported language")

// Dictionary maps a dotted message key to its text.
type Dictionary map[string]string

//go:embed locales/*.json
var locales embed.FS

// Supported reports whether lang is one of Languages (exact match).
func Supported(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Canonical returns the supported code equal to lang ignoring case and
// "_" vs "-", e.g. "zh_tw" → "zh-TW".
func Canonical(lang string) (string, bool) {
	norm := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	for _, l := range Languages {
		if strings.EqualFold(l, norm) {
			return l, true
		}
	}
	return "", false
}

// Parse flattens a nested JSON dictionary.
func Parse(raw []byte) (Dictionary, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("i18n: dictionary is not valid JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, errors.New("i18n: dictionary must be a JSON object")
	}
	dict := make(Dictionary)
	flatten(dict, "", root)
	return dict, nil
}

func flatten(dict Dictionary, prefix string, v gjson.Result) {
	v.ForEach(func(k, val gjson.Result) bool {
		key := k.String()
		if prefix != "" {
			key = prefix + "." + key
		}
		if val.IsObject() {
			flatten(dict, key, val)
		} else {
			dict[key] = val.String()
		}
		return true
	})
}

// EmbeddedSource reads the dictionaries compiled into the binary.
func EmbeddedSource(_ context.Context, lang string) (Dictionary, error) {
	if !Supported(lang) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	raw, err := locales.ReadFile("locales/" + lang + ".json")
	if err != nil {
		return nil, fmt.Errorf("i18n: reading %s: %w", lang, err)
	}
	return Parse(raw)
}
