package phrase

import (
	"slices"
	"strings"
)

// Buckets is comment text split into phrase groups and free prose.
type Buckets struct {
	Positive map[Category][]string
	Negative map[Category][]string
	Neutral  []string
}

func newBuckets() Buckets {
	return Buckets{
		Positive: make(map[Category][]string),
		Negative: make(map[Category][]string),
	}
}

func (b Buckets) side(s Sentiment) map[Category][]string {
	if s == Negative {
		return b.Negative
	}
	return b.Positive
}

// Bullets returns every bullet phrase in the buckets, in no particular order.
func (b Buckets) Bullets() []string {
	var out []string
	for _, m := range []map[Category][]string{b.Positive, b.Negative} {
		for _, items := range m {
			out = append(out, items...)
		}
	}
	return out
}

// Parse splits text into buckets. A bold line carrying ✓ or ✗ opens a
// section, a bold known category label inside a section opens a category and
// "- " lines under it are bullets. Everything else is neutral prose and
// closes the current section.
func Parse(text string) Buckets {
	b := newBuckets()
	var (
		section  Sentiment
		category Category
	)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if inner, ok := bold(line); ok {
			if s, ok := sectionOf(inner); ok {
				section, category = s, ""
				continue
			}
			if c, ok := categoryOf(inner); ok && section != "" {
				category = c
				continue
			}
		}
		if item, ok := bullet(line); ok && section != "" && category != "" {
			side := b.side(section)
			if !slices.Contains(side[category], item) {
				side[category] = append(side[category], item)
			}
			continue
		}
		section, category = "", ""
		b.Neutral = append(b.Neutral, line)
	}
	return b
}

func bold(line string) (string, bool) {
	if len(line) > 4 && strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**") {
		return strings.TrimSpace(line[2 : len(line)-2]), true
	}
	return "", false
}

func bullet(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, prefix) {
			item := strings.TrimSpace(strings.TrimPrefix(line, prefix))
			return item, item != ""
		}
	}
	return "", false
}

func sectionOf(s string) (Sentiment, bool) {
	switch {
	case strings.HasPrefix(s, "✓"):
		return Positive, true
	case strings.HasPrefix(s, "✗"):
		return Negative, true
	}
	return "", false
}

func categoryOf(s string) (Category, bool) {
	for c, labels := range categoryLabels {
		for _, l := range labels {
			if strings.EqualFold(l, s) {
				return c, true
			}
		}
	}
	return "", false
}

// Render serialises buckets. Neutral prose comes first, then the positive
// and negative sections with categories in target order.
func Render(b Buckets, target Target, lang string) string {
	var blocks []string
	if len(b.Neutral) > 0 {
		blocks = append(blocks, strings.Join(b.Neutral, "\n"))
	}
	for _, s := range []Sentiment{Positive, Negative} {
		side := b.side(s)
		var groups []string
		for _, c := range orderedCategories(side, target) {
			items := side[c]
			if len(items) == 0 {
				continue
			}
			var sb strings.Builder
			sb.WriteString("**" + label(categoryLabels[c], lang) + "**")
			for _, item := range items {
				sb.WriteString("\n- " + item)
			}
			groups = append(groups, sb.String())
		}
		if len(groups) == 0 {
			continue
		}
		header := "**" + label(sectionLabels[s], lang) + "**"
		blocks = append(blocks, header+"\n"+strings.Join(groups, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func orderedCategories(side map[Category][]string, target Target) []Category {
	order := Categories(target)
	var extra []Category
	for c := range side {
		if !slices.Contains(order, c) {
			extra = append(extra, c)
		}
	}
	slices.Sort(extra)
	return append(order, extra...)
}

// Toggle adds ph to text if it is absent and removes it otherwise, then
// re-renders the whole comment. Matching accepts the phrase in any language.
func Toggle(text string, ph Phrase, lang string) string {
	b := Parse(text)
	side := b.side(ph.Sentiment)
	items := side[ph.Category]
	idx := slices.IndexFunc(items, ph.matches)
	if idx >= 0 {
		side[ph.Category] = slices.Delete(items, idx, idx+1)
	} else {
		side[ph.Category] = append(items, ph.TextFor(lang))
	}
	return Render(b, ph.Target, lang)
}

// Selection keeps the picked phrases apart from the user's own prose, so the
// comment can always be re-derived without parsing.
type Selection struct {
	Target   Target
	IDs      []string
	FreeText string
}

// Toggle flips id in the selection and reports whether it is now selected.
// Unknown ids and ids for another target are ignored.
func (s *Selection) Toggle(id string) bool {
	ph, ok := Lookup(id)
	if !ok || ph.Target != s.Target {
		return false
	}
	if i := slices.Index(s.IDs, id); i >= 0 {
		s.IDs = slices.Delete(s.IDs, i, i+1)
		return false
	}
	s.IDs = append(s.IDs, id)
	return true
}

func (s Selection) Has(id string) bool {
	return slices.Contains(s.IDs, id)
}

// Compose renders the selection as comment text in lang.
func (s Selection) Compose(lang string) string {
	b := newBuckets()
	if free := strings.TrimSpace(s.FreeText); free != "" {
		for _, line := range strings.Split(free, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				b.Neutral = append(b.Neutral, line)
			}
		}
	}
	for _, id := range s.IDs {
		ph, ok := Lookup(id)
		if !ok {
			continue
		}
		side := b.side(ph.Sentiment)
		side[ph.Category] = append(side[ph.Category], ph.TextFor(lang))
	}
	return Render(b, s.Target, lang)
}

// SelectionFromText recovers a selection from previously rendered text,
// used when an existing review is loaded for editing. Bullets that are not
// catalog phrases are kept as prose lines.
func SelectionFromText(text string, target Target) Selection {
	b := Parse(text)
	sel := Selection{Target: target}
	free := slices.Clone(b.Neutral)
	for _, s := range []Sentiment{Positive, Negative} {
		side := b.side(s)
		for _, c := range orderedCategories(side, target) {
			for _, item := range side[c] {
				if ph, ok := lookupText(target, item); ok && !sel.Has(ph.ID) {
					sel.IDs = append(sel.IDs, ph.ID)
					continue
				}
				free = append(free, "- "+item)
			}
		}
	}
	sel.FreeText = strings.Join(free, "\n")
	return sel
}
