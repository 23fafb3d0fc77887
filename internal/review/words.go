package review

import "unicode"

// Word count bounds for every free-text field.
const (
	MinWords = 5
	MaxWords = 1000
)

// CountWords counts whitespace-separated words. Chinese, Japanese and Korean
// script is written without spaces, so each such character counts as a word
// on its own. Tokens made only of punctuation are not words.
func CountWords(s string) int {
	n := 0
	inWord, hasContent := false, false
	flush := func() {
		if inWord && hasContent {
			n++
		}
		inWord, hasContent = false, false
	}
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			flush()
		case isCJK(r):
			flush()
			n++
		default:
			inWord = true
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				hasContent = true
			}
		}
	}
	flush()
	return n
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

func inWordRange(s string) bool {
	n := CountWords(s)
	return n >= MinWords && n <= MaxWords
}
