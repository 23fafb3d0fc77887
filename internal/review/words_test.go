package review

import "testing"

func TestCountWords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"spaces only", "  \n\t ", 0},
		{"english", "hello world", 2},
		{"ten words", tenWords, 10},
		{"hyphenated word", "co-op rocks", 2},
		{"punctuation only tokens", " - !!! ok ", 1},
		{"traditional chinese", "我喜歡這門課", 6},
		{"mixed scripts", "good 課程 ok", 4},
		{"japanese kana", "すごい", 3},
		{"markdown bullets", "**✓ Positive**\n- Workload is manageable", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountWords(tt.in); got != tt.want {
				t.Errorf("CountWords(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
