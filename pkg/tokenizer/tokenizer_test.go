package tokenizer

import "testing"

func TestCountTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   \n", 0},
		{"one", 1},
		{"patient shows mild anemia", 5},
		{"血常规", 3},
		{"Hb 血红蛋白 135", 2*4/3 + 4},
	}
	for _, tt := range tests {
		if got := CountTokens(tt.text); got != tt.want {
			t.Errorf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
