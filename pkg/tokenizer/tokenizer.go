package tokenizer

import (
	"strings"
	"unicode"
)

// CountTokens provides a rough token count estimate.
// Latin text runs at ~4/3 tokens per word; CJK characters count one each.
func CountTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	cjk := 0
	var latin strings.Builder
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			cjk++
			latin.WriteRune(' ')
			continue
		}
		latin.WriteRune(r)
	}
	words := strings.Fields(latin.String())
	return max(len(words)*4/3+cjk, 1)
}

// CountTokensForModel returns estimated token count.
func CountTokensForModel(text, model string) int {
	_ = model // same estimate for every vision model we route to
	return CountTokens(text)
}
