// Package tokenutil counts prompt tokens with tiktoken's cl100k_base encoding
// and falls back to a character heuristic if the encoding fails to load.
package tokenutil

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	once     sync.Once
	encoding *tiktoken.Tiktoken
)

func initEncoding() {
	once.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoding = enc
		}
	})
}

// Count returns the token count of text.
func Count(text string) int {
	initEncoding()
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return estimate(text)
}

// TruncateLines drops lines from the front of lines until the joined text fits
// within budget tokens. History prompts keep the newest conversation.
func TruncateLines(lines []string, budget int) []string {
	if budget <= 0 || len(lines) == 0 {
		return nil
	}
	total := 0
	counts := make([]int, len(lines))
	for i, line := range lines {
		counts[i] = Count(line) + 1 // newline
		total += counts[i]
	}
	start := 0
	for start < len(lines) && total > budget {
		total -= counts[start]
		start++
	}
	return lines[start:]
}

func estimate(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	n := len([]rune(trimmed)) / 4
	if words := len(strings.Fields(trimmed)); n < words {
		n = words
	}
	if n == 0 {
		n = 1
	}
	return n
}
