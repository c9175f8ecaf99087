package content

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tokens outside [MinTokenLength, MaxTokenLength] runes are discarded as noise.
const (
	MinTokenLength = 3
	MaxTokenLength = 32
)

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	nonWordPattern = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]+`)
)

// Words lower-cases text, strips markup and punctuation, and splits what is
// left on whitespace. Every token is kept, whatever its length.
func Words(text string) []string {
	// A Caser holds state and is not safe for concurrent use.
	lower := cases.Lower(language.Und).String(text)
	lower = tagPattern.ReplaceAllString(lower, " ")
	lower = html.UnescapeString(lower)
	lower = nonWordPattern.ReplaceAllString(lower, " ")
	return strings.Fields(lower)
}

// Tokenize counts every word of text between 3 and 32 runes long.
func Tokenize(text string) map[string]int {
	freq := make(map[string]int)
	for _, tok := range Words(text) {
		n := utf8.RuneCountInString(tok)
		if n < MinTokenLength || n > MaxTokenLength {
			continue
		}
		freq[tok]++
	}
	return freq
}
