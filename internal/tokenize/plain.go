package tokenize

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/toridasu/internal/models"
)

// tokenizePlain splits text into whitespace-separated tokens with synthetic
// positions: Y is the line ordinal times the line spacing, X the rune offset
// within the line. Invalid UTF-8 is replaced, never dropped.
func tokenizePlain(text string) []models.RawToken {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	var tokens []models.RawToken
	for li, line := range strings.Split(text, "\n") {
		offset := 0
		rest := line
		for {
			trimmed := strings.TrimLeft(rest, " \t")
			offset += utf8.RuneCountInString(rest) - utf8.RuneCountInString(trimmed)
			if trimmed == "" {
				break
			}
			end := strings.IndexAny(trimmed, " \t")
			word := trimmed
			if end >= 0 {
				word = trimmed[:end]
			}
			width := utf8.RuneCountInString(word)
			tokens = append(tokens, models.RawToken{
				Text:  word,
				Page:  1,
				X:     float64(offset),
				Y:     float64(li) * lineSpacing,
				Width: float64(width),
			})
			offset += width
			if end < 0 {
				break
			}
			rest = trimmed[end:]
		}
	}
	return tokens
}
