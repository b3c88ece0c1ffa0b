package chatbot

import (
	"strings"
	"unicode"
)

// WordTokenizer splits on every rune that is not a letter, digit, apostrophe,
// hyphen, slash or colon, then trims those joiner runes from token edges.
// Case is preserved; consumers compare case-insensitively.
type WordTokenizer struct{}

func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{}
}

func (WordTokenizer) Tokenize(message string) []string {
	tokens := []string{}
	fields := strings.FieldsFunc(message, func(r rune) bool {
		return !isWordRune(r) && !isJoinerRune(r)
	})
	for _, f := range fields {
		t := strings.TrimFunc(f, isJoinerRune)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isJoinerRune(r rune) bool {
	switch r {
	case '\'', '’', '-', '/', ':':
		return true
	}
	return false
}

// lowerTokens returns a lowercased copy, with typographic apostrophes folded.
func lowerTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = strings.ToLower(strings.ReplaceAll(t, "’", "'"))
	}
	return out
}
