// Package tokenizer provides the analyzers used to index and query text
// fields. An analyzer is a base tokenizer followed by token filters; the
// schema selects one by name per field.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
)

// SimpleTokenizer splits on every rune that is neither a letter nor a digit.
type SimpleTokenizer struct{}

func (SimpleTokenizer) TokenStream(text string) TokenStream {
	return &sliceStream{tokens: splitTokens(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})}
}

// WhitespaceTokenizer splits on Unicode white space only.
type WhitespaceTokenizer struct{}

func (WhitespaceTokenizer) TokenStream(text string) TokenStream {
	return &sliceStream{tokens: splitTokens(text, unicode.IsSpace)}
}

// RawTokenizer emits the whole value as a single token.
type RawTokenizer struct{}

func (RawTokenizer) TokenStream(text string) TokenStream {
	if text == "" {
		return &sliceStream{}
	}
	return &sliceStream{tokens: []Token{{
		OffsetFrom:     0,
		OffsetTo:       len(text),
		Text:           text,
		PositionLength: 1,
	}}}
}

// WordTokenizer segments text on UAX#29 word boundaries, which handles
// scripts without spaces between words, and hands the word segments to a
// SegmentStream. Segments carrying no letter or digit (spaces,
// punctuation) are skipped.
type WordTokenizer struct{}

func (WordTokenizer) TokenStream(text string) TokenStream {
	return newSegmentStream(text, Segment(text))
}

// Segment returns the UAX#29 word segments of text that contain at least
// one letter or digit. The returned strings share text's memory.
func Segment(text string) []string {
	var segments []string
	iter := words.FromString(text)
	for iter.Next() {
		word := iter.Value()
		if isWord(word) {
			segments = append(segments, word)
		}
	}
	return segments
}

func isWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func splitTokens(text string, isSep func(rune) bool) []Token {
	tokens := make([]Token, 0, len(text)/6)
	start := -1
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if isSep(r) {
			if start >= 0 {
				tokens = append(tokens, newToken(text, start, i, len(tokens)))
				start = -1
			}
		} else if start < 0 {
			start = i
		}
		i += size
	}
	if start >= 0 {
		tokens = append(tokens, newToken(text, start, len(text), len(tokens)))
	}
	return tokens
}

func newToken(text string, from, to, position int) Token {
	return Token{
		OffsetFrom:     from,
		OffsetTo:       to,
		Position:       position,
		Text:           text[from:to],
		PositionLength: 1,
	}
}

// Tokenize runs the default analyzer over text.
func Tokenize(text string) []Token {
	return Default().Analyze(text)
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// stem applies a simple suffix-stripping stemmer to the given word.
func stem(word string) string {
	for _, rule := range suffixRules {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}

var suffixRules = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}
