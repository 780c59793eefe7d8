package tokenizer

import (
	"strings"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"
)

// Filter rewrites a token in place. Returning false drops the token; the
// positions of the surviving tokens are left untouched so phrase distances
// stay aligned between indexing and querying.
type Filter interface {
	Apply(tok *Token) bool
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(tok *Token) bool

func (f FilterFunc) Apply(tok *Token) bool { return f(tok) }

// LowerCaser applies NFKC normalisation followed by lowercasing.
var LowerCaser = FilterFunc(func(tok *Token) bool {
	tok.Text = strings.ToLower(norm.NFKC.String(tok.Text))
	return true
})

// MinLength drops tokens shorter than n runes.
func MinLength(n int) Filter {
	return FilterFunc(func(tok *Token) bool {
		return utf8.RuneCountInString(tok.Text) >= n
	})
}

// StopWords drops tokens found in words. Lowercase before this filter.
func StopWords(words map[string]struct{}) Filter {
	return FilterFunc(func(tok *Token) bool {
		_, stop := words[tok.Text]
		return !stop
	})
}

// SuffixStemmer is the platform's lightweight English suffix stripper.
var SuffixStemmer = FilterFunc(func(tok *Token) bool {
	tok.Text = stem(tok.Text)
	return tok.Text != ""
})

// EnglishStopWords drops the Snowball English stop words.
var EnglishStopWords = FilterFunc(func(tok *Token) bool {
	return !english.IsStopWord(tok.Text)
})

// SnowballStemmer applies the Snowball (Porter2) English stemmer.
var SnowballStemmer = FilterFunc(func(tok *Token) bool {
	tok.Text = english.Stem(tok.Text, false)
	return tok.Text != ""
})

type filteredStream struct {
	inner   TokenStream
	filters []Filter
	cur     Token
}

func (s *filteredStream) Advance() bool {
next:
	for s.inner.Advance() {
		tok := s.inner.Token()
		for _, f := range s.filters {
			if !f.Apply(&tok) {
				continue next
			}
		}
		s.cur = tok
		return true
	}
	return false
}

func (s *filteredStream) Token() Token {
	return s.cur
}
