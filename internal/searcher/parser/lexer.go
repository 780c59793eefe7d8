package parser

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPhrase
	tokField
	tokAnd
	tokOr
	tokNot
	tokPlus
	tokMinus
	tokLParen
	tokRParen
	tokEOF
)

func (k tokenKind) String() string {
	switch k {
	case tokWord:
		return "word"
	case tokPhrase:
		return "phrase"
	case tokField:
		return "field"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	case tokPlus:
		return "+"
	case tokMinus:
		return "-"
	case tokLParen:
		return "("
	case tokRParen:
		return ")"
	default:
		return "end of query"
	}
}

type lexToken struct {
	kind tokenKind
	text string
	pos  int
}

func isWordBreak(r rune) bool {
	return unicode.IsSpace(r) || r == '(' || r == ')' || r == '"'
}

// lex splits a query into tokens. Operators are recognised only in upper
// case; "+" and "-" are operators only at the start of a word.
func lex(query string) ([]lexToken, error) {
	var tokens []lexToken
	i := 0
	for i < len(query) {
		c := query[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, lexToken{kind: tokLParen, pos: i})
			i++
		case c == ')':
			tokens = append(tokens, lexToken{kind: tokRParen, pos: i})
			i++
		case c == '"':
			end := strings.IndexByte(query[i+1:], '"')
			if end < 0 {
				return nil, &SyntaxError{Pos: i, Msg: "unterminated phrase"}
			}
			tokens = append(tokens, lexToken{kind: tokPhrase, text: query[i+1 : i+1+end], pos: i})
			i += end + 2
		case (c == '+' || c == '-') && startsWord(query, i):
			kind := tokPlus
			if c == '-' {
				kind = tokMinus
			}
			tokens = append(tokens, lexToken{kind: kind, pos: i})
			i++
		default:
			start := i
			for i < len(query) {
				r := rune(query[i])
				if r < 0x80 && isWordBreak(r) {
					break
				}
				i++
			}
			tokens = append(tokens, wordTokens(query[start:i], start)...)
		}
	}
	tokens = append(tokens, lexToken{kind: tokEOF, pos: len(query)})
	return tokens, nil
}

// startsWord reports whether the sign at i prefixes a following operand.
func startsWord(query string, i int) bool {
	if i > 0 && !isWordBreak(rune(query[i-1])) {
		return false
	}
	return i+1 < len(query) && !unicode.IsSpace(rune(query[i+1])) && query[i+1] != ')'
}

func wordTokens(word string, pos int) []lexToken {
	switch word {
	case "AND", "&&":
		return []lexToken{{kind: tokAnd, pos: pos}}
	case "OR", "||":
		return []lexToken{{kind: tokOr, pos: pos}}
	case "NOT":
		return []lexToken{{kind: tokNot, pos: pos}}
	}
	if idx := strings.IndexByte(word, ':'); idx > 0 {
		field := lexToken{kind: tokField, text: word[:idx], pos: pos}
		if rest := word[idx+1:]; rest != "" {
			return []lexToken{field, {kind: tokWord, text: rest, pos: pos + idx + 1}}
		}
		return []lexToken{field}
	}
	return []lexToken{{kind: tokWord, text: word, pos: pos}}
}

// SyntaxError reports a malformed query and the byte offset it was found at.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("query syntax error at offset %d: %s", e.Pos, e.Msg)
}
