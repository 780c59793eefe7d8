package tokenizer

import "iter"

// Token is one analyzed term together with its location in the source text.
// OffsetFrom and OffsetTo are byte offsets into the analyzed string; Text may
// differ from source[OffsetFrom:OffsetTo] once filters (lowercasing,
// stemming) have rewritten it.
type Token struct {
	OffsetFrom     int    `json:"offset_from"`
	OffsetTo       int    `json:"offset_to"`
	Position       int    `json:"position"`
	Text           string `json:"text"`
	PositionLength int    `json:"position_length"`
}

// TokenStream produces tokens incrementally. Token is only valid after a
// call to Advance returned true.
type TokenStream interface {
	Advance() bool
	Token() Token
}

// Tokenizer splits raw text into a TokenStream.
type Tokenizer interface {
	TokenStream(text string) TokenStream
}

// Seq adapts a TokenStream into a single-pass iterator.
func Seq(ts TokenStream) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for ts.Advance() {
			if !yield(ts.Token()) {
				return
			}
		}
	}
}

// Collect drains a TokenStream.
func Collect(ts TokenStream) []Token {
	var out []Token
	for tok := range Seq(ts) {
		out = append(out, tok)
	}
	return out
}

// sliceStream replays precomputed tokens.
type sliceStream struct {
	tokens []Token
	next   int
	cur    Token
}

func (s *sliceStream) Advance() bool {
	if s.next >= len(s.tokens) {
		return false
	}
	s.cur = s.tokens[s.next]
	s.next++
	return true
}

func (s *sliceStream) Token() Token {
	return s.cur
}
