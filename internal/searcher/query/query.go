// Package query builds engine-independent BM25 query plans. A Strategy
// turns user parameters into a plan once the target index's schema and
// analyzers are known; the executor runs the plan.
package query

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/errors"
)

// Params are the user-facing knobs shared by every strategy.
type Params struct {
	Sentence string
	TopK     int
	// AliveBitmap is byte-packed: row r is alive when bit r%8 (least
	// significant first) of byte r/8 is set.
	AliveBitmap   []byte
	ApplyFilter   bool
	NeedDocument  bool
	CombineWithOr bool
}

// Validate rejects parameters no strategy can run with.
func (p Params) Validate() error {
	if p.TopK <= 0 {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "topk must be positive, got %d", p.TopK)
	}
	return nil
}

// Index is what a strategy needs to know about the target index.
type Index interface {
	Schema() *schema.Schema
	Analyzer(field schema.Field) (*tokenizer.Analyzer, error)
}

// Strategy builds a plan for one query.
type Strategy interface {
	Name() string
	Params() Params
	Build(idx Index) (Query, error)
}

// Query is a node of a plan: *TermQuery, *PhraseQuery or *BooleanQuery.
type Query interface {
	String() string
}

type TermQuery struct {
	Field schema.FieldID
	Text  string
}

func (q *TermQuery) String() string {
	return fmt.Sprintf("%d:%s", q.Field, q.Text)
}

// PhraseQuery matches Terms at the given relative positions.
type PhraseQuery struct {
	Field   schema.FieldID
	Terms   []string
	Offsets []uint32
}

func (q *PhraseQuery) String() string {
	return fmt.Sprintf("%d:%q", q.Field, strings.Join(q.Terms, " "))
}

type Occur int

const (
	Must Occur = iota
	Should
	MustNot
)

type Clause struct {
	Occur Occur
	Query Query
}

// BooleanQuery combines clauses. With at least one Must clause the matches
// are the intersection of the Must clauses and Should clauses only add to
// the score; otherwise the matches are the union of the Should clauses.
// MustNot clauses are subtracted. A query without positive clauses matches
// nothing.
type BooleanQuery struct {
	Clauses []Clause
}

func (q *BooleanQuery) String() string {
	parts := make([]string, len(q.Clauses))
	for i, c := range q.Clauses {
		prefix := ""
		switch c.Occur {
		case Must:
			prefix = "+"
		case MustNot:
			prefix = "-"
		}
		parts[i] = prefix + c.Query.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Empty returns the plan that matches nothing.
func Empty() Query { return &BooleanQuery{} }

func defaultOccur(combineWithOr bool) Occur {
	if combineWithOr {
		return Should
	}
	return Must
}

// fromTokens turns analyzed text into a term query or, when it yields
// several tokens, a phrase query. It returns nil when the text analyzes to
// nothing.
func fromTokens(field schema.FieldID, tokens []tokenizer.Token) Query {
	switch {
	case len(tokens) == 0:
		return nil
	case len(tokens) == 1:
		return &TermQuery{Field: field, Text: tokens[0].Text}
	}
	q := &PhraseQuery{Field: field}
	first := tokens[0].Position
	for _, tok := range tokens {
		q.Terms = append(q.Terms, tok.Text)
		q.Offsets = append(q.Offsets, uint32(tok.Position-first))
	}
	return q
}
