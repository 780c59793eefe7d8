package query

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/parser"
)

// NaturalLanguage treats the sentence as free text: every distinct term the
// field analyzer produces becomes a clause combined with OR or AND.
type NaturalLanguage struct {
	params Params
}

func NewNaturalLanguage(p Params) *NaturalLanguage {
	return &NaturalLanguage{params: p}
}

func (s *NaturalLanguage) Name() string   { return "natural_language" }
func (s *NaturalLanguage) Params() Params { return s.params }

func (s *NaturalLanguage) Build(idx Index) (Query, error) {
	field, ok := idx.Schema().SingleTextField()
	if !ok {
		return Empty(), nil
	}
	analyzer, err := idx.Analyzer(field)
	if err != nil {
		return nil, err
	}
	occur := defaultOccur(s.params.CombineWithOr)
	q := &BooleanQuery{}
	for _, term := range analyzer.Terms(s.params.Sentence) {
		q.Clauses = append(q.Clauses, Clause{Occur: occur, Query: &TermQuery{Field: field.ID, Text: term}})
	}
	return q, nil
}

// Standard parses the sentence as structured query syntax. Operands without
// an explicit operator combine with OR or AND according to CombineWithOr.
type Standard struct {
	params Params
}

func NewStandard(p Params) *Standard {
	return &Standard{params: p}
}

func (s *Standard) Name() string   { return "standard" }
func (s *Standard) Params() Params { return s.params }

func (s *Standard) Build(idx Index) (Query, error) {
	node, err := parser.Parse(s.params.Sentence)
	if err != nil {
		return nil, fmt.Errorf("parsing query %q: %w", s.params.Sentence, err)
	}
	def, ok := idx.Schema().SingleTextField()
	if !ok {
		return Empty(), nil
	}
	b := &planBuilder{
		idx:       idx,
		def:       def,
		occur:     defaultOccur(s.params.CombineWithOr),
		analyzers: make(map[schema.FieldID]*tokenizer.Analyzer),
	}
	q, err := b.convert(node)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return Empty(), nil
	}
	return q, nil
}

type planBuilder struct {
	idx       Index
	def       schema.Field
	occur     Occur
	analyzers map[schema.FieldID]*tokenizer.Analyzer
}

func (b *planBuilder) convert(node parser.Node) (Query, error) {
	switch n := node.(type) {
	case *parser.Leaf:
		return b.leaf(n)
	case *parser.Boolean:
		q := &BooleanQuery{}
		for _, c := range n.Clauses {
			child, err := b.convert(c.Node)
			if err != nil {
				return nil, err
			}
			if child == nil {
				continue
			}
			q.Clauses = append(q.Clauses, Clause{Occur: b.occurOf(c.Occur), Query: child})
		}
		switch {
		case len(q.Clauses) == 0:
			return nil, nil
		case len(q.Clauses) == 1 && q.Clauses[0].Occur != MustNot:
			return q.Clauses[0].Query, nil
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unsupported query node %T", node)
	}
}

func (b *planBuilder) leaf(l *parser.Leaf) (Query, error) {
	field := b.def
	if l.Field != "" {
		f, ok := b.idx.Schema().FieldByName(l.Field)
		if !ok {
			return nil, fmt.Errorf("unknown field %q", l.Field)
		}
		if !f.Indexed {
			return nil, fmt.Errorf("field %q is not indexed", l.Field)
		}
		field = f
	}
	analyzer, ok := b.analyzers[field.ID]
	if !ok {
		var err error
		analyzer, err = b.idx.Analyzer(field)
		if err != nil {
			return nil, err
		}
		b.analyzers[field.ID] = analyzer
	}
	return fromTokens(field.ID, analyzer.Analyze(l.Text)), nil
}

func (b *planBuilder) occurOf(o parser.Occur) Occur {
	switch o {
	case parser.Must:
		return Must
	case parser.Should:
		return Should
	case parser.MustNot:
		return MustNot
	default:
		return b.occur
	}
}
