// Package parser turns the structured query syntax into an abstract syntax
// tree. Supported forms: bare terms, "quoted phrases", field:prefixes,
// +required and -excluded operands, NOT, AND, OR (AND binds tighter) and
// parenthesised groups. Juxtaposed operands combine with the caller's
// default operator. Text is not analyzed here.
package parser

import "strings"

// Occur says how a clause participates in its boolean parent.
type Occur int

const (
	// Default clauses follow the caller's default combination.
	Default Occur = iota
	Must
	Should
	MustNot
)

func (o Occur) String() string {
	switch o {
	case Must:
		return "+"
	case Should:
		return "?"
	case MustNot:
		return "-"
	default:
		return ""
	}
}

// Node is an element of the syntax tree: *Leaf or *Boolean.
type Node interface {
	String() string
}

// Leaf is a term or a phrase, optionally scoped to a named field.
type Leaf struct {
	Field  string
	Text   string
	Phrase bool
}

func (l *Leaf) String() string {
	var sb strings.Builder
	if l.Field != "" {
		sb.WriteString(l.Field)
		sb.WriteByte(':')
	}
	if l.Phrase {
		sb.WriteByte('"')
		sb.WriteString(l.Text)
		sb.WriteByte('"')
	} else {
		sb.WriteString(l.Text)
	}
	return sb.String()
}

type Clause struct {
	Occur Occur
	Node  Node
}

type Boolean struct {
	Clauses []Clause
}

func (b *Boolean) String() string {
	parts := make([]string, len(b.Clauses))
	for i, c := range b.Clauses {
		parts[i] = c.Occur.String() + c.Node.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Leaves returns the term and phrase leaves of n in query order.
func Leaves(n Node) []*Leaf {
	var out []*Leaf
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case *Leaf:
			out = append(out, n)
		case *Boolean:
			for _, c := range n.Clauses {
				walk(c.Node)
			}
		}
	}
	walk(n)
	return out
}

// Parse parses query into a syntax tree.
func Parse(query string) (Node, error) {
	tokens, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	if p.peek().kind == tokEOF {
		return nil, &SyntaxError{Pos: 0, Msg: "empty query"}
	}
	node, err := p.parseOr("")
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &SyntaxError{Pos: tok.pos, Msg: "unexpected " + tok.kind.String()}
	}
	return node, nil
}

type parser struct {
	tokens []lexToken
	pos    int
}

func (p *parser) peek() lexToken { return p.tokens[p.pos] }

func (p *parser) next() lexToken {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// parseOr := and ("OR" and)*
func (p *parser) parseOr(field string) (Node, error) {
	first, err := p.parseAnd(field)
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokOr {
		return first, nil
	}
	clauses := lift(nil, Should, first)
	for p.peek().kind == tokOr {
		p.next()
		next, err := p.parseAnd(field)
		if err != nil {
			return nil, err
		}
		clauses = lift(clauses, Should, next)
	}
	return &Boolean{Clauses: clauses}, nil
}

// parseAnd := seq ("AND" seq)*
func (p *parser) parseAnd(field string) (Node, error) {
	first, err := p.parseSeq(field)
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokAnd {
		return first, nil
	}
	clauses := lift(nil, Must, first)
	for p.peek().kind == tokAnd {
		p.next()
		next, err := p.parseSeq(field)
		if err != nil {
			return nil, err
		}
		clauses = lift(clauses, Must, next)
	}
	return &Boolean{Clauses: clauses}, nil
}

// parseSeq := unary+
func (p *parser) parseSeq(field string) (Node, error) {
	var clauses []Clause
	for {
		switch p.peek().kind {
		case tokEOF, tokRParen, tokAnd, tokOr:
			if len(clauses) == 0 {
				tok := p.peek()
				return nil, &SyntaxError{Pos: tok.pos, Msg: "expected operand before " + tok.kind.String()}
			}
			if len(clauses) == 1 && clauses[0].Occur == Default {
				return clauses[0].Node, nil
			}
			return &Boolean{Clauses: clauses}, nil
		}
		c, err := p.parseUnary(field)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
}

// parseUnary := ("+" | "-" | "NOT")? primary
func (p *parser) parseUnary(field string) (Clause, error) {
	occur := Default
	switch p.peek().kind {
	case tokPlus:
		p.next()
		occur = Must
	case tokMinus, tokNot:
		p.next()
		occur = MustNot
	}
	node, err := p.parsePrimary(field)
	if err != nil {
		return Clause{}, err
	}
	return Clause{Occur: occur, Node: node}, nil
}

// parsePrimary := field? (word | phrase | "(" or ")")
func (p *parser) parsePrimary(field string) (Node, error) {
	tok := p.next()
	if tok.kind == tokField {
		field = tok.text
		tok = p.next()
		if tok.kind != tokWord && tok.kind != tokPhrase && tok.kind != tokLParen {
			return nil, &SyntaxError{Pos: tok.pos, Msg: "expected value after field " + field}
		}
	}
	switch tok.kind {
	case tokWord:
		return &Leaf{Field: field, Text: tok.text}, nil
	case tokPhrase:
		if strings.TrimSpace(tok.text) == "" {
			return nil, &SyntaxError{Pos: tok.pos, Msg: "empty phrase"}
		}
		return &Leaf{Field: field, Text: tok.text, Phrase: true}, nil
	case tokLParen:
		if p.peek().kind == tokRParen {
			return nil, &SyntaxError{Pos: tok.pos, Msg: "empty group"}
		}
		node, err := p.parseOr(field)
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, &SyntaxError{Pos: tok.pos, Msg: "unbalanced parenthesis"}
		}
		return node, nil
	default:
		return nil, &SyntaxError{Pos: tok.pos, Msg: "unexpected " + tok.kind.String()}
	}
}

// lift appends node as a clause of its parent. A sub-expression that is a
// single prefixed operand keeps its own occur so that "a AND -b" excludes b.
func lift(clauses []Clause, occur Occur, node Node) []Clause {
	if b, ok := node.(*Boolean); ok && len(b.Clauses) == 1 && b.Clauses[0].Occur != Default {
		return append(clauses, b.Clauses[0])
	}
	return append(clauses, Clause{Occur: occur, Node: node})
}
