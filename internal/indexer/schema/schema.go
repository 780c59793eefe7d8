// Package schema describes the fields of an index. Field identifiers are
// opaque handles assigned in declaration order; nothing outside this
// package derives meaning from their numeric value.
package schema

import (
	"fmt"
	"log/slog"
)

// FieldID identifies a field within one schema.
type FieldID uint32

// Field is a single text column of the index.
type Field struct {
	ID        FieldID `cbor:"id" json:"id"`
	Name      string  `cbor:"name" json:"name"`
	Indexed   bool    `cbor:"indexed" json:"indexed"`
	Stored    bool    `cbor:"stored" json:"stored"`
	Tokenizer string  `cbor:"tokenizer" json:"tokenizer"`
}

// Schema is the immutable field list of an index.
type Schema struct {
	Fields []Field `cbor:"fields" json:"fields"`
}

// TextOptions configures a field added through the Builder.
type TextOptions struct {
	Indexed   bool
	Stored    bool
	Tokenizer string
}

// Builder assigns field identifiers in the order fields are added.
type Builder struct {
	fields []Field
	names  map[string]struct{}
	err    error
}

func NewBuilder() *Builder {
	return &Builder{names: make(map[string]struct{})}
}

func (b *Builder) AddTextField(name string, opts TextOptions) *Builder {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = fmt.Errorf("field name must not be empty")
		return b
	}
	if _, dup := b.names[name]; dup {
		b.err = fmt.Errorf("duplicate field %q", name)
		return b
	}
	b.names[name] = struct{}{}
	b.fields = append(b.fields, Field{
		ID:        FieldID(len(b.fields)),
		Name:      name,
		Indexed:   opts.Indexed,
		Stored:    opts.Stored,
		Tokenizer: opts.Tokenizer,
	})
	return b
}

func (b *Builder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.fields) == 0 {
		return nil, fmt.Errorf("schema has no fields")
	}
	fields := make([]Field, len(b.fields))
	copy(fields, b.fields)
	return &Schema{Fields: fields}, nil
}

// Field returns the field with the given identifier.
func (s *Schema) Field(id FieldID) (Field, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// FieldByName returns the field with the given name.
func (s *Schema) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// IndexedTextFields returns the indexed fields in declaration order.
func (s *Schema) IndexedTextFields() []Field {
	out := make([]Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Indexed {
			out = append(out, f)
		}
	}
	return out
}

// SingleTextField returns the first indexed text field. BM25 search is
// scoped to one text field per index: additional indexed fields are ignored
// and reported once per call so the limitation never passes unnoticed.
func (s *Schema) SingleTextField() (Field, bool) {
	indexed := s.IndexedTextFields()
	if len(indexed) == 0 {
		return Field{}, false
	}
	if len(indexed) > 1 {
		ignored := make([]string, 0, len(indexed)-1)
		for _, f := range indexed[1:] {
			ignored = append(ignored, f.Name)
		}
		slog.Warn("bm25 search supports a single indexed text field, ignoring the rest",
			"component", "schema",
			"field", indexed[0].Name,
			"ignored", ignored,
		)
	}
	return indexed[0], true
}

// Validate checks identifiers are dense and names unique.
func (s *Schema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if f.ID != FieldID(i) {
			return fmt.Errorf("field %q has id %d, expected %d", f.Name, f.ID, i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}
