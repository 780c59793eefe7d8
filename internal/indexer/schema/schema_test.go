package schema

import "testing"

func TestBuilderAssignsSequentialIDs(t *testing.T) {
	s, err := NewBuilder().
		AddTextField("title", TextOptions{Stored: true}).
		AddTextField("body", TextOptions{Indexed: true, Stored: true, Tokenizer: "default"}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	body, ok := s.FieldByName("body")
	if !ok || body.ID != 1 {
		t.Fatalf("body = %+v, ok = %v", body, ok)
	}
	if f, ok := s.Field(0); !ok || f.Name != "title" {
		t.Fatalf("Field(0) = %+v, ok = %v", f, ok)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestBuilderRejectsDuplicates(t *testing.T) {
	_, err := NewBuilder().
		AddTextField("body", TextOptions{Indexed: true}).
		AddTextField("body", TextOptions{}).
		Build()
	if err == nil {
		t.Fatal("expected duplicate field error")
	}
}

func TestSingleTextField(t *testing.T) {
	s, err := NewBuilder().
		AddTextField("raw", TextOptions{Stored: true}).
		AddTextField("body", TextOptions{Indexed: true, Tokenizer: "default"}).
		AddTextField("summary", TextOptions{Indexed: true, Tokenizer: "default"}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	f, ok := s.SingleTextField()
	if !ok || f.Name != "body" {
		t.Fatalf("SingleTextField() = %+v, %v; want body", f, ok)
	}

	none, err := NewBuilder().AddTextField("raw", TextOptions{Stored: true}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := none.SingleTextField(); ok {
		t.Fatal("expected no indexed text field")
	}
}
