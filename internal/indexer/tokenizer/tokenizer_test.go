package tokenizer

import (
	"reflect"
	"strings"
	"testing"
)

func TestSegmentStreamOffsets(t *testing.T) {
	src := "brown fox jumps"
	segments := []string{src[0:5], src[6:9], src[10:15]}
	stream, err := NewSegmentStream(src, segments)
	if err != nil {
		t.Fatalf("NewSegmentStream: %v", err)
	}

	want := []Token{
		{OffsetFrom: 0, OffsetTo: 5, Position: 0, Text: "brown", PositionLength: 1},
		{OffsetFrom: 6, OffsetTo: 9, Position: 1, Text: "fox", PositionLength: 1},
		{OffsetFrom: 10, OffsetTo: 15, Position: 2, Text: "jumps", PositionLength: 1},
	}
	var got []Token
	for tok := range stream.All() {
		if src[tok.OffsetFrom:tok.OffsetTo] != tok.Text {
			t.Errorf("source slice %q != token text %q", src[tok.OffsetFrom:tok.OffsetTo], tok.Text)
		}
		got = append(got, tok)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokens = %+v\nwant %+v", got, want)
	}
	if stream.Advance() {
		t.Fatal("exhausted stream advanced again")
	}
}

func TestSegmentStreamRepeatedWords(t *testing.T) {
	src := "go go go"
	stream, err := NewSegmentStream(src, strings.Fields(src))
	if err != nil {
		t.Fatalf("NewSegmentStream: %v", err)
	}
	var froms []int
	for tok := range stream.All() {
		froms = append(froms, tok.OffsetFrom)
	}
	if !reflect.DeepEqual(froms, []int{0, 3, 6}) {
		t.Fatalf("offsets = %v, want [0 3 6]", froms)
	}
}

func TestSegmentStreamRejectsCopies(t *testing.T) {
	src := "brown fox"
	copied := strings.Clone("fox")
	if _, err := NewSegmentStream(src, []string{src[:5], copied}); err == nil {
		t.Fatal("expected an error for a segment that is not a sub-slice of the source")
	}
	if _, err := NewSegmentStream(src, []string{src[2:2]}); err == nil {
		t.Fatal("expected an error for an empty segment")
	}
}

func TestWordTokenizerOffsets(t *testing.T) {
	src := "Hello, world! naïve café"
	toks := Collect(WordTokenizer{}.TokenStream(src))
	if len(toks) != 4 {
		t.Fatalf("got %d tokens, want 4: %+v", len(toks), toks)
	}
	for i, tok := range toks {
		if tok.Position != i {
			t.Errorf("token %q position = %d, want %d", tok.Text, tok.Position, i)
		}
	}

	for _, src := range []string{src, "搜索引擎 and 東京", "e-mail: a.b@c.d", "", " ,;  ", "x"} {
		for _, tok := range Collect(WordTokenizer{}.TokenStream(src)) {
			if src[tok.OffsetFrom:tok.OffsetTo] != tok.Text {
				t.Errorf("token %+v does not match source bytes of %q", tok, src)
			}
		}
	}
}

func TestDefaultAnalyzer(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"The quick brown foxes", []string{"quick", "brown", "fox"}},
		{"a b c", nil},
		{"Searching AND indexing", []string{"search", "index"}},
	}
	for _, tt := range tests {
		var got []string
		for _, tok := range Tokenize(tt.text) {
			got = append(got, tok.Text)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestFiltersKeepPositions(t *testing.T) {
	toks := Tokenize("the quick fox")
	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2", len(toks))
	}
	if toks[0].Position != 1 || toks[1].Position != 2 {
		t.Errorf("positions = %d,%d; want 1,2", toks[0].Position, toks[1].Position)
	}
	if toks[0].OffsetFrom != 4 || toks[0].OffsetTo != 9 {
		t.Errorf("offsets = %d-%d; want 4-9", toks[0].OffsetFrom, toks[0].OffsetTo)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{AnalyzerDefault, AnalyzerRaw, AnalyzerWhitespace, AnalyzerMultiLang, AnalyzerEnglish} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("analyzer %q not registered", name)
		}
	}
	if _, ok := r.Get("icu"); ok {
		t.Error("unexpected analyzer icu")
	}

	raw, _ := r.Get(AnalyzerRaw)
	if got := raw.Terms("New York"); !reflect.DeepEqual(got, []string{"New York"}) {
		t.Errorf("raw terms = %v", got)
	}
	ws, _ := r.Get(AnalyzerWhitespace)
	if got := ws.Terms("the cat the dog"); !reflect.DeepEqual(got, []string{"the", "cat", "dog"}) {
		t.Errorf("whitespace terms = %v", got)
	}
	en, _ := r.Get(AnalyzerEnglish)
	if got := en.Terms("Running runners ran"); !reflect.DeepEqual(got, []string{"run", "runner", "ran"}) {
		t.Errorf("en_stem terms = %v", got)
	}
}

func BenchmarkDefaultAnalyzer(b *testing.B) {
	text := strings.Repeat("Distributed search engines process queries across multiple shards. ", 20)
	a := Default()
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = a.Analyze(text)
	}
}
