package tokenizer

import (
	"sort"
	"sync"
)

// Names of the analyzers every Registry starts with.
const (
	AnalyzerDefault    = "default"
	AnalyzerRaw        = "raw"
	AnalyzerWhitespace = "whitespace"
	AnalyzerMultiLang  = "multilang"
	AnalyzerEnglish    = "en_stem"
)

// Analyzer is a tokenizer followed by a chain of filters.
type Analyzer struct {
	tokenizer Tokenizer
	filters   []Filter
}

func NewAnalyzer(t Tokenizer, filters ...Filter) *Analyzer {
	return &Analyzer{tokenizer: t, filters: filters}
}

// TokenStream analyzes text lazily.
func (a *Analyzer) TokenStream(text string) TokenStream {
	base := a.tokenizer.TokenStream(text)
	if len(a.filters) == 0 {
		return base
	}
	return &filteredStream{inner: base, filters: a.filters}
}

// Analyze returns every token of text.
func (a *Analyzer) Analyze(text string) []Token {
	return Collect(a.TokenStream(text))
}

// Terms returns the distinct token texts of text in first-seen order.
func (a *Analyzer) Terms(text string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for tok := range Seq(a.TokenStream(text)) {
		if _, ok := seen[tok.Text]; ok {
			continue
		}
		seen[tok.Text] = struct{}{}
		terms = append(terms, tok.Text)
	}
	return terms
}

// Default returns the platform's historical analyzer: alphanumeric split,
// lowercase, drop single characters and stop words, suffix stemming.
func Default() *Analyzer {
	return NewAnalyzer(SimpleTokenizer{}, LowerCaser, MinLength(2), StopWords(stopWords), SuffixStemmer)
}

// Registry maps analyzer names to analyzers.
type Registry struct {
	mu        sync.RWMutex
	analyzers map[string]*Analyzer
}

// NewRegistry returns a registry holding the built-in analyzers.
func NewRegistry() *Registry {
	r := &Registry{analyzers: make(map[string]*Analyzer)}
	r.Register(AnalyzerDefault, Default())
	r.Register(AnalyzerRaw, NewAnalyzer(RawTokenizer{}))
	r.Register(AnalyzerWhitespace, NewAnalyzer(WhitespaceTokenizer{}, LowerCaser))
	r.Register(AnalyzerMultiLang, NewAnalyzer(WordTokenizer{}, LowerCaser))
	r.Register(AnalyzerEnglish, NewAnalyzer(WordTokenizer{}, LowerCaser, EnglishStopWords, SnowballStemmer))
	return r
}

func (r *Registry) Register(name string, a *Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzers[name] = a
}

func (r *Registry) Get(name string) (*Analyzer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyzers[name]
	return a, ok
}

// Names lists the registered analyzers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.analyzers))
	for name := range r.analyzers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
