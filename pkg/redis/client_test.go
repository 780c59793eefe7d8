package redis

import "testing"

func TestNewClientNormalizesPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", ""},
		{"bm25", "bm25:"},
		{"bm25:", "bm25:"},
	}
	for _, tt := range tests {
		if got := newClient(nil, tt.prefix).prefix; got != tt.want {
			t.Errorf("prefix %q = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}
