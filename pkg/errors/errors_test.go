package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error keeps its status", New(ErrInvalidInput, http.StatusBadRequest, "topk must be positive"), http.StatusBadRequest},
		{"searcher helper", IndexSearcher(fmt.Errorf("unbalanced parenthesis")), http.StatusUnprocessableEntity},
		{"internal helper", Internal(fmt.Errorf("no reader")), http.StatusInternalServerError},
		{"wrapped sentinel", fmt.Errorf("opening: %w", ErrIndexNotFound), http.StatusNotFound},
		{"plain sentinel", ErrInvalidInput, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("bm25 search: %w", Engine(fmt.Errorf("short read")))
	if !errors.Is(err, ErrEngine) {
		t.Fatalf("expected errors.Is(err, ErrEngine), err = %v", err)
	}
	if errors.Is(err, ErrInternal) {
		t.Fatalf("engine error must not match ErrInternal")
	}
	want := "bm25 search: engine error: short read"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{IndexSearcher(fmt.Errorf("bad query")), "index_searcher"},
		{Engine(fmt.Errorf("corrupt segment")), "engine"},
		{Internal(fmt.Errorf("no reader")), "internal"},
		{fmt.Errorf("decoding: %w", ErrInvalidInput), "invalid_input"},
		{ErrTimeout, "timeout"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
