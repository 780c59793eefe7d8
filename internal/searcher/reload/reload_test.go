package reload

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/metrics"
)

type fakeReaders struct {
	cached    map[string]bool
	reloaded  []string
	reloadErr error
}

func (f *fakeReaders) Contains(path string) bool { return f.cached[path] }

func (f *fakeReaders) Reload(path string) error {
	if f.reloadErr != nil {
		return f.reloadErr
	}
	f.reloaded = append(f.reloaded, path)
	return nil
}

type fakeInvalidator struct {
	paths []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, path string) error {
	f.paths = append(f.paths, path)
	return nil
}

func encode(t *testing.T, e IndexComplete) []byte {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name        string
		value       []byte
		cached      bool
		reloadErr   error
		wantErr     bool
		wantReload  bool
		invalidated int
		status      string
	}{
		{"cached index", nil, true, nil, false, true, 1, "reloaded"},
		{"index not open", nil, false, nil, false, false, 1, "skipped"},
		{"reload failure", nil, true, errors.New("corrupt segment"), true, false, 1, "error"},
		{"malformed", []byte("{not json"), true, nil, false, false, 0, "invalid"},
		{"missing path", []byte(`{"segments":2}`), true, nil, false, false, 0, "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New(prometheus.NewRegistry())
			readers := &fakeReaders{cached: map[string]bool{"/data/shard-0": tt.cached}, reloadErr: tt.reloadErr}
			inv := &fakeInvalidator{}
			value := tt.value
			if value == nil {
				value = encode(t, IndexComplete{Path: "/data/shard-0", Segments: 3, Docs: 10, CompletedAt: time.Now()})
			}

			err := Handler(readers, inv, m)(context.Background(), []byte("/data/shard-0"), value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := len(readers.reloaded) == 1; got != tt.wantReload {
				t.Errorf("reloaded = %v", readers.reloaded)
			}
			if len(inv.paths) != tt.invalidated {
				t.Errorf("invalidated = %v", inv.paths)
			}
			if got := testutil.ToFloat64(m.ReloadEventsTotal.WithLabelValues(tt.status)); got != 1 {
				t.Errorf("%s events = %v, want 1", tt.status, got)
			}
		})
	}
}

func TestHandlerWithoutStatsCache(t *testing.T) {
	readers := &fakeReaders{cached: map[string]bool{"/idx": true}}
	err := Handler(readers, nil, nil)(context.Background(), nil, encode(t, IndexComplete{Path: "/idx"}))
	if err != nil || len(readers.reloaded) != 1 {
		t.Fatalf("err = %v reloaded = %v", err, readers.reloaded)
	}
}
