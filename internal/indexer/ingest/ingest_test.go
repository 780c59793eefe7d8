package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recorder struct {
	rows []uint64
	fail uint64
}

func (r *recorder) IndexDocument(rowID uint64, values map[string]string) error {
	if rowID == r.fail && rowID != 0 {
		return errors.New("unknown field")
	}
	r.rows = append(r.rows, rowID)
	return nil
}

func TestLoadJSONL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr bool
	}{
		{"two documents", `{"row_id":1,"fields":{"title":"a"}}` + "\n" + `{"row_id":2,"fields":{"title":"b"}}`, 2, false},
		{"blank lines", "\n" + `{"row_id":7,"fields":{}}` + "\n\n", 1, false},
		{"malformed", `{"row_id":1}` + "\n" + `{not json`, 1, true},
		{"indexer failure", `{"row_id":1}` + "\n" + `{"row_id":9}`, 1, true},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{fail: 9}
			got, err := LoadJSONL(context.Background(), strings.NewReader(tt.input), rec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want || uint64(len(rec.rows)) != tt.want {
				t.Errorf("count = %d rows = %v, want %d", got, rec.rows, tt.want)
			}
		})
	}
}

func TestLoadJSONLCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LoadJSONL(ctx, strings.NewReader(`{"row_id":1}`), &recorder{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestHandleMessage(t *testing.T) {
	rec := &recorder{fail: 5}
	handle := HandleMessage(rec)
	ctx := context.Background()

	if err := handle(ctx, nil, []byte(`{"row_id":3,"fields":{"title":"x"}}`)); err != nil {
		t.Fatalf("valid message: %v", err)
	}
	if err := handle(ctx, []byte("k"), []byte("garbage")); err != nil {
		t.Fatalf("malformed message should be dropped, got %v", err)
	}
	if err := handle(ctx, nil, []byte(`{"row_id":5}`)); err == nil {
		t.Fatal("indexer failure should be returned for redelivery")
	}
	if len(rec.rows) != 1 || rec.rows[0] != 3 {
		t.Errorf("rows = %v, want [3]", rec.rows)
	}
}
