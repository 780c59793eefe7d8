package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReadyHandler(t *testing.T) {
	up := PingCheck(func(context.Context) error { return nil }, StatusDown)
	cacheDown := PingCheck(func(context.Context) error { return errors.New("dial tcp: refused") }, StatusDegraded)
	indexDown := PingCheck(func(context.Context) error { return errors.New("no index") }, StatusDown)

	tests := []struct {
		name   string
		checks map[string]Check
		status Status
		code   int
	}{
		{"all up", map[string]Check{"indexes": up, "redis": Disabled}, StatusUp, http.StatusOK},
		{"degraded cache", map[string]Check{"indexes": up, "redis": cacheDown}, StatusDegraded, http.StatusOK},
		{"index down", map[string]Check{"indexes": indexDown, "redis": cacheDown}, StatusDown, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(0)
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			var report Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatal(err)
			}
			if report.Status != tt.status {
				t.Errorf("status = %s, want %s", report.Status, tt.status)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("components = %v", report.Components)
			}
		})
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker(0).LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d", rec.Code)
	}
}

func TestRunReportsSlowCheckDown(t *testing.T) {
	c := NewChecker(20 * time.Millisecond)
	c.Register("indexes", func(ctx context.Context) ComponentHealth {
		time.Sleep(time.Second)
		return ComponentHealth{Status: StatusUp}
	})
	c.Register("redis", Disabled)

	report := c.Run(context.Background())
	if report.Status != StatusDown {
		t.Fatalf("status = %s, want down", report.Status)
	}
	if got := report.Components["indexes"].Message; got != "check timed out" {
		t.Errorf("message = %q", got)
	}
	if report.Components["redis"].Status != StatusUp {
		t.Errorf("redis = %+v", report.Components["redis"])
	}
}
