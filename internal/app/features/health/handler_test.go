package health_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/planhub/internal/app/features/health"
	"github.com/dalemusser/planhub/internal/testutil"
	"go.uber.org/zap"
)

type fixedFeeds int

func (f fixedFeeds) OpenFeeds() int { return int(f) }

type healthBody struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	OpenFeeds int    `json:"open_feeds"`
}

func serve(t *testing.T, h *health.Handler) (*httptest.ResponseRecorder, healthBody) {
	t.Helper()
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.Serve(rec, req)

	var body healthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec, body
}

func TestServe_DatabaseConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := health.NewHandler(db.Client(), fixedFeeds(2), zap.NewNop())

	rec, body := serve(t, handler)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if contentType := rec.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", contentType, "application/json")
	}
	if body.Status != "ok" {
		t.Errorf("status: got %q, want %q", body.Status, "ok")
	}
	if body.Database != "connected" {
		t.Errorf("database: got %q, want %q", body.Database, "connected")
	}
	if body.OpenFeeds != 2 {
		t.Errorf("open_feeds: got %d, want %d", body.OpenFeeds, 2)
	}
}

func TestServe_MemoryBackend(t *testing.T) {
	handler := health.NewHandler(nil, nil, zap.NewNop())

	rec, body := serve(t, handler)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body.Database != "memory" {
		t.Errorf("database: got %q, want %q", body.Database, "memory")
	}
}
