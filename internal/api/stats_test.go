package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seantiz/esgqa/internal/model"
)

func TestStatsEndpoint(t *testing.T) {
	srv, eng := newTestServerWith(t, testEngineOptions(), testServerOptions())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	analyst := analystToken(t, ts)
	for i := 0; i < 3; i++ {
		submitQuestion(t, ts, analyst, "Scope 3 emissions?", "Nokia")
	}
	eng.Wait()

	resp := doAuth(t, http.MethodGet, ts.URL+"/api/v1/stats", adminToken(t, ts), nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.ByStatus[model.StatusDone] != 3 {
		t.Errorf("by_status[done] = %d, want 3", stats.ByStatus[model.StatusDone])
	}
	if stats.Subscribers != 0 {
		t.Errorf("subscribers = %d, want 0", stats.Subscribers)
	}
}
