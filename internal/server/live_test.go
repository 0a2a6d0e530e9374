//go:build integration

// Integration tests against a running server: go run ./cmd/topo
//
// Run: go test -tags=integration ./internal/server/
package server_test

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"
)

func baseURL() string {
	if u := os.Getenv("TOPO_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:8086"
}

func getJSON(t *testing.T, path string, v any) {
	t.Helper()
	resp, err := http.Get(baseURL() + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s = %d", path, resp.StatusCode)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHealth(t *testing.T) {
	var body struct {
		Status string `json:"status"`
		Sheets int    `json:"sheets"`
	}
	getJSON(t, "/health", &body)
	if body.Status != "ok" {
		t.Fatalf("status=%q, want ok", body.Status)
	}
	if body.Sheets == 0 {
		t.Error("no sheets loaded")
	}
}

func TestGetInfo(t *testing.T) {
	var body struct {
		Name string `json:"name"`
	}
	getJSON(t, "/api/v1/info", &body)
	if body.Name != "plat-topo" {
		t.Fatalf("name=%q, want plat-topo", body.Name)
	}
}

func TestListSheets(t *testing.T) {
	getJSON(t, "/api/v1/sheets", nil)
}

func TestViewerPage(t *testing.T) {
	resp, err := http.Get(baseURL() + "/viewer")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /viewer = %d", resp.StatusCode)
	}
}
