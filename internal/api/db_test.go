package api

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/joeblew999/plat-topo/internal/catalog"
	"github.com/joeblew999/plat-topo/internal/db"
)

// newDBAPI mirrors three sheets into an in-memory DuckDB: two in the north
// band of the image and one far to the south.
func newDBAPI(t *testing.T) humatest.TestAPI {
	t.Helper()
	cat, err := catalog.New(catalog.Image{URL: "index.jpg", Width: 400, Height: 400}, []catalog.Region{
		{ID: "1", Name: "Tanger", Shape: catalog.NewRect(0, 0, 100, 100), Region: "Nord"},
		{ID: "2", Name: "Tetouan", Shape: catalog.NewRect(100, 0, 200, 100), Region: "Nord"},
		{ID: "3", Name: "Guelmim", Shape: catalog.NewRect(0, 300, 100, 400), Region: "Sud"},
	})
	if err != nil {
		t.Fatal(err)
	}
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.MirrorCatalog(context.Background(), conn, cat); err != nil {
		t.Fatal(err)
	}

	_, api := humatest.New(t)
	NewDBHandler(conn).RegisterRoutes(api)
	return api
}

func TestListTablesCountsRows(t *testing.T) {
	api := newDBAPI(t)
	resp := api.Get("/api/v1/tables")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	body := decode[struct {
		Tables []TableInfo `json:"tables"`
	}](t, resp.Body.String())
	if len(body.Tables) != 1 || body.Tables[0] != (TableInfo{Name: db.SheetsTable, Rows: 3}) {
		t.Errorf("tables = %+v", body.Tables)
	}
}

func TestQueryGroupsByRegion(t *testing.T) {
	api := newDBAPI(t)
	resp := api.Post("/api/v1/query", map[string]any{
		"query": "SELECT region, count(*) AS n FROM map_sheets GROUP BY region ORDER BY region;",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	body := decode[struct {
		Rows      []map[string]any `json:"rows"`
		Count     int              `json:"count"`
		Truncated bool             `json:"truncated"`
	}](t, resp.Body.String())
	if body.Count != 2 || body.Truncated {
		t.Fatalf("result = %+v", body)
	}
	if body.Rows[0]["region"] != "Nord" || body.Rows[0]["n"] != float64(2) {
		t.Errorf("first row = %v", body.Rows[0])
	}
}

func TestQueryLimitTruncates(t *testing.T) {
	api := newDBAPI(t)
	resp := api.Post("/api/v1/query", map[string]any{
		"query": "SELECT id FROM map_sheets ORDER BY position",
		"limit": 2,
	})
	body := decode[struct {
		Rows      []map[string]any `json:"rows"`
		Truncated bool             `json:"truncated"`
	}](t, resp.Body.String())
	if len(body.Rows) != 2 || !body.Truncated || body.Rows[1]["id"] != "2" {
		t.Errorf("result = %+v", body)
	}
}

func TestQueryRejectsWrites(t *testing.T) {
	api := newDBAPI(t)
	for _, q := range []string{
		"DELETE FROM map_sheets",
		"drop table map_sheets",
		"SELECT 1; DELETE FROM map_sheets",
		"  ",
	} {
		if resp := api.Post("/api/v1/query", map[string]any{"query": q}); resp.Code != http.StatusBadRequest {
			t.Errorf("%q = %d", q, resp.Code)
		}
	}
	resp := api.Post("/api/v1/query", map[string]any{"query": "SELECT count(*) AS n FROM map_sheets"})
	body := decode[struct {
		Rows []map[string]any `json:"rows"`
	}](t, resp.Body.String())
	if len(body.Rows) != 1 || body.Rows[0]["n"] != float64(3) {
		t.Errorf("mirror changed: %+v", body.Rows)
	}
}

func TestSheetsInExtent(t *testing.T) {
	api := newDBAPI(t)
	resp := api.Get("/api/v1/query/extent?minX=50&minY=0&maxX=150&maxY=50")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	body := decode[struct {
		Sheets []ExtentSheet `json:"sheets"`
		Count  int           `json:"count"`
	}](t, resp.Body.String())
	if body.Count != 2 || body.Sheets[0].ID != "1" || body.Sheets[1].ID != "2" {
		t.Fatalf("sheets = %+v", body.Sheets)
	}
	if body.Sheets[1].Centroid != [2]float64{150, 50} || body.Sheets[1].Region != "Nord" {
		t.Errorf("sheet = %+v", body.Sheets[1])
	}

	if resp := api.Get("/api/v1/query/extent?minX=10&maxX=5&maxY=5"); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("inverted extent = %d", resp.Code)
	}
}

func TestDBUnavailable(t *testing.T) {
	_, api := humatest.New(t)
	NewDBHandler(nil).RegisterRoutes(api)
	for _, resp := range []*httptest.ResponseRecorder{
		api.Get("/api/v1/tables"),
		api.Post("/api/v1/query", map[string]any{"query": "SELECT 1"}),
		api.Get("/api/v1/query/extent?maxX=1&maxY=1"),
	} {
		if resp.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d", resp.Code)
		}
	}
}
