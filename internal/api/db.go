package api

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-topo/internal/db"
)

// Query row limits.
const (
	DefaultQueryLimit = 1000
	MaxQueryLimit     = 10000
)

// readOnlyVerbs are the statements /api/v1/query accepts. The mirror is
// rebuilt from the catalog, so writes would only be lost on the next reload.
var readOnlyVerbs = []string{"select", "with", "show", "describe", "summarize", "explain", "from", "pragma"}

// DBHandler serves SQL over the DuckDB mirror of the catalog.
type DBHandler struct {
	db *sql.DB
}

// NewDBHandler creates a handler; a nil db answers 503 on every route.
func NewDBHandler(db *sql.DB) *DBHandler {
	return &DBHandler{db: db}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("db"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("db"))
	huma.Get(api, "/api/v1/query/extent", h.SheetsInExtent, huma.OperationTags("db"))
}

// TableInfo describes one DuckDB table.
type TableInfo struct {
	Name string `json:"name" doc:"Table name" example:"map_sheets"`
	Rows int64  `json:"rows" doc:"Row count"`
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []TableInfo `json:"tables" doc:"Tables with their row counts"`
	}
}

// ListTables returns the DuckDB tables, map_sheets included, with row counts.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if err := h.available(); err != nil {
		return nil, err
	}

	rows, err := h.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, huma.Error500InternalServerError("Failed to list tables", err)
		}
		names = append(names, name)
	}
	rows.Close()

	out := &TablesOutput{}
	out.Body.Tables = make([]TableInfo, 0, len(names))
	for _, name := range names {
		info := TableInfo{Name: name}
		q := fmt.Sprintf("SELECT count(*) FROM %q", name)
		if err := h.db.QueryRowContext(ctx, q).Scan(&info.Rows); err != nil {
			return nil, huma.Error500InternalServerError("Failed to count "+name, err)
		}
		out.Body.Tables = append(out.Body.Tables, info)
	}
	return out, nil
}

// QueryInput is the input for SQL queries.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" doc:"Read-only SQL; the catalog is in map_sheets" example:"SELECT region, count(*) AS sheets FROM map_sheets GROUP BY region ORDER BY sheets DESC"`
		Limit int    `json:"limit,omitempty" minimum:"0" maximum:"10000" doc:"Maximum rows returned (default 1000)"`
	}
}

// QueryOutput is the response for SQL queries.
type QueryOutput struct {
	Body struct {
		Columns   []string         `json:"columns" doc:"Column names"`
		Rows      []map[string]any `json:"rows" doc:"Query results"`
		Count     int              `json:"count" doc:"Number of rows returned"`
		Truncated bool             `json:"truncated" doc:"Whether rows past the limit were dropped"`
	}
}

// Query runs a read-only statement against DuckDB, where the catalog is
// mirrored into the map_sheets table.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
	if err := h.available(); err != nil {
		return nil, err
	}
	q, err := readOnly(input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	limit := input.Body.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	limit = min(limit, MaxQueryLimit)

	rows, err := h.db.QueryContext(ctx, q)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get columns", err)
	}

	out := &QueryOutput{}
	out.Body.Columns = columns
	out.Body.Rows = []map[string]any{}
	for rows.Next() {
		if len(out.Body.Rows) == limit {
			out.Body.Truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, huma.Error500InternalServerError("Failed to read row", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			row[col] = values[i]
		}
		out.Body.Rows = append(out.Body.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	out.Body.Count = len(out.Body.Rows)
	return out, nil
}

// ExtentInput is a rectangle in index-image pixels.
type ExtentInput struct {
	MinX float64 `query:"minX" doc:"Left edge in image pixels"`
	MinY float64 `query:"minY" doc:"Top edge in image pixels"`
	MaxX float64 `query:"maxX" required:"true" doc:"Right edge in image pixels"`
	MaxY float64 `query:"maxY" required:"true" doc:"Bottom edge in image pixels"`
}

// ExtentSheet is a sheet whose bounds overlap the requested extent.
type ExtentSheet struct {
	ID       string     `json:"id" doc:"Sheet ID"`
	Name     string     `json:"name" doc:"Sheet name"`
	Region   string     `json:"region,omitempty" doc:"Administrative region"`
	Centroid [2]float64 `json:"centroid" doc:"Shape centroid in index-image pixels"`
}

// ExtentOutput lists the sheets overlapping an extent in catalog order.
type ExtentOutput struct {
	Body struct {
		Sheets []ExtentSheet `json:"sheets" doc:"Overlapping sheets in catalog order"`
		Count  int           `json:"count" doc:"Number of sheets"`
	}
}

// SheetsInExtent returns the sheets whose bounding boxes overlap the extent,
// for example the part of the index image a viewport shows.
func (h *DBHandler) SheetsInExtent(ctx context.Context, input *ExtentInput) (*ExtentOutput, error) {
	if err := h.available(); err != nil {
		return nil, err
	}
	if input.MaxX < input.MinX || input.MaxY < input.MinY {
		return nil, huma.Error422UnprocessableEntity("extent has negative size")
	}

	rows, err := h.db.QueryContext(ctx, `SELECT id, name, coalesce(region, ''), cx, cy FROM `+db.SheetsTable+`
		WHERE max_x >= ? AND min_x <= ? AND max_y >= ? AND min_y <= ?
		ORDER BY position`,
		input.MinX, input.MaxX, input.MinY, input.MaxY)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to query sheets", err)
	}
	defer rows.Close()

	out := &ExtentOutput{}
	out.Body.Sheets = []ExtentSheet{}
	for rows.Next() {
		var s ExtentSheet
		if err := rows.Scan(&s.ID, &s.Name, &s.Region, &s.Centroid[0], &s.Centroid[1]); err != nil {
			return nil, huma.Error500InternalServerError("Failed to read sheet", err)
		}
		out.Body.Sheets = append(out.Body.Sheets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, huma.Error500InternalServerError("Failed to query sheets", err)
	}
	out.Body.Count = len(out.Body.Sheets)
	return out, nil
}

func (h *DBHandler) available() error {
	if h.db == nil {
		return huma.Error503ServiceUnavailable("Database not available")
	}
	return nil
}

// readOnly trims q and rejects anything but a single read-only statement.
func readOnly(q string) (string, error) {
	q = strings.TrimSuffix(strings.TrimSpace(q), ";")
	if q == "" {
		return "", fmt.Errorf("empty query")
	}
	if strings.Contains(q, ";") {
		return "", fmt.Errorf("only one statement is allowed")
	}
	verb := strings.ToLower(strings.Fields(q)[0])
	if slices.Contains(readOnlyVerbs, verb) {
		return q, nil
	}
	return "", fmt.Errorf("%s statements are not allowed; the mirror is read-only", strings.ToUpper(verb))
}
