// Package db holds the DuckDB connection the catalog is mirrored into for
// ad-hoc SQL over /api/v1/query.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-topo/internal/catalog"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// SheetsTable is the table MirrorCatalog writes.
const SheetsTable = "map_sheets"

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Get returns the singleton DuckDB connection.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		// Create duckdb subdirectory
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create duckdb directory: %w", err)
			return
		}

		dbPath := filepath.Join(duckdbDir, cfg.DBName+".duckdb")
		instance, initErr = sql.Open("duckdb", dbPath)
		if initErr != nil {
			return
		}
		if initErr = instance.Ping(); initErr != nil {
			instance.Close()
			instance = nil
		}
	})
	return instance, initErr
}

// Close closes the database connection. A later Get opens a new one.
func Close() error {
	var err error
	if instance != nil {
		err = instance.Close()
	}
	instance, initErr = nil, nil
	once = sync.Once{}
	return err
}

// MirrorCatalog replaces the map_sheets table with the catalog's regions.
func MirrorCatalog(ctx context.Context, db *sql.DB, cat *catalog.Catalog) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `CREATE OR REPLACE TABLE `+SheetsTable+` (
		id VARCHAR PRIMARY KEY,
		position INTEGER,
		name VARCHAR,
		localized_name VARCHAR,
		shape VARCHAR,
		coords VARCHAR,
		cx DOUBLE,
		cy DOUBLE,
		min_x DOUBLE,
		min_y DOUBLE,
		max_x DOUBLE,
		max_y DOUBLE,
		href VARCHAR,
		region VARCHAR,
		province VARCHAR
	)`); err != nil {
		return fmt.Errorf("create %s: %w", SheetsTable, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+SheetsTable+` VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range cat.All() {
		coords, err := json.Marshal(r.Shape.Coordinates())
		if err != nil {
			return err
		}
		c, b := r.Shape.Centroid(), r.Shape.Bound()
		if _, err := stmt.ExecContext(ctx,
			r.ID, i, r.Name, r.LocalizedName, r.Shape.Kind(), string(coords),
			c[0], c[1], b.Min[0], b.Min[1], b.Max[0], b.Max[1],
			r.DownloadURL, r.Region, r.Province,
		); err != nil {
			return fmt.Errorf("insert sheet %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}
