package sink

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// MBTiles writes tiles into an MBTiles 1.2 archive. Rows are stored in
// TMS order, so the Y axis is flipped on write.
type MBTiles struct {
	db *sql.DB
}

func NewMBTiles(path string) (*MBTiles, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open mbtiles %s: %w", path, err)
	}

	// The archive is written by exactly one process; trade durability
	// for write throughput.
	for _, pragma := range []string{
		"PRAGMA synchronous=1",
		"PRAGMA locking_mode=EXCLUSIVE",
		"PRAGMA journal_mode=OFF",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure mbtiles: %w", err)
		}
	}

	stmts := []string{
		"create table if not exists tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);",
		"create table if not exists metadata (name text, value text);",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create mbtiles schema: %w", err)
		}
	}
	_, _ = db.Exec("create unique index name on metadata (name);")
	_, _ = db.Exec("create unique index tile_index on tiles(zoom_level, tile_column, tile_row);")

	return &MBTiles{db: db}, nil
}

func (m *MBTiles) WriteBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tile batch: %w", err)
	}
	const stmt = "insert or ignore into tiles (zoom_level, tile_column, tile_row, tile_data) values (?, ?, ?, ?);"
	for _, rec := range records {
		c := rec.Coord
		if _, err := tx.Exec(stmt, c.Z, c.X, c.FlipY(), rec.Data); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert tile %s: %w", c, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tile batch: %w", err)
	}
	return nil
}

func (m *MBTiles) PutMetadata(meta map[string]string) error {
	for name, value := range meta {
		if _, err := m.db.Exec("insert or ignore into metadata (name, value) values (?, ?)", name, value); err != nil {
			return fmt.Errorf("insert metadata %s: %w", name, err)
		}
	}
	return nil
}

func (m *MBTiles) Close() error {
	return m.db.Close()
}
