package sink

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL writes tiles into a mysql table mirroring the MBTiles layout,
// one bulk insert per batch.
type MySQL struct {
	db *sql.DB
}

func NewMySQL(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	stmts := []string{
		"create table if not exists tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data mediumblob);",
		"create table if not exists metadata (name VARCHAR(50), value mediumtext);",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create mysql schema: %w", err)
		}
	}
	_, _ = db.Exec("create unique index name on metadata (name);")
	_, _ = db.Exec("create unique index tile_index on tiles(zoom_level, tile_column, tile_row);")

	return &MySQL{db: db}, nil
}

// bulkInsertSQL builds an insert-ignore statement with one value group
// per record.
func bulkInsertSQL(n int) string {
	groups := make([]string, n)
	for i := range groups {
		groups[i] = "(?,?,?,?)"
	}
	return "insert ignore into tiles (zoom_level, tile_column, tile_row, tile_data) values " +
		strings.Join(groups, ",")
}

func (m *MySQL) WriteBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(records)*4)
	for _, rec := range records {
		c := rec.Coord
		args = append(args, c.Z, c.X, c.FlipY(), rec.Data)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tile batch: %w", err)
	}
	if _, err := tx.Exec(bulkInsertSQL(len(records)), args...); err != nil {
		tx.Rollback()
		return fmt.Errorf("bulk insert tiles: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tile batch: %w", err)
	}
	return nil
}

func (m *MySQL) PutMetadata(meta map[string]string) error {
	for name, value := range meta {
		if _, err := m.db.Exec("insert ignore into metadata (name, value) values (?, ?)", name, value); err != nil {
			return fmt.Errorf("insert metadata %s: %w", name, err)
		}
	}
	return nil
}

func (m *MySQL) Close() error {
	return m.db.Close()
}
