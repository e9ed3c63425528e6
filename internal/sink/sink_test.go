package sink

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"tilesmith/internal/tile"
)

func TestMBTilesWriteBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mbtiles")
	s, err := NewMBTiles(path)
	if err != nil {
		t.Fatalf("NewMBTiles: %v", err)
	}

	records := []Record{
		{Coord: tile.Coordinate{X: 0, Y: 0, Z: 1}, Data: []byte("a")},
		{Coord: tile.Coordinate{X: 1, Y: 1, Z: 1}, Data: []byte("b")},
	}
	if err := s.WriteBatch(records); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	// Duplicate batch is ignored, not duplicated.
	if err := s.WriteBatch(records); err != nil {
		t.Fatalf("WriteBatch again: %v", err)
	}
	if err := s.PutMetadata(map[string]string{"name": "test", "format": "png"}); err != nil {
		t.Fatalf("PutMetadata: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow("select count(*) from tiles").Scan(&n); err != nil {
		t.Fatalf("count tiles: %v", err)
	}
	if n != 2 {
		t.Errorf("tile rows = %d, want 2", n)
	}

	// (0,0,1) is stored with the TMS row, so tile_row = 1.
	var data []byte
	err = db.QueryRow("select tile_data from tiles where zoom_level = 1 and tile_column = 0 and tile_row = 1").Scan(&data)
	if err != nil {
		t.Fatalf("read flipped tile: %v", err)
	}
	if !bytes.Equal(data, []byte("a")) {
		t.Errorf("tile data = %q, want %q", data, "a")
	}

	var format string
	if err := db.QueryRow("select value from metadata where name = 'format'").Scan(&format); err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if format != "png" {
		t.Errorf("format metadata = %q, want png", format)
	}
}

func TestFilesWriteBatch(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFiles(dir)
	if err != nil {
		t.Fatalf("NewFiles: %v", err)
	}
	defer s.Close()

	err = s.WriteBatch([]Record{{Coord: tile.Coordinate{X: 3, Y: 5, Z: 4}, Data: []byte("png")}})
	if err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "4", "3", "5.png"))
	if err != nil {
		t.Fatalf("read tile file: %v", err)
	}
	if !bytes.Equal(data, []byte("png")) {
		t.Errorf("tile data = %q, want png", data)
	}

	if err := s.PutMetadata(map[string]string{"name": "test"}); err != nil {
		t.Fatalf("PutMetadata: %v", err)
	}
	meta, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if !strings.Contains(string(meta), `"name": "test"`) {
		t.Errorf("metadata = %s", meta)
	}
}

func TestBulkInsertSQL(t *testing.T) {
	got := bulkInsertSQL(3)
	if !strings.HasSuffix(got, "values (?,?,?,?),(?,?,?,?),(?,?,?,?)") {
		t.Errorf("bulkInsertSQL(3) = %q", got)
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New("redis", "", zap.NewNop()); err == nil {
		t.Error("unknown sink format must be rejected")
	}
}
