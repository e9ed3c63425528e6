package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Files writes tiles as {dir}/{z}/{x}/{y}.png, the same layout the
// file cache uses, so the output can be served by any static server.
type Files struct {
	dir string
}

func NewFiles(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Files{dir: dir}, nil
}

func (f *Files) WriteBatch(records []Record) error {
	for _, rec := range records {
		c := rec.Coord
		dir := filepath.Join(f.dir, fmt.Sprintf("%d", c.Z), fmt.Sprintf("%d", c.X))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create tile directory: %w", err)
		}
		name := filepath.Join(dir, fmt.Sprintf("%d.png", c.Y))
		if err := os.WriteFile(name, rec.Data, 0644); err != nil {
			return fmt.Errorf("write tile %s: %w", c, err)
		}
	}
	return nil
}

func (f *Files) PutMetadata(meta map[string]string) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	name := filepath.Join(f.dir, "metadata.json")
	if err := os.WriteFile(name, data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (f *Files) Close() error {
	return nil
}
