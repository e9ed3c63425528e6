// Package sink persists batches of rendered tiles for the offline
// prerenderer: an MBTiles archive, a MySQL tile table, or a plain
// z/x/y directory tree.
package sink

import (
	"fmt"

	"go.uber.org/zap"

	"tilesmith/internal/tile"
)

// Record is one rendered tile ready to persist.
type Record struct {
	Coord tile.Coordinate
	Data  []byte
}

// Sink receives rendered tiles in batches. Implementations are driven
// by a single flushing goroutine and need not be safe for concurrent
// use.
type Sink interface {
	WriteBatch(records []Record) error
	PutMetadata(meta map[string]string) error
	Close() error
}

// New creates a sink for the configured output format. target is a
// file path for mbtiles, a DSN for mysql and a directory for files.
func New(format, target string, logger *zap.Logger) (Sink, error) {
	switch format {
	case "mbtiles":
		logger.Info("Writing tiles to mbtiles archive", zap.String("file", target))
		return NewMBTiles(target)
	case "mysql":
		logger.Info("Writing tiles to mysql")
		return NewMySQL(target)
	case "files":
		logger.Info("Writing tiles to directory", zap.String("dir", target))
		return NewFiles(target)
	default:
		return nil, fmt.Errorf("unknown sink format: %s (supported: mbtiles, mysql, files)", format)
	}
}
