package cache

import "tilesmith/internal/tile"

// Cache stores encoded tile images fetched from remote providers.
// Implementations must be safe for concurrent use; the local renderer
// keeps its own single-writer state and never goes through here.
type Cache interface {
	Get(key tile.Coordinate) ([]byte, bool)
	Set(key tile.Coordinate, value []byte)
	Has(key tile.Coordinate) bool // Check if tile exists without reading it (lightweight check)
	Clear()
}
