package geodata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"

	"tilesmith/internal/tile"
)

// Entity is one geographic feature from the offline store.
type Entity struct {
	Geometry orb.Geometry
	Props    geojson.Properties
}

// Source answers tile-scoped entity queries. Implementations must be
// safe for concurrent readers; no method mutates the store.
type Source interface {
	EntitiesNear(c tile.Coordinate) []Entity
}

// Store holds every feature of the offline geodata directory in memory.
// The store is read-only after construction, so all render workers share
// it without locking.
type Store struct {
	entities []Entity
	bounds   []orb.Bound
	bound    orb.Bound
	logger   *zap.Logger
}

// NewStore loads all GeoJSON feature collections found directly under dir.
// Files that fail to parse are skipped with a warning; an empty result is
// a construction failure so the caller can fall back to a remote source.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read geodata directory: %w", err)
	}

	s := &Store{logger: logger}
	files := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".geojson" && ext != ".json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("Failed to read geodata file", zap.String("path", path), zap.Error(err))
			continue
		}

		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			logger.Warn("Failed to parse geodata file, skipping", zap.String("path", path), zap.Error(err))
			continue
		}

		for _, f := range fc.Features {
			if f == nil || f.Geometry == nil {
				continue
			}
			b := f.Geometry.Bound()
			if len(s.entities) == 0 {
				s.bound = b
			} else {
				s.bound = s.bound.Union(b)
			}
			s.entities = append(s.entities, Entity{Geometry: f.Geometry, Props: f.Properties})
			s.bounds = append(s.bounds, b)
		}
		files++
	}

	if len(s.entities) == 0 {
		return nil, fmt.Errorf("no geodata features found in %s", dir)
	}

	logger.Info("Geodata store loaded",
		zap.String("dir", dir),
		zap.Int("files", files),
		zap.Int("features", len(s.entities)),
	)

	return s, nil
}

// Len returns the number of loaded features.
func (s *Store) Len() int {
	return len(s.entities)
}

// Bound is the union of every feature's bound, the extent worth
// prerendering.
func (s *Store) Bound() orb.Bound {
	return s.bound
}

// EntitiesNear returns every feature whose bound intersects the tile or
// one of its eight neighbors. The widened query gives boundary-crossing
// geometry enough context to render correctly at tile edges.
func (s *Store) EntitiesNear(c tile.Coordinate) []Entity {
	query := NeighborhoodBound(c)

	var out []Entity
	for i, b := range s.bounds {
		if b.Intersects(query) {
			out = append(out, s.entities[i])
		}
	}
	return out
}

// NeighborhoodBound is the geographic bound of the 3x3 tile block centered
// on c, clamped to the grid at the tile's zoom level.
func NeighborhoodBound(c tile.Coordinate) orb.Bound {
	limit := int64(1)<<int64(c.Z) - 1

	clamp := func(v int64) uint32 {
		if v < 0 {
			return 0
		}
		if v > limit {
			return uint32(limit)
		}
		return uint32(v)
	}

	zoom := maptile.Zoom(c.Z)
	nw := maptile.New(clamp(int64(c.X)-1), clamp(int64(c.Y)-1), zoom).Bound()
	se := maptile.New(clamp(int64(c.X)+1), clamp(int64(c.Y)+1), zoom).Bound()

	return orb.Bound{
		Min: orb.Point{min(nw.Min[0], se.Min[0]), min(nw.Min[1], se.Min[1])},
		Max: orb.Point{max(nw.Max[0], se.Max[0]), max(nw.Max[1], se.Max[1])},
	}
}
