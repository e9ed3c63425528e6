package geodata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"

	"tilesmith/internal/tile"
)

const pointFC = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"kind": "poi"},
			"geometry": {"type": "Point", "coordinates": [-90, 40]}
		}
	]
}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestNewStoreMissingDir(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestNewStoreEmptyDir(t *testing.T) {
	_, err := NewStore(t.TempDir(), zap.NewNop())
	if err == nil {
		t.Fatal("expected error when no features can be loaded")
	}
}

func TestNewStoreSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.geojson", "{not json")
	writeFile(t, dir, "ok.geojson", pointFC)
	writeFile(t, dir, "notes.txt", "ignored")

	s, err := NewStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestEntitiesNear(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "poi.geojson", pointFC)

	s, err := NewStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	// The tile containing the feature must see it.
	at := tile.FromMaptile(maptile.At(orb.Point{-90, 40}, 4))
	if got := s.EntitiesNear(at); len(got) != 1 {
		t.Fatalf("EntitiesNear(%v) returned %d entities, want 1", at, len(got))
	}

	// A tile on the opposite side of the world must not.
	far := tile.FromMaptile(maptile.At(orb.Point{90, -40}, 4))
	if got := s.EntitiesNear(far); len(got) != 0 {
		t.Errorf("EntitiesNear(%v) returned %d entities, want 0", far, len(got))
	}
}

func TestEntitiesNearIncludesNeighborTile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "poi.geojson", pointFC)

	s, err := NewStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	// Query from the tile directly east of the feature's tile; the 3x3
	// neighborhood must still pick the feature up.
	at := maptile.At(orb.Point{-90, 40}, 6)
	east := tile.Coordinate{X: at.X + 1, Y: at.Y, Z: uint32(at.Z)}
	if got := s.EntitiesNear(east); len(got) != 1 {
		t.Errorf("EntitiesNear(%v) returned %d entities, want 1", east, len(got))
	}
}

func TestStoreBound(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "poi.geojson", pointFC)
	writeFile(t, dir, "line.geojson", `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"properties": {"highway": "primary"},
				"geometry": {"type": "LineString", "coordinates": [[-92, 38], [-91, 39]]}
			}
		]
	}`)

	s, err := NewStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	b := s.Bound()
	if b.Min[0] != -92 || b.Min[1] != 38 || b.Max[0] != -90 || b.Max[1] != 40 {
		t.Errorf("Bound() = %v, want the union of both features", b)
	}
}

func TestNeighborhoodBoundClamps(t *testing.T) {
	b := NeighborhoodBound(tile.Coordinate{X: 0, Y: 0, Z: 2})

	nw := maptile.New(0, 0, 2).Bound()
	se := maptile.New(1, 1, 2).Bound()

	if b.Min[0] != nw.Min[0] || b.Max[1] != nw.Max[1] {
		t.Errorf("bound did not clamp to the grid corner: %v", b)
	}
	if b.Max[0] != se.Max[0] || b.Min[1] != se.Min[1] {
		t.Errorf("bound did not extend one tile southeast: %v", b)
	}
}
