package tile

import (
	"fmt"

	"github.com/paulmach/orb/maptile"
)

// Size is the edge length of a rendered tile in pixels at scale 1.
const Size = 256

// Coordinate addresses one slippy-map tile. It is a plain value type
// and is used directly as a map key.
type Coordinate struct {
	X uint32
	Y uint32
	Z uint32
}

// Valid reports whether the coordinate exists in the tile pyramid,
// i.e. both axes are within the 2^Z grid.
func (c Coordinate) Valid() bool {
	if c.Z >= 32 {
		return false
	}
	max := uint64(1) << uint64(c.Z)
	return uint64(c.X) < max && uint64(c.Y) < max
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Maptile converts to the orb tile type used for bound and projection math.
func (c Coordinate) Maptile() maptile.Tile {
	return maptile.New(c.X, c.Y, maptile.Zoom(c.Z))
}

// FromMaptile converts back from the orb tile type.
func FromMaptile(t maptile.Tile) Coordinate {
	return Coordinate{X: t.X, Y: t.Y, Z: uint32(t.Z)}
}

// FlipY returns the TMS row for the coordinate. The MBTiles spec stores
// rows bottom-up while slippy coordinates count top-down.
func (c Coordinate) FlipY() uint32 {
	return (1 << c.Z) - c.Y - 1
}
