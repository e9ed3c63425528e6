package raster

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/paulmach/orb"

	"tilesmith/internal/style"
	"tilesmith/internal/tile"
)

func decodeTile(t *testing.T, data []byte, wantSize int) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a valid png: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != wantSize || b.Dy() != wantSize {
		t.Fatalf("tile is %dx%d, want %dx%d", b.Dx(), b.Dy(), wantSize, wantSize)
	}
	return img
}

func alphaAt(img image.Image, x, y int) uint32 {
	_, _, _, a := img.At(x, y).RGBA()
	return a >> 8
}

func redAt(img image.Image, x, y int) uint32 {
	r, _, _, _ := img.At(x, y).RGBA()
	return r >> 8
}

func TestDrawEmptyStyledSet(t *testing.T) {
	e := NewEngine(1)
	data, err := e.Draw(nil, tile.Coordinate{X: 0, Y: 0, Z: 0})
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	img := decodeTile(t, data, 256)
	if a := alphaAt(img, 128, 128); a != 0 {
		t.Errorf("empty tile center alpha = %d, want 0", a)
	}
}

func TestDrawPoint(t *testing.T) {
	e := NewEngine(1)
	styled := []style.Styled{{
		Geometry: orb.Point{0, 0},
		Fill:     "#ff0000",
		Radius:   6,
	}}

	// At zoom 0 the null island point projects to the canvas center.
	data, err := e.Draw(styled, tile.Coordinate{X: 0, Y: 0, Z: 0})
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	img := decodeTile(t, data, 256)
	if a := alphaAt(img, 128, 128); a < 200 {
		t.Errorf("point center alpha = %d, want opaque", a)
	}
	if r := redAt(img, 128, 128); r < 200 {
		t.Errorf("point center red = %d, want red fill", r)
	}
	if a := alphaAt(img, 10, 10); a != 0 {
		t.Errorf("far corner alpha = %d, want transparent", a)
	}
}

func TestDrawLine(t *testing.T) {
	e := NewEngine(1)
	styled := []style.Styled{{
		Geometry: orb.LineString{{-45, 0}, {45, 0}},
		Stroke:   "#000000",
		Width:    4,
	}}

	data, err := e.Draw(styled, tile.Coordinate{X: 0, Y: 0, Z: 0})
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	img := decodeTile(t, data, 256)
	if a := alphaAt(img, 128, 128); a < 200 {
		t.Errorf("line midpoint alpha = %d, want opaque stroke", a)
	}
	if a := alphaAt(img, 128, 60); a != 0 {
		t.Errorf("off-line alpha = %d, want transparent", a)
	}
}

func TestDrawPolygonFill(t *testing.T) {
	e := NewEngine(1)
	ring := orb.Ring{{-80, -60}, {80, -60}, {80, 60}, {-80, 60}, {-80, -60}}
	styled := []style.Styled{{
		Geometry: orb.Polygon{ring},
		Fill:     "#00ff00",
	}}

	data, err := e.Draw(styled, tile.Coordinate{X: 0, Y: 0, Z: 0})
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	img := decodeTile(t, data, 256)
	if a := alphaAt(img, 128, 128); a < 200 {
		t.Errorf("polygon interior alpha = %d, want filled", a)
	}
	if a := alphaAt(img, 2, 2); a != 0 {
		t.Errorf("outside polygon alpha = %d, want transparent", a)
	}
}

func TestDrawLineWithoutStrokeIsInvisible(t *testing.T) {
	e := NewEngine(1)
	styled := []style.Styled{{
		Geometry: orb.LineString{{-45, 0}, {45, 0}},
	}}

	data, err := e.Draw(styled, tile.Coordinate{X: 0, Y: 0, Z: 0})
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	img := decodeTile(t, data, 256)
	if a := alphaAt(img, 128, 128); a != 0 {
		t.Errorf("unstyled line painted ink, alpha = %d", a)
	}
}

func TestEngineScale(t *testing.T) {
	if got := NewEngine(2).Size(); got != 512 {
		t.Errorf("Size() = %d, want 512", got)
	}
	if got := NewEngine(0).Size(); got != 256 {
		t.Errorf("Size() with clamped scale = %d, want 256", got)
	}

	styled := []style.Styled{{Geometry: orb.Point{0, 0}, Fill: "#ff0000", Radius: 6}}
	data, err := NewEngine(2).Draw(styled, tile.Coordinate{X: 0, Y: 0, Z: 0})
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	img := decodeTile(t, data, 512)
	if a := alphaAt(img, 256, 256); a < 200 {
		t.Errorf("scaled point center alpha = %d, want opaque", a)
	}
}

func TestDrawDoesNotMutateInput(t *testing.T) {
	e := NewEngine(1)
	line := orb.LineString{{-45, 0}, {45, 0}}
	styled := []style.Styled{{Geometry: line, Stroke: "#000000", Width: 2}}

	if _, err := e.Draw(styled, tile.Coordinate{X: 0, Y: 0, Z: 0}); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	if line[0] != (orb.Point{-45, 0}) || line[1] != (orb.Point{45, 0}) {
		t.Errorf("input geometry was mutated: %v", line)
	}
}
