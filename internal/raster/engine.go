package raster

import (
	"bytes"
	"fmt"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"

	"tilesmith/internal/style"
	"tilesmith/internal/tile"
)

// Drawer turns styled entities into compressed tile image bytes.
type Drawer interface {
	Draw(styled []style.Styled, c tile.Coordinate) ([]byte, error)
}

// clipPad widens the clip bound by a fraction of the tile so strokes and
// markers near the edge keep painting across it; the canvas crops the rest.
const clipPad = 0.125

// Engine paints styled entities onto a transparent PNG tile. Projection
// into pixel space is delegated to orb's tile projection; the engine only
// draws already-projected coordinates.
type Engine struct {
	size  int
	scale float64
}

// NewEngine creates an engine rendering tiles of 256*scale pixels.
func NewEngine(scale int) *Engine {
	if scale < 1 {
		scale = 1
	}
	return &Engine{size: tile.Size * scale, scale: float64(scale)}
}

// Size returns the tile edge length in pixels.
func (e *Engine) Size() int {
	return e.size
}

func (e *Engine) Draw(styled []style.Styled, c tile.Coordinate) ([]byte, error) {
	mt := c.Maptile()

	// Working copies only: clipping and projection mutate geometry in
	// place and the store shares geometry across tiles.
	fc := geojson.NewFeatureCollection()
	for i := range styled {
		g := cloneGeometry(styled[i].Geometry)
		if g == nil {
			continue
		}
		f := geojson.NewFeature(g)
		f.Properties["idx"] = i
		fc.Append(f)
	}

	layer := mvt.NewLayer("tile", fc)
	layer.Extent = uint32(e.size)
	layer.Clip(padBound(mt.Bound()))
	layer.ProjectToTile(mt)

	dc := gg.NewContext(e.size, e.size)
	dc.SetRGBA255(0, 0, 0, 0)
	dc.Clear()

	for _, f := range layer.Features {
		if f.Geometry == nil {
			continue
		}
		idx, ok := f.Properties["idx"].(int)
		if !ok {
			continue
		}
		e.drawGeometry(dc, f.Geometry, styled[idx])
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode tile png: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Engine) drawGeometry(dc *gg.Context, g orb.Geometry, sty style.Styled) {
	switch geom := g.(type) {
	case orb.Point:
		e.drawPoint(dc, geom, sty)
	case orb.MultiPoint:
		for _, p := range geom {
			e.drawPoint(dc, p, sty)
		}
	case orb.LineString:
		e.drawLine(dc, geom, sty)
	case orb.MultiLineString:
		for _, ls := range geom {
			e.drawLine(dc, ls, sty)
		}
	case orb.Ring:
		e.drawPolygon(dc, orb.Polygon{geom}, sty)
	case orb.Polygon:
		e.drawPolygon(dc, geom, sty)
	case orb.MultiPolygon:
		for _, poly := range geom {
			e.drawPolygon(dc, poly, sty)
		}
	case orb.Collection:
		for _, member := range geom {
			e.drawGeometry(dc, member, sty)
		}
	}
}

func (e *Engine) drawPoint(dc *gg.Context, p orb.Point, sty style.Styled) {
	r := sty.Radius
	if r <= 0 {
		r = 2
	}
	r *= e.scale

	if sty.Fill != "" {
		dc.SetHexColor(sty.Fill)
		dc.DrawCircle(p[0], p[1], r)
		dc.Fill()
	}
	if sty.Stroke != "" && sty.Width > 0 {
		dc.SetHexColor(sty.Stroke)
		dc.SetLineWidth(sty.Width * e.scale)
		dc.DrawCircle(p[0], p[1], r)
		dc.Stroke()
	}
}

func (e *Engine) drawLine(dc *gg.Context, ls orb.LineString, sty style.Styled) {
	if len(ls) < 2 || sty.Stroke == "" || sty.Width <= 0 {
		return
	}
	dc.SetHexColor(sty.Stroke)
	dc.SetLineWidth(sty.Width * e.scale)
	dc.MoveTo(ls[0][0], ls[0][1])
	for _, p := range ls[1:] {
		dc.LineTo(p[0], p[1])
	}
	dc.Stroke()
}

func (e *Engine) drawPolygon(dc *gg.Context, poly orb.Polygon, sty style.Styled) {
	tracePolygon := func() {
		for _, ring := range poly {
			if len(ring) < 3 {
				continue
			}
			dc.NewSubPath()
			dc.MoveTo(ring[0][0], ring[0][1])
			for _, p := range ring[1:] {
				dc.LineTo(p[0], p[1])
			}
			dc.ClosePath()
		}
	}

	if sty.Fill != "" {
		dc.SetHexColor(sty.Fill)
		tracePolygon()
		dc.Fill()
	}
	if sty.Stroke != "" && sty.Width > 0 {
		dc.SetHexColor(sty.Stroke)
		dc.SetLineWidth(sty.Width * e.scale)
		tracePolygon()
		dc.Stroke()
	}
}

func padBound(b orb.Bound) orb.Bound {
	dx := (b.Max[0] - b.Min[0]) * clipPad
	dy := (b.Max[1] - b.Min[1]) * clipPad
	return orb.Bound{
		Min: orb.Point{b.Min[0] - dx, b.Min[1] - dy},
		Max: orb.Point{b.Max[0] + dx, b.Max[1] + dy},
	}
}

// cloneGeometry deep-copies geometry; mvt clipping and projection mutate
// in place. Unknown geometry types clone to nil and are skipped.
func cloneGeometry(g orb.Geometry) orb.Geometry {
	switch geom := g.(type) {
	case orb.Point:
		return geom
	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(geom))
		copy(out, geom)
		return out
	case orb.LineString:
		out := make(orb.LineString, len(geom))
		copy(out, geom)
		return out
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(geom))
		for i, ls := range geom {
			out[i] = make(orb.LineString, len(ls))
			copy(out[i], ls)
		}
		return out
	case orb.Ring:
		out := make(orb.Ring, len(geom))
		copy(out, geom)
		return out
	case orb.Polygon:
		out := make(orb.Polygon, len(geom))
		for i, ring := range geom {
			out[i] = make(orb.Ring, len(ring))
			copy(out[i], ring)
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(geom))
		for i, poly := range geom {
			out[i] = make(orb.Polygon, len(poly))
			for j, ring := range poly {
				out[i][j] = make(orb.Ring, len(ring))
				copy(out[i][j], ring)
			}
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, 0, len(geom))
		for _, member := range geom {
			if c := cloneGeometry(member); c != nil {
				out = append(out, c)
			}
		}
		return out
	default:
		return nil
	}
}
