package render

import (
	"fmt"

	"tilesmith/internal/geodata"
	"tilesmith/internal/raster"
	"tilesmith/internal/style"
	"tilesmith/internal/tile"
)

// Pipeline is the linear render job for one tile: collect nearby
// entities, style them, rasterize. Pool workers run it with a progress
// callback; the batch prerenderer runs it without one.
type Pipeline struct {
	Source geodata.Source
	Styler style.Styler
	Drawer raster.Drawer
}

// Render produces the tile's encoded bytes, or (nil, nil) when the
// coordinate has no renderable content. progress, when non-nil, is
// invoked with StateCollecting, StateStyling and StateDrawing before
// the matching stage runs.
func (p Pipeline) Render(c tile.Coordinate, progress func(State)) ([]byte, error) {
	mark := func(s State) {
		if progress != nil {
			progress(s)
		}
	}

	mark(StateCollecting)
	entities := p.Source.EntitiesNear(c)
	if len(entities) == 0 {
		return nil, nil
	}

	mark(StateStyling)
	styled := p.Styler.Style(entities, c.Z)
	if len(styled) == 0 {
		return nil, nil
	}

	mark(StateDrawing)
	png, err := p.Drawer.Draw(styled, c)
	if err != nil {
		return nil, fmt.Errorf("rasterize tile %s: %w", c, err)
	}
	if len(png) == 0 {
		return nil, fmt.Errorf("rasterizer returned no bytes for tile %s", c)
	}
	return png, nil
}
