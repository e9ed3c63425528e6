// Package provider defines the closed set of tile sources the server
// can serve from: the in-process renderer, a remote tile endpoint, or
// an ordered combination of the two.
package provider

import (
	"context"
	"errors"

	"tilesmith/internal/render"
	"tilesmith/internal/tile"
)

// TileProvider resolves a coordinate to its best available visual.
// Implementations are free to answer with progress placeholders while
// rendering continues in the background.
type TileProvider interface {
	// Texture returns the provider's current visual for the coordinate.
	// The returned bytes are shared and must be treated as read-only.
	Texture(ctx context.Context, c tile.Coordinate) (render.Result, error)

	// Close releases background resources. Requests arriving after
	// Close may fail with ErrClosed.
	Close() error
}

// ErrUnsupported marks a coordinate outside the grid, or outside what
// the provider is able to serve.
var ErrUnsupported = errors.New("unsupported tile coordinate")

// ErrClosed is returned for requests arriving after Close.
var ErrClosed = errors.New("tile provider is closed")
