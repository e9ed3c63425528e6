package provider

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tilesmith/internal/render"
	"tilesmith/internal/tile"
)

// Combined consults providers in order and answers with the first
// result. A provider that declines the coordinate or fails hands the
// request to the next one; only when every provider declines does an
// error surface.
type Combined struct {
	providers []TileProvider
	logger    *zap.Logger
}

func NewCombined(logger *zap.Logger, providers ...TileProvider) *Combined {
	return &Combined{providers: providers, logger: logger}
}

func (c *Combined) Texture(ctx context.Context, coord tile.Coordinate) (render.Result, error) {
	lastErr := ErrUnsupported
	for i, p := range c.providers {
		res, err := p.Texture(ctx, coord)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return render.Result{}, err
		}
		if !errors.Is(err, ErrUnsupported) {
			c.logger.Warn("Tile provider failed, trying next",
				zap.Int("provider", i),
				zap.String("tile", coord.String()),
				zap.Error(err))
		}
		lastErr = err
	}
	return render.Result{}, lastErr
}

func (c *Combined) Close() error {
	var err error
	for _, p := range c.providers {
		err = multierr.Append(err, p.Close())
	}
	return err
}
