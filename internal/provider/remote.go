package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"tilesmith/internal/cache"
	"tilesmith/internal/raster"
	"tilesmith/internal/render"
	"tilesmith/internal/tile"
)

const remoteUserAgent = "tilesmith/1.0"

// Remote fetches pre-rendered tiles from an upstream tile endpoint,
// fronted by a cache so each coordinate is fetched at most once per
// cache lifetime. Unlike Local it blocks for the duration of the
// fetch; the request context bounds it.
type Remote struct {
	urlTemplate string
	client      *http.Client
	store       cache.Cache
	logger      *zap.Logger
}

// NewRemote builds a remote provider for a URL template containing
// {z}, {x} and {y} markers, e.g. https://tiles.example.com/{z}/{x}/{y}.png.
func NewRemote(urlTemplate string, timeout time.Duration, store cache.Cache, logger *zap.Logger) (*Remote, error) {
	for _, marker := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(urlTemplate, marker) {
			return nil, fmt.Errorf("tile url template %q is missing %s", urlTemplate, marker)
		}
	}
	return &Remote{
		urlTemplate: urlTemplate,
		client:      &http.Client{Timeout: timeout},
		store:       store,
		logger:      logger,
	}, nil
}

func (r *Remote) url(c tile.Coordinate) string {
	rep := strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(c.Z), 10),
		"{x}", strconv.FormatUint(uint64(c.X), 10),
		"{y}", strconv.FormatUint(uint64(c.Y), 10),
	)
	return rep.Replace(r.urlTemplate)
}

func (r *Remote) Texture(ctx context.Context, c tile.Coordinate) (render.Result, error) {
	if !c.Valid() {
		return render.Result{}, ErrUnsupported
	}

	if data, ok := r.store.Get(c); ok {
		return render.Result{State: render.StateReady, PNG: data}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url(c), nil)
	if err != nil {
		return render.Result{}, fmt.Errorf("build tile request: %w", err)
	}
	req.Header.Set("User-Agent", remoteUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return render.Result{}, fmt.Errorf("fetch tile %s: %w", c, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNoContent:
		return render.Result{State: render.StateEmpty, PNG: raster.TransparentPNG}, nil
	default:
		return render.Result{}, fmt.Errorf("fetch tile %s: unexpected status %s", c, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return render.Result{}, fmt.Errorf("read tile %s: %w", c, err)
	}
	if len(data) == 0 {
		return render.Result{State: render.StateEmpty, PNG: raster.TransparentPNG}, nil
	}

	r.store.Set(c, data)
	r.logger.Debug("Fetched remote tile",
		zap.String("tile", c.String()),
		zap.Int("bytes", len(data)))
	return render.Result{State: render.StateReady, PNG: data}, nil
}

func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
