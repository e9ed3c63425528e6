package render

import (
	"go.uber.org/zap"

	"tilesmith/internal/raster"
	"tilesmith/internal/tile"
)

// Result is the best visual currently available for a coordinate: the
// rendered bytes once a tile is Ready, a state placeholder before
// that. The PNG slice is shared with the cache and must be treated as
// read-only.
type Result struct {
	State State
	PNG   []byte
}

// Renderer answers tile queries from a per-process cache and schedules
// misses onto a fixed worker pool. It is not safe for concurrent use:
// cache and pool are single-writer, and every caller goes through one
// owning goroutine (see provider.Local).
type Renderer struct {
	pool             *Pool
	cache            *tileCache
	placeholders     *raster.Placeholders
	transparentEmpty bool
	logger           *zap.Logger
}

// New builds a renderer over a fresh pool of the given size. When
// transparentEmpty is set, Empty tiles resolve to a 1x1 transparent
// image instead of the labelled placeholder.
func New(pipeline Pipeline, workers int, placeholders *raster.Placeholders, transparentEmpty bool, logger *zap.Logger) *Renderer {
	return &Renderer{
		pool:             NewPool(workers, pipeline, logger),
		cache:            newTileCache(logger),
		placeholders:     placeholders,
		transparentEmpty: transparentEmpty,
		logger:           logger,
	}
}

// Query returns the best available visual for the coordinate without
// ever blocking on render work. ok is false only for coordinates
// outside the tile grid.
//
// A cache miss dispatches the coordinate when a slot is free and marks
// it Unrequested; that entry is the in-flight marker, so a coordinate
// is never dispatched twice. When the pool is at capacity the miss
// leaves no entry behind and a later query retries the dispatch.
func (r *Renderer) Query(c tile.Coordinate) (Result, bool) {
	if !c.Valid() {
		return Result{}, false
	}

	if !r.pool.Idle() {
		for _, rep := range r.pool.DrainReports() {
			r.cache.apply(rep)
		}
	}

	if e, ok := r.cache.get(c); ok {
		return r.resolve(e), true
	}

	if !r.pool.Busy() && r.pool.Dispatch(c) {
		r.cache.put(c, entry{state: StateUnrequested})
	}
	return Result{State: StateUnrequested, PNG: r.placeholders.Waiting}, true
}

func (r *Renderer) resolve(e entry) Result {
	switch e.state {
	case StateReady:
		return Result{State: StateReady, PNG: e.png}
	case StateEmpty:
		return Result{State: StateEmpty, PNG: r.emptyPNG()}
	case StateFailed:
		return Result{State: StateFailed, PNG: r.placeholders.Failed}
	case StateCollecting:
		return Result{State: StateCollecting, PNG: r.placeholders.Collecting}
	case StateStyling:
		return Result{State: StateStyling, PNG: r.placeholders.Styling}
	case StateDrawing:
		return Result{State: StateDrawing, PNG: r.placeholders.Drawing}
	default:
		return Result{State: StateUnrequested, PNG: r.placeholders.Waiting}
	}
}

func (r *Renderer) emptyPNG() []byte {
	if r.transparentEmpty {
		return raster.TransparentPNG
	}
	return r.placeholders.Empty
}

// Stats is a point-in-time snapshot for the status endpoint.
type Stats struct {
	CachedTiles int            `json:"cached_tiles"`
	ByState     map[string]int `json:"by_state"`
	PoolSize    int            `json:"pool_size"`
	InFlight    int            `json:"in_flight"`
	Lifecycle   string         `json:"lifecycle"`
}

// Stats reports cache and pool occupancy. Like Query it must run on
// the renderer's owning goroutine.
func (r *Renderer) Stats() Stats {
	byState := make(map[string]int)
	for s, n := range r.cache.countByState() {
		byState[s.String()] = n
	}
	return Stats{
		CachedTiles: r.cache.len(),
		ByState:     byState,
		PoolSize:    r.pool.Size(),
		InFlight:    r.pool.InFlight(),
		Lifecycle:   r.pool.State().String(),
	}
}

// Close shuts the pool down; queries keep answering from the cache but
// no new work is dispatched.
func (r *Renderer) Close() {
	r.pool.Close()
}
