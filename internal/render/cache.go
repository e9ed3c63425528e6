package render

import (
	"go.uber.org/zap"

	"tilesmith/internal/tile"
)

// tileCache maps coordinates to their visual state. It carries no lock
// on purpose: only the renderer's goroutine touches it, and workers
// hand results over by message passing. Entries are never evicted; the
// offline store does not change mid-run, so a terminal tile stays
// correct for the life of the process.
type tileCache struct {
	entries map[tile.Coordinate]entry
	logger  *zap.Logger
}

type entry struct {
	state State
	png   []byte
}

func newTileCache(logger *zap.Logger) *tileCache {
	return &tileCache{
		entries: make(map[tile.Coordinate]entry),
		logger:  logger,
	}
}

func (tc *tileCache) get(c tile.Coordinate) (entry, bool) {
	e, ok := tc.entries[c]
	return e, ok
}

func (tc *tileCache) put(c tile.Coordinate, e entry) {
	tc.entries[c] = e
}

// apply folds a worker report into the cache. Reports arriving for a
// coordinate already terminal are dropped; terminal states are final.
func (tc *tileCache) apply(r Report) {
	if cur, ok := tc.entries[r.Coord]; ok && cur.state.Terminal() {
		tc.logger.Warn("Dropped report for terminal tile",
			zap.String("tile", r.Coord.String()),
			zap.String("have", cur.state.String()),
			zap.String("got", r.State.String()))
		return
	}
	tc.entries[r.Coord] = entry{state: r.State, png: r.PNG}
}

func (tc *tileCache) len() int { return len(tc.entries) }

func (tc *tileCache) countByState() map[State]int {
	out := make(map[State]int)
	for _, e := range tc.entries {
		out[e.state]++
	}
	return out
}
