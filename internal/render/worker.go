package render

import (
	"go.uber.org/zap"

	"tilesmith/internal/tile"
)

// reportBuffer is sized for the longest possible report sequence of a
// single job (collecting, styling, drawing, then one terminal). A slot
// is not reused until its terminal report has been drained, so a send
// can never block.
const reportBuffer = 4

// worker owns one pool slot. It receives coordinates on its job
// channel and publishes progress on its report channel; it never
// touches the tile cache.
type worker struct {
	id       int
	jobs     chan tile.Coordinate
	reports  chan Report
	pipeline Pipeline
	logger   *zap.Logger
}

func newWorker(id int, pipeline Pipeline, logger *zap.Logger) *worker {
	return &worker{
		id:       id,
		jobs:     make(chan tile.Coordinate, 1),
		reports:  make(chan Report, reportBuffer),
		pipeline: pipeline,
		logger:   logger,
	}
}

// run executes jobs until the job channel is closed.
func (w *worker) run() {
	for c := range w.jobs {
		w.render(c)
	}
}

func (w *worker) render(c tile.Coordinate) {
	png, err := w.pipeline.Render(c, func(s State) {
		w.reports <- Report{Coord: c, State: s}
	})
	switch {
	case err != nil:
		w.logger.Warn("Tile render failed",
			zap.String("tile", c.String()),
			zap.Int("worker", w.id),
			zap.Error(err))
		w.reports <- Report{Coord: c, State: StateFailed, Err: err}
	case png == nil:
		w.reports <- Report{Coord: c, State: StateEmpty}
	default:
		w.reports <- Report{Coord: c, State: StateReady, PNG: png}
	}
}
