// Package prerender renders whole zoom levels ahead of time and
// persists them through a sink, with optional resume bookkeeping in
// redis so an interrupted run can pick up where it stopped.
package prerender

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"

	"tilesmith/internal/render"
	"tilesmith/internal/sink"
	"tilesmith/internal/tile"
)

const mbtilesVersion = "1.2"

// Signal is the task's run state.
type Signal int32

const (
	Initialize Signal = iota
	Running
	Ending
	Aborting
	Terminated
)

// Options configures a prerender run.
type Options struct {
	ID        string // resume a previous run; empty starts fresh
	Name      string
	MinZoom   uint32
	MaxZoom   uint32
	Workers   int
	PipeSize  int // tiles per sink batch
	RedisAddr string
}

// Task renders every tile covering a bound between MinZoom and
// MaxZoom. Rendering fans out over a worker semaphore; finished tiles
// funnel through a single saving pipe into the sink.
type Task struct {
	ID string

	pipeline render.Pipeline
	bound    orb.Bound
	out      sink.Sink
	opts     Options
	logger   *zap.Logger

	workers    chan struct{}
	savingpipe chan sink.Record
	wg         sync.WaitGroup
	pipeDone   chan struct{}
	abort      chan struct{}
	abortOnce  sync.Once
	state      atomic.Int32

	rendered atomic.Int64
	empty    atomic.Int64
	failed   atomic.Int64

	cursor    *cursorStore
	startZoom uint32
	startCol  int64
}

// NewTask wires a run over the given pipeline and sink. bound is the
// lon/lat extent to cover, normally the geodata store's bound.
func NewTask(pipeline render.Pipeline, bound orb.Bound, out sink.Sink, opts Options, logger *zap.Logger) (*Task, error) {
	if opts.MinZoom > opts.MaxZoom {
		return nil, fmt.Errorf("min zoom %d exceeds max zoom %d", opts.MinZoom, opts.MaxZoom)
	}
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.PipeSize < 1 {
		opts.PipeSize = 64
	}

	t := &Task{
		ID:         uuid.New().String(),
		pipeline:   pipeline,
		bound:      bound,
		out:        out,
		opts:       opts,
		logger:     logger,
		workers:    make(chan struct{}, opts.Workers),
		savingpipe: make(chan sink.Record, opts.PipeSize),
		pipeDone:   make(chan struct{}),
		abort:      make(chan struct{}),
		startZoom:  opts.MinZoom,
		startCol:   -1,
	}
	if opts.ID != "" {
		t.ID = opts.ID
	}

	if opts.RedisAddr != "" {
		t.cursor = newCursorStore(opts.RedisAddr, t.ID)
		if zoom, col, ok := t.cursor.load(); ok {
			t.startZoom = zoom
			t.startCol = col
			logger.Info("Resuming prerender task",
				zap.String("task", t.ID),
				zap.Uint32("zoom", zoom),
				zap.Int64("column", col))
		}
	}
	return t, nil
}

// Signal returns the task's current run state.
func (t *Task) Signal() Signal { return Signal(t.state.Load()) }

// Abort asks the task to stop after the tiles already in flight.
func (t *Task) Abort() {
	t.abortOnce.Do(func() {
		t.state.Store(int32(Aborting))
		close(t.abort)
	})
}

// Run renders all zoom levels and blocks until the sink has flushed.
// An aborted run saves its cursor and returns nil; rerunning with the
// same task ID resumes from there. An abort that arrives before Run
// wins over the start.
func (t *Task) Run() error {
	t.state.CompareAndSwap(int32(Initialize), int32(Running))
	go t.savePipe()

	for z := t.startZoom; z <= t.opts.MaxZoom; z++ {
		if t.Signal() >= Aborting {
			break
		}
		t.renderZoom(z)
	}

	if t.Signal() < Aborting {
		t.retryFailures()
		t.state.Store(int32(Ending))
	}

	close(t.savingpipe)
	<-t.pipeDone

	aborted := t.Signal() == Aborting
	if aborted {
		if t.cursor != nil {
			t.cursor.close()
		}
		t.state.Store(int32(Terminated))
		t.logger.Info("Prerender task aborted, cursor saved", zap.String("task", t.ID))
		return nil
	}

	if err := t.out.PutMetadata(t.metadata()); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if t.cursor != nil {
		t.cursor.cleanup()
		t.cursor.close()
	}
	t.state.Store(int32(Terminated))
	return nil
}

// Summary reports what the run produced so far.
type Summary struct {
	Rendered int64
	Empty    int64
	Failed   int64
}

func (t *Task) Summary() Summary {
	return Summary{
		Rendered: t.rendered.Load(),
		Empty:    t.empty.Load(),
		Failed:   t.failed.Load(),
	}
}

func (t *Task) renderZoom(z uint32) {
	minX, minY, maxX, maxY := coverage(t.bound, z)
	count := int64(maxX-minX+1) * int64(maxY-minY+1)
	t.logger.Info("Rendering zoom level",
		zap.Uint32("zoom", z),
		zap.Int64("tiles", count))

	bar := pb.New64(count)
	bar.Start()

	curCol := int64(-1)
	for x := minX; x <= maxX; x++ {
		if t.startCol >= 0 && z == t.startZoom && int64(x) < t.startCol {
			bar.Add(int(maxY - minY + 1))
			continue
		}
		if t.cursor != nil && int64(x) != curCol {
			curCol = int64(x)
			t.cursor.save(z, curCol)
		}
		for y := minY; y <= maxY; y++ {
			if t.Signal() >= Aborting {
				t.wg.Wait()
				bar.Finish()
				t.logger.Info("Zoom level canceled", zap.Uint32("zoom", z))
				return
			}
			select {
			case t.workers <- struct{}{}:
				bar.Increment()
				t.wg.Add(1)
				go t.renderTile(tile.Coordinate{X: x, Y: y, Z: z})
			case <-t.abort:
				t.wg.Wait()
				bar.Finish()
				t.logger.Info("Zoom level canceled", zap.Uint32("zoom", z))
				return
			}
		}
	}
	t.wg.Wait()
	bar.Finish()
}

func (t *Task) renderTile(c tile.Coordinate) {
	defer func() {
		t.wg.Done()
		<-t.workers
	}()

	png, err := t.pipeline.Render(c, nil)
	if err != nil {
		t.failed.Add(1)
		if t.cursor != nil {
			t.cursor.recordFailure(c, err.Error())
		}
		t.logger.Warn("Tile render failed", zap.String("tile", c.String()), zap.Error(err))
		return
	}
	if png == nil {
		t.empty.Add(1)
		return
	}

	t.rendered.Add(1)
	if t.Signal() < Aborting {
		t.savingpipe <- sink.Record{Coord: c, Data: png}
	}
}

// retryFailures makes one pass over the fail list before the run
// finishes; tiles that fail again stay recorded for the next run.
func (t *Task) retryFailures() {
	if t.cursor == nil {
		return
	}
	fails, err := t.cursor.failures()
	if err != nil || len(fails) == 0 {
		return
	}
	t.logger.Info("Retrying failed tiles", zap.Int("count", len(fails)))

	for _, c := range fails {
		if t.Signal() >= Aborting {
			return
		}
		png, err := t.pipeline.Render(c, nil)
		if err != nil {
			continue
		}
		t.cursor.clearFailure(c)
		t.failed.Add(-1)
		if png == nil {
			t.empty.Add(1)
			continue
		}
		t.rendered.Add(1)
		t.savingpipe <- sink.Record{Coord: c, Data: png}
	}
}

// savePipe is the single sink writer: it batches tiles and flushes
// when a batch fills, then once more when the pipe closes.
func (t *Task) savePipe() {
	defer close(t.pipeDone)

	var batch []sink.Record
	for rec := range t.savingpipe {
		batch = append(batch, rec)
		if len(batch) >= t.opts.PipeSize {
			t.flush(batch)
			batch = nil
		}
	}
	t.flush(batch)
}

func (t *Task) flush(batch []sink.Record) {
	if len(batch) == 0 {
		return
	}
	if err := t.out.WriteBatch(batch); err != nil {
		t.logger.Error("Tile batch write failed", zap.Int("count", len(batch)), zap.Error(err))
		if t.cursor != nil {
			for _, rec := range batch {
				t.cursor.recordFailure(rec.Coord, "save failure")
			}
		}
		return
	}
	t.logger.Debug("Tile batch saved", zap.Int("count", len(batch)))
}

func (t *Task) metadata() map[string]string {
	b := t.bound
	return map[string]string{
		"id":          t.ID,
		"name":        t.opts.Name,
		"format":      "png",
		"type":        "baselayer",
		"version":     mbtilesVersion,
		"pixel_scale": "256",
		"bounds":      fmt.Sprintf("%f,%f,%f,%f", b.Left(), b.Bottom(), b.Right(), b.Top()),
		"center":      fmt.Sprintf("%f,%f,%d", (b.Left()+b.Right())/2, (b.Bottom()+b.Top())/2, (t.opts.MinZoom+t.opts.MaxZoom)/2),
		"minzoom":     fmt.Sprintf("%d", t.opts.MinZoom),
		"maxzoom":     fmt.Sprintf("%d", t.opts.MaxZoom),
	}
}

// coverage returns the inclusive tile range covering the bound at the
// given zoom. A bound touching the antimeridian maps one past the last
// column, so the range is clamped to the grid.
func coverage(b orb.Bound, zoom uint32) (minX, minY, maxX, maxY uint32) {
	z := maptile.Zoom(zoom)
	tl := maptile.At(b.LeftTop(), z)
	br := maptile.At(b.RightBottom(), z)

	limit := uint32(1<<zoom) - 1
	clamp := func(v uint32) uint32 {
		if v > limit {
			return limit
		}
		return v
	}

	minX, maxX = clamp(tl.X), clamp(br.X)
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY = clamp(tl.Y), clamp(br.Y)
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return minX, minY, maxX, maxY
}
