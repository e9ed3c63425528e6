package render

import (
	"runtime"

	"go.uber.org/zap"

	"tilesmith/internal/tile"
)

// Lifecycle is the pool's run state. A pool starts Running, passes
// through Draining while its job channels close, and ends Stopped.
type Lifecycle int

const (
	Running Lifecycle = iota
	Draining
	Stopped
)

func (l Lifecycle) String() string {
	switch l {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Pool owns a fixed set of render workers. Like the tile cache it is
// confined to the goroutine that created it; workers hand results back
// over channels rather than sharing state.
type Pool struct {
	workers []*worker
	free    []int
	state   Lifecycle
	logger  *zap.Logger
}

// NewPool starts n workers. n <= 0 selects the hardware parallelism,
// never less than one worker.
func NewPool(n int, pipeline Pipeline, logger *zap.Logger) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	p := &Pool{
		workers: make([]*worker, 0, n),
		free:    make([]int, 0, n),
		state:   Running,
		logger:  logger,
	}
	for i := 0; i < n; i++ {
		w := newWorker(i, pipeline, logger)
		p.workers = append(p.workers, w)
		p.free = append(p.free, i)
		go w.run()
	}
	return p
}

// Size returns the fixed worker count.
func (p *Pool) Size() int { return len(p.workers) }

// Idle reports whether every slot is free.
func (p *Pool) Idle() bool { return len(p.free) == len(p.workers) }

// Busy reports whether no slot is free. Callers check Busy before
// Dispatch and hold the request until a later query finds a free slot.
func (p *Pool) Busy() bool { return len(p.free) == 0 }

// InFlight returns the number of occupied slots.
func (p *Pool) InFlight() int { return len(p.workers) - len(p.free) }

// State returns the pool lifecycle state.
func (p *Pool) State() Lifecycle { return p.state }

// Dispatch hands the coordinate to a free worker and reports whether
// it did. It is a silent no-op when the pool is busy or no longer
// running; the job is not queued anywhere and the caller retries on a
// later query. The most recently freed slot is reused first.
func (p *Pool) Dispatch(c tile.Coordinate) bool {
	if p.state != Running || len(p.free) == 0 {
		return false
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.workers[idx].jobs <- c
	return true
}

// DrainReports collects every report currently available without
// blocking, visiting slots in ascending index order. A terminal report
// frees its slot for reuse.
func (p *Pool) DrainReports() []Report {
	var out []Report
	for i, w := range p.workers {
	slot:
		for {
			select {
			case r := <-w.reports:
				if r.State.Terminal() {
					p.free = append(p.free, i)
				}
				out = append(out, r)
			default:
				break slot
			}
		}
	}
	return out
}

// Close stops accepting work and closes every job channel so idle
// workers exit. Workers are not joined: a job still rendering finishes
// on its own or is abandoned with the process, and reports nobody
// drains are dropped. Close is idempotent.
func (p *Pool) Close() {
	if p.state != Running {
		return
	}
	p.state = Draining
	for _, w := range p.workers {
		close(w.jobs)
	}
	p.DrainReports()
	abandoned := p.InFlight()
	p.state = Stopped
	p.logger.Info("Render pool stopped",
		zap.Int("workers", len(p.workers)),
		zap.Int("abandoned", abandoned))
}
