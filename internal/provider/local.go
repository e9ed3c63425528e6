package provider

import (
	"context"
	"sync"

	"tilesmith/internal/render"
	"tilesmith/internal/tile"
)

// Local serves tiles from the in-process renderer. The renderer's
// cache and pool are single-writer, so Local funnels every caller
// through one owning goroutine instead of sharing them under a lock.
type Local struct {
	requests  chan localRequest
	stats     chan chan render.Stats
	done      chan struct{}
	closeOnce sync.Once
	renderer  *render.Renderer
}

type localRequest struct {
	coord tile.Coordinate
	reply chan localReply
}

type localReply struct {
	result render.Result
	err    error
}

// NewLocal takes ownership of the renderer; Close shuts it down.
func NewLocal(r *render.Renderer) *Local {
	l := &Local{
		requests: make(chan localRequest),
		stats:    make(chan chan render.Stats),
		done:     make(chan struct{}),
		renderer: r,
	}
	go l.serve()
	return l
}

func (l *Local) serve() {
	for {
		select {
		case req := <-l.requests:
			res, ok := l.renderer.Query(req.coord)
			if !ok {
				req.reply <- localReply{err: ErrUnsupported}
				continue
			}
			req.reply <- localReply{result: res}
		case reply := <-l.stats:
			reply <- l.renderer.Stats()
		case <-l.done:
			l.renderer.Close()
			return
		}
	}
}

// Texture never blocks on render work: it answers the tile's bytes
// when ready and a state placeholder before that.
func (l *Local) Texture(ctx context.Context, c tile.Coordinate) (render.Result, error) {
	req := localRequest{coord: c, reply: make(chan localReply, 1)}
	select {
	case l.requests <- req:
	case <-l.done:
		return render.Result{}, ErrClosed
	case <-ctx.Done():
		return render.Result{}, ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep.result, rep.err
	case <-ctx.Done():
		return render.Result{}, ctx.Err()
	}
}

// Stats snapshots the renderer's cache and pool occupancy.
func (l *Local) Stats(ctx context.Context) (render.Stats, error) {
	reply := make(chan render.Stats, 1)
	select {
	case l.stats <- reply:
	case <-l.done:
		return render.Stats{}, ErrClosed
	case <-ctx.Done():
		return render.Stats{}, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return render.Stats{}, ctx.Err()
	}
}

// Close stops the serving goroutine and shuts the render pool down.
func (l *Local) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}
