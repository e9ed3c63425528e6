package render

import "tilesmith/internal/tile"

// State is the visual lifecycle of one tile coordinate. A tile moves
// strictly forward through the pending states; Ready, Empty and Failed
// are terminal and never revisited for the life of the cache.
type State int

const (
	StateUnrequested State = iota
	StateCollecting
	StateStyling
	StateDrawing
	StateReady
	StateEmpty
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnrequested:
		return "unrequested"
	case StateCollecting:
		return "collecting"
	case StateStyling:
		return "styling"
	case StateDrawing:
		return "drawing"
	case StateReady:
		return "ready"
	case StateEmpty:
		return "empty"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state never changes again.
func (s State) Terminal() bool {
	return s == StateReady || s == StateEmpty || s == StateFailed
}

// InFlight reports whether a worker currently owns the coordinate.
func (s State) InFlight() bool {
	return s == StateCollecting || s == StateStyling || s == StateDrawing
}

// Report is one progress message from a worker. Ready carries the
// rendered bytes, Failed the error; the stage reports carry neither.
type Report struct {
	Coord tile.Coordinate
	State State
	PNG   []byte
	Err   error
}
