package prerender

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"

	"tilesmith/internal/tile"
)

// cursorStore keeps per-task resume state in redis: the zoom/column
// cursor under cursor:<id> and failed tiles in the fail_list:<id>
// hash. Every operation is best effort; a missing redis only costs the
// ability to resume.
type cursorStore struct {
	pool *redis.Pool
	id   string
}

type failedTile struct {
	X      uint32 `json:"x"`
	Y      uint32 `json:"y"`
	Z      uint32 `json:"z"`
	Reason string `json:"reason"`
}

func newCursorStore(addr, id string) *cursorStore {
	return &cursorStore{
		id: id,
		pool: &redis.Pool{
			MaxIdle:     16,
			MaxActive:   32,
			IdleTimeout: 2 * time.Minute,
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", addr)
			},
		},
	}
}

func (s *cursorStore) cursorKey() string { return "cursor:" + s.id }
func (s *cursorStore) failKey() string   { return "fail_list:" + s.id }

func tileField(c tile.Coordinate) string {
	return fmt.Sprintf("tile_%d_%d_%d", c.X, c.Y, c.Z)
}

// load returns the saved cursor, if any.
func (s *cursorStore) load() (zoom uint32, col int64, ok bool) {
	conn := s.pool.Get()
	defer conn.Close()

	reply, err := redis.String(conn.Do("get", s.cursorKey()))
	if err != nil {
		return 0, 0, false
	}
	parts := strings.Split(reply, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	z, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, false
	}
	c, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return uint32(z), c, true
}

func (s *cursorStore) save(zoom uint32, col int64) {
	conn := s.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("set", s.cursorKey(), fmt.Sprintf("%d:%d", zoom, col)); err != nil {
		return
	}
}

func (s *cursorStore) recordFailure(c tile.Coordinate, reason string) {
	conn := s.pool.Get()
	defer conn.Close()

	val, err := json.Marshal(failedTile{X: c.X, Y: c.Y, Z: c.Z, Reason: reason})
	if err != nil {
		return
	}
	if _, err := conn.Do("hset", s.failKey(), tileField(c), val); err != nil {
		return
	}
}

func (s *cursorStore) clearFailure(c tile.Coordinate) {
	conn := s.pool.Get()
	defer conn.Close()

	_, _ = conn.Do("hdel", s.failKey(), tileField(c))
}

// failures lists every tile still in the fail list.
func (s *cursorStore) failures() ([]tile.Coordinate, error) {
	conn := s.pool.Get()
	defer conn.Close()

	all, err := redis.StringMap(conn.Do("hgetall", s.failKey()))
	if err != nil {
		return nil, err
	}
	out := make([]tile.Coordinate, 0, len(all))
	for _, raw := range all {
		var ft failedTile
		if err := json.Unmarshal([]byte(raw), &ft); err != nil {
			continue
		}
		out = append(out, tile.Coordinate{X: ft.X, Y: ft.Y, Z: ft.Z})
	}
	return out, nil
}

// cleanup removes the task's keys after a completed run.
func (s *cursorStore) cleanup() {
	conn := s.pool.Get()
	defer conn.Close()

	_, _ = conn.Do("del", s.cursorKey())
	_, _ = conn.Do("del", s.failKey())
}

func (s *cursorStore) close() {
	_ = s.pool.Close()
}
