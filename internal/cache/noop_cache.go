package cache

import "tilesmith/internal/tile"

type NoopCache struct{}

func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (c *NoopCache) Get(key tile.Coordinate) ([]byte, bool) {
	return nil, false
}

func (c *NoopCache) Set(key tile.Coordinate, value []byte) {
}

func (c *NoopCache) Has(key tile.Coordinate) bool {
	return false
}

func (c *NoopCache) Clear() {
}
