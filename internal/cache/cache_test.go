package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"tilesmith/internal/tile"
)

func key(x, y, z uint32) tile.Coordinate {
	return tile.Coordinate{X: x, Y: y, Z: z}
}

func TestMemoryCacheGetSet(t *testing.T) {
	c := NewMemoryCache(4)

	k := key(1, 2, 3)
	if _, ok := c.Get(k); ok {
		t.Fatal("empty cache returned a hit")
	}
	if c.Has(k) {
		t.Fatal("empty cache claims to hold the key")
	}

	c.Set(k, []byte("tile"))
	got, ok := c.Get(k)
	if !ok || !bytes.Equal(got, []byte("tile")) {
		t.Fatalf("Get = (%q, %v), want stored bytes", got, ok)
	}
	if !c.Has(k) {
		t.Error("Has = false after Set")
	}

	c.Set(k, []byte("tile2"))
	got, _ = c.Get(k)
	if !bytes.Equal(got, []byte("tile2")) {
		t.Errorf("Get after overwrite = %q, want %q", got, "tile2")
	}
}

func TestMemoryCacheEvictsLeastRecent(t *testing.T) {
	c := NewMemoryCache(2)

	a, b, d := key(0, 0, 1), key(1, 0, 1), key(0, 1, 1)
	c.Set(a, []byte("a"))
	c.Set(b, []byte("b"))

	// Touch a so b becomes the eviction candidate.
	if _, ok := c.Get(a); !ok {
		t.Fatal("a missing before eviction")
	}
	c.Set(d, []byte("d"))

	if c.Has(b) {
		t.Error("least recently used entry survived eviction")
	}
	if !c.Has(a) || !c.Has(d) {
		t.Error("recently used entries were evicted")
	}
}

func TestMemoryCacheClear(t *testing.T) {
	c := NewMemoryCache(4)
	c.Set(key(1, 1, 1), []byte("x"))
	c.Clear()
	if c.Has(key(1, 1, 1)) {
		t.Error("entry survived Clear")
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}

	k := key(3, 5, 4)
	if c.Has(k) {
		t.Fatal("fresh cache claims to hold the key")
	}
	c.Set(k, []byte("png-bytes"))

	got, ok := c.Get(k)
	if !ok || !bytes.Equal(got, []byte("png-bytes")) {
		t.Fatalf("Get = (%q, %v), want stored bytes", got, ok)
	}
	if !c.Has(k) {
		t.Error("Has = false after Set")
	}

	// Layout is {dir}/{z}/{x}/{y}.png so caches can be served as-is.
	if _, err := os.Stat(filepath.Join(dir, "4", "3", "5.png")); err != nil {
		t.Errorf("expected tile file on disk: %v", err)
	}

	c.Clear()
	if c.Has(k) {
		t.Error("entry survived Clear")
	}
}

func TestNoopCacheStoresNothing(t *testing.T) {
	c := NewNoopCache()
	k := key(1, 1, 1)
	c.Set(k, []byte("x"))
	if _, ok := c.Get(k); ok || c.Has(k) {
		t.Error("noop cache must never report a hit")
	}
}

func TestNewCache(t *testing.T) {
	log := zap.NewNop()

	if _, err := NewCache("memory", "", 16, log); err != nil {
		t.Errorf("memory: %v", err)
	}
	if _, err := NewCache("file", t.TempDir(), 0, log); err != nil {
		t.Errorf("file: %v", err)
	}
	if _, err := NewCache("disabled", "", 0, log); err != nil {
		t.Errorf("disabled: %v", err)
	}
	if _, err := NewCache("redis", "", 0, log); err == nil {
		t.Error("unknown cache type must be rejected")
	}
}
