package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Host          string
	Port          int
	AllowedOrigin string

	LogLevel    string
	LogEncoding string

	TilesSource string
	TileScale   int
	MaxZoom     uint32 // highest zoom served over http; 0 serves every level

	GeodataDir string
	StylePath  string

	RenderWorkers    int
	EmptyTransparent bool

	RemoteURL     string
	RemoteTimeout time.Duration

	CacheType        string
	CacheFileDir     string
	CacheMemoryTiles int

	Output Output
	Task   Task
}

// Output configures where the prerenderer writes tiles.
type Output struct {
	Format  string
	Target  string
	Name    string
	MinZoom uint32
	MaxZoom uint32
}

// Task configures the prerenderer run itself.
type Task struct {
	Workers   int
	PipeSize  int
	RedisAddr string
}

// Load reads a toml config file and merges TILESMITH_* environment
// variables over it. A missing file is fine; defaults and environment
// carry the whole configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigFile(path)
	v.SetEnvPrefix("tilesmith")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Host:          v.GetString("server.host"),
		Port:          v.GetInt("server.port"),
		AllowedOrigin: v.GetString("server.allowed_origin"),

		LogLevel:    v.GetString("log.level"),
		LogEncoding: v.GetString("log.encoding"),

		TilesSource: v.GetString("tiles.source"),
		TileScale:   v.GetInt("tiles.scale"),
		MaxZoom:     v.GetUint32("tiles.max_zoom"),

		GeodataDir: v.GetString("geodata.dir"),
		StylePath:  v.GetString("geodata.style"),

		RenderWorkers:    v.GetInt("render.workers"),
		EmptyTransparent: v.GetBool("render.empty_transparent"),

		RemoteURL:     v.GetString("remote.url"),
		RemoteTimeout: time.Duration(v.GetInt("remote.timeout_seconds")) * time.Second,

		CacheType:        v.GetString("cache.type"),
		CacheFileDir:     v.GetString("cache.dir"),
		CacheMemoryTiles: v.GetInt("cache.memory_tiles"),

		Output: Output{
			Format:  v.GetString("output.format"),
			Target:  v.GetString("output.target"),
			Name:    v.GetString("output.name"),
			MinZoom: v.GetUint32("output.min_zoom"),
			MaxZoom: v.GetUint32("output.max_zoom"),
		},
		Task: Task{
			Workers:   v.GetInt("task.workers"),
			PipeSize:  v.GetInt("task.savepipe"),
			RedisAddr: v.GetString("task.redis"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origin", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")

	v.SetDefault("tiles.source", "local")
	v.SetDefault("tiles.scale", 1)
	v.SetDefault("tiles.max_zoom", 19)

	v.SetDefault("geodata.dir", "data/geojson")
	v.SetDefault("geodata.style", "")

	v.SetDefault("render.workers", 0)
	v.SetDefault("render.empty_transparent", false)

	v.SetDefault("remote.url", "")
	v.SetDefault("remote.timeout_seconds", 10)

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.dir", "data/cache")
	v.SetDefault("cache.memory_tiles", 2000)

	v.SetDefault("output.format", "mbtiles")
	v.SetDefault("output.target", "output/tiles.mbtiles")
	v.SetDefault("output.name", "tilesmith")
	v.SetDefault("output.min_zoom", 0)
	v.SetDefault("output.max_zoom", 8)

	v.SetDefault("task.workers", 4)
	v.SetDefault("task.savepipe", 64)
	v.SetDefault("task.redis", "")
}

func (c *Config) validate() error {
	switch c.TilesSource {
	case "local", "remote", "combined":
	default:
		return fmt.Errorf("unknown tiles source: %s (supported: local, remote, combined)", c.TilesSource)
	}
	if c.TilesSource != "local" && c.RemoteURL == "" {
		return fmt.Errorf("tiles source %s requires remote.url", c.TilesSource)
	}
	if c.TileScale < 1 {
		c.TileScale = 1
	}
	return nil
}

// Addr is the listen address for the http server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
