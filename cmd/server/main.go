package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tilesmith/internal/cache"
	"tilesmith/internal/config"
	"tilesmith/internal/geodata"
	httphandlers "tilesmith/internal/http"
	"tilesmith/internal/logger"
	"tilesmith/internal/provider"
	"tilesmith/internal/raster"
	"tilesmith/internal/render"
	"tilesmith/internal/style"
	"tilesmith/internal/tile"
)

func main() {
	configPath := flag.String("c", "tilesmith.toml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting Tilesmith server",
		zap.String("addr", cfg.Addr()),
		zap.String("tiles_source", cfg.TilesSource),
	)

	tiles, stats, err := buildProvider(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tile provider", zap.Error(err))
	}

	handlers := httphandlers.New(cfg, log, tiles, stats)

	mux := http.NewServeMux()

	mux.HandleFunc("/tiles/", handlers.HandleTiles)
	mux.HandleFunc("/status", handlers.HandleStatus)
	mux.HandleFunc("/healthz", handlers.HandleHealthz)

	handler := handlers.CORSMiddleware(handlers.RequestLoggingMiddleware(mux))

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("addr", cfg.Addr()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := tiles.Close(); err != nil {
		log.Warn("Tile provider close failed", zap.Error(err))
	}

	log.Info("Server stopped")
}

// buildProvider assembles the tile source chain for cfg.TilesSource. The
// stats func is non-nil only when a local renderer is part of the chain.
func buildProvider(cfg *config.Config, log *zap.Logger) (provider.TileProvider, httphandlers.StatsFunc, error) {
	switch cfg.TilesSource {
	case "local":
		local, err := buildLocal(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return local, local.Stats, nil

	case "remote":
		remote, err := buildRemote(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return remote, nil, nil

	case "combined":
		remote, err := buildRemote(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		local, err := buildLocal(cfg, log)
		if err != nil {
			log.Warn("Local renderer unavailable, serving remote tiles only", zap.Error(err))
			return remote, nil, nil
		}
		return provider.NewCombined(log, local, remote), local.Stats, nil
	}

	return nil, nil, fmt.Errorf("unknown tiles source: %s", cfg.TilesSource)
}

// buildLocal loads the geodata store and stands up the render pipeline
// behind a single-writer provider.
func buildLocal(cfg *config.Config, log *zap.Logger) (*provider.Local, error) {
	store, err := geodata.NewStore(cfg.GeodataDir, log)
	if err != nil {
		return nil, fmt.Errorf("load geodata: %w", err)
	}

	sheet := style.DefaultSheet()
	if cfg.StylePath != "" {
		sheet, err = style.LoadSheet(cfg.StylePath)
		if err != nil {
			return nil, fmt.Errorf("load style sheet: %w", err)
		}
	}

	placeholders, err := raster.NewPlaceholders(tile.Size * cfg.TileScale)
	if err != nil {
		return nil, fmt.Errorf("build placeholders: %w", err)
	}

	pipeline := render.Pipeline{
		Source: store,
		Styler: sheet,
		Drawer: raster.NewEngine(cfg.TileScale),
	}

	renderer := render.New(pipeline, cfg.RenderWorkers, placeholders, cfg.EmptyTransparent, log)

	return provider.NewLocal(renderer), nil
}

// buildRemote fronts the configured upstream with a tile cache.
func buildRemote(cfg *config.Config, log *zap.Logger) (*provider.Remote, error) {
	store, err := cache.NewCache(cfg.CacheType, cfg.CacheFileDir, cfg.CacheMemoryTiles, log)
	if err != nil {
		return nil, fmt.Errorf("initialize tile cache: %w", err)
	}
	return provider.NewRemote(cfg.RemoteURL, cfg.RemoteTimeout, store, log)
}
