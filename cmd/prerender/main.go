package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tilesmith/internal/config"
	"tilesmith/internal/geodata"
	"tilesmith/internal/logger"
	"tilesmith/internal/prerender"
	"tilesmith/internal/raster"
	"tilesmith/internal/render"
	"tilesmith/internal/sink"
	"tilesmith/internal/style"
)

var (
	configPath string
	taskID     string
)

func init() {
	flag.StringVar(&configPath, "c", "tilesmith.toml", "set config `file`")
	flag.StringVar(&taskID, "task", "", "resume a previous run by `id`")
	flag.Usage = usage
}

func usage() {
	fmt.Fprintf(os.Stderr, `tilesmith prerender: batch-render a tile pyramid into a sink
Usage: prerender [-c file] [-task id]
`)
	flag.PrintDefaults()
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// The progress bar shares the terminal, so logs always use the
	// console encoder here.
	log, err := logger.New(cfg.LogLevel, "console")
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	store, err := geodata.NewStore(cfg.GeodataDir, log)
	if err != nil {
		log.Fatal("Failed to load geodata", zap.Error(err))
	}

	sheet := style.DefaultSheet()
	if cfg.StylePath != "" {
		sheet, err = style.LoadSheet(cfg.StylePath)
		if err != nil {
			log.Fatal("Failed to load style sheet", zap.Error(err))
		}
	}

	out, err := sink.New(cfg.Output.Format, cfg.Output.Target, log)
	if err != nil {
		log.Fatal("Failed to open output sink", zap.Error(err))
	}

	pipeline := render.Pipeline{
		Source: store,
		Styler: sheet,
		Drawer: raster.NewEngine(cfg.TileScale),
	}

	task, err := prerender.NewTask(pipeline, store.Bound(), out, prerender.Options{
		ID:        taskID,
		Name:      cfg.Output.Name,
		MinZoom:   cfg.Output.MinZoom,
		MaxZoom:   cfg.Output.MaxZoom,
		Workers:   cfg.Task.Workers,
		PipeSize:  cfg.Task.PipeSize,
		RedisAddr: cfg.Task.RedisAddr,
	}, log)
	if err != nil {
		log.Fatal("Failed to set up prerender task", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Warn("Interrupt received, finishing tiles in flight")
		task.Abort()
	}()

	start := time.Now()
	if err := task.Run(); err != nil {
		log.Fatal("Prerender run failed", zap.Error(err))
	}
	if err := out.Close(); err != nil {
		log.Error("Failed to close output sink", zap.Error(err))
	}

	s := task.Summary()
	log.Info("Prerender finished",
		zap.String("task", task.ID),
		zap.Int64("rendered", s.Rendered),
		zap.Int64("empty", s.Empty),
		zap.Int64("failed", s.Failed),
		zap.Duration("took", time.Since(start).Round(time.Millisecond)),
	)
}
