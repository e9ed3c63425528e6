package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tilesmith/internal/config"
	"tilesmith/internal/provider"
	"tilesmith/internal/render"
	"tilesmith/internal/tile"
)

// StatsFunc exposes renderer occupancy to the status endpoint; nil
// when the server runs without a local renderer.
type StatsFunc func(context.Context) (render.Stats, error)

type Handlers struct {
	config  *config.Config
	logger  *zap.Logger
	tiles   provider.TileProvider
	stats   StatsFunc
	started time.Time
}

func New(config *config.Config, logger *zap.Logger, tiles provider.TileProvider, stats StatsFunc) *Handlers {
	return &Handlers{
		config:  config,
		logger:  logger,
		tiles:   tiles,
		stats:   stats,
		started: time.Now(),
	}
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		ip := h.extractIP(r)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		bytes := wrapped.bytesWritten

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", ip),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", bytes),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigin := ""

		if h.config.AllowedOrigin != "" {
			allowedOrigin = h.config.AllowedOrigin
		} else {
			host := r.Host
			if origin != "" && strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host) {
				allowedOrigin = origin
			} else if origin == "" {
				allowedOrigin = "*"
			}
		}

		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HandleTiles serves GET /tiles/{z}/{x}/{y}.png. Tiles still being
// rendered answer immediately with a placeholder and an X-Tile-State
// header; clients poll until the state goes terminal.
func (h *Handlers) HandleTiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	coord, ok := h.parseTilePath(w, r.URL.Path)
	if !ok {
		return
	}
	if h.config.MaxZoom > 0 && coord.Z > h.config.MaxZoom {
		http.Error(w, "Zoom level not served", http.StatusNotFound)
		return
	}

	result, err := h.tiles.Texture(r.Context(), coord)
	switch {
	case err == nil:
	case errors.Is(err, provider.ErrUnsupported):
		http.Error(w, "Tile not found", http.StatusNotFound)
		return
	case errors.Is(err, provider.ErrClosed):
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return
	default:
		h.logger.Error("Failed to serve tile", zap.String("tile", coord.String()), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Tile-State", result.State.String())

	// Only Ready and Empty are final for the life of the process.
	// Everything else, Failed included, is a placeholder the client
	// should re-request.
	if result.State == render.StateReady || result.State == render.StateEmpty {
		etag := `"` + contentETag(result.PNG) + `"`
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "public, max-age=31536000")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(result.PNG)))

	// HEAD request doesn't send body
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Write(result.PNG)
}

func (h *Handlers) parseTilePath(w http.ResponseWriter, path string) (tile.Coordinate, bool) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, "/tiles/"), "/"), "/")
	if len(parts) != 3 {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return tile.Coordinate{}, false
	}

	var z, x, y int64
	if _, err := fmt.Sscanf(parts[0], "%d", &z); err != nil {
		http.Error(w, "Invalid zoom level", http.StatusBadRequest)
		return tile.Coordinate{}, false
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &x); err != nil {
		http.Error(w, "Invalid x coordinate", http.StatusBadRequest)
		return tile.Coordinate{}, false
	}

	name := parts[2]
	if !strings.HasSuffix(name, ".png") {
		http.Error(w, "Invalid format", http.StatusBadRequest)
		return tile.Coordinate{}, false
	}
	if _, err := fmt.Sscanf(strings.TrimSuffix(name, ".png"), "%d", &y); err != nil {
		http.Error(w, "Invalid y coordinate", http.StatusBadRequest)
		return tile.Coordinate{}, false
	}

	if z < 0 || x < 0 || y < 0 {
		http.Error(w, "Coordinates must be non-negative", http.StatusBadRequest)
		return tile.Coordinate{}, false
	}
	if z > math.MaxUint32 || x > math.MaxUint32 || y > math.MaxUint32 {
		http.Error(w, "Coordinates out of range", http.StatusBadRequest)
		return tile.Coordinate{}, false
	}

	return tile.Coordinate{X: uint32(x), Y: uint32(y), Z: uint32(z)}, true
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := map[string]interface{}{
		"source":         h.config.TilesSource,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}
	if h.stats != nil {
		s, err := h.stats(r.Context())
		if err != nil {
			h.logger.Warn("Failed to read renderer stats", zap.Error(err))
		} else {
			status["renderer"] = s
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func contentETag(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])[:16]
}

// Not for real production use due to potential spoofing
// but it's fine for a demo
func (h *Handlers) extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
