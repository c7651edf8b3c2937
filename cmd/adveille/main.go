// CLAUDE:SUMMARY Entry point for the adveille MCP server — stdio transport, optional chi admin listener.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/adveille/adveille/adscan"
	"github.com/adveille/adveille/adsource"
	"github.com/adveille/adveille/dbopen"
	"github.com/adveille/adveille/genai"
	"github.com/adveille/adveille/mediacache"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	resultsDir := env("RESULTS_DIR", "results")
	cacheDir := env("CACHE_DIR", "cache/media")
	cacheDB := env("CACHE_DB", "cache/media.db")
	configFile := env("CONFIG_FILE", "")
	adminAddr := env("ADMIN_ADDR", "")
	logLevel := env("LOG_LEVEL", "info")

	// Logging goes to stderr: stdout carries the MCP stdio protocol.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := adscan.DefaultConfig()
	if configFile != "" {
		loaded, err := adscan.LoadConfigFile(configFile)
		if err != nil {
			slog.Error("config file", "path", configFile, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	db, err := dbopen.Open(cacheDB, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("cache db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cache, err := mediacache.New(db, cacheDir, logger)
	if err != nil {
		slog.Error("media cache", "error", err)
		os.Exit(1)
	}

	store, err := adscan.NewResultStore(resultsDir, logger)
	if err != nil {
		slog.Error("result store", "error", err)
		os.Exit(1)
	}

	source := adsource.New(adsource.Config{
		APIKey: os.Getenv("SCRAPECREATORS_API_KEY"),
	}, logger)

	// Missing Gemini key disables analysis and the contextual filter phase;
	// the structural pipeline still runs.
	var ai adscan.AnalysisClient
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		ai = genai.New(genai.Config{APIKey: key}, logger)
	} else {
		slog.Warn("GEMINI_API_KEY not set, media analysis disabled")
	}

	svc := adscan.NewService(source, ai, cache, store, cfg, logger)

	if adminAddr != "" {
		go runAdmin(ctx, adminAddr, svc, store)
	}

	srv := mcp.NewServer(&mcp.Implementation{Name: "adveille", Version: "1.0.0"}, nil)
	svc.RegisterMCP(srv)

	slog.Info("adveille MCP server starting", "transport", "stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("mcp server", "error", err)
		os.Exit(1)
	}
}

// runAdmin serves a loopback diagnostics surface: health, cache stats and
// the list of result files.
func runAdmin(ctx context.Context, addr string, svc *adscan.Service, store *adscan.ResultStore) {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"status": "ok"})
	})
	r.Get("/api/cache/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := svc.CacheStats(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, stats)
	})
	r.Get("/api/results", func(w http.ResponseWriter, _ *http.Request) {
		names, err := store.List()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"files": names})
	})

	server := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("admin listener starting", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("admin listener", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
