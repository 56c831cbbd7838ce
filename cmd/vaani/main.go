// Command vaani runs the telephony voice assistant bridge: it answers
// telephony webhooks, hosts the media stream websocket, and serves call
// analytics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/vaani-ai/vaani/internal/archive"
	"github.com/vaani-ai/vaani/internal/callsession"
	"github.com/vaani-ai/vaani/internal/config"
	"github.com/vaani-ai/vaani/internal/knowledge"
	"github.com/vaani-ai/vaani/internal/observe"
	"github.com/vaani-ai/vaani/internal/server"
	"github.com/vaani-ai/vaani/pkg/provider/llm"
	"github.com/vaani-ai/vaani/pkg/provider/llm/anyllm"
	"github.com/vaani-ai/vaani/pkg/provider/stt"
	sarvamstt "github.com/vaani-ai/vaani/pkg/provider/stt/sarvam"
	"github.com/vaani-ai/vaani/pkg/provider/tts"
	sarvamtts "github.com/vaani-ai/vaani/pkg/provider/tts/sarvam"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vaani: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vaani: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("vaani starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"public_url", cfg.Server.PublicURL,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "vaani",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Knowledge base ────────────────────────────────────────────────────────
	engine := knowledge.NewEngineFromFile(cfg.Knowledge.Path)
	slog.Info("knowledge base loaded", "path", cfg.Knowledge.Path, "entries", engine.Base().Len())

	// ── Session registry ──────────────────────────────────────────────────────
	ttl := time.Duration(cfg.Sessions.TTLSeconds) * time.Second
	var store callsession.Store
	var sweeper *callsession.Sweeper
	switch cfg.Sessions.Backend {
	case config.BackendRedis:
		rs, err := callsession.NewRedisStoreFromURL(cfg.Sessions.RedisURL, ttl)
		if err != nil {
			slog.Error("failed to connect session store", "err", err)
			return 1
		}
		store = rs
	default:
		ms := callsession.NewMemStore()
		interval := time.Duration(cfg.Sessions.SweepIntervalSeconds) * time.Second
		sweeper = callsession.NewSweeper(ms, ttl, interval)
		store = ms
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("session store close error", "err", err)
		}
	}()

	// ── Voice pipeline providers ──────────────────────────────────────────────
	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Call archive (optional) ───────────────────────────────────────────────
	var callArchive *archive.Store
	if dsn := cfg.Archive.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect archive database", "err", err)
			return 1
		}
		defer pool.Close()

		callArchive = archive.New(pool)
		if err := callArchive.Migrate(ctx); err != nil {
			slog.Error("failed to migrate archive schema", "err", err)
			return 1
		}
		slog.Info("call archive enabled")
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv, err := server.New(server.Options{
		Store:       store,
		Engine:      engine,
		STT:         providers.stt,
		LLM:         providers.llm,
		TTS:         providers.tts,
		Archive:     callArchive,
		PublicURL:   cfg.Server.PublicURL,
		SearchLimit: cfg.Knowledge.Limit,
		MinScore:    cfg.Knowledge.MinScore,
	})
	if err != nil {
		slog.Error("failed to initialise server", "err", err)
		return 1
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready, press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		slog.Info("shutdown signal received, stopping")
		return httpServer.Shutdown(shutdownCtx)
	})
	if sweeper != nil {
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// pipeline bundles the three pipeline providers. Any of them may be nil when
// the corresponding config block is absent; the server then refuses media
// streams but still serves webhooks and analytics.
type pipeline struct {
	stt stt.Provider
	llm llm.Provider
	tts tts.Provider
}

// buildProviders instantiates the providers named in cfg.
func buildProviders(cfg *config.Config) (*pipeline, error) {
	ps := &pipeline{}

	if entry := cfg.Providers.STT; entry.Name != "" {
		switch entry.Name {
		case "sarvam":
			var opts []sarvamstt.Option
			if entry.BaseURL != "" {
				opts = append(opts, sarvamstt.WithBaseURL(entry.BaseURL))
			}
			if entry.Model != "" {
				opts = append(opts, sarvamstt.WithModel(entry.Model))
			}
			p, err := sarvamstt.New(entry.APIKey, opts...)
			if err != nil {
				return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
			}
			ps.stt = p
		default:
			return nil, fmt.Errorf("unsupported stt provider %q (supported: sarvam)", entry.Name)
		}
		slog.Info("provider created", "kind", "stt", "name", entry.Name)
	}

	if entry := cfg.Providers.LLM; entry.Name != "" {
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := anyllm.New(entry.Name, entry.Model, opts...)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
		}
		ps.llm = p
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
	}

	if entry := cfg.Providers.TTS; entry.Name != "" {
		switch entry.Name {
		case "sarvam":
			var opts []sarvamtts.Option
			if entry.BaseURL != "" {
				opts = append(opts, sarvamtts.WithBaseURL(entry.BaseURL))
			}
			if entry.Model != "" {
				opts = append(opts, sarvamtts.WithModel(entry.Model))
			}
			p, err := sarvamtts.New(entry.APIKey, opts...)
			if err != nil {
				return nil, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
			}
			ps.tts = p
		default:
			return nil, fmt.Errorf("unsupported tts provider %q (supported: sarvam)", entry.Name)
		}
		slog.Info("provider created", "kind", "tts", "name", entry.Name)
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Vaani — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Printf("║  Sessions        : %-19s ║\n", cfg.Sessions.Backend)
	if cfg.Archive.PostgresDSN != "" {
		fmt.Printf("║  Archive         : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Archive         : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  Knowledge path  : %-19s ║\n", trim(cfg.Knowledge.Path, 19))
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	if name == "" {
		name = "(none)"
	}
	if model != "" {
		name = name + "/" + model
	}
	fmt.Printf("║  %-16s: %-19s ║\n", kind, trim(name, 19))
}

// trim shortens s to at most n runes so the summary box stays aligned.
func trim(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
