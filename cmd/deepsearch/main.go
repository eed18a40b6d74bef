package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gosuda/deepsearch/internal/api/ws"
	"github.com/gosuda/deepsearch/internal/auth"
	"github.com/gosuda/deepsearch/internal/chat"
	"github.com/gosuda/deepsearch/internal/config"
	"github.com/gosuda/deepsearch/internal/domain"
	"github.com/gosuda/deepsearch/internal/model/gemini"
	"github.com/gosuda/deepsearch/internal/quota"
	"github.com/gosuda/deepsearch/internal/search"
	"github.com/gosuda/deepsearch/internal/server"
	"github.com/gosuda/deepsearch/internal/store/postgres"
	redisstore "github.com/gosuda/deepsearch/internal/store/redis"
	"github.com/gosuda/deepsearch/internal/tool"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	setupLogging(cfg.Log)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	var ledger domain.QuotaLedger = store.Quota()
	if cfg.Quota.Backend == config.QuotaBackendRedis {
		ledger = redisstore.NewQuotaLedger(pubsub.Client(), redisstore.DefaultQuotaRetention)
	}

	gate, err := quota.NewGate(ledger, store.Users(), cfg.Quota.DailyLimit,
		quota.WithLocation(cfg.Quota.Location()))
	if err != nil {
		return err
	}

	// Model backend.
	backend, err := gemini.New(ctx, cfg.Gemini.APIKey,
		gemini.WithModel(cfg.Chat.Model),
		gemini.WithMaxTokens(cfg.Gemini.MaxTokens))
	if err != nil {
		return err
	}

	// Tools.
	serper, err := search.New(cfg.Search.APIKey,
		search.WithBaseURL(cfg.Search.BaseURL),
		search.WithTimeout(cfg.Search.Timeout))
	if err != nil {
		return err
	}

	registry, err := tool.NewRegistry(tool.NewWebSearch(serper, cfg.Search.Results))
	if err != nil {
		return err
	}

	orchestrator := chat.NewOrchestrator(backend, registry,
		chat.WithMaxSteps(cfg.Chat.MaxSteps),
		chat.WithTimeout(cfg.Chat.RequestTimeout))

	srv := server.New(ctx, cfg, server.Deps{
		Auth:  auth.NewService(store.Users(), cfg.JWT.Secret),
		Gate:  gate,
		Chat:  orchestrator,
		Tools: registry,
		Users: store.Users(),
		Hub:   ws.NewHub(pubsub, cfg.Server.CORSOrigins...),
		Checks: map[string]server.Pinger{
			"postgres": store,
			"redis":    pubsub,
		},
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("quota_backend", cfg.Quota.Backend).
			Int("daily_limit", gate.Limit()).
			Msg("starting server")
		return srv.Start(gctx)
	})

	g.Go(func() error {
		// Block until shutdown signal or server failure.
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}

// setupLogging initializes structured logging. Config has already validated
// the level and format.
func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
