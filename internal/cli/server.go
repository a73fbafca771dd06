package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"mocktest-service/internal/app"
	"mocktest-service/internal/config"
	"mocktest-service/internal/domain"
	"mocktest-service/internal/infra/memory"
	"mocktest-service/internal/infra/postgres"
	rediscache "mocktest-service/internal/infra/redis"
	"mocktest-service/internal/logging"
	"mocktest-service/internal/metrics"
	"mocktest-service/internal/scoring"
	transport "mocktest-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the attempt server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	snapshotTTL := config.TTLDuration(cfg.Attempt.SnapshotTTL, 72*time.Hour)

	var pool *pgxpool.Pool
	var attempts app.AttemptStore = memory.NewAttemptStore()
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		db := postgres.OpenDB(cfg.Postgres.URL)
		defer db.Close()
		attempts = postgres.NewAttemptStore(db)
	}

	var loader memory.TestLoader = memory.NewStaticTestLoader(sampleTests())
	switch {
	case pool != nil:
		loader = postgres.NewTestLoader(pool)
	case cfg.Content.Dir != "":
		loader = memory.NewFileTestLoader(cfg.Content.Dir)
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	var tests app.TestRepository
	var snapshots app.SnapshotStore
	var sessions app.SessionRegistry
	if redisClient != nil {
		tests = rediscache.NewTestRepository(redisClient, loader, contentTTL)
		snapshots = rediscache.NewSnapshotStore(redisClient, snapshotTTL)
		sessions = rediscache.NewSessionRegistry(redisClient, redisTTL)
	} else {
		tests = memory.NewTestRepository(loader, contentTTL)
		snapshots = memory.NewSnapshotStore()
		sessions = memory.NewSessionRegistry()
	}

	m := metrics.New()
	service := app.NewAttemptService(app.Dependencies{
		Tests:     tests,
		Snapshots: snapshots,
		Attempts:  attempts,
		Sessions:  sessions,
		Logger:    logger,
		Metrics:   m,
	}, app.Config{
		TickInterval:    cfg.TickInterval(),
		PersistInterval: cfg.PersistInterval(),
		Scoring:         scoring.Policy{NegativeMarking: cfg.Scoring.NegativeMarking},
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service, m, logger),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting attempt service", zap.String("port", finalPort), zap.Bool("redis", redisClient != nil), zap.Bool("postgres", pool != nil))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server...")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleTests provides a minimal demo test; configure content.dir or Postgres in production.
func sampleTests() map[string]domain.TestDefinition {
	return map[string]domain.TestDefinition{
		"sample-1": {
			ID:              "sample-1",
			Title:           "Quantitative Aptitude Sampler",
			DurationSeconds: 600,
			NegativeMark:    0.25,
			Questions: []domain.Question{
				{
					Text:               "What is 15% of 200?",
					Options:            []string{"20", "25", "30", "35"},
					CorrectOptionIndex: 2,
					SolutionText:       "0.15 x 200 = 30",
				},
				{
					Text:               "A train covers 120 km in 2 hours. Its speed is?",
					Options:            []string{"40 km/h", "60 km/h", "80 km/h", "120 km/h"},
					CorrectOptionIndex: 1,
					SolutionText:       "120 / 2 = 60 km/h",
				},
			},
		},
	}
}
