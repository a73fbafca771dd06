package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"mocktest-service/internal/config"
	"mocktest-service/internal/domain"
	"mocktest-service/internal/infra/memory"
	"mocktest-service/internal/infra/postgres"
	rediscache "mocktest-service/internal/infra/redis"
	"mocktest-service/internal/logging"
)

// NewImportCmd validates test definition files and upserts them into Postgres.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>...",
		Short: "Validate and import test definitions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, args)
		},
	}
}

func runImport(ctx context.Context, configPath string, files []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer logger.Sync()

	defs := make([]domain.TestDefinition, 0, len(files))
	for _, file := range files {
		def, err := readDefinition(file)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		defs = append(defs, def)
	}

	if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
		return err
	}
	db := postgres.OpenDB(cfg.Postgres.URL)
	defer db.Close()
	writer := postgres.NewTestWriter(db)

	// Cached copies would otherwise be served until their TTL ran out.
	var cache *rediscache.TestRepository
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = rediscache.NewTestRepository(client, memory.NewStaticTestLoader(nil), config.TTLDuration(cfg.Content.TTL, 10*time.Minute))
	}

	for _, def := range defs {
		if err := writer.Upsert(ctx, def); err != nil {
			return err
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, def.ID); err != nil {
				logger.Warn("cache invalidation failed", zap.String("test", def.ID), zap.Error(err))
			}
		}
		logger.Info("test imported", zap.String("test", def.ID), zap.Int("questions", def.QuestionCount()))
	}
	return nil
}

func readDefinition(path string) (domain.TestDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.TestDefinition{}, err
	}
	var def domain.TestDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return domain.TestDefinition{}, fmt.Errorf("%w: %v", domain.ErrMalformedDefinition, err)
	}
	if err := domain.Validate(def); err != nil {
		return domain.TestDefinition{}, err
	}
	return def, nil
}
