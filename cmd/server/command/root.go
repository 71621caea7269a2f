// Package command holds the inventory-engine CLI. The root command runs
// the HTTP server; sub-commands cover schema migration, manual history
// purges and token minting for operators.
//
//	./inventory-engine [-c config.yaml]
//	./inventory-engine migrate [-c config.yaml]
//	./inventory-engine purge --kind homestay --id <uuid> [--before 2024-07-01]
//	./inventory-engine token --sub ops-1 --role staff
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/staydrive/inventory-engine/internal/app"
	"github.com/staydrive/inventory-engine/internal/availability"
	"github.com/staydrive/inventory-engine/internal/config"
	"github.com/staydrive/inventory-engine/internal/db"
	"github.com/staydrive/inventory-engine/internal/pkg/log"
	"github.com/staydrive/inventory-engine/internal/pkg/tracing"
)

const serviceName = "inventory-engine"

// version is stamped at build time with -ldflags "-X ...command.version=".
var version = "dev"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Date-keyed inventory and reservation engine",
	Long: `Inventory and reservation engine for homestays, rental cars and
drivers. Capacity is tracked per resource and calendar day; bookings
reserve every night of their range or nothing at all.`,
	SilenceUsage: true,
	RunE:         serve,
}

// Execute runs rootCmd and exits non-zero when the selected command fails.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(fixConfigPath)
	rootCmd.PersistentFlags().StringVarP(
		&cfgPath, "config", "c", "", "config file path",
	)
}

// fixConfigPath falls back to the CONFIG_FILE environment variable. An
// empty path means environment-only configuration.
func fixConfigPath() {
	if cfgPath != "" {
		return
	}
	cfgPath = os.Getenv("CONFIG_FILE")
}

// loadConfig loads the config and installs the process logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log.Setup(os.Stderr, cfg.IsProduction, slog.LevelInfo)
	return cfg, nil
}

// resources are the external connections opened for a command.
type resources struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

func (r *resources) Close() {
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
}

func connect(ctx context.Context, cfg *config.Config) (*resources, error) {
	res := &resources{}
	if cfg.Storage == config.StoragePostgres {
		pool, err := db.NewPool(ctx, cfg.DBDSN, 0)
		if err != nil {
			return nil, err
		}
		res.pool = pool
	}
	if cfg.RedisURL != "" {
		res.redis = availability.NewRedisClient(cfg.RedisURL)
		if err := res.redis.Ping(ctx).Err(); err != nil {
			res.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
	}
	return res, nil
}

func newContainer(cfg *config.Config, res *resources) *app.Container {
	return app.NewContainer(app.Config{
		IsProduction:    cfg.IsProduction,
		ProdOrigins:     cfg.ProdOrigins,
		DBPool:          res.pool,
		RedisClient:     res.redis,
		JWTSecret:       cfg.JWTSecret,
		JWTTTL:          cfg.JWTAccessTokenTTL,
		Location:        cfg.BusinessLocation,
		InitHorizonDays: cfg.InitHorizonDays,
		TxMaxAttempts:   cfg.TxMaxAttempts,
		LockTimeout:     cfg.LockTimeout,
		CacheTTL:        cfg.CacheTTL,
	})
}

func serve(_ *cobra.Command, _ []string) error {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTelEndpoint, serviceName, version)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn(context.Background(), "tracer shutdown failed", log.Err("error", err))
		}
	}()

	res, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	container := newContainer(cfg, res)

	if cfg.RetentionInterval > 0 {
		go container.Cleaner.Run(ctx, cfg.RetentionInterval, cfg.RetentionDays)
	}

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server running",
			log.String("addr", cfg.HTTPAddr), log.String("storage", cfg.Storage), log.String("version", version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server forced to shutdown", log.Err("error", err))
		return err
	}

	log.Info(shutdownCtx, "server exited gracefully")
	return nil
}
