package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/infrastructure/config"
	"github.com/meridianmed/marketing-compliance-backend/internal/infrastructure/database"
	"github.com/meridianmed/marketing-compliance-backend/internal/infrastructure/telemetry"
	auditsvc "github.com/meridianmed/marketing-compliance-backend/internal/service/audit"
)

// One-shot retention sweep for operators. The API binary runs the same
// sweep on its nightly schedule; this exists for manual runs and backfills.
func main() {
	timeout := flag.Duration("timeout", 30*time.Minute, "Sweep timeout")
	flag.Parse()

	if err := run(*timeout); err != nil {
		fmt.Fprintf(os.Stderr, "archiver: %v\n", err)
		os.Exit(1)
	}
}

func run(timeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	enforcer := auditsvc.NewRetentionEnforcer(
		database.NewAuditEventRepository(pool),
		auditsvc.NewMetrics(prometheus.NewRegistry()),
		logger,
	)

	archived, err := enforcer.Enforce(ctx)
	if err != nil {
		return fmt.Errorf("retention sweep: %w", err)
	}

	logger.Info("retention sweep finished", zap.Int("archived", archived))
	return nil
}
