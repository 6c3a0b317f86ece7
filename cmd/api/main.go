package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/api/middleware"
	"github.com/meridianmed/marketing-compliance-backend/internal/api/rest"
	"github.com/meridianmed/marketing-compliance-backend/internal/infrastructure/cache"
	"github.com/meridianmed/marketing-compliance-backend/internal/infrastructure/config"
	"github.com/meridianmed/marketing-compliance-backend/internal/infrastructure/database"
	"github.com/meridianmed/marketing-compliance-backend/internal/infrastructure/telemetry"
	auditsvc "github.com/meridianmed/marketing-compliance-backend/internal/service/audit"
	"github.com/meridianmed/marketing-compliance-backend/internal/service/claims"
	"github.com/meridianmed/marketing-compliance-backend/internal/service/gate"
	"github.com/meridianmed/marketing-compliance-backend/internal/service/ruleengine"
)

const serviceName = "marketing-compliance-api"

func main() {
	if err := run(); err != nil {
		log.Fatalf("%s: %v", serviceName, err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.TracingEnabled,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("configuring redis: %w", err)
	}
	defer redisClient.Close()

	// Repositories.
	events := database.NewAuditEventRepository(pool)
	anomalies := database.NewAnomalyRepository(pool)
	reports := database.NewReportRepository(pool)
	complianceStore := database.NewComplianceRepository(pool)
	releases := database.NewReleaseRepository(pool)
	notifier := database.NewNotificationRepository(pool)
	users := database.NewIdentityRepository(pool)

	// Hot paths go through redis; both trackers degrade to postgres.
	tracker := cache.NewActivityTracker(redisClient)
	directory := cache.NewCachedDirectory(redisClient, users, logger)

	location := cfg.Location()
	registry := prometheus.DefaultRegisterer

	auditMetrics := auditsvc.NewMetrics(registry)
	detector := auditsvc.NewDetector(events, anomalies, tracker, notifier, logger, location)
	trail := auditsvc.NewTrail(events, directory, detector, auditMetrics, logger, auditsvc.Config{
		FlushInterval:    cfg.Audit.FlushInterval,
		FailureThreshold: cfg.Audit.FailureThreshold,
	})
	trail.Start()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := trail.Close(closeCtx); err != nil {
			logger.Error("audit trail close failed", zap.Error(err))
		}
	}()

	checker := auditsvc.NewIntegrityChecker(events, logger, location)
	enforcer := auditsvc.NewRetentionEnforcer(events, auditMetrics, logger)
	reporter := auditsvc.NewReporter(events, reports, logger, location)

	maintenance, err := auditsvc.NewMaintenance(trail, checker, enforcer, logger, auditsvc.MaintenanceConfig{
		IntegritySchedule: cfg.Audit.IntegritySchedule,
		RetentionSchedule: cfg.Audit.RetentionSchedule,
	})
	if err != nil {
		return fmt.Errorf("scheduling maintenance: %w", err)
	}
	maintenance.Start()
	defer maintenance.Stop()

	complianceGate := gate.NewGate(
		ruleengine.NewDefaultEngine(logger),
		claims.NewValidator(logger),
		complianceStore,
		releases,
		trail,
		notifier,
		gate.NewMetrics(registry),
		logger,
		gate.Config{
			ReviewerIDs:   cfg.Gate.ReviewerIDs,
			EscalateAfter: cfg.Gate.Approval.EscalateAfter,
		},
	)

	go escalateLoop(ctx, complianceGate, logger)

	server := rest.NewServer(complianceGate, reporter, pool, logger)
	handler := middleware.Chain(server.Routes(),
		middleware.Recover(logger),
		middleware.Logging(logger),
		middleware.RateLimit(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.BurstSize),
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// escalateLoop periodically re-notifies reviewers about stale pending
// approvals. Nothing auto-resolves; a human still has to decide.
func escalateLoop(ctx context.Context, g *gate.Gate, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			escalated, err := g.EscalateStale(ctx)
			if err != nil {
				logger.Error("stale approval escalation failed", zap.Error(err))
				continue
			}
			if escalated > 0 {
				logger.Info("escalated stale approvals", zap.Int("count", escalated))
			}
		}
	}
}

func newRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return redis.NewClient(&redis.Options{Addr: "localhost:6379", Password: cfg.Password, DB: cfg.DB}), nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return redis.NewClient(opts), nil
}
