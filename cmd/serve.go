package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"textchunking/internal/adapter/outbound/messaging"
	"textchunking/internal/adapter/outbound/repository"
	"textchunking/internal/application/common/slogger"
	"textchunking/internal/application/service"
	"textchunking/internal/application/worker"
	"textchunking/internal/config"
	"textchunking/internal/port/outbound"
	"textchunking/internal/version"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"golang.org/x/sync/errgroup"
)

// newServeCmd creates and returns the serve command.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the batch progress engine service",
		Long: `Start the batch progress engine service.

The service:
- Tracks in-flight correction batches in an in-memory registry
- Enforces the concurrent batch admission cap and per-batch timeouts
- Publishes batch lifecycle events to NATS JetStream (optional)
- Archives lifecycle events to PostgreSQL (optional)
- Periodically evicts finished batches past their retention age

Configuration is loaded from config files and environment variables.`,
		Run: func(_ *cobra.Command, _ []string) {
			runEngineService()
		},
	}
}

// engineService bundles the running components so shutdown can unwind them
// in order.
type engineService struct {
	lifecycle  *service.BatchLifecycleService
	dispatcher *service.NotificationDispatcher
	reaper     *worker.Reaper
	publisher  *messaging.NATSEventPublisher
	dbPool     *pgxpool.Pool
}

// runEngineService starts and runs the batch progress engine.
func runEngineService() {
	cfg := GetConfig()

	slogger.Init(slogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := setupMeterProvider(); err != nil {
		slogger.ErrorNoCtx("Failed to set up metrics provider", slogger.Fields{"error": err.Error()})
		return
	}

	slogger.InfoNoCtx("Starting batch progress engine", slogger.Fields{
		"version":                version.Get().Version,
		"max_concurrent_batches": cfg.Batch.MaxConcurrentBatches,
		"batch_timeout":          cfg.Batch.BatchTimeout.String(),
	})

	svc, err := createEngineService(cfg)
	if err != nil {
		slogger.ErrorNoCtx("Failed to create engine service", slogger.Fields{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.dispatcher.Start(ctx)
	svc.reaper.Start(ctx)

	slogger.InfoNoCtx("Engine service started successfully", nil)

	waitForShutdownAndStop(ctx, svc)
}

// setupMeterProvider installs the global OpenTelemetry meter provider.
func setupMeterProvider() error {
	info := version.Get()
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", "textchunking"),
			attribute.String("service.version", info.Version),
		),
	)
	if err != nil {
		return err
	}

	provider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewManualReader()),
	)
	otel.SetMeterProvider(provider)
	return nil
}

// createEngineService builds the engine with all configured dependencies.
// The optional NATS publisher and event archive are initialized in parallel.
func createEngineService(cfg *config.Config) (*engineService, error) {
	svc := &engineService{}

	var g errgroup.Group

	if cfg.NATS.Enabled {
		g.Go(func() error {
			publisher, err := setupEventPublisher(cfg)
			if err != nil {
				return err
			}
			svc.publisher = publisher
			return nil
		})
	}

	if cfg.Archive.Enabled {
		g.Go(func() error {
			pool, err := repository.NewDatabaseConnection(cfg.Database)
			if err != nil {
				return err
			}
			svc.dbPool = pool
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if svc.publisher != nil {
			_ = svc.publisher.Disconnect()
		}
		if svc.dbPool != nil {
			svc.dbPool.Close()
		}
		return nil, err
	}

	var handlers []outbound.BatchEventHandler
	if svc.publisher != nil {
		handlers = append(handlers, svc.publisher)
	}
	if svc.dbPool != nil {
		handlers = append(handlers, repository.NewPostgreSQLBatchEventArchive(svc.dbPool))
	}

	bufferSize := cfg.Batch.EventBufferSize
	if bufferSize <= 0 {
		bufferSize = service.DefaultEventBufferSize
	}
	svc.dispatcher = service.NewNotificationDispatcher(bufferSize, handlers...)

	registry := service.NewBatchRegistry()
	svc.lifecycle = service.NewBatchLifecycleService(
		context.Background(),
		service.BatchLifecycleConfig{
			MaxConcurrentBatches: cfg.Batch.MaxConcurrentBatches,
			BatchTimeout:         cfg.Batch.BatchTimeout,
			MaxBatchAge:          cfg.Batch.MaxBatchAge,
		},
		registry,
		svc.dispatcher,
	)

	svc.reaper = worker.NewReaper(cfg.Batch.CleanupInterval, svc.lifecycle)

	return svc, nil
}

// setupEventPublisher connects the NATS publisher and ensures its stream.
func setupEventPublisher(cfg *config.Config) (*messaging.NATSEventPublisher, error) {
	publisher, err := messaging.NewNATSEventPublisher(cfg.NATS)
	if err != nil {
		return nil, err
	}
	if err := publisher.Connect(); err != nil {
		return nil, err
	}
	if err := publisher.EnsureStream(); err != nil {
		_ = publisher.Disconnect()
		return nil, err
	}
	return publisher, nil
}

// waitForShutdownAndStop waits for a shutdown signal and unwinds the engine:
// the reaper stops first, in-flight batches are cancelled and swept, the
// dispatcher drains, then the external connections close.
func waitForShutdownAndStop(ctx context.Context, svc *engineService) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	slogger.InfoNoCtx("Received shutdown signal, initiating graceful shutdown", slogger.Fields{
		"signal": sig.String(),
	})

	svc.reaper.Stop()

	cancelled := svc.lifecycle.CancelAll(ctx)
	evicted := svc.lifecycle.Cleanup(ctx)
	slogger.InfoNoCtx("Drained batch registry", slogger.Fields{
		"cancelled": cancelled,
		"evicted":   evicted,
	})

	svc.dispatcher.Close()

	if svc.publisher != nil {
		if err := svc.publisher.Disconnect(); err != nil {
			slogger.ErrorNoCtx("Error disconnecting event publisher", slogger.Fields{"error": err.Error()})
		}
	}
	if svc.dbPool != nil {
		svc.dbPool.Close()
	}

	slogger.InfoNoCtx("Engine service shutdown completed successfully", nil)
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
