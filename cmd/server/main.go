package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bookhub/book-notify/internal/api"
	"github.com/bookhub/book-notify/internal/config"
	"github.com/bookhub/book-notify/internal/db"
	"github.com/bookhub/book-notify/internal/domain"
	"github.com/bookhub/book-notify/internal/event"
	"github.com/bookhub/book-notify/internal/fanout"
	"github.com/bookhub/book-notify/internal/metrics"
	"github.com/bookhub/book-notify/internal/queue"
	"github.com/bookhub/book-notify/internal/ratelimiter"
	"github.com/bookhub/book-notify/internal/repository"
	"github.com/bookhub/book-notify/internal/sender"
	"github.com/bookhub/book-notify/internal/service"
	"github.com/bookhub/book-notify/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	dbPool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	transport := queue.NewMemoryTransport(queue.MemoryConfig{
		MaxDepth:          cfg.QueueMaxDepth,
		VisibilityTimeout: cfg.VisibilityTimeout,
		RedeliveryDelay:   cfg.RedeliveryDelay,
		MaxMessageSize:    cfg.MaxMessageSize,
		MaxBatchSize:      cfg.MaxBatchSize,
	})
	client := queue.NewClient(transport, logger)

	bookRepo := repository.NewPgBookRepository(dbPool)
	subRepo := repository.NewPgSubscriberRepository(dbPool)

	bus := event.NewBus(cfg.EventBuffer, cfg.EventMaxAttempts, logger)
	bookSvc := service.NewBookService(bookRepo, bus, logger)
	subSvc := service.NewSubscriberService(subRepo, logger)

	selector := fanout.NewSelector(subRepo)
	orch := fanout.NewOrchestrator(bookRepo, selector, client, logger, m.OnEnqueued)
	bus.Subscribe(domain.EventBookCreated, fanout.BookCreatedHandler(orch))

	// ---- delivery side ----
	limiter := ratelimiter.New(cfg.RateLimit)
	emailSender := sender.NewStubEmailSender(logger)
	var webhookSender sender.WebhookSender = sender.NewStubWebhookSender(logger)
	if cfg.WebhookDelivery == "http" {
		webhookSender = sender.NewHTTPWebhookSender(cfg.WebhookTimeout)
	}
	executor := worker.NewDeliveryExecutor(subRepo, emailSender, webhookSender, limiter, logger)

	onCompleted, onAbandoned, onDeadLettered := m.ConsumerHooks()
	consumer := worker.NewConsumer(transport, executor, cfg.MaxDeliveryAttempts, logger, worker.Hooks{
		OnCompleted:    onCompleted,
		OnAbandoned:    onAbandoned,
		OnDeadLettered: onDeadLettered,
	})

	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	workerPool := worker.NewPool(transport, consumer, cfg.Workers, logger)
	workerPool.Start(workerCtx)

	for i := 0; i < cfg.EventDispatchers; i++ {
		go bus.Run(workerCtx)
	}

	// Periodically mirror queue depth into the gauges.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				pending, inflight := transport.Depth()
				m.QueuePending.Set(float64(pending))
				m.QueueInFlight.Set(float64(inflight))
			}
		}
	}()

	// ---- HTTP server ----
	router := api.NewRouter(bookSvc, subSvc, transport, bus, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal workers and dispatchers to stop pulling new work.
	cancelWorkers()

	// 3. Wait for in-flight deliveries to settle. A delivery interrupted
	//    mid-flight stays unacknowledged: completing it would claim side
	//    effects that never finished.
	workerPool.Wait()

	logger.Info("server stopped cleanly")
}
