package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TradeGate/internal/handler/api"
	internalrepo "TradeGate/internal/repository"
	"TradeGate/internal/usecase"
	"TradeGate/pkg/cache"
	pkgch "TradeGate/pkg/clickhouse"
	"TradeGate/pkg/config"
	xhttp "TradeGate/pkg/http"
	pkgkafka "TradeGate/pkg/kafka"
	applogger "TradeGate/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    *api.OpsHandler
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	equity     *usecase.EquityUpdateHandler
	chClient   *pkgch.Client
	producer   *pkgkafka.Producer
	logStore   *internalrepo.ExecutionLogStore
	redis      *cache.RedisCache
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler *api.OpsHandler,
	consumer *pkgkafka.Consumer,
	equity *usecase.EquityUpdateHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	logStore *internalrepo.ExecutionLogStore,
	redis *cache.RedisCache,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		handler:  handler,
		consumer: consumer,
		equity:   equity,
		chClient: chClient,
		producer: producer,
		logStore: logStore,
		redis:    redis,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start equity consumer if configured
	if a.consumer != nil && a.equity != nil {
		a.consumer.RegisterHandler(a.equity)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("equity consumer started", applogger.String("topic", a.equity.Topic()))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("ops api started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	// Stop accepting operator requests first
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	// Stop the equity consumer before closing its downstream stores
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Drain the execution log buffer
	if a.logStore != nil {
		if err := a.logStore.Close(); err != nil {
			a.log.Warn("execution log close error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
