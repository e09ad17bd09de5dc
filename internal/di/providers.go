package di

import (
	"context"
	"fmt"
	"time"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/drawdown"
	"TradeGate/internal/engine"
	"TradeGate/internal/execution"
	"TradeGate/internal/handler/api"
	internalrepo "TradeGate/internal/repository"
	"TradeGate/internal/risk"
	"TradeGate/internal/telemetry"
	"TradeGate/internal/usecase"
	"TradeGate/pkg/cache"
	pkgch "TradeGate/pkg/clickhouse"
	"TradeGate/pkg/config"
	pkgkafka "TradeGate/pkg/kafka"
	"TradeGate/pkg/logger"
	"TradeGate/pkg/metrics"
	"TradeGate/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideRedisCache creates the Redis client backing risk state.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	opts := []cache.RedisOption{
		cache.WithRedisDB(cfg.Redis.DB),
	}
	if cfg.Redis.Host != "" {
		opts = append(opts, cache.WithRedisHost(cfg.Redis.Host))
	}
	if cfg.Redis.Port != 0 {
		opts = append(opts, cache.WithRedisPort(cfg.Redis.Port))
	}
	if cfg.Redis.Password != "" {
		opts = append(opts, cache.WithRedisPassword(cfg.Redis.Password))
	}
	if cfg.Redis.Prefix != "" {
		opts = append(opts, cache.WithRedisPrefix(cfg.Redis.Prefix))
	}
	if cfg.Redis.PoolSize > 0 {
		opts = append(opts, cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, 30*time.Second))
	}
	rc, err := cache.NewRedisCache(opts...)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideDrawdownStore creates the Redis-backed drawdown persistence.
func ProvideDrawdownStore(rc *cache.RedisCache) drawdown.Store {
	return internalrepo.NewRedisDrawdownStore(rc)
}

// ProvideTracker creates the drawdown tracker from the configured preset.
func ProvideTracker(cfg *config.Config, store drawdown.Store, log *logger.Logger, rec *metrics.Recorder) (*drawdown.Tracker, error) {
	tracker, err := drawdown.NewTracker(cfg.DrawdownConfig(), store, log, rec)
	if err != nil {
		return nil, fmt.Errorf("drawdown tracker: %w", err)
	}
	return tracker, nil
}

// ProvideClickHouseClient creates a ClickHouse client when enabled, nil
// otherwise. The execution log is optional infrastructure.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.ExecutionLogSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideExecutionLogStore creates the write-behind execution log.
func ProvideExecutionLogStore(chClient *pkgch.Client, log *logger.Logger) *internalrepo.ExecutionLogStore {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewExecutionLogStore(chClient.DB(), log)
}

// ProvideKafkaProducer creates a Kafka producer when enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideStreamer creates the telemetry streamer, nil when Kafka is off.
func ProvideStreamer(producer *pkgkafka.Producer, log *logger.Logger) *telemetry.Streamer {
	if producer == nil {
		return nil
	}
	return telemetry.NewStreamer(producer, log)
}

// ProvideExecutionService builds the dispatch service with all three
// providers and the configured sinks.
func ProvideExecutionService(
	cfg *config.Config,
	logStore *internalrepo.ExecutionLogStore,
	streamer *telemetry.Streamer,
	log *logger.Logger,
	rec *metrics.Recorder,
) (*execution.Service, error) {
	paper := execution.NewPaperProvider()
	paper.Configure(cfg.Execution.Paper)

	sandbox := execution.NewSandboxProvider(cfg.Execution.SandboxMaxAmount)

	// Live dispatch stays disabled until a venue gateway is plugged in.
	live := execution.NewLiveProvider(nil)

	opts := []execution.ServiceOption{}
	if cfg.Execution.CacheSize > 0 {
		opts = append(opts, execution.WithCacheSize(cfg.Execution.CacheSize))
	}
	if cfg.Execution.RateLimit.Enabled {
		opts = append(opts, execution.WithRateLimit(cfg.Execution.RateLimit.Capacity, cfg.Execution.RateLimit.RefillPerSec))
	}
	var sinks []execution.Sink
	if logStore != nil {
		sinks = append(sinks, logStore)
	}
	if streamer != nil {
		sinks = append(sinks, streamer)
	}
	if len(sinks) > 0 {
		opts = append(opts, execution.WithSinks(sinks...))
	}

	svc := execution.NewService(live, paper, sandbox, log, rec, opts...)

	if cfg.Execution.Mode != "" {
		if err := svc.SetMode(models.ExecutionMode(cfg.Execution.Mode)); err != nil {
			return nil, fmt.Errorf("execution mode: %w", err)
		}
	}
	if cfg.Execution.EntropyEnabled {
		svc.ConfigureEntropy(true, cfg.Execution.EntropyFixedDelay)
	}
	return svc, nil
}

// ProvideRiskCalculator creates the exposure threshold calculator.
func ProvideRiskCalculator(cfg *config.Config) risk.Calculator {
	return risk.NewThresholdCalculator(cfg.Risk)
}

// ProvideEngine assembles the strategy engine over the execution
// service and the drawdown gate.
func ProvideEngine(
	cfg *config.Config,
	svc *execution.Service,
	calc risk.Calculator,
	tracker *drawdown.Tracker,
	log *logger.Logger,
	rec *metrics.Recorder,
) *engine.Engine {
	return engine.New(cfg.Engine, svc, calc, tracker, log, rec)
}

// ProvideKafkaConsumer creates the equity update consumer when enabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideEquityHandler registers the handler for the equity topic.
func ProvideEquityHandler(cfg *config.Config, tracker *drawdown.Tracker, streamer *telemetry.Streamer, rec *metrics.Recorder) *usecase.EquityUpdateHandler {
	return usecase.NewEquityUpdateHandler(cfg.Kafka.EquityTopic, tracker, streamer, rec)
}

// ProvideOpsHandler creates the operator HTTP API.
func ProvideOpsHandler(
	cfg *config.Config,
	log *logger.Logger,
	eng *engine.Engine,
	svc *execution.Service,
	tracker *drawdown.Tracker,
	logStore *internalrepo.ExecutionLogStore,
) *api.OpsHandler {
	return api.NewOpsHandler(log, eng, svc, tracker, logStore, cfg.Execution.LatencyThresholds)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	handler *api.OpsHandler,
	consumer *pkgkafka.Consumer,
	equity *usecase.EquityUpdateHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	logStore *internalrepo.ExecutionLogStore,
	rc *cache.RedisCache,
) *server.App {
	return server.New(cfg, log, handler, consumer, equity, chClient, producer, logStore, rc)
}
