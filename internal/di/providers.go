package di

import (
	"context"
	"fmt"
	"time"

	"TradePulse/internal/analysis"
	"TradePulse/internal/bus"
	"TradePulse/internal/domain/repository"
	"TradePulse/internal/handler/api"
	mid "TradePulse/internal/middleware"
	internalrepo "TradePulse/internal/repository"
	"TradePulse/internal/service/watch"
	"TradePulse/internal/usecase"
	pkgcache "TradePulse/pkg/cache"
	pkgch "TradePulse/pkg/clickhouse"
	"TradePulse/pkg/config"
	pkgkafka "TradePulse/pkg/kafka"
	applogger "TradePulse/pkg/logger"
	"TradePulse/pkg/metrics"
	pkgqueue "TradePulse/pkg/queue"
	"TradePulse/pkg/scheduler"
	"TradePulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns),
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

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideDecisionStore creates the ClickHouse persistence gateway and its tables.
func ProvideDecisionStore(chClient *pkgch.Client, cfg *config.Config) (repository.DecisionStore, error) {
	store := internalrepo.NewClickHouseDecisionStore(chClient.DB(), cfg.ClickHouse.Database)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("decision store init: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
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

// ProvideDecisionPublisher creates the Kafka decision publisher.
func ProvideDecisionPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.DecisionPublisher {
	return internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.DecisionTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
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

// ProvideRedisCache creates the Redis client.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
}

// ProvideSampleCache creates the cache/queue gateway.
func ProvideSampleCache(rc *pkgcache.RedisCache) repository.SampleCache {
	return internalrepo.NewRedisSampleCache(rc)
}

// ProvideResponseCache creates the layered (memory + Redis) cache backing
// control-surface response caching.
func ProvideResponseCache(rc *pkgcache.RedisCache) pkgcache.Service {
	return pkgcache.NewLayeredCache(rc,
		pkgcache.WithLayeredMemorySize(256),
		pkgcache.WithLayeredL1RefreshTTL(5*time.Second),
	)
}

// ProvideRetryQueue creates the redis retry queue with the persist-retry job.
func ProvideRetryQueue(l *applogger.Logger, rc *pkgcache.RedisCache, store repository.DecisionStore) *pkgqueue.RedisQueue {
	return pkgqueue.NewRedisConsumer(l, &pkgqueue.QueueConfig{
		Workers:    1,
		QueueSize:  1000,
		RetryLimit: 5,
		RetryDelay: 30 * time.Second,
	}, rc.Client(), []pkgqueue.Job{
		usecase.NewPersistRetryJob(store),
	})
}

// ProvideAlerter creates the webhook alert gateway.
func ProvideAlerter(cfg *config.Config) repository.Alerter {
	return internalrepo.NewWebhookAlerter(cfg.Alert.WebhookURL, cfg.Alert.Token, cfg.Alert.Timeout)
}

// ProvideExecutor creates the execution gateway.
func ProvideExecutor(cfg *config.Config, l *applogger.Logger) repository.OrderExecutor {
	return internalrepo.NewHTTPOrderExecutor(cfg.Trading.ExecutorURL, cfg.Trading.APIKey, cfg.Trading.Mode, cfg.Trading.Timeout, l)
}

// ProvideAutoTrading creates the runtime execution switch.
func ProvideAutoTrading(cfg *config.Config) *usecase.AutoTrading {
	return usecase.NewAutoTrading(cfg.Trading.AutoEnabled)
}

// ProvideBus creates the per-asset signal bus.
func ProvideBus(m repository.Metrics, cfg *config.Config) *bus.Bus {
	return bus.New(m,
		bus.WithQueueSize(cfg.Engine.QueueSize),
		bus.WithFingerprintTTL(cfg.Engine.FingerprintTTL),
	)
}

// ProvideCorrelationEngine creates the rolling correlation engine.
func ProvideCorrelationEngine(cfg *config.Config) *analysis.CorrelationEngine {
	return analysis.NewCorrelationEngine(
		analysis.WithWindowSize(cfg.Correlation.Window),
		analysis.WithInstrumentLimit(cfg.Correlation.InstrumentLimit),
	)
}

// ProvideWeightBook creates the weight snapshot holder, seeded from the last
// persisted snapshot when one exists.
func ProvideWeightBook(store repository.DecisionStore) *analysis.WeightBook {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	saved, err := store.LoadWeights(ctx)
	if err != nil {
		saved = nil // fall back to defaults
	}
	return analysis.NewWeightBook(saved)
}

// ProvideScoreBoard creates the composite score board.
func ProvideScoreBoard() *usecase.ScoreBoard {
	return usecase.NewScoreBoard(0.05, 15*time.Minute)
}

// ProvideAggregator creates the signal aggregator.
func ProvideAggregator(
	cfg *config.Config,
	corr *analysis.CorrelationEngine,
	weights *analysis.WeightBook,
	board *usecase.ScoreBoard,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Aggregator {
	return usecase.NewAggregator(usecase.AggregatorConfig{
		StalenessWindow:   cfg.Engine.StalenessWindow,
		CorrelationBound:  cfg.Correlation.Bound,
		CorrelationGain:   cfg.Correlation.Gain,
		ConfirmationBoost: cfg.Engine.ConfirmationBoost,
	}, corr, weights, board, m, l)
}

// ProvideGate creates the decision gate.
func ProvideGate(cfg *config.Config, auto *usecase.AutoTrading, m repository.Metrics, l *applogger.Logger) *usecase.Gate {
	return usecase.NewGate(usecase.GateConfig{
		BuyThreshold:  cfg.Gate.BuyThreshold,
		SellThreshold: cfg.Gate.SellThreshold,
		Cooldown:      cfg.Gate.Cooldown,
	}, auto, m, l)
}

// ProvideDispatcher creates the decision dispatcher.
func ProvideDispatcher(
	store repository.DecisionStore,
	pub repository.DecisionPublisher,
	cache repository.SampleCache,
	alerter repository.Alerter,
	executor repository.OrderExecutor,
	retry *pkgqueue.RedisQueue,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Dispatcher {
	return usecase.NewDispatcher(store, pub, cache, alerter, executor, retry, m, l)
}

// ProvideEngine creates the aggregation engine.
func ProvideEngine(
	cfg *config.Config,
	b *bus.Bus,
	agg *usecase.Aggregator,
	gate *usecase.Gate,
	corr *analysis.CorrelationEngine,
	board *usecase.ScoreBoard,
	disp *usecase.Dispatcher,
	cache repository.SampleCache,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Engine {
	return usecase.NewEngine(usecase.EngineConfig{
		Assets:         cfg.Engine.Assets,
		TickInterval:   cfg.Engine.TickInterval,
		TickBudget:     cfg.Engine.TickBudget,
		BufferLimit:    cfg.Engine.BufferLimit,
		MirrorInterval: cfg.Engine.MirrorInterval,
	}, b, agg, gate, corr, board, disp, cache, m, l)
}

// ProvideKafkaSignalsHandler registers the handler for the signals topic.
func ProvideKafkaSignalsHandler(engine *usecase.Engine, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.SignalsTopic, engine, usecase.IngestThrottle{
		Rate:  cfg.Kafka.Throttle.Rate,
		Burst: cfg.Kafka.Throttle.Burst,
	}, m, l)
}

// ProvideWatchStream creates the watcher WebSocket stream.
func ProvideWatchStream(cfg *config.Config, l *applogger.Logger) repository.SignalStream {
	return watch.New(
		cfg.Watch.APIKey,
		cfg.Watch.WebSocketURL,
		cfg.Engine.Assets,
		cfg.Watch.ReconnectDelay,
		cfg.Watch.PingInterval,
		l,
	)
}

// ProvideSignalCollector creates the watcher collector with its pipeline.
func ProvideSignalCollector(
	stream repository.SignalStream,
	engine *usecase.Engine,
	m repository.Metrics,
) *usecase.SignalCollector {
	pipe := mid.NewRealtimePipeline(engine, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewSignalCollector(stream, engine, m, pipe)
}

// ProvideOptimizer creates the weight optimizer.
func ProvideOptimizer(cfg *config.Config, store repository.DecisionStore, book *analysis.WeightBook, l *applogger.Logger) *analysis.Optimizer {
	return analysis.NewOptimizer(analysis.OptimizerConfig{
		LearningRate: cfg.Optimizer.LearningRate,
		MaxStep:      cfg.Optimizer.MaxStep,
		MinWeight:    cfg.Optimizer.MinWeight,
		MaxWeight:    cfg.Optimizer.MaxWeight,
		Lookback:     cfg.Optimizer.Lookback,
		MinOutcomes:  cfg.Optimizer.MinOutcomes,
	}, store, book, l)
}

// ProvideScheduler creates the cron scheduler with the optimizer job.
func ProvideScheduler(cfg *config.Config, opt *analysis.Optimizer, l *applogger.Logger) (*scheduler.Scheduler, error) {
	s := scheduler.New(l)
	if err := s.AddJob(cfg.Optimizer.Schedule, opt); err != nil {
		return nil, fmt.Errorf("schedule optimizer: %w", err)
	}
	return s, nil
}

// ProvideEngineHandler creates the HTTP control surface.
func ProvideEngineHandler(
	l *applogger.Logger,
	board *usecase.ScoreBoard,
	weights *analysis.WeightBook,
	corr *analysis.CorrelationEngine,
	gate *usecase.Gate,
	auto *usecase.AutoTrading,
	cache repository.SampleCache,
	store repository.DecisionStore,
	opt *analysis.Optimizer,
	resp pkgcache.Service,
) *api.EngineHandler {
	return api.NewEngineHandler(l, board, weights, corr, gate, auto, cache, store, opt, resp)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	engine *usecase.Engine,
	collector *usecase.SignalCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	chClient *pkgch.Client,
	sched *scheduler.Scheduler,
	dispatcher *usecase.Dispatcher,
	handler *api.EngineHandler,
	retry *pkgqueue.RedisQueue,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if retry != nil {
		_ = retry.Start()
		retry.StartRetryProcessor()
	}
	app := server.New(cfg, l, engine, collector, consumer, kh, chClient, sched, dispatcher)
	app.SetHTTPHandler(handler)
	return app
}
