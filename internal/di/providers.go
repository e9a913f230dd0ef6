package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"MarketPulse/internal/domain/repository"
	"MarketPulse/internal/handler/api"
	internalrepo "MarketPulse/internal/repository"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	"MarketPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Logging.Level
	if level == "" {
		level = "info"
	}
	format := cfg.Logging.Format
	if format == "" {
		format = "json"
	}
	output := cfg.Logging.Output
	if output == "" {
		output = "stdout"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: output})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
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

	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideRedisCache creates the Redis-backed cache client.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	return cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.KeyPrefix),
	)
}

// ProvideCacheService layers an in-process cache over Redis for hot reads
// (market status lookups happen on every monitor fire and gate check).
func ProvideCacheService(rc *cache.RedisCache) cache.Service {
	return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(500))
}

// ProvideRedisClient exposes the raw client for the broker-layer repositories.
func ProvideRedisClient(rc *cache.RedisCache) *redis.Client {
	return rc.Client()
}

// ProvideMarketStore creates the config-backed market store.
func ProvideMarketStore(cfg *config.Config, svc cache.Service) repository.MarketStore {
	return internalrepo.NewConfigMarkets(svc, cfg.MarketModels())
}

// ProvideSessionStore creates the ClickHouse session row store.
func ProvideSessionStore(ch *pkgch.Client, cfg *config.Config) repository.SessionStore {
	return internalrepo.NewClickHouseSessions(ch.DB(), cfg.ClickHouse.Database+".sessions")
}

// ProvideBarStore creates the ClickHouse one-minute bar store.
func ProvideBarStore(ch *pkgch.Client, cfg *config.Config) repository.BarStore {
	return internalrepo.NewClickHouseBars(ch.DB(), cfg.ClickHouse.Database+".bars_1m")
}

// ProvideStatStore creates the ClickHouse rolling stats store.
func ProvideStatStore(ch *pkgch.Client, cfg *config.Config) repository.StatStore {
	return internalrepo.NewClickHouseStats(ch.DB(), cfg.ClickHouse.Database+".rolling_24h", cfg.ClickHouse.Database+".rolling_52w")
}

// ProvideQuoteSource creates the Redis quote snapshot source.
func ProvideQuoteSource(client *redis.Client, cfg *config.Config) repository.QuoteSource {
	return internalrepo.NewRedisQuotes(client, cfg.Redis.KeyPrefix)
}

// ProvideBarQueue creates the Redis closed-bar queue.
func ProvideBarQueue(client *redis.Client, cfg *config.Config) repository.BarQueue {
	return internalrepo.NewRedisBarQueue(client, cfg.Redis.KeyPrefix)
}

// ProvideExtremesHash creates the Redis 52-week working copy.
func ProvideExtremesHash(client *redis.Client, cfg *config.Config) repository.ExtremesHash {
	return internalrepo.NewRedisExtremes(client, cfg.Redis.KeyPrefix)
}

// ProvideActiveSet creates the Redis open-market set.
func ProvideActiveSet(client *redis.Client, cfg *config.Config) repository.ActiveSet {
	return internalrepo.NewRedisActiveSet(client, cfg.Redis.KeyPrefix)
}

// ProvideBroadcaster creates the Redis pub/sub event broadcaster.
func ProvideBroadcaster(client *redis.Client, cfg *config.Config) repository.Broadcaster {
	channel := cfg.Redis.Channel
	if channel == "" {
		channel = "marketpulse:events"
	}
	return internalrepo.NewRedisBroadcaster(client, channel)
}

// ProvideYearly creates the 52-week extremes tracker.
func ProvideYearly(stats repository.StatStore, hash repository.ExtremesHash, broadcast repository.Broadcaster, m repository.Metrics, log *applogger.Logger) *usecase.Yearly {
	return usecase.NewYearly(stats, hash, broadcast, m, log)
}

// ProvideCloser creates the session close finisher.
func ProvideCloser(sessions repository.SessionStore, quotes repository.QuoteSource, m repository.Metrics, log *applogger.Logger) *usecase.Closer {
	return usecase.NewCloser(sessions, quotes, m, log)
}

// ProvideCapture creates the open/close capture use case.
func ProvideCapture(
	sessions repository.SessionStore,
	quotes repository.QuoteSource,
	stats repository.StatStore,
	closer *usecase.Closer,
	cfg *config.Config,
	log *applogger.Logger,
) *usecase.Capture {
	return usecase.NewCapture(sessions, quotes, stats, closer, cfg.Targets, cfg.SignalModels(), log)
}

// ProvideSupervisor creates the intraday supervisor.
func ProvideSupervisor(
	markets repository.MarketStore,
	sessions repository.SessionStore,
	stats repository.StatStore,
	quotes repository.QuoteSource,
	bars repository.BarQueue,
	m repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.Supervisor {
	return usecase.NewSupervisor(markets, sessions, stats, quotes, bars, m, log, cfg.Supervisor.PollInterval)
}

// ProvideGrader creates the outcome grader.
func ProvideGrader(
	sessions repository.SessionStore,
	quotes repository.QuoteSource,
	markets repository.MarketStore,
	broadcast repository.Broadcaster,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Grader {
	return usecase.NewGrader(sessions, quotes, markets, broadcast, m, log)
}

// ProvideGate creates the global market gate.
func ProvideGate(
	markets repository.MarketStore,
	active repository.ActiveSet,
	broadcast repository.Broadcaster,
	capture *usecase.Capture,
	supervisor *usecase.Supervisor,
	grader *usecase.Grader,
	tracker *usecase.Yearly,
	log *applogger.Logger,
) *usecase.Gate {
	return usecase.NewGate(markets, active, broadcast, capture, supervisor, grader, tracker, log)
}

// ProvideMonitor creates the per-market transition scheduler with the gate
// as its handler.
func ProvideMonitor(markets repository.MarketStore, gate *usecase.Gate, m repository.Metrics, log *applogger.Logger) *usecase.Monitor {
	return usecase.NewMonitor(markets, gate, m, log)
}

// ProvideFlusher creates the closed-bar flush pipeline.
func ProvideFlusher(
	queue repository.BarQueue,
	store repository.BarStore,
	tracker *usecase.Yearly,
	m repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.Flusher {
	return usecase.NewFlusher(queue, store, tracker, m, log, cfg.Flush.BatchSize)
}

// ProvideQuoteIngest creates the Kafka quote snapshot handler.
func ProvideQuoteIngest(cfg *config.Config, quotes repository.QuoteSource, tracker *usecase.Yearly, m repository.Metrics) pkgkafka.MessageHandler {
	return usecase.NewQuoteIngest(cfg.Kafka.Topic, quotes, tracker, m)
}

// ProvideKafkaConsumer creates the Kafka consumer. A nil consumer (no
// brokers configured) disables the ingest path.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
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
	consumer.WithConsumerHook(&pkgkafka.IngestObserver{
		OnHandled: func(topic string, partition int, elapsed time.Duration, err error) {
			if err != nil {
				return // failures are reported through OnFailedAttempt
			}
			log.Debug("quote message handled",
				applogger.String("topic", topic),
				applogger.Int("partition", partition),
				applogger.Int64("elapsed_us", elapsed.Microseconds()))
		},
		OnFailedAttempt: func(topic string, partition int, err error) {
			log.Warn("quote message handling failed",
				applogger.String("topic", topic),
				applogger.Int("partition", partition),
				applogger.Error(err))
		},
	})
	return consumer, nil
}

// ProvideHTTPHandler creates the dashboard API handler.
func ProvideHTTPHandler(log *applogger.Logger, markets repository.MarketStore, sessions repository.SessionStore, stats repository.StatStore) xhttp.Handler {
	return api.NewDashboardHandler(log, markets, sessions, stats)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	monitor *usecase.Monitor,
	gate *usecase.Gate,
	supervisor *usecase.Supervisor,
	grader *usecase.Grader,
	flusher *usecase.Flusher,
	markets repository.MarketStore,
	consumer *pkgkafka.Consumer,
	ingest pkgkafka.MessageHandler,
	httpHandler xhttp.Handler,
	chClient *pkgch.Client,
	redisCache *cache.RedisCache,
) *server.App {
	return server.New(cfg, log, monitor, gate, supervisor, grader, flusher, markets, consumer, ingest, httpHandler, chClient, redisCache)
}
