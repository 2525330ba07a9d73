package di

import (
	"fmt"

	"FxPulse/internal/domain/repository"
	"FxPulse/internal/handler/api"
	internalrepo "FxPulse/internal/repository"
	"FxPulse/internal/service/binance"
	"FxPulse/internal/service/stream"
	"FxPulse/internal/services/dispatch"
	"FxPulse/internal/services/sizer"
	"FxPulse/internal/usecase"
	"FxPulse/pkg/cache"
	pkgch "FxPulse/pkg/clickhouse"
	"FxPulse/pkg/config"
	xhttp "FxPulse/pkg/http"
	pkgkafka "FxPulse/pkg/kafka"
	"FxPulse/pkg/logger"
	"FxPulse/pkg/metrics"
	"FxPulse/pkg/server"
)

func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache uses Redis when enabled and an in-process cache otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

func ProvideCorrelationStore(c cache.Service) repository.CorrelationStore {
	return internalrepo.NewCacheCorrelationStore(c)
}

// ProvideClickHouseClient returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSignalJournal returns a nil journal unless dispatch.journal is set.
func ProvideSignalJournal(cfg *config.Config, ch *pkgch.Client, l *logger.Logger) repository.SignalJournal {
	if !cfg.Dispatch.Journal || ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseSignalJournal(ch.DB(), "signals", l)
}

// ProvideKafkaProducer returns nil unless alerts go to Kafka.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Dispatch.Transport != "kafka" {
		return nil, nil
	}
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatching(k.Producer.BatchSize, k.Producer.BatchBytes, k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideAlertTransport(cfg *config.Config, producer *pkgkafka.Producer, l *logger.Logger) repository.AlertTransport {
	if cfg.Dispatch.Transport == "kafka" && producer != nil {
		return internalrepo.NewKafkaAlertTransport(producer, cfg.Kafka.AlertTopic)
	}
	return internalrepo.NewLogAlertTransport(l)
}

func ProvideRiskBook(cfg *config.Config, l *logger.Logger) *sizer.RiskBook {
	return sizer.NewRiskBook(cfg.Sizer, sizer.WithLogger(l))
}

func ProvideDispatcher(cfg *config.Config, l *logger.Logger, m repository.Metrics) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(cfg.Dispatch, dispatch.WithLogger(l), dispatch.WithMetrics(m))
}

func ProvideDispatchWorker(cfg *config.Config, d *dispatch.Dispatcher, t repository.AlertTransport, j repository.SignalJournal, l *logger.Logger, m repository.Metrics) *dispatch.Worker {
	opts := []dispatch.WorkerOption{
		dispatch.WithWorkerLogger(l),
		dispatch.WithWorkerMetrics(m),
		dispatch.WithSendTimeout(cfg.Dispatch.SendTimeout),
	}
	if j != nil {
		opts = append(opts, dispatch.WithJournal(j))
	}
	return dispatch.NewWorker(d.Queue(), t, opts...)
}

func ProvideMarketStreamFactory(cfg *config.Config, l *logger.Logger) repository.MarketStreamFactory {
	return stream.Factory(cfg.Feed.WebSocketURL, cfg.Feed.APIKey,
		stream.WithPingInterval(cfg.Feed.PingInterval),
		stream.WithMaxInvalid(cfg.Feed.MaxInvalid),
		stream.WithLogger(l),
	)
}

func ProvideFallbackSource(cfg *config.Config) repository.FallbackSource {
	opts := []binance.Option{binance.WithSymbolMap(cfg.Feed.FallbackSymbols)}
	if cfg.Binance.BaseURL != "" {
		opts = append(opts, binance.WithBaseURL(cfg.Binance.BaseURL))
	}
	return binance.New(cfg.Binance.APIKey, cfg.Binance.APISecret, opts...)
}

func ProvideSupervisor(
	cfg *config.Config,
	dial repository.MarketStreamFactory,
	fallback repository.FallbackSource,
	book *sizer.RiskBook,
	d *dispatch.Dispatcher,
	corr repository.CorrelationStore,
	l *logger.Logger,
	m repository.Metrics,
) *usecase.Supervisor {
	return usecase.NewSupervisor(cfg, dial, fallback, book, d,
		usecase.WithSupervisorLogger(l),
		usecase.WithSupervisorMetrics(m),
		usecase.WithCorrelationSource(corr),
	)
}

func ProvideOutcomeHandler(cfg *config.Config, book *sizer.RiskBook, m repository.Metrics, l *logger.Logger) *usecase.OutcomeHandler {
	return usecase.NewOutcomeHandler(cfg.Kafka.OutcomeTopic, book, m, l)
}

// ProvideKafkaConsumer returns nil when Kafka is disabled; outcomes then only
// arrive over HTTP.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	k := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(k.GroupID),
		pkgkafka.WithConsumerWorkers(k.Workers),
		pkgkafka.WithConsumerBufferSize(k.BufferSize),
		pkgkafka.WithConsumerRetry(k.RetryMax, k.BackoffMin, k.BackoffMax),
		pkgkafka.WithConsumerDLQ(k.DLQTopic),
		pkgkafka.WithConsumerFetch(k.MinBytes, k.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideAPIHandler(
	l *logger.Logger,
	sup *usecase.Supervisor,
	book *sizer.RiskBook,
	outcomes *usecase.OutcomeHandler,
	corr repository.CorrelationStore,
	journal repository.SignalJournal,
) *api.Handler {
	var opts []api.Option
	if journal != nil {
		opts = append(opts, api.WithJournal(journal))
	}
	return api.NewHandler(l, sup, book, outcomes, corr, opts...)
}

func ProvideHTTPServer(cfg *config.Config, l *logger.Logger, h *api.Handler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideClosers lists resources in release order: transport first so queued
// alerts flush, storage last.
func ProvideClosers(t repository.AlertTransport, j repository.SignalJournal, c cache.Service, ch *pkgch.Client) server.Closers {
	out := server.Closers{t}
	if j != nil {
		out = append(out, j)
	}
	out = append(out, c)
	if ch != nil {
		out = append(out, ch)
	}
	return out
}
