package di

import (
	"fmt"

	"github.com/hislov/overdrive-bot/internal/domain/repository"
	"github.com/hislov/overdrive-bot/internal/domain/risk"
	dservice "github.com/hislov/overdrive-bot/internal/domain/service"
	"github.com/hislov/overdrive-bot/internal/handler/api"
	internalrepo "github.com/hislov/overdrive-bot/internal/repository"
	"github.com/hislov/overdrive-bot/internal/service/marketdata"
	"github.com/hislov/overdrive-bot/internal/service/notify"
	"github.com/hislov/overdrive-bot/internal/services/chart"
	"github.com/hislov/overdrive-bot/internal/services/screen"
	"github.com/hislov/overdrive-bot/internal/services/selector"
	"github.com/hislov/overdrive-bot/internal/services/session"
	"github.com/hislov/overdrive-bot/internal/usecase"
	"github.com/hislov/overdrive-bot/pkg/cache"
	pkgch "github.com/hislov/overdrive-bot/pkg/clickhouse"
	"github.com/hislov/overdrive-bot/pkg/config"
	xhttp "github.com/hislov/overdrive-bot/pkg/http"
	pkgkafka "github.com/hislov/overdrive-bot/pkg/kafka"
	applogger "github.com/hislov/overdrive-bot/pkg/logger"
	"github.com/hislov/overdrive-bot/pkg/metrics"
	"github.com/hislov/overdrive-bot/pkg/queue"
	"github.com/hislov/overdrive-bot/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePolicy builds the risk policy from config, falling back to the
// defaults for unset fields.
func ProvidePolicy(cfg *config.Config) (risk.Policy, error) {
	p := risk.Default()
	if cfg.Risk.TotalCapital > 0 {
		p.TotalCapital = cfg.Risk.TotalCapital
	}
	if cfg.Risk.TargetProfitUSD > 0 {
		p.TargetProfitUSD = cfg.Risk.TargetProfitUSD
	}
	if cfg.Risk.SlotCapitalFraction > 0 {
		p.SlotCapitalFraction = cfg.Risk.SlotCapitalFraction
	}
	if cfg.Risk.MaxRiskFraction > 0 {
		p.MaxRiskFraction = cfg.Risk.MaxRiskFraction
	}
	if cfg.Risk.MaxGapUpPct > 0 {
		p.MaxGapUpPct = cfg.Risk.MaxGapUpPct
	}
	if cfg.Risk.VolKillSwitch > 0 {
		p.VolKillSwitch = cfg.Risk.VolKillSwitch
	}
	if cfg.Risk.ElevatedVol > 0 {
		p.ElevatedVol = cfg.Risk.ElevatedVol
	}
	if err := p.Validate(); err != nil {
		return risk.Policy{}, fmt.Errorf("risk policy: %w", err)
	}
	return p, nil
}

// ProvideCache creates the layered cache: memory L1 over Redis L2.
func ProvideCache(cfg *config.Config) (cache.Service, *cache.RedisCache, error) {
	redisCache, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(redisCache, 4096), redisCache, nil
}

// ProvideHTTPClient creates the shared outbound HTTP client.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.MarketData.Timeout))
}

// ProvideMarketData creates the market data client.
func ProvideMarketData(cfg *config.Config, httpClient *xhttp.Client, cacheSvc cache.Service, l *applogger.Logger) *marketdata.Client {
	return marketdata.NewClient(httpClient, cfg.MarketData.BaseURL, cfg.MarketData.APIKey, cacheSvc, l,
		marketdata.WithStaticTTL(cfg.MarketData.StaticCacheTTL),
		marketdata.WithRate(cfg.MarketData.RateBurst, cfg.MarketData.RateLimitPerSec),
		marketdata.WithUniverse(cfg.Universe.Core, cfg.Universe.Defensive, cfg.Universe.RemoteURL),
	)
}

// ProvideRegimeSource creates the macro regime reader.
func ProvideRegimeSource(cfg *config.Config, httpClient *xhttp.Client, l *applogger.Logger) repository.RegimeSource {
	return marketdata.NewRegimeReader(httpClient,
		cfg.MarketData.BaseURL, cfg.MarketData.APIKey,
		cfg.Regime.VolatilityTicker, cfg.Regime.RateTicker,
		cfg.Regime.FallbackVol, cfg.Regime.FallbackRate, l)
}

// ProvideQuoteStream creates the live quote stream when configured.
func ProvideQuoteStream(cfg *config.Config, l *applogger.Logger) repository.QuoteStream {
	if cfg.MarketData.WebSocketURL == "" {
		return nil
	}
	return marketdata.NewStream(cfg.MarketData.APIKey, cfg.MarketData.WebSocketURL,
		cfg.MarketData.PingInterval, cfg.MarketData.ReconnectDelay, l)
}

// ProvideRunLog creates the ClickHouse blackbox store when enabled.
func ProvideRunLog(cfg *config.Config, l *applogger.Logger) (repository.RunLog, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	runLog, err := internalrepo.NewCHRunLog(client, l)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return runLog, nil
}

// ProvideReportPublisher creates the Kafka outcome publisher when enabled.
func ProvideReportPublisher(cfg *config.Config, l *applogger.Logger) (repository.ReportPublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.Topic, l), nil
}

// ProvideExclusionStore creates the Redis-backed exclusion set.
func ProvideExclusionStore(redisCache *cache.RedisCache, l *applogger.Logger) repository.ExclusionStore {
	return internalrepo.NewRedisExclusionStore(redisCache.Client(), l)
}

// ProvideSelector creates the external selector adapter.
func ProvideSelector(cfg *config.Config, l *applogger.Logger) dservice.Selector {
	httpClient := xhttp.NewClient(xhttp.WithTimeout(cfg.Selector.Timeout))
	return selector.New(httpClient,
		cfg.Selector.URL, cfg.Selector.APIKey, cfg.Selector.Model,
		cfg.Selector.MaxAttempts, cfg.Selector.BackoffBase, l)
}

// ProvideChartRenderer creates the chart render adapter when configured.
func ProvideChartRenderer(cfg *config.Config) dservice.ChartRenderer {
	if cfg.Charts.RenderURL == "" {
		return nil
	}
	httpClient := xhttp.NewClient(xhttp.WithTimeout(cfg.Charts.Timeout))
	return chart.New(httpClient, cfg.Charts.RenderURL, cfg.Charts.Window)
}

// ProvideNotifier creates the Telegram notifier when enabled.
func ProvideNotifier(cfg *config.Config, l *applogger.Logger) dservice.Notifier {
	if !cfg.Telegram.Enabled {
		return nil
	}
	httpClient := xhttp.NewClient()
	return notify.NewTelegram(httpClient, cfg.Telegram.Token, cfg.Telegram.ChatID, l)
}

// ProvidePenalizer creates the deep-scan penalizer.
func ProvidePenalizer(md *marketdata.Client, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *screen.Penalizer {
	return screen.NewPenalizer(md, m, l, cfg.Scan.Workers, cfg.Scan.Window)
}

// ProvideClock creates the session clock with the default ramp.
func ProvideClock() *session.Clock {
	return session.NewClock(session.DefaultRamp(), nil)
}

// ProvidePipeline wires the hunt pipeline.
func ProvidePipeline(
	cfg *config.Config,
	policy risk.Policy,
	md *marketdata.Client,
	regime repository.RegimeSource,
	exclusion repository.ExclusionStore,
	runLog repository.RunLog,
	publisher repository.ReportPublisher,
	stream repository.QuoteStream,
	m repository.Metrics,
	sel dservice.Selector,
	charts dservice.ChartRenderer,
	notifier dservice.Notifier,
	penalizer *screen.Penalizer,
	clock *session.Clock,
	l *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(usecase.PipelineConfig{
		Policy:            policy,
		DefensiveUniverse: cfg.Universe.Defensive,
		ManualExclude:     cfg.Universe.Exclude,
		IndexTicker:       cfg.Universe.Index,
		DailyLookback:     cfg.MarketData.DailyLookback,
		FetchWorkers:      cfg.MarketData.FetchWorkers,
		FailClosed:        cfg.Selector.FailClosed,
	}, md, regime, exclusion, runLog, publisher, stream, m, sel, charts, notifier, penalizer, clock, l)
}

// ProvideQueue creates the Redis hunt queue with the job registered.
func ProvideQueue(cfg *config.Config, redisCache *cache.RedisCache, pipeline *usecase.Pipeline, l *applogger.Logger) *queue.RedisQueue {
	job := usecase.NewHuntJob(pipeline, l)
	return queue.NewRedisQueue(l, &queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, redisCache.Client(), []queue.Job{job})
}

// ProvideHandler creates the front-door HTTP handler.
func ProvideHandler(l *applogger.Logger, q *queue.RedisQueue, runLog repository.RunLog) xhttp.Handler {
	return api.NewHuntHandler(l, q, runLog)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	q *queue.RedisQueue,
	runLog repository.RunLog,
	publisher repository.ReportPublisher,
	stream repository.QuoteStream,
	cacheSvc cache.Service,
) *server.App {
	return server.New(cfg, l, handler, q, runLog, publisher, stream, cacheSvc)
}
