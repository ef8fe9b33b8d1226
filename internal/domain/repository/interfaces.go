package repository

import (
	"context"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
)

// MarketData abstracts the external price/fundamentals provider. Every call
// may fail per ticker; callers treat such faults as skip-this-instrument,
// never as run-fatal.
type MarketData interface {
	// DailyBars returns up to `lookback` daily bars, oldest first.
	DailyBars(ctx context.Context, ticker string, lookback int) (models.BarSeries, error)
	// IntradayBars returns finest-granularity bars covering the trailing
	// `window`, oldest first.
	IntradayBars(ctx context.Context, ticker string, window time.Duration) (models.BarSeries, error)
	// StaticInfo returns slow-moving metadata (market cap).
	StaticInfo(ctx context.Context, ticker string) (models.StaticInfo, error)
	// Universe returns the screenable ticker list, falling back to the
	// configured core universe when the remote list is unavailable.
	Universe(ctx context.Context) ([]string, error)
}

// RegimeSource reads the macro inputs once per run. Implementations return
// a documented fallback pair when the upstream is unavailable.
type RegimeSource interface {
	Snapshot(ctx context.Context) models.RegimeSnapshot
}

// ExclusionStore owns the cross-run "previously failed tickers" set. It is
// read once at run start and written once at run end.
type ExclusionStore interface {
	Load(ctx context.Context) (map[string]bool, error)
	Save(ctx context.Context, tickers map[string]bool) error
}

// RunLog persists blackbox run records and serves them back to the API.
type RunLog interface {
	Insert(ctx context.Context, rec models.RunRecord) error
	Recent(ctx context.Context, limit int) ([]models.RunRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// ReportPublisher pushes run outcomes to downstream consumers.
type ReportPublisher interface {
	PublishOutcome(ctx context.Context, out models.RunOutcome) error
	Close() error
}

// QuoteStream is a live trade-tick feed used to resolve a fresher reference
// price than the last daily close.
type QuoteStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	// Listen registers a tick listener; the cancel func releases it. The
	// channel closes on cancel or stream shutdown.
	Listen() (<-chan *models.Quote, func())
	Close() error
	IsConnected() bool
}

// Metrics records pipeline observability counters.
type Metrics interface {
	RecordRun(outcome string)
	RecordStageCount(stage string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordPowerScore(ticker string, score float64)
}
