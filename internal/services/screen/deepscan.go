package screen

import (
	"context"
	"sort"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	drepo "github.com/hislov/overdrive-bot/internal/domain/repository"
	"github.com/hislov/overdrive-bot/internal/services/indicators"
	"github.com/hislov/overdrive-bot/pkg/logger"
)

const (
	// TopShortlist is how many penalty-adjusted candidates go to the selector.
	TopShortlist = 10

	// DefaultScanWorkers bounds deep-scan concurrency.
	DefaultScanWorkers = 10
)

// CapPenalty is the capitalization-tier multiplier. Mega caps move slower,
// so their spike scores are discounted.
func CapPenalty(marketCap float64) float64 {
	switch {
	case marketCap > 100_000_000_000:
		return 0.4
	case marketCap > 20_000_000_000:
		return 0.7
	default:
		return 1.0
	}
}

// GapPenalty discounts names that already gapped away from the entry.
func GapPenalty(gapPct float64) float64 {
	if gapPct <= 3.0 {
		return 1.0
	}
	p := 3.0 / gapPct
	if p < 0.2 {
		p = 0.2
	}
	return p
}

// VWAPPenalty reads demand from the session VWAP line. Price below VWAP is
// distribution (weak hands); at or above is accumulation.
func VWAPPenalty(price, vwap float64, ok bool) (float64, models.VWAPStatus) {
	if !ok || vwap <= 0 {
		return 1.0, models.VWAPUnknown
	}
	if price < vwap {
		return 0.2, models.VWAPBelow
	}
	return 1.2, models.VWAPAbove
}

// Penalizer performs the per-candidate intraday inspection. Each candidate
// is independent; failures degrade that candidate to a neutral penalty and
// never abort the batch.
type Penalizer struct {
	md      drepo.MarketData
	metrics drepo.Metrics
	log     *logger.Logger
	workers int
	window  time.Duration
}

// NewPenalizer builds a Penalizer with a bounded worker pool.
func NewPenalizer(md drepo.MarketData, metrics drepo.Metrics, log *logger.Logger, workers int, window time.Duration) *Penalizer {
	if workers <= 0 {
		workers = DefaultScanWorkers
	}
	if window <= 0 {
		window = 72 * time.Hour
	}
	return &Penalizer{md: md, metrics: metrics, log: log, workers: workers, window: window}
}

// Scan inspects the candidates concurrently and returns them re-ranked
// descending by penalty-adjusted power score, capped at TopShortlist.
// Result aggregation is order-independent; results are collected by ticker.
func (p *Penalizer) Scan(ctx context.Context, candidates []models.CandidateStat) []models.ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}

	jobs := make(chan models.CandidateStat)
	results := make(chan models.ScoredCandidate, len(candidates))

	workers := p.workers
	if workers > len(candidates) {
		workers = len(candidates)
	}
	for i := 0; i < workers; i++ {
		go func() {
			for c := range jobs {
				results <- p.scanOne(ctx, c)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, c := range candidates {
			jobs <- c
		}
	}()

	byTicker := make(map[string]models.ScoredCandidate, len(candidates))
	for range candidates {
		r := <-results
		byTicker[r.Ticker] = r
	}

	out := make([]models.ScoredCandidate, 0, len(byTicker))
	for _, c := range candidates { // preserve a deterministic base order
		if r, ok := byTicker[c.Ticker]; ok {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Scan.PowerScore > out[j].Scan.PowerScore
	})
	if len(out) > TopShortlist {
		out = out[:TopShortlist]
	}
	return out
}

func (p *Penalizer) scanOne(ctx context.Context, c models.CandidateStat) models.ScoredCandidate {
	start := time.Now()
	scan, err := p.inspect(ctx, c)
	if err != nil {
		// A failed candidate degrades to its basic score; the batch continues.
		p.metrics.RecordError("deep_scan")
		p.log.Warn("deep scan degraded",
			logger.String("ticker", c.Ticker), logger.Error(err))
		scan = models.DeepScanResult{
			Ticker:       c.Ticker,
			PowerScore:   c.BasicPowerScore,
			IntradayVWAP: c.Price,
			IntradayHigh: c.Price,
			VWAPStatus:   models.VWAPError,
		}
	}
	p.metrics.RecordLatency("deep_scan", time.Since(start).Seconds())
	return models.ScoredCandidate{CandidateStat: c, Scan: scan}
}

func (p *Penalizer) inspect(ctx context.Context, c models.CandidateStat) (models.DeepScanResult, error) {
	info, err := p.md.StaticInfo(ctx, c.Ticker)
	if err != nil {
		return models.DeepScanResult{}, err
	}
	intraday, err := p.md.IntradayBars(ctx, c.Ticker, p.window)
	if err != nil {
		return models.DeepScanResult{}, err
	}

	gapPct := 0.0
	if c.PrevClose > 0 {
		gapPct = (c.Price - c.PrevClose) / c.PrevClose * 100
	}

	sess := currentSession(intraday)
	vwap, vwapOK := indicators.SessionVWAP(sess)
	high := indicators.SessionHigh(sess, c.Price)

	vwapFactor, status := VWAPPenalty(c.Price, vwap, vwapOK)
	penalty := CapPenalty(info.MarketCap) * GapPenalty(gapPct) * vwapFactor

	return models.DeepScanResult{
		Ticker:       c.Ticker,
		PowerScore:   c.BasicPowerScore * penalty,
		MarketCap:    info.MarketCap,
		GapPct:       gapPct,
		IntradayVWAP: vwap,
		IntradayHigh: high,
		VWAPStatus:   status,
	}, nil
}

// currentSession slices the intraday series down to the most recent session
// that actually traded. A latest date with zero volume (a not-yet-open
// session) falls back to the one before it.
func currentSession(series models.BarSeries) models.BarSeries {
	if len(series.Bars) == 0 {
		return series
	}
	last := sessionDay(series.Bars[len(series.Bars)-1].Time)
	day := sliceDay(series, last)
	if totalVolume(day) <= 0 {
		for i := len(series.Bars) - 1; i >= 0; i-- {
			d := sessionDay(series.Bars[i].Time)
			if d != last {
				prev := sliceDay(series, d)
				if totalVolume(prev) > 0 {
					return prev
				}
				break
			}
		}
	}
	return day
}

func sessionDay(t time.Time) string { return t.Format("2006-01-02") }

func sliceDay(series models.BarSeries, day string) models.BarSeries {
	out := models.BarSeries{Ticker: series.Ticker}
	for _, b := range series.Bars {
		if sessionDay(b.Time) == day {
			out.Bars = append(out.Bars, b)
		}
	}
	return out
}

func totalVolume(series models.BarSeries) float64 {
	sum := 0.0
	for _, b := range series.Bars {
		sum += b.Volume
	}
	return sum
}
