package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	drepo "github.com/hislov/overdrive-bot/internal/domain/repository"
	"github.com/hislov/overdrive-bot/internal/domain/risk"
	dservice "github.com/hislov/overdrive-bot/internal/domain/service"
	"github.com/hislov/overdrive-bot/internal/services/indicators"
	"github.com/hislov/overdrive-bot/internal/services/ladder"
	"github.com/hislov/overdrive-bot/internal/services/screen"
	"github.com/hislov/overdrive-bot/internal/services/session"
	"github.com/hislov/overdrive-bot/pkg/logger"
	"github.com/hislov/overdrive-bot/pkg/util"
)

// PipelineConfig carries the per-process hunt settings.
type PipelineConfig struct {
	Policy            risk.Policy
	DefensiveUniverse []string
	// ManualExclude is unioned with the persisted exclusion set each run.
	ManualExclude    []string
	IndexTicker      string
	DailyLookback    int
	FetchWorkers     int
	FailClosed       bool
	LivePriceTimeout time.Duration
}

// HuntParams are the per-run overrides from the front door.
type HuntParams struct {
	// Ticker pins the run to a single instrument, bypassing the cascade.
	Ticker string
	// Exclude extends the persisted exclusion set for this run only.
	Exclude []string
	// FailClosed overrides the process-level policy when non-nil.
	FailClosed *bool
}

// Pipeline executes one full hunt: screening cascade, deep scan, external
// selection, ladder synthesis, then reporting. Each Run operates on its own
// run-scoped state; concurrent runs never share mutable data.
type Pipeline struct {
	cfg       PipelineConfig
	md        drepo.MarketData
	regime    drepo.RegimeSource
	exclusion drepo.ExclusionStore
	runLog    drepo.RunLog
	publisher drepo.ReportPublisher
	stream    drepo.QuoteStream
	metrics   drepo.Metrics
	selector  dservice.Selector
	charts    dservice.ChartRenderer
	notifier  dservice.Notifier
	penalizer *screen.Penalizer
	clock     *session.Clock
	log       *logger.Logger
}

// NewPipeline wires the pipeline. runLog, publisher, stream, and notifier
// may be nil when the corresponding sink is disabled.
func NewPipeline(
	cfg PipelineConfig,
	md drepo.MarketData,
	regime drepo.RegimeSource,
	exclusion drepo.ExclusionStore,
	runLog drepo.RunLog,
	publisher drepo.ReportPublisher,
	stream drepo.QuoteStream,
	metrics drepo.Metrics,
	sel dservice.Selector,
	charts dservice.ChartRenderer,
	notifier dservice.Notifier,
	penalizer *screen.Penalizer,
	clock *session.Clock,
	lgr *logger.Logger,
) *Pipeline {
	if cfg.DailyLookback <= 0 {
		cfg.DailyLookback = 60
	}
	if cfg.FetchWorkers <= 0 {
		cfg.FetchWorkers = 8
	}
	if cfg.LivePriceTimeout <= 0 {
		cfg.LivePriceTimeout = 3 * time.Second
	}
	return &Pipeline{
		cfg:       cfg,
		md:        md,
		regime:    regime,
		exclusion: exclusion,
		runLog:    runLog,
		publisher: publisher,
		stream:    stream,
		metrics:   metrics,
		selector:  sel,
		charts:    charts,
		notifier:  notifier,
		penalizer: penalizer,
		clock:     clock,
		log:       lgr,
	}
}

// runState is the isolated per-run working set.
type runState struct {
	id          string
	started     time.Time
	params      HuntParams
	snap        models.RegimeSnapshot
	mode        models.RegimeMode
	preMarket   bool
	progress    float64
	excluded    map[string]bool
	persisted   map[string]bool
	priorFailed int
	dirty       bool // exclusion set changed during the run
	series      map[string]models.BarSeries
}

// Run executes one hunt and reports its outcome through every configured
// sink. The returned outcome is always valid, even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context, params HuntParams) (models.RunOutcome, error) {
	st := &runState{
		id:      fmt.Sprintf("run-%d", time.Now().UnixNano()),
		started: time.Now(),
		params:  params,
		series:  make(map[string]models.BarSeries),
	}
	if params.Ticker != "" {
		st.params.Ticker = util.NormalizeTicker(params.Ticker)
	}

	out, err := p.execute(ctx, st)
	out.StartedAt = st.started
	out.Elapsed = time.Since(st.started)
	out.Regime = st.snap
	out.Mode = st.mode
	out.PriorFailed = st.priorFailed

	p.report(ctx, st, out)
	return out, err
}

func (p *Pipeline) execute(ctx context.Context, st *runState) (models.RunOutcome, error) {
	st.snap = p.regime.Snapshot(ctx)
	st.mode = screen.ModeFor(st.snap, p.cfg.Policy, st.params.Ticker)

	phase, progress := p.clock.Status()
	st.preMarket = phase == session.PhasePreMarket
	st.progress = progress

	p.log.Info("hunt started",
		logger.String("run_id", st.id),
		logger.String("mode", st.mode.String()),
		logger.String("phase", phase.String()),
		logger.Float64("progress", progress),
		logger.Float64("vix", st.snap.VolatilityIndex))

	p.loadExclusions(ctx, st)

	universe, err := p.resolveUniverse(ctx, st)
	if err != nil {
		p.metrics.RecordError("universe")
		return models.RunOutcome{Kind: models.OutcomeFailed, Rationale: err.Error()}, err
	}
	p.metrics.RecordStageCount("universe", len(universe))

	if len(universe) == 0 {
		return models.RunOutcome{Kind: models.OutcomeNoTarget, Rationale: "universe empty after exclusions"}, nil
	}

	refRet10, refRet20 := p.referenceReturns(ctx)
	stats := p.screenUniverse(ctx, st, universe, refRet10, refRet20)
	p.metrics.RecordStageCount("screened", len(stats))

	var candidates []models.CandidateStat
	if st.params.Ticker != "" {
		// Manual override: the pinned ticker skips the tier filters.
		candidates = stats
	} else {
		candidates = screen.Cascade(stats, screen.ThresholdsFor(st.mode, p.cfg.Policy))
	}
	p.metrics.RecordStageCount("cascade", len(candidates))

	if len(candidates) == 0 {
		return models.RunOutcome{Kind: models.OutcomeNoTarget, Rationale: "no candidates passed the cascade"}, nil
	}

	shortlist := p.penalizer.Scan(ctx, candidates)
	p.metrics.RecordStageCount("shortlist", len(shortlist))
	if len(shortlist) == 0 {
		return models.RunOutcome{Kind: models.OutcomeNoTarget, Rationale: "deep scan produced no usable candidates"}, nil
	}

	winner, verdictText, outcome := p.selectWinner(ctx, st, shortlist)
	if winner == nil {
		return outcome, nil
	}

	plan, err := p.synthesize(ctx, st, *winner)
	if err != nil {
		st.excluded[winner.Ticker] = true
		st.persisted[winner.Ticker] = true
		st.dirty = true
		p.metrics.RecordError("synthesis")
		return models.RunOutcome{
			Kind:      models.OutcomeFailed,
			Ticker:    winner.Ticker,
			Score:     winner.Scan.PowerScore,
			Rationale: fmt.Sprintf("ladder synthesis refused: %v", err),
		}, err
	}

	p.metrics.RecordPowerScore(winner.Ticker, winner.Scan.PowerScore)
	return models.RunOutcome{
		Kind:      models.OutcomePlan,
		Ticker:    winner.Ticker,
		Score:     winner.Scan.PowerScore,
		Plan:      plan,
		Rationale: verdictText,
	}, nil
}

// loadExclusions assembles the run's exclusion set: persisted failures from
// the store, the configured manual list, then per-run excludes. Only the
// persisted subset is written back on Save.
func (p *Pipeline) loadExclusions(ctx context.Context, st *runState) {
	st.persisted = make(map[string]bool)
	if p.exclusion != nil {
		loaded, err := p.exclusion.Load(ctx)
		if err != nil {
			p.log.Warn("exclusion load failed, starting empty", logger.Error(err))
			p.metrics.RecordError("exclusion_load")
		} else {
			st.persisted = loaded
			st.priorFailed = len(loaded)
		}
	}

	st.excluded = make(map[string]bool, len(st.persisted))
	for t := range st.persisted {
		st.excluded[t] = true
	}
	for _, t := range p.cfg.ManualExclude {
		st.excluded[util.NormalizeTicker(t)] = true
	}
	for _, t := range st.params.Exclude {
		st.excluded[util.NormalizeTicker(t)] = true
	}
}

// resolveUniverse picks the instrument list for this run: the pinned ticker,
// the defensive list under the kill switch, or the screenable universe.
func (p *Pipeline) resolveUniverse(ctx context.Context, st *runState) ([]string, error) {
	if st.params.Ticker != "" {
		if st.excluded[st.params.Ticker] {
			return nil, nil
		}
		return []string{st.params.Ticker}, nil
	}

	var raw []string
	if st.mode.Defensive() {
		raw = p.cfg.DefensiveUniverse
	} else {
		var err error
		raw, err = p.md.Universe(ctx)
		if err != nil {
			return nil, fmt.Errorf("universe: %w", err)
		}
	}

	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = util.NormalizeTicker(t)
		if !st.excluded[t] {
			out = append(out, t)
		}
	}
	return out, nil
}

// referenceReturns computes the index 10/20-day returns. On any fault the
// reference is flat, which degrades relative strength to absolute strength.
func (p *Pipeline) referenceReturns(ctx context.Context) (float64, float64) {
	series, err := p.md.DailyBars(ctx, p.cfg.IndexTicker, p.cfg.DailyLookback)
	if err != nil {
		p.log.Warn("reference index unavailable, using flat reference",
			logger.String("index", p.cfg.IndexTicker), logger.Error(err))
		p.metrics.RecordError("reference_index")
		return 0, 0
	}
	r10, _ := series.Return(10)
	r20, _ := series.Return(20)
	return r10, r20
}

// screenUniverse fetches daily series and builds candidate stats with a
// bounded worker pool. Per-ticker faults skip that instrument only.
func (p *Pipeline) screenUniverse(ctx context.Context, st *runState, universe []string, refRet10, refRet20 float64) []models.CandidateStat {
	type result struct {
		idx    int
		stat   models.CandidateStat
		series models.BarSeries
		ok     bool
	}

	jobs := make(chan int)
	results := make(chan result)

	var wg sync.WaitGroup
	for w := 0; w < p.cfg.FetchWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				ticker := universe[idx]
				series, err := p.md.DailyBars(ctx, ticker, p.cfg.DailyLookback)
				if err != nil {
					p.log.Debug("daily bars unavailable",
						logger.String("ticker", ticker), logger.Error(err))
					p.metrics.RecordError("daily_bars")
					results <- result{idx: idx}
					continue
				}
				stat, ok := screen.BuildStat(series, refRet10, refRet20, st.progress, st.preMarket)
				results <- result{idx: idx, stat: stat, series: series, ok: ok}
			}
		}()
	}

	go func() {
		for i := range universe {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	ordered := make([]*models.CandidateStat, len(universe))
	for r := range results {
		if r.ok {
			stat := r.stat
			ordered[r.idx] = &stat
			st.series[stat.Ticker] = r.series
		}
	}

	stats := make([]models.CandidateStat, 0, len(universe))
	for _, s := range ordered {
		if s != nil {
			stats = append(stats, *s)
		}
	}
	return stats
}

// selectWinner renders charts, asks the external selector, and applies the
// fail-closed policy to rejections and malformed or unavailable replies.
// A nil winner means the run terminated with the returned outcome.
func (p *Pipeline) selectWinner(ctx context.Context, st *runState, shortlist []models.ScoredCandidate) (*models.ScoredCandidate, string, models.RunOutcome) {
	failClosed := p.cfg.FailClosed
	if st.params.FailClosed != nil {
		failClosed = *st.params.FailClosed
	}

	charts := p.renderCharts(ctx, st, shortlist)

	verdict, err := p.selector.Pick(ctx, shortlist, charts, st.snap, st.mode)
	if err != nil {
		p.metrics.RecordError("selector")
		if failClosed {
			return nil, "", models.RunOutcome{
				Kind:      models.OutcomeRejected,
				Rationale: fmt.Sprintf("selector unavailable under fail-closed policy: %v", err),
			}
		}
		p.log.Warn("selector unavailable, falling back to top score", logger.Error(err))
		top := shortlist[0]
		return &top, "selector unavailable; top score accepted", models.RunOutcome{}
	}

	if verdict.Rejected() {
		if failClosed {
			return nil, "", models.RunOutcome{
				Kind:      models.OutcomeRejected,
				Rationale: nonEmpty(verdict.Rationale, "selector rejected all candidates"),
			}
		}
		p.log.Warn("selector rejected all, falling back to top score",
			logger.String("rationale", verdict.Rationale))
		top := shortlist[0]
		return &top, "selector rejected; top score accepted", models.RunOutcome{}
	}

	for i := range shortlist {
		if shortlist[i].Ticker == verdict.Winner {
			return &shortlist[i], verdict.Rationale, models.RunOutcome{}
		}
	}

	// The adapter validates the ticker, so this is unreachable in practice.
	top := shortlist[0]
	return &top, verdict.Rationale, models.RunOutcome{}
}

// renderCharts builds one image per candidate, tolerating per-candidate
// failures.
func (p *Pipeline) renderCharts(ctx context.Context, st *runState, shortlist []models.ScoredCandidate) map[string][]byte {
	charts := make(map[string][]byte, len(shortlist))
	if p.charts == nil {
		return charts
	}
	for _, c := range shortlist {
		series, ok := st.series[c.Ticker]
		if !ok {
			continue
		}
		img, err := p.charts.Render(ctx, series)
		if err != nil {
			p.log.Warn("chart render failed",
				logger.String("ticker", c.Ticker), logger.Error(err))
			p.metrics.RecordError("chart_render")
			continue
		}
		charts[c.Ticker] = img
	}
	return charts
}

func (p *Pipeline) synthesize(ctx context.Context, st *runState, winner models.ScoredCandidate) (*models.TradePlan, error) {
	series, ok := st.series[winner.Ticker]
	if !ok {
		return nil, fmt.Errorf("no series retained for %s", winner.Ticker)
	}

	return ladder.Synthesize(ladder.Input{
		Series:    series,
		Scan:      winner.Scan,
		ATR:       indicators.ATR(series, indicators.DefaultATRPeriod),
		LivePrice: p.livePrice(ctx, winner.Ticker),
		PreMarket: st.preMarket,
		Defensive: st.mode.Defensive(),
		Policy:    p.cfg.Policy,
		Now:       time.Now(),
	})
}

// livePrice tries to pull one fresh tick for the winner from the quote
// stream. Zero means no fresher price; the ladder falls back to the last
// close.
func (p *Pipeline) livePrice(ctx context.Context, ticker string) float64 {
	if p.stream == nil || !p.stream.IsConnected() {
		return 0
	}

	streamCtx, cancel := context.WithTimeout(ctx, p.cfg.LivePriceTimeout)
	defer cancel()

	quotes, cancel := p.stream.Listen()
	defer cancel()

	if err := p.stream.Subscribe(streamCtx, []string{ticker}); err != nil {
		p.log.Warn("quote subscribe failed", logger.String("ticker", ticker), logger.Error(err))
		return 0
	}

	for {
		select {
		case <-streamCtx.Done():
			return 0
		case q, ok := <-quotes:
			if !ok {
				return 0
			}
			if q != nil && q.Symbol == ticker && q.Price > 0 {
				return q.Price
			}
		}
	}
}

// report fans the outcome out to metrics, the run log, Kafka, and the chat
// notifier. Sink failures are logged, never propagated.
func (p *Pipeline) report(ctx context.Context, st *runState, out models.RunOutcome) {
	p.metrics.RecordRun(string(out.Kind))
	p.metrics.RecordLatency("run", out.Elapsed.Seconds())

	if st.dirty && p.exclusion != nil {
		if err := p.exclusion.Save(ctx, st.persisted); err != nil {
			p.log.Error("exclusion save failed", logger.Error(err))
			p.metrics.RecordError("exclusion_save")
		}
	}

	if p.runLog != nil {
		if err := p.runLog.Insert(ctx, buildRunRecord(st.id, out)); err != nil {
			p.log.Error("run log insert failed", logger.Error(err))
			p.metrics.RecordError("run_log")
		}
	}

	if p.publisher != nil {
		if err := p.publisher.PublishOutcome(ctx, out); err != nil {
			p.log.Error("outcome publish failed", logger.Error(err))
			p.metrics.RecordError("publish")
		}
	}

	if p.notifier != nil {
		if err := p.notifier.Send(ctx, FormatReport(out)); err != nil {
			p.log.Error("notification failed", logger.Error(err))
			p.metrics.RecordError("notify")
		}
	}

	p.log.Info("hunt finished",
		logger.String("run_id", st.id),
		logger.String("outcome", string(out.Kind)),
		logger.String("ticker", out.Ticker),
		logger.Duration("elapsed", out.Elapsed))
}

func buildRunRecord(runID string, out models.RunOutcome) models.RunRecord {
	rec := models.RunRecord{
		RunID:     runID,
		StartedAt: out.StartedAt,
		Outcome:   string(out.Kind),
		Mode:      out.Mode.String(),
		Ticker:    out.Ticker,
		Score:     out.Score,
		VIX:       out.Regime.VolatilityIndex,
		Rationale: out.Rationale,
	}
	if out.Plan != nil {
		rec.AvgEntry = out.Plan.AvgEntry
		rec.Stop1 = out.Plan.Stop1Price
		rec.TP1 = out.Plan.TP1Trigger
		rec.TP2 = out.Plan.TP2Trigger
		rec.Quantity = out.Plan.Quantity
		rec.MaxLoss = out.Plan.MaxLossUSD
	}
	return rec
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
