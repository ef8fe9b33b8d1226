package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	pkgkafka "github.com/hislov/overdrive-bot/pkg/kafka"
	applogger "github.com/hislov/overdrive-bot/pkg/logger"
)

// KafkaReportPublisher pushes run outcomes to the configured topic for
// downstream journaling/backtest consumers. Keyed by ticker so per-symbol
// ordering is preserved.
type KafkaReportPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

// NewKafkaReportPublisher creates a report publisher.
func NewKafkaReportPublisher(producer *pkgkafka.Producer, topic string, l *applogger.Logger) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: producer, topic: topic, l: l}
}

type outcomeEvent struct {
	Kind      string            `json:"kind"`
	Ticker    string            `json:"ticker,omitempty"`
	Score     float64           `json:"score,omitempty"`
	Mode      string            `json:"mode"`
	VIX       float64           `json:"vix"`
	Rationale string            `json:"rationale,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	ElapsedMS int64             `json:"elapsed_ms"`
	Plan      *outcomePlanEvent `json:"plan,omitempty"`
}

type outcomePlanEvent struct {
	AvgEntry     float64 `json:"avg_entry"`
	Stop1        float64 `json:"stop1"`
	Stop2        float64 `json:"stop2"`
	TP1          float64 `json:"tp1"`
	TP2          float64 `json:"tp2"`
	Quantity     int     `json:"quantity"`
	MaxLossUSD   float64 `json:"max_loss_usd"`
	ExpProfitUSD float64 `json:"expected_profit_usd"`
}

// PublishOutcome emits one run outcome event.
func (p *KafkaReportPublisher) PublishOutcome(ctx context.Context, out models.RunOutcome) error {
	evt := outcomeEvent{
		Kind:      string(out.Kind),
		Ticker:    out.Ticker,
		Score:     out.Score,
		Mode:      out.Mode.String(),
		VIX:       out.Regime.VolatilityIndex,
		Rationale: out.Rationale,
		StartedAt: out.StartedAt,
		ElapsedMS: out.Elapsed.Milliseconds(),
	}
	if out.Plan != nil {
		evt.Plan = &outcomePlanEvent{
			AvgEntry:     out.Plan.AvgEntry,
			Stop1:        out.Plan.Stop1Price,
			Stop2:        out.Plan.Stop2Price,
			TP1:          out.Plan.TP1Trigger,
			TP2:          out.Plan.TP2Trigger,
			Quantity:     out.Plan.Quantity,
			MaxLossUSD:   out.Plan.MaxLossUSD,
			ExpProfitUSD: out.Plan.ExpectedProfitUSD,
		}
	}

	key := []byte(out.Ticker)
	if out.Ticker == "" {
		key = []byte(string(out.Kind))
	}

	if err := p.producer.Publish(ctx, p.topic, key, evt); err != nil {
		p.l.Error("kafka outcome publish error",
			applogger.String("kind", string(out.Kind)),
			applogger.Error(err))
		return fmt.Errorf("publish outcome: %w", err)
	}
	return nil
}

// Close closes the underlying producer.
func (p *KafkaReportPublisher) Close() error {
	return p.producer.Close()
}
