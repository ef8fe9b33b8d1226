package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	pkgch "github.com/hislov/overdrive-bot/pkg/clickhouse"
	applogger "github.com/hislov/overdrive-bot/pkg/logger"
)

// Schema statements for the blackbox run log (idempotent).
var runLogSchema = []string{
	`CREATE TABLE IF NOT EXISTS hunt_runs (
		run_id     String,
		started_at DateTime64(3),
		outcome    LowCardinality(String),
		mode       LowCardinality(String),
		ticker     String,
		score      Float64,
		vix        Float64,
		avg_entry  Float64,
		stop1      Float64,
		tp1        Float64,
		tp2        Float64,
		quantity   Int32,
		max_loss   Float64,
		rationale  String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(started_at)
	ORDER BY (started_at, run_id)`,
}

// CHRunLog implements RunLog backed by ClickHouse.
type CHRunLog struct {
	db *sql.DB
	ch *pkgch.Client
	l  *applogger.Logger
}

// NewCHRunLog creates the run log and ensures its table exists.
func NewCHRunLog(ch *pkgch.Client, l *applogger.Logger) (*CHRunLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ch.InitSchema(ctx, runLogSchema); err != nil {
		return nil, fmt.Errorf("run log schema: %w", err)
	}
	return &CHRunLog{db: ch.DB(), ch: ch, l: l}, nil
}

// Insert persists one run record.
func (s *CHRunLog) Insert(ctx context.Context, rec models.RunRecord) error {
	start := time.Now()
	const q = `
        INSERT INTO hunt_runs
        (run_id, started_at, outcome, mode, ticker, score, vix,
         avg_entry, stop1, tp1, tp2, quantity, max_loss, rationale)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		rec.RunID, rec.StartedAt, rec.Outcome, rec.Mode, rec.Ticker,
		rec.Score, rec.VIX, rec.AvgEntry, rec.Stop1, rec.TP1, rec.TP2,
		rec.Quantity, rec.MaxLoss, rec.Rationale,
	)
	if err != nil {
		s.l.Error("clickhouse run insert error",
			applogger.String("run_id", rec.RunID),
			applogger.Error(err))
		return fmt.Errorf("insert run: %w", err)
	}

	s.l.Info("clickhouse run insert ok",
		applogger.String("run_id", rec.RunID),
		applogger.String("outcome", rec.Outcome),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// Recent returns the newest run records, most recent first.
func (s *CHRunLog) Recent(ctx context.Context, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
        SELECT run_id, started_at, outcome, mode, ticker, score, vix,
               avg_entry, stop1, tp1, tp2, quantity, max_loss, rationale
        FROM hunt_runs
        ORDER BY started_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		s.l.Error("clickhouse recent runs query error", applogger.Error(err))
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.RunRecord, 0, limit)
	for rows.Next() {
		var r models.RunRecord
		if err := rows.Scan(
			&r.RunID, &r.StartedAt, &r.Outcome, &r.Mode, &r.Ticker,
			&r.Score, &r.VIX, &r.AvgEntry, &r.Stop1, &r.TP1, &r.TP2,
			&r.Quantity, &r.MaxLoss, &r.Rationale,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Health checks the underlying connection.
func (s *CHRunLog) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// Close closes the connection pool.
func (s *CHRunLog) Close() error {
	return s.ch.Close()
}
