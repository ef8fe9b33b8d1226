package service

import (
	"context"

	"github.com/hislov/overdrive-bot/internal/domain/models"
)

// Selector is the external single-winner chooser. It never mutates scores;
// it only selects from (or rejects) the provided shortlist. A verdict with
// an empty winner signals rejection; implementations validate the returned
// ticker against the shortlist before trusting it.
type Selector interface {
	Pick(ctx context.Context, candidates []models.ScoredCandidate, charts map[string][]byte, snap models.RegimeSnapshot, mode models.RegimeMode) (models.SelectionVerdict, error)
}

// ChartRenderer turns a trailing bar window into image bytes for the
// selector. Per-candidate failures are tolerated by callers.
type ChartRenderer interface {
	Render(ctx context.Context, series models.BarSeries) ([]byte, error)
}

// Notifier delivers the formatted run report. Fire-and-forget from the
// pipeline's perspective.
type Notifier interface {
	Send(ctx context.Context, report string) error
}
