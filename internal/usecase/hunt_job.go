package usecase

import (
	"context"
	"fmt"

	"github.com/hislov/overdrive-bot/pkg/logger"
	"github.com/hislov/overdrive-bot/pkg/queue"
)

// HuntMessageType is the queue message type for background hunt runs.
const HuntMessageType = "hunt.run"

// HuntPayload is the queued form of HuntParams.
type HuntPayload struct {
	Ticker     string   `json:"ticker,omitempty"`
	Exclude    []string `json:"exclude,omitempty"`
	FailClosed *bool    `json:"fail_closed,omitempty"`
}

// HuntJob drains queued hunt triggers into the pipeline.
type HuntJob struct {
	pipeline *Pipeline
	log      *logger.Logger
}

// NewHuntJob creates the queue job handler.
func NewHuntJob(pipeline *Pipeline, lgr *logger.Logger) *HuntJob {
	return &HuntJob{pipeline: pipeline, log: lgr}
}

// Name returns the job identifier.
func (j *HuntJob) Name() string { return "hunt-runner" }

// Type returns the message type this job handles.
func (j *HuntJob) Type() string { return HuntMessageType }

// Handle runs one hunt from a queued trigger. Pipeline outcomes are not
// errors; only payload faults bubble up for retry.
func (j *HuntJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[HuntPayload](payload)
	if err != nil {
		return fmt.Errorf("hunt payload: %w", err)
	}

	out, err := j.pipeline.Run(ctx, HuntParams{
		Ticker:     p.Ticker,
		Exclude:    p.Exclude,
		FailClosed: p.FailClosed,
	})
	if err != nil {
		// Already reported through the pipeline sinks; do not retry a
		// completed run.
		j.log.Warn("queued hunt ended with failure",
			logger.String("outcome", string(out.Kind)),
			logger.Error(err))
	}
	return nil
}
