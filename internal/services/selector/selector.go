package selector

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	smetrics "github.com/hislov/overdrive-bot/internal/service/metrics"
	xhttp "github.com/hislov/overdrive-bot/pkg/http"
	"github.com/hislov/overdrive-bot/pkg/logger"
)

const instruction = "Review the ranked candidates and their charts. " +
	"Pick exactly one ticker with the best momentum continuation setup, " +
	"or reject all of them. Answer with the ticker and a short reason."

// Service calls the external language-model selector. It treats the reply
// as untrusted: the returned ticker is validated against the shortlist and
// anything unparsable or out-of-list becomes a no-winner verdict.
type Service struct {
	http        *xhttp.Client
	url         string
	apiKey      string
	model       string
	maxAttempts int
	backoffBase time.Duration
	log         *logger.Logger
}

// New creates a selector adapter.
func New(httpClient *xhttp.Client, url, apiKey, model string, maxAttempts int, backoffBase time.Duration, lgr *logger.Logger) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	return &Service{
		http:        httpClient,
		url:         url,
		apiKey:      apiKey,
		model:       model,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		log:         lgr,
	}
}

type candidatePayload struct {
	Ticker      string  `json:"ticker"`
	Score       float64 `json:"score"`
	VolumeSpike float64 `json:"volume_spike"`
	VWAPStatus  string  `json:"vwap_status"`
	ChartBase64 string  `json:"chart,omitempty"`
}

type pickRequest struct {
	Model       string             `json:"model,omitempty"`
	Instruction string             `json:"instruction"`
	Regime      regimePayload      `json:"regime"`
	Candidates  []candidatePayload `json:"candidates"`
}

type regimePayload struct {
	Mode            string  `json:"mode"`
	VolatilityIndex float64 `json:"volatility_index"`
	RateProxy       float64 `json:"rate_proxy"`
}

type pickResponse struct {
	Winner string `json:"winner"`
	Text   string `json:"text"`
}

// Pick sends the shortlist and returns the validated verdict. Transport
// failures are retried with exponential backoff before surfacing an error;
// malformed replies degrade to a rejection verdict instead.
func (s *Service) Pick(ctx context.Context, candidates []models.ScoredCandidate, charts map[string][]byte, snap models.RegimeSnapshot, mode models.RegimeMode) (models.SelectionVerdict, error) {
	req := s.buildRequest(candidates, charts, snap, mode)

	var resp pickResponse
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		start := time.Now()
		err := s.http.PostJSON(ctx, s.url, req, s.headers(), &resp)
		if err == nil {
			smetrics.SelectorLatency.WithLabelValues("ok").Observe(time.Since(start).Seconds())
			smetrics.SelectorAttempts.WithLabelValues("ok").Inc()
			return s.validate(resp, candidates), nil
		}

		smetrics.SelectorLatency.WithLabelValues("error").Observe(time.Since(start).Seconds())
		smetrics.SelectorAttempts.WithLabelValues("error").Inc()
		lastErr = err
		s.log.Warn("selector call failed",
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", s.maxAttempts),
			logger.Error(err))

		if attempt < s.maxAttempts {
			backoff := s.backoffBase * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return models.SelectionVerdict{}, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return models.SelectionVerdict{}, fmt.Errorf("selector unavailable after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *Service) buildRequest(candidates []models.ScoredCandidate, charts map[string][]byte, snap models.RegimeSnapshot, mode models.RegimeMode) pickRequest {
	payload := make([]candidatePayload, 0, len(candidates))
	for _, c := range candidates {
		p := candidatePayload{
			Ticker:      c.Ticker,
			Score:       c.Scan.PowerScore,
			VolumeSpike: c.VolumeSpike,
			VWAPStatus:  string(c.Scan.VWAPStatus),
		}
		if img, ok := charts[c.Ticker]; ok && len(img) > 0 {
			p.ChartBase64 = base64.StdEncoding.EncodeToString(img)
		}
		payload = append(payload, p)
	}

	return pickRequest{
		Model:       s.model,
		Instruction: instruction,
		Regime: regimePayload{
			Mode:            mode.String(),
			VolatilityIndex: snap.VolatilityIndex,
			RateProxy:       snap.RateProxy,
		},
		Candidates: payload,
	}
}

// validate turns the raw reply into a trusted verdict. Winner "none" or ""
// is an explicit rejection; a ticker outside the shortlist is malformed and
// also yields no winner.
func (s *Service) validate(resp pickResponse, candidates []models.ScoredCandidate) models.SelectionVerdict {
	winner := strings.ToUpper(strings.TrimSpace(resp.Winner))
	if winner == "" || winner == "NONE" {
		return models.SelectionVerdict{Rationale: resp.Text}
	}

	for _, c := range candidates {
		if c.Ticker == winner {
			return models.SelectionVerdict{Winner: winner, Rationale: resp.Text}
		}
	}

	s.log.Warn("selector returned out-of-list ticker, treating as no winner",
		logger.String("winner", winner))
	return models.SelectionVerdict{Rationale: fmt.Sprintf("malformed selector reply: %q not in shortlist", winner)}
}

func (s *Service) headers() map[string]string {
	if s.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + s.apiKey}
}
