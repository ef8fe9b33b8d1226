package marketdata

import (
	"context"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	xhttp "github.com/hislov/overdrive-bot/pkg/http"
	"github.com/hislov/overdrive-bot/pkg/logger"
)

// Default fallbacks used when the macro quote endpoints are unreachable.
// The volatility default sits on the elevated threshold, so a failed quote
// leans the run toward the tighter elevated screening rather than aborting.
const (
	FallbackVolatility = 20.0
	FallbackRateProxy  = 4.0
)

// RegimeReader implements repository.RegimeSource by quoting the volatility
// index and a long-rate proxy once per run.
type RegimeReader struct {
	http         *xhttp.Client
	baseURL      string
	apiKey       string
	volTicker    string
	rateTicker   string
	fallbackVol  float64
	fallbackRate float64
	log          *logger.Logger
}

// NewRegimeReader creates a regime source. Non-positive fallbacks take the
// package defaults.
func NewRegimeReader(httpClient *xhttp.Client, baseURL, apiKey, volTicker, rateTicker string, fallbackVol, fallbackRate float64, lgr *logger.Logger) *RegimeReader {
	if fallbackVol <= 0 {
		fallbackVol = FallbackVolatility
	}
	if fallbackRate <= 0 {
		fallbackRate = FallbackRateProxy
	}
	return &RegimeReader{
		http:         httpClient,
		baseURL:      baseURL,
		apiKey:       apiKey,
		volTicker:    volTicker,
		rateTicker:   rateTicker,
		fallbackVol:  fallbackVol,
		fallbackRate: fallbackRate,
		log:          lgr,
	}
}

type quoteResponse struct {
	Ticker string  `json:"ticker"`
	Last   float64 `json:"last"`
}

// Snapshot reads the macro inputs, substituting fallbacks per-leg on error.
func (r *RegimeReader) Snapshot(ctx context.Context) models.RegimeSnapshot {
	snap := models.RegimeSnapshot{
		VolatilityIndex: r.fallbackVol,
		RateProxy:       r.fallbackRate,
	}

	if v, err := r.quote(ctx, r.volTicker); err != nil {
		r.log.Warn("volatility quote failed, using fallback",
			logger.String("ticker", r.volTicker), logger.Error(err))
	} else if v > 0 {
		snap.VolatilityIndex = v
	}

	if v, err := r.quote(ctx, r.rateTicker); err != nil {
		r.log.Warn("rate proxy quote failed, using fallback",
			logger.String("ticker", r.rateTicker), logger.Error(err))
	} else if v > 0 {
		snap.RateProxy = v
	}

	return snap
}

func (r *RegimeReader) quote(ctx context.Context, ticker string) (float64, error) {
	headers := map[string]string{}
	if r.apiKey != "" {
		headers["X-Api-Key"] = r.apiKey
	}
	var resp quoteResponse
	err := r.http.GetJSON(ctx, r.baseURL+"/v1/quote", map[string][]string{
		"ticker": {ticker},
	}, headers, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Last, nil
}
