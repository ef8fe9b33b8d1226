package selector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	xhttp "github.com/hislov/overdrive-bot/pkg/http"
	"github.com/hislov/overdrive-bot/pkg/logger"
)

func shortlist(tickers ...string) []models.ScoredCandidate {
	out := make([]models.ScoredCandidate, 0, len(tickers))
	for i, tk := range tickers {
		out = append(out, models.ScoredCandidate{
			CandidateStat: models.CandidateStat{Ticker: tk, VolumeSpike: 2.5},
			Scan: models.DeepScanResult{
				Ticker:     tk,
				PowerScore: float64(10 - i),
				VWAPStatus: models.VWAPAbove,
			},
		})
	}
	return out
}

func newService(url string) *Service {
	return New(xhttp.NewClient(xhttp.WithTimeout(2*time.Second)), url, "", "", 3, time.Millisecond, logger.Nop())
}

func TestPickWinner(t *testing.T) {
	var captured pickRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(pickResponse{Winner: "nvda", Text: "strongest continuation"})
	}))
	defer srv.Close()

	v, err := newService(srv.URL).Pick(context.Background(), shortlist("NVDA", "AMD"), nil, models.RegimeSnapshot{VolatilityIndex: 18}, models.RegimeNormal)
	require.NoError(t, err)
	assert.Equal(t, "NVDA", v.Winner)
	assert.Equal(t, "strongest continuation", v.Rationale)
	assert.False(t, v.Rejected())

	// The request carries the ranked shortlist and the regime context.
	require.Len(t, captured.Candidates, 2)
	assert.Equal(t, "NVDA", captured.Candidates[0].Ticker)
	assert.Equal(t, 10.0, captured.Candidates[0].Score)
	assert.Equal(t, "normal", captured.Regime.Mode)
}

func TestPickExplicitRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(pickResponse{Winner: "none", Text: "nothing compelling"})
	}))
	defer srv.Close()

	v, err := newService(srv.URL).Pick(context.Background(), shortlist("NVDA"), nil, models.RegimeSnapshot{}, models.RegimeNormal)
	require.NoError(t, err)
	assert.True(t, v.Rejected())
	assert.Equal(t, "nothing compelling", v.Rationale)
}

func TestPickOutOfListIsNoWinner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(pickResponse{Winner: "TSLA", Text: "looks great"})
	}))
	defer srv.Close()

	v, err := newService(srv.URL).Pick(context.Background(), shortlist("NVDA", "AMD"), nil, models.RegimeSnapshot{}, models.RegimeNormal)
	require.NoError(t, err)
	assert.True(t, v.Rejected())
	assert.Contains(t, v.Rationale, "TSLA")
}

func TestPickRetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(pickResponse{Winner: "NVDA"})
	}))
	defer srv.Close()

	v, err := newService(srv.URL).Pick(context.Background(), shortlist("NVDA"), nil, models.RegimeSnapshot{}, models.RegimeNormal)
	require.NoError(t, err)
	assert.Equal(t, "NVDA", v.Winner)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPickExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newService(srv.URL).Pick(context.Background(), shortlist("NVDA"), nil, models.RegimeSnapshot{}, models.RegimeNormal)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selector unavailable after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestPickHonorsContextDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(xhttp.NewClient(), srv.URL, "", "", 5, time.Hour, logger.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Pick(ctx, shortlist("NVDA"), nil, models.RegimeSnapshot{}, models.RegimeNormal)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
