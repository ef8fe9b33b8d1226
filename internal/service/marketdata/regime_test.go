package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	xhttp "github.com/hislov/overdrive-bot/pkg/http"
	"github.com/hislov/overdrive-bot/pkg/logger"
)

func TestSnapshotSubstitutesFallbackPerLeg(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("ticker") {
		case "VIX":
			w.WriteHeader(http.StatusBadGateway)
		case "US10Y":
			fmt.Fprint(w, `{"ticker":"US10Y","last":4.35}`)
		}
	}))
	defer srv.Close()

	r := NewRegimeReader(xhttp.NewClient(xhttp.WithTimeout(5*time.Second)),
		srv.URL, "", "VIX", "US10Y", 17.5, 3.0, logger.Nop())

	snap := r.Snapshot(context.Background())
	if snap.VolatilityIndex != 17.5 {
		t.Fatalf("expected configured volatility fallback 17.5, got %v", snap.VolatilityIndex)
	}
	if snap.RateProxy != 4.35 {
		t.Fatalf("expected live rate 4.35, got %v", snap.RateProxy)
	}
}

func TestNewRegimeReaderDefaultsFallbacks(t *testing.T) {
	r := NewRegimeReader(xhttp.NewClient(), "http://unused", "", "VIX", "US10Y", 0, 0, logger.Nop())
	if r.fallbackVol != FallbackVolatility || r.fallbackRate != FallbackRateProxy {
		t.Fatalf("expected package defaults, got %v/%v", r.fallbackVol, r.fallbackRate)
	}
}
