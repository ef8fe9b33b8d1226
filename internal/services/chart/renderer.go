package chart

import (
	"context"
	"fmt"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	smetrics "github.com/hislov/overdrive-bot/internal/service/metrics"
	xhttp "github.com/hislov/overdrive-bot/pkg/http"
)

// Renderer turns a trailing bar window into a candlestick image through the
// render service. Output bytes feed the selector only; nothing downstream
// depends on their content.
type Renderer struct {
	http   *xhttp.Client
	url    string
	window int
}

// New creates a chart renderer. window is the number of trailing bars sent.
func New(httpClient *xhttp.Client, url string, window int) *Renderer {
	if window <= 0 {
		window = 90
	}
	return &Renderer{http: httpClient, url: url, window: window}
}

type renderBar struct {
	Time   int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

type renderRequest struct {
	Ticker string      `json:"ticker"`
	Bars   []renderBar `json:"bars"`
}

// Render posts the trailing window and returns raw image bytes.
func (r *Renderer) Render(ctx context.Context, series models.BarSeries) ([]byte, error) {
	tail := series.Tail(r.window)
	if tail.Len() == 0 {
		return nil, fmt.Errorf("render %s: no bars", series.Ticker)
	}

	req := renderRequest{Ticker: series.Ticker, Bars: make([]renderBar, 0, tail.Len())}
	for _, b := range tail.Bars {
		req.Bars = append(req.Bars, renderBar{
			Time:   b.Time.Unix(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}

	var img []byte
	if err := r.http.PostJSON(ctx, r.url, req, nil, &img); err != nil {
		smetrics.ChartRenders.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("render %s: %w", series.Ticker, err)
	}

	smetrics.ChartRenders.WithLabelValues("ok").Inc()
	return img, nil
}
