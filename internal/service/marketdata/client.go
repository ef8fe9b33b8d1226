package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	"github.com/hislov/overdrive-bot/internal/service/ratelimit"
	"github.com/hislov/overdrive-bot/pkg/cache"
	xhttp "github.com/hislov/overdrive-bot/pkg/http"
	"github.com/hislov/overdrive-bot/pkg/logger"
	"github.com/hislov/overdrive-bot/pkg/util"
)

const rateKey = "marketdata"

// Client implements repository.MarketData over the provider's REST API.
// Static metadata and the remote universe are cached; bar fetches are rate
// limited per the provider's quota.
type Client struct {
	http        *xhttp.Client
	baseURL     string
	apiKey      string
	limiter     *ratelimit.Limiter
	rateBurst   float64
	ratePerSec  float64
	cache       cache.Service
	staticTTL   time.Duration
	coreList    []string
	defensive   []string
	remoteURL   string
	log         *logger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithStaticTTL sets the static info cache TTL.
func WithStaticTTL(ttl time.Duration) Option {
	return func(c *Client) { c.staticTTL = ttl }
}

// WithRate sets the request pacing for the provider quota.
func WithRate(burst, perSec float64) Option {
	return func(c *Client) {
		c.rateBurst = burst
		c.ratePerSec = perSec
	}
}

// WithUniverse sets the core and defensive ticker lists plus the optional
// remote list endpoint.
func WithUniverse(core, defensive []string, remoteURL string) Option {
	return func(c *Client) {
		c.coreList = core
		c.defensive = defensive
		c.remoteURL = remoteURL
	}
}

// NewClient creates a market data client.
func NewClient(httpClient *xhttp.Client, baseURL, apiKey string, cacheSvc cache.Service, lgr *logger.Logger, opts ...Option) *Client {
	c := &Client{
		http:       httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		rateBurst:  10,
		ratePerSec: 5,
		cache:      cacheSvc,
		staticTTL:  6 * time.Hour,
		log:        lgr,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.limiter = ratelimit.New(c.ratePerSec, int(c.rateBurst))
	return c
}

type barDTO struct {
	Time   int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

type barsResponse struct {
	Ticker string   `json:"ticker"`
	Bars   []barDTO `json:"bars"`
}

type staticResponse struct {
	Ticker    string  `json:"ticker"`
	MarketCap float64 `json:"market_cap"`
}

type universeResponse struct {
	Tickers []string `json:"tickers"`
}

// DailyBars returns up to lookback daily bars, oldest first.
func (c *Client) DailyBars(ctx context.Context, ticker string, lookback int) (models.BarSeries, error) {
	ticker = util.NormalizeTicker(ticker)
	if err := c.limiter.Wait(ctx, rateKey); err != nil {
		return models.BarSeries{}, err
	}

	var resp barsResponse
	err := c.http.GetJSON(ctx, c.baseURL+"/v1/bars/daily", map[string][]string{
		"ticker": {ticker},
		"limit":  {fmt.Sprintf("%d", lookback)},
	}, c.authHeaders(), &resp)
	if err != nil {
		return models.BarSeries{}, fmt.Errorf("daily bars %s: %w", ticker, err)
	}
	if len(resp.Bars) == 0 {
		return models.BarSeries{}, fmt.Errorf("daily bars %s: empty response", ticker)
	}

	return models.NewBarSeries(ticker, toBars(resp.Bars)), nil
}

// IntradayBars returns minute bars covering the trailing window, oldest first.
func (c *Client) IntradayBars(ctx context.Context, ticker string, window time.Duration) (models.BarSeries, error) {
	ticker = util.NormalizeTicker(ticker)
	if err := c.limiter.Wait(ctx, rateKey); err != nil {
		return models.BarSeries{}, err
	}

	from := time.Now().Add(-window)
	var resp barsResponse
	err := c.http.GetJSON(ctx, c.baseURL+"/v1/bars/intraday", map[string][]string{
		"ticker":     {ticker},
		"resolution": {"1m"},
		"from":       {fmt.Sprintf("%d", from.Unix())},
	}, c.authHeaders(), &resp)
	if err != nil {
		return models.BarSeries{}, fmt.Errorf("intraday bars %s: %w", ticker, err)
	}
	if len(resp.Bars) == 0 {
		return models.BarSeries{}, fmt.Errorf("intraday bars %s: empty response", ticker)
	}

	return models.NewBarSeries(ticker, toBars(resp.Bars)), nil
}

// StaticInfo returns slow-moving metadata, served from cache when fresh.
func (c *Client) StaticInfo(ctx context.Context, ticker string) (models.StaticInfo, error) {
	ticker = util.NormalizeTicker(ticker)
	key := cache.Key("static", ticker)

	var cached models.StaticInfo
	if err := c.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.log.Warn("static info cache read failed",
			logger.String("ticker", ticker), logger.Error(err))
	}

	if err := c.limiter.Wait(ctx, rateKey); err != nil {
		return models.StaticInfo{}, err
	}

	var resp staticResponse
	err := c.http.GetJSON(ctx, c.baseURL+"/v1/instrument", map[string][]string{
		"ticker": {ticker},
	}, c.authHeaders(), &resp)
	if err != nil {
		return models.StaticInfo{}, fmt.Errorf("static info %s: %w", ticker, err)
	}

	info := models.StaticInfo{Ticker: ticker, MarketCap: resp.MarketCap}
	if err := c.cache.Set(ctx, key, info, c.staticTTL); err != nil {
		c.log.Warn("static info cache write failed",
			logger.String("ticker", ticker), logger.Error(err))
	}
	return info, nil
}

// Universe returns the screenable ticker list. The remote list is tried
// first; on any fault the configured core list is returned.
func (c *Client) Universe(ctx context.Context) ([]string, error) {
	if c.remoteURL == "" {
		return c.coreList, nil
	}

	var resp universeResponse
	if err := c.http.GetJSON(ctx, c.remoteURL, nil, c.authHeaders(), &resp); err != nil {
		c.log.Warn("remote universe unavailable, using core list", logger.Error(err))
		return c.coreList, nil
	}
	if len(resp.Tickers) == 0 {
		c.log.Warn("remote universe empty, using core list")
		return c.coreList, nil
	}

	out := make([]string, 0, len(resp.Tickers))
	for _, t := range resp.Tickers {
		out = append(out, util.NormalizeTicker(t))
	}
	return out, nil
}

// DefensiveUniverse returns the inverse/defensive instrument list.
func (c *Client) DefensiveUniverse() []string {
	return c.defensive
}

func (c *Client) authHeaders() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"X-Api-Key": c.apiKey}
}

func toBars(dtos []barDTO) []models.Bar {
	bars := make([]models.Bar, 0, len(dtos))
	for _, d := range dtos {
		bars = append(bars, models.Bar{
			Time:   time.Unix(d.Time, 0),
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  d.Close,
			Volume: d.Volume,
		})
	}
	return bars
}
