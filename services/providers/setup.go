package providers

import "strings"

// Config carries API keys and per-provider request budgets
type Config struct {
	AlphaVantageKey string
	FinnhubKey      string
	MarketstackKey  string
	TwelveDataKey   string
	FMPKey          string
	CoinGeckoKey    string
	// RequestsPerMinute overrides DefaultRequestsPerMinute by provider id
	RequestsPerMinute map[string]int
}

// DefaultRequestsPerMinute reflects the free-tier quotas of each provider
var DefaultRequestsPerMinute = map[string]int{
	"alphavantage": 5,
	"finnhub":      60,
	"marketstack":  10,
	"twelvedata":   8,
	"fmp":          30,
	"coingecko":    30,
	"exchangerate": 60,
}

// NewDefaultRegistry registers every client that has the credentials it needs,
// each wrapped in its rate limiter
func NewDefaultRegistry(cfg Config) *Registry {
	r := NewRegistry()

	if cfg.AlphaVantageKey != "" {
		r.Register(cfg.limited(NewAlphaVantageClient(cfg.AlphaVantageKey)))
	}
	if cfg.FinnhubKey != "" {
		r.Register(cfg.limited(NewFinnhubClient(cfg.FinnhubKey)))
	}
	if cfg.MarketstackKey != "" {
		r.Register(cfg.limited(NewMarketstackClient(cfg.MarketstackKey)))
	}
	if cfg.TwelveDataKey != "" {
		r.Register(cfg.limited(NewTwelveDataClient(cfg.TwelveDataKey)))
	}
	if cfg.FMPKey != "" {
		r.Register(cfg.limited(NewFMPClient(cfg.FMPKey)))
	}

	// Keyless public endpoints
	r.Register(cfg.limited(NewCoinGeckoClient(cfg.CoinGeckoKey)))
	r.Register(cfg.limited(NewExchangeRateClient()))

	return r
}

func (cfg Config) limited(p QuoteProvider) QuoteProvider {
	id := strings.ToLower(p.ID())
	rpm, ok := cfg.RequestsPerMinute[id]
	if !ok {
		rpm = DefaultRequestsPerMinute[id]
	}
	return WithRateLimit(p, rpm)
}
