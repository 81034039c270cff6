package providers

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	ExchangeRateAPIURL   = "https://open.er-api.com/v6"
	exchangeRateCacheTTL = time.Minute
)

// ExchangeRateClient serves currency pairs from the open exchange-rate API.
// Rate tables are cached per base currency so that a category run with several
// pairs sharing a base makes a single request.
type ExchangeRateClient struct {
	BaseURL string
	http    *httpClient
	now     func() time.Time

	mu     sync.Mutex
	cache  map[string]rateTable
	flight singleflight.Group
}

type rateTable struct {
	fetchedAt time.Time
	updatedAt time.Time
	rates     map[string]float64
}

type exchangeRateResponse struct {
	Result      string             `json:"result"`
	BaseCode    string             `json:"base_code"`
	LastUpdated int64              `json:"time_last_update_unix"`
	Rates       map[string]float64 `json:"rates"`
}

// NewExchangeRateClient creates a new exchange-rate client
func NewExchangeRateClient() *ExchangeRateClient {
	return &ExchangeRateClient{
		BaseURL: ExchangeRateAPIURL,
		http:    newHTTPClient(defaultTimeout),
		now:     time.Now,
		cache:   make(map[string]rateTable),
	}
}

func (c *ExchangeRateClient) ID() string { return "exchangerate" }

func (c *ExchangeRateClient) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	base, quote, ok := SplitPair(symbol)
	if !ok {
		return nil, ErrNoData
	}

	table, err := c.rates(ctx, base)
	if err != nil {
		return nil, err
	}
	rate, ok := table.rates[quote]
	if !ok || rate == 0 {
		return nil, ErrNoData
	}
	return &Quote{
		Symbol:   symbol,
		Value:    rate,
		Currency: quote,
		AsOf:     table.updatedAt,
		Source:   c.ID(),
	}, nil
}

func (c *ExchangeRateClient) rates(ctx context.Context, base string) (rateTable, error) {
	c.mu.Lock()
	if t, ok := c.cache[base]; ok && c.now().Sub(t.fetchedAt) < exchangeRateCacheTTL {
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	// Concurrent misses for the same base share one request
	v, err, _ := c.flight.Do(base, func() (interface{}, error) {
		return c.fetchTable(ctx, base)
	})
	if err != nil {
		return rateTable{}, err
	}
	return v.(rateTable), nil
}

func (c *ExchangeRateClient) fetchTable(ctx context.Context, base string) (rateTable, error) {
	var resp exchangeRateResponse
	if err := c.http.getJSON(ctx, c.BaseURL+"/latest/"+url.PathEscape(base), nil, nil, &resp); err != nil {
		return rateTable{}, err
	}
	if resp.Result != "success" || len(resp.Rates) == 0 {
		return rateTable{}, ErrNoData
	}

	t := rateTable{fetchedAt: c.now(), rates: resp.Rates}
	if resp.LastUpdated > 0 {
		t.updatedAt = time.Unix(resp.LastUpdated, 0).UTC()
	}
	c.mu.Lock()
	c.cache[base] = t
	c.mu.Unlock()
	return t, nil
}
