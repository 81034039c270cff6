package providers

import (
	"context"
	"net/url"
	"time"
)

const MarketstackAPIURL = "https://api.marketstack.com/v1"

// MarketstackClient fetches the latest end-of-day bar from Marketstack
type MarketstackClient struct {
	BaseURL string
	apiKey  string
	http    *httpClient
}

type marketstackResponse struct {
	Data []struct {
		Symbol   string  `json:"symbol"`
		Exchange string  `json:"exchange"`
		Open     float64 `json:"open"`
		High     float64 `json:"high"`
		Low      float64 `json:"low"`
		Close    float64 `json:"close"`
		Date     string  `json:"date"`
	} `json:"data"`
}

// NewMarketstackClient creates a new Marketstack client
func NewMarketstackClient(apiKey string) *MarketstackClient {
	return &MarketstackClient{
		BaseURL: MarketstackAPIURL,
		apiKey:  apiKey,
		http:    newHTTPClient(defaultTimeout),
	}
}

func (c *MarketstackClient) ID() string { return "marketstack" }

func (c *MarketstackClient) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	var resp marketstackResponse
	query := url.Values{
		"access_key": {c.apiKey},
		"symbols":    {symbol},
	}
	if err := c.http.getJSON(ctx, c.BaseURL+"/eod/latest", query, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].Close == 0 {
		return nil, ErrNoData
	}

	bar := resp.Data[0]
	q := &Quote{
		Symbol:   symbol,
		Value:    bar.Close,
		High:     nonZero(bar.High),
		Low:      nonZero(bar.Low),
		Exchange: bar.Exchange,
		Source:   c.ID(),
	}
	if bar.Open != 0 {
		q.Change = Float(bar.Close - bar.Open)
	}
	if ts, err := time.Parse("2006-01-02T15:04:05-0700", bar.Date); err == nil {
		q.AsOf = ts
	}
	return q, nil
}
