package providers

import (
	"context"
	"net/url"
	"time"
)

const FinnhubAPIURL = "https://finnhub.io/api/v1"

// FinnhubClient fetches single-symbol quotes from Finnhub
type FinnhubClient struct {
	BaseURL string
	apiKey  string
	http    *httpClient
}

type finnhubQuote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// NewFinnhubClient creates a new Finnhub client
func NewFinnhubClient(apiKey string) *FinnhubClient {
	return &FinnhubClient{
		BaseURL: FinnhubAPIURL,
		apiKey:  apiKey,
		http:    newHTTPClient(defaultTimeout),
	}
}

func (c *FinnhubClient) ID() string { return "finnhub" }

func (c *FinnhubClient) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	var resp finnhubQuote
	query := url.Values{"symbol": {symbol}}
	headers := map[string]string{"X-Finnhub-Token": c.apiKey}
	if err := c.http.getJSON(ctx, c.BaseURL+"/quote", query, headers, &resp); err != nil {
		return nil, err
	}

	// Finnhub answers unknown symbols with an all-zero payload
	if resp.Current == 0 && resp.Timestamp == 0 {
		return nil, ErrNoData
	}

	q := &Quote{
		Symbol:        symbol,
		Value:         resp.Current,
		PreviousClose: nonZero(resp.PreviousClose),
		Change:        Float(resp.Change),
		ChangePercent: Float(resp.ChangePercent),
		High:          nonZero(resp.High),
		Low:           nonZero(resp.Low),
		Source:        c.ID(),
	}
	if resp.Timestamp > 0 {
		q.Timestamp = time.Unix(resp.Timestamp, 0).UTC()
	}
	return q, nil
}
