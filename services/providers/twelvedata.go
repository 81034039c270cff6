package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

const TwelveDataAPIURL = "https://api.twelvedata.com"

// TwelveDataClient fetches quotes for equities, indices, FX pairs and commodities
type TwelveDataClient struct {
	BaseURL string
	apiKey  string
	http    *httpClient
}

type twelveDataQuote struct {
	Symbol        string `json:"symbol"`
	Exchange      string `json:"exchange"`
	Currency      string `json:"currency"`
	Timestamp     int64  `json:"timestamp"`
	High          string `json:"high"`
	Low           string `json:"low"`
	Close         string `json:"close"`
	PreviousClose string `json:"previous_close"`
	Change        string `json:"change"`
	PercentChange string `json:"percent_change"`
	Code          int    `json:"code"`
	Message       string `json:"message"`
	Status        string `json:"status"`
}

// NewTwelveDataClient creates a new Twelve Data client
func NewTwelveDataClient(apiKey string) *TwelveDataClient {
	return &TwelveDataClient{
		BaseURL: TwelveDataAPIURL,
		apiKey:  apiKey,
		http:    newHTTPClient(defaultTimeout),
	}
}

func (c *TwelveDataClient) ID() string { return "twelvedata" }

func (c *TwelveDataClient) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	var resp twelveDataQuote
	query := url.Values{
		"symbol": {symbol},
		"apikey": {c.apiKey},
	}
	if err := c.http.getJSON(ctx, c.BaseURL+"/quote", query, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "error" {
		if resp.Code == 429 {
			return nil, ErrRateLimited
		}
		if resp.Code == 404 {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("twelvedata error %d: %s", resp.Code, resp.Message)
	}

	price, ok := parseNumber(resp.Close)
	if !ok {
		return nil, ErrNoData
	}
	q := &Quote{
		Symbol:        symbol,
		Value:         price,
		PreviousClose: optionalNumber(resp.PreviousClose),
		Change:        optionalNumber(resp.Change),
		ChangePercent: optionalNumber(resp.PercentChange),
		High:          optionalNumber(resp.High),
		Low:           optionalNumber(resp.Low),
		Currency:      resp.Currency,
		Exchange:      resp.Exchange,
		Source:        c.ID(),
	}
	if resp.Timestamp > 0 {
		q.Timestamp = time.Unix(resp.Timestamp, 0).UTC()
	}
	return q, nil
}
