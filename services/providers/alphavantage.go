package providers

import (
	"context"
	"net/url"
	"strings"
	"time"
)

const AlphaVantageAPIURL = "https://www.alphavantage.co/query"

// AlphaVantageClient serves equities/indices through GLOBAL_QUOTE and
// currency pairs ("EUR/USD") through CURRENCY_EXCHANGE_RATE
type AlphaVantageClient struct {
	BaseURL string
	apiKey  string
	http    *httpClient
}

type alphaVantageGlobalQuote struct {
	Quote struct {
		Symbol        string `json:"01. symbol"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
		Price         string `json:"05. price"`
		LatestDay     string `json:"07. latest trading day"`
		PreviousClose string `json:"08. previous close"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

type alphaVantageExchangeRate struct {
	Rate struct {
		From          string `json:"1. From_Currency Code"`
		To            string `json:"3. To_Currency Code"`
		ExchangeRate  string `json:"5. Exchange Rate"`
		LastRefreshed string `json:"6. Last Refreshed"`
		TimeZone      string `json:"7. Time Zone"`
	} `json:"Realtime Currency Exchange Rate"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// NewAlphaVantageClient creates a new Alpha Vantage client
func NewAlphaVantageClient(apiKey string) *AlphaVantageClient {
	return &AlphaVantageClient{
		BaseURL: AlphaVantageAPIURL,
		apiKey:  apiKey,
		http:    newHTTPClient(defaultTimeout),
	}
}

func (c *AlphaVantageClient) ID() string { return "alphavantage" }

func (c *AlphaVantageClient) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	if strings.Contains(symbol, "/") {
		return c.fetchExchangeRate(ctx, symbol)
	}

	var resp alphaVantageGlobalQuote
	query := url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
		"apikey":   {c.apiKey},
	}
	if err := c.http.getJSON(ctx, c.BaseURL, query, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Note != "" || resp.Information != "" {
		return nil, ErrRateLimited
	}

	price, ok := parseNumber(resp.Quote.Price)
	if !ok {
		return nil, ErrNoData
	}
	q := &Quote{
		Symbol:        symbol,
		Value:         price,
		PreviousClose: optionalNumber(resp.Quote.PreviousClose),
		Change:        optionalNumber(resp.Quote.Change),
		ChangePercent: optionalNumber(resp.Quote.ChangePercent),
		High:          optionalNumber(resp.Quote.High),
		Low:           optionalNumber(resp.Quote.Low),
		Source:        c.ID(),
	}
	if day, err := time.Parse("2006-01-02", resp.Quote.LatestDay); err == nil {
		q.AsOf = day
	}
	return q, nil
}

func (c *AlphaVantageClient) fetchExchangeRate(ctx context.Context, symbol string) (*Quote, error) {
	base, quote, ok := SplitPair(symbol)
	if !ok {
		return nil, ErrNoData
	}

	var resp alphaVantageExchangeRate
	query := url.Values{
		"function":      {"CURRENCY_EXCHANGE_RATE"},
		"from_currency": {base},
		"to_currency":   {quote},
		"apikey":        {c.apiKey},
	}
	if err := c.http.getJSON(ctx, c.BaseURL, query, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Note != "" || resp.Information != "" {
		return nil, ErrRateLimited
	}

	rate, ok := parseNumber(resp.Rate.ExchangeRate)
	if !ok {
		return nil, ErrNoData
	}
	q := &Quote{
		Symbol:   symbol,
		Value:    rate,
		Currency: quote,
		Timezone: resp.Rate.TimeZone,
		Source:   c.ID(),
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", resp.Rate.LastRefreshed); err == nil {
		q.AsOf = ts
	}
	return q, nil
}
