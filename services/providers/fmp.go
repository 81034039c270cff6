package providers

import (
	"context"
	"net/url"
	"strings"
	"time"
)

const FMPAPIURL = "https://financialmodelingprep.com/api/v3"

// FMPClient fetches quotes from Financial Modeling Prep.
// Currency pairs are requested in FMP's concatenated form ("EURUSD").
type FMPClient struct {
	BaseURL string
	apiKey  string
	http    *httpClient
}

type fmpQuote struct {
	Symbol            string  `json:"symbol"`
	Price             float64 `json:"price"`
	ChangesPercentage float64 `json:"changesPercentage"`
	Change            float64 `json:"change"`
	DayLow            float64 `json:"dayLow"`
	DayHigh           float64 `json:"dayHigh"`
	PreviousClose     float64 `json:"previousClose"`
	Exchange          string  `json:"exchange"`
	Timestamp         int64   `json:"timestamp"`
}

// NewFMPClient creates a new Financial Modeling Prep client
func NewFMPClient(apiKey string) *FMPClient {
	return &FMPClient{
		BaseURL: FMPAPIURL,
		apiKey:  apiKey,
		http:    newHTTPClient(defaultTimeout),
	}
}

func (c *FMPClient) ID() string { return "fmp" }

func (c *FMPClient) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	remote := symbol
	if strings.Contains(symbol, "/") {
		remote = strings.ReplaceAll(symbol, "/", "")
	}

	var resp []fmpQuote
	query := url.Values{"apikey": {c.apiKey}}
	if err := c.http.getJSON(ctx, c.BaseURL+"/quote/"+url.PathEscape(remote), query, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 || resp[0].Price == 0 {
		return nil, ErrNoData
	}

	r := resp[0]
	q := &Quote{
		Symbol:        symbol,
		Value:         r.Price,
		PreviousClose: nonZero(r.PreviousClose),
		Change:        Float(r.Change),
		ChangePercent: Float(r.ChangesPercentage),
		High:          nonZero(r.DayHigh),
		Low:           nonZero(r.DayLow),
		Exchange:      r.Exchange,
		Source:        c.ID(),
	}
	if r.Timestamp > 0 {
		q.Timestamp = time.Unix(r.Timestamp, 0).UTC()
	}
	return q, nil
}
