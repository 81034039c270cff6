package providers

import (
	"context"
	"net/url"
	"strings"
	"time"
)

const CoinGeckoAPIURL = "https://api.coingecko.com/api/v3"

// CoinGeckoClient fetches crypto prices in batches keyed by CoinGecko coin id
type CoinGeckoClient struct {
	BaseURL    string
	VsCurrency string
	apiKey     string
	http       *httpClient
}

// NewCoinGeckoClient creates a new CoinGecko client. The API key is optional.
func NewCoinGeckoClient(apiKey string) *CoinGeckoClient {
	return &CoinGeckoClient{
		BaseURL:    CoinGeckoAPIURL,
		VsCurrency: "usd",
		apiKey:     apiKey,
		http:       newHTTPClient(defaultTimeout),
	}
}

func (c *CoinGeckoClient) ID() string { return "coingecko" }

func (c *CoinGeckoClient) FetchQuote(ctx context.Context, id string) (*Quote, error) {
	quotes, err := c.FetchQuotes(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	q, ok := quotes[id]
	if !ok {
		return nil, ErrNoData
	}
	return q, nil
}

func (c *CoinGeckoClient) FetchQuotes(ctx context.Context, ids []string) (map[string]*Quote, error) {
	if len(ids) == 0 {
		return map[string]*Quote{}, nil
	}

	vs := strings.ToLower(c.VsCurrency)
	query := url.Values{
		"ids":                     {strings.Join(ids, ",")},
		"vs_currencies":           {vs},
		"include_24hr_change":     {"true"},
		"include_last_updated_at": {"true"},
	}
	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"x-cg-demo-api-key": c.apiKey}
	}

	var resp map[string]map[string]float64
	if err := c.http.getJSON(ctx, c.BaseURL+"/simple/price", query, headers, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]*Quote, len(resp))
	for id, fields := range resp {
		price, ok := fields[vs]
		if !ok {
			continue
		}
		q := &Quote{
			Symbol:   id,
			Value:    price,
			Currency: strings.ToUpper(vs),
			Source:   c.ID(),
		}
		if pct, ok := fields[vs+"_24h_change"]; ok {
			q.ChangePercent = Float(pct)
			if pct != -100 {
				prev := price / (1 + pct/100)
				q.PreviousClose = Float(prev)
				q.Change = Float(price - prev)
			}
		}
		if ts, ok := fields["last_updated_at"]; ok && ts > 0 {
			q.Timestamp = time.Unix(int64(ts), 0).UTC()
		}
		out[id] = q
	}
	return out, nil
}
