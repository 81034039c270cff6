package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "newsdesk-market/1.0"
	maxErrorBody     = 256
)

// httpClient is a small wrapper around http.Client shared by the provider clients
type httpClient struct {
	http      *http.Client
	userAgent string
}

func newHTTPClient(timeout time.Duration) *httpClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	return &httpClient{
		http:      &http.Client{Timeout: timeout, Transport: transport},
		userAgent: defaultUserAgent,
	}
}

// getJSON issues a GET and decodes the JSON body into out
func (c *httpClient) getJSON(ctx context.Context, endpoint string, query url.Values, headers map[string]string, out any) error {
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseNumber parses numeric strings such as "123.45" or "0.52%"
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func optionalNumber(s string) *float64 {
	if v, ok := parseNumber(s); ok {
		return &v
	}
	return nil
}

// nonZero returns nil for zero values; several APIs report 0 for missing fields
func nonZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

// SplitPair splits a currency pair such as "EUR/USD", "EUR-USD" or "EURUSD"
func SplitPair(symbol string) (string, string, bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"/", "-", "_"} {
		if parts := strings.Split(s, sep); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1], true
		}
	}
	if len(s) == 6 {
		return s[:3], s[3:], true
	}
	return "", "", false
}
