// Package notifier tells the external scraping service which symbols the
// regular providers could not serve.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"newsdesk_backend/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const notifyTimeout = 10 * time.Second

// ScrapeRequest is the payload posted to the scraper
type ScrapeRequest struct {
	// RequestID lets the scraper deduplicate retries and correlate its ingest callback
	RequestID   string               `json:"requestId"`
	Symbol      string               `json:"symbol"`
	Category    models.AssetCategory `json:"category"`
	RequestedAt time.Time            `json:"requestedAt"`
}

// HTTPNotifier posts scrape requests to a configured URL without waiting for the outcome
type HTTPNotifier struct {
	url    string
	client *http.Client
}

// NewHTTPNotifier creates a notifier. An empty url turns Notify into a no-op.
func NewHTTPNotifier(url string) *HTTPNotifier {
	return &HTTPNotifier{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: notifyTimeout},
	}
}

// Enabled reports whether a scraper URL is configured
func (n *HTTPNotifier) Enabled() bool {
	return n.url != ""
}

// Notify fires the request in the background. Failures are logged only.
func (n *HTTPNotifier) Notify(_ context.Context, symbol string, category models.AssetCategory) {
	if !n.Enabled() {
		return
	}
	req := ScrapeRequest{RequestID: uuid.NewString(), Symbol: symbol, Category: category, RequestedAt: time.Now().UTC()}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.send(ctx, req); err != nil {
			log.Warn().Err(err).Str("request_id", req.RequestID).Str("symbol", symbol).Str("category", string(category)).Msg("scraper notify failed")
			return
		}
		log.Debug().Str("request_id", req.RequestID).Str("symbol", symbol).Str("category", string(category)).Msg("scraper notified")
	}()
}

func (n *HTTPNotifier) send(ctx context.Context, payload ScrapeRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal scrape request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach scraper: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("scraper responded with status %d", resp.StatusCode)
	}
	return nil
}
