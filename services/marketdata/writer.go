package marketdata

import (
	"context"
	"time"

	"newsdesk_backend/models"
	"newsdesk_backend/services/providers"

	"github.com/shopspring/decimal"
)

// QuoteWriter turns a provider quote into a stored MarketQuote, filling in
// whatever the provider left out
type QuoteWriter struct {
	store     QuoteStore
	clock     Clock
	publisher Publisher
}

// NewQuoteWriter creates a writer. publisher may be nil.
func NewQuoteWriter(store QuoteStore, clock Clock, publisher Publisher) *QuoteWriter {
	if clock == nil {
		clock = SystemClock()
	}
	return &QuoteWriter{store: store, clock: clock, publisher: publisher}
}

// BuildQuote applies the derivation rules without writing anything
func (w *QuoteWriter) BuildQuote(asset models.AssetConfig, q *providers.Quote) models.MarketQuote {
	value := q.Value

	change := 0.0
	if q.Change != nil {
		change = *q.Change
	}

	var previousClose float64
	if q.PreviousClose != nil {
		previousClose = *q.PreviousClose
		if q.Change == nil {
			change = value - previousClose
		}
	} else {
		previousClose = value - change
	}

	changePercent := 0.0
	switch {
	case q.ChangePercent != nil:
		changePercent = *q.ChangePercent
	case previousClose != 0:
		changePercent = change / previousClose * 100
	}

	high, low := value, value
	if q.High != nil {
		high = *q.High
	}
	if q.Low != nil {
		low = *q.Low
	}

	// Day-granular sources report AsOf only, so their quotes age from the fetch
	lastUpdated := q.Timestamp
	if lastUpdated.IsZero() {
		lastUpdated = w.clock.Now()
	}
	var asOf *time.Time
	if !q.AsOf.IsZero() {
		t := q.AsOf.UTC()
		asOf = &t
	}

	source := providers.NormalizeID(q.Source)
	if source == "" {
		source = "unknown"
	}

	return models.MarketQuote{
		Category:      asset.Category,
		Symbol:        asset.Symbol,
		Value:         decimal.NewFromFloat(value),
		PreviousClose: decimal.NewFromFloat(previousClose),
		Change:        decimal.NewFromFloat(change),
		ChangePercent: decimal.NewFromFloat(changePercent).Round(4),
		High:          decimal.NewFromFloat(high),
		Low:           decimal.NewFromFloat(low),
		Currency:      firstNonEmpty(q.Currency, asset.Currency),
		Exchange:      firstNonEmpty(q.Exchange, asset.Exchange),
		Country:       firstNonEmpty(q.Country, asset.Country),
		Timezone:      firstNonEmpty(q.Timezone, asset.Timezone),
		LastUpdated:   lastUpdated,
		AsOf:          asOf,
		LastSource:    source,
		IsStale:       false,
	}
}

// Upsert writes the quote for asset. Only storage errors are returned.
func (w *QuoteWriter) Upsert(ctx context.Context, asset models.AssetConfig, q *providers.Quote) (*models.MarketQuote, error) {
	quote := w.BuildQuote(asset, q)
	if err := w.store.Upsert(ctx, &quote); err != nil {
		return nil, err
	}
	if w.publisher != nil {
		w.publisher.PublishQuote(quote)
	}
	return &quote, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
