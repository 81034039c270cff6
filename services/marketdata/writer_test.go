package marketdata

import (
	"context"
	"sync"
	"testing"
	"time"

	"newsdesk_backend/models"
	"newsdesk_backend/services/providers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	quotes []models.MarketQuote
}

func (p *recordingPublisher) PublishQuote(q models.MarketQuote) {
	p.mu.Lock()
	p.quotes = append(p.quotes, q)
	p.mu.Unlock()
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestBuildQuoteDerivesMissingFields(t *testing.T) {
	clock := newFixedClock()
	w := NewQuoteWriter(nil, clock, nil)
	asset := models.AssetConfig{Category: models.CategoryIndex, Symbol: "SPX", Currency: "USD", Exchange: "CBOE", Country: "US"}

	q := w.BuildQuote(asset, &providers.Quote{Value: 100, Change: providers.Float(5), Source: "finnhub"})

	assertDecimal(t, "100", q.Value)
	assertDecimal(t, "95", q.PreviousClose)
	assertDecimal(t, "5", q.Change)
	assertDecimal(t, "5.2632", q.ChangePercent)
	assertDecimal(t, "100", q.High)
	assertDecimal(t, "100", q.Low)
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, "CBOE", q.Exchange)
	assert.Equal(t, "US", q.Country)
	assert.Equal(t, clock.Now(), q.LastUpdated)
	assert.Equal(t, "finnhub", q.LastSource)
	assert.False(t, q.IsStale)
}

func TestBuildQuoteWithoutChange(t *testing.T) {
	w := NewQuoteWriter(nil, newFixedClock(), nil)

	q := w.BuildQuote(models.AssetConfig{Symbol: "GOLD"}, &providers.Quote{Value: 2300})

	assertDecimal(t, "0", q.Change)
	assertDecimal(t, "2300", q.PreviousClose)
	assertDecimal(t, "0", q.ChangePercent)
	assert.Equal(t, "unknown", q.LastSource)
}

func TestBuildQuoteDerivesChangeFromPreviousClose(t *testing.T) {
	w := NewQuoteWriter(nil, newFixedClock(), nil)

	q := w.BuildQuote(models.AssetConfig{Symbol: "DJI"}, &providers.Quote{Value: 110, PreviousClose: providers.Float(100)})

	assertDecimal(t, "100", q.PreviousClose)
	assertDecimal(t, "10", q.Change)
	assertDecimal(t, "10", q.ChangePercent)
}

func TestBuildQuoteKeepsProviderFields(t *testing.T) {
	w := NewQuoteWriter(nil, newFixedClock(), nil)
	ts := time.Date(2024, 3, 4, 13, 0, 0, 0, time.UTC)

	q := w.BuildQuote(models.AssetConfig{Symbol: "EUR/USD", Currency: "USD"}, &providers.Quote{
		Value:         1.0921,
		PreviousClose: providers.Float(1.09),
		Change:        providers.Float(0.0021),
		ChangePercent: providers.Float(0.19),
		High:          providers.Float(1.095),
		Low:           providers.Float(1.088),
		Currency:      "USD",
		Timestamp:     ts,
		Source:        " AlphaVantage ",
	})

	assertDecimal(t, "1.09", q.PreviousClose)
	assertDecimal(t, "0.0021", q.Change)
	assertDecimal(t, "0.19", q.ChangePercent)
	assertDecimal(t, "1.095", q.High)
	assertDecimal(t, "1.088", q.Low)
	assert.Equal(t, ts, q.LastUpdated)
	assert.Equal(t, "alphavantage", q.LastSource)
}

func TestQuoteWriterUpsertPublishes(t *testing.T) {
	db := newTestDB(t)
	publisher := &recordingPublisher{}
	w := NewQuoteWriter(NewSQLQuoteStore(db), newFixedClock(), publisher)
	asset := activeAsset(models.CategoryIndex, "SPX", 1)

	stored, err := w.Upsert(context.Background(), asset, &providers.Quote{Value: 5000, Source: "fmp"})
	require.NoError(t, err)
	assert.Equal(t, "SPX", stored.Symbol)

	require.Len(t, publisher.quotes, 1)
	assert.Equal(t, "fmp", publisher.quotes[0].LastSource)
}
