package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"newsdesk_backend/models"
	"newsdesk_backend/services/providers"
	"newsdesk_backend/services/settings"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type staticOrder map[models.AssetCategory][]string

func (o staticOrder) Order(_ context.Context, category models.AssetCategory) []string {
	return append([]string(nil), o[category]...)
}

type countingNotifier struct {
	mu      sync.Mutex
	symbols []string
}

func (n *countingNotifier) Notify(_ context.Context, symbol string, _ models.AssetCategory) {
	n.mu.Lock()
	n.symbols = append(n.symbols, symbol)
	n.mu.Unlock()
}

func (n *countingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.symbols)
}

type memSettings struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
}

func newMemSettings() *memSettings {
	return &memSettings{values: make(map[string]string)}
}

func (s *memSettings) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memSettings) Upsert(_ context.Context, key, value string, _ settings.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// fakeProvider serves quotes from a function and records every symbol requested
type fakeProvider struct {
	id    string
	fetch func(symbol string) (*providers.Quote, error)

	mu    sync.Mutex
	calls []string
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) FetchQuote(_ context.Context, symbol string) (*providers.Quote, error) {
	p.mu.Lock()
	p.calls = append(p.calls, symbol)
	p.mu.Unlock()
	return p.fetch(symbol)
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeBatchProvider struct {
	fakeProvider
	batch func(ids []string) (map[string]*providers.Quote, error)

	batchCalls [][]string
}

func (p *fakeBatchProvider) FetchQuotes(_ context.Context, ids []string) (map[string]*providers.Quote, error) {
	p.mu.Lock()
	p.batchCalls = append(p.batchCalls, append([]string(nil), ids...))
	p.mu.Unlock()
	return p.batch(ids)
}

func servesValue(id string, value float64) *fakeProvider {
	return &fakeProvider{id: id, fetch: func(symbol string) (*providers.Quote, error) {
		return &providers.Quote{Symbol: symbol, Value: value}, nil
	}}
}

func fails(id string) *fakeProvider {
	return &fakeProvider{id: id, fetch: func(string) (*providers.Quote, error) {
		return nil, errors.New("upstream unavailable")
	}}
}

// failingQuoteStore wraps a store and rejects writes for one symbol
type failingQuoteStore struct {
	QuoteStore
	symbol string
}

func (s *failingQuoteStore) Upsert(ctx context.Context, quote *models.MarketQuote) error {
	if quote.Symbol == s.symbol {
		return errors.New("disk full")
	}
	return s.QuoteStore.Upsert(ctx, quote)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.MigrateMarketModels(db))
	return db
}

func seedAssets(t *testing.T, db *gorm.DB, assets ...models.AssetConfig) {
	t.Helper()
	for i := range assets {
		require.NoError(t, db.Create(&assets[i]).Error)
	}
}

func activeAsset(category models.AssetCategory, symbol string, sortOrder int) models.AssetConfig {
	return models.AssetConfig{Category: category, Symbol: symbol, IsActive: true, SortOrder: sortOrder, Currency: "USD"}
}
