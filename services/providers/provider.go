// Package providers holds the external market data clients and the registry the
// refresh engine resolves provider ids against.
package providers

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// TradingViewID is the scraping-backed provider. It is never fetched synchronously;
// the resolver notifies the external scraper instead.
const TradingViewID = "tradingview"

var (
	// ErrNoData means the provider answered but had no usable quote for the symbol
	ErrNoData = errors.New("provider returned no data")
	// ErrRateLimited means the provider rejected the call because of its quota
	ErrRateLimited = errors.New("provider rate limit reached")
	// ErrUnknownProvider means no client is registered for the id
	ErrUnknownProvider = errors.New("unknown provider")
)

// Quote is the normalized shape every provider returns.
// Optional fields are nil when the provider does not report them.
type Quote struct {
	Symbol        string
	Value         float64
	PreviousClose *float64
	Change        *float64
	ChangePercent *float64
	High          *float64
	Low           *float64
	Currency      string
	Exchange      string
	Country       string
	Timezone      string
	Timestamp     time.Time // time of the quote itself, zero when not reported
	AsOf          time.Time // trading day or publish time of day-granular sources; not a freshness signal
	Source        string
}

// Usable reports whether the quote carries a finite value
func (q *Quote) Usable() bool {
	return q != nil && !math.IsNaN(q.Value) && !math.IsInf(q.Value, 0)
}

//go:generate mockgen -destination=mocks/mock_provider.go -package=mocks . QuoteProvider,BatchQuoteProvider

// QuoteProvider fetches a single-symbol quote
type QuoteProvider interface {
	ID() string
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
}

// BatchQuoteProvider fetches many provider-native ids in one call.
// Missing ids are simply absent from the result map.
type BatchQuoteProvider interface {
	QuoteProvider
	FetchQuotes(ctx context.Context, ids []string) (map[string]*Quote, error)
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// Registry maps provider ids to clients
type Registry struct {
	mu        sync.RWMutex
	providers map[string]QuoteProvider
}

// NewRegistry creates an empty registry
func NewRegistry(providers ...QuoteProvider) *Registry {
	r := &Registry{providers: make(map[string]QuoteProvider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the client for p.ID()
func (r *Registry) Register(p QuoteProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[normalizeID(p.ID())] = p
}

// Get returns the client registered under id
func (r *Registry) Get(id string) (QuoteProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[normalizeID(id)]
	return p, ok
}

// Known reports whether id can appear in a provider order
func (r *Registry) Known(id string) bool {
	if normalizeID(id) == TradingViewID {
		return true
	}
	_, ok := r.Get(id)
	return ok
}

// IDs returns the registered ids in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// NormalizeID lower-cases and trims a provider id
func NormalizeID(id string) string {
	return normalizeID(id)
}
