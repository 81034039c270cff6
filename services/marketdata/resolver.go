package marketdata

import (
	"context"
	"fmt"

	"newsdesk_backend/models"
	"newsdesk_backend/services/providers"

	"github.com/rs/zerolog/log"
)

// Resolver tries a category's providers in order until one returns a usable quote
type Resolver struct {
	registry *providers.Registry
	order    ProviderOrder
	notifier Notifier
}

// NewResolver creates a resolver. notifier may be nil.
func NewResolver(registry *providers.Registry, order ProviderOrder, notifier Notifier) *Resolver {
	return &Resolver{registry: registry, order: order, notifier: notifier}
}

// PromoteAffinity moves lastSource to the front when it appears later in order.
// The rest of the order is preserved and the input slice is not modified.
func PromoteAffinity(order []string, lastSource string) []string {
	lastSource = providers.NormalizeID(lastSource)
	if lastSource == "" {
		return order
	}
	for i, id := range order {
		if id != lastSource {
			continue
		}
		if i == 0 {
			return order
		}
		out := make([]string, 0, len(order))
		out = append(out, id)
		out = append(out, order[:i]...)
		return append(out, order[i+1:]...)
	}
	return order
}

// Resolve returns the first usable quote, tagged with the provider id that served it.
// When every provider is exhausted the scraper is notified and ErrNoQuote is returned.
func (r *Resolver) Resolve(ctx context.Context, category models.AssetCategory, symbol, lastSource string) (*providers.Quote, error) {
	order := PromoteAffinity(r.order.Order(ctx, category), lastSource)
	notified := false

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if id == providers.TradingViewID {
			// Scraped results arrive later through the ingest path
			if !notified {
				r.notify(ctx, symbol, category)
				notified = true
			}
			continue
		}

		p, ok := r.registry.Get(id)
		if !ok {
			log.Debug().Str("provider", id).Str("category", string(category)).Msg("provider not registered, skipping")
			continue
		}

		q, err := fetchQuote(ctx, p, symbol)
		if err != nil {
			log.Warn().Err(err).Str("provider", id).Str("symbol", symbol).Msg("provider fetch failed")
			continue
		}
		if !q.Usable() {
			log.Debug().Str("provider", id).Str("symbol", symbol).Msg("provider returned no usable quote")
			continue
		}

		q.Source = id
		if q.Symbol == "" {
			q.Symbol = symbol
		}
		return q, nil
	}

	if !notified {
		r.notify(ctx, symbol, category)
	}
	return nil, fmt.Errorf("%s/%s: %w", category, symbol, ErrNoQuote)
}

func (r *Resolver) notify(ctx context.Context, symbol string, category models.AssetCategory) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(ctx, symbol, category)
}

// fetchQuote isolates a single provider call, including panics inside the client
func fetchQuote(ctx context.Context, p providers.QuoteProvider, symbol string) (q *providers.Quote, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("provider %s panicked: %v", p.ID(), rec)
		}
	}()
	return p.FetchQuote(ctx, symbol)
}
