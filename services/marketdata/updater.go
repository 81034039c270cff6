package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"newsdesk_backend/models"
	"newsdesk_backend/services/providers"

	"github.com/rs/zerolog/log"
)

// Updater refreshes the cached quotes of one category at a time:
// load active assets, skip fresh ones, resolve the rest, persist.
type Updater struct {
	assets   AssetReader
	quotes   QuoteStore
	resolver *Resolver
	writer   *QuoteWriter
	order    ProviderOrder
	registry *providers.Registry
	clock    Clock
}

// Deps lists the collaborators of an Updater
type Deps struct {
	Assets   AssetReader
	Quotes   QuoteStore
	Registry *providers.Registry
	Order    ProviderOrder
	Notifier Notifier
	Clock    Clock
	// Publisher receives every written quote. Optional.
	Publisher Publisher
}

// NewUpdater wires the resolver and writer from deps
func NewUpdater(deps Deps) *Updater {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}
	return &Updater{
		assets:   deps.Assets,
		quotes:   deps.Quotes,
		resolver: NewResolver(deps.Registry, deps.Order, deps.Notifier),
		writer:   NewQuoteWriter(deps.Quotes, clock, deps.Publisher),
		order:    deps.Order,
		registry: deps.Registry,
		clock:    clock,
	}
}

// UpdateIndices refreshes stock indices
func (u *Updater) UpdateIndices(ctx context.Context) (UpdateResult, error) {
	return u.UpdateCategory(ctx, models.CategoryIndex)
}

// UpdateCrypto refreshes cryptocurrencies with a single batch request
func (u *Updater) UpdateCrypto(ctx context.Context) (UpdateResult, error) {
	return u.UpdateCategory(ctx, models.CategoryCrypto)
}

// UpdateCurrencies refreshes currency pairs
func (u *Updater) UpdateCurrencies(ctx context.Context) (UpdateResult, error) {
	return u.UpdateCategory(ctx, models.CategoryCurrency)
}

// UpdateCommodities refreshes commodities
func (u *Updater) UpdateCommodities(ctx context.Context) (UpdateResult, error) {
	return u.UpdateCategory(ctx, models.CategoryCommodity)
}

// UpdateCategory runs one refresh pass. The error is only set when the pass could not
// start (asset or quote snapshot unreadable) or the context was cancelled; per-symbol
// failures are counted in the result.
func (u *Updater) UpdateCategory(ctx context.Context, category models.AssetCategory) (result UpdateResult, err error) {
	start := u.clock.Now()
	result = UpdateResult{Category: category, StartedAt: start}
	defer func() {
		result.Duration = u.clock.Now().Sub(start).String()
	}()

	assets, err := u.assets.ListActive(ctx, category)
	if err != nil {
		return result, err
	}
	snapshot, err := u.snapshot(ctx, category)
	if err != nil {
		return result, err
	}

	window := StaleWindow(category)
	stale := make([]models.AssetConfig, 0, len(assets))
	for _, asset := range assets {
		if prior, ok := snapshot[asset.Symbol]; ok && IsFresh(u.clock.Now(), prior.LastUpdated, window) {
			result.SkippedCount++
			continue
		}
		stale = append(stale, asset)
	}

	if category == models.CategoryCrypto {
		err = u.refreshBatch(ctx, category, stale, &result)
	} else {
		err = u.refreshEach(ctx, category, stale, snapshot, &result)
	}

	log.Info().
		Str("category", string(category)).
		Int("success", result.SuccessCount).
		Int("failed", result.FailCount).
		Int("skipped", result.SkippedCount).
		Msg("category update finished")
	return result, err
}

func (u *Updater) snapshot(ctx context.Context, category models.AssetCategory) (map[string]models.MarketQuote, error) {
	quotes, err := u.quotes.List(ctx, category)
	if err != nil {
		return nil, err
	}
	bySymbol := make(map[string]models.MarketQuote, len(quotes))
	for _, q := range quotes {
		bySymbol[q.Symbol] = q
	}
	return bySymbol, nil
}

// refreshEach resolves symbols one after another so rate-limited providers are never burst
func (u *Updater) refreshEach(ctx context.Context, category models.AssetCategory, assets []models.AssetConfig, snapshot map[string]models.MarketQuote, result *UpdateResult) error {
	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastSource := ""
		if prior, ok := snapshot[asset.Symbol]; ok {
			lastSource = prior.LastSource
		}
		if err := u.refreshSymbol(ctx, asset, lastSource); err != nil {
			result.FailCount++
			log.Warn().Err(err).Str("category", string(category)).Str("symbol", asset.Symbol).Msg("symbol refresh failed")
			continue
		}
		result.SuccessCount++
	}
	return nil
}

func (u *Updater) refreshSymbol(ctx context.Context, asset models.AssetConfig, lastSource string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while refreshing %s: %v", asset.Symbol, rec)
		}
	}()

	q, err := u.resolver.Resolve(ctx, asset.Category, asset.Symbol, lastSource)
	if err != nil {
		return err
	}
	_, err = u.writer.Upsert(ctx, asset, q)
	return err
}

// refreshBatch fetches every stale coin in one call and maps the results back to symbols.
// Batch providers are tried in preference order only when a whole batch call fails.
func (u *Updater) refreshBatch(ctx context.Context, category models.AssetCategory, assets []models.AssetConfig, result *UpdateResult) error {
	if len(assets) == 0 {
		return nil
	}

	ids := make([]string, 0, len(assets))
	seen := make(map[string]struct{}, len(assets))
	for _, asset := range assets {
		id := coinID(asset)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	quotes, source := u.fetchBatch(ctx, category, ids)
	if quotes == nil {
		result.FailCount += len(assets)
		return ctx.Err()
	}

	for _, asset := range assets {
		q, ok := quotes[coinID(asset)]
		if !ok || !q.Usable() {
			result.FailCount++
			log.Warn().Str("category", string(category)).Str("symbol", asset.Symbol).Str("provider", source).Msg("no quote in batch response")
			continue
		}
		mapped := *q
		mapped.Symbol = asset.Symbol
		mapped.Source = source
		if err := u.writeSafely(ctx, asset, &mapped); err != nil {
			result.FailCount++
			log.Warn().Err(err).Str("category", string(category)).Str("symbol", asset.Symbol).Msg("quote write failed")
			continue
		}
		result.SuccessCount++
	}
	return nil
}

func (u *Updater) fetchBatch(ctx context.Context, category models.AssetCategory, ids []string) (map[string]*providers.Quote, string) {
	for _, id := range u.order.Order(ctx, category) {
		if ctx.Err() != nil {
			return nil, ""
		}
		p, ok := u.registry.Get(id)
		if !ok {
			continue
		}
		bp, ok := p.(providers.BatchQuoteProvider)
		if !ok {
			continue
		}
		quotes, err := fetchBatchSafely(ctx, bp, ids)
		if err != nil {
			log.Warn().Err(err).Str("provider", id).Int("ids", len(ids)).Msg("batch fetch failed")
			continue
		}
		return quotes, id
	}
	log.Warn().Str("category", string(category)).Msg("no batch provider could serve the request")
	return nil, ""
}

func fetchBatchSafely(ctx context.Context, p providers.BatchQuoteProvider, ids []string) (quotes map[string]*providers.Quote, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("provider %s panicked: %v", p.ID(), rec)
		}
	}()
	quotes, err = p.FetchQuotes(ctx, ids)
	if err == nil && quotes == nil {
		quotes = map[string]*providers.Quote{}
	}
	return quotes, err
}

func (u *Updater) writeSafely(ctx context.Context, asset models.AssetConfig, q *providers.Quote) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while writing %s: %v", asset.Symbol, rec)
		}
	}()
	_, err = u.writer.Upsert(ctx, asset, q)
	return err
}

// coinID is the provider-native id of a crypto asset
func coinID(asset models.AssetConfig) string {
	if asset.CoinProviderID != "" {
		return asset.CoinProviderID
	}
	return strings.ToLower(asset.Symbol)
}

// Ingest writes a quote delivered out-of-band by the scraper
func (u *Updater) Ingest(ctx context.Context, category models.AssetCategory, symbol string, q *providers.Quote) (*models.MarketQuote, error) {
	if !q.Usable() {
		return nil, ErrInvalidQuote
	}
	asset, err := u.assets.FindActive(ctx, category, symbol)
	if err != nil {
		return nil, err
	}
	if q.Source == "" {
		q.Source = providers.TradingViewID
	}
	return u.writer.Upsert(ctx, *asset, q)
}

// Quotes returns the cached quotes of category with IsStale derived from their age
func (u *Updater) Quotes(ctx context.Context, category models.AssetCategory) ([]models.MarketQuote, error) {
	quotes, err := u.quotes.List(ctx, category)
	if err != nil {
		return nil, err
	}
	now := u.clock.Now()
	window := StaleWindow(category)
	for i := range quotes {
		quotes[i].IsStale = quotes[i].IsStale || !IsFresh(now, quotes[i].LastUpdated, window)
	}
	return quotes, nil
}

// StaleWindows exposes the windows for status reporting
func StaleWindows() map[models.AssetCategory]time.Duration {
	out := make(map[models.AssetCategory]time.Duration, len(models.AllCategories))
	for _, c := range models.AllCategories {
		out[c] = StaleWindow(c)
	}
	return out
}
