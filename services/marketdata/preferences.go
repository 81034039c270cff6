package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"newsdesk_backend/models"
	"newsdesk_backend/services/providers"
	"newsdesk_backend/services/settings"

	"github.com/rs/zerolog/log"
)

// DefaultProviderOrder is used when no override has been persisted for a category
var DefaultProviderOrder = map[models.AssetCategory][]string{
	models.CategoryIndex:     {"alphavantage", "finnhub", "marketstack", "twelvedata", "fmp", providers.TradingViewID},
	models.CategoryCrypto:    {"coingecko"},
	models.CategoryCurrency:  {"exchangerate", "alphavantage", "twelvedata", "fmp"},
	models.CategoryCommodity: {"fmp", "twelvedata", "alphavantage", providers.TradingViewID},
}

// ErrEmptyOrder rejects an order without any provider id
var ErrEmptyOrder = errors.New("provider order must not be empty")

// Preferences reads and writes the provider order per category
type Preferences struct {
	settings SettingsStore
	registry *providers.Registry
}

// NewPreferences creates a preference store. registry may be nil to skip id validation.
func NewPreferences(store SettingsStore, registry *providers.Registry) *Preferences {
	return &Preferences{settings: store, registry: registry}
}

func providerOrderKey(category models.AssetCategory) string {
	return settings.KeyProviderOrderPrefix + string(category)
}

// DefaultOrder returns a copy of the built-in order for category
func DefaultOrder(category models.AssetCategory) []string {
	return append([]string(nil), DefaultProviderOrder[category]...)
}

// Order returns the persisted override or the defaults. Read failures fall back to defaults.
func (p *Preferences) Order(ctx context.Context, category models.AssetCategory) []string {
	value, found, err := p.settings.Get(ctx, providerOrderKey(category))
	if err != nil {
		log.Warn().Err(err).Str("category", string(category)).Msg("provider order unavailable, using defaults")
		return DefaultOrder(category)
	}
	if !found {
		return DefaultOrder(category)
	}

	var ids []string
	if err := json.Unmarshal([]byte(value), &ids); err != nil {
		log.Warn().Err(err).Str("category", string(category)).Msg("invalid provider order setting, using defaults")
		return DefaultOrder(category)
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return DefaultOrder(category)
	}
	return ids
}

// SetOrder validates and persists a new order, returning the stored list
func (p *Preferences) SetOrder(ctx context.Context, category models.AssetCategory, ids []string, updatedBy string) ([]string, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrEmptyOrder
	}
	if p.registry != nil {
		for _, id := range ids {
			if !p.registry.Known(id) {
				return nil, fmt.Errorf("%w: %s", providers.ErrUnknownProvider, id)
			}
		}
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider order: %w", err)
	}
	meta := settings.Meta{
		Description: fmt.Sprintf("Provider fallback order for %s quotes", category),
		Group:       "market",
		UpdatedBy:   updatedBy,
	}
	if err := p.settings.Upsert(ctx, providerOrderKey(category), string(data), meta); err != nil {
		return nil, err
	}
	return ids, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = providers.NormalizeID(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
