package marketdata

import (
	"context"
	"errors"
	"testing"

	"newsdesk_backend/models"
	"newsdesk_backend/services/providers"
	"newsdesk_backend/services/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferencesOrder(t *testing.T) {
	ctx := context.Background()
	key := settings.KeyProviderOrderPrefix + "index"

	tests := []struct {
		name   string
		stored string
		getErr error
		want   []string
	}{
		{name: "defaults when unset", want: DefaultOrder(models.CategoryIndex)},
		{name: "override", stored: `["fmp","finnhub"]`, want: []string{"fmp", "finnhub"}},
		{name: "normalised and deduplicated", stored: `[" FMP ","fmp","Finnhub"]`, want: []string{"fmp", "finnhub"}},
		{name: "invalid json", stored: `fmp,finnhub`, want: DefaultOrder(models.CategoryIndex)},
		{name: "empty list", stored: `[]`, want: DefaultOrder(models.CategoryIndex)},
		{name: "read error", getErr: errors.New("connection reset"), want: DefaultOrder(models.CategoryIndex)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemSettings()
			if tt.stored != "" {
				store.values[key] = tt.stored
			}
			store.getErr = tt.getErr

			got := NewPreferences(store, nil).Order(ctx, models.CategoryIndex)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPreferencesDefaultOrderIsCopy(t *testing.T) {
	order := DefaultOrder(models.CategoryCrypto)
	order[0] = "mutated"
	assert.Equal(t, "coingecko", DefaultOrder(models.CategoryCrypto)[0])
}

func TestPreferencesSetOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemSettings()
	registry := providers.NewRegistry(servesValue("fmp", 1), servesValue("finnhub", 1))
	prefs := NewPreferences(store, registry)

	saved, err := prefs.SetOrder(ctx, models.CategoryIndex, []string{"finnhub", "TradingView", "finnhub", "fmp"}, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"finnhub", providers.TradingViewID, "fmp"}, saved)
	assert.Equal(t, saved, prefs.Order(ctx, models.CategoryIndex))

	_, err = prefs.SetOrder(ctx, models.CategoryIndex, []string{"bloomberg"}, "admin@example.com")
	assert.ErrorIs(t, err, providers.ErrUnknownProvider)

	_, err = prefs.SetOrder(ctx, models.CategoryIndex, []string{" "}, "admin@example.com")
	assert.ErrorIs(t, err, ErrEmptyOrder)
}
