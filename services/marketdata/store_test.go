package marketdata

import (
	"context"
	"testing"
	"time"

	"newsdesk_backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLQuoteStoreUpsertIsSingleRow(t *testing.T) {
	db := newTestDB(t)
	store := NewSQLQuoteStore(db)
	ctx := context.Background()
	clock := newFixedClock()

	missing, err := store.Get(ctx, models.CategoryIndex, "SPX")
	require.NoError(t, err)
	assert.Nil(t, missing)

	first := models.MarketQuote{Category: models.CategoryIndex, Symbol: "SPX", Value: decimal.NewFromInt(100), LastUpdated: clock.Now(), LastSource: "fmp"}
	require.NoError(t, store.Upsert(ctx, &first))

	clock.Advance(time.Minute)
	second := models.MarketQuote{Category: models.CategoryIndex, Symbol: "SPX", Value: decimal.NewFromInt(101), LastUpdated: clock.Now(), LastSource: "finnhub"}
	require.NoError(t, store.Upsert(ctx, &second))

	var count int64
	require.NoError(t, db.Model(&models.MarketQuote{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := store.Get(ctx, models.CategoryIndex, "SPX")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, decimal.NewFromInt(101).Equal(got.Value))
	assert.Equal(t, "finnhub", got.LastSource)
	assert.True(t, clock.Now().Equal(got.LastUpdated))
}

func TestSQLQuoteStoreSeparatesCategories(t *testing.T) {
	db := newTestDB(t)
	store := NewSQLQuoteStore(db)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &models.MarketQuote{Category: models.CategoryIndex, Symbol: "GOLD", Value: decimal.NewFromInt(1)}))
	require.NoError(t, store.Upsert(ctx, &models.MarketQuote{Category: models.CategoryCommodity, Symbol: "GOLD", Value: decimal.NewFromInt(2)}))

	quotes, err := store.List(ctx, models.CategoryCommodity)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.True(t, decimal.NewFromInt(2).Equal(quotes[0].Value))
}

func TestSQLAssetReader(t *testing.T) {
	db := newTestDB(t)
	inactive := activeAsset(models.CategoryIndex, "FTSE", 0)
	seedAssets(t, db,
		activeAsset(models.CategoryIndex, "SPX", 2),
		activeAsset(models.CategoryIndex, "DJI", 1),
		inactive,
		activeAsset(models.CategoryCrypto, "BTC", 1),
	)
	require.NoError(t, db.Model(&models.AssetConfig{}).Where("symbol = ?", "FTSE").Update("is_active", false).Error)

	reader := NewSQLAssetReader(db)
	ctx := context.Background()

	assets, err := reader.ListActive(ctx, models.CategoryIndex)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "DJI", assets[0].Symbol)
	assert.Equal(t, "SPX", assets[1].Symbol)

	_, err = reader.FindActive(ctx, models.CategoryIndex, "FTSE")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	asset, err := reader.FindActive(ctx, models.CategoryCrypto, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "BTC", asset.Symbol)
}
