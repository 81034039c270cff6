package marketdata

import (
	"testing"
	"time"

	"newsdesk_backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMongoQuoteMappingRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	asOf := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	in := models.MarketQuote{
		Category:      models.CategoryCurrency,
		Symbol:        "EUR/USD",
		Value:         decimal.RequireFromString("1.0921"),
		PreviousClose: decimal.RequireFromString("1.09"),
		Change:        decimal.RequireFromString("0.0021"),
		ChangePercent: decimal.RequireFromString("0.1927"),
		High:          decimal.RequireFromString("1.095"),
		Low:           decimal.RequireFromString("1.088"),
		Currency:      "USD",
		LastUpdated:   now,
		AsOf:          &asOf,
		LastSource:    "exchangerate",
	}

	fields := fromModel(&in, now)
	assert.Equal(t, 1.0921, fields.Value)
	assert.Equal(t, now, fields.UpdatedAt)

	out := mongoQuoteDoc{ID: mongoQuoteID(in.Category, in.Symbol), CreatedAt: now, mongoQuoteFields: fields}.toModel()
	assert.Equal(t, in.Category, out.Category)
	assert.Equal(t, in.Symbol, out.Symbol)
	for name, pair := range map[string][2]decimal.Decimal{
		"value":          {in.Value, out.Value},
		"previous_close": {in.PreviousClose, out.PreviousClose},
		"change":         {in.Change, out.Change},
		"change_percent": {in.ChangePercent, out.ChangePercent},
		"high":           {in.High, out.High},
		"low":            {in.Low, out.Low},
	} {
		assert.True(t, pair[0].Equal(pair[1]), "%s: want %s, got %s", name, pair[0], pair[1])
	}
	assert.Equal(t, now, out.LastUpdated)
	require.NotNil(t, out.AsOf)
	assert.Equal(t, asOf, *out.AsOf)
	assert.Equal(t, "exchangerate", out.LastSource)
	assert.Equal(t, now, out.CreatedAt)
}

func TestMongoQuoteDocumentShape(t *testing.T) {
	assert.Equal(t, "currency:EUR/USD", mongoQuoteID(models.CategoryCurrency, "EUR/USD"))

	q := models.MarketQuote{Category: models.CategoryIndex, Symbol: "SPY", Value: decimal.NewFromInt(510)}
	doc := mongoQuoteDoc{ID: mongoQuoteID(q.Category, q.Symbol), mongoQuoteFields: fromModel(&q, time.Now().UTC())}

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))

	assert.Equal(t, "index:SPY", m["_id"])
	assert.Equal(t, "SPY", m["symbol"], "fields are inlined next to _id")
	assert.Equal(t, 510.0, m["value"])
	assert.NotContains(t, m, "as_of", "missing as_of is omitted")
	assert.NotContains(t, m, "mongoQuoteFields")
}
