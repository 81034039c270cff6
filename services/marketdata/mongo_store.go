package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsdesk_backend/models"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoQuotesCollection holds one document per (category, symbol)
const MongoQuotesCollection = "market_quotes"

// MongoQuoteStore stores quotes as documents keyed by "category:symbol"
type MongoQuoteStore struct {
	coll *mongo.Collection
}

type mongoQuoteFields struct {
	Category      models.AssetCategory `bson:"category"`
	Symbol        string               `bson:"symbol"`
	Value         float64              `bson:"value"`
	PreviousClose float64              `bson:"previous_close"`
	Change        float64              `bson:"change"`
	ChangePercent float64              `bson:"change_percent"`
	High          float64              `bson:"high"`
	Low           float64              `bson:"low"`
	Currency      string               `bson:"currency"`
	Exchange      string               `bson:"exchange,omitempty"`
	Country       string               `bson:"country,omitempty"`
	Timezone      string               `bson:"timezone,omitempty"`
	LastUpdated   time.Time            `bson:"last_updated"`
	AsOf          *time.Time           `bson:"as_of,omitempty"`
	LastSource    string               `bson:"last_source"`
	IsStale       bool                 `bson:"is_stale"`
	UpdatedAt     time.Time            `bson:"updated_at"`
}

type mongoQuoteDoc struct {
	ID               string    `bson:"_id"`
	CreatedAt        time.Time `bson:"created_at"`
	mongoQuoteFields `bson:",inline"`
}

// ConnectMongo opens a MongoDB connection and verifies it with a ping
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Info().Msg("connected to MongoDB")
	return client, nil
}

// NewMongoQuoteStore creates a quote store on database db
func NewMongoQuoteStore(db *mongo.Database) *MongoQuoteStore {
	return &MongoQuoteStore{coll: db.Collection(MongoQuotesCollection)}
}

func mongoQuoteID(category models.AssetCategory, symbol string) string {
	return string(category) + ":" + symbol
}

func (s *MongoQuoteStore) Get(ctx context.Context, category models.AssetCategory, symbol string) (*models.MarketQuote, error) {
	var doc mongoQuoteDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": mongoQuoteID(category, symbol)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quote %s/%s: %w", category, symbol, err)
	}
	quote := doc.toModel()
	return &quote, nil
}

func (s *MongoQuoteStore) List(ctx context.Context, category models.AssetCategory) ([]models.MarketQuote, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"category": category}, options.Find().SetSort(bson.D{{Key: "symbol", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s quotes: %w", category, err)
	}
	defer cursor.Close(ctx)

	var docs []mongoQuoteDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode %s quotes: %w", category, err)
	}
	quotes := make([]models.MarketQuote, 0, len(docs))
	for _, doc := range docs {
		quotes = append(quotes, doc.toModel())
	}
	return quotes, nil
}

// Upsert uses UpdateOne with upsert so create and update are a single atomic write
func (s *MongoQuoteStore) Upsert(ctx context.Context, quote *models.MarketQuote) error {
	now := time.Now().UTC()
	fields := fromModel(quote, now)
	update := bson.M{
		"$set":         fields,
		"$setOnInsert": bson.M{"created_at": now},
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": mongoQuoteID(quote.Category, quote.Symbol)}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert quote %s/%s: %w", quote.Category, quote.Symbol, err)
	}
	return nil
}

func fromModel(q *models.MarketQuote, now time.Time) mongoQuoteFields {
	return mongoQuoteFields{
		Category:      q.Category,
		Symbol:        q.Symbol,
		Value:         q.Value.InexactFloat64(),
		PreviousClose: q.PreviousClose.InexactFloat64(),
		Change:        q.Change.InexactFloat64(),
		ChangePercent: q.ChangePercent.InexactFloat64(),
		High:          q.High.InexactFloat64(),
		Low:           q.Low.InexactFloat64(),
		Currency:      q.Currency,
		Exchange:      q.Exchange,
		Country:       q.Country,
		Timezone:      q.Timezone,
		LastUpdated:   q.LastUpdated,
		AsOf:          q.AsOf,
		LastSource:    q.LastSource,
		IsStale:       q.IsStale,
		UpdatedAt:     now,
	}
}

func (d mongoQuoteDoc) toModel() models.MarketQuote {
	return models.MarketQuote{
		Category:      d.Category,
		Symbol:        d.Symbol,
		Value:         decimal.NewFromFloat(d.Value),
		PreviousClose: decimal.NewFromFloat(d.PreviousClose),
		Change:        decimal.NewFromFloat(d.Change),
		ChangePercent: decimal.NewFromFloat(d.ChangePercent),
		High:          decimal.NewFromFloat(d.High),
		Low:           decimal.NewFromFloat(d.Low),
		Currency:      d.Currency,
		Exchange:      d.Exchange,
		Country:       d.Country,
		Timezone:      d.Timezone,
		LastUpdated:   d.LastUpdated,
		AsOf:          d.AsOf,
		LastSource:    d.LastSource,
		IsStale:       d.IsStale,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}
