package marketdata

import (
	"context"
	"errors"
	"fmt"

	"newsdesk_backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuoteStore persists cached quotes keyed by (category, symbol)
type QuoteStore interface {
	Get(ctx context.Context, category models.AssetCategory, symbol string) (*models.MarketQuote, error)
	List(ctx context.Context, category models.AssetCategory) ([]models.MarketQuote, error)
	Upsert(ctx context.Context, quote *models.MarketQuote) error
}

// AssetReader lists the configured assets of a category
type AssetReader interface {
	ListActive(ctx context.Context, category models.AssetCategory) ([]models.AssetConfig, error)
	FindActive(ctx context.Context, category models.AssetCategory, symbol string) (*models.AssetConfig, error)
}

// quoteUpdateColumns are overwritten on every upsert
var quoteUpdateColumns = []string{
	"value", "previous_close", "change", "change_percent", "high", "low",
	"currency", "exchange", "country", "timezone",
	"last_updated", "as_of", "last_source", "is_stale", "updated_at",
}

// SQLQuoteStore stores quotes in the market_quotes table
type SQLQuoteStore struct {
	db *gorm.DB
}

// NewSQLQuoteStore creates a gorm-backed quote store
func NewSQLQuoteStore(db *gorm.DB) *SQLQuoteStore {
	return &SQLQuoteStore{db: db}
}

// Get returns nil without error when the symbol has never been stored
func (s *SQLQuoteStore) Get(ctx context.Context, category models.AssetCategory, symbol string) (*models.MarketQuote, error) {
	var quote models.MarketQuote
	err := s.db.WithContext(ctx).Where("category = ? AND symbol = ?", category, symbol).First(&quote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quote %s/%s: %w", category, symbol, err)
	}
	return &quote, nil
}

func (s *SQLQuoteStore) List(ctx context.Context, category models.AssetCategory) ([]models.MarketQuote, error) {
	var quotes []models.MarketQuote
	if err := s.db.WithContext(ctx).Where("category = ?", category).Order("symbol ASC").Find(&quotes).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s quotes: %w", category, err)
	}
	return quotes, nil
}

// Upsert relies on the database's native ON CONFLICT handling for atomicity
func (s *SQLQuoteStore) Upsert(ctx context.Context, quote *models.MarketQuote) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns(quoteUpdateColumns),
	}).Create(quote).Error
	if err != nil {
		return fmt.Errorf("failed to upsert quote %s/%s: %w", quote.Category, quote.Symbol, err)
	}
	return nil
}

// SQLAssetReader reads asset_configs rows
type SQLAssetReader struct {
	db *gorm.DB
}

// NewSQLAssetReader creates a gorm-backed asset reader
func NewSQLAssetReader(db *gorm.DB) *SQLAssetReader {
	return &SQLAssetReader{db: db}
}

// ListActive returns active assets ordered by sort order
func (r *SQLAssetReader) ListActive(ctx context.Context, category models.AssetCategory) ([]models.AssetConfig, error) {
	var assets []models.AssetConfig
	err := r.db.WithContext(ctx).
		Where("category = ? AND is_active = ?", category, true).
		Order("sort_order ASC, symbol ASC").
		Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active %s assets: %w", category, err)
	}
	return assets, nil
}

func (r *SQLAssetReader) FindActive(ctx context.Context, category models.AssetCategory, symbol string) (*models.AssetConfig, error) {
	var asset models.AssetConfig
	err := r.db.WithContext(ctx).
		Where("category = ? AND symbol = ? AND is_active = ?", category, symbol, true).
		First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load asset %s/%s: %w", category, symbol, err)
	}
	return &asset, nil
}
