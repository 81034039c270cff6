package models

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// AssetCategory identifies one of the independently refreshed market data classes
type AssetCategory string

const (
	CategoryIndex     AssetCategory = "index"
	CategoryCrypto    AssetCategory = "crypto"
	CategoryCurrency  AssetCategory = "currency"
	CategoryCommodity AssetCategory = "commodity"
)

// AllCategories lists every category in scheduling order
var AllCategories = []AssetCategory{CategoryIndex, CategoryCrypto, CategoryCurrency, CategoryCommodity}

// Valid reports whether c is one of AllCategories
func (c AssetCategory) Valid() bool {
	switch c {
	case CategoryIndex, CategoryCrypto, CategoryCurrency, CategoryCommodity:
		return true
	}
	return false
}

// ParseCategory converts a route or settings value into a category
func ParseCategory(s string) (AssetCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "index", "indices":
		return CategoryIndex, nil
	case "crypto", "cryptocurrency", "cryptocurrencies":
		return CategoryCrypto, nil
	case "currency", "currencies", "fx":
		return CategoryCurrency, nil
	case "commodity", "commodities":
		return CategoryCommodity, nil
	}
	return "", fmt.Errorf("unknown asset category %q", s)
}

// AssetConfig is one configured symbol. Edited by admins, read-only for the refresh engine.
type AssetConfig struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	Category       AssetCategory `gorm:"size:16;not null;uniqueIndex:idx_asset_category_symbol" json:"category" yaml:"category"`
	Symbol         string        `gorm:"size:64;not null;uniqueIndex:idx_asset_category_symbol" json:"symbol" yaml:"symbol"`
	Name           string        `json:"name" yaml:"name"`
	IsActive       bool          `gorm:"index" json:"is_active" yaml:"is_active"`
	SortOrder      int           `json:"sort_order" yaml:"sort_order"`
	Exchange       string        `json:"exchange,omitempty" yaml:"exchange"`
	Country        string        `json:"country,omitempty" yaml:"country"`
	Currency       string        `json:"currency,omitempty" yaml:"currency"`
	Timezone       string        `json:"timezone,omitempty" yaml:"timezone"`
	CoinProviderID string        `json:"coin_provider_id,omitempty" yaml:"coin_provider_id"` // crypto only
	BaseCurrency   string        `json:"base_currency,omitempty" yaml:"base_currency"`       // currency pairs only
	QuoteCurrency  string        `json:"quote_currency,omitempty" yaml:"quote_currency"`     // currency pairs only
	Unit           string        `json:"unit,omitempty" yaml:"unit"`                         // commodities only
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// MarketQuote is the cached live value for a symbol. Only the refresh engine writes it.
type MarketQuote struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Category      AssetCategory   `gorm:"size:16;not null;uniqueIndex:idx_quote_category_symbol" json:"category"`
	Symbol        string          `gorm:"size:64;not null;uniqueIndex:idx_quote_category_symbol" json:"symbol"`
	Value         decimal.Decimal `gorm:"type:decimal(24,8)" json:"value"`
	PreviousClose decimal.Decimal `gorm:"type:decimal(24,8)" json:"previous_close"`
	Change        decimal.Decimal `gorm:"type:decimal(24,8)" json:"change"`
	ChangePercent decimal.Decimal `gorm:"type:decimal(12,4)" json:"change_percent"`
	High          decimal.Decimal `gorm:"type:decimal(24,8)" json:"high"`
	Low           decimal.Decimal `gorm:"type:decimal(24,8)" json:"low"`
	Currency      string          `json:"currency"`
	Exchange      string          `json:"exchange,omitempty"`
	Country       string          `json:"country,omitempty"`
	Timezone      string          `json:"timezone,omitempty"`
	LastUpdated   time.Time       `gorm:"index" json:"last_updated"`
	AsOf          *time.Time      `json:"as_of,omitempty"` // provider's own data date when it only publishes daily
	LastSource    string          `gorm:"size:32" json:"last_source"`
	IsStale       bool            `json:"is_stale"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MigrateMarketModels runs database migrations for market data models
func MigrateMarketModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&AssetConfig{},
		&MarketQuote{},
		&Setting{},
	)
}

type assetSeedFile struct {
	Assets []AssetConfig `yaml:"assets"`
}

// SeedAssetConfigs inserts asset configs from a YAML file when they are not configured yet.
// Existing rows are left untouched so admin edits survive restarts.
func SeedAssetConfigs(db *gorm.DB, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read asset seed file: %w", err)
	}

	var seed assetSeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse asset seed file: %w", err)
	}

	created := 0
	for _, asset := range seed.Assets {
		category, err := ParseCategory(string(asset.Category))
		if err != nil {
			return created, err
		}
		asset.Category = category
		asset.Symbol = strings.TrimSpace(asset.Symbol)
		if asset.Symbol == "" {
			return created, fmt.Errorf("asset seed entry without symbol in category %s", category)
		}

		var existing AssetConfig
		err = db.Where("category = ? AND symbol = ?", asset.Category, asset.Symbol).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return created, err
		}
		if err := db.Create(&asset).Error; err != nil {
			return created, fmt.Errorf("failed to create asset %s/%s: %w", asset.Category, asset.Symbol, err)
		}
		created++
	}
	return created, nil
}
