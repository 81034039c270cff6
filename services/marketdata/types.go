package marketdata

import (
	"context"
	"errors"
	"time"

	"newsdesk_backend/models"
	"newsdesk_backend/services/settings"
)

var (
	// ErrNoQuote means every provider in the order was tried without a usable quote
	ErrNoQuote = errors.New("no provider returned a usable quote")
	// ErrAssetNotFound means the symbol is not an active asset of the category
	ErrAssetNotFound = errors.New("asset not configured or inactive")
	// ErrInvalidQuote means the quote has no finite value
	ErrInvalidQuote = errors.New("quote value is not a finite number")
)

// UpdateResult aggregates one category run. Fresh symbols are counted as skipped,
// never as success or failure.
type UpdateResult struct {
	Category     models.AssetCategory `json:"category"`
	SuccessCount int                  `json:"success_count"`
	FailCount    int                  `json:"fail_count"`
	SkippedCount int                  `json:"skipped_count"`
	StartedAt    time.Time            `json:"started_at"`
	Duration     string               `json:"duration"`
}

// SettingsStore is the persistent key/value collaborator
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Upsert(ctx context.Context, key, value string, meta settings.Meta) error
}

// Notifier asks the external scraper to pick up a symbol
type Notifier interface {
	Notify(ctx context.Context, symbol string, category models.AssetCategory)
}

// Publisher receives every successfully written quote
type Publisher interface {
	PublishQuote(quote models.MarketQuote)
}

// ProviderOrder supplies the ordered provider ids for a category
type ProviderOrder interface {
	Order(ctx context.Context, category models.AssetCategory) []string
}
