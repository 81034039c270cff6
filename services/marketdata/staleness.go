package marketdata

import (
	"time"

	"newsdesk_backend/models"
)

// Staleness windows per category. They are independent of the scheduling interval:
// a manual trigger inside the window does not re-fetch data that is still fresh.
const (
	IndexStaleWindow     = 5 * time.Minute
	CryptoStaleWindow    = 5 * time.Minute
	CurrencyStaleWindow  = 15 * time.Minute
	CommodityStaleWindow = 30 * time.Minute
)

// StaleWindow returns the staleness window for category
func StaleWindow(category models.AssetCategory) time.Duration {
	switch category {
	case models.CategoryIndex:
		return IndexStaleWindow
	case models.CategoryCrypto:
		return CryptoStaleWindow
	case models.CategoryCurrency:
		return CurrencyStaleWindow
	case models.CategoryCommodity:
		return CommodityStaleWindow
	}
	return IndexStaleWindow
}

// IsFresh reports whether a quote updated at lastUpdated can be skipped.
// A zero lastUpdated means the symbol was never fetched.
func IsFresh(now, lastUpdated time.Time, window time.Duration) bool {
	if lastUpdated.IsZero() {
		return false
	}
	return now.Sub(lastUpdated) < window
}
