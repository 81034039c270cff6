package marketdata

import (
	"testing"
	"time"

	"newsdesk_backend/models"

	"github.com/stretchr/testify/assert"
)

func TestIsFresh(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	assert.False(t, IsFresh(now, time.Time{}, 5*time.Minute), "never fetched")
	assert.True(t, IsFresh(now, now.Add(-4*time.Minute), 5*time.Minute))
	assert.False(t, IsFresh(now, now.Add(-5*time.Minute), 5*time.Minute), "window is exclusive")
	assert.False(t, IsFresh(now, now.Add(-time.Hour), 5*time.Minute))
}

func TestStaleWindow(t *testing.T) {
	assert.Equal(t, 5*time.Minute, StaleWindow(models.CategoryIndex))
	assert.Equal(t, 5*time.Minute, StaleWindow(models.CategoryCrypto))
	assert.Equal(t, 15*time.Minute, StaleWindow(models.CategoryCurrency))
	assert.Equal(t, 30*time.Minute, StaleWindow(models.CategoryCommodity))
	assert.Len(t, StaleWindows(), 4)
}
