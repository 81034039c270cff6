// Package settings persists key/value configuration that must survive restarts,
// such as the maintenance flag and market refresh intervals.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"newsdesk_backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Well-known keys
const (
	KeyMaintenanceMode       = "maintenance_mode"
	KeyMarketUpdateIntervals = "market_update_intervals"
	KeyProviderOrderPrefix   = "market_provider_order."
)

// Meta describes a setting write
type Meta struct {
	Description string
	Group       string
	UpdatedBy   string
}

// Store reads and writes settings rows
type Store struct {
	db *gorm.DB
}

// NewStore creates a new settings store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the value for key. found is false when the key was never written.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var setting models.Setting
	err := s.db.WithContext(ctx).Where(&models.Setting{Key: key}).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return setting.Value, true, nil
}

// Upsert creates or overwrites the value for key
func (s *Store) Upsert(ctx context.Context, key, value string, meta Meta) error {
	setting := models.Setting{
		Key:         key,
		Value:       value,
		Description: meta.Description,
		Group:       meta.Group,
		UpdatedBy:   meta.UpdatedBy,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "group", "updated_by", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// ParseFlag interprets a stored boolean setting. Empty means false.
func ParseFlag(value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	switch strings.ToLower(value) {
	case "on", "yes", "enabled":
		return true, nil
	case "off", "no", "disabled":
		return false, nil
	}
	return strconv.ParseBool(value)
}
