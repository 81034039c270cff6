package models

import "time"

// Setting is a persisted key/value entry shared by admin tooling and background services
type Setting struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"size:128;uniqueIndex;not null" json:"key"`
	Value       string    `gorm:"type:text" json:"value"`
	Description string    `json:"description"`
	Group       string    `gorm:"size:64;index" json:"group"`
	UpdatedBy   string    `gorm:"size:128" json:"updated_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
