package models

import (
	"time"

	"gorm.io/gorm"
)

// EventType represents the kind of metered event
type EventType string

const (
	EventLabelsGenerated EventType = "labels_generated"
	EventBatchExport     EventType = "batch_export"
	EventPrintSheet      EventType = "print_sheet"
)

// UsageRecord tracks per-workspace daily counters, the seam the billing
// subsystem reads for plan entitlement checks.
type UsageRecord struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	WorkspaceID string         `gorm:"type:varchar(191);not null;index" json:"workspace_id"`
	EventType   EventType      `gorm:"type:varchar(50);not null;index" json:"event_type"`
	Date        time.Time      `gorm:"type:date;not null;index" json:"date"`
	Count       int64          `gorm:"not null;default:0" json:"count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}
