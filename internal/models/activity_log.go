package models

import (
	"time"

	"gorm.io/gorm"
)

// ActivityLog is one recorded HTTP request, persisted by the logging
// middleware.
type ActivityLog struct {
	ID           string         `gorm:"primaryKey" json:"id"`
	Method       string         `gorm:"type:varchar(10);not null;index" json:"method"`
	Path         string         `gorm:"type:varchar(255);not null;index" json:"path"`
	UserAgent    string         `json:"user_agent"`
	IPAddress    string         `gorm:"type:varchar(45)" json:"ip_address"`
	RequestBody  string         `json:"request_body,omitempty"`
	QueryParams  string         `json:"query_params,omitempty"`
	StatusCode   int            `gorm:"not null" json:"status_code"`
	ResponseTime int64          `gorm:"not null" json:"response_time"`
	UserID       string         `gorm:"type:varchar(36);index" json:"user_id,omitempty"`
	UserEmail    string         `gorm:"type:varchar(255);index" json:"user_email,omitempty"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}
