package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/eyepatch-3097/labelz-deploy/internal"
	"github.com/eyepatch-3097/labelz-deploy/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageService maintains the per-workspace daily counters that billing and
// plan entitlement checks read.
type UsageService struct{}

func NewUsageService() *UsageService {
	return &UsageService{}
}

// Record adds n to today's counter for the event. Metering failures are
// logged, never propagated: a billing hiccup must not fail label generation.
func (s *UsageService) Record(workspaceID string, eventType models.EventType, n int64) {
	if err := s.increment(workspaceID, eventType, today(), n); err != nil {
		fmt.Printf("Warning: failed to record usage %s for workspace %s: %v\n", eventType, workspaceID, err)
	}
}

func (s *UsageService) increment(workspaceID string, eventType models.EventType, date time.Time, n int64) error {
	return internal.DB.Transaction(func(tx *gorm.DB) error {
		var record models.UsageRecord
		err := tx.Where("workspace_id = ? AND event_type = ? AND date = ?", workspaceID, eventType, date).
			First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			record = models.UsageRecord{
				ID:          uuid.New().String(),
				WorkspaceID: workspaceID,
				EventType:   eventType,
				Date:        date,
				Count:       n,
			}
			return tx.Create(&record).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&record).UpdateColumn("count", gorm.Expr("count + ?", n)).Error
	})
}

// MonthlyCount sums a workspace's counters for one event type over a
// calendar month.
func (s *UsageService) MonthlyCount(workspaceID string, eventType models.EventType, year int, month time.Month) (int64, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var total int64
	err := internal.DB.Model(&models.UsageRecord{}).
		Select("COALESCE(SUM(count), 0)").
		Where("workspace_id = ? AND event_type = ? AND date >= ? AND date < ?", workspaceID, eventType, start, end).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum usage: %w", err)
	}
	return total, nil
}

// DailyRecords lists a workspace's raw counters in a date range.
func (s *UsageService) DailyRecords(workspaceID string, from, to time.Time) ([]models.UsageRecord, error) {
	var records []models.UsageRecord
	err := internal.DB.
		Where("workspace_id = ? AND date >= ? AND date <= ?", workspaceID, from, to).
		Order("date asc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	return records, nil
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
