package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eyepatch-3097/labelz-deploy/internal"
	"github.com/eyepatch-3097/labelz-deploy/internal/bulkimport"
	"github.com/eyepatch-3097/labelz-deploy/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrBatchNotFound  = errors.New("batch not found")
	ErrEANRequired    = errors.New("ean code is required")
	ErrQuantityRange  = errors.New("quantity must be between 1 and 500")
	ErrNoBatchRows    = errors.New("batch has no rows")
)

// Single-mode quantity bounds; multi-mode rows are bounded per row by the
// import validator.
const (
	MinBatchQuantity = 1
	MaxBatchQuantity = 500
)

type BatchService struct {
	templates *TemplateService
	layouts   *LayoutService
	usage     *UsageService
}

func NewBatchService(templates *TemplateService, layouts *LayoutService, usage *UsageService) *BatchService {
	return &BatchService{templates: templates, layouts: layouts, usage: usage}
}

type CreateBatchInput struct {
	TemplateID  string
	EANCode     string
	GS1Code     string
	Quantity    int
	FieldValues map[string]string
	CreatedBy   string
}

// CreateSingle creates a one-SKU batch. The template must have a saved
// layout before labels can be generated from it.
func (s *BatchService) CreateSingle(workspaceID string, input CreateBatchInput) (*models.LabelBatch, error) {
	template, err := s.templates.GetTemplate(input.TemplateID)
	if err != nil {
		return nil, err
	}

	if _, ok, err := s.layouts.Document(template); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrLayoutMissing
	}

	ean := strings.TrimSpace(input.EANCode)
	if ean == "" {
		return nil, ErrEANRequired
	}
	if input.Quantity < MinBatchQuantity || input.Quantity > MaxBatchQuantity {
		return nil, ErrQuantityRange
	}

	batch := &models.LabelBatch{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		TemplateID:  template.ID,
		CreatedBy:   input.CreatedBy,
		Mode:        models.BatchModeSingle,
		EANCode:     ean,
		GS1Code:     strings.TrimSpace(input.GS1Code),
		Quantity:    input.Quantity,
		FieldValues: models.EncodeFieldValues(input.FieldValues),
	}

	if err := internal.DB.Create(batch).Error; err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	s.usage.Record(workspaceID, models.EventLabelsGenerated, int64(batch.Quantity))

	return batch, nil
}

// CreateMulti creates a multi-SKU batch from validated import rows. The
// batch and all its item rows are written in one transaction.
func (s *BatchService) CreateMulti(workspaceID, templateID, createdBy string, rows []bulkimport.Row) (*models.LabelBatch, error) {
	template, err := s.templates.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}

	if _, ok, err := s.layouts.Document(template); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrLayoutMissing
	}

	if len(rows) == 0 {
		return nil, ErrNoBatchRows
	}

	batch := &models.LabelBatch{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		TemplateID:  template.ID,
		CreatedBy:   createdBy,
		Mode:        models.BatchModeMulti,
		FieldValues: models.EncodeFieldValues(nil),
	}

	totalLabels := int64(0)
	err = internal.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(batch).Error; err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}
		for i, row := range rows {
			item := models.LabelBatchItem{
				ID:          uuid.New().String(),
				BatchID:     batch.ID,
				RowIndex:    i + 1,
				EANCode:     row.EANCode,
				GS1Code:     row.GS1Code,
				Quantity:    row.Quantity,
				FieldValues: models.EncodeFieldValues(row.FieldValues),
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to create batch row %d: %w", i+1, err)
			}
			totalLabels += int64(row.Quantity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.usage.Record(workspaceID, models.EventLabelsGenerated, totalLabels)

	return batch, nil
}

func (s *BatchService) GetBatch(batchID string) (*models.LabelBatch, error) {
	var batch models.LabelBatch
	err := internal.DB.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("row_index asc")
	}).First(&batch, "id = ?", batchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	return &batch, nil
}

// History lists a workspace's batches newest first.
func (s *BatchService) History(workspaceID string) ([]models.LabelBatch, error) {
	var batches []models.LabelBatch
	err := internal.DB.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("row_index asc")
	}).Where("workspace_id = ?", workspaceID).
		Order("created_at desc").
		Find(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}

// LabelCount returns the total labels a batch generates.
func (s *BatchService) LabelCount(batch *models.LabelBatch) int {
	if batch.Mode == models.BatchModeMulti && len(batch.Items) > 0 {
		total := 0
		for _, item := range batch.Items {
			total += item.Quantity
		}
		return total
	}
	return batch.Quantity
}
