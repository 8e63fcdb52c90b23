package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eyepatch-3097/labelz-deploy/internal"
	"github.com/eyepatch-3097/labelz-deploy/internal/layout"
	"github.com/eyepatch-3097/labelz-deploy/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrTemplateNotFound  = errors.New("template not found")
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrBaseTemplate      = errors.New("base template cannot be deleted")
)

// Physical size of the seed template every workspace starts with
const (
	baseTemplateWidthCM  = 5.0
	baseTemplateHeightCM = 3.0
)

type TemplateService struct{}

func NewTemplateService() *TemplateService {
	return &TemplateService{}
}

type CreateTemplateInput struct {
	Name           string
	Description    string
	WidthCM        float64
	HeightCM       float64
	DPI            int
	CanvasBgColor  string
	QRPayloadMode  string
	Category       string
	CustomCategory string
	CreatedBy      string
}

func (s *TemplateService) CreateTemplate(workspaceID string, input CreateTemplateInput) (*models.LabelTemplate, error) {
	workspace, err := s.ensureWorkspace(workspaceID, input.CreatedBy)
	if err != nil {
		return nil, err
	}

	if input.WidthCM <= 0 {
		input.WidthCM = layout.DefaultWidthCM
	}
	if input.HeightCM <= 0 {
		input.HeightCM = layout.DefaultHeightCM
	}
	if input.DPI <= 0 {
		input.DPI = layout.DefaultDPI
	}
	if input.CanvasBgColor == "" {
		input.CanvasBgColor = "#ffffff"
	}
	if input.QRPayloadMode != models.QRPayloadJSON {
		input.QRPayloadMode = models.QRPayloadSimple
	}

	category := models.Category(strings.ToUpper(strings.TrimSpace(input.Category)))
	if category == "" {
		category = models.CategoryOthers
	}

	template := &models.LabelTemplate{
		ID:             uuid.New().String(),
		WorkspaceID:    workspace.ID,
		Name:           input.Name,
		Description:    input.Description,
		WidthCM:        input.WidthCM,
		HeightCM:       input.HeightCM,
		DPI:            input.DPI,
		CanvasBgColor:  input.CanvasBgColor,
		QRPayloadMode:  input.QRPayloadMode,
		Category:       category,
		CustomCategory: input.CustomCategory,
		TemplateCode:   models.GenerateTemplateCode(workspace.OrgName, workspace.Name, input.Name),
		CreatedBy:      input.CreatedBy,
	}

	if err := internal.DB.Create(template).Error; err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	return template, nil
}

// ensureWorkspace loads the workspace, provisioning the row on first use.
// Workspace identity comes from the upstream auth layer, so an unknown id on
// a create path means a first visit, not a bad reference.
func (s *TemplateService) ensureWorkspace(workspaceID, createdBy string) (*models.Workspace, error) {
	var workspace models.Workspace
	err := internal.DB.First(&workspace, "id = ?", workspaceID).Error
	if err == nil {
		return &workspace, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load workspace: %w", err)
	}

	workspace = models.Workspace{
		ID:            workspaceID,
		Name:          "Workspace " + workspaceID,
		WorkspaceCode: models.GenerateWorkspaceCode(""),
		CreatedBy:     createdBy,
	}
	if err := internal.DB.Create(&workspace).Error; err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	if _, err := s.EnsureBaseTemplate(&workspace); err != nil {
		return nil, err
	}

	return &workspace, nil
}

// EnsureBaseTemplate lazily creates the workspace's seed template: a 5x3cm
// design carrying the workspace-level fields, marked is_base so it can be
// duplicated but never deleted.
func (s *TemplateService) EnsureBaseTemplate(workspace *models.Workspace) (*models.LabelTemplate, error) {
	var existing models.LabelTemplate
	err := internal.DB.First(&existing, "workspace_id = ? AND is_base = ?", workspace.ID, true).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up base template: %w", err)
	}

	var workspaceFields []models.WorkspaceField
	if err := internal.DB.Order(`"order" asc`).Find(&workspaceFields, "workspace_id = ?", workspace.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to load workspace fields: %w", err)
	}

	items := make([]layout.Item, 0, len(workspaceFields))
	for _, wf := range workspaceFields {
		items = append(items, layout.NormalizeItem(layout.Item{
			Name:      wf.Name,
			Key:       wf.Key,
			FieldType: wf.FieldType,
			X:         wf.X,
			Y:         wf.Y,
			Width:     wf.Width,
			Height:    wf.Height,
		}))
	}
	items = layout.AssignKeys(items)

	doc := layout.Document{
		Meta: layout.Meta{
			UIMaxSidePx: layout.UIMaxSidePx,
			UIPxPerCM:   layout.UIPxPerCM(baseTemplateWidthCM, baseTemplateHeightCM),
			Version:     1,
		},
		Items: items,
	}
	layoutJSON, err := doc.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode base layout: %w", err)
	}

	template := &models.LabelTemplate{
		ID:           uuid.New().String(),
		WorkspaceID:  workspace.ID,
		Name:         "Base Template",
		Description:  "Starting design for this workspace",
		WidthCM:      baseTemplateWidthCM,
		HeightCM:     baseTemplateHeightCM,
		DPI:          layout.DefaultDPI,
		LayoutJSON:   layoutJSON,
		IsBase:       true,
		TemplateCode: models.GenerateTemplateCode(workspace.OrgName, workspace.Name, "Base Template"),
		CreatedBy:    workspace.CreatedBy,
	}

	err = internal.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(template).Error; err != nil {
			return fmt.Errorf("failed to create base template: %w", err)
		}
		for i, wf := range workspaceFields {
			field := models.LabelTemplateField{
				ID:               uuid.New().String(),
				TemplateID:       template.ID,
				FieldID:          uuid.New().String(),
				Name:             wf.Name,
				Key:              wf.Key,
				FieldType:        wf.FieldType,
				X:                wf.X,
				Y:                wf.Y,
				Width:            wf.Width,
				Height:           wf.Height,
				WorkspaceFieldID: wf.ID,
				Order:            i,
			}
			if err := tx.Create(&field).Error; err != nil {
				return fmt.Errorf("failed to create base template field: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return template, nil
}

func (s *TemplateService) GetTemplate(templateID string) (*models.LabelTemplate, error) {
	var template models.LabelTemplate
	if err := internal.DB.First(&template, "id = ?", templateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return &template, nil
}

func (s *TemplateService) GetTemplateWithFields(templateID string) (*models.LabelTemplate, error) {
	var template models.LabelTemplate
	err := internal.DB.Preload("Fields", func(db *gorm.DB) *gorm.DB {
		return db.Order(`"order" asc`)
	}).First(&template, "id = ?", templateID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return &template, nil
}

// ListTemplates returns a workspace's templates, optionally filtered by
// category and a case-insensitive name/code search.
func (s *TemplateService) ListTemplates(workspaceID, category, query string) ([]models.LabelTemplate, error) {
	db := internal.DB.Where("workspace_id = ?", workspaceID)

	if category != "" {
		db = db.Where("category = ?", strings.ToUpper(strings.TrimSpace(category)))
	}
	if query != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(template_code) LIKE ?", pattern, pattern)
	}

	var templates []models.LabelTemplate
	if err := db.Order("created_at desc").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// DuplicateTemplate copies a template and its field rows under a new name.
// The copy is never a base template, whatever the source was.
func (s *TemplateService) DuplicateTemplate(templateID, newName, createdBy string) (*models.LabelTemplate, error) {
	source, err := s.GetTemplateWithFields(templateID)
	if err != nil {
		return nil, err
	}

	var workspace models.Workspace
	if err := internal.DB.First(&workspace, "id = ?", source.WorkspaceID).Error; err != nil {
		return nil, fmt.Errorf("failed to load workspace: %w", err)
	}

	if newName == "" {
		newName = source.Name + " (Copy)"
	}

	copyTemplate := &models.LabelTemplate{
		ID:             uuid.New().String(),
		WorkspaceID:    source.WorkspaceID,
		Name:           newName,
		Description:    source.Description,
		WidthCM:        source.WidthCM,
		HeightCM:       source.HeightCM,
		DPI:            source.DPI,
		CanvasBgColor:  source.CanvasBgColor,
		LayoutJSON:     source.LayoutJSON,
		PrintDefaults:  source.PrintDefaults,
		QRPayloadMode:  source.QRPayloadMode,
		Category:       source.Category,
		CustomCategory: source.CustomCategory,
		IsBase:         false,
		TemplateCode:   models.GenerateTemplateCode(workspace.OrgName, workspace.Name, newName),
		CreatedBy:      createdBy,
	}

	err = internal.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(copyTemplate).Error; err != nil {
			return fmt.Errorf("failed to create template copy: %w", err)
		}
		for _, f := range source.Fields {
			fieldCopy := f
			fieldCopy.ID = uuid.New().String()
			fieldCopy.TemplateID = copyTemplate.ID
			if err := tx.Create(&fieldCopy).Error; err != nil {
				return fmt.Errorf("failed to copy template field: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return copyTemplate, nil
}

// DeleteTemplate soft deletes a template. The base template is protected.
func (s *TemplateService) DeleteTemplate(templateID string) error {
	template, err := s.GetTemplate(templateID)
	if err != nil {
		return err
	}
	if template.IsBase {
		return ErrBaseTemplate
	}
	if err := internal.DB.Delete(template).Error; err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

// UseGlobalTemplate copies a curated global template into a workspace.
func (s *TemplateService) UseGlobalTemplate(workspaceID, globalID, createdBy string) (*models.LabelTemplate, error) {
	workspace, err := s.ensureWorkspace(workspaceID, createdBy)
	if err != nil {
		return nil, err
	}

	var global models.GlobalTemplate
	err = internal.DB.Preload("Fields", func(db *gorm.DB) *gorm.DB {
		return db.Order(`"order" asc`)
	}).First(&global, "id = ? AND is_active = ?", globalID, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load global template: %w", err)
	}

	template := &models.LabelTemplate{
		ID:             uuid.New().String(),
		WorkspaceID:    workspace.ID,
		Name:           global.Name,
		Description:    global.Description,
		WidthCM:        global.WidthCM,
		HeightCM:       global.HeightCM,
		DPI:            global.DPI,
		LayoutJSON:     global.LayoutJSON,
		Category:       global.Category,
		CustomCategory: global.CustomCategory,
		TemplateCode:   models.GenerateTemplateCode(workspace.OrgName, workspace.Name, global.Name),
		CreatedBy:      createdBy,
	}

	err = internal.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(template).Error; err != nil {
			return fmt.Errorf("failed to create template from global: %w", err)
		}
		for i, gf := range global.Fields {
			field := models.LabelTemplateField{
				ID:         uuid.New().String(),
				TemplateID: template.ID,
				FieldID:    uuid.New().String(),
				Name:       gf.Name,
				Key:        gf.Key,
				FieldType:  gf.FieldType,
				X:          gf.X,
				Y:          gf.Y,
				Width:      gf.Width,
				Height:     gf.Height,
				Order:      i,
			}
			if err := tx.Create(&field).Error; err != nil {
				return fmt.Errorf("failed to copy global template field: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return template, nil
}

// Geometry returns the derived pixel spaces for a template's physical size.
func (s *TemplateService) Geometry(template *models.LabelTemplate) layout.Engine {
	return layout.Compute(template.WidthCM, template.HeightCM, template.DPI)
}
