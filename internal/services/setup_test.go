package services

import (
	"testing"

	"github.com/eyepatch-3097/labelz-deploy/internal"
	"github.com/eyepatch-3097/labelz-deploy/internal/layout"
	"github.com/eyepatch-3097/labelz-deploy/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// setupTestDB points the package-global DB at a fresh in-memory database.
func setupTestDB(t *testing.T) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db error: %v", err)
	}

	err = db.AutoMigrate(
		&models.Workspace{},
		&models.WorkspaceField{},
		&models.LabelTemplate{},
		&models.LabelTemplateField{},
		&models.GlobalTemplate{},
		&models.GlobalTemplateField{},
		&models.LabelBatch{},
		&models.LabelBatchItem{},
		&models.LayoutDraft{},
		&models.UsageRecord{},
		&models.ActivityLog{},
	)
	if err != nil {
		t.Fatalf("migrate error: %v", err)
	}

	internal.DB = db
}

func seedWorkspace(t *testing.T) *models.Workspace {
	t.Helper()

	workspace := &models.Workspace{
		ID:            uuid.New().String(),
		OrgID:         uuid.New().String(),
		OrgName:       "Acme Labels",
		Name:          "Production",
		WorkspaceCode: models.GenerateWorkspaceCode("Acme Labels"),
	}
	if err := internal.DB.Create(workspace).Error; err != nil {
		t.Fatalf("seed workspace error: %v", err)
	}
	return workspace
}

func seedTemplate(t *testing.T, workspaceID string) *models.LabelTemplate {
	t.Helper()

	template := &models.LabelTemplate{
		ID:           uuid.New().String(),
		WorkspaceID:  workspaceID,
		Name:         "Candle Label",
		WidthCM:      5,
		HeightCM:     3,
		DPI:          300,
		TemplateCode: models.GenerateTemplateCode("Acme", "Production", "Candle Label"),
	}
	if err := internal.DB.Create(template).Error; err != nil {
		t.Fatalf("seed template error: %v", err)
	}
	return template
}

// seedLayout saves a minimal valid layout (barcode + one text field) on the
// template through the real save path.
func seedLayout(t *testing.T, layouts *LayoutService, templateID string) layout.Document {
	t.Helper()

	raw := []byte(`{
		"_meta": {"version": 0},
		"items": [
			{"field_id": "f-barcode", "name": "Barcode", "key": "barcode", "field_type": "BARCODE", "x": 10, "y": 200, "width": 300, "height": 80},
			{"field_id": "f-name", "name": "Product Name", "key": "product_name", "field_type": "TEXT", "x": 10, "y": 10, "width": 200, "height": 40}
		]
	}`)

	state, err := layouts.SaveCanvas(templateID, "", raw)
	if err != nil {
		t.Fatalf("seed layout error: %v", err)
	}
	return state.Document
}

func countRows(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()

	var n int64
	if err := internal.DB.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count error: %v", err)
	}
	return n
}
