package services

import (
	"errors"
	"testing"
	"time"

	"github.com/eyepatch-3097/labelz-deploy/internal"
	"github.com/eyepatch-3097/labelz-deploy/internal/bulkimport"
	"github.com/eyepatch-3097/labelz-deploy/internal/models"
)

func newBatchFixture(t *testing.T) (*BatchService, *models.Workspace, *models.LabelTemplate) {
	t.Helper()

	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	usage := NewUsageService()
	batches := NewBatchService(templates, layouts, usage)

	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID)
	seedLayout(t, layouts, template.ID)

	return batches, workspace, template
}

func TestCreateSingleBatch(t *testing.T) {
	batches, workspace, template := newBatchFixture(t)

	batch, err := batches.CreateSingle(workspace.ID, CreateBatchInput{
		TemplateID:  template.ID,
		EANCode:     " 1234567890 ",
		Quantity:    25,
		FieldValues: map[string]string{"product_name": "Candle"},
	})
	if err != nil {
		t.Fatalf("CreateSingle error: %v", err)
	}

	if batch.Mode != models.BatchModeSingle {
		t.Fatalf("unexpected mode: %s", batch.Mode)
	}
	if batch.EANCode != "1234567890" {
		t.Fatalf("ean not trimmed: %q", batch.EANCode)
	}
	if batch.FieldValueMap()["product_name"] != "Candle" {
		t.Fatalf("field values not stored: %s", batch.FieldValues)
	}

	// Label generation is metered
	usage := NewUsageService()
	now := time.Now().UTC()
	total, err := usage.MonthlyCount(workspace.ID, models.EventLabelsGenerated, now.Year(), now.Month())
	if err != nil {
		t.Fatalf("MonthlyCount error: %v", err)
	}
	if total != 25 {
		t.Fatalf("expected 25 metered labels, got %d", total)
	}
}

func TestCreateSingleBatchValidation(t *testing.T) {
	batches, workspace, template := newBatchFixture(t)

	_, err := batches.CreateSingle(workspace.ID, CreateBatchInput{TemplateID: template.ID, EANCode: "  ", Quantity: 10})
	if !errors.Is(err, ErrEANRequired) {
		t.Fatalf("expected ErrEANRequired, got %v", err)
	}

	for _, qty := range []int{0, -5, 501} {
		_, err := batches.CreateSingle(workspace.ID, CreateBatchInput{TemplateID: template.ID, EANCode: "123", Quantity: qty})
		if !errors.Is(err, ErrQuantityRange) {
			t.Fatalf("quantity %d: expected ErrQuantityRange, got %v", qty, err)
		}
	}

	if n := countRows(t, &models.LabelBatch{}, "workspace_id = ?", workspace.ID); n != 0 {
		t.Fatalf("rejected batches were persisted: %d", n)
	}
}

func TestCreateSingleBatchRequiresLayout(t *testing.T) {
	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	batches := NewBatchService(templates, layouts, NewUsageService())

	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID) // no layout saved

	_, err := batches.CreateSingle(workspace.ID, CreateBatchInput{TemplateID: template.ID, EANCode: "123", Quantity: 1})
	if !errors.Is(err, ErrLayoutMissing) {
		t.Fatalf("expected ErrLayoutMissing, got %v", err)
	}
}

func TestCreateMultiBatch(t *testing.T) {
	batches, workspace, template := newBatchFixture(t)

	rows := []bulkimport.Row{
		{EANCode: "111", Quantity: 2, FieldValues: map[string]string{"product_name": "Mug"}},
		{EANCode: "222", GS1Code: "G2", Quantity: 3, FieldValues: map[string]string{"product_name": "Plate"}},
	}

	batch, err := batches.CreateMulti(workspace.ID, template.ID, "user-1", rows)
	if err != nil {
		t.Fatalf("CreateMulti error: %v", err)
	}
	if batch.Mode != models.BatchModeMulti {
		t.Fatalf("unexpected mode: %s", batch.Mode)
	}

	loaded, err := batches.GetBatch(batch.ID)
	if err != nil {
		t.Fatalf("GetBatch error: %v", err)
	}
	if len(loaded.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(loaded.Items))
	}
	if loaded.Items[0].RowIndex != 1 || loaded.Items[1].RowIndex != 2 {
		t.Fatalf("row indexes wrong: %d %d", loaded.Items[0].RowIndex, loaded.Items[1].RowIndex)
	}
	if loaded.Items[1].FieldValueMap()["product_name"] != "Plate" {
		t.Fatalf("item field values lost")
	}
	if batches.LabelCount(loaded) != 5 {
		t.Fatalf("expected 5 labels, got %d", batches.LabelCount(loaded))
	}
}

func TestCreateMultiBatchEmptyRows(t *testing.T) {
	batches, workspace, template := newBatchFixture(t)

	_, err := batches.CreateMulti(workspace.ID, template.ID, "", nil)
	if !errors.Is(err, ErrNoBatchRows) {
		t.Fatalf("expected ErrNoBatchRows, got %v", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	batches, workspace, template := newBatchFixture(t)

	first, err := batches.CreateSingle(workspace.ID, CreateBatchInput{TemplateID: template.ID, EANCode: "111", Quantity: 1})
	if err != nil {
		t.Fatalf("CreateSingle error: %v", err)
	}
	// Force distinct timestamps
	internal.DB.Model(first).UpdateColumn("created_at", time.Now().Add(-time.Hour))

	second, err := batches.CreateSingle(workspace.ID, CreateBatchInput{TemplateID: template.ID, EANCode: "222", Quantity: 1})
	if err != nil {
		t.Fatalf("CreateSingle error: %v", err)
	}

	history, err := batches.History(workspace.ID)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(history))
	}
	if history[0].ID != second.ID || history[1].ID != first.ID {
		t.Fatalf("history not newest first")
	}
}

func TestGetBatchNotFound(t *testing.T) {
	batches, _, _ := newBatchFixture(t)

	_, err := batches.GetBatch("missing")
	if !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
}
