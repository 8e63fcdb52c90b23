package services

import (
	"errors"
	"testing"

	"github.com/eyepatch-3097/labelz-deploy/internal"
	"github.com/eyepatch-3097/labelz-deploy/internal/layout"
	"github.com/eyepatch-3097/labelz-deploy/internal/models"
)

func TestSaveCanvasPersistsDocumentAndRows(t *testing.T) {
	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID)

	doc := seedLayout(t, layouts, template.ID)

	if doc.Meta.Version != 1 {
		t.Fatalf("expected version 1 after first save, got %d", doc.Meta.Version)
	}

	var stored models.LabelTemplate
	if err := internal.DB.First(&stored, "id = ?", template.ID).Error; err != nil {
		t.Fatalf("load template error: %v", err)
	}
	if stored.LayoutJSON == "" {
		t.Fatalf("layout document not stored")
	}

	var fields []models.LabelTemplateField
	if err := internal.DB.Order(`"order" asc`).Find(&fields, "template_id = ?", template.ID).Error; err != nil {
		t.Fatalf("load fields error: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 field rows, got %d", len(fields))
	}

	// Rows store print pixels: 5x3cm @300dpi means ui x=10 -> real ~8
	engine := layout.Compute(5, 3, 300)
	if fields[0].X != engine.UIToReal(10) {
		t.Fatalf("row not converted to print px: x=%d", fields[0].X)
	}
	if fields[0].FieldID != "f-barcode" || fields[1].FieldID != "f-name" {
		t.Fatalf("field ids not preserved: %s %s", fields[0].FieldID, fields[1].FieldID)
	}
}

func TestSaveCanvasIsIdempotentOnFieldIDs(t *testing.T) {
	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID)

	seedLayout(t, layouts, template.ID)

	var before []models.LabelTemplateField
	internal.DB.Order("field_id asc").Find(&before, "template_id = ?", template.ID)

	// Second save: same field ids, version 1 as expected by the check
	raw := []byte(`{
		"_meta": {"version": 1},
		"items": [
			{"field_id": "f-barcode", "name": "Barcode", "key": "barcode", "field_type": "BARCODE", "x": 20, "y": 200, "width": 300, "height": 80},
			{"field_id": "f-name", "name": "Product Name", "key": "product_name", "field_type": "TEXT", "x": 10, "y": 10, "width": 200, "height": 40}
		]
	}`)
	if _, err := layouts.SaveCanvas(template.ID, "", raw); err != nil {
		t.Fatalf("second save error: %v", err)
	}

	var after []models.LabelTemplateField
	internal.DB.Order("field_id asc").Find(&after, "template_id = ?", template.ID)

	if len(after) != 2 {
		t.Fatalf("row count changed on re-save: %d", len(after))
	}
	for i := range after {
		if after[i].ID != before[i].ID {
			t.Fatalf("row identity churned for %s: %s -> %s", after[i].FieldID, before[i].ID, after[i].ID)
		}
	}
}

func TestSaveCanvasRemovesVanishedRows(t *testing.T) {
	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID)

	seedLayout(t, layouts, template.ID)

	raw := []byte(`{
		"_meta": {"version": 1},
		"items": [
			{"field_id": "f-barcode", "name": "Barcode", "key": "barcode", "field_type": "BARCODE", "x": 10, "y": 200, "width": 300, "height": 80}
		]
	}`)
	if _, err := layouts.SaveCanvas(template.ID, "", raw); err != nil {
		t.Fatalf("save error: %v", err)
	}

	if n := countRows(t, &models.LabelTemplateField{}, "template_id = ?", template.ID); n != 1 {
		t.Fatalf("expected vanished row to be deleted, have %d rows", n)
	}
}

func TestSaveCanvasWithoutBarcodeLeavesEverythingUntouched(t *testing.T) {
	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID)

	doc := seedLayout(t, layouts, template.ID)
	savedJSON := func() string {
		var tpl models.LabelTemplate
		internal.DB.First(&tpl, "id = ?", template.ID)
		return tpl.LayoutJSON
	}
	jsonBefore := savedJSON()

	raw := []byte(`{
		"_meta": {"version": 1},
		"items": [
			{"field_id": "f-name", "name": "Product Name", "key": "product_name", "field_type": "TEXT", "x": 10, "y": 10, "width": 200, "height": 40}
		]
	}`)
	_, err := layouts.SaveCanvas(template.ID, "session-1", raw)
	if !errors.Is(err, ErrBarcodeRequired) {
		t.Fatalf("expected ErrBarcodeRequired, got %v", err)
	}

	if savedJSON() != jsonBefore {
		t.Fatalf("rejected save mutated the stored document")
	}
	if n := countRows(t, &models.LabelTemplateField{}, "template_id = ?", template.ID); n != 2 {
		t.Fatalf("rejected save mutated field rows: %d", n)
	}

	// The rejected layout is parked as a session draft
	var draft models.LayoutDraft
	if err := internal.DB.First(&draft, "template_id = ? AND session_id = ?", template.ID, "session-1").Error; err != nil {
		t.Fatalf("draft not saved: %v", err)
	}
	if draft.State != models.DraftStateLayingOut {
		t.Fatalf("unexpected draft state: %s", draft.State)
	}

	// Editor reload shows the draft, not the canonical document
	state, err := layouts.LoadCanvas(template.ID, "session-1")
	if err != nil {
		t.Fatalf("LoadCanvas error: %v", err)
	}
	if !state.FromDraft || len(state.Document.Items) != 1 {
		t.Fatalf("expected draft on reload, got fromDraft=%v items=%d", state.FromDraft, len(state.Document.Items))
	}
	_ = doc
}

func TestSaveCanvasDuplicateKey(t *testing.T) {
	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID)

	raw := []byte(`{
		"items": [
			{"name": "Barcode", "key": "barcode", "field_type": "BARCODE"},
			{"name": "A", "key": "mrp", "field_type": "TEXT"},
			{"name": "B", "key": "mrp", "field_type": "TEXT"}
		]
	}`)
	_, err := layouts.SaveCanvas(template.ID, "", raw)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	var dupErr *DuplicateKeyError
	if !errors.As(err, &dupErr) || dupErr.Key != "mrp" {
		t.Fatalf("expected duplicate key mrp, got %v", err)
	}
}

func TestSaveCanvasVersionConflict(t *testing.T) {
	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID)

	seedLayout(t, layouts, template.ID) // stored version is now 1

	stale := []byte(`{
		"_meta": {"version": 7},
		"items": [
			{"field_id": "f-barcode", "name": "Barcode", "key": "barcode", "field_type": "BARCODE"}
		]
	}`)
	_, err := layouts.SaveCanvas(template.ID, "", stale)
	if !errors.Is(err, ErrLayoutConflict) {
		t.Fatalf("expected ErrLayoutConflict, got %v", err)
	}
}

func TestSaveCanvasRejectsInvalidPayload(t *testing.T) {
	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID)

	_, err := layouts.SaveCanvas(template.ID, "", []byte("not json"))
	if !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("expected ErrInvalidLayout, got %v", err)
	}
}

func TestSaveCanvasAcceptsLegacyBareArray(t *testing.T) {
	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID)

	raw := []byte(`[{"name": "Barcode", "key": "barcode", "field_type": "BARCODE", "x": 5, "y": 5, "width": 100, "height": 40}]`)
	state, err := layouts.SaveCanvas(template.ID, "", raw)
	if err != nil {
		t.Fatalf("bare array save error: %v", err)
	}
	if state.Document.Meta.Version != 1 {
		t.Fatalf("expected version 1, got %d", state.Document.Meta.Version)
	}
	if state.Document.Items[0].FieldID == "" {
		t.Fatalf("expected field id to be assigned")
	}
}

func TestLoadCanvasLegacyFieldRows(t *testing.T) {
	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID)

	// Field rows without a stored document, as templates predating the
	// document format have
	engine := layout.Compute(5, 3, 300)
	row := models.LabelTemplateField{
		ID:         "row-1",
		TemplateID: template.ID,
		FieldID:    "f-legacy",
		Name:       "Product Name",
		Key:        "product_name",
		FieldType:  "TEXT",
		X:          engine.UIToReal(100),
		Y:          engine.UIToReal(50),
		Width:      engine.UIToReal(200),
		Height:     engine.UIToReal(40),
	}
	if err := internal.DB.Create(&row).Error; err != nil {
		t.Fatalf("seed row error: %v", err)
	}

	state, err := layouts.LoadCanvas(template.ID, "")
	if err != nil {
		t.Fatalf("LoadCanvas error: %v", err)
	}
	if len(state.Document.Items) != 1 {
		t.Fatalf("expected 1 projected item, got %d", len(state.Document.Items))
	}

	it := state.Document.Items[0]
	if diff := it.X - 100; diff < -1 || diff > 1 {
		t.Fatalf("projection out of tolerance: x=%d", it.X)
	}
	if it.FieldID != "f-legacy" {
		t.Fatalf("field id lost in projection: %s", it.FieldID)
	}
}

func TestSaveCanvasAllowsRepeatedShapeNames(t *testing.T) {
	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID)

	raw := []byte(`{
		"_meta": {"version": 0},
		"items": [
			{"name": "Barcode", "key": "barcode", "field_type": "BARCODE", "x": 10, "y": 200, "width": 300, "height": 80},
			{"name": "Shape", "field_type": "SHAPE", "x": 10, "y": 10, "width": 50, "height": 50},
			{"name": "Shape", "field_type": "SHAPE", "x": 80, "y": 10, "width": 50, "height": 50}
		]
	}`)

	state, err := layouts.SaveCanvas(template.ID, "", raw)
	if err != nil {
		t.Fatalf("SaveCanvas error: %v", err)
	}

	keys := make(map[string]bool)
	for _, it := range state.Document.Items {
		if keys[it.Key] {
			t.Fatalf("duplicate persisted key %q", it.Key)
		}
		keys[it.Key] = true
	}
	if !keys["shape"] || !keys["shape_2"] {
		t.Fatalf("generated shape keys not uniquified: %v", keys)
	}

	if n := countRows(t, &models.LabelTemplateField{}, "template_id = ?", template.ID); n != 3 {
		t.Fatalf("expected 3 field rows, got %d", n)
	}
}

func TestSaveCanvasUpdatesBackgroundColor(t *testing.T) {
	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID)

	raw := []byte(`{
		"_meta": {"version": 0},
		"canvas_bg_color": "#FF8800",
		"items": [
			{"name": "Barcode", "key": "barcode", "field_type": "BARCODE", "x": 10, "y": 200, "width": 300, "height": 80}
		]
	}`)

	if _, err := layouts.SaveCanvas(template.ID, "", raw); err != nil {
		t.Fatalf("SaveCanvas error: %v", err)
	}

	reloaded, err := templates.GetTemplate(template.ID)
	if err != nil {
		t.Fatalf("GetTemplate error: %v", err)
	}
	if reloaded.CanvasBgColor != "#FF8800" {
		t.Fatalf("background color not persisted: %q", reloaded.CanvasBgColor)
	}

	// Omitting the color on a later save leaves it untouched
	raw = []byte(`{
		"_meta": {"version": 1},
		"items": [
			{"name": "Barcode", "key": "barcode", "field_type": "BARCODE", "x": 10, "y": 200, "width": 300, "height": 80}
		]
	}`)
	if _, err := layouts.SaveCanvas(template.ID, "", raw); err != nil {
		t.Fatalf("second SaveCanvas error: %v", err)
	}
	reloaded, err = templates.GetTemplate(template.ID)
	if err != nil {
		t.Fatalf("GetTemplate error: %v", err)
	}
	if reloaded.CanvasBgColor != "#FF8800" {
		t.Fatalf("background color lost on save without one: %q", reloaded.CanvasBgColor)
	}
}

func TestSaveCanvasRejectsBadBackgroundColor(t *testing.T) {
	setupTestDB(t)
	templates := NewTemplateService()
	layouts := NewLayoutService(templates)
	workspace := seedWorkspace(t)
	template := seedTemplate(t, workspace.ID)
	seedLayout(t, layouts, template.ID)

	seeded, err := templates.GetTemplate(template.ID)
	if err != nil {
		t.Fatalf("GetTemplate error: %v", err)
	}
	baseline := seeded.CanvasBgColor

	for _, bad := range []string{"sunset", "#fff", "#12345G", "ff8800"} {
		raw := []byte(`{
			"_meta": {"version": 1},
			"canvas_bg_color": "` + bad + `",
			"items": [
				{"name": "Barcode", "key": "barcode", "field_type": "BARCODE", "x": 10, "y": 200, "width": 300, "height": 80}
			]
		}`)

		if _, err := layouts.SaveCanvas(template.ID, "", raw); !errors.Is(err, ErrInvalidColor) {
			t.Fatalf("color %q: expected ErrInvalidColor, got %v", bad, err)
		}
	}

	// Rejection happens before any mutation
	reloaded, err := templates.GetTemplate(template.ID)
	if err != nil {
		t.Fatalf("GetTemplate error: %v", err)
	}
	if reloaded.CanvasBgColor != baseline {
		t.Fatalf("background color mutated on rejected save: %q", reloaded.CanvasBgColor)
	}
}
