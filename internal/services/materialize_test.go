package services

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/eyepatch-3097/labelz-deploy/internal/layout"
	"github.com/eyepatch-3097/labelz-deploy/internal/models"

	"github.com/stretchr/testify/require"
)

// countingRenderer records render calls instead of producing real PNGs.
type countingRenderer struct {
	barcodeCalls int
	qrCalls      int
}

func (r *countingRenderer) BarcodePNG(value string, width, height int) (string, error) {
	r.barcodeCalls++
	return "data:barcode/" + value, nil
}

func (r *countingRenderer) QRPNG(value string, size int) (string, error) {
	r.qrCalls++
	return "data:qr/" + value, nil
}

func materializeFixture() (*models.LabelTemplate, layout.Document) {
	template := &models.LabelTemplate{
		ID:            "tpl-1",
		WidthCM:       5,
		HeightCM:      3,
		DPI:           300,
		CanvasBgColor: "#ffffff",
		QRPayloadMode: models.QRPayloadSimple,
	}

	doc := layout.Document{
		Meta: layout.Meta{UIMaxSidePx: 700, UIPxPerCM: 140, Version: 1},
		Items: layout.NormalizeItems([]layout.Item{
			{FieldID: "f1", Name: "Product Name", Key: "product_name", FieldType: layout.FieldText, X: 14, Y: 14, Width: 280, Height: 42, ZIndex: 2},
			{FieldID: "f2", Name: "Barcode", Key: "barcode", FieldType: layout.FieldBarcode, X: 14, Y: 280, Width: 420, Height: 98, ZIndex: 1},
			{FieldID: "f3", Name: "Serial", Key: "serial_no", FieldType: layout.FieldSerial, X: 560, Y: 14, Width: 98, Height: 28, ZIndex: 3},
		}),
	}
	return template, doc
}

func TestMaterializeEmptyLayout(t *testing.T) {
	svc := NewMaterializeService(&countingRenderer{})
	template, _ := materializeFixture()

	_, err := svc.Materialize(template, layout.Document{}, []BatchRow{{EANCode: "1", Quantity: 1}}, UnitUIPx, 0)
	if !errors.Is(err, ErrLayoutMissing) {
		t.Fatalf("expected ErrLayoutMissing, got %v", err)
	}
}

func TestMaterializeSerialsRestartPerRow(t *testing.T) {
	svc := NewMaterializeService(&countingRenderer{})
	template, doc := materializeFixture()

	rows := []BatchRow{
		{EANCode: "111", Quantity: 2},
		{EANCode: "222", Quantity: 3},
	}
	labels, err := svc.Materialize(template, doc, rows, UnitUIPx, 0)
	require.NoError(t, err)
	require.Len(t, labels, 5)

	serials := make([]string, 0, len(labels))
	for _, l := range labels {
		serials = append(serials, l.Serial)
	}
	require.Equal(t, []string{"001", "002", "001", "002", "003"}, serials)

	// The serial is baked into the barcode value
	for _, l := range labels {
		for _, el := range l.Elements {
			if el.FieldType == layout.FieldBarcode {
				require.Equal(t, l.EANCode+l.Serial, el.Value)
			}
			if el.FieldType == layout.FieldSerial {
				require.Equal(t, l.Serial, el.Value)
			}
		}
	}
}

func TestMaterializeZOrderStableSort(t *testing.T) {
	svc := NewMaterializeService(&countingRenderer{})
	template, doc := materializeFixture()

	labels, err := svc.Materialize(template, doc, []BatchRow{{EANCode: "1", Quantity: 1}}, UnitUIPx, 0)
	require.NoError(t, err)

	var order []string
	for _, el := range labels[0].Elements {
		order = append(order, el.Key)
	}
	require.Equal(t, []string{"barcode", "product_name", "serial_no"}, order)
}

func TestMaterializeMMSpace(t *testing.T) {
	svc := NewMaterializeService(&countingRenderer{})
	template, doc := materializeFixture()

	labels, err := svc.Materialize(template, doc, []BatchRow{{EANCode: "1", Quantity: 1}}, UnitMM, 0)
	require.NoError(t, err)

	label := labels[0]
	require.Equal(t, UnitMM, label.Unit)

	// 140 ui px per cm: the 5x3cm label is 50x30mm
	require.InDelta(t, 50.0, label.Width, 1e-9)
	require.InDelta(t, 30.0, label.Height, 1e-9)

	// x=14 ui px -> 1mm
	for _, el := range label.Elements {
		if el.Key == "product_name" {
			require.InDelta(t, 1.0, el.X, 1e-9)
			require.InDelta(t, 20.0, el.Width, 1e-9)
		}
	}
}

func TestMaterializeUIPxSpaceIsUnscaled(t *testing.T) {
	svc := NewMaterializeService(&countingRenderer{})
	template, doc := materializeFixture()

	labels, err := svc.Materialize(template, doc, []BatchRow{{EANCode: "1", Quantity: 1}}, UnitUIPx, 0)
	require.NoError(t, err)

	for _, el := range labels[0].Elements {
		if el.Key == "product_name" {
			if math.Abs(el.X-14) > 1e-9 {
				t.Fatalf("ui px coordinates were scaled: %v", el.X)
			}
		}
	}
}

func TestMaterializeLimit(t *testing.T) {
	svc := NewMaterializeService(&countingRenderer{})
	template, doc := materializeFixture()

	labels, err := svc.Materialize(template, doc, []BatchRow{{EANCode: "1", Quantity: 100}}, UnitUIPx, 1)
	require.NoError(t, err)
	require.Len(t, labels, 1)
	require.Equal(t, "001", labels[0].Serial)
}

func TestMaterializeRendersFreshImagesPerSerial(t *testing.T) {
	renderer := &countingRenderer{}
	svc := NewMaterializeService(renderer)
	template, doc := materializeFixture()

	_, err := svc.Materialize(template, doc, []BatchRow{{EANCode: "1", Quantity: 4}}, UnitUIPx, 0)
	require.NoError(t, err)

	// Every label has a distinct serial, so no cache hits
	require.Equal(t, 4, renderer.barcodeCalls)
}

func TestMaterializeFieldValuesAndStaticContent(t *testing.T) {
	svc := NewMaterializeService(&countingRenderer{})
	template, doc := materializeFixture()
	doc.Items = append(doc.Items, layout.NormalizeItem(layout.Item{
		FieldID: "f4", Name: "Care", Key: "care_note", FieldType: layout.FieldStaticText, StaticText: "Keep dry", ZIndex: 9,
	}))

	rows := []BatchRow{{EANCode: "1", Quantity: 1, FieldValues: map[string]string{"product_name": "Mug"}}}
	labels, err := svc.Materialize(template, doc, rows, UnitUIPx, 0)
	require.NoError(t, err)

	values := map[string]string{}
	for _, el := range labels[0].Elements {
		values[el.Key] = el.Value
	}
	require.Equal(t, "Mug", values["product_name"])
	require.Equal(t, "Keep dry", values["care_note"])
}

func TestMaterializeQRJSONMode(t *testing.T) {
	svc := NewMaterializeService(&countingRenderer{})
	template, doc := materializeFixture()
	template.QRPayloadMode = models.QRPayloadJSON
	doc.Items = append(doc.Items, layout.NormalizeItem(layout.Item{
		FieldID: "f5", Name: "QR", Key: "qr", FieldType: layout.FieldQR, X: 400, Y: 14, Width: 98, Height: 98, ZIndex: 5,
	}))

	rows := []BatchRow{{EANCode: "123", GS1Code: "G", Quantity: 1, FieldValues: map[string]string{"product_name": "Mug"}}}
	labels, err := svc.Materialize(template, doc, rows, UnitUIPx, 0)
	require.NoError(t, err)

	found := false
	for _, el := range labels[0].Elements {
		if el.FieldType == layout.FieldQR {
			found = true
			require.Equal(t, `{"ean":"123","gs1":"G","product_name":"Mug"}`, el.Value)
			require.Equal(t, fmt.Sprintf("data:qr/%s", el.Value), el.ImageData)
		}
	}
	require.True(t, found, "qr element missing")
}

func TestRowsForBatch(t *testing.T) {
	single := &models.LabelBatch{Mode: models.BatchModeSingle, EANCode: "1", Quantity: 3, FieldValues: `{"a":"b"}`}
	rows := RowsForBatch(single)
	require.Len(t, rows, 1)
	require.Equal(t, 3, rows[0].Quantity)
	require.Equal(t, "b", rows[0].FieldValues["a"])

	multi := &models.LabelBatch{
		Mode: models.BatchModeMulti,
		Items: []models.LabelBatchItem{
			{EANCode: "1", Quantity: 1},
			{EANCode: "2", Quantity: 2},
		},
	}
	rows = RowsForBatch(multi)
	require.Len(t, rows, 2)
	require.Equal(t, "2", rows[1].EANCode)
}
