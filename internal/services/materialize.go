package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/eyepatch-3097/labelz-deploy/internal/layout"
	"github.com/eyepatch-3097/labelz-deploy/internal/models"
	"github.com/eyepatch-3097/labelz-deploy/internal/payload"
	"github.com/eyepatch-3097/labelz-deploy/internal/render"
)

var ErrLayoutMissing = errors.New("template has no saved layout")

// Unit selects the coordinate space of materialized output
type Unit string

const (
	UnitUIPx Unit = "ui_px" // editor pixels, for on-screen previews
	UnitMM   Unit = "mm"    // millimeters, for print sheets
)

// RenderedElement is one positioned element of a finished label. Code fields
// carry both the encoded value and a rendered PNG data URL.
type RenderedElement struct {
	Key       string  `json:"key"`
	Name      string  `json:"name"`
	FieldType string  `json:"field_type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	ZIndex    int     `json:"z_index"`

	Value     string `json:"value,omitempty"`
	ImageData string `json:"image_data,omitempty"`

	FontFamily    string `json:"font_family,omitempty"`
	FontSize      int    `json:"font_size,omitempty"`
	FontBold      bool   `json:"font_bold,omitempty"`
	FontItalic    bool   `json:"font_italic,omitempty"`
	FontUnderline bool   `json:"font_underline,omitempty"`
	TextAlign     string `json:"text_align,omitempty"`
	TextColor     string `json:"text_color,omitempty"`
	BgColor       string `json:"bg_color,omitempty"`
	ShowLabel     bool   `json:"show_label"`

	ShapeType  string `json:"shape_type,omitempty"`
	ShapeColor string `json:"shape_color,omitempty"`
}

// RenderedLabel is one finished label instance.
type RenderedLabel struct {
	Index    int               `json:"index"`
	Serial   string            `json:"serial"`
	EANCode  string            `json:"ean_code"`
	GS1Code  string            `json:"gs1_code"`
	Width    float64           `json:"width"`
	Height   float64           `json:"height"`
	Unit     Unit              `json:"unit"`
	BgColor  string            `json:"bg_color"`
	Elements []RenderedElement `json:"elements"`
}

// BatchRow is one SKU line to materialize: quantity labels with serials
// restarting at 001 for each row.
type BatchRow struct {
	EANCode     string
	GS1Code     string
	Quantity    int
	FieldValues map[string]string
}

type MaterializeService struct {
	renderer render.Renderer
}

func NewMaterializeService(renderer render.Renderer) *MaterializeService {
	return &MaterializeService{renderer: renderer}
}

// RowsForBatch flattens a stored batch into materializer input.
func RowsForBatch(batch *models.LabelBatch) []BatchRow {
	if batch.Mode == models.BatchModeMulti && len(batch.Items) > 0 {
		rows := make([]BatchRow, 0, len(batch.Items))
		for _, item := range batch.Items {
			rows = append(rows, BatchRow{
				EANCode:     item.EANCode,
				GS1Code:     item.GS1Code,
				Quantity:    item.Quantity,
				FieldValues: item.FieldValueMap(),
			})
		}
		return rows
	}
	return []BatchRow{{
		EANCode:     batch.EANCode,
		GS1Code:     batch.GS1Code,
		Quantity:    batch.Quantity,
		FieldValues: batch.FieldValueMap(),
	}}
}

// Materialize produces finished labels for every row of a batch against the
// template's current layout. limit > 0 caps the total label count, which the
// preview path uses to render only the first label.
func (s *MaterializeService) Materialize(template *models.LabelTemplate, doc layout.Document, rows []BatchRow, unit Unit, limit int) ([]RenderedLabel, error) {
	if len(doc.Items) == 0 {
		return nil, ErrLayoutMissing
	}

	engine := layout.Compute(template.WidthCM, template.HeightCM, template.DPI)

	// Convert out of the editor space the layout was authored under, not a
	// freshly computed one; the template's cm size may have changed since.
	uiPxPerCM := doc.Meta.UIPxPerCM
	if uiPxPerCM <= 0 {
		uiPxPerCM = layout.UIPxPerCM(template.WidthCM, template.HeightCM)
	}
	scale := 1.0
	if unit == UnitMM {
		scale = 10.0 / uiPxPerCM
	}

	items := make([]layout.Item, len(doc.Items))
	copy(items, doc.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ZIndex < items[j].ZIndex
	})

	labelW := template.WidthCM * uiPxPerCM * scale
	labelH := template.HeightCM * uiPxPerCM * scale

	qrMode := payload.QRModeSimple
	if template.QRPayloadMode == models.QRPayloadJSON {
		qrMode = payload.QRModeJSON
	}

	var labels []RenderedLabel
	for _, row := range rows {
		qty := row.Quantity
		if qty < 1 {
			qty = 1
		}

		// Barcode and QR images are regenerated for every label because the
		// serial is baked into the encoded value; identical values within a
		// row reuse the cached render.
		imageCache := make(map[string]string)

		for i := 1; i <= qty; i++ {
			if limit > 0 && len(labels) >= limit {
				return labels, nil
			}

			serial := payload.Serial(i, qty)
			barcodeValue := payload.BarcodeValue(row.EANCode, row.GS1Code, serial)
			qrValue := payload.QRValue(qrMode, row.EANCode, row.GS1Code, serial, row.FieldValues, doc.Items)

			label := RenderedLabel{
				Index:   len(labels) + 1,
				Serial:  serial,
				EANCode: row.EANCode,
				GS1Code: row.GS1Code,
				Width:   labelW,
				Height:  labelH,
				Unit:    unit,
				BgColor: template.CanvasBgColor,
			}

			for _, it := range items {
				el := RenderedElement{
					Key:           it.Key,
					Name:          it.Name,
					FieldType:     it.FieldType,
					X:             float64(it.X) * scale,
					Y:             float64(it.Y) * scale,
					Width:         float64(it.Width) * scale,
					Height:        float64(it.Height) * scale,
					ZIndex:        it.ZIndex,
					FontFamily:    it.FontFamily,
					FontSize:      it.FontSize,
					FontBold:      it.FontBold,
					FontItalic:    it.FontItalic,
					FontUnderline: it.FontUnderline,
					TextAlign:     it.TextAlign,
					TextColor:     it.TextColor,
					BgColor:       it.BgColor,
					ShowLabel:     it.ShowLabel,
					ShapeType:     it.ShapeType,
					ShapeColor:    it.ShapeColor,
				}

				switch strings.ToUpper(it.FieldType) {
				case layout.FieldBarcode:
					el.Value = barcodeValue
					img, err := s.renderImage(imageCache, "bc", barcodeValue, engine.UIToReal(it.Width), engine.UIToReal(it.Height), s.barcodePNG)
					if err != nil {
						return nil, fmt.Errorf("failed to render barcode: %w", err)
					}
					el.ImageData = img
				case layout.FieldQR:
					el.Value = qrValue
					size := engine.UIToReal(minInt(it.Width, it.Height))
					img, err := s.renderImage(imageCache, "qr", qrValue, size, size, s.qrPNG)
					if err != nil {
						return nil, fmt.Errorf("failed to render qr code: %w", err)
					}
					el.ImageData = img
				case layout.FieldSerial:
					el.Value = serial
				case layout.FieldStaticText:
					el.Value = it.StaticText
				case layout.FieldShape:
					// Shape carries no value
				default:
					el.Value = row.FieldValues[it.Key]
				}

				label.Elements = append(label.Elements, el)
			}

			labels = append(labels, label)
		}
	}

	return labels, nil
}

type imageRenderFunc func(value string, width, height int) (string, error)

func (s *MaterializeService) renderImage(cache map[string]string, kind, value string, width, height int, fn imageRenderFunc) (string, error) {
	cacheKey := fmt.Sprintf("%s:%s:%dx%d", kind, value, width, height)
	if img, ok := cache[cacheKey]; ok {
		return img, nil
	}
	img, err := fn(value, width, height)
	if err != nil {
		return "", err
	}
	cache[cacheKey] = img
	return img, nil
}

func (s *MaterializeService) barcodePNG(value string, width, height int) (string, error) {
	return s.renderer.BarcodePNG(value, width, height)
}

func (s *MaterializeService) qrPNG(value string, width, _ int) (string, error) {
	return s.renderer.QRPNG(value, width)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
