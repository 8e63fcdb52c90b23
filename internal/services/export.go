package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/eyepatch-3097/labelz-deploy/internal/models"
	"github.com/eyepatch-3097/labelz-deploy/internal/payload"
	"github.com/eyepatch-3097/labelz-deploy/internal/storage"
)

// PrintConfig is the stock/page configuration a print sheet is composed
// against, stored per template in print_defaults.
type PrintConfig struct {
	PageWidthMM  float64 `json:"page_width_mm"`
	PageHeightMM float64 `json:"page_height_mm"`
	MarginMM     float64 `json:"margin_mm"`
	GapMM        float64 `json:"gap_mm"`
	Columns      int     `json:"columns"`
}

// A4 portrait with a 10mm margin
func defaultPrintConfig() PrintConfig {
	return PrintConfig{
		PageWidthMM:  210,
		PageHeightMM: 297,
		MarginMM:     10,
		GapMM:        2,
	}
}

// ParsePrintConfig decodes a template's print defaults, falling back to A4
// for anything missing or malformed.
func ParsePrintConfig(raw string) PrintConfig {
	cfg := defaultPrintConfig()
	if raw == "" {
		return cfg
	}
	var parsed PrintConfig
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return cfg
	}
	if parsed.PageWidthMM > 0 {
		cfg.PageWidthMM = parsed.PageWidthMM
	}
	if parsed.PageHeightMM > 0 {
		cfg.PageHeightMM = parsed.PageHeightMM
	}
	if parsed.MarginMM > 0 {
		cfg.MarginMM = parsed.MarginMM
	}
	if parsed.GapMM > 0 {
		cfg.GapMM = parsed.GapMM
	}
	if parsed.Columns > 0 {
		cfg.Columns = parsed.Columns
	}
	return cfg
}

type ExportService struct {
	layouts      *LayoutService
	materializer *MaterializeService
	storageCli   storage.StorageClient
	usage        *UsageService
}

func NewExportService(layouts *LayoutService, materializer *MaterializeService, storageCli storage.StorageClient, usage *UsageService) *ExportService {
	return &ExportService{
		layouts:      layouts,
		materializer: materializer,
		storageCli:   storageCli,
		usage:        usage,
	}
}

// BatchCSV writes one CSV row per label with the exact encoded barcode and
// QR values plus the user-entered variable columns in template order.
func (s *ExportService) BatchCSV(template *models.LabelTemplate, batch *models.LabelBatch) ([]byte, error) {
	doc, ok, err := s.layouts.Document(template)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLayoutMissing
	}

	varKeys := doc.VariableKeys()

	header := []string{"label_index", "serial", "ean_code", "gs1_code", "barcode_value", "qr_value"}
	header = append(header, varKeys...)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	qrMode := payload.QRModeSimple
	if template.QRPayloadMode == models.QRPayloadJSON {
		qrMode = payload.QRModeJSON
	}

	index := 0
	for _, row := range RowsForBatch(batch) {
		qty := row.Quantity
		if qty < 1 {
			qty = 1
		}
		for i := 1; i <= qty; i++ {
			index++
			serial := payload.Serial(i, qty)
			record := []string{
				strconv.Itoa(index),
				serial,
				row.EANCode,
				row.GS1Code,
				payload.BarcodeValue(row.EANCode, row.GS1Code, serial),
				payload.QRValue(qrMode, row.EANCode, row.GS1Code, serial, row.FieldValues, doc.Items),
			}
			for _, key := range varKeys {
				record = append(record, row.FieldValues[key])
			}
			if err := w.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write csv row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	s.usage.Record(batch.WorkspaceID, models.EventBatchExport, 1)

	return buf.Bytes(), nil
}

// printSheetData is the html/template input for a print sheet.
type printSheetData struct {
	Config PrintConfig
	Pages  [][]positionedLabel
}

type positionedLabel struct {
	XMM   float64
	YMM   float64
	Label RenderedLabel
}

// PrintSheet materializes a batch in millimeter space and flows the labels
// onto pages per the template's stock configuration.
func (s *ExportService) PrintSheet(template *models.LabelTemplate, batch *models.LabelBatch) (string, error) {
	doc, ok, err := s.layouts.Document(template)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLayoutMissing
	}

	labels, err := s.materializer.Materialize(template, doc, RowsForBatch(batch), UnitMM, 0)
	if err != nil {
		return "", err
	}

	cfg := ParsePrintConfig(template.PrintDefaults)
	pages := flowLabels(cfg, labels)

	var buf bytes.Buffer
	if err := printSheetTmpl.Execute(&buf, printSheetData{Config: cfg, Pages: pages}); err != nil {
		return "", fmt.Errorf("failed to render print sheet: %w", err)
	}

	s.usage.Record(batch.WorkspaceID, models.EventPrintSheet, 1)

	return buf.String(), nil
}

// flowLabels lays labels left-to-right, top-to-bottom inside the page
// margins, starting a new page when a row no longer fits.
func flowLabels(cfg PrintConfig, labels []RenderedLabel) [][]positionedLabel {
	var pages [][]positionedLabel
	if len(labels) == 0 {
		return pages
	}

	labelW := labels[0].Width
	labelH := labels[0].Height

	usableW := cfg.PageWidthMM - 2*cfg.MarginMM
	usableH := cfg.PageHeightMM - 2*cfg.MarginMM

	cols := cfg.Columns
	if cols <= 0 {
		cols = int((usableW + cfg.GapMM) / (labelW + cfg.GapMM))
		if cols < 1 {
			cols = 1
		}
	}
	rowsPerPage := int((usableH + cfg.GapMM) / (labelH + cfg.GapMM))
	if rowsPerPage < 1 {
		rowsPerPage = 1
	}
	perPage := cols * rowsPerPage

	for i, label := range labels {
		slot := i % perPage
		if slot == 0 {
			pages = append(pages, nil)
		}
		col := slot % cols
		row := slot / cols

		pages[len(pages)-1] = append(pages[len(pages)-1], positionedLabel{
			XMM:   cfg.MarginMM + float64(col)*(labelW+cfg.GapMM),
			YMM:   cfg.MarginMM + float64(row)*(labelH+cfg.GapMM),
			Label: label,
		})
	}

	return pages
}

// PersistArtifact uploads an export artifact and returns a time-limited
// download URL for it.
func (s *ExportService) PersistArtifact(ctx context.Context, batchID, filename, contentType string, data []byte) (*storage.UploadResult, string, error) {
	if s.storageCli == nil {
		return nil, "", fmt.Errorf("no storage client configured")
	}

	objectName := storage.GenerateExportObjectName(batchID, filename)
	result, err := s.storageCli.UploadFile(ctx, bytes.NewReader(data), objectName, contentType)
	if err != nil {
		return nil, "", fmt.Errorf("failed to upload artifact: %w", err)
	}

	signedURL, err := s.storageCli.GetSignedURL(objectName, 24*time.Hour)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign artifact url: %w", err)
	}

	return result, signedURL, nil
}

var printSheetTmpl = template.Must(template.New("print-sheet").Funcs(template.FuncMap{
	// Rendered images are data URIs, which html/template would otherwise
	// filter out of src attributes.
	"dataURI": func(s string) template.URL { return template.URL(s) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  @page { size: {{.Config.PageWidthMM}}mm {{.Config.PageHeightMM}}mm; margin: 0; }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: Inter, sans-serif; }
  .page { position: relative; width: {{.Config.PageWidthMM}}mm; height: {{.Config.PageHeightMM}}mm; page-break-after: always; overflow: hidden; }
  .label { position: absolute; overflow: hidden; }
  .el { position: absolute; overflow: hidden; }
  .el img { width: 100%; height: 100%; }
</style>
</head>
<body>
{{range .Pages}}
<div class="page">
  {{range .}}
  <div class="label" style="left:{{.XMM}}mm;top:{{.YMM}}mm;width:{{.Label.Width}}mm;height:{{.Label.Height}}mm;background:{{.Label.BgColor}};">
    {{range .Label.Elements}}
    <div class="el" style="left:{{.X}}mm;top:{{.Y}}mm;width:{{.Width}}mm;height:{{.Height}}mm;z-index:{{.ZIndex}};{{if .BgColor}}background:{{.BgColor}};{{end}}">
      {{if .ImageData}}<img src="{{dataURI .ImageData}}" alt="{{.FieldType}}">{{else if eq .FieldType "SHAPE"}}<div style="width:100%;height:100%;background:{{.ShapeColor}};{{if eq .ShapeType "CIRCLE"}}border-radius:50%;{{end}}"></div>{{else}}<span style="font-family:{{.FontFamily}};font-size:{{.FontSize}}px;color:{{.TextColor}};text-align:{{.TextAlign}};display:block;{{if .FontBold}}font-weight:bold;{{end}}{{if .FontItalic}}font-style:italic;{{end}}{{if .FontUnderline}}text-decoration:underline;{{end}}">{{if .ShowLabel}}{{.Name}}: {{end}}{{.Value}}</span>{{end}}
    </div>
    {{end}}
  </div>
  {{end}}
</div>
{{end}}
</body>
</html>
`))
