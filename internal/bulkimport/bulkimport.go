// Package bulkimport parses CSV/XLSX uploads of per-row label data, maps
// their columns to a template's variable fields and validates rows into the
// shape batch creation consumes.
package bulkimport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	RequiredCol = "EAN_CODE"
	OptionalCol = "GS1_CODE"
	QtyCol      = "QUANTITY"

	MinQuantity = 1
	MaxQuantity = 100
)

// Row is one validated, normalized import record.
type Row struct {
	EANCode     string            `json:"ean_code"`
	GS1Code     string            `json:"gs1_code"`
	Quantity    int               `json:"quantity"`
	FieldValues map[string]string `json:"field_values"`
}

var (
	spaceRe   = regexp.MustCompile(`\s+`)
	nonWordRe = regexp.MustCompile(`[^A-Za-z0-9_]+`)
)

// NormalizeHeader makes header matching case/whitespace/punctuation
// insensitive: "ean code" and "EAN_CODE" normalize identically.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	h = spaceRe.ReplaceAllString(h, "_")
	h = nonWordRe.ReplaceAllString(h, "")
	return strings.ToUpper(h)
}

// ExpectedHeaders returns the import file's header row for the given
// template variable keys: the three code columns followed by each key as-is.
func ExpectedHeaders(varKeys []string) []string {
	headers := []string{RequiredCol, OptionalCol, QtyCol}
	return append(headers, varKeys...)
}

// ParseCSV reads headers and non-empty data rows from CSV bytes. A UTF-8 BOM
// is tolerated; fully blank rows are skipped.
func ParseCSV(content []byte) ([]string, []map[string]string, error) {
	content = bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string)
		empty := true
		for i, h := range headers {
			if h == "" {
				continue
			}
			var v string
			if i < len(record) {
				v = strings.TrimSpace(record[i])
			}
			if v != "" {
				empty = false
			}
			row[h] = v
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return headers, rows, nil
}

// ParseXLSX reads headers and non-empty data rows from the first sheet of an
// XLSX workbook.
func ParseXLSX(content []byte) ([]string, []map[string]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, nil
	}
	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}

	headers := make([]string, len(all[0]))
	for i, h := range all[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]map[string]string, 0, len(all)-1)
	for _, record := range all[1:] {
		row := make(map[string]string)
		empty := true
		for i, h := range headers {
			if h == "" {
				continue
			}
			var v string
			if i < len(record) {
				v = strings.TrimSpace(record[i])
			}
			if v != "" {
				empty = false
			}
			row[h] = v
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return headers, rows, nil
}

// Parse dispatches on filename extension; anything not .xlsx is treated as
// CSV.
func Parse(filename string, content []byte) ([]string, []map[string]string, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		return ParseXLSX(content)
	}
	return ParseCSV(content)
}

// TemplateCSV produces a blank import template: just the expected header row.
func TemplateCSV(headers []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// TemplateXLSX produces a blank XLSX import template with the expected
// header row on the first sheet.
func TemplateXLSX(headers []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	cells := make([]interface{}, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate checks file headers against the template's variable keys and
// normalizes every data row. Header problems abort before any row is
// examined; row problems are aggregated so the user sees all of them at
// once. On any error the returned row slice is empty, never a partial
// batch.
func Validate(varKeys []string, fileHeaders []string, rows []map[string]string) ([]Row, []string) {
	var errs []string

	if len(rows) == 0 {
		return nil, []string{"Uploaded file has no data rows. Please fill at least 1 row."}
	}

	// normalized header -> original header as it appears in the file
	fileMap := make(map[string]string)
	for _, h := range fileHeaders {
		nh := NormalizeHeader(h)
		if nh == "" {
			continue
		}
		if _, ok := fileMap[nh]; !ok {
			fileMap[nh] = h
		}
	}

	if _, ok := fileMap[RequiredCol]; !ok {
		errs = append(errs, "Missing EAN_CODE column. Please download the correct template and re-upload.")
	}
	if _, ok := fileMap[QtyCol]; !ok {
		errs = append(errs, "Missing QUANTITY column. Please download the correct template and re-upload.")
	}
	for _, k := range varKeys {
		if _, ok := fileMap[NormalizeHeader(k)]; !ok {
			errs = append(errs, fmt.Sprintf("Missing column: %s. Please download the correct template and re-upload.", k))
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	cell := func(row map[string]string, normalized string) string {
		orig, ok := fileMap[normalized]
		if !ok {
			return ""
		}
		return strings.TrimSpace(row[orig])
	}

	normalized := make([]Row, 0, len(rows))
	for idx, r := range rows {
		rowNum := idx + 1

		ean := cell(r, RequiredCol)
		gs1 := cell(r, OptionalCol)
		qtyRaw := cell(r, QtyCol)

		qty := 1
		if qtyRaw != "" {
			parsed, err := strconv.Atoi(qtyRaw)
			if err != nil {
				errs = append(errs, fmt.Sprintf("Row %d: QUANTITY must be a whole number (%d-%d).", rowNum, MinQuantity, MaxQuantity))
				continue
			}
			qty = parsed
		}
		if qty < MinQuantity || qty > MaxQuantity {
			errs = append(errs, fmt.Sprintf("Row %d: QUANTITY must be between %d and %d.", rowNum, MinQuantity, MaxQuantity))
			continue
		}

		if ean == "" {
			errs = append(errs, fmt.Sprintf("Row %d: EAN_CODE is empty. Barcode/QR cannot be generated.", rowNum))
			continue
		}

		fv := make(map[string]string, len(varKeys))
		for _, k := range varKeys {
			fv[k] = cell(r, NormalizeHeader(k))
		}

		normalized = append(normalized, Row{
			EANCode:     ean,
			GS1Code:     gs1,
			Quantity:    qty,
			FieldValues: fv,
		})
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return normalized, nil
}

// ReadAll is a small helper for handlers dealing with multipart uploads.
func ReadAll(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return b, nil
}
