package bulkimport

import (
	"strings"
	"testing"
)

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"EAN_CODE":     "EAN_CODE",
		"ean code":     "EAN_CODE",
		"  Ean  Code ": "EAN_CODE",
		"ean-code":     "EANCODE",
		"Quantity":     "QUANTITY",
		"product_name": "PRODUCT_NAME",
	}
	for in, want := range cases {
		if got := NormalizeHeader(in); got != want {
			t.Fatalf("NormalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpectedHeaders(t *testing.T) {
	headers := ExpectedHeaders([]string{"product_name", "mrp"})
	want := "EAN_CODE,GS1_CODE,QUANTITY,product_name,mrp"
	if strings.Join(headers, ",") != want {
		t.Fatalf("unexpected headers: %v", headers)
	}
}

func TestParseCSVSkipsBlankRowsAndBOM(t *testing.T) {
	content := "\xEF\xBB\xBFEAN_CODE,QUANTITY,product_name\n123,2,Candle\n,,\n456,,Mug\n"

	headers, rows, err := ParseCSV([]byte(content))
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	if headers[0] != "EAN_CODE" {
		t.Fatalf("BOM not stripped: %q", headers[0])
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d", len(rows))
	}
	if rows[1]["EAN_CODE"] != "456" || rows[1]["QUANTITY"] != "" {
		t.Fatalf("unexpected row: %v", rows[1])
	}
}

func TestTemplateRoundTripCSV(t *testing.T) {
	headers := ExpectedHeaders([]string{"product_name"})

	data, err := TemplateCSV(headers)
	if err != nil {
		t.Fatalf("TemplateCSV error: %v", err)
	}

	parsedHeaders, rows, err := ParseCSV(data)
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("template file should have no data rows")
	}
	if strings.Join(parsedHeaders, ",") != strings.Join(headers, ",") {
		t.Fatalf("headers mangled: %v", parsedHeaders)
	}
}

func TestTemplateRoundTripXLSX(t *testing.T) {
	headers := ExpectedHeaders([]string{"product_name", "mrp"})

	data, err := TemplateXLSX(headers)
	if err != nil {
		t.Fatalf("TemplateXLSX error: %v", err)
	}

	parsedHeaders, rows, err := Parse("import_template.xlsx", data)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("template file should have no data rows")
	}
	if strings.Join(parsedHeaders, ",") != strings.Join(headers, ",") {
		t.Fatalf("headers mangled: %v", parsedHeaders)
	}
}

func TestValidateAcceptsCaseInsensitiveHeaders(t *testing.T) {
	headers := []string{"ean code", "gs1 code", "quantity", "Product_Name"}
	rows := []map[string]string{
		{"ean code": "1234567890", "gs1 code": "", "quantity": "2", "Product_Name": "Candle"},
	}

	out, errs := Validate([]string{"product_name"}, headers, rows)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	if out[0].EANCode != "1234567890" || out[0].Quantity != 2 {
		t.Fatalf("unexpected row: %+v", out[0])
	}
	if out[0].FieldValues["product_name"] != "Candle" {
		t.Fatalf("field value not mapped: %+v", out[0].FieldValues)
	}
}

func TestValidateHeaderErrorsAbortRowChecks(t *testing.T) {
	headers := []string{"GS1_CODE"} // missing EAN_CODE, QUANTITY and the var column
	rows := []map[string]string{{"GS1_CODE": "x"}}

	out, errs := Validate([]string{"product_name"}, headers, rows)
	if out != nil {
		t.Fatalf("expected no rows on header errors")
	}
	if len(errs) != 3 {
		t.Fatalf("expected 3 header errors, got %v", errs)
	}
	for _, e := range errs {
		if strings.Contains(e, "Row ") {
			t.Fatalf("row error leaked past header failure: %s", e)
		}
	}
}

func TestValidateAggregatesRowErrors(t *testing.T) {
	headers := []string{"EAN_CODE", "GS1_CODE", "QUANTITY"}
	rows := []map[string]string{
		{"EAN_CODE": "1", "QUANTITY": "abc"},
		{"EAN_CODE": "", "QUANTITY": "2"},
		{"EAN_CODE": "3", "QUANTITY": "500"},
		{"EAN_CODE": "4", "QUANTITY": "5"}, // valid, but batch still rejected
	}

	out, errs := Validate(nil, headers, rows)
	if out != nil {
		t.Fatalf("expected no rows when any row fails")
	}
	if len(errs) != 3 {
		t.Fatalf("expected 3 row errors, got %v", errs)
	}
}

func TestValidateQuantityDefaultsToOne(t *testing.T) {
	headers := []string{"EAN_CODE", "QUANTITY"}
	rows := []map[string]string{{"EAN_CODE": "123", "QUANTITY": ""}}

	out, errs := Validate(nil, headers, rows)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if out[0].Quantity != 1 {
		t.Fatalf("blank quantity should default to 1, got %d", out[0].Quantity)
	}
}

func TestValidateEmptyFile(t *testing.T) {
	out, errs := Validate(nil, []string{"EAN_CODE", "QUANTITY"}, nil)
	if out != nil || len(errs) != 1 {
		t.Fatalf("expected single empty-file error, got rows=%v errs=%v", out, errs)
	}
}
