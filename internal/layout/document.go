package layout

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Field types recognized on a label canvas.
const (
	FieldText       = "TEXT"
	FieldImageURL   = "IMAGE_URL"
	FieldPrice      = "PRICE"
	FieldSerial     = "SERIAL"
	FieldBarcode    = "BARCODE"
	FieldQR         = "QRCODE"
	FieldStaticText = "STATIC_TEXT"
	FieldShape      = "SHAPE"
)

// Shape kinds for SHAPE items.
const (
	ShapeRect     = "RECT"
	ShapeCircle   = "CIRCLE"
	ShapeTriangle = "TRIANGLE"
	ShapeStar     = "STAR"
)

// Meta records the editor scale a layout was authored under. Consumers must
// convert stored item coordinates with this scale, not a recomputed one: the
// template's cm dimensions may have changed since the layout was saved.
type Meta struct {
	UIMaxSidePx float64 `json:"ui_max_side_px"`
	UIPxPerCM   float64 `json:"ui_px_per_cm"`
	Version     int     `json:"version"`
}

// Item is one positioned, typed, styled element of a label design.
// Coordinates and sizes are in editor pixels (see Meta).
type Item struct {
	FieldID   string `json:"field_id,omitempty"`
	Name      string `json:"name"`
	Key       string `json:"key"`
	FieldType string `json:"field_type"`

	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
	ZIndex int `json:"z_index"`

	FontFamily    string `json:"font_family"`
	FontSize      int    `json:"font_size"`
	FontBold      bool   `json:"font_bold"`
	FontItalic    bool   `json:"font_italic"`
	FontUnderline bool   `json:"font_underline"`
	TextAlign     string `json:"text_align"`
	TextColor     string `json:"text_color"`
	BgColor       string `json:"bg_color"`
	ShowLabel     bool   `json:"show_label"`

	StaticText string `json:"static_text,omitempty"`
	ShapeType  string `json:"shape_type,omitempty"`
	ShapeColor string `json:"shape_color,omitempty"`
}

// Document is the canonical layout representation stored on a template.
type Document struct {
	Meta  Meta   `json:"_meta"`
	Items []Item `json:"items"`
}

// IsSpecial reports whether the item carries no user-supplied value:
// codes are derived, shapes and static text come from the design itself.
func (it Item) IsSpecial() bool {
	switch strings.ToUpper(it.FieldType) {
	case FieldBarcode, FieldQR, FieldShape, FieldStaticText, FieldSerial:
		return true
	}
	return false
}

// HasBarcode reports whether the document contains a mandatory barcode item.
func (d Document) HasBarcode() bool {
	for _, it := range d.Items {
		if strings.ToUpper(it.FieldType) == FieldBarcode || it.Key == "barcode" {
			return true
		}
	}
	return false
}

// VariableKeys returns the unique keys of user-input fields in item order.
func (d Document) VariableKeys() []string {
	keys := make([]string, 0, len(d.Items))
	seen := make(map[string]bool)
	for _, it := range d.Items {
		if it.IsSpecial() || it.Key == "" || seen[it.Key] {
			continue
		}
		keys = append(keys, it.Key)
		seen[it.Key] = true
	}
	return keys
}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugKey(name string) string {
	s := nonSlugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(s, "_")
}

// NormalizeItem fills defaults so downstream consumers always see every
// attribute. Keys are not invented here; see AssignKeys.
func NormalizeItem(it Item) Item {
	it.Key = strings.TrimSpace(it.Key)
	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" {
		if it.Key != "" {
			it.Name = it.Key
		} else {
			it.Name = "Field"
		}
	}

	it.FieldType = strings.ToUpper(strings.TrimSpace(it.FieldType))
	if it.FieldType == "" {
		it.FieldType = FieldText
	}

	it.TextAlign = strings.ToLower(strings.TrimSpace(it.TextAlign))
	switch it.TextAlign {
	case "left", "center", "right":
	default:
		it.TextAlign = "left"
	}

	if it.Width < 1 {
		it.Width = 10
	}
	if it.Height < 1 {
		it.Height = 10
	}

	it.FontFamily = strings.TrimSpace(it.FontFamily)
	if it.FontFamily == "" {
		it.FontFamily = "Inter"
	}
	if it.FontSize <= 0 {
		it.FontSize = 14
	}
	it.TextColor = strings.TrimSpace(it.TextColor)
	if it.TextColor == "" {
		it.TextColor = "#000000"
	}
	it.BgColor = strings.TrimSpace(it.BgColor)
	if it.BgColor == "" {
		it.BgColor = "transparent"
	}

	it.ShapeType = strings.ToUpper(strings.TrimSpace(it.ShapeType))
	if it.FieldType == FieldShape && it.ShapeType == "" {
		it.ShapeType = ShapeRect
	}
	it.ShapeColor = strings.TrimSpace(it.ShapeColor)
	if it.ShapeColor == "" {
		it.ShapeColor = "#000000"
	}

	return it
}

// NormalizeItems normalizes every item in order.
func NormalizeItems(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		out = append(out, NormalizeItem(it))
	}
	return out
}

// AssignKeys fills blank keys (slug of name, else field_N) and blank field
// IDs, so reconciliation always has a stable identity and a bindable key.
// Generated keys get a numeric suffix on collision, so two keyless items
// sharing a name (two shapes both called "Shape") still come out distinct.
// Explicit keys are left alone for DuplicateKey to judge.
func AssignKeys(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)

	used := make(map[string]bool, len(out))
	for _, it := range out {
		if it.Key != "" {
			used[it.Key] = true
		}
	}

	for i := range out {
		if out[i].Key == "" {
			base := slugKey(out[i].Name)
			if base == "" {
				base = fmt.Sprintf("field_%d", i+1)
			}
			key := base
			for n := 2; used[key]; n++ {
				key = fmt.Sprintf("%s_%d", base, n)
			}
			out[i].Key = key
			used[key] = true
		}
		if out[i].FieldID == "" {
			out[i].FieldID = uuid.New().String()
		}
	}
	return out
}

// DuplicateKey returns the first variable key appearing on more than one
// item, or "" if keys are unique.
func DuplicateKey(items []Item) string {
	seen := make(map[string]bool)
	for _, it := range items {
		if it.Key == "" {
			continue
		}
		if seen[it.Key] {
			return it.Key
		}
		seen[it.Key] = true
	}
	return ""
}

// EnsureSchema normalizes raw stored layout JSON into the canonical document
// shape. Legacy storage may hold a bare item array; missing meta is
// backfilled from the template's current dimensions.
func EnsureSchema(raw []byte, widthCM, heightCM float64) (Document, error) {
	fallback := Meta{UIMaxSidePx: UIMaxSidePx, UIPxPerCM: UIPxPerCM(widthCM, heightCM)}

	if len(raw) == 0 {
		return Document{Meta: fallback}, nil
	}

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return Document{Meta: fallback}, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var items []Item
		if err := json.Unmarshal(raw, &items); err != nil {
			return Document{}, fmt.Errorf("invalid layout document: %w", err)
		}
		return Document{Meta: fallback, Items: NormalizeItems(items)}, nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("invalid layout document: %w", err)
	}
	if doc.Meta.UIMaxSidePx == 0 {
		doc.Meta.UIMaxSidePx = UIMaxSidePx
	}
	if doc.Meta.UIPxPerCM == 0 {
		doc.Meta.UIPxPerCM = fallback.UIPxPerCM
	}
	doc.Items = NormalizeItems(doc.Items)
	return doc, nil
}

// Encode serializes the document for storage.
func (d Document) Encode() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal layout document: %w", err)
	}
	return string(b), nil
}
