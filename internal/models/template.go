package models

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Category represents the product category a label template targets
type Category string

const (
	CategoryApparel        Category = "APPAREL"
	CategoryFootwear       Category = "FOOTWEAR"
	CategoryCandles        Category = "CANDLES"
	CategoryIdols          Category = "IDOLS"
	CategoryHomeDecor      Category = "HOME_DECOR"
	CategoryHomeFurnishing Category = "HOME_FURNISHING"
	CategoryFMCG           Category = "FMCG"
	CategoryElectronics    Category = "ELECTRONICS"
	CategoryJewellery      Category = "JEWELLERY"
	CategoryBeauty         Category = "BEAUTY"
	CategoryEquipments     Category = "EQUIPMENTS"
	CategorySupplies       Category = "SUPPLIES"
	CategoryOthers         Category = "OTHERS"
)

// QR payload modes configurable per template
const (
	QRPayloadSimple = "simple"
	QRPayloadJSON   = "json"
)

type LabelTemplate struct {
	ID          string `gorm:"primaryKey" json:"id"`
	WorkspaceID string `gorm:"not null;index" json:"workspace_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	WidthCM  float64 `gorm:"not null" json:"width_cm"`
	HeightCM float64 `gorm:"not null" json:"height_cm"`
	DPI      int     `gorm:"default:300" json:"dpi"`

	CanvasBgColor string `gorm:"default:'#ffffff'" json:"canvas_bg_color"`

	// Canonical layout document (single source of truth for the design);
	// label_template_fields rows are a derived, queryable projection.
	LayoutJSON string `gorm:"type:json" json:"layout_json"`

	// Page/stock configuration used by the print sheet builder
	PrintDefaults string `gorm:"type:json" json:"print_defaults"`

	QRPayloadMode string `gorm:"type:varchar(10);default:'simple'" json:"qr_payload_mode"`

	Category       Category `gorm:"type:varchar(30);default:'OTHERS'" json:"category"`
	CustomCategory string   `json:"custom_category"`

	// Exactly one base template per workspace; it is the seed design and
	// can never be deleted.
	IsBase       bool   `gorm:"default:false" json:"is_base"`
	TemplateCode string `gorm:"uniqueIndex" json:"template_code"`

	CreatedBy string         `gorm:"index" json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Fields []LabelTemplateField `gorm:"foreignKey:TemplateID" json:"fields,omitempty"`
}

func (LabelTemplate) TableName() string {
	return "label_templates"
}

// LabelTemplateField mirrors one layout item as a database row. Position and
// size are stored in print (DPI-based) pixels; the layout document keeps the
// editor-space originals.
type LabelTemplateField struct {
	ID         string `gorm:"primaryKey" json:"id"`
	TemplateID string `gorm:"not null;index" json:"template_id"`

	// Stable identity matching the layout item across edit sessions
	FieldID string `gorm:"index" json:"field_id"`

	Name      string `gorm:"not null" json:"name"`
	Key       string `gorm:"not null" json:"key"`
	FieldType string `gorm:"type:varchar(20);default:'TEXT'" json:"field_type"`

	X      int `gorm:"default:0" json:"x"`
	Y      int `gorm:"default:0" json:"y"`
	Width  int `gorm:"default:100" json:"width"`
	Height int `gorm:"default:24" json:"height"`
	ZIndex int `gorm:"default:0" json:"z_index"`

	FontFamily    string `gorm:"default:'Inter'" json:"font_family"`
	FontSize      int    `gorm:"default:14" json:"font_size"`
	FontBold      bool   `gorm:"default:false" json:"font_bold"`
	FontItalic    bool   `gorm:"default:false" json:"font_italic"`
	FontUnderline bool   `gorm:"default:false" json:"font_underline"`
	TextAlign     string `gorm:"type:varchar(10);default:'left'" json:"text_align"`
	TextColor     string `gorm:"default:'#000000'" json:"text_color"`
	BgColor       string `gorm:"default:'transparent'" json:"bg_color"`
	ShowLabel     bool   `gorm:"default:true" json:"show_label"`

	StaticText string `json:"static_text,omitempty"`
	ShapeType  string `gorm:"type:varchar(20)" json:"shape_type,omitempty"`
	ShapeColor string `gorm:"default:'#000000'" json:"shape_color,omitempty"`

	WorkspaceFieldID string `gorm:"index" json:"workspace_field_id,omitempty"`
	Order            int    `gorm:"default:0" json:"order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LabelTemplateField) TableName() string {
	return "label_template_fields"
}

// GlobalTemplate is a superadmin-curated template visible to all orgs as a
// recommended starting point; not tied to any workspace.
type GlobalTemplate struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	WidthCM  float64 `gorm:"default:5" json:"width_cm"`
	HeightCM float64 `gorm:"default:5" json:"height_cm"`
	DPI      int     `gorm:"default:300" json:"dpi"`

	LayoutJSON string `gorm:"type:json" json:"layout_json"`

	Category       Category `gorm:"type:varchar(30);default:'OTHERS'" json:"category"`
	CustomCategory string   `json:"custom_category"`

	CreatedBy string    `gorm:"index" json:"created_by"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Fields []GlobalTemplateField `gorm:"foreignKey:TemplateID" json:"fields,omitempty"`
}

func (GlobalTemplate) TableName() string {
	return "global_templates"
}

type GlobalTemplateField struct {
	ID         string `gorm:"primaryKey" json:"id"`
	TemplateID string `gorm:"not null;index" json:"template_id"`

	Name      string `gorm:"not null" json:"name"`
	Key       string `gorm:"not null" json:"key"`
	FieldType string `gorm:"type:varchar(20)" json:"field_type"`

	X      int `gorm:"default:0" json:"x"`
	Y      int `gorm:"default:0" json:"y"`
	Width  int `gorm:"default:140" json:"width"`
	Height int `gorm:"default:32" json:"height"`
	Order  int `gorm:"default:0" json:"order"`
}

func (GlobalTemplateField) TableName() string {
	return "global_template_fields"
}

// GenerateTemplateCode builds a unique code like ORGWRKLAB12ABF3 from org,
// workspace and template name prefixes plus random and hash suffixes.
func GenerateTemplateCode(orgName, workspaceName, templateName string) string {
	prefix := func(s, fallback string) string {
		s = strings.TrimSpace(s)
		if s == "" {
			return fallback
		}
		if len(s) > 3 {
			s = s[:3]
		}
		return strings.ToUpper(s)
	}

	base := prefix(orgName, "ORG") + prefix(workspaceName, "WS") + prefix(templateName, "TPL")
	randPart := randomCode(3)
	sum := sha1.Sum([]byte(base + randPart))
	return base + randPart + strings.ToUpper(hex.EncodeToString(sum[:])[:3])
}
