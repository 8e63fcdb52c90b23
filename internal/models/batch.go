package models

import (
	"encoding/json"
	"time"
)

// Batch modes
const (
	BatchModeSingle = "SINGLE"
	BatchModeMulti  = "MULTI"
)

// LabelBatch is one generation request. Batches are immutable once created:
// they snapshot the user-entered field values as plain data, so later
// template edits never rewrite a batch's recorded inputs.
type LabelBatch struct {
	ID          string `gorm:"primaryKey" json:"id"`
	WorkspaceID string `gorm:"not null;index" json:"workspace_id"`
	TemplateID  string `gorm:"not null;index" json:"template_id"`
	CreatedBy   string `gorm:"index" json:"created_by"`

	Mode string `gorm:"type:varchar(16);default:'SINGLE'" json:"mode"`

	EANCode  string `gorm:"type:varchar(64)" json:"ean_code"`
	GS1Code  string `gorm:"type:varchar(64)" json:"gs1_code"`
	Quantity int    `gorm:"default:1" json:"quantity"`

	// Values for non-derived fields, keyed by field key
	FieldValues string `gorm:"type:json" json:"field_values"`

	CreatedAt time.Time `json:"created_at"`

	Items []LabelBatchItem `gorm:"foreignKey:BatchID" json:"items,omitempty"`
}

func (LabelBatch) TableName() string {
	return "label_batches"
}

// FieldValueMap decodes the stored field values. A missing or empty column
// yields an empty map, never an error surfaced to rendering.
func (b *LabelBatch) FieldValueMap() map[string]string {
	return decodeFieldValues(b.FieldValues)
}

// LabelBatchItem is one row of a multi-SKU batch, created in bulk from a
// validated import. Immutable like its parent batch.
type LabelBatchItem struct {
	ID      string `gorm:"primaryKey" json:"id"`
	BatchID string `gorm:"not null;index" json:"batch_id"`

	RowIndex int    `gorm:"default:1" json:"row_index"`
	EANCode  string `gorm:"type:varchar(64);not null" json:"ean_code"`
	GS1Code  string `gorm:"type:varchar(64)" json:"gs1_code"`
	Quantity int    `gorm:"default:1" json:"quantity"`

	FieldValues string `gorm:"type:json" json:"field_values"`

	CreatedAt time.Time `json:"created_at"`
}

func (LabelBatchItem) TableName() string {
	return "label_batch_items"
}

func (i *LabelBatchItem) FieldValueMap() map[string]string {
	return decodeFieldValues(i.FieldValues)
}

func decodeFieldValues(raw string) map[string]string {
	values := make(map[string]string)
	if raw == "" {
		return values
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return make(map[string]string)
	}
	return values
}

// EncodeFieldValues serializes a field-value map for storage, normalizing
// nil to an empty JSON object.
func EncodeFieldValues(values map[string]string) string {
	if values == nil {
		values = make(map[string]string)
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "{}"
	}
	return string(b)
}
