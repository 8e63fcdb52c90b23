package models

import "time"

// Draft states for the canvas editing flow
const (
	DraftStateLayingOut = "laying_out_canvas"
	DraftStateComplete  = "complete"
)

// LayoutDraft is the edit-session scratch area for a template's canvas: if a
// save is rejected (missing barcode) the submitted layout is kept here so the
// editor can redisplay it without losing work. Cleared on successful save.
type LayoutDraft struct {
	ID         string `gorm:"primaryKey" json:"id"`
	TemplateID string `gorm:"not null;index:idx_layout_drafts_template_session,unique" json:"template_id"`
	SessionID  string `gorm:"not null;index:idx_layout_drafts_template_session,unique" json:"session_id"`

	LayoutJSON string `gorm:"type:json" json:"layout_json"`
	State      string `gorm:"type:varchar(30);default:'laying_out_canvas'" json:"state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LayoutDraft) TableName() string {
	return "layout_drafts"
}
