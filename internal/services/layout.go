package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/eyepatch-3097/labelz-deploy/internal"
	"github.com/eyepatch-3097/labelz-deploy/internal/layout"
	"github.com/eyepatch-3097/labelz-deploy/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidLayout   = errors.New("layout payload is not valid")
	ErrInvalidColor    = errors.New("canvas background color must be a 6-digit hex value")
	ErrBarcodeRequired = errors.New("layout must contain a barcode field")
	ErrDuplicateKey    = errors.New("layout contains duplicate field keys")
	ErrLayoutConflict  = errors.New("layout was modified by another session")
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// DuplicateKeyError carries the offending key alongside ErrDuplicateKey.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate field key %q", e.Key)
}

func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateKey
}

type LayoutService struct {
	templates *TemplateService
}

func NewLayoutService(templates *TemplateService) *LayoutService {
	return &LayoutService{templates: templates}
}

// CanvasState is what the editor receives when it opens a template.
type CanvasState struct {
	Document layout.Document `json:"document"`
	Geometry layout.Engine   `json:"geometry"`

	// FromDraft is set when the returned document is unsaved scratch work
	FromDraft  bool   `json:"from_draft"`
	DraftState string `json:"draft_state,omitempty"`
}

// LoadCanvas returns the layout the editor should display: the session's
// draft if one exists, else the canonical stored document, else a document
// synthesized from the field row projection of templates predating the
// document format.
func (s *LayoutService) LoadCanvas(templateID, sessionID string) (*CanvasState, error) {
	template, err := s.templates.GetTemplateWithFields(templateID)
	if err != nil {
		return nil, err
	}
	engine := layout.Compute(template.WidthCM, template.HeightCM, template.DPI)

	if sessionID != "" {
		var draft models.LayoutDraft
		err := internal.DB.First(&draft, "template_id = ? AND session_id = ?", templateID, sessionID).Error
		if err == nil {
			doc, derr := layout.EnsureSchema([]byte(draft.LayoutJSON), template.WidthCM, template.HeightCM)
			if derr == nil {
				return &CanvasState{Document: doc, Geometry: engine, FromDraft: true, DraftState: draft.State}, nil
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load draft: %w", err)
		}
	}

	if template.LayoutJSON != "" {
		doc, err := layout.EnsureSchema([]byte(template.LayoutJSON), template.WidthCM, template.HeightCM)
		if err != nil {
			return nil, fmt.Errorf("stored layout is corrupt: %w", err)
		}
		return &CanvasState{Document: doc, Geometry: engine}, nil
	}

	// Legacy template: project field rows (print px) back into editor space
	doc := layout.Document{
		Meta: layout.Meta{
			UIMaxSidePx: layout.UIMaxSidePx,
			UIPxPerCM:   layout.UIPxPerCM(template.WidthCM, template.HeightCM),
			Version:     0,
		},
	}
	for _, f := range template.Fields {
		doc.Items = append(doc.Items, layout.NormalizeItem(layout.Item{
			FieldID:       f.FieldID,
			Name:          f.Name,
			Key:           f.Key,
			FieldType:     f.FieldType,
			X:             engine.RealToUI(f.X),
			Y:             engine.RealToUI(f.Y),
			Width:         engine.RealToUI(f.Width),
			Height:        engine.RealToUI(f.Height),
			ZIndex:        f.ZIndex,
			FontFamily:    f.FontFamily,
			FontSize:      f.FontSize,
			FontBold:      f.FontBold,
			FontItalic:    f.FontItalic,
			FontUnderline: f.FontUnderline,
			TextAlign:     f.TextAlign,
			TextColor:     f.TextColor,
			BgColor:       f.BgColor,
			ShowLabel:     f.ShowLabel,
			StaticText:    f.StaticText,
			ShapeType:     f.ShapeType,
			ShapeColor:    f.ShapeColor,
		}))
	}

	return &CanvasState{Document: doc, Geometry: engine}, nil
}

// SaveCanvas validates and persists a submitted layout. The document and the
// field row projection are written in one transaction so readers never see
// one without the other. A layout without a barcode is rejected but parked as
// a session draft so the editor can restore it.
func (s *LayoutService) SaveCanvas(templateID, sessionID string, rawLayout []byte) (*CanvasState, error) {
	template, err := s.templates.GetTemplateWithFields(templateID)
	if err != nil {
		return nil, err
	}

	doc, err := layout.EnsureSchema(rawLayout, template.WidthCM, template.HeightCM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}

	bgColor := canvasBgColor(rawLayout)
	if bgColor != "" && !hexColorRe.MatchString(bgColor) {
		return nil, ErrInvalidColor
	}

	doc.Items = layout.AssignKeys(layout.NormalizeItems(doc.Items))

	if key := layout.DuplicateKey(doc.Items); key != "" {
		return nil, &DuplicateKeyError{Key: key}
	}

	if !doc.HasBarcode() {
		if err := s.saveDraft(templateID, sessionID, doc); err != nil {
			return nil, err
		}
		return nil, ErrBarcodeRequired
	}

	// Optimistic concurrency: the submitted version must match the stored one
	currentVersion := 0
	if template.LayoutJSON != "" {
		if stored, derr := layout.EnsureSchema([]byte(template.LayoutJSON), template.WidthCM, template.HeightCM); derr == nil {
			currentVersion = stored.Meta.Version
		}
	}
	if doc.Meta.Version != 0 && doc.Meta.Version != currentVersion {
		return nil, ErrLayoutConflict
	}

	engine := layout.Compute(template.WidthCM, template.HeightCM, template.DPI)
	doc.Meta = layout.Meta{
		UIMaxSidePx: layout.UIMaxSidePx,
		UIPxPerCM:   layout.UIPxPerCM(template.WidthCM, template.HeightCM),
		Version:     currentVersion + 1,
	}

	layoutJSON, err := doc.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode layout: %w", err)
	}

	existingByFieldID := make(map[string]models.LabelTemplateField, len(template.Fields))
	for _, f := range template.Fields {
		existingByFieldID[f.FieldID] = f
	}

	err = internal.DB.Transaction(func(tx *gorm.DB) error {
		seen := make(map[string]bool, len(doc.Items))

		for order, it := range doc.Items {
			seen[it.FieldID] = true

			row, ok := existingByFieldID[it.FieldID]
			if !ok {
				row = models.LabelTemplateField{
					ID:         uuid.New().String(),
					TemplateID: template.ID,
					FieldID:    it.FieldID,
				}
			}

			row.Name = it.Name
			row.Key = it.Key
			row.FieldType = it.FieldType
			row.X = engine.UIToReal(it.X)
			row.Y = engine.UIToReal(it.Y)
			row.Width = engine.UIToReal(it.Width)
			row.Height = engine.UIToReal(it.Height)
			row.ZIndex = it.ZIndex
			row.FontFamily = it.FontFamily
			row.FontSize = it.FontSize
			row.FontBold = it.FontBold
			row.FontItalic = it.FontItalic
			row.FontUnderline = it.FontUnderline
			row.TextAlign = it.TextAlign
			row.TextColor = it.TextColor
			row.BgColor = it.BgColor
			row.ShowLabel = it.ShowLabel
			row.StaticText = it.StaticText
			row.ShapeType = it.ShapeType
			row.ShapeColor = it.ShapeColor
			row.Order = order

			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("failed to save template field %s: %w", it.Key, err)
			}
		}

		// Field rows whose layout item disappeared are removed
		for fieldID, row := range existingByFieldID {
			if !seen[fieldID] {
				if err := tx.Delete(&models.LabelTemplateField{}, "id = ?", row.ID).Error; err != nil {
					return fmt.Errorf("failed to delete removed field %s: %w", row.Key, err)
				}
			}
		}

		updates := map[string]interface{}{
			"layout_json": layoutJSON,
			"updated_at":  time.Now(),
		}
		if bgColor != "" {
			updates["canvas_bg_color"] = bgColor
		}
		update := tx.Model(&models.LabelTemplate{}).
			Where("id = ?", template.ID).
			Updates(updates)
		if update.Error != nil {
			return fmt.Errorf("failed to store layout document: %w", update.Error)
		}

		if sessionID != "" {
			if err := tx.Delete(&models.LayoutDraft{}, "template_id = ? AND session_id = ?", template.ID, sessionID).Error; err != nil {
				return fmt.Errorf("failed to clear draft: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	engineOut := layout.Compute(template.WidthCM, template.HeightCM, template.DPI)
	return &CanvasState{Document: doc, Geometry: engineOut}, nil
}

// canvasBgColor pulls the optional background color posted alongside the
// layout items. Legacy bare-array payloads cannot carry one.
func canvasBgColor(raw []byte) string {
	var body struct {
		CanvasBgColor string `json:"canvas_bg_color"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.CanvasBgColor)
}

func (s *LayoutService) saveDraft(templateID, sessionID string, doc layout.Document) error {
	if sessionID == "" {
		return nil
	}

	layoutJSON, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode draft layout: %w", err)
	}

	var draft models.LayoutDraft
	err = internal.DB.First(&draft, "template_id = ? AND session_id = ?", templateID, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		draft = models.LayoutDraft{
			ID:         uuid.New().String(),
			TemplateID: templateID,
			SessionID:  sessionID,
		}
	} else if err != nil {
		return fmt.Errorf("failed to load draft: %w", err)
	}

	draft.LayoutJSON = layoutJSON
	draft.State = models.DraftStateLayingOut

	if err := internal.DB.Save(&draft).Error; err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Document returns the canonical stored layout for generation paths. A
// template that was never laid out has no document.
func (s *LayoutService) Document(template *models.LabelTemplate) (layout.Document, bool, error) {
	if template.LayoutJSON == "" {
		return layout.Document{}, false, nil
	}
	doc, err := layout.EnsureSchema([]byte(template.LayoutJSON), template.WidthCM, template.HeightCM)
	if err != nil {
		return layout.Document{}, false, fmt.Errorf("stored layout is corrupt: %w", err)
	}
	if len(doc.Items) == 0 {
		return doc, false, nil
	}
	return doc, true, nil
}
