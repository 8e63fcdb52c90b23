package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/eyepatch-3097/labelz-deploy/internal/services"

	"github.com/gin-gonic/gin"
)

type TemplateHandler struct {
	service       *services.TemplateService
	layoutService *services.LayoutService
}

func NewTemplateHandler(service *services.TemplateService, layoutService *services.LayoutService) *TemplateHandler {
	return &TemplateHandler{
		service:       service,
		layoutService: layoutService,
	}
}

type createTemplateRequest struct {
	Name           string  `json:"name" binding:"required"`
	Description    string  `json:"description"`
	WidthCM        float64 `json:"width_cm"`
	HeightCM       float64 `json:"height_cm"`
	DPI            int     `json:"dpi"`
	CanvasBgColor  string  `json:"canvas_bg_color"`
	QRPayloadMode  string  `json:"qr_payload_mode"`
	Category       string  `json:"category"`
	CustomCategory string  `json:"custom_category"`
}

// CreateTemplate creates a new label template in a workspace
// POST /api/v1/workspaces/:workspaceId/templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	workspaceID := c.Param("workspaceId")

	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: name is required"})
		return
	}

	template, err := h.service.CreateTemplate(workspaceID, services.CreateTemplateInput{
		Name:           req.Name,
		Description:    req.Description,
		WidthCM:        req.WidthCM,
		HeightCM:       req.HeightCM,
		DPI:            req.DPI,
		CanvasBgColor:  req.CanvasBgColor,
		QRPayloadMode:  req.QRPayloadMode,
		Category:       req.Category,
		CustomCategory: req.CustomCategory,
		CreatedBy:      c.GetHeader("X-User-ID"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create template: %v", err)})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Template created successfully",
		"template": template,
		"geometry": h.service.Geometry(template),
	})
}

// ListTemplates lists a workspace's templates
// GET /api/v1/workspaces/:workspaceId/templates?category=&q=
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	workspaceID := c.Param("workspaceId")

	templates, err := h.service.ListTemplates(workspaceID, c.Query("category"), c.Query("q"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to list templates: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"templates": templates,
		"count":     len(templates),
	})
}

// GetTemplate retrieves one template with its derived geometry
// GET /api/v1/templates/:templateId
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	templateID := c.Param("templateId")

	template, err := h.service.GetTemplateWithFields(templateID)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to get template: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"template": template,
		"geometry": h.service.Geometry(template),
	})
}

type duplicateTemplateRequest struct {
	Name string `json:"name"`
}

// DuplicateTemplate copies a template within its workspace
// POST /api/v1/templates/:templateId/duplicate
func (h *TemplateHandler) DuplicateTemplate(c *gin.Context) {
	templateID := c.Param("templateId")

	var req duplicateTemplateRequest
	_ = c.ShouldBindJSON(&req) // name is optional

	template, err := h.service.DuplicateTemplate(templateID, req.Name, c.GetHeader("X-User-ID"))
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to duplicate template: %v", err)})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Template duplicated successfully",
		"template": template,
	})
}

// DeleteTemplate soft deletes a template; the base template is protected
// DELETE /api/v1/templates/:templateId
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	templateID := c.Param("templateId")

	if err := h.service.DeleteTemplate(templateID); err != nil {
		switch {
		case errors.Is(err, services.ErrTemplateNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		case errors.Is(err, services.ErrBaseTemplate):
			c.JSON(http.StatusConflict, gin.H{"error": "Base template cannot be deleted"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to delete template: %v", err)})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Template deleted successfully"})
}

// UseGlobalTemplate copies a curated global template into a workspace
// POST /api/v1/workspaces/:workspaceId/templates/from-global/:globalId
func (h *TemplateHandler) UseGlobalTemplate(c *gin.Context) {
	workspaceID := c.Param("workspaceId")
	globalID := c.Param("globalId")

	template, err := h.service.UseGlobalTemplate(workspaceID, globalID, c.GetHeader("X-User-ID"))
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Global template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to use global template: %v", err)})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Template created from global template",
		"template": template,
	})
}

// GetCanvas returns the layout document the editor should display
// GET /api/v1/templates/:templateId/canvas
func (h *TemplateHandler) GetCanvas(c *gin.Context) {
	templateID := c.Param("templateId")
	sessionID := sessionID(c)

	state, err := h.layoutService.LoadCanvas(templateID, sessionID)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to load canvas: %v", err)})
		return
	}

	c.JSON(http.StatusOK, state)
}

// SaveCanvas validates and persists a submitted layout
// PUT /api/v1/templates/:templateId/canvas
func (h *TemplateHandler) SaveCanvas(c *gin.Context) {
	templateID := c.Param("templateId")
	sessionID := sessionID(c)

	rawLayout, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	state, err := h.layoutService.SaveCanvas(templateID, sessionID, rawLayout)
	if err != nil {
		var dupErr *services.DuplicateKeyError
		switch {
		case errors.Is(err, services.ErrTemplateNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		case errors.Is(err, services.ErrInvalidLayout):
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid layout: %v", err)})
		case errors.Is(err, services.ErrInvalidColor):
			c.JSON(http.StatusBadRequest, gin.H{"error": "canvas_bg_color must be a 6-digit hex color"})
		case errors.As(err, &dupErr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("Duplicate field key: %s", dupErr.Key)})
		case errors.Is(err, services.ErrBarcodeRequired):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":       "Layout must contain a barcode field",
				"draft_saved": sessionID != "",
			})
		case errors.Is(err, services.ErrLayoutConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Layout was modified by another session, reload and retry"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to save canvas: %v", err)})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Canvas saved successfully",
		"canvas":  state,
	})
}

// sessionID identifies the editing session for draft scoping
func sessionID(c *gin.Context) string {
	if sid := c.GetHeader("X-Session-ID"); sid != "" {
		return sid
	}
	return c.Query("session_id")
}
