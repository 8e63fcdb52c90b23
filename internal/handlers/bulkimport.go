package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/eyepatch-3097/labelz-deploy/internal/bulkimport"
	"github.com/eyepatch-3097/labelz-deploy/internal/services"

	"github.com/gin-gonic/gin"
)

// 10MB upload cap, matching typical multi-SKU sheets with wide headroom
const maxImportFileSize = 10 << 20

type ImportHandler struct {
	templateService *services.TemplateService
	layoutService   *services.LayoutService
}

func NewImportHandler(templateService *services.TemplateService, layoutService *services.LayoutService) *ImportHandler {
	return &ImportHandler{
		templateService: templateService,
		layoutService:   layoutService,
	}
}

// ValidateImport checks an uploaded CSV/XLSX against the template's fields
// without creating anything
// POST /api/v1/templates/:templateId/import/validate
func (h *ImportHandler) ValidateImport(c *gin.Context) {
	templateID := c.Param("templateId")

	rows, errs, status := validateImportUpload(c, h.templateService, h.layoutService, templateID)
	if status != 0 {
		return
	}

	if len(errs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"valid":  false,
			"errors": errs,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":     true,
		"row_count": len(rows),
		"rows":      rows,
	})
}

// DownloadTemplateCSV serves a header-only CSV matching the template's fields
// GET /api/v1/templates/:templateId/import/template.csv
func (h *ImportHandler) DownloadTemplateCSV(c *gin.Context) {
	headers, ok := h.importHeaders(c)
	if !ok {
		return
	}

	data, err := bulkimport.TemplateCSV(headers)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to build template file: %v", err)})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="import_template.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// DownloadTemplateXLSX serves a header-only XLSX matching the template's fields
// GET /api/v1/templates/:templateId/import/template.xlsx
func (h *ImportHandler) DownloadTemplateXLSX(c *gin.Context) {
	headers, ok := h.importHeaders(c)
	if !ok {
		return
	}

	data, err := bulkimport.TemplateXLSX(headers)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to build template file: %v", err)})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="import_template.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *ImportHandler) importHeaders(c *gin.Context) ([]string, bool) {
	templateID := c.Param("templateId")

	template, err := h.templateService.GetTemplate(templateID)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to load template: %v", err)})
		return nil, false
	}

	doc, hasLayout, err := h.layoutService.Document(template)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to load layout: %v", err)})
		return nil, false
	}
	if !hasLayout {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Template has no saved layout"})
		return nil, false
	}

	return bulkimport.ExpectedHeaders(doc.VariableKeys()), true
}

// validateImportUpload parses and validates the multipart "file" upload
// against the template's variable fields. A nonzero status means the error
// response was already written.
func validateImportUpload(c *gin.Context, templateService *services.TemplateService, layoutService *services.LayoutService, templateID string) ([]bulkimport.Row, []string, int) {
	template, err := templateService.GetTemplate(templateID)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return nil, nil, http.StatusNotFound
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to load template: %v", err)})
		return nil, nil, http.StatusInternalServerError
	}

	doc, hasLayout, err := layoutService.Document(template)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to load layout: %v", err)})
		return nil, nil, http.StatusInternalServerError
	}
	if !hasLayout {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Template has no saved layout"})
		return nil, nil, http.StatusUnprocessableEntity
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return nil, nil, http.StatusBadRequest
	}
	if fileHeader.Size > maxImportFileSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds the 10MB limit"})
		return nil, nil, http.StatusBadRequest
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to open upload: %v", err)})
		return nil, nil, http.StatusInternalServerError
	}
	defer file.Close()

	content, err := bulkimport.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to read upload: %v", err)})
		return nil, nil, http.StatusInternalServerError
	}

	fileHeaders, rawRows, err := bulkimport.Parse(fileHeader.Filename, content)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to parse file: %v", err)})
		return nil, nil, http.StatusBadRequest
	}

	rows, errs := bulkimport.Validate(doc.VariableKeys(), fileHeaders, rawRows)
	return rows, errs, 0
}
