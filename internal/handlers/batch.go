package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/eyepatch-3097/labelz-deploy/internal/models"
	"github.com/eyepatch-3097/labelz-deploy/internal/services"

	"github.com/gin-gonic/gin"
)

type BatchHandler struct {
	batchService    *services.BatchService
	templateService *services.TemplateService
	layoutService   *services.LayoutService
	materializer    *services.MaterializeService
	exportService   *services.ExportService
	pdfService      *services.PDFService
}

func NewBatchHandler(
	batchService *services.BatchService,
	templateService *services.TemplateService,
	layoutService *services.LayoutService,
	materializer *services.MaterializeService,
	exportService *services.ExportService,
	pdfService *services.PDFService,
) *BatchHandler {
	return &BatchHandler{
		batchService:    batchService,
		templateService: templateService,
		layoutService:   layoutService,
		materializer:    materializer,
		exportService:   exportService,
		pdfService:      pdfService,
	}
}

type createBatchRequest struct {
	TemplateID  string            `json:"template_id" binding:"required"`
	EANCode     string            `json:"ean_code"`
	GS1Code     string            `json:"gs1_code"`
	Quantity    int               `json:"quantity"`
	FieldValues map[string]string `json:"field_values"`
}

// CreateBatch creates a single-SKU batch
// POST /api/v1/workspaces/:workspaceId/batches
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	workspaceID := c.Param("workspaceId")

	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: template_id is required"})
		return
	}

	batch, err := h.batchService.CreateSingle(workspaceID, services.CreateBatchInput{
		TemplateID:  req.TemplateID,
		EANCode:     req.EANCode,
		GS1Code:     req.GS1Code,
		Quantity:    req.Quantity,
		FieldValues: req.FieldValues,
		CreatedBy:   c.GetHeader("X-User-ID"),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTemplateNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		case errors.Is(err, services.ErrLayoutMissing):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Template has no saved layout"})
		case errors.Is(err, services.ErrEANRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "ean_code is required"})
		case errors.Is(err, services.ErrQuantityRange):
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("quantity must be between %d and %d", services.MinBatchQuantity, services.MaxBatchQuantity)})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create batch: %v", err)})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Batch created successfully",
		"batch":   batch,
	})
}

// CreateBulkBatch creates a multi-SKU batch from an uploaded CSV/XLSX file
// POST /api/v1/workspaces/:workspaceId/batches/bulk
func (h *BatchHandler) CreateBulkBatch(c *gin.Context) {
	workspaceID := c.Param("workspaceId")
	templateID := c.PostForm("template_id")
	if templateID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template_id is required"})
		return
	}

	rows, errs, status := validateImportUpload(c, h.templateService, h.layoutService, templateID)
	if status != 0 {
		return
	}
	if len(errs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Import file has validation errors",
			"errors": errs,
		})
		return
	}

	batch, err := h.batchService.CreateMulti(workspaceID, templateID, c.GetHeader("X-User-ID"), rows)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTemplateNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		case errors.Is(err, services.ErrLayoutMissing):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Template has no saved layout"})
		case errors.Is(err, services.ErrNoBatchRows):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Import file has no data rows"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create batch: %v", err)})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Batch created successfully",
		"batch":     batch,
		"row_count": len(rows),
	})
}

// GetHistory lists a workspace's batches newest first
// GET /api/v1/workspaces/:workspaceId/batches
func (h *BatchHandler) GetHistory(c *gin.Context) {
	workspaceID := c.Param("workspaceId")

	batches, err := h.batchService.History(workspaceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to list batches: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"batches": batches,
		"count":   len(batches),
	})
}

// GetPreview renders the batch's first label in editor pixel space
// GET /api/v1/batches/:batchId/preview
func (h *BatchHandler) GetPreview(c *gin.Context) {
	batch, template, ok := h.loadBatch(c)
	if !ok {
		return
	}

	doc, hasLayout, err := h.layoutService.Document(template)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to load layout: %v", err)})
		return
	}
	if !hasLayout {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Template has no saved layout"})
		return
	}

	labels, err := h.materializer.Materialize(template, doc, services.RowsForBatch(batch), services.UnitUIPx, 1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to render preview: %v", err)})
		return
	}
	if len(labels) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Batch produces no labels"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"label":       labels[0],
		"label_count": h.batchService.LabelCount(batch),
	})
}

// GetPrintSheet composes the batch's labels onto printable pages
// GET /api/v1/batches/:batchId/print?format=pdf
func (h *BatchHandler) GetPrintSheet(c *gin.Context) {
	batch, template, ok := h.loadBatch(c)
	if !ok {
		return
	}

	html, err := h.exportService.PrintSheet(template, batch)
	if err != nil {
		if errors.Is(err, services.ErrLayoutMissing) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Template has no saved layout"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to build print sheet: %v", err)})
		return
	}

	if c.Query("format") != "pdf" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
		return
	}

	if h.pdfService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "PDF conversion is not configured"})
		return
	}

	pdfReader, err := h.pdfService.ConvertHTMLToPDF(c.Request.Context(), html)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to convert print sheet to PDF: %v", err)})
		return
	}
	defer pdfReader.Close()

	pdfBytes, err := io.ReadAll(pdfReader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to read converted PDF: %v", err)})
		return
	}

	// Persist the artifact when asked to, but never fail the download on it
	if c.Query("persist") == "true" {
		if _, signedURL, err := h.exportService.PersistArtifact(c.Request.Context(), batch.ID, "labels.pdf", "application/pdf", pdfBytes); err == nil {
			c.Header("X-Artifact-URL", signedURL)
		} else {
			fmt.Printf("Warning: failed to persist print sheet for batch %s: %v\n", batch.ID, err)
		}
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="labels_%s.pdf"`, batch.ID))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

// ExportCSV streams one CSV row per label of the batch
// GET /api/v1/batches/:batchId/export.csv
func (h *BatchHandler) ExportCSV(c *gin.Context) {
	batch, template, ok := h.loadBatch(c)
	if !ok {
		return
	}

	csvBytes, err := h.exportService.BatchCSV(template, batch)
	if err != nil {
		if errors.Is(err, services.ErrLayoutMissing) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Template has no saved layout"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to export batch: %v", err)})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="batch_%s.csv"`, batch.ID))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", csvBytes)
}

// loadBatch resolves the batch and its template, writing the error response
// itself when either is missing.
func (h *BatchHandler) loadBatch(c *gin.Context) (*models.LabelBatch, *models.LabelTemplate, bool) {
	batchID := c.Param("batchId")

	batch, err := h.batchService.GetBatch(batchID)
	if err != nil {
		if errors.Is(err, services.ErrBatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found"})
			return nil, nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to load batch: %v", err)})
		return nil, nil, false
	}

	template, err := h.templateService.GetTemplate(batch.TemplateID)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return nil, nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to load template: %v", err)})
		return nil, nil, false
	}

	return batch, template, true
}
