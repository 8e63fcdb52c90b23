package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/eyepatch-3097/labelz-deploy/internal"
	"github.com/eyepatch-3097/labelz-deploy/internal/config"
	"github.com/eyepatch-3097/labelz-deploy/internal/handlers"
	"github.com/eyepatch-3097/labelz-deploy/internal/render"
	"github.com/eyepatch-3097/labelz-deploy/internal/services"
	"github.com/eyepatch-3097/labelz-deploy/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	if err := internal.InitDB(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize storage client based on configuration
	ctx := context.Background()
	var storageClient storage.StorageClient
	var localStorageClient *storage.LocalStorageClient

	switch cfg.Storage.Type {
	case "gcs":
		log.Printf("Initializing GCS storage with bucket: %s", cfg.GCS.BucketName)
		client, err := storage.NewGCSStorageClient(ctx, cfg.GCS.BucketName, cfg.GCS.CredentialsPath)
		if err != nil {
			log.Fatalf("Failed to initialize GCS client: %v", err)
		}
		storageClient = client
		log.Printf("GCS storage initialized")
	case "local":
		fallthrough
	default:
		log.Printf("Initializing local storage at: %s", cfg.Storage.LocalPath)
		client, err := storage.NewLocalStorageClient(cfg.Storage.LocalPath, cfg.Storage.LocalURL, cfg.Storage.SecretKey)
		if err != nil {
			log.Fatalf("Failed to initialize local storage client: %v", err)
		}
		storageClient = client
		localStorageClient = client
		log.Printf("Local storage initialized with base URL: %s", cfg.Storage.LocalURL)
	}
	defer storageClient.Close()

	// Initialize PDF service with configurable timeout
	pdfService, err := services.NewPDFService(cfg.Gotenberg.URL, cfg.Gotenberg.Timeout)
	if err != nil {
		log.Printf("Warning: Failed to initialize PDF service: %v", err)
		pdfService = nil // Continue without PDF conversion
	} else {
		log.Printf("PDF service initialized with URL: %s, timeout: %s", cfg.Gotenberg.URL, cfg.Gotenberg.Timeout)
	}

	// Initialize services
	usageService := services.NewUsageService()
	templateService := services.NewTemplateService()
	layoutService := services.NewLayoutService(templateService)
	batchService := services.NewBatchService(templateService, layoutService, usageService)
	materializer := services.NewMaterializeService(render.NewImageRenderer())
	exportService := services.NewExportService(layoutService, materializer, storageClient, usageService)
	activityLogService := services.NewActivityLogService()

	// Initialize handlers
	templateHandler := handlers.NewTemplateHandler(templateService, layoutService)
	batchHandler := handlers.NewBatchHandler(batchService, templateService, layoutService, materializer, exportService, pdfService)
	importHandler := handlers.NewImportHandler(templateService, layoutService)
	logsHandler := handlers.NewActivityLogHandler(activityLogService)

	// Initialize Gin router
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-User-ID", "X-User-Email", "X-Session-ID")
	r.Use(cors.New(corsConfig))

	// Activity logging middleware
	r.Use(activityLogService.LoggingMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   "1.0.0",
			"storage":   cfg.Storage.Type,
		})
	})

	// Local file server endpoint (only for local storage with public URL configured)
	if localStorageClient != nil && cfg.Storage.LocalURL != "" && cfg.Storage.LocalURL != "internal://storage" {
		r.GET("/files/*filepath", func(c *gin.Context) {
			filePath := c.Param("filepath")
			if filePath == "" || filePath == "/" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "file path required"})
				return
			}
			if filePath[0] == '/' {
				filePath = filePath[1:]
			}

			// Reject path traversal attempts
			cleanPath := filepath.Clean(filePath)
			if strings.Contains(cleanPath, "..") || strings.HasPrefix(cleanPath, "/") || strings.HasPrefix(cleanPath, "\\") {
				c.JSON(http.StatusForbidden, gin.H{"error": "invalid file path"})
				return
			}

			// Signed URLs are always required for file access
			expiresStr := c.Query("expires")
			signature := c.Query("signature")
			if signature == "" || expiresStr == "" {
				c.JSON(http.StatusForbidden, gin.H{"error": "signed URL required"})
				return
			}

			var expiresAt int64
			if _, err := fmt.Sscanf(expiresStr, "%d", &expiresAt); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expires parameter"})
				return
			}

			if !localStorageClient.VerifySignedURL(cleanPath, expiresAt, signature) {
				c.JSON(http.StatusForbidden, gin.H{"error": "invalid or expired signature"})
				return
			}

			c.File(localStorageClient.GetFilePath(cleanPath))
		})
		log.Printf("Local file server enabled at /files/*")
	}

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Template management
		v1.POST("/workspaces/:workspaceId/templates", templateHandler.CreateTemplate)
		v1.GET("/workspaces/:workspaceId/templates", templateHandler.ListTemplates)
		v1.POST("/workspaces/:workspaceId/templates/from-global/:globalId", templateHandler.UseGlobalTemplate)
		v1.GET("/templates/:templateId", templateHandler.GetTemplate)
		v1.POST("/templates/:templateId/duplicate", templateHandler.DuplicateTemplate)
		v1.DELETE("/templates/:templateId", templateHandler.DeleteTemplate)

		// Canvas editing
		v1.GET("/templates/:templateId/canvas", templateHandler.GetCanvas)
		v1.PUT("/templates/:templateId/canvas", templateHandler.SaveCanvas)

		// Bulk import
		v1.POST("/templates/:templateId/import/validate", importHandler.ValidateImport)
		v1.GET("/templates/:templateId/import/template.csv", importHandler.DownloadTemplateCSV)
		v1.GET("/templates/:templateId/import/template.xlsx", importHandler.DownloadTemplateXLSX)

		// Batch generation and export
		v1.POST("/workspaces/:workspaceId/batches", batchHandler.CreateBatch)
		v1.POST("/workspaces/:workspaceId/batches/bulk", batchHandler.CreateBulkBatch)
		v1.GET("/workspaces/:workspaceId/batches", batchHandler.GetHistory)
		v1.GET("/batches/:batchId/preview", batchHandler.GetPreview)
		v1.GET("/batches/:batchId/print", batchHandler.GetPrintSheet)
		v1.GET("/batches/:batchId/export.csv", batchHandler.ExportCSV)

		// Activity logs
		v1.GET("/activity-logs", logsHandler.GetLogs)
	}

	// Create HTTP server with timeouts sized for PDF conversion
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s (environment: %s)", cfg.Server.Port, cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := internal.CloseDB(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	if pdfService != nil {
		if err := pdfService.Close(); err != nil {
			log.Printf("Error closing PDF service: %v", err)
		}
	}

	log.Println("Server exited")
}
