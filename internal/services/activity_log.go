package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eyepatch-3097/labelz-deploy/internal"
	"github.com/eyepatch-3097/labelz-deploy/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// sanitizeUTF8 ensures the string is valid UTF-8 before it reaches Postgres
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

type ActivityLogService struct{}

func NewActivityLogService() *ActivityLogService {
	return &ActivityLogService{}
}

func (s *ActivityLogService) LogRequest(c *gin.Context, statusCode int, responseTime time.Duration) {
	clientIP := c.ClientIP()
	if clientIP == "" {
		clientIP = c.Request.RemoteAddr
	}

	queryParams := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			queryParams[key] = values[0]
		}
	}
	queryParamsJSON, _ := json.Marshal(queryParams)

	// Request body is stored in context by the middleware below
	var requestBody string
	if body, exists := c.Get("request_body"); exists {
		if bodyStr, ok := body.(string); ok {
			requestBody = bodyStr
		}
	}

	// User identity comes from gateway-set headers
	var userID, userEmail string
	if uid, exists := c.Get("user_id"); exists {
		if uidStr, ok := uid.(string); ok {
			userID = uidStr
		}
	}
	if email, exists := c.Get("user_email"); exists {
		if emailStr, ok := email.(string); ok {
			userEmail = emailStr
		}
	}

	activityLog := &models.ActivityLog{
		ID:           uuid.New().String(),
		Method:       c.Request.Method,
		Path:         c.Request.URL.Path,
		UserAgent:    c.Request.UserAgent(),
		IPAddress:    clientIP,
		RequestBody:  sanitizeUTF8(requestBody),
		QueryParams:  string(queryParamsJSON),
		StatusCode:   statusCode,
		ResponseTime: responseTime.Milliseconds(),
		UserID:       userID,
		UserEmail:    userEmail,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	// Save to database (don't block the request if this fails)
	go func() {
		if err := internal.DB.Create(activityLog).Error; err != nil {
			fmt.Printf("Failed to save activity log: %v\n", err)
		}
	}()
}

// GetLogs lists logs newest first, optionally filtered by method and a path
// substring.
func (s *ActivityLogService) GetLogs(method, path string, limit, offset int) ([]models.ActivityLog, int64, error) {
	query := internal.DB.Model(&models.ActivityLog{})
	if method != "" {
		query = query.Where("method = ?", strings.ToUpper(method))
	}
	if path != "" {
		query = query.Where("path LIKE ?", "%"+path+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var logs []models.ActivityLog
	if err := query.Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch logs: %w", err)
	}

	return logs, total, nil
}

// LoggingMiddleware records every request after it completes.
func (s *ActivityLogService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// User identity set by gateway
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set("user_id", userID)
		}
		if userEmail := c.GetHeader("X-User-Email"); userEmail != "" {
			c.Set("user_email", userEmail)
		}

		// Capture mutation bodies; canvas saves arrive as PUT
		if (c.Request.Method == "POST" || c.Request.Method == "PUT") && c.Request.Body != nil {
			bodyBytes, err := io.ReadAll(c.Request.Body)
			if err == nil {
				// Restore the body for other handlers
				c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

				if len(bodyBytes) > 0 {
					if len(bodyBytes) > 10000 { // 10KB limit
						c.Set("request_body", fmt.Sprintf("[Large body: %d bytes] %s...", len(bodyBytes), string(bodyBytes[:100])))
					} else {
						c.Set("request_body", string(bodyBytes))
					}
				}
			}
		}

		c.Next()

		duration := time.Since(start)
		s.LogRequest(c, c.Writer.Status(), duration)
	}
}
