package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starwalkn/gotenberg-go-client/v8"
	"github.com/starwalkn/gotenberg-go-client/v8/document"
)

type PDFService struct {
	client  *gotenberg.Client
	timeout time.Duration
}

func NewPDFService(gotenbergURL string, timeoutStr string) (*PDFService, error) {
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout: timeout,
	}

	client, err := gotenberg.NewClient(gotenbergURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gotenberg client: %w", err)
	}

	return &PDFService{
		client:  client,
		timeout: timeout,
	}, nil
}

// ConvertHTMLToPDF renders an HTML document to PDF via Gotenberg's Chromium
// route. Page size and margins come from the document's @page CSS rules.
func (s *PDFService) ConvertHTMLToPDF(ctx context.Context, html string) (io.ReadCloser, error) {
	return s.convertWithRetry(ctx, html, 3)
}

func (s *PDFService) convertWithRetry(ctx context.Context, html string, maxRetries int) (io.ReadCloser, error) {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		convertCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		index, err := document.FromReader("index.html", strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("failed to create document from reader: %w", err)
		}

		req := gotenberg.NewHTMLRequest(index)

		resp, err := s.client.Send(convertCtx, req)
		if err == nil {
			return resp.Body, nil
		}

		lastErr = err
		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return nil, fmt.Errorf("failed to convert document after %d attempts: %w", maxRetries, lastErr)
}

func (s *PDFService) GetClient() *gotenberg.Client {
	return s.client
}

func (s *PDFService) Close() error {
	return nil
}
