package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorageClient keeps export artifacts on the local filesystem. Download
// access goes through HMAC-signed URLs so locally stored print sheets get the
// same expiring-link semantics as bucket storage.
type LocalStorageClient struct {
	basePath  string
	baseURL   string // base URL for serving files, internal reference when unset
	secretKey string // key for signing URLs
}

func NewLocalStorageClient(basePath, baseURL, secretKey string) (*LocalStorageClient, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	// Use a default secret key if not provided
	if secretKey == "" {
		secretKey = "default-local-storage-key"
	}

	// Default baseURL to internal reference if not provided
	if baseURL == "" {
		baseURL = "internal://storage"
	}

	return &LocalStorageClient{
		basePath:  basePath,
		baseURL:   baseURL,
		secretKey: secretKey,
	}, nil
}

// validObjectName rejects names that would escape the storage root. Object
// names come back in from signed download URLs, so every filesystem entry
// point checks.
func validObjectName(objectName string) error {
	if objectName == "" {
		return fmt.Errorf("object name is empty")
	}
	clean := filepath.Clean(objectName)
	if strings.HasPrefix(clean, "..") || strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, "\\") {
		return fmt.Errorf("invalid object name: %s", objectName)
	}
	return nil
}

func (l *LocalStorageClient) UploadFile(ctx context.Context, reader io.Reader, objectName, contentType string) (*UploadResult, error) {
	if err := validObjectName(objectName); err != nil {
		return nil, err
	}

	fullPath := filepath.Join(l.basePath, objectName)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(fullPath), err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}
	defer file.Close()

	size, err := io.Copy(file, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to write data to file: %w", err)
	}

	return &UploadResult{
		ObjectName: objectName,
		PublicURL:  fmt.Sprintf("%s/%s", l.baseURL, objectName),
		Size:       size,
	}, nil
}

func (l *LocalStorageClient) DeleteFile(ctx context.Context, objectName string) error {
	if err := validObjectName(objectName); err != nil {
		return err
	}

	fullPath := filepath.Join(l.basePath, objectName)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		// Already gone
		return nil
	}

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", fullPath, err)
	}

	l.cleanEmptyDirs(filepath.Dir(fullPath))
	return nil
}

// cleanEmptyDirs removes empty parent directories up to basePath so old
// per-batch directories don't accumulate.
func (l *LocalStorageClient) cleanEmptyDirs(dir string) {
	for dir != l.basePath && dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}

func (l *LocalStorageClient) ReadFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	if err := validObjectName(objectName); err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(l.basePath, objectName))
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", objectName, err)
	}
	return file, nil
}

// GetSignedURL returns a URL carrying an expiry timestamp and an HMAC over
// the object name and expiry.
func (l *LocalStorageClient) GetSignedURL(objectName string, expiry time.Duration) (string, error) {
	if err := validObjectName(objectName); err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(expiry).Unix()
	signature := l.sign(fmt.Sprintf("%s:%d", objectName, expiresAt))

	return fmt.Sprintf("%s/%s?expires=%d&signature=%s",
		l.baseURL, objectName, expiresAt, signature), nil
}

func (l *LocalStorageClient) sign(message string) string {
	h := hmac.New(sha256.New, []byte(l.secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignedURL checks the signature and expiry extracted from a download
// request.
func (l *LocalStorageClient) VerifySignedURL(objectName string, expiresAt int64, signature string) bool {
	if time.Now().Unix() > expiresAt {
		return false
	}

	expected := l.sign(fmt.Sprintf("%s:%d", objectName, expiresAt))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// GetFilePath returns the full filesystem path for an object
func (l *LocalStorageClient) GetFilePath(objectName string) string {
	return filepath.Join(l.basePath, objectName)
}

func (l *LocalStorageClient) Close() error {
	return nil
}

var _ StorageClient = (*LocalStorageClient)(nil)
