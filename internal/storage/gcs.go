package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStorageClient implements StorageClient interface for Google Cloud Storage
type GCSStorageClient struct {
	client     *gcs.Client
	bucketName string
}

// NewGCSStorageClient creates a new GCS storage client
// If credentialsPath is empty, application default credentials are used
func NewGCSStorageClient(ctx context.Context, bucketName, credentialsPath string) (*GCSStorageClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorageClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// UploadFile uploads a file to the GCS bucket
func (g *GCSStorageClient) UploadFile(ctx context.Context, reader io.Reader, objectName, contentType string) (*UploadResult, error) {
	obj := g.client.Bucket(g.bucketName).Object(objectName)

	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType

	size, err := io.Copy(writer, reader)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write object %s: %w", objectName, err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize object %s: %w", objectName, err)
	}

	publicURL := fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucketName, objectName)

	return &UploadResult{
		ObjectName: objectName,
		PublicURL:  publicURL,
		Size:       size,
	}, nil
}

// DeleteFile deletes an object from the GCS bucket
func (g *GCSStorageClient) DeleteFile(ctx context.Context, objectName string) error {
	obj := g.client.Bucket(g.bucketName).Object(objectName)

	if err := obj.Delete(ctx); err != nil {
		if err == gcs.ErrObjectNotExist {
			// Object doesn't exist, return nil (no error)
			return nil
		}
		return fmt.Errorf("failed to delete object %s: %w", objectName, err)
	}

	return nil
}

// ReadFile reads an object from the GCS bucket
func (g *GCSStorageClient) ReadFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	obj := g.client.Bucket(g.bucketName).Object(objectName)

	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s: %w", objectName, err)
	}

	return reader, nil
}

// GetSignedURL generates a signed URL for temporary access to an object
func (g *GCSStorageClient) GetSignedURL(objectName string, expiry time.Duration) (string, error) {
	opts := &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	}

	url, err := g.client.Bucket(g.bucketName).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", objectName, err)
	}

	return url, nil
}

// Close closes the underlying GCS client
func (g *GCSStorageClient) Close() error {
	return g.client.Close()
}

// Ensure GCSStorageClient implements StorageClient interface
var _ StorageClient = (*GCSStorageClient)(nil)
