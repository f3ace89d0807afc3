package gcsuploader

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// StorageService is the subset of Cloud Storage the statement stores and the
// fetcher need. Tests substitute a mock.
type StorageService interface {
	// UploadFile uploads a local file under objectName.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error

	// Upload streams r under objectName.
	Upload(ctx context.Context, bucketName, objectName string, r io.Reader) error

	// Download streams the object at a gs:// URI into w.
	Download(ctx context.Context, gcsURI string, w io.Writer) error
}

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage. It holds a shared client.
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates a GCSStorageService using Application Default
// Credentials.
func NewGCSStorageService(ctx context.Context) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorageService: create storage client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// Close closes the storage client.
func (s *GCSStorageService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// UploadFile delegates to UploadFileWithClient with the shared client.
func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return UploadFileWithClient(ctx, s.client, bucketName, objectName, filePath)
}

// Upload delegates to UploadWithClient with the shared client.
func (s *GCSStorageService) Upload(ctx context.Context, bucketName, objectName string, r io.Reader) error {
	return UploadWithClient(ctx, s.client, bucketName, objectName, r)
}

// Download delegates to DownloadWithClient with the shared client.
func (s *GCSStorageService) Download(ctx context.Context, gcsURI string, w io.Writer) error {
	return DownloadWithClient(ctx, s.client, gcsURI, w)
}

var _ StorageService = (*GCSStorageService)(nil)
