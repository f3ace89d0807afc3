package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/statement-extractor/internal/logger"
)

// Fetcher resolves a document URI to a local file path.
type Fetcher struct {
	// Storage serves gs:// URIs. Nil means only local paths are accepted.
	Storage StorageService
	// TempDir is where downloads are written; "" means os.TempDir().
	TempDir string
}

// FetchToTempFile returns a local path for uri. Local paths are returned
// as-is; gs:// URIs are downloaded to a temp file that cleanup removes.
func (f *Fetcher) FetchToTempFile(ctx context.Context, uri string) (string, func(), error) {
	noop := func() {}

	if !IsGCSURI(uri) {
		if _, err := os.Stat(uri); err != nil {
			return "", noop, fmt.Errorf("FetchToTempFile: %w", err)
		}
		return uri, noop, nil
	}

	if f.Storage == nil {
		return "", noop, fmt.Errorf("FetchToTempFile: no storage configured for %s", uri)
	}

	tmp, err := os.CreateTemp(f.TempDir, "statement-*"+filepath.Ext(ExtractFilenameFromGCSURI(uri)))
	if err != nil {
		return "", noop, fmt.Errorf("FetchToTempFile: creating temp file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("path", tmp.Name()).Msg("Failed to remove temp file")
		}
	}

	if err := f.Storage.Download(ctx, uri, tmp); err != nil {
		tmp.Close()
		cleanup()
		return "", noop, fmt.Errorf("FetchToTempFile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("FetchToTempFile: closing temp file: %w", err)
	}

	return tmp.Name(), cleanup, nil
}

// UploadStore persists uploaded statements and returns the URI to process.
type UploadStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (uri string, err error)
}

// LocalStore keeps uploads in a directory on disk.
type LocalStore struct {
	Dir string
	Now func() time.Time
}

// Save implements UploadStore.
func (s *LocalStore) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("LocalStore.Save: creating %s: %w", s.Dir, err)
	}

	dst := filepath.Join(s.Dir, StoredName(originalName, now(s.Now)))
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("LocalStore.Save: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("LocalStore.Save: writing %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("LocalStore.Save: closing %s: %w", dst, err)
	}
	return dst, nil
}

// BucketStore keeps uploads in a GCS bucket under Prefix.
type BucketStore struct {
	Storage StorageService
	Bucket  string
	Prefix  string
	Now     func() time.Time
}

// Save implements UploadStore.
func (s *BucketStore) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	object := StoredName(originalName, now(s.Now))
	if s.Prefix != "" {
		object = s.Prefix + "/" + object
	}
	if err := s.Storage.Upload(ctx, s.Bucket, object, r); err != nil {
		return "", fmt.Errorf("BucketStore.Save: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.Bucket, object), nil
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now()
}
