package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorageService fetches audio and image resources. A resource is
// addressed either by a path inside the bucket or by a dereferenceable
// http(s) URL, interchangeably.
type ObjectStorageService interface {
	Fetch(ctx context.Context, pathOrURL string) ([]byte, string, error)
	EnsureBucket(ctx context.Context) error
}

type objectStorageService struct {
	client     *minio.Client
	bucket     string
	httpClient *http.Client
}

func NewObjectStorageService(endpoint, accessKey, secretKey, bucket string, useSSL bool) (ObjectStorageService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &objectStorageService{
		client: client,
		bucket: bucket,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

func (s *objectStorageService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Fetch implements ObjectStorageService. Returns the object bytes and the
// content type reported by the source.
func (s *objectStorageService) Fetch(ctx context.Context, pathOrURL string) ([]byte, string, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return s.fetchURL(ctx, pathOrURL)
	}
	return s.fetchObject(ctx, pathOrURL)
}

func (s *objectStorageService) fetchObject(ctx context.Context, path string) ([]byte, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object %s: %w", path, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object %s: %w", path, err)
	}

	contentType := ""
	if stat, err := obj.Stat(); err == nil {
		contentType = stat.ContentType
	}

	return data, contentType, nil
}

func (s *objectStorageService) fetchURL(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("failed to download %s: HTTP %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read download body: %w", err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
