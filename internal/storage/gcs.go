package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/mareon-hq/mareon-backend/internal/common"
)

// BlobStore issues time-limited signed URLs against the document bucket.
// Uploads go straight from the client to object storage; this service never
// proxies file bytes.
type BlobStore interface {
	// GenerateUploadURL returns a signed PUT URL bound to exactly this
	// object path and content type. contentMD5 (base64, optional) binds the
	// upload to the client-declared content hash.
	GenerateUploadURL(ctx context.Context, path, contentType, contentMD5 string, ttl time.Duration) (string, error)
	// GenerateDownloadURL returns a signed GET URL; filename (optional)
	// sets the download disposition.
	GenerateDownloadURL(ctx context.Context, path string, ttl time.Duration, filename string) (string, error)
}

type gcsStore struct {
	client *gcs.Client
	bucket string
	logger *slog.Logger
}

// NewGCSStore builds a BlobStore over Google Cloud Storage using V4 URL
// signing.
func NewGCSStore(ctx context.Context, bucket string, logger *slog.Logger, opts ...option.ClientOption) (BlobStore, error) {
	if bucket == "" {
		return nil, common.NewAppError("STORAGE", "bucket is required", nil)
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, common.WrapError(err, "create storage client")
	}
	return &gcsStore{client: client, bucket: bucket, logger: logger}, nil
}

func (s *gcsStore) GenerateUploadURL(_ context.Context, path, contentType, contentMD5 string, ttl time.Duration) (string, error) {
	opts := &gcs.SignedURLOptions{
		Scheme:      gcs.SigningSchemeV4,
		Method:      "PUT",
		Expires:     time.Now().Add(ttl),
		ContentType: contentType,
		MD5:         contentMD5,
	}
	u, err := s.client.Bucket(s.bucket).SignedURL(path, opts)
	if err != nil {
		s.logger.Error("failed to sign upload url", "path", path, "error", err)
		return "", common.WrapError(err, "sign upload url")
	}
	return u, nil
}

func (s *gcsStore) GenerateDownloadURL(_ context.Context, path string, ttl time.Duration, filename string) (string, error) {
	opts := &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	}
	if filename != "" {
		opts.QueryParameters = url.Values{
			"response-content-disposition": []string{fmt.Sprintf("attachment; filename=%q", filename)},
		}
	}
	u, err := s.client.Bucket(s.bucket).SignedURL(path, opts)
	if err != nil {
		s.logger.Error("failed to sign download url", "path", path, "error", err)
		return "", common.WrapError(err, "sign download url")
	}
	return u, nil
}
