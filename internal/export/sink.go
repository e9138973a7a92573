package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/raphaelgruber/clipforge/internal/models"
)

// Sink stores a rendered export and returns where it ended up.
type Sink interface {
	Put(ctx context.Context, name string, data []byte, format Format) (string, error)
}

// ObjectName builds a stable name for an export: <topic-slug>-<draft-id><ext>.
func ObjectName(exp *models.PostDraftExport, format Format) string {
	name := models.Slugify(exp.Idea.Topic)
	if len(name) > 48 {
		name = name[:48]
	}
	if name == "" {
		name = "draft"
	}
	return fmt.Sprintf("%s-%s%s", name, exp.Draft.ID, format.Ext())
}

// DirSink writes exports to a local directory.
type DirSink struct {
	Dir string
}

// Put writes data to Dir/name and returns the file path.
func (s DirSink) Put(_ context.Context, name string, data []byte, _ Format) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// MinIOConfig configures an S3-compatible export bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
	URLExpiry time.Duration
}

// MinIOSink uploads exports to an S3-compatible bucket.
type MinIOSink struct {
	client *minio.Client
	cfg    MinIOConfig
}

// NewMinIOSink creates a sink. The bucket is created on first upload if missing.
func NewMinIOSink(cfg MinIOConfig) (*MinIOSink, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = 24 * time.Hour
	}
	return &MinIOSink{client: client, cfg: cfg}, nil
}

// Put uploads data and returns a presigned download URL.
func (s *MinIOSink) Put(ctx context.Context, name string, data []byte, format Format) (string, error) {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return "", fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("create bucket: %w", err)
		}
	}

	objectName := s.cfg.Prefix + name
	_, err = s.client.PutObject(ctx, s.cfg.Bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: format.ContentType(),
	})
	if err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.cfg.Bucket, objectName, s.cfg.URLExpiry, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("presign export url: %w", err)
	}
	return presigned.String(), nil
}
