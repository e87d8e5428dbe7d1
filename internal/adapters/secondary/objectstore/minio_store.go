package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL prefixes every locator. Defaults to the endpoint URL
	// followed by the bucket name.
	PublicBaseURL string
}

type minioStore struct {
	client *minio.Client
	bucket string
	base   string
}

// NewMinioStore connects to the bucket, creating it when missing.
func NewMinioStore(ctx context.Context, cfg Config) (ports.ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		log.WithField("bucket", cfg.Bucket).Info("bucket created")
	}

	return newMinioStore(client, cfg), nil
}

func newMinioStore(client *minio.Client, cfg Config) *minioStore {
	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &minioStore{client: client, bucket: cfg.Bucket, base: strings.TrimRight(base, "/")}
}

func (s *minioStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.locator(key), nil
}

func (s *minioStore) Copy(ctx context.Context, srcLocator, dstKey string) (string, error) {
	srcKey, err := s.key(srcLocator)
	if err != nil {
		return "", err
	}
	_, err = s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey},
	)
	if err != nil {
		return "", mapError(fmt.Sprintf("copy object %s", srcKey), err)
	}
	return s.locator(dstKey), nil
}

func (s *minioStore) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	key, err := s.key(locator)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(fmt.Sprintf("get object %s", key), err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapError(fmt.Sprintf("get object %s", key), err)
	}
	return obj, nil
}

func (s *minioStore) Stat(ctx context.Context, locator string) (ports.ObjectInfo, error) {
	key, err := s.key(locator)
	if err != nil {
		return ports.ObjectInfo{}, err
	}
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ports.ObjectInfo{}, mapError(fmt.Sprintf("stat object %s", key), err)
	}
	return ports.ObjectInfo{Locator: locator, Size: info.Size, LastModified: info.LastModified}, nil
}

func (s *minioStore) Delete(ctx context.Context, locator string) error {
	key, err := s.key(locator)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return mapError(fmt.Sprintf("remove object %s", key), err)
	}
	return nil
}

func (s *minioStore) locator(key string) string {
	return s.base + "/" + strings.TrimLeft(key, "/")
}

func (s *minioStore) key(locator string) (string, error) {
	prefix := s.base + "/"
	if !strings.HasPrefix(locator, prefix) {
		return "", domain.ErrInvalidLocator
	}
	return strings.TrimPrefix(locator, prefix), nil
}

func mapError(op string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return domain.ErrObjectNotFound
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.StatusCode == 404 {
		return domain.ErrObjectNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
