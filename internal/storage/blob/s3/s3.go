// Package s3 implements a BlobStore backend over any S3-compatible object
// store via minio-go. No example repo in the retrieval pack ships an S3
// client; minio-go is adopted from the wider ecosystem in preference to
// hand-rolling AWS SigV4 signing (see DESIGN.md).
package s3

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/models"
	"github.com/antigravity-dev/ragforge/internal/storage/blob"
)

// Config configures the S3-compatible endpoint, bucket, and credentials.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Store is a BlobStore backed by an S3-compatible object store.
type Store struct {
	client *minio.Client
	bucket string
	logger arbor.ILogger
	retry  blob.RetryConfig
}

// New creates a Store against cfg, ensuring the target bucket exists.
func New(ctx context.Context, cfg Config, logger arbor.ILogger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &blob.PermanentError{Op: "new-client", Err: err}
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, &blob.TransientError{Op: "bucket-exists", Err: err}
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, &blob.PermanentError{Op: "make-bucket", Err: err}
		}
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
		retry:  blob.NewDefaultRetryConfig(),
	}, nil
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return blob.ErrNotFound
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return &blob.PermanentError{Op: op, Err: err}
	default:
		return &blob.TransientError{Op: op, Err: err}
	}
}

// Put atomically writes content; minio's single-shot PutObject call is
// atomic from the reader's perspective (S3 semantics never expose partial
// objects).
func (s *Store) Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", &blob.TransientError{Op: "read-content", Err: err}
	}

	var etag string
	putErr := blob.WithRetry(ctx, s.retry, func() error {
		info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return classify("put", err)
		}
		etag = info.ETag
		return nil
	})
	if putErr != nil {
		return "", putErr
	}
	return etag, nil
}

// Get reads content and content-type for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	var data []byte
	var contentType string

	err := blob.WithRetry(ctx, s.retry, func() error {
		obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return classify("get", err)
		}
		defer obj.Close()

		info, err := obj.Stat()
		if err != nil {
			return classify("stat", err)
		}
		contentType = info.ContentType

		buf, err := io.ReadAll(obj)
		if err != nil {
			return classify("read", err)
		}
		data = buf
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

// List streams every key with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]models.BlobInfo, error) {
	var infos []models.BlobInfo

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, classify("list", obj.Err)
		}
		infos = append(infos, models.BlobInfo{
			Key:         obj.Key,
			ContentType: obj.ContentType,
			ETag:        strings.Trim(obj.ETag, `"`),
			Size:        obj.Size,
		})
	}
	return infos, nil
}

// Delete removes key. Deleting a missing key is not an error (S3 semantics).
func (s *Store) Delete(ctx context.Context, key string) error {
	return blob.WithRetry(ctx, s.retry, func() error {
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return classify("delete", err)
		}
		return nil
	})
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		cls := classify("stat", err)
		if cls == blob.ErrNotFound {
			return false, nil
		}
		return false, cls
	}
	return true, nil
}
