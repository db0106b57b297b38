// Package miniostorage provides structure to work with minio-storage
package miniostorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/UnendingLoop/ImageThumbnailer/internal/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/config"
)

// thumbnailCacheControl marks produced thumbnails as immutable: a job never rewrites its result key.
const thumbnailCacheControl = "public, max-age=31536000, immutable"

type MinioStorage struct {
	bucket string
	client *minio.Client
}

func NewMinioClient(ctx context.Context, cfg *config.Config) (*MinioStorage, error) {
	cfg.SetDefault("BUCKET_NAME", "thumbnails")
	bucket := cfg.GetString("BUCKET_NAME")

	user := cfg.GetString("MINIO_USER")
	pass := cfg.GetString("MINIO_PASS")
	addr := cfg.GetString("MINIO_CONTAINER_NAME")

	strg, err := minio.New(addr+":9000", &minio.Options{
		Creds:  credentials.NewStaticV4(user, pass, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	if err := ensureBucket(ctx, strg, bucket); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket %q: %w", bucket, err)
	}

	return &MinioStorage{bucket: bucket, client: strg}, nil
}

// Put uploads an object. meta is stored as user metadata next to it.
func (s *MinioStorage) Put(ctx context.Context, key string, size int64, contentType string, r io.Reader, meta map[string]string) error {
	if r == nil {
		return errors.New("nil reader passed to storage.Put")
	}

	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	}
	if len(meta) > 0 {
		opts.CacheControl = thumbnailCacheControl
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, opts); err != nil {
		return err
	}

	return nil
}

func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// Get opens an object for reading. A missing key yields model.ErrObjectNotFound.
func (s *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	res, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", mapNotFound(err)
	}

	resStat, err := res.Stat()
	if err != nil {
		if cErr := res.Close(); cErr != nil {
			log.Println("Failed to close object after failed stat:", cErr)
		}
		return nil, "", mapNotFound(err)
	}

	return res, resStat.ContentType, nil
}

func mapNotFound(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %v", model.ErrObjectNotFound, err)
	}
	return err
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}
