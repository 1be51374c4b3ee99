// Package storage mirrors finished artifacts to S3-compatible object
// storage. Disk stays the primary store, subprocess converters need real
// paths and the reaper owns deletion, the mirror is an off-host copy.
package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Mirror struct {
	client *minio.Client
	bucket string
}

func NewMirror(ctx context.Context, cfg *Config) (*Mirror, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	m := &Mirror{client: client, bucket: cfg.Bucket}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Mirror) Upload(ctx context.Context, jobID string, f job.StoredFile) error {
	_, err := m.client.FPutObject(ctx, m.bucket, objectName(jobID, f.Name), f.Path, minio.PutObjectOptions{
		ContentType: f.MIME,
	})
	return err
}

// Remove deletes every mirrored object under the job's prefix.
func (m *Mirror) Remove(ctx context.Context, jobID string) error {
	objects := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: jobID + "/"})

	var firstErr error
	for obj := range objects {
		if obj.Err != nil {
			return obj.Err
		}
		err := m.client.RemoveObject(ctx, m.bucket, obj.Key, minio.RemoveObjectOptions{})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func objectName(jobID, filename string) string {
	return fmt.Sprintf("%s/%s", jobID, filename)
}
