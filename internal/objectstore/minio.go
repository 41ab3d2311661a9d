package objectstore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Minio talks to any S3-compatible endpoint (MinIO, Ceph, R2, ...).
type Minio struct {
	client *minio.Client
}

func NewMinio(cfg Config) (*Minio, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return &Minio{client: client}, nil
}

func (g *Minio) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := g.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, wrap("minio get", bucket, key, mapMinioError(err, nil), err)
	}
	defer obj.Close()
	// GetObject is lazy; the request error surfaces on first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, wrap("minio get", bucket, key, mapMinioError(err, nil), err)
	}
	return data, nil
}

func (g *Minio) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := g.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return wrap("minio put", bucket, key, mapMinioError(err, ErrWriteFailure), err)
	}
	return nil
}

func mapMinioError(err error, fallback error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NoSuchObject":
		return ErrNotFound
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return ErrAccessDenied
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrAccessDenied
	}
	return fallback
}
