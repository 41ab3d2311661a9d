package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

type S3 struct {
	client s3iface.S3API
}

func NewS3(cfg Config) (*S3, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).
			WithS3ForcePathStyle(cfg.ForcePathStyle).
			WithDisableSSL(!cfg.UseSSL)
	}
	if cfg.AccessKeyID != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}
	return NewS3FromClient(s3.New(sess)), nil
}

func NewS3FromClient(client s3iface.S3API) *S3 { return &S3{client: client} }

func (g *S3) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := g.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrap("s3 get", bucket, key, mapS3Error(err, nil), err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 get %s/%s: read body: %w", bucket, key, err)
	}
	return data, nil
}

func (g *S3) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := g.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return wrap("s3 put", bucket, key, mapS3Error(err, ErrWriteFailure), err)
	}
	return nil
}

func mapS3Error(err error, fallback error) error {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return fallback
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
		return ErrNotFound
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
		return ErrAccessDenied
	}
	var rf awserr.RequestFailure
	if errors.As(err, &rf) {
		switch rf.StatusCode() {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusForbidden:
			return ErrAccessDenied
		}
	}
	return fallback
}

// wrap keeps both the sentinel (when known) and the provider error in the chain.
func wrap(op, bucket, key string, sentinel, err error) error {
	if sentinel == nil {
		return fmt.Errorf("%s %s/%s: %w", op, bucket, key, err)
	}
	return fmt.Errorf("%s %s/%s: %w: %w", op, bucket, key, sentinel, err)
}
