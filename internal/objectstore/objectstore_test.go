package objectstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "raw-bucket", "missing.csv")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Put(ctx, "b", "k", []byte("one"), "text/csv"))
	require.NoError(t, m.Put(ctx, "b", "k", []byte("two"), "application/parquet"))

	data, err := m.Get(ctx, "b", "k")
	require.NoError(t, err)
	require.Equal(t, "two", string(data), "last write wins")

	obj, ok := m.Object("b", "k")
	require.True(t, ok)
	require.Equal(t, "application/parquet", obj.ContentType)
	require.Equal(t, []string{"k"}, m.Keys("b"))

	data[0] = 'X'
	again, err := m.Get(ctx, "b", "k")
	require.NoError(t, err)
	require.Equal(t, "two", string(again), "callers get a copy")
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().Get(ctx, "b", "k")
	require.ErrorIs(t, err, context.Canceled)
}

type flakyGateway struct {
	getErrs []error
	putErrs []error
	gets    atomic.Int32
	puts    atomic.Int32
}

func (f *flakyGateway) Get(context.Context, string, string) ([]byte, error) {
	n := int(f.gets.Add(1)) - 1
	if n < len(f.getErrs) {
		return nil, f.getErrs[n]
	}
	return []byte("ok"), nil
}

func (f *flakyGateway) Put(context.Context, string, string, []byte, string) error {
	n := int(f.puts.Add(1)) - 1
	if n < len(f.putErrs) {
		return f.putErrs[n]
	}
	return nil
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetrying(t *testing.T) {
	ctx := context.Background()

	t.Run("transient get error is retried", func(t *testing.T) {
		f := &flakyGateway{getErrs: []error{errors.New("connection reset"), errors.New("503")}}
		data, err := WithRetry(f, fastRetry(3)).Get(ctx, "b", "k")
		require.NoError(t, err)
		require.Equal(t, "ok", string(data))
		require.EqualValues(t, 3, f.gets.Load())
	})

	t.Run("not found is permanent", func(t *testing.T) {
		f := &flakyGateway{getErrs: []error{ErrNotFound}}
		_, err := WithRetry(f, fastRetry(5)).Get(ctx, "b", "k")
		require.ErrorIs(t, err, ErrNotFound)
		require.EqualValues(t, 1, f.gets.Load())
	})

	t.Run("access denied is permanent", func(t *testing.T) {
		f := &flakyGateway{putErrs: []error{ErrAccessDenied}}
		err := WithRetry(f, fastRetry(5)).Put(ctx, "b", "k", nil, "")
		require.ErrorIs(t, err, ErrAccessDenied)
		require.EqualValues(t, 1, f.puts.Load())
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		f := &flakyGateway{putErrs: []error{ErrWriteFailure, ErrWriteFailure, ErrWriteFailure, ErrWriteFailure}}
		err := WithRetry(f, fastRetry(2)).Put(ctx, "b", "k", nil, "")
		require.ErrorIs(t, err, ErrWriteFailure)
		require.EqualValues(t, 2, f.puts.Load())
	})

	t.Run("single attempt policy does not wrap", func(t *testing.T) {
		f := &flakyGateway{}
		require.Same(t, Gateway(f), WithRetry(f, fastRetry(1)))
	})

	t.Run("close reaches the driver", func(t *testing.T) {
		c := &closingGateway{}
		g := WithRetry(c, fastRetry(3))
		require.NoError(t, g.(io.Closer).Close())
		require.True(t, c.closed)
		require.NoError(t, WithRetry(&flakyGateway{}, fastRetry(3)).(io.Closer).Close())
	})
}

type closingGateway struct {
	Memory
	closed bool
}

func (c *closingGateway) Close() error { c.closed = true; return nil }

type fakeS3 struct {
	s3iface.S3API
	getErr error
	putErr error
	put    *s3.PutObjectInput
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("a,b\n1,2\n"))}, nil
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.put = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3(t *testing.T) {
	ctx := context.Background()

	t.Run("get and put", func(t *testing.T) {
		fake := &fakeS3{}
		g := NewS3FromClient(fake)
		data, err := g.Get(ctx, "raw", "a.csv")
		require.NoError(t, err)
		require.Equal(t, "a,b\n1,2\n", string(data))

		require.NoError(t, g.Put(ctx, "processed", "a.parquet", []byte("PAR1"), "application/parquet"))
		require.Equal(t, "processed", aws.StringValue(fake.put.Bucket))
		require.Equal(t, "a.parquet", aws.StringValue(fake.put.Key))
		require.Equal(t, "application/parquet", aws.StringValue(fake.put.ContentType))
	})

	t.Run("no such key", func(t *testing.T) {
		g := NewS3FromClient(&fakeS3{getErr: awserr.New(s3.ErrCodeNoSuchKey, "gone", nil)})
		_, err := g.Get(ctx, "raw", "a.csv")
		require.ErrorIs(t, err, ErrNotFound)
		var aerr awserr.Error
		require.ErrorAs(t, err, &aerr, "provider error stays in the chain")
	})

	t.Run("forbidden status", func(t *testing.T) {
		rf := awserr.NewRequestFailure(awserr.New("Unknown", "nope", nil), http.StatusForbidden, "req-1")
		g := NewS3FromClient(&fakeS3{getErr: rf})
		_, err := g.Get(ctx, "raw", "a.csv")
		require.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("put failure", func(t *testing.T) {
		g := NewS3FromClient(&fakeS3{putErr: awserr.New("InternalError", "boom", nil)})
		err := g.Put(ctx, "processed", "a.parquet", nil, "application/parquet")
		require.ErrorIs(t, err, ErrWriteFailure)
	})

	t.Run("put denied", func(t *testing.T) {
		g := NewS3FromClient(&fakeS3{putErr: awserr.New("AccessDenied", "no", nil)})
		err := g.Put(ctx, "processed", "a.parquet", nil, "application/parquet")
		require.ErrorIs(t, err, ErrAccessDenied)
		require.NotErrorIs(t, err, ErrWriteFailure)
	})
}

func TestMapMinioError(t *testing.T) {
	require.ErrorIs(t, mapMinioError(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}, nil), ErrNotFound)
	require.ErrorIs(t, mapMinioError(minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}, nil), ErrAccessDenied)
	require.ErrorIs(t, mapMinioError(minio.ErrorResponse{StatusCode: 404}, nil), ErrNotFound)
	require.ErrorIs(t, mapMinioError(minio.ErrorResponse{Code: "SlowDown", StatusCode: 503}, ErrWriteFailure), ErrWriteFailure)
	require.NoError(t, mapMinioError(errors.New("dial tcp: refused"), nil))
}

func TestMapGCSError(t *testing.T) {
	require.ErrorIs(t, mapGCSError(storage.ErrObjectNotExist, nil), ErrNotFound)
	require.ErrorIs(t, mapGCSError(&googleapi.Error{Code: http.StatusForbidden}, ErrWriteFailure), ErrAccessDenied)
	require.ErrorIs(t, mapGCSError(&googleapi.Error{Code: http.StatusInternalServerError}, ErrWriteFailure), ErrWriteFailure)
}

func TestNew(t *testing.T) {
	g, err := New(context.Background(), Config{Kind: "memory"})
	require.NoError(t, err)
	require.IsType(t, &Memory{}, g)

	_, err = New(context.Background(), Config{Kind: "ftp"})
	require.ErrorContains(t, err, `unsupported kind "ftp"`)
	require.Contains(t, Kinds(), "minio")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yml")
	require.NoError(t, os.WriteFile(path, []byte(`schema_version: v1
kind: minio
endpoint: localhost:9000
access_key_id: minioadmin
retry:
  max_attempts: 5
  initial_interval: 50ms
`), 0o644))
	t.Setenv("CSVFLOW_STORE__SECRET_ACCESS_KEY", "from-env")
	t.Setenv("CSVFLOW_STORE__RETRY__MAX_INTERVAL", "2s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "minio", cfg.Kind)
	require.Equal(t, "localhost:9000", cfg.Endpoint)
	require.Equal(t, "from-env", cfg.SecretAccessKey)
	require.Equal(t, "us-east-1", cfg.Region)
	require.Equal(t, 5, cfg.Retry.MaxAttempts)
	require.Equal(t, 50*time.Millisecond, cfg.Retry.InitialInterval)
	require.Equal(t, 2*time.Second, cfg.Retry.MaxInterval)

	missing, err := LoadConfig(filepath.Join(dir, "nope.yml"))
	require.NoError(t, err)
	require.Equal(t, "memory", missing.Kind)

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("schema_version: v7\n"), 0o644))
	_, err = LoadConfig(bad)
	require.Error(t, err)
}
