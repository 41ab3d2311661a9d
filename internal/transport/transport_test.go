package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"csvflow/internal/history"
	"csvflow/internal/orchestration"
	"csvflow/internal/transform"
)

type echoWorker struct{}

func (echoWorker) Handle(_ context.Context, ev transform.Event) (transform.Output, error) {
	if len(ev.Entries) == 0 {
		return transform.Output{StatusCode: 400, Body: transform.ErrEmptyEvent.Error()}, nil
	}
	if ev.Entries[0].Key == "broken.csv" {
		return transform.Output{}, &transform.DecodeError{Key: "broken.csv", Line: 3, Err: errors.New("bare quote in non-quoted field")}
	}
	return transform.Output{StatusCode: 200, Body: transform.SuccessBody}, nil
}

func startBufServer(t *testing.T) (*Client, *orchestration.Machine) {
	t.Helper()
	store := history.NewMemory()
	m := orchestration.NewMachine(echoWorker{}, orchestration.Options{Timeout: time.Second, Recorder: store})
	srv := NewServer(NewControl(m, store))

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.ServeListener(lis) }()
	t.Cleanup(srv.Stop)

	cli, err := DialTarget("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })
	return cli, m
}

func TestControl_SyncExecution(t *testing.T) {
	cli, _ := startBufServer(t)
	ctx := context.Background()

	run, err := cli.StartExecution(ctx, []byte(`{"Records":[{"s3":{"bucket":{"name":"raw"},"object":{"key":"a.csv"}}}]}`), true)
	require.NoError(t, err)
	require.Equal(t, orchestration.Succeeded, run.State)
	require.Equal(t, 200, run.Output.StatusCode)
	require.Equal(t, []transform.Entry{{Bucket: "raw", Key: "a.csv"}}, run.Input.Entries)

	got, err := cli.DescribeExecution(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, run.ID, got.ID)
	require.Equal(t, orchestration.Succeeded, got.State)

	failed, err := cli.StartExecution(ctx, []byte(`{"entries":[{"bucket":"raw","key":"broken.csv"}]}`), true)
	require.NoError(t, err)
	require.Equal(t, orchestration.Failed, failed.State)
	require.Equal(t, "DecodeError", failed.ErrorName())
}

func TestControl_AsyncExecution(t *testing.T) {
	cli, m := startBufServer(t)
	ctx := context.Background()

	run, err := cli.StartExecution(ctx, []byte(`{"entries":[]}`), false)
	require.NoError(t, err)
	require.Equal(t, orchestration.Invoking, run.State)

	m.Wait()
	got, err := cli.DescribeExecution(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, orchestration.Succeeded, got.State)
	require.Equal(t, 400, got.Output.StatusCode)
}

func TestControl_Errors(t *testing.T) {
	cli, _ := startBufServer(t)
	ctx := context.Background()

	_, err := cli.DescribeExecution(ctx, "nope")
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = cli.DescribeExecution(ctx, "")
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = cli.StartExecution(ctx, []byte(`{`), true)
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	cli, _ := startBufServer(t)
	resp, err := healthpb.NewHealthClient(cli.Conn()).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
