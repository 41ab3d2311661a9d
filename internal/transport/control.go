package transport

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"csvflow/internal/event"
	"csvflow/internal/history"
	"csvflow/internal/orchestration"
	"csvflow/internal/transform"
)

const (
	ServiceName = "csvflow.control.v1.Control"

	startMethod    = "/" + ServiceName + "/StartExecution"
	describeMethod = "/" + ServiceName + "/DescribeExecution"
)

// ControlServer starts and describes orchestration runs. Requests and
// replies are google.protobuf.Struct documents:
//
//	StartExecution    {"input": <trigger document>, "sync": bool} → run
//	DescribeExecution {"id": "<run id>"}                          → run
type ControlServer interface {
	StartExecution(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DescribeExecution(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

/*──────── service descriptor ───────*/

func startHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).StartExecution(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: startMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).StartExecution(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func describeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).DescribeExecution(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: describeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).DescribeExecution(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartExecution", Handler: startHandler},
		{MethodName: "DescribeExecution", Handler: describeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "csvflow/control/v1/control.proto",
}

func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&controlServiceDesc, srv)
}

/*──────── implementation ───────*/

type Executor interface {
	Start(ctx context.Context, in transform.Event) orchestration.Run
	Execute(ctx context.Context, in transform.Event) orchestration.Run
}

type RunReader interface {
	Get(ctx context.Context, id string) (orchestration.Run, error)
}

type Control struct {
	exec Executor
	runs RunReader
}

func NewControl(exec Executor, runs RunReader) *Control {
	return &Control{exec: exec, runs: runs}
}

func (c *Control) StartExecution(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	input := req.GetFields()["input"]
	if input == nil {
		return nil, status.Error(codes.InvalidArgument, "input is required")
	}
	doc, err := input.MarshalJSON()
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "input: %v", err)
	}
	ev, err := event.Decode(doc)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "input: %v", err)
	}

	var run orchestration.Run
	if req.GetFields()["sync"].GetBoolValue() {
		run = c.exec.Execute(ctx, ev)
	} else {
		run = c.exec.Start(ctx, ev)
	}
	return runToStruct(run)
}

func (c *Control) DescribeExecution(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	run, err := c.runs.Get(ctx, id)
	if errors.Is(err, history.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "run %q not found", id)
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return runToStruct(run)
}

func runToStruct(run orchestration.Run) (*structpb.Struct, error) {
	raw, err := json.Marshal(run)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
