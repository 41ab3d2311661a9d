package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"csvflow/internal/orchestration"
)

type Client struct {
	cc *grpc.ClientConn
}

func Dial(port int) (*Client, error) {
	return DialTarget(fmt.Sprintf("localhost:%d", port))
}

func DialTarget(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Conn() *grpc.ClientConn { return c.cc }

func (c *Client) Close() error { return c.cc.Close() }

// StartExecution submits a trigger document. With wait set the call returns
// the terminal run; otherwise the freshly started one.
func (c *Client) StartExecution(ctx context.Context, doc []byte, wait bool) (orchestration.Run, error) {
	var input interface{}
	if err := json.Unmarshal(doc, &input); err != nil {
		return orchestration.Run{}, fmt.Errorf("trigger document: %w", err)
	}
	req, err := structpb.NewStruct(map[string]interface{}{"input": input, "sync": wait})
	if err != nil {
		return orchestration.Run{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, startMethod, req, out); err != nil {
		return orchestration.Run{}, err
	}
	return structToRun(out)
}

func (c *Client) DescribeExecution(ctx context.Context, id string) (orchestration.Run, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"id": id})
	if err != nil {
		return orchestration.Run{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, describeMethod, req, out); err != nil {
		return orchestration.Run{}, err
	}
	return structToRun(out)
}

func structToRun(s *structpb.Struct) (orchestration.Run, error) {
	raw, err := s.MarshalJSON()
	if err != nil {
		return orchestration.Run{}, err
	}
	var run orchestration.Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return orchestration.Run{}, err
	}
	return run, nil
}
