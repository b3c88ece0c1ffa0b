// Package jobtest provides an in-memory Zeebe job client for handler tests.
// Commands are built with the real zeebe command builders and recorded
// instead of being sent to a gateway.
package jobtest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"google.golang.org/grpc"
)

// NewJob builds an activated job carrying variables as its JSON payload.
func NewJob(key int64, taskType string, variables interface{}) entities.Job {
	var payload string
	switch v := variables.(type) {
	case string:
		payload = v
	default:
		data, _ := json.Marshal(v)
		payload = string(data)
	}
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               taskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "chatbot-test",
		ElementId:          "Activity_" + taskType,
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          payload,
	}}
}

// Client records every command a handler sends.
type Client struct {
	gateway *gateway
}

var _ worker.JobClient = (*Client)(nil)

func NewClient() *Client {
	return &Client{gateway: &gateway{}}
}

func noRetry(context.Context, error) bool { return false }

func (c *Client) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.gateway, noRetry)
}

func (c *Client) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.gateway, noRetry)
}

func (c *Client) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.gateway, noRetry)
}

// Completed returns the variables of every completed job, decoded.
func (c *Client) Completed() []map[string]interface{} {
	c.gateway.mu.Lock()
	defer c.gateway.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(c.gateway.completed))
	for _, req := range c.gateway.completed {
		out = append(out, decode(req.Variables))
	}
	return out
}

func (c *Client) Failed() []*pb.FailJobRequest {
	c.gateway.mu.Lock()
	defer c.gateway.mu.Unlock()
	return append([]*pb.FailJobRequest(nil), c.gateway.failed...)
}

func (c *Client) Thrown() []*pb.ThrowErrorRequest {
	c.gateway.mu.Lock()
	defer c.gateway.mu.Unlock()
	return append([]*pb.ThrowErrorRequest(nil), c.gateway.thrown...)
}

// Variables decodes the JSON variables of a fail or throw request.
func Variables(raw string) map[string]interface{} {
	return decode(raw)
}

func decode(raw string) map[string]interface{} {
	out := map[string]interface{}{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &out)
	}
	return out
}

// gateway implements only the job RPCs; any other call panics on the nil
// embedded client.
type gateway struct {
	pb.GatewayClient

	mu        sync.Mutex
	completed []*pb.CompleteJobRequest
	failed    []*pb.FailJobRequest
	thrown    []*pb.ThrowErrorRequest
}

func (g *gateway) CompleteJob(_ context.Context, in *pb.CompleteJobRequest, _ ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed = append(g.completed, in)
	return &pb.CompleteJobResponse{}, nil
}

func (g *gateway) FailJob(_ context.Context, in *pb.FailJobRequest, _ ...grpc.CallOption) (*pb.FailJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed = append(g.failed, in)
	return &pb.FailJobResponse{}, nil
}

func (g *gateway) ThrowError(_ context.Context, in *pb.ThrowErrorRequest, _ ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.thrown = append(g.thrown, in)
	return &pb.ThrowErrorResponse{}, nil
}
