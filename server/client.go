package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/stateopt/codec"
	"github.com/tailored-agentic-units/stateopt/config"
	"github.com/tailored-agentic-units/stateopt/graph"
)

// Client calls a remote Server.
type Client struct {
	optimize *connect.Client[structpb.Struct, structpb.Struct]
	analyze  *connect.Client[structpb.Struct, structpb.Struct]
	simulate *connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient creates a Client for the server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	return &Client{
		optimize: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+OptimizeProcedure, opts...),
		analyze:  connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+AnalyzeProcedure, opts...),
		simulate: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+SimulateProcedure, opts...),
	}
}

// OptimizeResponse is the decoded reply of Optimize.
type OptimizeResponse struct {
	Machine    graph.Machine `json:"-"`
	RunID      string        `json:"run_id"`
	Removed    []string      `json:"removed"`
	Eliminated []string      `json:"eliminated"`
	Joined     []string      `json:"joined"`
	Events     []Event       `json:"events"`
}

// Optimize optimizes m remotely. options may be nil.
func (c *Client) Optimize(ctx context.Context, m graph.Machine, options *config.OptimizeConfig) (*OptimizeResponse, error) {
	req, err := request(m, nil)
	if err != nil {
		return nil, err
	}
	if options != nil {
		var v map[string]any
		if err := convert(options, &v); err != nil {
			return nil, err
		}
		opts, err := structpb.NewStruct(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}
		req.Fields["options"] = structpb.NewStructValue(opts)
	}

	res, err := c.optimize.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}

	out := &OptimizeResponse{}
	if err := convert(res.Msg.AsMap(), out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	mv := res.Msg.GetFields()["machine"].GetStructValue()
	if mv == nil {
		return nil, fmt.Errorf("response has no machine")
	}
	if out.Machine, err = codec.FromStruct(mv); err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyzeRoot mirrors one entry of the Analyze reply.
type AnalyzeRoot struct {
	Root      string   `json:"root"`
	Assigns   []string `json:"assigns"`
	Uses      []string `json:"uses"`
	Candidate bool     `json:"candidate"`
}

// Analyze reports the variable usage of m.
func (c *Client) Analyze(ctx context.Context, m graph.Machine) ([]AnalyzeRoot, error) {
	req, err := request(m, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.analyze.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	var out struct {
		Roots []AnalyzeRoot `json:"roots"`
	}
	if err := convert(res.Msg.AsMap(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Roots, nil
}

// SimulateResponse is the decoded reply of Simulate.
type SimulateResponse struct {
	Output      any      `json:"output"`
	Path        []string `json:"path"`
	Transitions int      `json:"transitions"`
}

// Simulate runs m against input remotely.
func (c *Client) Simulate(ctx context.Context, m graph.Machine, input any) (*SimulateResponse, error) {
	req, err := request(m, input)
	if err != nil {
		return nil, err
	}
	res, err := c.simulate.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	out := &SimulateResponse{}
	if err := convert(res.Msg.AsMap(), out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

func request(m graph.Machine, input any) (*structpb.Struct, error) {
	ms, err := codec.ToStruct(m)
	if err != nil {
		return nil, err
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"machine": structpb.NewStructValue(ms),
	}}
	if input != nil {
		var norm any
		if err := convert(input, &norm); err != nil {
			return nil, err
		}
		v, err := structpb.NewValue(norm)
		if err != nil {
			return nil, fmt.Errorf("failed to encode input: %w", err)
		}
		req.Fields["input"] = v
	}
	return req, nil
}
