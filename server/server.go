// Package server exposes the optimizer and the simulator as Connect RPC
// procedures.
//
// Requests and responses are google.protobuf.Struct messages, so clients
// can use the Connect, gRPC or gRPC-Web protocols with either the binary
// or the JSON codec without generated stubs.
//
//	Optimize  {"machine": {...}, "options": {...}}
//	          -> {"machine": {...}, "run_id": "...", "removed": [...], "eliminated": [...], "joined": [...],
//	              "events": [{"type": "optimize.pass", "level": "DEBUG", "data": {...}}]}
//	Analyze   {"machine": {...}}
//	          -> {"roots": [{"root": "a", "assigns": [...], "uses": [...], "candidate": true}]}
//	Simulate  {"machine": {...}, "input": any}
//	          -> {"output": any, "path": [...], "transitions": n}
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/stateopt/codec"
	"github.com/tailored-agentic-units/stateopt/config"
	"github.com/tailored-agentic-units/stateopt/graph"
	"github.com/tailored-agentic-units/stateopt/observability"
	"github.com/tailored-agentic-units/stateopt/optimize"
	"github.com/tailored-agentic-units/stateopt/simulate"
)

// ServiceName is the fully-qualified name of the service.
const ServiceName = "stateopt.v1.OptimizerService"

// Procedure paths.
const (
	OptimizeProcedure = "/" + ServiceName + "/Optimize"
	AnalyzeProcedure  = "/" + ServiceName + "/Analyze"
	SimulateProcedure = "/" + ServiceName + "/Simulate"
)

// Option configures a Server.
type Option func(*Server)

// WithObserver overrides the observer named in the configuration.
func WithObserver(o observability.Observer) Option {
	return func(s *Server) { s.observer = o }
}

// WithTaskHandler sets the handler used by Simulate. Tasks echo their
// input by default.
func WithTaskHandler(h simulate.TaskHandler) Option {
	return func(s *Server) { s.handler = h }
}

// Server serves the optimizer procedures.
type Server struct {
	cfg      config.Config
	observer observability.Observer
	handler  simulate.TaskHandler
}

// New creates a Server from cfg.
func New(cfg config.Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg, handler: simulate.EchoHandler}
	for _, opt := range opts {
		opt(s)
	}
	if s.observer == nil {
		obs, err := observability.GetObserver(cfg.Optimize.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		s.observer = obs
	}
	return s, nil
}

// Handler returns an http.Handler serving every procedure.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(OptimizeProcedure, connect.NewUnaryHandler(OptimizeProcedure, s.optimize))
	mux.Handle(AnalyzeProcedure, connect.NewUnaryHandler(AnalyzeProcedure, s.analyze))
	mux.Handle(SimulateProcedure, connect.NewUnaryHandler(SimulateProcedure, s.simulate))
	return mux
}

// ListenAndServe serves on the configured address until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) optimize(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	m, err := machineField(req.Msg)
	if err != nil {
		return nil, err
	}

	cfg := s.cfg.Optimize
	if opts, ok := req.Msg.GetFields()["options"]; ok {
		var partial config.OptimizeConfig
		if err := convert(opts.AsInterface(), &partial); err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid options: %w", err))
		}
		// Requests cannot pick the server's observer.
		partial.Observer = ""
		cfg.Merge(&partial)
	}

	rec := observability.NewRecorder()
	out, res, err := optimize.NewWithObserver(cfg, observability.Tee(s.observer, rec)).OptimizeMachine(ctx, m)
	if err != nil {
		return nil, connect.NewError(codeOf(ctx, err), err)
	}

	machine, err := codec.ToValue(out)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return respond(map[string]any{
		"machine":    machine,
		"run_id":     res.RunID,
		"removed":    list(res.Removed),
		"eliminated": list(res.Eliminated),
		"joined":     list(res.Joined),
		"events":     events(rec.Events()),
	})
}

func (s *Server) analyze(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	m, err := machineField(req.Msg)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	an, err := optimize.Analyze(m.StartAt, m.States)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	var roots any
	if err := convert(an.Summary(), &roots); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return respond(map[string]any{"roots": roots})
}

func (s *Server) simulate(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	m, err := machineField(req.Msg)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	var input any = map[string]any{}
	if v, ok := req.Msg.GetFields()["input"]; ok {
		input = v.AsInterface()
	}

	sim := simulate.NewWithObserver(s.cfg.Simulate, s.handler, s.observer)
	exec, err := sim.Execute(ctx, m, input)
	if err != nil {
		var se *simulate.StatesError
		if errors.As(err, &se) {
			return nil, connect.NewError(connect.CodeFailedPrecondition, err)
		}
		return nil, connect.NewError(codeOf(ctx, err), err)
	}
	return respond(map[string]any{
		"output":      exec.Output,
		"path":        list(exec.Path),
		"transitions": exec.Transitions,
	})
}

func machineField(msg *structpb.Struct) (graph.Machine, error) {
	v, ok := msg.GetFields()["machine"]
	if !ok || v.GetStructValue() == nil {
		return graph.Machine{}, connect.NewError(connect.CodeInvalidArgument, errors.New("request has no machine"))
	}
	m, err := codec.FromStruct(v.GetStructValue())
	if err != nil {
		return graph.Machine{}, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return m, nil
}

func respond(v map[string]any) (*connect.Response[structpb.Struct], error) {
	// Normalize through JSON so structpb sees only the types it accepts.
	var norm map[string]any
	if err := convert(v, &norm); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	msg, err := structpb.NewStruct(norm)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func convert(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func codeOf(ctx context.Context, err error) connect.Code {
	switch {
	case ctx.Err() != nil:
		return connect.CodeCanceled
	case errors.Is(err, simulate.ErrMaxTransitions):
		return connect.CodeResourceExhausted
	case errors.Is(err, graph.ErrMissingState),
		errors.Is(err, graph.ErrInvalidTransition),
		errors.Is(err, graph.ErrEmptyStart):
		return connect.CodeInvalidArgument
	}
	return connect.CodeInternal
}

// Event is one optimizer event in the Optimize reply.
type Event struct {
	Type  string              `json:"type"`
	Level observability.Level `json:"level"`
	Data  map[string]any      `json:"data,omitempty"`
}

func events(in []observability.Event) []Event {
	out := make([]Event, len(in))
	for i, e := range in {
		out[i] = Event{Type: string(e.Type), Level: e.Level, Data: e.Data}
	}
	return out
}

// list returns a non-nil slice so empty lists encode as [] rather than
// null.
func list(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
