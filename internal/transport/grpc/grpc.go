// Package grpc implements the gRPC transport for voicedesk.
//
// The service voicedesk.v1.Assistant has two unary methods, Query and
// Reset. Messages travel as JSON (content-subtype "json", i.e.
// application/grpc+json) so no generated stubs are needed; Client is the
// matching hand-written stub.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/fault"
	"github.com/nadzzz/voicedesk/internal/message"
	"github.com/nadzzz/voicedesk/internal/transport"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "voicedesk.v1.Assistant"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// QueryRequest is the Query input.
type QueryRequest struct {
	Session      string               `json:"session,omitempty"`
	Source       string               `json:"source,omitempty"`
	Text         string               `json:"text,omitempty"`
	Audio        []byte               `json:"audio,omitempty"`
	ContentType  string               `json:"content_type,omitempty"`
	ResponseMode message.ResponseMode `json:"response_mode,omitempty"`
}

// ResetRequest is the Reset input.
type ResetRequest struct {
	Session string `json:"session"`
}

// ResetResponse is the Reset output.
type ResetResponse struct {
	Session string `json:"session"`
}

// AssistantServer is the server API of voicedesk.v1.Assistant.
type AssistantServer interface {
	Query(context.Context, *QueryRequest) (*message.Result, error)
	Reset(context.Context, *ResetRequest) (*ResetResponse, error)
}

// RegisterAssistantServer registers srv on s.
func RegisterAssistantServer(s grpc.ServiceRegistrar, srv AssistantServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port    int
	maxRecv int
	server  *grpc.Server
}

// New creates a gRPC transport. A zero MaxRecvBytes keeps grpc's 4 MiB default.
func New(cfg config.GRPCConfig) *Transport {
	return &Transport{port: cfg.Port, maxRecv: cfg.MaxRecvBytes}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to svc.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.Serve(ctx, lis, svc)
}

// Serve runs the server on lis until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, svc transport.Service) error {
	var opts []grpc.ServerOption
	if t.maxRecv > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(t.maxRecv))
	}
	t.server = grpc.NewServer(opts...)
	RegisterAssistantServer(t.server, &server{svc: svc})

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.server.GracefulStop()
	}()

	if err := t.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

// Client calls voicedesk.v1.Assistant.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Query calls Assistant/Query.
func (c *Client) Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*message.Result, error) {
	out := new(message.Result)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Query", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Reset calls Assistant/Reset.
func (c *Client) Reset(ctx context.Context, in *ResetRequest, opts ...grpc.CallOption) (*ResetResponse, error) {
	out := new(ResetResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Reset", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Internal helpers ---

const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

type server struct {
	svc transport.Service
}

func (s *server) Query(ctx context.Context, in *QueryRequest) (*message.Result, error) {
	msg := &message.Message{
		ID:           uuid.NewString(),
		Session:      in.Session,
		Source:       in.Source,
		Text:         in.Text,
		Audio:        in.Audio,
		ContentType:  in.ContentType,
		ResponseMode: in.ResponseMode,
		Timestamp:    time.Now(),
	}
	if msg.Source == "" {
		msg.Source = "grpc"
	}

	res, err := s.svc.Handle(ctx, msg)
	if err != nil {
		return nil, toStatus(err)
	}
	defer func() {
		if err := res.Release(); err != nil {
			slog.Warn("releasing reply audio", "message_id", msg.ID, "error", err)
		}
	}()
	if err := res.InlineAudio(); err != nil {
		return nil, status.Errorf(codes.Internal, "reading reply audio: %v", err)
	}
	return res, nil
}

func (s *server) Reset(ctx context.Context, in *ResetRequest) (*ResetResponse, error) {
	if in.Session == "" {
		return nil, status.Error(codes.InvalidArgument, "session is required")
	}
	if err := s.svc.Reset(ctx, in.Session); err != nil {
		return nil, toStatus(err)
	}
	return &ResetResponse{Session: in.Session}, nil
}

// toStatus maps a pipeline error to a gRPC status.
func toStatus(err error) error {
	code := codes.Internal
	switch fault.KindOf(err) {
	case fault.KindInvalidInput:
		code = codes.InvalidArgument
	case fault.KindRateLimited:
		code = codes.ResourceExhausted
	case fault.KindTranscription, fault.KindClassification, fault.KindGeneration, fault.KindSynthesis:
		code = codes.Unavailable
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			code = codes.DeadlineExceeded
		}
	}
	if code != codes.InvalidArgument {
		slog.Error("query failed", "code", code, "error", err)
	}
	return status.Error(code, fault.UserMessage(err))
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AssistantServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: queryHandler},
		{MethodName: "Reset", Handler: resetHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "voicedesk/v1/assistant",
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(QueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Query"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AssistantServer).Query(ctx, req.(*QueryRequest))
	})
}

func resetHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ResetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).Reset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Reset"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AssistantServer).Reset(ctx, req.(*ResetRequest))
	})
}
