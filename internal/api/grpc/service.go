package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"speech-coach-service/internal/service/session"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "speechcoach.v1.SessionService"

const (
	methodStart     = "/" + ServiceName + "/StartSession"
	methodStop      = "/" + ServiceName + "/StopSession"
	methodReset     = "/" + ServiceName + "/ResetSession"
	methodGet       = "/" + ServiceName + "/GetSession"
	methodPushAudio = "/" + ServiceName + "/PushAudio"
)

// StartSessionRequest selects the question of a new session.
type StartSessionRequest struct {
	UserID     string `json:"userId"`
	QuestionID string `json:"questionId,omitempty"`
	Category   string `json:"category,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// Empty is the request of the argument-less calls.
type Empty struct{}

// SessionResponse carries the session state after a call.
type SessionResponse struct {
	Session session.Snapshot `json:"session"`
}

// AudioChunk is one piece of 16-bit little-endian mono PCM.
type AudioChunk struct {
	Data []byte `json:"data"`
}

// PushAudioResponse summarizes a completed audio stream.
type PushAudioResponse struct {
	Chunks       int   `json:"chunks"`
	BytesWritten int64 `json:"bytesWritten"`
}

// SessionServiceServer is the server API of the session service.
type SessionServiceServer interface {
	StartSession(context.Context, *StartSessionRequest) (*SessionResponse, error)
	StopSession(context.Context, *Empty) (*SessionResponse, error)
	ResetSession(context.Context, *Empty) (*SessionResponse, error)
	GetSession(context.Context, *Empty) (*SessionResponse, error)
	PushAudio(AudioStream) error
}

// AudioStream is the server side of PushAudio.
type AudioStream interface {
	Recv() (*AudioChunk, error)
	SendAndClose(*PushAudioResponse) error
	grpc.ServerStream
}

// RegisterSessionServiceServer registers srv on s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartSession", Handler: startHandler},
		{MethodName: "StopSession", Handler: unaryHandler(methodStop, SessionServiceServer.StopSession)},
		{MethodName: "ResetSession", Handler: unaryHandler(methodReset, SessionServiceServer.ResetSession)},
		{MethodName: "GetSession", Handler: unaryHandler(methodGet, SessionServiceServer.GetSession)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "PushAudio", Handler: pushAudioHandler, ClientStreams: true},
	},
	Metadata: "speechcoach/v1/session.proto",
}

func startHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StartSessionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).StartSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodStart}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).StartSession(ctx, req.(*StartSessionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func unaryHandler(method string, call func(SessionServiceServer, context.Context, *Empty) (*SessionResponse, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SessionServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SessionServiceServer), ctx, req.(*Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func pushAudioHandler(srv any, stream grpc.ServerStream) error {
	return srv.(SessionServiceServer).PushAudio(&audioStream{stream})
}

type audioStream struct {
	grpc.ServerStream
}

func (s *audioStream) Recv() (*AudioChunk, error) {
	m := new(AudioChunk)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *audioStream) SendAndClose(m *PushAudioResponse) error {
	return s.ServerStream.SendMsg(m)
}
