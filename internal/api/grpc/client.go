package grpcapi

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls the session service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc. Calls use the JSON codec.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// DialOptions returns the options every connection to the service needs.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName))}
}

func (c *Client) StartSession(ctx context.Context, req *StartSessionRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	out := new(SessionResponse)
	if err := c.cc.Invoke(ctx, methodStart, req, out, c.callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StopSession(ctx context.Context, opts ...grpc.CallOption) (*SessionResponse, error) {
	return c.invokeEmpty(ctx, methodStop, opts)
}

func (c *Client) ResetSession(ctx context.Context, opts ...grpc.CallOption) (*SessionResponse, error) {
	return c.invokeEmpty(ctx, methodReset, opts)
}

func (c *Client) GetSession(ctx context.Context, opts ...grpc.CallOption) (*SessionResponse, error) {
	return c.invokeEmpty(ctx, methodGet, opts)
}

// PushAudio opens a client stream of PCM chunks.
func (c *Client) PushAudio(ctx context.Context, opts ...grpc.CallOption) (*AudioPushStream, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], methodPushAudio, c.callOpts(opts)...)
	if err != nil {
		return nil, err
	}
	return &AudioPushStream{stream}, nil
}

func (c *Client) invokeEmpty(ctx context.Context, method string, opts []grpc.CallOption) (*SessionResponse, error) {
	out := new(SessionResponse)
	if err := c.cc.Invoke(ctx, method, &Empty{}, out, c.callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

// AudioPushStream is the client side of PushAudio.
type AudioPushStream struct {
	grpc.ClientStream
}

// Send writes one chunk.
func (s *AudioPushStream) Send(chunk *AudioChunk) error {
	return s.ClientStream.SendMsg(chunk)
}

// CloseAndRecv half-closes the stream and waits for the summary.
func (s *AudioPushStream) CloseAndRecv() (*PushAudioResponse, error) {
	if err := s.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(PushAudioResponse)
	if err := s.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
