// Package grpcapi exposes session control over gRPC.
package grpcapi

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"speech-coach-service/internal/catalog"
	"speech-coach-service/internal/models"
	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/service/audio"
	"speech-coach-service/internal/service/session"
	"speech-coach-service/internal/service/stt"
)

// Sessions is the session control surface served over gRPC.
type Sessions interface {
	Start(ctx context.Context, req session.StartRequest) (session.Snapshot, error)
	Stop(ctx context.Context) (session.Snapshot, error)
	Reset(ctx context.Context) (session.Snapshot, error)
	Snapshot(ctx context.Context) (session.Snapshot, error)
	WriteAudio(ctx context.Context, pcm []byte) (int, error)
}

type Server struct {
	sessions Sessions
	log      zerolog.Logger
}

// Register creates a server for sessions and registers it on g.
func Register(g *grpc.Server, sessions Sessions) *Server {
	s := &Server{
		sessions: sessions,
		log:      logging.WithComponent("grpc"),
	}
	RegisterSessionServiceServer(g, s)
	return s
}

func (s *Server) StartSession(ctx context.Context, req *StartSessionRequest) (*SessionResponse, error) {
	category := models.Category(req.Category)
	if category != "" && !category.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "unknown category %q", req.Category)
	}
	difficulty := models.Difficulty(req.Difficulty)
	if difficulty != "" && !difficulty.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "unknown difficulty %q", req.Difficulty)
	}

	snap, err := s.sessions.Start(ctx, session.StartRequest{
		UserID:     req.UserID,
		QuestionID: req.QuestionID,
		Category:   category,
		Difficulty: difficulty,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &SessionResponse{Session: snap}, nil
}

func (s *Server) StopSession(ctx context.Context, _ *Empty) (*SessionResponse, error) {
	snap, err := s.sessions.Stop(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SessionResponse{Session: snap}, nil
}

func (s *Server) ResetSession(ctx context.Context, _ *Empty) (*SessionResponse, error) {
	snap, err := s.sessions.Reset(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SessionResponse{Session: snap}, nil
}

func (s *Server) GetSession(ctx context.Context, _ *Empty) (*SessionResponse, error) {
	snap, err := s.sessions.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SessionResponse{Session: snap}, nil
}

// PushAudio writes every received chunk into the active session.
func (s *Server) PushAudio(stream AudioStream) error {
	ctx := stream.Context()
	var resp PushAudioResponse

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			s.log.Info().
				Int("chunks", resp.Chunks).
				Int64("bytes", resp.BytesWritten).
				Msg("Audio stream completed")
			return stream.SendAndClose(&resp)
		}
		if err != nil {
			return err
		}
		if len(chunk.Data) == 0 {
			continue
		}
		n, err := s.sessions.WriteAudio(ctx, chunk.Data)
		resp.BytesWritten += int64(n)
		if err != nil {
			s.log.Warn().Err(err).Int("chunks", resp.Chunks).Msg("Audio stream rejected")
			return toStatus(err)
		}
		resp.Chunks++
	}
}

// toStatus maps service errors to gRPC status codes.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, catalog.ErrUnknownQuestion), errors.Is(err, catalog.ErrNoQuestions):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, session.ErrSessionActive), errors.Is(err, session.ErrNoAudioInput):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, audio.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, audio.ErrDeviceUnavailable), errors.Is(err, stt.ErrUnavailable), errors.Is(err, session.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
