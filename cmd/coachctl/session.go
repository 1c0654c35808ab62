package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "speech-coach-service/internal/api/grpc"
	"speech-coach-service/internal/service/audio"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a practice session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &grpcapi.StartSessionRequest{}
		req.UserID, _ = cmd.Flags().GetString("user")
		req.QuestionID, _ = cmd.Flags().GetString("question")
		req.Category, _ = cmd.Flags().GetString("category")
		req.Difficulty, _ = cmd.Flags().GetString("difficulty")
		return unary(cmd, func(ctx context.Context, c *grpcapi.Client) (*grpcapi.SessionResponse, error) {
			return c.StartSession(ctx, req)
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop speaking and analyze the answer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return unary(cmd, func(ctx context.Context, c *grpcapi.Client) (*grpcapi.SessionResponse, error) {
			return c.StopSession(ctx)
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Cancel the session and return to idle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return unary(cmd, func(ctx context.Context, c *grpcapi.Client) (*grpcapi.SessionResponse, error) {
			return c.ResetSession(ctx)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return unary(cmd, func(ctx context.Context, c *grpcapi.Client) (*grpcapi.SessionResponse, error) {
			return c.GetSession(ctx)
		})
	},
}

var pushAudioCmd = &cobra.Command{
	Use:   "push-audio <file.wav>",
	Short: "Stream a 16-bit PCM WAV recording into the speaking session",
	Args:  cobra.ExactArgs(1),
	RunE:  runPushAudio,
}

func dial(cmd *cobra.Command) (*grpc.ClientConn, *grpcapi.Client, error) {
	addr, _ := cmd.Flags().GetString("server")
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, grpcapi.DialOptions()...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return conn, grpcapi.NewClient(conn), nil
}

func unary(cmd *cobra.Command, call func(context.Context, *grpcapi.Client) (*grpcapi.SessionResponse, error)) error {
	conn, client, err := dial(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	resp, err := call(ctx, client)
	if err != nil {
		return err
	}
	renderSnapshot(os.Stdout, resp.Session)
	return nil
}

func runPushAudio(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	info, pcm, err := audio.DecodeWAV(data)
	if err != nil {
		return err
	}
	log.Info().
		Int("sampleRate", info.SampleRate).
		Int("channels", info.Channels).
		Float64("seconds", info.Duration()).
		Msg("WAV file loaded")

	chunkMs, _ := cmd.Flags().GetInt("chunk-ms")
	realtime, _ := cmd.Flags().GetBool("realtime")
	chunks := splitPCM(pcm, info.SampleRate, chunkMs)

	conn, client, err := dial(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(info.Duration()*float64(time.Second))+time.Minute)
	defer cancel()

	stream, err := client.PushAudio(ctx)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	start := time.Now()
	for i, chunk := range chunks {
		if err := stream.Send(&grpcapi.AudioChunk{Data: chunk}); err != nil {
			return fmt.Errorf("failed to send chunk %d: %w", i+1, err)
		}
		if (i+1)%10 == 0 {
			log.Debug().Int("chunk", i+1).Int("of", len(chunks)).Msg("Sent audio")
		}
		if realtime {
			time.Sleep(time.Duration(chunkMs) * time.Millisecond)
		}
	}

	resp, err := stream.CloseAndRecv()
	if err != nil {
		return fmt.Errorf("audio stream failed: %w", err)
	}
	log.Info().
		Int("chunks", resp.Chunks).
		Int64("bytes", resp.BytesWritten).
		Dur("elapsed", time.Since(start)).
		Msg("Audio stream completed")
	return nil
}

// splitPCM cuts 16-bit mono PCM into chunks of chunkMs milliseconds. Chunk
// boundaries fall on whole samples.
func splitPCM(pcm []byte, sampleRate, chunkMs int) [][]byte {
	if chunkMs <= 0 {
		chunkMs = 100
	}
	size := sampleRate * chunkMs / 1000 * 2
	if size < 2 {
		size = 2
	}
	var chunks [][]byte
	for len(pcm) > 0 {
		n := min(size, len(pcm))
		chunks = append(chunks, pcm[:n])
		pcm = pcm[n:]
	}
	return chunks
}
