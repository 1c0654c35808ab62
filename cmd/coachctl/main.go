// Command coachctl drives a speech coach service from the terminal and scores
// recordings offline.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coachctl",
	Short: "Control and inspect the speech coach service",
	Long:  `coachctl starts and stops practice sessions over gRPC, streams WAV recordings, scores transcripts offline and tails published session results.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).
			With().
			Timestamp().
			Logger()
	},
}

func init() {
	rootCmd.PersistentFlags().String("server", "localhost:50051", "gRPC server address")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "Timeout of unary calls")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	startCmd.Flags().String("user", "", "User ID recorded with the session")
	startCmd.Flags().String("question", "", "Question ID; wins over the filters")
	startCmd.Flags().String("category", "", "Random question from this category")
	startCmd.Flags().String("difficulty", "", "Random question of this difficulty")

	pushAudioCmd.Flags().Int("chunk-ms", 100, "Milliseconds of audio per chunk")
	pushAudioCmd.Flags().Bool("realtime", true, "Pace chunks at the recording's speed")

	analyzeCmd.Flags().String("transcript", "", "Transcript text to score")
	analyzeCmd.Flags().String("transcript-file", "", "File holding the transcript to score")
	analyzeCmd.Flags().String("audio", "", "WAV recording used for the volume history")
	analyzeCmd.Flags().Float64("duration", 0, "Speaking time in seconds; defaults to the recording length")
	analyzeCmd.Flags().String("style", "standard", "Feedback message set: standard or executive")

	questionsCmd.Flags().String("category", "", "Only questions of this category")
	questionsCmd.Flags().String("difficulty", "", "Only questions of this difficulty")
	questionsCmd.Flags().String("catalog", "", "YAML catalog file; defaults to the built-in catalog")

	resultsCmd.Flags().String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	resultsCmd.Flags().String("topic", "speech.session.result", "Session result topic")
	resultsCmd.Flags().Duration("since", time.Hour, "Replay results newer than this")

	rootCmd.AddCommand(startCmd, stopCmd, resetCmd, statusCmd, pushAudioCmd)
	rootCmd.AddCommand(analyzeCmd, questionsCmd, resultsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
