package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"speech-coach-service/internal/catalog"
	"speech-coach-service/internal/models"
	"speech-coach-service/internal/service/audio"
	"speech-coach-service/internal/service/feedback"
	"speech-coach-service/internal/service/scoring"
)

// frameInterval matches the live sampling cadence of a session.
const frameInterval = 16 * time.Millisecond

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score a transcript and recording offline",
	Long:  `Score a transcript the way a finished session is scored. The optional WAV recording supplies the volume history and, unless --duration is set, the speaking time.`,
	Args:  cobra.NoArgs,
	RunE:  runAnalyze,
}

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List the speaking questions",
	Args:  cobra.NoArgs,
	RunE:  runQuestions,
}

type offlineInput struct {
	Transcript string
	Seconds    float64
	History    []float64
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	in, err := loadOfflineInput(cmd)
	if err != nil {
		return err
	}
	styleName, _ := cmd.Flags().GetString("style")
	style, err := feedback.ParseStyle(styleName)
	if err != nil {
		return err
	}

	a := scoring.Default().Analyze(in.Transcript, in.Seconds, in.History)
	items := feedback.NewGenerator(style).Final(a)

	renderAnalysis(os.Stdout, a)
	fmt.Println()
	renderFeedback(os.Stdout, items)
	return nil
}

func loadOfflineInput(cmd *cobra.Command) (offlineInput, error) {
	var in offlineInput
	in.Transcript, _ = cmd.Flags().GetString("transcript")
	if path, _ := cmd.Flags().GetString("transcript-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return in, err
		}
		in.Transcript = strings.TrimSpace(string(data))
	}
	if in.Transcript == "" {
		return in, errors.New("a transcript is required: use --transcript or --transcript-file")
	}

	if path, _ := cmd.Flags().GetString("audio"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return in, err
		}
		info, pcm, err := audio.DecodeWAV(data)
		if err != nil {
			return in, err
		}
		in.History = audio.HistoryFromPCM(audio.PCM16ToFloat(pcm), info.SampleRate, frameInterval, nil)
		in.Seconds = info.Duration()
	}
	if d, _ := cmd.Flags().GetFloat64("duration"); d > 0 {
		in.Seconds = d
	}
	if in.Seconds <= 0 {
		return in, errors.New("speaking time unknown: use --audio or --duration")
	}
	return in, nil
}

func runQuestions(cmd *cobra.Command, args []string) error {
	cat := catalog.Default()
	if path, _ := cmd.Flags().GetString("catalog"); path != "" {
		c, err := catalog.Load(path)
		if err != nil {
			return err
		}
		cat = c
	}

	category, _ := cmd.Flags().GetString("category")
	difficulty, _ := cmd.Flags().GetString("difficulty")
	if category != "" && !models.Category(category).Valid() {
		return fmt.Errorf("unknown category %q", category)
	}
	if difficulty != "" && !models.Difficulty(difficulty).Valid() {
		return fmt.Errorf("unknown difficulty %q", difficulty)
	}

	qs := cat.Filter(models.Category(category), models.Difficulty(difficulty))
	if len(qs) == 0 {
		fmt.Println("No questions found.")
		return nil
	}
	renderQuestions(os.Stdout, qs)
	return nil
}
