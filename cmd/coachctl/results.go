package main

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"speech-coach-service/internal/models"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Tail session results from Kafka",
	Args:  cobra.NoArgs,
	RunE:  runResults,
}

func runResults(cmd *cobra.Command, args []string) error {
	brokers, _ := cmd.Flags().GetString("brokers")
	topic, _ := cmd.Flags().GetString("topic")
	since, _ := cmd.Flags().GetDuration("since")
	ctx := cmd.Context()

	// Partition reader without a consumer group.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   strings.Split(brokers, ","),
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		return err
	}
	log.Info().Str("topic", topic).Dur("since", since).Msg("Consuming session results")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		var result models.SessionResult
		if err := json.Unmarshal(msg.Value, &result); err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("Skipping malformed result")
			continue
		}
		if result.EventType != models.EventTypeSessionResult {
			continue
		}
		renderResult(os.Stdout, result)
	}
}
