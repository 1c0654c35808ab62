// Package events publishes session results and live feedback to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"speech-coach-service/internal/models"
	"speech-coach-service/internal/observability/metrics"
	"speech-coach-service/internal/schema"
)

// Publisher publishes live feedback and session results to their own Kafka
// topics. Without brokers it only logs and counts what it would publish.
type Publisher struct {
	live      topic
	result    topic
	principal string
	validator *schema.Validator
	metrics   *metrics.Metrics
}

// topic pairs a Kafka topic with its writer. w is nil in log-only mode.
type topic struct {
	name string
	kind string
	w    *kafka.Writer
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers     []string
	TopicLive   string
	TopicResult string
	Principal   string
	Enabled     bool
}

func (c *Config) active() bool {
	return c != nil && c.Enabled && len(c.Brokers) > 0
}

// New creates a publisher for cfg. A nil or disabled config yields a
// log-only publisher.
func New(cfg *Config) *Publisher {
	if cfg == nil {
		cfg = &Config{}
	}
	p := &Publisher{
		live:      topic{name: cfg.TopicLive, kind: "live"},
		result:    topic{name: cfg.TopicResult, kind: "result"},
		principal: cfg.Principal,
		validator: schema.New(),
		metrics:   metrics.DefaultMetrics,
	}
	if !cfg.active() {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// DNS resolution inside a cluster can be slow on first dial.
	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	transport := &kafka.Transport{Dial: dialer.DialFunc}

	// Live feedback is advisory; results wait for the full ISR.
	p.live.w = newWriter(cfg.Brokers, cfg.TopicLive, kafka.RequireOne, transport)
	p.result.w = newWriter(cfg.Brokers, cfg.TopicResult, kafka.RequireAll, transport)

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicLive", cfg.TopicLive).
		Str("topicResult", cfg.TopicResult).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")
	return p
}

func newWriter(brokers []string, name string, acks kafka.RequiredAcks, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        name,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: acks,
		Transport:    transport,
	}
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.result.w != nil
}

// PublishLiveFeedback publishes one live feedback item, keyed by session.
func (p *Publisher) PublishLiveFeedback(ctx context.Context, event models.LiveFeedbackEvent) error {
	if err := p.validator.Validate(event); err != nil {
		log.Error().Err(err).Str("sessionId", event.SessionID).Msg("Live feedback failed validation")
		return err
	}
	return p.publish(ctx, p.live, event.SessionID, event)
}

// PublishResult publishes a finished session, keyed by session.
func (p *Publisher) PublishResult(ctx context.Context, result models.SessionResult) error {
	if err := p.validator.Validate(result); err != nil {
		log.Error().Err(err).Str("sessionId", result.SessionID).Msg("Session result failed validation")
		return err
	}
	return p.publish(ctx, p.result, result.SessionID, result)
}

// HandleResult publishes result. It lets the publisher act as a session
// result sink.
func (p *Publisher) HandleResult(ctx context.Context, result models.SessionResult) error {
	return p.PublishResult(ctx, result)
}

func (p *Publisher) publish(ctx context.Context, t topic, key string, event any) (err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordEventPublish(t.name, t.kind, err, time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", t.name).Msg("Failed to marshal event")
		return err
	}
	log.Debug().
		Str("topic", t.name).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if t.w == nil {
		return nil
	}
	err = t.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(t.kind)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	})
	if err != nil {
		log.Error().Err(err).Str("topic", t.name).Str("key", key).Msg("Failed to write to Kafka")
	}
	return err
}

// Close closes both writers and returns the first error.
func (p *Publisher) Close() error {
	var first error
	for _, t := range []topic{p.live, p.result} {
		if t.w == nil {
			continue
		}
		if err := t.w.Close(); err != nil {
			log.Error().Err(err).Str("topic", t.name).Msg("Error closing Kafka writer")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
