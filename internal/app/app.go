// Package app wires the service components together from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"speech-coach-service/internal/catalog"
	"speech-coach-service/internal/config"
	"speech-coach-service/internal/events"
	httpapi "speech-coach-service/internal/http"
	"speech-coach-service/internal/observability"
	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/progress"
	"speech-coach-service/internal/service/feedback"
	"speech-coach-service/internal/service/session"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Catalog   *catalog.Catalog
	Sessions  *session.Orchestrator
	Publisher *events.Publisher
	Recorder  *progress.Recorder
	Hub       *httpapi.Hub

	forwarder *events.LiveForwarder
	redis     *progress.RedisStore
	hubCancel context.CancelFunc
}

// Option customizes New.
type Option func(*options)

type options struct {
	adapters AdapterFunc
	extra    []session.Option
}

// WithAdapterFunc replaces the recognizer selected by configuration.
func WithAdapterFunc(fn AdapterFunc) Option {
	return func(o *options) { o.adapters = fn }
}

// WithSessionOptions passes extra options to the orchestrator.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *options) { o.extra = append(o.extra, opts...) }
}

// New constructs the application from cfg. It connects to Redis when
// enabled and fails if the connection cannot be established.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Application, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
	}

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		c, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		cat = c
	}
	a.Catalog = cat

	style, err := feedback.ParseStyle(cfg.Session.FeedbackStyle)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Progress.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid progress time zone: %w", err)
	}
	adapters := o.adapters
	if adapters == nil {
		if adapters, err = NewAdapterFunc(cfg.STT); err != nil {
			return nil, err
		}
	}

	var store progress.Store = progress.NewMemoryStore()
	if cfg.Redis.Enabled {
		rs, err := progress.DialRedis(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.redis = rs
		store = rs
	}
	a.Recorder = progress.NewRecorder(store, progress.NewTracker(loc))

	a.Publisher = events.New(&events.Config{
		Enabled:     cfg.Kafka.Enabled,
		Brokers:     cfg.Kafka.Brokers,
		TopicLive:   cfg.Kafka.TopicLive,
		TopicResult: cfg.Kafka.TopicResult,
		Principal:   cfg.Kafka.Principal,
	})
	a.forwarder = events.NewLiveForwarder(a.Publisher, 0)
	a.Hub = httpapi.NewHub()

	sessionOpts := []session.Option{
		session.WithSink(a.Recorder),
		session.WithSink(a.Publisher),
		session.WithListener(a.Hub),
		session.WithListener(a.forwarder),
	}
	sessionOpts = append(sessionOpts, o.extra...)

	a.Sessions = session.New(session.Config{
		PrepareDelay:  cfg.Session.PrepareDelay,
		MinDuration:   cfg.Session.MinDuration,
		LiveInterval:  cfg.Session.LiveInterval,
		FrameInterval: cfg.Session.FrameInterval,
		AnalysisDelay: cfg.Session.AnalysisDelay,
		SinkTimeout:   cfg.Session.SinkTimeout,
		FeedbackStyle: style,
	}, cat, NewResourceFactory(cfg, adapters, nil), sessionOpts...)

	a.Logger.Info().
		Int("questions", cat.Len()).
		Str("sttProvider", cfg.STT.Provider).
		Str("audioSource", cfg.Audio.Source).
		Str("progressStore", store.Name()).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Speech coach application created")
	return a, nil
}

// Router returns the HTTP API.
func (a *Application) Router() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Sessions: a.Sessions,
		Catalog:  a.Catalog,
		Progress: a.Recorder,
		Hub:      a.Hub,
		Ready:    a.ReadyChecks(),
	})
}

// ReadyChecks returns the dependency checks behind /readyz.
func (a *Application) ReadyChecks() map[string]observability.Check {
	checks := map[string]observability.Check{
		"sessions": func(ctx context.Context) error {
			_, err := a.Sessions.Snapshot(ctx)
			return err
		},
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Ping
	}
	return checks
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.hubCancel = cancel
	go a.Hub.Run(ctx)

	a.StartupTime = time.Now().UTC()
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Speech coach service starting")
	return nil
}

// Shutdown stops the session loop, waits for pending result sinks and
// releases external clients.
func (a *Application) Shutdown() {
	a.Logger.Info().Msg("Speech coach service shutting down")

	if err := a.Sessions.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Error closing sessions")
	}
	a.forwarder.Close()
	if a.hubCancel != nil {
		a.hubCancel()
	}
	a.closeClients()
}

func (a *Application) closeClients() {
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Error closing publisher")
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing redis")
		}
	}
}
