// Package config loads service configuration from an optional YAML file and
// environment variables. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service configuration.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	STT           STTConfig           `yaml:"stt"`
	Audio         AudioConfig         `yaml:"audio"`
	Session       SessionConfig       `yaml:"session"`
	Transcript    TranscriptConfig    `yaml:"transcript"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Redis         RedisConfig         `yaml:"redis"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Progress      ProgressConfig      `yaml:"progress"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServiceConfig holds service identity and listener ports.
type ServiceConfig struct {
	Principal string `yaml:"principal"`
	GRPCPort  string `yaml:"grpc_port"`
	HTTPPort  string `yaml:"http_port"`
}

// STTConfig holds speech-to-text settings.
type STTConfig struct {
	Provider       string `yaml:"provider"` // mock or google
	LanguageCode   string `yaml:"language_code"`
	SampleRateHz   int    `yaml:"sample_rate_hz"`
	InterimResults bool   `yaml:"interim_results"`
	AudioEncoding  string `yaml:"audio_encoding"`
}

// AudioConfig selects the audio input device.
type AudioConfig struct {
	Source       string `yaml:"source"` // stream or file
	FilePath     string `yaml:"file_path"`
	SampleRateHz int    `yaml:"sample_rate_hz"`
	WindowSize   int    `yaml:"window_size"`
}

// SessionConfig holds the session timings.
type SessionConfig struct {
	PrepareDelay  time.Duration `yaml:"prepare_delay"`
	MinDuration   time.Duration `yaml:"min_duration"`
	LiveInterval  time.Duration `yaml:"live_interval"`
	FrameInterval time.Duration `yaml:"frame_interval"`
	AnalysisDelay time.Duration `yaml:"analysis_delay"`
	SinkTimeout   time.Duration `yaml:"sink_timeout"`
	FeedbackStyle string        `yaml:"feedback_style"`
}

// TranscriptConfig bounds what one utterance may consume.
type TranscriptConfig struct {
	MaxAudioBytes int64 `yaml:"max_audio_bytes"`
	MaxPartials   int   `yaml:"max_partials"`
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Brokers     []string `yaml:"brokers"`
	TopicLive   string   `yaml:"topic_live"`
	TopicResult string   `yaml:"topic_result"`
	Principal   string   `yaml:"principal"`
}

// RedisConfig holds the progress store connection.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CatalogConfig points at an optional question catalog file. Empty uses the
// built-in catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// ProgressConfig holds progress aggregation settings.
type ProgressConfig struct {
	TimeZone string `yaml:"time_zone"` // IANA name used to count streak days
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal: "svc-speech-coach",
			GRPCPort:  "50051",
			HTTPPort:  "8080",
		},
		STT: STTConfig{
			Provider:       "mock",
			LanguageCode:   "en-US",
			SampleRateHz:   16000,
			InterimResults: true,
			AudioEncoding:  "LINEAR16",
		},
		Audio: AudioConfig{
			Source:       "stream",
			SampleRateHz: 16000,
			WindowSize:   256,
		},
		Session: SessionConfig{
			PrepareDelay:  3 * time.Second,
			MinDuration:   5 * time.Minute,
			LiveInterval:  10 * time.Second,
			FrameInterval: 16 * time.Millisecond,
			AnalysisDelay: time.Second,
			SinkTimeout:   10 * time.Second,
			FeedbackStyle: "standard",
		},
		Transcript: TranscriptConfig{
			MaxAudioBytes: 5 * 1024 * 1024,
			MaxPartials:   500,
		},
		Kafka: KafkaConfig{
			TopicLive:   "speech.session.feedback.live",
			TopicResult: "speech.session.result",
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Progress: ProgressConfig{
			TimeZone: "UTC",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load returns the defaults overridden by environment variables.
func Load() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile decodes the YAML file at path over the defaults, then applies
// environment variables.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", c.Service.Principal)
	c.Service.GRPCPort = envOrDefault("GRPC_PORT", c.Service.GRPCPort)
	c.Service.HTTPPort = envOrDefault("HTTP_PORT", c.Service.HTTPPort)

	c.STT.Provider = envOrDefault("STT_PROVIDER", c.STT.Provider)
	c.STT.LanguageCode = envOrDefault("STT_LANGUAGE_CODE", c.STT.LanguageCode)
	c.STT.SampleRateHz = envOrDefaultInt("STT_SAMPLE_RATE_HZ", c.STT.SampleRateHz)
	c.STT.InterimResults = envOrDefaultBool("STT_INTERIM_RESULTS", c.STT.InterimResults)
	c.STT.AudioEncoding = envOrDefault("STT_AUDIO_ENCODING", c.STT.AudioEncoding)

	c.Audio.Source = envOrDefault("AUDIO_SOURCE", c.Audio.Source)
	c.Audio.FilePath = envOrDefault("AUDIO_FILE_PATH", c.Audio.FilePath)
	c.Audio.SampleRateHz = envOrDefaultInt("AUDIO_SAMPLE_RATE_HZ", c.Audio.SampleRateHz)
	c.Audio.WindowSize = envOrDefaultInt("AUDIO_WINDOW_SIZE", c.Audio.WindowSize)

	c.Session.PrepareDelay = envOrDefaultDuration("SESSION_PREPARE_DELAY", c.Session.PrepareDelay)
	c.Session.MinDuration = envOrDefaultDuration("SESSION_MIN_DURATION", c.Session.MinDuration)
	c.Session.LiveInterval = envOrDefaultDuration("SESSION_LIVE_INTERVAL", c.Session.LiveInterval)
	c.Session.FrameInterval = envOrDefaultDuration("SESSION_FRAME_INTERVAL", c.Session.FrameInterval)
	c.Session.AnalysisDelay = envOrDefaultDuration("SESSION_ANALYSIS_DELAY", c.Session.AnalysisDelay)
	c.Session.SinkTimeout = envOrDefaultDuration("SESSION_SINK_TIMEOUT", c.Session.SinkTimeout)
	c.Session.FeedbackStyle = envOrDefault("SESSION_FEEDBACK_STYLE", c.Session.FeedbackStyle)

	c.Transcript.MaxAudioBytes = envOrDefaultInt64("TRANSCRIPT_MAX_AUDIO_BYTES", c.Transcript.MaxAudioBytes)
	c.Transcript.MaxPartials = envOrDefaultInt("TRANSCRIPT_MAX_PARTIALS", c.Transcript.MaxPartials)

	c.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", c.Kafka.Enabled)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.TopicLive = envOrDefault("KAFKA_TOPIC_LIVE", c.Kafka.TopicLive)
	c.Kafka.TopicResult = envOrDefault("KAFKA_TOPIC_RESULT", c.Kafka.TopicResult)
	c.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", c.Kafka.Principal)
	if c.Kafka.Principal == "" {
		c.Kafka.Principal = c.Service.Principal
	}

	c.Redis.Enabled = envOrDefaultBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Address = envOrDefault("REDIS_ADDRESS", c.Redis.Address)
	c.Redis.Password = envOrDefault("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envOrDefaultInt("REDIS_DB", c.Redis.DB)

	c.Catalog.Path = envOrDefault("CATALOG_PATH", c.Catalog.Path)
	c.Progress.TimeZone = envOrDefault("PROGRESS_TIME_ZONE", c.Progress.TimeZone)

	c.Observability.LogLevel = envOrDefault("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = envOrDefault("LOG_FORMAT", c.Observability.LogFormat)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for name, port := range map[string]string{"grpc_port": c.Service.GRPCPort, "http_port": c.Service.HTTPPort} {
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			add("service.%s: invalid port %q", name, port)
		}
	}

	switch c.STT.Provider {
	case "mock", "google":
	default:
		add("stt.provider: unknown provider %q", c.STT.Provider)
	}
	if c.STT.SampleRateHz <= 0 {
		add("stt.sample_rate_hz: must be positive")
	}

	switch c.Audio.Source {
	case "stream":
	case "file":
		if c.Audio.FilePath == "" {
			add("audio.file_path: required for file source")
		}
	default:
		add("audio.source: unknown source %q", c.Audio.Source)
	}
	if c.Audio.SampleRateHz <= 0 {
		add("audio.sample_rate_hz: must be positive")
	}
	if c.Audio.WindowSize <= 0 || c.Audio.WindowSize&(c.Audio.WindowSize-1) != 0 {
		add("audio.window_size: must be a power of two")
	}

	for name, d := range map[string]time.Duration{
		"prepare_delay":  c.Session.PrepareDelay,
		"live_interval":  c.Session.LiveInterval,
		"frame_interval": c.Session.FrameInterval,
		"analysis_delay": c.Session.AnalysisDelay,
		"sink_timeout":   c.Session.SinkTimeout,
	} {
		if d <= 0 {
			add("session.%s: must be positive", name)
		}
	}
	if c.Session.MinDuration < 0 {
		add("session.min_duration: must not be negative")
	}
	switch strings.ToLower(c.Session.FeedbackStyle) {
	case "", "standard", "executive":
	default:
		add("session.feedback_style: unknown style %q", c.Session.FeedbackStyle)
	}

	if c.Transcript.MaxAudioBytes <= 0 || c.Transcript.MaxPartials <= 0 {
		add("transcript: limits must be positive")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			add("kafka.brokers: required when kafka is enabled")
		}
		if c.Kafka.TopicLive == "" || c.Kafka.TopicResult == "" {
			add("kafka: topics are required when kafka is enabled")
		}
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		add("redis.address: required when redis is enabled")
	}
	if _, err := time.LoadLocation(c.Progress.TimeZone); err != nil {
		add("progress.time_zone: %v", err)
	}

	return errors.Join(errs...)
}

// GRPCAddr returns the gRPC listen address.
func (c *Config) GRPCAddr() string { return ":" + c.Service.GRPCPort }

// HTTPAddr returns the HTTP listen address.
func (c *Config) HTTPAddr() string { return ":" + c.Service.HTTPPort }

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
