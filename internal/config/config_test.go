package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envVars = []string{
	"SERVICE_PRINCIPAL", "GRPC_PORT", "HTTP_PORT", "LOG_LEVEL", "LOG_FORMAT",
	"STT_PROVIDER", "STT_LANGUAGE_CODE", "STT_SAMPLE_RATE_HZ",
	"STT_INTERIM_RESULTS", "STT_AUDIO_ENCODING",
	"AUDIO_SOURCE", "AUDIO_FILE_PATH", "AUDIO_SAMPLE_RATE_HZ", "AUDIO_WINDOW_SIZE",
	"SESSION_PREPARE_DELAY", "SESSION_MIN_DURATION", "SESSION_LIVE_INTERVAL",
	"SESSION_FRAME_INTERVAL", "SESSION_ANALYSIS_DELAY", "SESSION_SINK_TIMEOUT", "SESSION_FEEDBACK_STYLE",
	"TRANSCRIPT_MAX_AUDIO_BYTES", "TRANSCRIPT_MAX_PARTIALS",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_LIVE", "KAFKA_TOPIC_RESULT", "KAFKA_PRINCIPAL",
	"REDIS_ENABLED", "REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB",
	"CATALOG_PATH", "PROGRESS_TIME_ZONE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		if old, ok := os.LookupEnv(v); ok {
			os.Unsetenv(v)
			t.Cleanup(func() { os.Setenv(v, old) })
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	// Service defaults
	if cfg.Service.Principal != "svc-speech-coach" {
		t.Errorf("expected default principal 'svc-speech-coach', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port '50051', got %s", cfg.Service.GRPCPort)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Errorf("expected default http addr ':8080', got %s", cfg.HTTPAddr())
	}

	// STT defaults
	if cfg.STT.Provider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.STT.InterimResults != true {
		t.Errorf("expected default interim results true, got %v", cfg.STT.InterimResults)
	}

	// Session defaults
	s := cfg.Session
	if s.PrepareDelay != 3*time.Second || s.MinDuration != 300*time.Second || s.LiveInterval != 10*time.Second {
		t.Errorf("unexpected session timings %+v", s)
	}
	if s.FrameInterval != 16*time.Millisecond || s.AnalysisDelay != time.Second {
		t.Errorf("unexpected session timings %+v", s)
	}
	if s.FeedbackStyle != "standard" {
		t.Errorf("expected default style 'standard', got %s", s.FeedbackStyle)
	}

	// Audio defaults
	if cfg.Audio.Source != "stream" || cfg.Audio.SampleRateHz != 16000 || cfg.Audio.WindowSize != 256 {
		t.Errorf("unexpected audio defaults %+v", cfg.Audio)
	}

	// Transcript limits defaults
	if cfg.Transcript.MaxAudioBytes != 5*1024*1024 {
		t.Errorf("expected default max audio bytes 5MB, got %d", cfg.Transcript.MaxAudioBytes)
	}
	if cfg.Transcript.MaxPartials != 500 {
		t.Errorf("expected default max partials 500, got %d", cfg.Transcript.MaxPartials)
	}

	if cfg.Kafka.Enabled || cfg.Redis.Enabled {
		t.Error("expected kafka and redis disabled by default")
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	t.Setenv("GRPC_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STT_PROVIDER", "google")
	t.Setenv("STT_LANGUAGE_CODE", "es-ES")
	t.Setenv("STT_SAMPLE_RATE_HZ", "8000")
	t.Setenv("STT_INTERIM_RESULTS", "false")
	t.Setenv("SESSION_MIN_DURATION", "2m")
	t.Setenv("SESSION_FEEDBACK_STYLE", "executive")
	t.Setenv("TRANSCRIPT_MAX_AUDIO_BYTES", "10485760")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-0:9092, kafka-1:9092,")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.GRPCAddr() != ":9999" {
		t.Errorf("expected addr ':9999', got %s", cfg.GRPCAddr())
	}
	if cfg.STT.Provider != "google" || cfg.STT.LanguageCode != "es-ES" || cfg.STT.SampleRateHz != 8000 {
		t.Errorf("unexpected STT config %+v", cfg.STT)
	}
	if cfg.STT.InterimResults != false {
		t.Errorf("expected interim results false, got %v", cfg.STT.InterimResults)
	}
	if cfg.Session.MinDuration != 2*time.Minute {
		t.Errorf("expected min duration 2m, got %v", cfg.Session.MinDuration)
	}
	if cfg.Session.FeedbackStyle != "executive" {
		t.Errorf("expected executive style, got %s", cfg.Session.FeedbackStyle)
	}
	if cfg.Transcript.MaxAudioBytes != 10485760 {
		t.Errorf("expected max audio bytes 10485760, got %d", cfg.Transcript.MaxAudioBytes)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-1:9092" {
		t.Errorf("unexpected kafka config %+v", cfg.Kafka)
	}
	if cfg.Redis.DB != 3 {
		t.Errorf("expected redis db 3, got %d", cfg.Redis.DB)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STT_SAMPLE_RATE_HZ", "not-a-number")
	t.Setenv("STT_INTERIM_RESULTS", "invalid")
	t.Setenv("SESSION_PREPARE_DELAY", "soon")
	t.Setenv("TRANSCRIPT_MAX_AUDIO_BYTES", "invalid")
	t.Setenv("TRANSCRIPT_MAX_PARTIALS", "invalid")

	cfg := Load()

	// Should fall back to defaults on parse errors
	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.STT.InterimResults != true {
		t.Errorf("expected default interim results on invalid input, got %v", cfg.STT.InterimResults)
	}
	if cfg.Session.PrepareDelay != 3*time.Second {
		t.Errorf("expected default prepare delay on invalid input, got %v", cfg.Session.PrepareDelay)
	}
	if cfg.Transcript.MaxAudioBytes != 5*1024*1024 {
		t.Errorf("expected default max audio bytes on invalid input, got %d", cfg.Transcript.MaxAudioBytes)
	}
	if cfg.Transcript.MaxPartials != 500 {
		t.Errorf("expected default max partials on invalid input, got %d", cfg.Transcript.MaxPartials)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PRINCIPAL", "my-service")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
service:
  http_port: "9090"
session:
  prepare_delay: 1s
  min_duration: 90s
  feedback_style: executive
kafka:
  enabled: true
  brokers: [broker:9092]
redis:
  enabled: true
  address: redis:6379
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SESSION_PREPARE_DELAY", "2s")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Service.HTTPPort != "9090" {
		t.Errorf("expected http port from file, got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected untouched default grpc port, got %s", cfg.Service.GRPCPort)
	}
	if cfg.Session.PrepareDelay != 2*time.Second {
		t.Errorf("expected env to override file, got %v", cfg.Session.PrepareDelay)
	}
	if cfg.Session.MinDuration != 90*time.Second {
		t.Errorf("expected min duration 90s, got %v", cfg.Session.MinDuration)
	}
	if !cfg.Kafka.Enabled || cfg.Kafka.Brokers[0] != "broker:9092" || cfg.Kafka.TopicResult != "speech.session.result" {
		t.Errorf("unexpected kafka config %+v", cfg.Kafka)
	}
	if cfg.Redis.Address != "redis:6379" {
		t.Errorf("unexpected redis address %s", cfg.Redis.Address)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("session: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad grpc port", func(c *Config) { c.Service.GRPCPort = "abc" }, "grpc_port"},
		{"port out of range", func(c *Config) { c.Service.HTTPPort = "70000" }, "http_port"},
		{"unknown provider", func(c *Config) { c.STT.Provider = "whisper" }, "stt.provider"},
		{"file without path", func(c *Config) { c.Audio.Source = "file" }, "audio.file_path"},
		{"unknown source", func(c *Config) { c.Audio.Source = "mic" }, "audio.source"},
		{"window not power of two", func(c *Config) { c.Audio.WindowSize = 300 }, "window_size"},
		{"zero live interval", func(c *Config) { c.Session.LiveInterval = 0 }, "live_interval"},
		{"negative min duration", func(c *Config) { c.Session.MinDuration = -time.Second }, "min_duration"},
		{"unknown style", func(c *Config) { c.Session.FeedbackStyle = "casual" }, "feedback_style"},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }, "kafka.brokers"},
		{"redis without address", func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" }, "redis.address"},
		{"bad time zone", func(c *Config) { c.Progress.TimeZone = "Mars/Olympus" }, "time_zone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestEnvParsers_FallBackOnBadInput(t *testing.T) {
	const key = "COACH_TEST_VALUE"
	tests := []struct {
		raw      string
		boolWant bool
		intWant  int
		durWant  time.Duration
	}{
		{"", true, 7, time.Second},
		{"1", true, 1, time.Second},
		{"0", false, 0, time.Second},
		{"FALSE", false, 7, time.Second},
		{"90s", true, 7, 90 * time.Second},
		{"soon", true, 7, time.Second},
	}
	for _, tt := range tests {
		t.Run("raw="+tt.raw, func(t *testing.T) {
			t.Setenv(key, tt.raw)
			if got := envOrDefaultBool(key, true); got != tt.boolWant {
				t.Errorf("bool = %v, want %v", got, tt.boolWant)
			}
			if got := envOrDefaultInt(key, 7); got != tt.intWant {
				t.Errorf("int = %v, want %v", got, tt.intWant)
			}
			if got := envOrDefaultDuration(key, time.Second); got != tt.durWant {
				t.Errorf("duration = %v, want %v", got, tt.durWant)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a:1 ,, b:2 ")
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Errorf("unexpected split %v", got)
	}
}
