package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	return m
}

func TestWithSession(t *testing.T) {
	buf := capture(t)

	l := WithSession("sess-1", "user-1")
	l.Info().Msg("hello")

	m := decode(t, buf)
	if m["sessionId"] != "sess-1" || m["userId"] != "user-1" {
		t.Errorf("missing session fields: %v", m)
	}

	buf.Reset()
	anon := WithSession("sess-2", "")
	anon.Info().Msg("hello")
	if _, ok := decode(t, buf)["userId"]; ok {
		t.Errorf("anonymous session should not log a userId: %s", buf.String())
	}
}

func TestWithRecognizer(t *testing.T) {
	buf := capture(t)

	l := WithRecognizer("sess-1", "mock")
	l.Info().Msg("hello")

	m := decode(t, buf)
	if m["sessionId"] != "sess-1" || m["sttProvider"] != "mock" {
		t.Errorf("missing recognizer fields: %v", m)
	}
}

func TestWithComponent(t *testing.T) {
	buf := capture(t)

	l := WithComponent("orchestrator")
	l.Info().Msg("hello")

	if decode(t, buf)["component"] != "orchestrator" {
		t.Errorf("missing component field: %s", buf.String())
	}
}

func TestInit_Level(t *testing.T) {
	prev := zerolog.GlobalLevel()
	prevLogger := log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prev)
		log.Logger = prevLogger
	})

	Init(Config{Level: "warn", Format: "json"})
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Errorf("level = %s, want warn", zerolog.GlobalLevel())
	}

	Init(Config{Level: "nonsense"})
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("invalid level should fall back to info, got %s", zerolog.GlobalLevel())
	}
}

func TestInit_ServiceAndOutput(t *testing.T) {
	prev := zerolog.GlobalLevel()
	prevLogger := log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prev)
		log.Logger = prevLogger
	})

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Service: "svc-speech-coach", Output: &buf})
	l := Logger()
	l.Info().Msg("started")

	m := decode(t, &buf)
	if m["service"] != "svc-speech-coach" {
		t.Errorf("missing service field: %v", m)
	}
	if _, ok := m["caller"]; ok {
		t.Error("caller should only be logged at debug level")
	}
}
