package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"speech-coach-service/internal/catalog"
	"speech-coach-service/internal/models"
	"speech-coach-service/internal/observability"
	"speech-coach-service/internal/service/session"
)

type fakeSessions struct {
	snap session.Snapshot
	err  error
}

func (f fakeSessions) Snapshot(ctx context.Context) (session.Snapshot, error) {
	return f.snap, f.err
}

type fakeProgress struct {
	records map[string]models.UserProgress
	err     error
}

func (f fakeProgress) Progress(ctx context.Context, userID string) (models.UserProgress, error) {
	return f.records[userID], f.err
}

func newTestRouter(d Deps) http.Handler {
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Sessions == nil {
		d.Sessions = fakeSessions{snap: session.Snapshot{State: session.StateIdle}}
	}
	return NewRouter(d)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(Deps{Ready: map[string]observability.Check{
		"redis": func(context.Context) error { return errors.New("down") },
	}})

	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec := get(t, h, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz = %d, want 503", rec.Code)
	}
	if rec := get(t, h, "/metrics"); rec.Code != http.StatusOK {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestRouter_Questions(t *testing.T) {
	h := newTestRouter(Deps{})

	tests := []struct {
		path      string
		wantCode  int
		wantCount int
	}{
		{"/v1/questions", http.StatusOK, 15},
		{"/v1/questions?category=business", http.StatusOK, 3},
		{"/v1/questions?difficulty=advanced", http.StatusOK, 5},
		{"/v1/questions?category=creative&difficulty=beginner", http.StatusOK, 1},
		{"/v1/questions?category=sports", http.StatusBadRequest, 0},
		{"/v1/questions?difficulty=expert", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, h, tt.path)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp questionsResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if len(resp.Questions) != tt.wantCount {
				t.Errorf("got %d questions, want %d", len(resp.Questions), tt.wantCount)
			}
		})
	}
}

func TestRouter_Question(t *testing.T) {
	h := newTestRouter(Deps{})

	rec := get(t, h, "/v1/questions/biz-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var q models.SpeakingQuestion
	if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil {
		t.Fatal(err)
	}
	if q.ID != "biz-1" || q.TimeLimitSeconds != 120 {
		t.Errorf("unexpected question %+v", q)
	}

	if rec := get(t, h, "/v1/questions/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown question = %d, want 404", rec.Code)
	}
}

func TestRouter_Session(t *testing.T) {
	snap := session.Snapshot{SessionID: "sess-1", State: session.StateSpeaking, RemainingSeconds: 42}
	h := newTestRouter(Deps{Sessions: fakeSessions{snap: snap}})

	rec := get(t, h, "/v1/session")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"state":"speaking"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	h = newTestRouter(Deps{Sessions: fakeSessions{err: session.ErrClosed}})
	if rec := get(t, h, "/v1/session"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("closed orchestrator = %d, want 503", rec.Code)
	}
}

func TestRouter_Progress(t *testing.T) {
	p := fakeProgress{records: map[string]models.UserProgress{
		"user-1": {TotalSessions: 5, AverageScore: 72, BestScore: 88, Streak: 3},
	}}
	h := newTestRouter(Deps{Progress: p})

	rec := get(t, h, "/v1/progress/user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var resp progressResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.UserID != "user-1" || resp.Progress.TotalSessions != 5 {
		t.Errorf("unexpected response %+v", resp)
	}
	// first-session, consistency, streak-3, improvement
	if len(resp.Achievements) != 4 {
		t.Errorf("expected 4 achievements, got %+v", resp.Achievements)
	}

	h = newTestRouter(Deps{Progress: fakeProgress{err: errors.New("redis down")}})
	if rec := get(t, h, "/v1/progress/user-1"); rec.Code != http.StatusInternalServerError {
		t.Errorf("store failure = %d, want 500", rec.Code)
	}

	h = newTestRouter(Deps{})
	if rec := get(t, h, "/v1/progress/user-1"); rec.Code != http.StatusNotFound {
		t.Errorf("route without store = %d, want 404", rec.Code)
	}
}

func TestHub_BroadcastsToWebsocket(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(newTestRouter(Deps{Hub: hub}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/session/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.OnStateChange(session.StateChange{SessionID: "sess-1", From: session.StatePreparing, To: session.StateSpeaking})
	hub.OnLiveFeedback(models.LiveFeedbackEvent{
		SessionID: "sess-1",
		Item:      models.FeedbackItem{Type: models.FeedbackImprovement, Category: models.CategoryClarity, Message: "Slow down"},
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second Message
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read: %v", err)
	}

	if first.Type != "state" || first.State == nil || first.State.To != session.StateSpeaking {
		t.Errorf("unexpected first message %+v", first)
	}
	if second.Type != "feedback" || second.Feedback == nil || second.Feedback.Item.Message != "Slow down" {
		t.Errorf("unexpected second message %+v", second)
	}
}

func TestHub_DropsWhenFull(t *testing.T) {
	hub := NewHub() // not running

	for i := 0; i < hubBuffer+10; i++ {
		hub.OnStateChange(session.StateChange{SessionID: "sess-1"})
	}
	if len(hub.broadcast) != hubBuffer {
		t.Errorf("expected buffer to hold %d messages, got %d", hubBuffer, len(hub.broadcast))
	}
}
