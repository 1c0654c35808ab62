package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"speech-coach-service/internal/catalog"
	"speech-coach-service/internal/models"
	"speech-coach-service/internal/observability"
	"speech-coach-service/internal/progress"
	"speech-coach-service/internal/service/session"
)

// SessionReader returns the current session state.
type SessionReader interface {
	Snapshot(ctx context.Context) (session.Snapshot, error)
}

// ProgressReader returns a user's stored progress.
type ProgressReader interface {
	Progress(ctx context.Context, userID string) (models.UserProgress, error)
}

// Deps are the collaborators served by the router. Nil Progress or Hub
// disable their routes.
type Deps struct {
	Sessions SessionReader
	Catalog  *catalog.Catalog
	Progress ProgressReader
	Hub      *Hub
	Ready    map[string]observability.Check
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	// Health and metrics
	r.Get("/healthz", observability.HealthHandler)
	r.Method(http.MethodGet, "/readyz", observability.ReadyHandler(d.Ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/questions", listQuestions(d.Catalog))
		r.Get("/questions/{id}", getQuestion(d.Catalog))
		r.Get("/session", getSession(d.Sessions))
		if d.Hub != nil {
			r.Get("/session/live", d.Hub.ServeWS)
		}
		if d.Progress != nil {
			r.Get("/progress/{userID}", getProgress(d.Progress))
		}
	})

	return r
}

type questionsResponse struct {
	Questions []models.SpeakingQuestion `json:"questions"`
}

type progressResponse struct {
	UserID       string                 `json:"userId"`
	Progress     models.UserProgress    `json:"progress"`
	Achievements []progress.Achievement `json:"achievements"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func listQuestions(cat *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := models.Category(r.URL.Query().Get("category"))
		if category != "" && !category.Valid() {
			writeError(w, http.StatusBadRequest, "unknown category "+string(category))
			return
		}
		difficulty := models.Difficulty(r.URL.Query().Get("difficulty"))
		if difficulty != "" && !difficulty.Valid() {
			writeError(w, http.StatusBadRequest, "unknown difficulty "+string(difficulty))
			return
		}
		qs := cat.Filter(category, difficulty)
		if qs == nil {
			qs = []models.SpeakingQuestion{}
		}
		writeJSON(w, http.StatusOK, questionsResponse{Questions: qs})
	}
}

func getQuestion(cat *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := cat.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func getSession(sessions SessionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := sessions.Snapshot(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func getProgress(p ProgressReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		up, err := p.Progress(r.Context(), userID)
		if err != nil {
			log.Error().Err(err).Str("userId", userID).Msg("Failed to read progress")
			writeError(w, http.StatusInternalServerError, "failed to read progress")
			return
		}
		writeJSON(w, http.StatusOK, progressResponse{
			UserID:       userID,
			Progress:     up,
			Achievements: progress.Unlocked(up),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("requestId", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
