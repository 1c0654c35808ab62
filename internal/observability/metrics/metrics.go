// Package metrics registers the service's Prometheus collectors and wraps
// the common updates in Record helpers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "speech_coach"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsFailed    *prometheus.CounterVec
	SessionsActive    prometheus.Gauge
	StateTransitions  *prometheus.CounterVec
	SessionDuration   prometheus.Histogram

	// Analysis metrics
	OverallScore       prometheus.Histogram
	AnalysisLatency    prometheus.Histogram
	AnalysisDegraded   prometheus.Counter
	LiveFeedbackItems  *prometheus.CounterVec
	FinalFeedbackItems *prometheus.CounterVec

	// Audio metrics
	VolumeSamples       prometheus.Counter
	SampleReadErrors    prometheus.Counter
	AudioBytesReceived  prometheus.Counter
	AudioChunksReceived prometheus.Counter

	// Recognition metrics; Transcripts is labelled partial or final.
	Transcripts    *prometheus.CounterVec
	UtteranceCount prometheus.Counter
	STTErrors      *prometheus.CounterVec

	// Event metrics; EventsPublished carries an ok or error outcome.
	EventsPublished *prometheus.CounterVec
	EventLatency    *prometheus.HistogramVec

	// Progress store metrics
	ProgressUpdates *prometheus.CounterVec

	// RPC metrics
	RPCCalls   *prometheus.CounterVec
	RPCLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of speaking sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of sessions that reached results",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that failed to start",
		}, []string{"reason"}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions between start and results",
		}),
		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of session state transitions",
		}, []string{"from", "to"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_speaking_seconds",
			Help:      "Speaking time per session in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 180, 300, 450, 600},
		}),

		// Analysis metrics
		OverallScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "overall_score",
			Help:      "Distribution of final overall scores",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		AnalysisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_latency_seconds",
			Help:      "Time spent computing a speech analysis",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		AnalysisDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_degraded_total",
			Help:      "Total number of sessions finished with a fallback analysis",
		}),
		LiveFeedbackItems: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_feedback_items_total",
			Help:      "Total number of live feedback items emitted",
		}, []string{"category"}),
		FinalFeedbackItems: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "final_feedback_items_total",
			Help:      "Total number of final feedback items produced",
		}, []string{"type"}),

		// Audio metrics
		VolumeSamples: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "volume_samples_total",
			Help:      "Total number of volume samples recorded",
		}),
		SampleReadErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sample_read_errors_total",
			Help:      "Total number of audio device reads that failed",
		}),
		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes pushed into sessions",
		}),
		AudioChunksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_received_total",
			Help:      "Total audio chunks pushed into sessions",
		}),

		// Recognition metrics
		Transcripts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stt",
			Name:      "transcripts_total",
			Help:      "Recognizer transcripts delivered to sessions by kind",
		}, []string{"kind"}),
		UtteranceCount: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stt",
			Name:      "utterances_total",
			Help:      "Utterance boundaries reported by recognizers",
		}),
		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stt",
			Name:      "errors_total",
			Help:      "Recognition failures by provider and type",
		}, []string{"provider", "error_type"}),

		// Event metrics
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Session events handed to Kafka by topic, kind and outcome",
		}, []string{"topic", "kind", "outcome"}),
		EventLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "publish_seconds",
			Help:      "Time to publish one session event",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 7),
		}, []string{"topic"}),

		// Progress store metrics
		ProgressUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_updates_total",
			Help:      "Total number of user progress updates by outcome",
		}, []string{"store", "outcome"}),

		// RPC metrics
		RPCCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Total number of gRPC calls by method and status code",
		}, []string{"method", "code"}),
		RPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "gRPC call latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 300},
		}, []string{"method"}),
	}
}

// RecordSessionStart records a session leaving idle.
func (m *Metrics) RecordSessionStart() {
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionFailed records a session that could not acquire its devices.
func (m *Metrics) RecordSessionFailed(reason string) {
	m.SessionsFailed.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()
}

// RecordSessionCancelled records a session abandoned before speaking.
func (m *Metrics) RecordSessionCancelled() {
	m.SessionsActive.Dec()
}

// RecordSessionCompleted records a session reaching results.
func (m *Metrics) RecordSessionCompleted(speakingSeconds float64, overallScore int, degraded bool) {
	m.SessionsActive.Dec()
	m.SessionsCompleted.Inc()
	m.SessionDuration.Observe(speakingSeconds)
	m.OverallScore.Observe(float64(overallScore))
	if degraded {
		m.AnalysisDegraded.Inc()
	}
}

// RecordTransition records a state machine transition.
func (m *Metrics) RecordTransition(from, to string) {
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordAnalysis records how long one analysis pass took.
func (m *Metrics) RecordAnalysis(latencySeconds float64) {
	m.AnalysisLatency.Observe(latencySeconds)
}

// RecordLiveFeedback records a live feedback item.
func (m *Metrics) RecordLiveFeedback(category string) {
	m.LiveFeedbackItems.WithLabelValues(category).Inc()
}

// RecordFinalFeedback records a final feedback item.
func (m *Metrics) RecordFinalFeedback(feedbackType string) {
	m.FinalFeedbackItems.WithLabelValues(feedbackType).Inc()
}

// RecordVolumeSample records one sampler reading.
func (m *Metrics) RecordVolumeSample(ok bool) {
	if ok {
		m.VolumeSamples.Inc()
	} else {
		m.SampleReadErrors.Inc()
	}
}

// RecordAudioReceived records audio bytes and chunks received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioChunksReceived.Inc()
}

// RecordTranscript counts one partial or final transcript.
func (m *Metrics) RecordTranscript(final bool) {
	kind := "partial"
	if final {
		kind = "final"
	}
	m.Transcripts.WithLabelValues(kind).Inc()
}

// RecordUtterance counts an utterance boundary.
func (m *Metrics) RecordUtterance() {
	m.UtteranceCount.Inc()
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordEventPublish records one publish attempt and how long it took.
func (m *Metrics) RecordEventPublish(topic, kind string, err error, latencySeconds float64) {
	m.EventsPublished.WithLabelValues(topic, kind, outcome(err)).Inc()
	m.EventLatency.WithLabelValues(topic).Observe(latencySeconds)
}

// RecordProgressUpdate records a progress store write.
func (m *Metrics) RecordProgressUpdate(store string, err error) {
	m.ProgressUpdates.WithLabelValues(store, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordRPC records a completed gRPC call.
func (m *Metrics) RecordRPC(method, code string, latencySeconds float64) {
	m.RPCCalls.WithLabelValues(method, code).Inc()
	m.RPCLatency.WithLabelValues(method).Observe(latencySeconds)
}
