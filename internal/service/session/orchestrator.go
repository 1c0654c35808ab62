package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"speech-coach-service/internal/catalog"
	"speech-coach-service/internal/models"
	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/observability/metrics"
	"speech-coach-service/internal/service/audio"
	"speech-coach-service/internal/service/feedback"
	"speech-coach-service/internal/service/scoring"
	"speech-coach-service/internal/service/stt"
)

// Config holds the session timings.
type Config struct {
	PrepareDelay  time.Duration  // preparation countdown before speaking
	MinDuration   time.Duration  // floor for the speaking countdown
	LiveInterval  time.Duration  // cadence of live feedback
	FrameInterval time.Duration  // cadence of volume sampling
	CountdownTick time.Duration  // cadence of the speaking countdown
	AnalysisDelay time.Duration  // delay between stop and analysis
	SinkTimeout   time.Duration  // budget of each result sink
	FeedbackStyle feedback.Style // message set for feedback items
}

// DefaultConfig returns the default session timings.
func DefaultConfig() Config {
	return Config{
		PrepareDelay:  3 * time.Second,
		MinDuration:   300 * time.Second,
		LiveInterval:  10 * time.Second,
		FrameInterval: 16 * time.Millisecond,
		CountdownTick: time.Second,
		AnalysisDelay: time.Second,
		SinkTimeout:   10 * time.Second,
		FeedbackStyle: feedback.StyleStandard,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PrepareDelay <= 0 {
		c.PrepareDelay = d.PrepareDelay
	}
	if c.MinDuration < 0 {
		c.MinDuration = 0
	}
	if c.LiveInterval <= 0 {
		c.LiveInterval = d.LiveInterval
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = d.FrameInterval
	}
	if c.CountdownTick <= 0 {
		c.CountdownTick = d.CountdownTick
	}
	if c.AnalysisDelay <= 0 {
		c.AnalysisDelay = d.AnalysisDelay
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = d.SinkTimeout
	}
	return c
}

// StartRequest selects the question of a new session. QuestionID wins over
// the filters; empty filters match any question.
type StartRequest struct {
	UserID     string
	QuestionID string
	Category   models.Category
	Difficulty models.Difficulty
}

// Snapshot is a copy of the current session state.
type Snapshot struct {
	SessionID        string                   `json:"sessionId,omitempty"`
	UserID           string                   `json:"userId,omitempty"`
	State            State                    `json:"state"`
	Question         *models.SpeakingQuestion `json:"question,omitempty"`
	RemainingSeconds int                      `json:"remainingSeconds"`
	ElapsedSeconds   float64                  `json:"elapsedSeconds"`
	Transcript       string                   `json:"transcript"`
	LiveFeedback     []models.FeedbackItem    `json:"liveFeedback"`
	Analysis         *models.SpeechAnalysis   `json:"analysis,omitempty"`
	Feedback         []models.FeedbackItem    `json:"feedback,omitempty"`
	DurationSeconds  float64                  `json:"durationSeconds"`
	Degraded         bool                     `json:"degraded"`
	Error            string                   `json:"error,omitempty"`
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithRand sets the source used to pick random questions.
func WithRand(r *rand.Rand) Option {
	return func(o *Orchestrator) { o.rand = r }
}

// WithScorer replaces the default scorer.
func WithScorer(s Scorer) Option {
	return func(o *Orchestrator) { o.scorer = s }
}

// WithSink adds a result sink.
func WithSink(s ResultSink) Option {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, s) }
}

// WithListener adds a listener.
func WithListener(l Listener) Option {
	return func(o *Orchestrator) { o.listeners = append(o.listeners, l) }
}

// WithMetrics replaces the default metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// session is the loop-owned state of the current session.
type session struct {
	id        string
	userID    string
	question  models.SpeakingQuestion
	duration  time.Duration
	res       *Resources
	ctx       context.Context
	cancel    context.CancelFunc
	log       zerolog.Logger
	tracker   *feedback.LiveTracker
	live      []models.FeedbackItem
	released  bool
	startedAt time.Time
	elapsed   time.Duration

	transcript string
	analysis   *models.SpeechAnalysis
	feedback   []models.FeedbackItem
	degraded   bool
	err        string
}

// Orchestrator owns the session state machine. All state is confined to a
// single goroutine; public methods submit commands to it and wait for the
// result.
type Orchestrator struct {
	cfg       Config
	catalog   *catalog.Catalog
	factory   ResourceFactory
	clock     clockwork.Clock
	rand      *rand.Rand
	scorer    Scorer
	generator *feedback.Generator
	sinks     []ResultSink
	listeners []Listener

	log     zerolog.Logger
	metrics *metrics.Metrics

	cmds      chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	sinkWG    sync.WaitGroup
	baseCtx   context.Context
	cancel    context.CancelFunc

	// Owned by the loop goroutine.
	state     State
	sess      *session
	lastErr   string
	prepare   clockwork.Timer
	analysis  clockwork.Timer
	frames    clockwork.Ticker
	live      clockwork.Ticker
	countdown clockwork.Ticker
}

// New starts an orchestrator in IDLE. Close must be called to stop it.
func New(cfg Config, cat *catalog.Catalog, factory ResourceFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg.withDefaults(),
		catalog: cat,
		factory: factory,
		clock:   clockwork.NewRealClock(),
		scorer:  scoring.Default(),
		log:     logging.WithComponent("orchestrator"),
		metrics: metrics.DefaultMetrics,
		cmds:    make(chan func()),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rand == nil {
		o.rand = rand.New(rand.NewSource(o.clock.Now().UnixNano()))
	}
	o.generator = feedback.NewGenerator(o.cfg.FeedbackStyle)
	o.baseCtx, o.cancel = context.WithCancel(context.Background())

	go o.run()
	return o
}

// Start begins a new session. It fails with ErrSessionActive while a
// session is preparing, speaking or analyzing. From RESULTS it starts over
// directly. If the audio input cannot be acquired the machine stays in IDLE
// and the error is returned.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if e := o.exec(ctx, func() {
		err = o.start(ctx, req)
		snap = o.snapshot()
	}); e != nil {
		return Snapshot{}, e
	}
	return snap, err
}

// Stop ends the speaking phase early. Stopping while preparing cancels the
// session back to IDLE. In any other state Stop does nothing.
func (o *Orchestrator) Stop(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := o.exec(ctx, func() {
		switch o.state {
		case StateSpeaking:
			o.stopSpeaking()
		case StatePreparing:
			o.cancelSession("stopped while preparing")
		}
		snap = o.snapshot()
	})
	return snap, err
}

// Reset abandons the current session, if any, and returns to IDLE. Live
// feedback and results are discarded.
func (o *Orchestrator) Reset(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := o.exec(ctx, func() {
		if o.state.Active() {
			o.cancelSession("reset")
		} else if o.state == StateResults {
			o.transition(StateIdle)
		}
		o.sess = nil
		o.lastErr = ""
		snap = o.snapshot()
	})
	return snap, err
}

// Snapshot returns the current session state.
func (o *Orchestrator) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := o.exec(ctx, func() { snap = o.snapshot() })
	return snap, err
}

// WriteAudio feeds caller-supplied PCM into the current session. It fails
// with ErrNoAudioInput unless a session is preparing or speaking on an input
// that accepts audio.
func (o *Orchestrator) WriteAudio(ctx context.Context, pcm []byte) (int, error) {
	var w io.Writer
	if err := o.exec(ctx, func() {
		if o.sess != nil && (o.state == StatePreparing || o.state == StateSpeaking) && o.sess.res.Input != nil {
			w = o.sess.res.Input
		}
	}); err != nil {
		return 0, err
	}
	if w == nil {
		return 0, ErrNoAudioInput
	}
	return w.Write(pcm)
}

// Close tears down any running session, stops the loop and waits for
// pending result sinks.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() { close(o.quit) })
	<-o.done
	o.sinkWG.Wait()
	return nil
}

func (o *Orchestrator) exec(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}
	select {
	case o.cmds <- cmd:
	case <-o.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

func (o *Orchestrator) run() {
	defer close(o.done)
	for {
		select {
		case <-o.quit:
			o.shutdown()
			return
		case cmd := <-o.cmds:
			cmd()
		case <-timerChan(o.prepare):
			o.prepare = nil
			o.beginSpeaking()
		case <-tickerChan(o.frames):
			o.sess.res.Sampler.Sample()
		case <-tickerChan(o.live):
			o.liveTick()
		case <-tickerChan(o.countdown):
			if o.clock.Since(o.sess.startedAt) >= o.sess.duration {
				o.stopSpeaking()
			}
		case <-timerChan(o.analysis):
			o.analysis = nil
			o.finishAnalysis()
		}
	}
}

func (o *Orchestrator) start(ctx context.Context, req StartRequest) error {
	if o.state.Active() {
		return ErrSessionActive
	}

	q, err := o.selectQuestion(req)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	slog := logging.WithSession(id, req.UserID)
	o.metrics.RecordSessionStart()

	res, err := o.factory.Acquire(ctx, id)
	if err == nil {
		if err = res.Sampler.Initialize(ctx); err != nil {
			if rerr := res.Release(); rerr != nil {
				slog.Warn().Err(rerr).Msg("Failed to release session resources")
			}
		}
	}
	if err != nil {
		err = fmt.Errorf("failed to acquire session resources: %w", err)
		slog.Error().Err(err).Msg("Session start failed")
		o.metrics.RecordSessionFailed(failureReason(err))
		if o.state == StateResults {
			o.transition(StateIdle)
		}
		o.sess = nil
		o.lastErr = err.Error()
		return err
	}

	duration := time.Duration(q.TimeLimitSeconds) * time.Second
	if duration < o.cfg.MinDuration {
		duration = o.cfg.MinDuration
	}
	sctx, cancel := context.WithCancel(o.baseCtx)
	o.sess = &session{
		id:       id,
		userID:   req.UserID,
		question: q,
		duration: duration,
		res:      res,
		ctx:      sctx,
		cancel:   cancel,
		log:      slog,
		tracker:  o.generator.NewLiveTracker(),
		live:     []models.FeedbackItem{},
	}
	o.lastErr = ""
	o.prepare = o.clock.NewTimer(o.cfg.PrepareDelay)
	o.transition(StatePreparing)

	slog.Info().
		Str("questionId", q.ID).
		Str("category", string(q.Category)).
		Dur("duration", duration).
		Msg("Session preparing")
	return nil
}

func (o *Orchestrator) selectQuestion(req StartRequest) (models.SpeakingQuestion, error) {
	if req.QuestionID != "" {
		return o.catalog.Get(req.QuestionID)
	}
	return o.catalog.Random(o.rand, req.Category, req.Difficulty)
}

func (o *Orchestrator) beginSpeaking() {
	s := o.sess
	if err := s.res.Sampler.StartRecording(); err != nil {
		o.abort(fmt.Errorf("failed to start recording: %w", err), "recording")
		return
	}
	if err := s.res.Feed.StartListening(s.ctx); err != nil {
		o.abort(fmt.Errorf("failed to start transcription: %w", err), "recognition")
		return
	}

	s.startedAt = o.clock.Now()
	o.frames = o.clock.NewTicker(o.cfg.FrameInterval)
	o.live = o.clock.NewTicker(o.cfg.LiveInterval)
	o.countdown = o.clock.NewTicker(o.cfg.CountdownTick)
	o.transition(StateSpeaking)

	s.log.Info().Msg("Session speaking")
}

func (o *Orchestrator) liveTick() {
	s := o.sess
	text := s.res.Feed.Transcript()
	elapsed := o.clock.Since(s.startedAt)

	a, err := o.safeAnalyze(text, elapsed.Seconds(), s.res.Sampler.History())
	if err != nil {
		s.log.Warn().Err(err).Msg("Live analysis failed")
		return
	}

	now := o.clock.Now()
	for _, item := range s.tracker.Observe(text, a) {
		s.live = append(s.live, item)
		o.metrics.RecordLiveFeedback(string(item.Category))
		ev := models.LiveFeedbackEvent{
			EventType:      models.EventTypeLiveFeedback,
			SessionID:      s.id,
			UserID:         s.userID,
			Item:           item,
			ElapsedSeconds: elapsed.Seconds(),
			Timestamp:      now.UnixMilli(),
		}
		for _, l := range o.listeners {
			l.OnLiveFeedback(ev)
		}
	}
}

// stopSpeaking is the single exit from SPEAKING, used by both the user stop
// and the countdown.
func (o *Orchestrator) stopSpeaking() {
	s := o.sess
	s.elapsed = o.clock.Since(s.startedAt)
	o.stopTimers()

	s.res.Sampler.StopRecording()
	if err := s.res.Feed.StopListening(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to stop transcription")
	}
	s.transcript = s.res.Feed.Transcript()
	if err := s.res.Feed.Err(); err != nil {
		s.degraded = true
		s.err = fmt.Sprintf("speech recognition failed: %v", err)
		s.log.Warn().Err(err).Msg("Scoring partial transcript after recognition error")
	}

	o.analysis = o.clock.NewTimer(o.cfg.AnalysisDelay)
	o.transition(StateAnalyzing)

	s.log.Info().
		Dur("elapsed", s.elapsed).
		Int("transcriptLength", len(s.transcript)).
		Msg("Session analyzing")
}

func (o *Orchestrator) finishAnalysis() {
	s := o.sess
	started := o.clock.Now()
	history := s.res.Sampler.History()

	a, items, err := o.evaluate(s.transcript, s.elapsed.Seconds(), history)
	if err != nil {
		s.log.Error().Err(err).Msg("Analysis failed, reporting fallback result")
		a = scoring.Fallback()
		items = []models.FeedbackItem{}
		s.degraded = true
		s.err = err.Error()
	}
	o.metrics.RecordAnalysis(o.clock.Since(started).Seconds())
	for _, item := range items {
		o.metrics.RecordFinalFeedback(string(item.Type))
	}

	s.analysis = &a
	s.feedback = items
	o.release(s)
	o.transition(StateResults)
	o.metrics.RecordSessionCompleted(s.elapsed.Seconds(), a.OverallScore, s.degraded)

	s.log.Info().
		Int("overallScore", a.OverallScore).
		Int("feedbackItems", len(items)).
		Bool("degraded", s.degraded).
		Msg("Session results ready")

	now := o.clock.Now()
	o.dispatch(s.log, models.SessionResult{
		EventType:       models.EventTypeSessionResult,
		SessionID:       s.id,
		UserID:          s.userID,
		QuestionID:      s.question.ID,
		Category:        s.question.Category,
		Transcript:      s.transcript,
		DurationSeconds: s.elapsed.Seconds(),
		Analysis:        a,
		Feedback:        append([]models.FeedbackItem{}, items...),
		LiveFeedback:    append([]models.FeedbackItem{}, s.live...),
		Progress: models.ProgressUpdate{
			UserID:             s.userID,
			Category:           s.question.Category,
			TotalSessionsDelta: 1,
			OverallScore:       a.OverallScore,
			StreakDelta:        1,
			CompletedAt:        now,
		},
		Degraded:  s.degraded,
		Timestamp: now.UnixMilli(),
	})
}

func (o *Orchestrator) evaluate(transcript string, seconds float64, history []float64) (a models.SpeechAnalysis, items []models.FeedbackItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis panicked: %v", r)
		}
	}()
	a = o.scorer.Analyze(transcript, seconds, history)
	items = o.generator.Final(a)
	return a, items, nil
}

func (o *Orchestrator) safeAnalyze(transcript string, seconds float64, history []float64) (a models.SpeechAnalysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis panicked: %v", r)
		}
	}()
	return o.scorer.Analyze(transcript, seconds, history), nil
}

func (o *Orchestrator) dispatch(log zerolog.Logger, result models.SessionResult) {
	for _, sink := range o.sinks {
		o.sinkWG.Add(1)
		go func() {
			defer o.sinkWG.Done()
			ctx, cancel := context.WithTimeout(context.Background(), o.cfg.SinkTimeout)
			defer cancel()
			if err := sink.HandleResult(ctx, result); err != nil {
				log.Error().Err(err).Msg("Result sink failed")
			}
		}()
	}
}

// abort ends a session that could not begin speaking.
func (o *Orchestrator) abort(err error, reason string) {
	s := o.sess
	s.log.Error().Err(err).Msg("Session aborted")
	o.release(s)
	o.metrics.RecordSessionFailed(reason)
	o.transition(StateIdle)
	o.sess = nil
	o.lastErr = err.Error()
}

// cancelSession abandons an active session.
func (o *Orchestrator) cancelSession(reason string) {
	s := o.sess
	s.log.Info().Str("reason", reason).Str("state", o.state.String()).Msg("Session cancelled")
	o.release(s)
	o.metrics.RecordSessionCancelled()
	o.transition(StateIdle)
	o.sess = nil
}

// release stops every timer and frees the session's devices. It is safe to
// call more than once.
func (o *Orchestrator) release(s *session) {
	o.stopTimers()
	if o.analysis != nil {
		o.analysis.Stop()
		o.analysis = nil
	}
	if s.released {
		return
	}
	s.released = true

	s.res.Sampler.StopRecording()
	if err := s.res.Feed.StopListening(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to stop transcription")
	}
	if err := s.res.Release(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to release session resources")
	}
	s.cancel()
}

// stopTimers stops the preparation timer and the speaking tickers.
func (o *Orchestrator) stopTimers() {
	if o.prepare != nil {
		o.prepare.Stop()
		o.prepare = nil
	}
	for _, t := range []*clockwork.Ticker{&o.frames, &o.live, &o.countdown} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
}

func (o *Orchestrator) shutdown() {
	if o.sess != nil && o.state.Active() {
		o.cancelSession("shutdown")
	}
	o.cancel()
}

func (o *Orchestrator) transition(to State) {
	from := o.state
	if !ValidTransition(from, to) {
		o.log.Error().
			Err(ErrInvalidTransition).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Transition rejected")
		return
	}
	o.state = to
	o.metrics.RecordTransition(from.String(), to.String())

	change := StateChange{From: from, To: to, Timestamp: o.clock.Now().UnixMilli()}
	if o.sess != nil {
		change.SessionID = o.sess.id
	}
	for _, l := range o.listeners {
		l.OnStateChange(change)
	}
}

func (o *Orchestrator) snapshot() Snapshot {
	snap := Snapshot{
		State:        o.state,
		LiveFeedback: []models.FeedbackItem{},
		Error:        o.lastErr,
	}
	s := o.sess
	if s == nil {
		return snap
	}

	q := s.question
	snap.SessionID = s.id
	snap.UserID = s.userID
	snap.Question = &q
	snap.LiveFeedback = append(snap.LiveFeedback, s.live...)
	snap.Degraded = s.degraded
	if s.err != "" {
		snap.Error = s.err
	}

	switch o.state {
	case StatePreparing:
		snap.RemainingSeconds = ceilSeconds(s.duration)
	case StateSpeaking:
		elapsed := o.clock.Since(s.startedAt)
		snap.ElapsedSeconds = elapsed.Seconds()
		snap.RemainingSeconds = ceilSeconds(s.duration - elapsed)
		snap.Transcript = s.res.Feed.Transcript()
	case StateAnalyzing, StateResults:
		snap.ElapsedSeconds = s.elapsed.Seconds()
		snap.DurationSeconds = s.elapsed.Seconds()
		snap.Transcript = s.transcript
	}
	if s.analysis != nil {
		a := *s.analysis
		snap.Analysis = &a
		snap.Feedback = append([]models.FeedbackItem{}, s.feedback...)
	}
	return snap
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, stt.ErrUnavailable):
		return "recognizer_unavailable"
	default:
		return "resources"
	}
}

func timerChan(t clockwork.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.Chan()
}

func tickerChan(t clockwork.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.Chan()
}
