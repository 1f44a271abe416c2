package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"ai-scribe-be/pkg/pipeline/differential"
	"ai-scribe-be/pkg/pipeline/handout"
	"ai-scribe-be/pkg/pipeline/insights"
	"ai-scribe-be/pkg/pipeline/record"
	"ai-scribe-be/pkg/retrieval"
	"ai-scribe-be/pkg/session"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// SessionStore resolves a session id to its live state.
type SessionStore interface {
	Get(id uuid.UUID) (*session.State, bool)
}

// NotesSource is the read-only notes collaborator.
type NotesSource interface {
	Fetch(ctx context.Context, sessionID uuid.UUID) (text string, images []string, err error)
}

// KnowledgeSource assembles external evidence; it degrades internally and
// never returns an error.
type KnowledgeSource interface {
	Search(ctx context.Context, terms []string) []retrieval.Evidence
}

// ArtifactSink is the persistence collaborator: PUT full-document semantics
// per artifact, keyed by session id. Writes are best effort.
type ArtifactSink interface {
	PutInsights(ctx context.Context, sessionID uuid.UUID, s session.InsightsState) error
	PutDiagnoses(ctx context.Context, sessionID uuid.UUID, items []session.DiagnosisItem) error
	PutRecord(ctx context.Context, sessionID uuid.UUID, r session.ConsultationRecord) error
	PutHandout(ctx context.Context, sessionID uuid.UUID, doc session.HandoutDocument) error
}

// Notifier pushes completed artifacts to live observers (websocket, NATS).
type Notifier interface {
	ArtifactUpdated(sessionID uuid.UUID, kind session.StageKind, payload interface{})
}

// Config collects the scheduler gates and timers.
type Config struct {
	Gate         Gate
	SettleWindow time.Duration
	HandoutWait  time.Duration
}

// stageControl is the per-stage concurrency state: one in-flight call, a new
// trigger cancels the previous token before issuing the next.
type stageControl struct {
	mu         sync.Mutex
	token      *Token
	processing bool
	watermark  Watermark
}

func (c *stageControl) begin(parent context.Context) *Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil {
		c.token.Cancel()
	}
	t := NewToken(parent)
	c.token = t
	c.processing = true
	return t
}

// finish reports whether the call's result may be applied. A superseded call
// observes its invalidated token and changes nothing, not even the
// processing flag (the superseding call owns it now).
func (c *stageControl) finish(t *Token) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Invalidated() {
		return false
	}
	c.processing = false
	return true
}

func (c *stageControl) abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil {
		c.token.Cancel()
	}
	c.processing = false
}

func (c *stageControl) isProcessing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

func (c *stageControl) currentWatermark() Watermark {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watermark
}

func (c *stageControl) setWatermark(w Watermark) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watermark = w
}

// sessionRuntime is the orchestrator's per-session bookkeeping.
type sessionRuntime struct {
	insights     stageControl
	differential stageControl
	record       stageControl
	handout      stageControl

	mu              sync.Mutex
	settleTimer     *time.Timer
	waiters         []chan struct{}
	handoutAutoDone bool
}

func (rt *sessionRuntime) signalInsightsDone() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, ch := range rt.waiters {
		close(ch)
	}
	rt.waiters = nil
}

// Orchestrator is the reactive glue between the transcript and the four
// derivation stages. It consumes discrete events from the in-process bus,
// applies the declared gate predicates, keeps one in-flight call per stage,
// cancels superseded calls and lands results into session state.
type Orchestrator struct {
	cfg       Config
	store     SessionStore
	notes     NotesSource
	knowledge KnowledgeSource
	sink      ArtifactSink
	notifier  Notifier

	insightsStage     *insights.Stage
	differentialStage *differential.Stage
	recordStage       *record.Stage
	handoutStage      *handout.Stage

	bus    *gochannel.GoChannel
	logger *log.Logger

	mu       sync.Mutex
	runtimes map[uuid.UUID]*sessionRuntime
}

func NewOrchestrator(
	cfg Config,
	store SessionStore,
	notes NotesSource,
	knowledge KnowledgeSource,
	sink ArtifactSink,
	notifier Notifier,
	insightsStage *insights.Stage,
	differentialStage *differential.Stage,
	recordStage *record.Stage,
	handoutStage *handout.Stage,
	bus *gochannel.GoChannel,
	logger *log.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:               cfg,
		store:             store,
		notes:             notes,
		knowledge:         knowledge,
		sink:              sink,
		notifier:          notifier,
		insightsStage:     insightsStage,
		differentialStage: differentialStage,
		recordStage:       recordStage,
		handoutStage:      handoutStage,
		bus:               bus,
		logger:            logger,
		runtimes:          map[uuid.UUID]*sessionRuntime{},
	}
}

// Run subscribes to the pipeline topics and dispatches events until ctx is
// cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	handlers := map[string]func(EventPayload){
		TopicUtteranceFinal:    o.handleUtteranceFinal,
		TopicRecordingStopped:  o.handleRecordingStopped,
		TopicNoteSubmitted:     o.handleNoteSubmitted,
		TopicInsightsCompleted: o.handleInsightsCompleted,
		TopicHandoutRequested:  o.handleHandoutRequested,
		TopicSessionClosed:     o.handleSessionClosed,
	}

	for topic, handler := range handlers {
		messages, err := o.bus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		go func(topic string, handler func(EventPayload), messages <-chan *message.Message) {
			for msg := range messages {
				payload, err := parseEventPayload(msg)
				if err != nil {
					o.logger.Printf("[ERROR] Bad event payload on %s: %v", topic, err)
					msg.Ack()
					continue
				}
				handler(payload)
				msg.Ack()
			}
		}(topic, handler, messages)
	}

	return nil
}

// --- Event emission (called by the ingress/service layer) ---

func (o *Orchestrator) emit(topic string, payload EventPayload) {
	msg, err := newEventMessage(payload)
	if err != nil {
		o.logger.Printf("[ERROR] Failed to build %s event: %v", topic, err)
		return
	}
	if err := o.bus.Publish(topic, msg); err != nil {
		o.logger.Printf("[ERROR] Failed to publish %s event: %v", topic, err)
	}
}

func (o *Orchestrator) EmitUtteranceFinal(sessionID uuid.UUID) {
	o.emit(TopicUtteranceFinal, EventPayload{SessionID: sessionID})
}

func (o *Orchestrator) EmitRecordingStopped(sessionID uuid.UUID) {
	o.emit(TopicRecordingStopped, EventPayload{SessionID: sessionID})
}

func (o *Orchestrator) EmitNoteSubmitted(sessionID uuid.UUID) {
	o.emit(TopicNoteSubmitted, EventPayload{SessionID: sessionID})
}

func (o *Orchestrator) EmitHandoutRequested(sessionID uuid.UUID, language string) {
	o.emit(TopicHandoutRequested, EventPayload{SessionID: sessionID, Language: language})
}

func (o *Orchestrator) EmitSessionClosed(sessionID uuid.UUID) {
	o.emit(TopicSessionClosed, EventPayload{SessionID: sessionID})
}

// Teardown cancels all active stage tokens for a session, synchronously.
// Callers invoke it before clearing any store so a stale response can never
// write across sessions.
func (o *Orchestrator) Teardown(sessionID uuid.UUID) {
	o.mu.Lock()
	rt := o.runtimes[sessionID]
	delete(o.runtimes, sessionID)
	o.mu.Unlock()
	if rt == nil {
		return
	}

	rt.insights.abort()
	rt.differential.abort()
	rt.record.abort()
	rt.handout.abort()

	rt.mu.Lock()
	if rt.settleTimer != nil {
		rt.settleTimer.Stop()
	}
	for _, ch := range rt.waiters {
		close(ch)
	}
	rt.waiters = nil
	rt.mu.Unlock()
}

func (o *Orchestrator) runtime(sessionID uuid.UUID) *sessionRuntime {
	o.mu.Lock()
	defer o.mu.Unlock()
	rt, ok := o.runtimes[sessionID]
	if !ok {
		rt = &sessionRuntime{}
		o.runtimes[sessionID] = rt
	}
	return rt
}

// active reports whether rt is still the registered runtime for the session.
func (o *Orchestrator) active(sessionID uuid.UUID, rt *sessionRuntime) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runtimes[sessionID] == rt
}

func (o *Orchestrator) lookup(sessionID uuid.UUID) (*session.State, *sessionRuntime, bool) {
	state, ok := o.store.Get(sessionID)
	if !ok {
		return nil, nil, false
	}
	return state, o.runtime(sessionID), true
}

// --- Event handlers ---

func (o *Orchestrator) handleUtteranceFinal(p EventPayload) {
	state, rt, ok := o.lookup(p.SessionID)
	if !ok {
		return
	}

	words := state.Transcript.WordCount()
	if !o.cfg.Gate.ShouldFire(rt.insights.currentWatermark(), words, time.Now()) {
		return
	}
	o.runInsights(state, rt)
}

func (o *Orchestrator) handleRecordingStopped(p EventPayload) {
	state, rt, ok := o.lookup(p.SessionID)
	if !ok {
		return
	}
	state.SetRecording(false)

	// Forced mode: the word/interval gates do not apply.
	o.runInsights(state, rt)
	o.runDifferential(state, rt)

	rt.mu.Lock()
	autoHandout := !rt.handoutAutoDone && len(state.SelectedConditions()) > 0
	if autoHandout {
		rt.handoutAutoDone = true
	}
	rt.mu.Unlock()
	if autoHandout {
		go o.runHandout(state, rt, "")
	}
}

func (o *Orchestrator) handleNoteSubmitted(p EventPayload) {
	state, rt, ok := o.lookup(p.SessionID)
	if !ok {
		return
	}
	o.runInsights(state, rt)
	o.runDifferential(state, rt)
}

func (o *Orchestrator) handleInsightsCompleted(p EventPayload) {
	state, rt, ok := o.lookup(p.SessionID)
	if !ok {
		return
	}

	// Differential reacts through a settle window so micro-updates coalesce.
	rt.mu.Lock()
	if rt.settleTimer != nil {
		rt.settleTimer.Stop()
	}
	rt.settleTimer = time.AfterFunc(o.cfg.SettleWindow, func() {
		if s, r, ok := o.lookup(p.SessionID); ok {
			o.runDifferential(s, r)
		}
	})
	rt.mu.Unlock()

	// Record runs independently of (in parallel with) the differential.
	o.runRecord(state, rt, false)
}

func (o *Orchestrator) handleHandoutRequested(p EventPayload) {
	state, rt, ok := o.lookup(p.SessionID)
	if !ok {
		return
	}
	go o.runHandout(state, rt, p.Language)
}

func (o *Orchestrator) handleSessionClosed(p EventPayload) {
	o.Teardown(p.SessionID)
}

// --- Stage execution ---

func (o *Orchestrator) runInsights(state *session.State, rt *sessionRuntime) {
	tok := rt.insights.begin(context.Background())
	state.SetProcessing(session.StageInsights, true)

	words := state.Transcript.WordCount()
	transcriptText := state.Transcript.FullText()
	current := state.Insights()

	go func() {
		notesText, _, err := o.notes.Fetch(tok.Context(), state.ID)
		if err != nil {
			o.logger.Printf("[WARN] Notes fetch failed for session %s: %v", state.ID, err)
		}

		resp, err := o.insightsStage.Generate(tok.Context(), insights.Request{
			Transcript: transcriptText,
			Notes:      notesText,
			Current:    current,
		})

		if !rt.insights.finish(tok) {
			return // superseded: silent, no state change
		}
		if err != nil {
			state.SetProcessing(session.StageInsights, false)
			o.logger.Printf("[ERROR] Insights generation failed for session %s: %v", state.ID, err)
			return
		}

		now := time.Now()
		updated := state.UpdateInsights(func(cur *session.InsightsState) {
			insights.Apply(cur, resp)
			cur.LastUpdated = now
			cur.WordCountAtLastUpdate = words
		})
		rt.insights.setWatermark(Watermark{Words: words, At: now})
		state.SetProcessing(session.StageInsights, false)

		rt.signalInsightsDone()
		o.persist("insights", state.ID, func(ctx context.Context) error {
			return o.sink.PutInsights(ctx, state.ID, updated)
		})
		o.notifier.ArtifactUpdated(state.ID, session.StageInsights, updated)
		o.emit(TopicInsightsCompleted, EventPayload{SessionID: state.ID})
	}()
}

func (o *Orchestrator) runDifferential(state *session.State, rt *sessionRuntime) {
	snap := state.Insights()
	if !differential.HasClinicalContext(snap) {
		// No clinical context yet; nothing to rank.
		return
	}

	tok := rt.differential.begin(context.Background())
	state.SetProcessing(session.StageDifferential, true)

	transcriptText := state.Transcript.FullText()
	existing := state.Diagnoses()

	go func() {
		notesText, _, err := o.notes.Fetch(tok.Context(), state.ID)
		if err != nil {
			o.logger.Printf("[WARN] Notes fetch failed for session %s: %v", state.ID, err)
		}
		evidence := o.knowledge.Search(tok.Context(), differential.ExtractSearchTerms(snap))

		merged, err := o.differentialStage.Generate(tok.Context(), differential.Request{
			Transcript: transcriptText,
			Notes:      notesText,
			Insights:   snap,
			Existing:   existing,
			Evidence:   evidence,
		})

		if !rt.differential.finish(tok) {
			return
		}
		if err != nil {
			state.SetProcessing(session.StageDifferential, false)
			o.logger.Printf("[ERROR] Differential generation failed for session %s: %v", state.ID, err)
			return
		}

		applied := state.SetDiagnoses(merged)
		state.SetProcessing(session.StageDifferential, false)

		o.persist("diagnoses", state.ID, func(ctx context.Context) error {
			return o.sink.PutDiagnoses(ctx, state.ID, applied)
		})
		o.notifier.ArtifactUpdated(state.ID, session.StageDifferential, applied)
	}()
}

// runRecord generates the consultation record. force bypasses the
// skip-if-exists guard for explicit regeneration; the existing record still
// rides along in the request so the engine refines rather than starts over,
// and it survives in memory if the call fails.
func (o *Orchestrator) runRecord(state *session.State, rt *sessionRuntime, force bool) {
	transcriptText := state.Transcript.FullText()
	snap := state.Insights()
	existing := state.Record()

	tok := rt.record.begin(context.Background())
	state.SetProcessing(session.StageRecord, true)

	go func() {
		notesText, images, err := o.notes.Fetch(tok.Context(), state.ID)
		if err != nil {
			o.logger.Printf("[WARN] Notes fetch failed for session %s: %v", state.ID, err)
		}

		if !force && record.ShouldSkip(existing, transcriptText, notesText, images) {
			if rt.record.finish(tok) {
				state.SetProcessing(session.StageRecord, false)
			}
			return
		}

		rec, err := o.recordStage.Generate(tok.Context(), record.Request{
			Transcript: transcriptText,
			Notes:      notesText,
			Images:     images,
			Insights:   snap,
			Existing:   existing,
		})

		if !rt.record.finish(tok) {
			return
		}
		if err != nil {
			state.SetProcessing(session.StageRecord, false)
			o.logger.Printf("[ERROR] Record generation failed for session %s: %v", state.ID, err)
			return
		}

		state.SetRecord(rec)
		state.SetProcessing(session.StageRecord, false)

		// Persist immediately; a write failure never rolls back memory.
		o.persist("record", state.ID, func(ctx context.Context) error {
			return o.sink.PutRecord(ctx, state.ID, *rec)
		})
		o.notifier.ArtifactUpdated(state.ID, session.StageRecord, rec)
	}()
}

// RegenerateRecord is the explicit manual action that bypasses the
// skip-if-exists guard. The current record is kept until the new one lands.
func (o *Orchestrator) RegenerateRecord(sessionID uuid.UUID) {
	state, rt, ok := o.lookup(sessionID)
	if !ok {
		return
	}
	o.runRecord(state, rt, true)
}

func (o *Orchestrator) runHandout(state *session.State, rt *sessionRuntime, language string) {
	selected := state.SelectedConditions()
	if len(selected) == 0 {
		o.logger.Printf("[INFO] Handout skipped for session %s: no conditions selected", state.ID)
		return
	}

	// Bounded wait on insights; proceed anyway with best-available state.
	o.waitForInsights(rt)

	// Teardown may have released the wait; a torn-down session gets no writes.
	if !o.active(state.ID, rt) {
		return
	}

	tok := rt.handout.begin(context.Background())
	state.SetProcessing(session.StageHandout, true)

	transcriptText := state.Transcript.FullText()
	snap := state.Insights()
	diagnoses := state.Diagnoses()

	notesText, _, err := o.notes.Fetch(tok.Context(), state.ID)
	if err != nil {
		o.logger.Printf("[WARN] Notes fetch failed for session %s: %v", state.ID, err)
	}

	doc, err := o.handoutStage.Generate(tok.Context(), handout.Request{
		Transcript: transcriptText,
		Notes:      notesText,
		Insights:   snap,
		Diagnoses:  diagnoses,
		Selected:   selected,
		Language:   language,
	})

	if !rt.handout.finish(tok) {
		return
	}
	if err != nil {
		state.SetProcessing(session.StageHandout, false)
		o.logger.Printf("[ERROR] Handout generation failed for session %s: %v", state.ID, err)
		return
	}

	state.SetHandout(*doc)
	state.SetProcessing(session.StageHandout, false)

	o.persist("handout", state.ID, func(ctx context.Context) error {
		return o.sink.PutHandout(ctx, state.ID, *doc)
	})
	o.notifier.ArtifactUpdated(state.ID, session.StageHandout, doc)
}

func (o *Orchestrator) waitForInsights(rt *sessionRuntime) {
	if !rt.insights.isProcessing() {
		return
	}

	ch := make(chan struct{})
	rt.mu.Lock()
	rt.waiters = append(rt.waiters, ch)
	rt.mu.Unlock()

	select {
	case <-ch:
	case <-time.After(o.cfg.HandoutWait):
	}
}

// persist runs a best-effort full-document write in the background.
func (o *Orchestrator) persist(kind string, sessionID uuid.UUID, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			o.logger.Printf("[ERROR] Persist %s failed for session %s: %v", kind, sessionID, err)
		}
	}()
}
