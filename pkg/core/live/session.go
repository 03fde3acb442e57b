package live

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vozcredit/voz-gateway/pkg/core/audio"
	"github.com/vozcredit/voz-gateway/pkg/core/conversation"
	"github.com/vozcredit/voz-gateway/pkg/core/dialogue"
	"github.com/vozcredit/voz-gateway/pkg/core/form"
	"github.com/vozcredit/voz-gateway/pkg/core/voice/stt"
	"github.com/vozcredit/voz-gateway/pkg/core/voice/tts"
)

// Dependencies are the external collaborators a session drives.
type Dependencies struct {
	STT      stt.Provider
	Dialogue dialogue.Provider
	TTS      tts.Provider
	Playback Playback
	Logger   *slog.Logger
}

// Session orchestrates one voice conversation: greeting, then a loop of
// utterance turns until the form completes or the session is torn down.
//
// Concurrency model: at most one turn is in flight at a time, enforced by
// an in-flight flag checked at turn start. Utterances arriving during
// processing or speaking are ignored outright, not queued. Shared state is
// mutated only after the turn's token is confirmed current, so a superseded
// turn's results are dropped unapplied.
type Session struct {
	cfg   SessionConfig
	deps  Dependencies
	store *conversation.Store

	mu       sync.Mutex
	state    State
	inFlight bool

	tokens   tokenSource
	closed   atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
	events   chan Event
	wg       sync.WaitGroup

	// Greeting audio is deterministic per session open and cached so a
	// re-triggered greeting does not spend a second synthesis call.
	greetingMu    sync.Mutex
	greetingAudio *tts.Synthesis

	// sleep is swapped out by tests to skip real grace delays.
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewSession validates dependencies and creates a session in the idle state.
func NewSession(cfg SessionConfig, deps Dependencies) (*Session, error) {
	if deps.STT == nil {
		return nil, errors.New("live: missing STT provider")
	}
	if deps.Dialogue == nil {
		return nil, errors.New("live: missing dialogue provider")
	}
	if deps.TTS == nil {
		return nil, errors.New("live: missing TTS provider")
	}
	if deps.Playback == nil {
		return nil, errors.New("live: missing playback port")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	cfg.applyDefaults()

	return &Session{
		cfg:    cfg,
		deps:   deps,
		store:  conversation.NewStore(cfg.MaxHistory),
		state:  StateIdle,
		done:   make(chan struct{}),
		events: make(chan Event, cfg.EventBuffer),
		sleep:  sleepCtx,
	}, nil
}

// Events returns the session event stream. Events are dropped rather than
// blocking the pipeline when the consumer falls behind.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Fields returns a copy of the current form state.
func (s *Session) Fields() form.Fields {
	return s.store.Fields()
}

// History returns a copy of the conversation log.
func (s *Session) History() []conversation.Message {
	return s.store.History()
}

// Start opens the session: conversation state is cleared and the greeting
// turn begins. The session stays in processing until the greeting reply has
// been synthesized and played, then enters listening.
func (s *Session) Start(ctx context.Context) error {
	if s.closed.Load() {
		return errors.New("live: session closed")
	}
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return errors.New("live: session already started")
	}
	s.inFlight = true
	s.setStateLocked(StateProcessing)
	s.mu.Unlock()

	s.store.Reset()
	turnCtx, tok := s.tokens.begin(ctx)
	s.wg.Add(1)
	go s.runTurn(turnCtx, tok, nil, true)
	return nil
}

// HandleUtterance feeds one segmented utterance into the pipeline. It
// reports whether the utterance was accepted: buffers arriving while a turn
// is in flight, while speaking, or after teardown are ignored.
func (s *Session) HandleUtterance(ctx context.Context, samples []float32) bool {
	if s.closed.Load() {
		return false
	}
	if s.cfg.MinUtteranceRMS > 0 && audio.RMSEnergy(samples) < s.cfg.MinUtteranceRMS {
		s.deps.Logger.Debug("utterance below energy floor, ignoring", "samples", len(samples))
		return false
	}

	s.mu.Lock()
	if s.state != StateListening || s.inFlight {
		s.mu.Unlock()
		return false
	}
	s.inFlight = true
	s.setStateLocked(StateProcessing)
	s.mu.Unlock()

	turnCtx, tok := s.tokens.begin(ctx)
	s.wg.Add(1)
	go s.runTurn(turnCtx, tok, samples, false)
	return true
}

// SetField applies a direct edit from the UI. Direct edits bypass the turn
// pipeline but share the same store, so a stale turn can never clobber them:
// its merge is dropped at the token check.
func (s *Session) SetField(key, value string) error {
	if s.closed.Load() {
		return errors.New("live: session closed")
	}
	if err := s.store.SetField(key, value); err != nil {
		return err
	}
	s.emit(&FieldsUpdatedEvent{Fields: s.store.Fields(), Complete: s.store.Complete()})
	return nil
}

// Close tears the session down: the in-flight turn is cancelled, playback
// stops immediately, and the session lands in idle. Safe to call more than
// once.
func (s *Session) Close() {
	s.shutdown("teardown", true)
}

// shutdown is shared between external teardown and the natural completion
// path. wait must be false when called from within a turn goroutine.
func (s *Session) shutdown(reason string, wait bool) {
	if !s.closed.Swap(true) {
		s.tokens.cancelAll()
		s.deps.Playback.Stop()

		s.mu.Lock()
		s.setStateLocked(StateIdle)
		s.mu.Unlock()

		s.emit(&SessionClosedEvent{Reason: reason})
	}
	if wait {
		s.wg.Wait()
	}
	s.doneOnce.Do(func() { close(s.done) })
}

// runTurn executes one full turn: transcribe, interpret, commit, synthesize,
// play. Every step that touches shared state first confirms the turn token
// is still current.
func (s *Session) runTurn(ctx context.Context, tok turnToken, samples []float32, greeting bool) {
	defer s.wg.Done()
	defer s.endTurn(tok)

	utterance := ""
	if !greeting {
		text, ok := s.transcribe(ctx, tok, samples)
		if !ok {
			return
		}
		utterance = text
	}

	result, ok := s.interpret(ctx, tok, utterance)
	if !ok {
		return
	}

	// Commit point: history and fields change only on a successful
	// interpret, so a failed turn leaves both untouched.
	if !s.tokens.isCurrent(tok) {
		return
	}
	if utterance != "" {
		s.store.Append(conversation.RoleUser, utterance)
	}
	s.store.MergeFields(result.Extracted)
	s.emit(&FieldsUpdatedEvent{Fields: s.store.Fields(), Complete: s.store.Complete()})
	if !s.setStateIfCurrent(tok, StateSpeaking) {
		return
	}

	syn, ok := s.synthesize(ctx, tok, result.Reply, greeting)
	if !ok {
		return
	}

	if !s.tokens.isCurrent(tok) {
		return
	}
	s.store.Append(conversation.RoleAssistant, result.Reply)
	s.emit(&AssistantMessageEvent{Text: result.Reply})

	if err := s.deps.Playback.Play(ctx, syn.Audio, syn.Format); err != nil {
		if ctx.Err() == nil && s.tokens.isCurrent(tok) {
			s.deps.Logger.Warn("playback failed", "error", err)
			s.setStateIfCurrent(tok, StateListening)
		}
		return
	}

	// Natural playback completion drives the next transition.
	if !s.tokens.isCurrent(tok) {
		return
	}
	if result.Complete {
		s.setStateIfCurrent(tok, StateIdle)
		if s.sleep(ctx, s.cfg.CompletionGrace) && s.tokens.isCurrent(tok) {
			s.shutdown("complete", false)
		}
		return
	}
	s.setStateIfCurrent(tok, StateListening)
}

// transcribe encodes and transcribes the utterance. A failed or blank
// transcription returns the session to listening without retry; the user
// simply repeats themselves.
func (s *Session) transcribe(ctx context.Context, tok turnToken, samples []float32) (string, bool) {
	wav := audio.EncodeWAV(samples, s.cfg.SampleRate)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
	defer cancel()
	tr, err := s.deps.STT.Transcribe(callCtx, bytes.NewReader(wav), stt.TranscribeOptions{
		Model:      s.cfg.STTModel,
		Language:   s.cfg.Language,
		Prompt:     s.cfg.VocabularyPrompt,
		Format:     "wav",
		SampleRate: s.cfg.SampleRate,
	})
	if err != nil {
		if ctx.Err() == nil && s.tokens.isCurrent(tok) {
			s.deps.Logger.Warn("transcription failed", "error", err)
			s.setStateIfCurrent(tok, StateListening)
		}
		return "", false
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		s.setStateIfCurrent(tok, StateListening)
		return "", false
	}
	if s.tokens.isCurrent(tok) {
		s.emit(&TranscriptEvent{Text: text})
	}
	return text, true
}

// interpret calls the dialogue service with bounded exponential-backoff
// retry. The request carries a history snapshot plus the new utterance;
// the utterance joins the stored history only at the commit point.
func (s *Session) interpret(ctx context.Context, tok turnToken, utterance string) (*dialogue.TurnResult, bool) {
	req := &dialogue.TurnRequest{
		History:   s.store.History(),
		Fields:    s.store.Fields(),
		Utterance: utterance,
	}

	var result *dialogue.TurnResult
	err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()
		r, err := s.deps.Dialogue.Interpret(callCtx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		if ctx.Err() == nil && s.tokens.isCurrent(tok) {
			s.deps.Logger.Warn("interpret failed after retries", "error", err)
			s.emit(&TurnErrorEvent{Stage: "interpret", Err: err})
			s.setStateIfCurrent(tok, StateListening)
		}
		return nil, false
	}
	return result, true
}

// synthesize fetches reply audio, serving the greeting from cache when
// available.
func (s *Session) synthesize(ctx context.Context, tok turnToken, text string, greeting bool) (*tts.Synthesis, bool) {
	if greeting {
		s.greetingMu.Lock()
		cached := s.greetingAudio
		s.greetingMu.Unlock()
		if cached != nil {
			return cached, true
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
	defer cancel()
	syn, err := s.deps.TTS.Synthesize(callCtx, text, tts.SynthesizeOptions{
		Voice:    s.cfg.Voice,
		Speed:    s.cfg.SpeechSpeed,
		Language: s.cfg.Language,
		Format:   s.cfg.AudioFormat,
	})
	if err != nil {
		if ctx.Err() == nil && s.tokens.isCurrent(tok) {
			s.deps.Logger.Warn("synthesis failed", "error", err)
			s.emit(&TurnErrorEvent{Stage: "synthesize", Err: err})
			s.setStateIfCurrent(tok, StateListening)
		}
		return nil, false
	}

	if greeting {
		s.greetingMu.Lock()
		s.greetingAudio = syn
		s.greetingMu.Unlock()
	}
	return syn, true
}

func (s *Session) endTurn(tok turnToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens.isCurrent(tok) || s.closed.Load() {
		s.inFlight = false
	}
}

// setStateIfCurrent transitions only if tok still identifies the live turn
// and the session has not been torn down.
func (s *Session) setStateIfCurrent(tok turnToken, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() || !s.tokens.isCurrent(tok) {
		return false
	}
	s.setStateLocked(to)
	return true
}

func (s *Session) setStateLocked(to State) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	s.deps.Logger.Debug("state transition", "from", from.String(), "to", to.String())
	s.emit(&StateChangedEvent{From: from, To: to})
}

// emit delivers an event without ever blocking the pipeline.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.deps.Logger.Warn("event dropped, consumer too slow", "event", ev.EventType())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
