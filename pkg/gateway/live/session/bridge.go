// Package session bridges one WebSocket connection to a core voice session:
// inbound frames feed the turn pipeline, session events stream back out.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vozcredit/voz-gateway/pkg/core"
	"github.com/vozcredit/voz-gateway/pkg/core/audio"
	"github.com/vozcredit/voz-gateway/pkg/core/dialogue"
	"github.com/vozcredit/voz-gateway/pkg/core/live"
	"github.com/vozcredit/voz-gateway/pkg/core/voice/stt"
	"github.com/vozcredit/voz-gateway/pkg/core/voice/tts"
	"github.com/vozcredit/voz-gateway/pkg/gateway/live/protocol"
	"github.com/vozcredit/voz-gateway/pkg/gateway/metrics"
)

// Config tunes the WebSocket side of a live session.
type Config struct {
	PingInterval       time.Duration
	WriteTimeout       time.Duration
	MaxSessionDuration time.Duration
	OutboundQueueSize  int
}

// Dependencies wires one bridge.
type Dependencies struct {
	Conn      *websocket.Conn
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	SessionID string
	RequestID string

	STT      stt.Provider
	Dialogue dialogue.Provider
	TTS      tts.Provider

	Session live.SessionConfig
	Config  Config
}

// Bridge runs one live voice session over a WebSocket connection.
type Bridge struct {
	cfg       Config
	conn      *websocket.Conn
	logger    *slog.Logger
	metrics   *metrics.Metrics
	sessionID string

	core     *live.Session
	playback *wsPlayback

	outbound chan []byte
	ctx      context.Context
	cancel   context.CancelFunc

	mu          sync.Mutex
	closeReason string
	turnStart   time.Time
}

func New(deps Dependencies) (*Bridge, error) {
	if deps.Conn == nil {
		return nil, errors.New("session: missing websocket connection")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	queueSize := deps.Config.OutboundQueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		cfg:       deps.Config,
		conn:      deps.Conn,
		logger:    deps.Logger.With("session_id", deps.SessionID),
		metrics:   deps.Metrics,
		sessionID: deps.SessionID,
		outbound:  make(chan []byte, queueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
	b.playback = newWSPlayback(func(frame any) error {
		if a, ok := frame.(*protocol.ServerAudio); ok && b.metrics != nil {
			b.metrics.RecordAudio("out", base64.StdEncoding.DecodedLen(len(a.AudioB64)))
		}
		return b.send(frame)
	})

	coreSession, err := live.NewSession(deps.Session, live.Dependencies{
		STT:      deps.STT,
		Dialogue: deps.Dialogue,
		TTS:      deps.TTS,
		Playback: b.playback,
		Logger:   b.logger,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	b.core = coreSession
	return b, nil
}

// Cancel tears the bridge down from outside (drain, shutdown).
func (b *Bridge) Cancel() {
	b.setCloseReason("canceled")
	b.core.Close()
	b.cancel()
}

// Run drives the session until the connection drops, the client says bye, the
// form completes, or the session duration cap fires. It blocks.
func (b *Bridge) Run() error {
	start := time.Now()
	if b.metrics != nil {
		b.metrics.RecordSessionStart()
	}
	defer func() {
		if b.metrics != nil {
			b.metrics.RecordSessionEnd(b.getCloseReason(), time.Since(start))
		}
	}()

	if b.cfg.MaxSessionDuration > 0 {
		capTimer := time.AfterFunc(b.cfg.MaxSessionDuration, func() {
			b.setCloseReason("max_duration")
			b.core.Close()
			b.cancel()
		})
		defer capTimer.Stop()
	}

	writerDone := make(chan error, 1)
	go func() { writerDone <- b.writeLoop() }()
	go b.pumpEvents()

	if err := b.core.Start(b.ctx); err != nil {
		b.setCloseReason("start_failed")
		b.cancel()
		<-writerDone
		return err
	}

	readErr := b.readLoop()

	b.setCloseReason("disconnect")
	b.core.Close()
	b.cancel()
	err := <-writerDone

	if readErr != nil && !websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		b.logger.Debug("read loop ended", "error", readErr)
	}
	return err
}

// send marshals one frame onto the outbound queue. It blocks when the queue
// is full so reply audio is never dropped; teardown unblocks it.
func (b *Bridge) send(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case b.outbound <- data:
		return nil
	case <-b.ctx.Done():
		return b.ctx.Err()
	}
}

func (b *Bridge) writeLoop() error {
	pingInterval := b.cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	writeTimeout := b.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			b.flushOnShutdown(writeTimeout)
			_ = b.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			return b.conn.Close()
		case <-pingTicker.C:
			if err := b.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		case data := <-b.outbound:
			if err := b.writeFrame(data, writeTimeout); err != nil {
				return err
			}
		}
	}
}

// flushOnShutdown drains queued frames so session_closed and the final
// fields snapshot reach the client before the socket closes. It waits a
// short beat for trailing frames because the event pump may still be
// translating the last session event when teardown fires.
func (b *Bridge) flushOnShutdown(writeTimeout time.Duration) {
	deadline := time.Now().Add(200 * time.Millisecond)
	for i := 0; i < 16 && time.Now().Before(deadline); i++ {
		select {
		case data := <-b.outbound:
			_ = b.writeFrame(data, writeTimeout)
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

// enqueueFinal queues a frame after cancellation, when send would refuse.
// Best effort: a full queue drops the frame rather than blocking teardown.
func (b *Bridge) enqueueFinal(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case b.outbound <- data:
	default:
	}
}

func (b *Bridge) writeFrame(data []byte, writeTimeout time.Duration) error {
	if err := b.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

// pumpEvents translates core session events into protocol frames.
func (b *Bridge) pumpEvents() {
	for {
		select {
		case <-b.ctx.Done():
			// Teardown raced ahead of the event loop: translate whatever is
			// still buffered so session_closed reaches the flush path.
			for {
				select {
				case ev := <-b.core.Events():
					if e, ok := ev.(*live.SessionClosedEvent); ok {
						b.setCloseReason(e.Reason)
						b.enqueueFinal(&protocol.ServerSessionClosed{Type: "session_closed", Reason: b.getCloseReason()})
					}
				default:
					return
				}
			}
		case ev := <-b.core.Events():
			switch e := ev.(type) {
			case *live.StateChangedEvent:
				b.trackTurn(e.To)
				_ = b.send(&protocol.ServerState{Type: "state", State: e.To.String()})
			case *live.TranscriptEvent:
				_ = b.send(&protocol.ServerTranscript{Type: "transcript", Text: e.Text})
			case *live.AssistantMessageEvent:
				_ = b.send(&protocol.ServerAssistantMessage{Type: "assistant_message", Text: e.Text})
			case *live.FieldsUpdatedEvent:
				fields := e.Fields
				_ = b.send(&protocol.ServerFields{
					Type:     "fields",
					Fields:   fields,
					Complete: e.Complete,
					Missing:  fields.MissingKeys(),
				})
			case *live.TurnErrorEvent:
				b.recordTurnError(e)
				_ = b.send(&protocol.ServerError{
					Type:    "error",
					Code:    errorCode(e.Err),
					Message: "turn failed, still listening",
					Stage:   e.Stage,
				})
			case *live.SessionClosedEvent:
				// A reason set earlier (bye, max_duration, canceled) wins over
				// the core session's generic teardown reason.
				b.setCloseReason(e.Reason)
				_ = b.send(&protocol.ServerSessionClosed{Type: "session_closed", Reason: b.getCloseReason()})
				b.cancel()
				return
			}
		}
	}
}

func (b *Bridge) readLoop() error {
	readTimeout := 3 * b.cfg.PingInterval
	if b.cfg.PingInterval <= 0 {
		readTimeout = 0
	}
	if readTimeout > 0 {
		_ = b.conn.SetReadDeadline(time.Now().Add(readTimeout))
		b.conn.SetPongHandler(func(string) error {
			return b.conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
	}

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			return err
		}
		if readTimeout > 0 {
			_ = b.conn.SetReadDeadline(time.Now().Add(readTimeout))
		}
		if stop := b.handleFrame(data); stop {
			return nil
		}
	}
}

// handleFrame processes one inbound frame. It reports whether the read loop
// should stop.
func (b *Bridge) handleFrame(data []byte) bool {
	decoded, err := protocol.DecodeClientMessage(data)
	if err != nil {
		var de *protocol.DecodeError
		if errors.As(err, &de) {
			_ = b.send(&protocol.ServerError{Type: "error", Code: de.Code, Message: de.Message, Param: de.Param})
		}
		return false
	}

	switch msg := decoded.(type) {
	case protocol.ClientHello:
		_ = b.send(&protocol.ServerError{Type: "error", Code: "bad_request", Message: "duplicate hello"})
	case protocol.ClientUtterance:
		b.handleUtterance(msg)
	case protocol.ClientFieldEdit:
		if err := b.core.SetField(msg.Field, msg.Value); err != nil {
			_ = b.send(&protocol.ServerError{Type: "error", Code: "bad_request", Message: err.Error(), Param: "field"})
		}
	case protocol.ClientPlaybackDone:
		if !b.playback.Finish(msg.AudioID) {
			b.logger.Debug("playback_done for unknown audio", "audio_id", msg.AudioID)
		}
	case protocol.ClientBye:
		b.setCloseReason("bye")
		b.core.Close()
		return true
	}
	return false
}

func (b *Bridge) handleUtterance(msg protocol.ClientUtterance) {
	raw, err := base64.StdEncoding.DecodeString(msg.SamplesB64)
	if err != nil {
		_ = b.send(&protocol.ServerError{Type: "error", Code: "bad_request", Message: "invalid base64 samples", Param: "samples_b64"})
		return
	}
	samples, err := audio.DecodeF32LE(raw)
	if err != nil {
		_ = b.send(&protocol.ServerError{Type: "error", Code: "bad_request", Message: err.Error(), Param: "samples_b64"})
		return
	}
	if b.metrics != nil {
		b.metrics.RecordAudio("in", len(raw))
	}
	if !b.core.HandleUtterance(b.ctx, samples) {
		// Busy or not listening; the utterance is dropped, not queued.
		b.logger.Debug("utterance ignored", "seq", msg.Seq, "state", b.core.State().String())
	}
}

func (b *Bridge) trackTurn(to live.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch to {
	case live.StateProcessing:
		b.turnStart = time.Now()
	case live.StateSpeaking:
		if b.metrics != nil && !b.turnStart.IsZero() {
			b.metrics.RecordTurn("ok", time.Since(b.turnStart))
			b.turnStart = time.Time{}
		}
	}
}

func (b *Bridge) recordTurnError(e *live.TurnErrorEvent) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordError(e.Stage, errorCode(e.Err))
	b.mu.Lock()
	if !b.turnStart.IsZero() {
		b.metrics.RecordTurn("error", time.Since(b.turnStart))
		b.turnStart = time.Time{}
	}
	b.mu.Unlock()
}

// setCloseReason records the first close reason; later calls lose.
func (b *Bridge) setCloseReason(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeReason == "" {
		b.closeReason = reason
	}
}

func (b *Bridge) getCloseReason() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeReason == "" {
		return "disconnect"
	}
	return b.closeReason
}

func errorCode(err error) string {
	var ce *core.Error
	if errors.As(err, &ce) {
		return string(ce.Type)
	}
	return "internal"
}
