package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vozcredit/voz-gateway/pkg/core"
	"github.com/vozcredit/voz-gateway/pkg/core/dialogue"
	"github.com/vozcredit/voz-gateway/pkg/core/live"
	"github.com/vozcredit/voz-gateway/pkg/core/voice/stt"
	"github.com/vozcredit/voz-gateway/pkg/core/voice/tts"
	"github.com/vozcredit/voz-gateway/pkg/gateway/apierror"
	"github.com/vozcredit/voz-gateway/pkg/gateway/config"
	"github.com/vozcredit/voz-gateway/pkg/gateway/live/protocol"
	"github.com/vozcredit/voz-gateway/pkg/gateway/live/session"
	"github.com/vozcredit/voz-gateway/pkg/gateway/live/sessions"
	"github.com/vozcredit/voz-gateway/pkg/gateway/metrics"
	"github.com/vozcredit/voz-gateway/pkg/gateway/mw"
)

// LiveHandler handles /v1/live websocket sessions.
type LiveHandler struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	STT      stt.Provider
	Dialogue dialogue.Provider
	TTS      tts.Provider
	Sessions *sessions.Tracker
	Draining func() bool
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		apierror.WriteJSON(w, core.NewInvalidRequestError("method not allowed"), reqID)
		return
	}
	if h.Draining != nil && h.Draining() {
		apierror.WriteJSON(w, core.NewOverloadedError("gateway is draining"), reqID)
		return
	}
	if !h.originAllowed(r) {
		apierror.WriteJSON(w, core.NewAuthenticationError("origin is not allowed"), reqID)
		return
	}

	upgrader := websocket.Upgrader{
		HandshakeTimeout: h.Config.LiveHandshakeTimeout,
		CheckOrigin:      func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.LiveMaxMessageBytes > 0 {
		conn.SetReadLimit(h.Config.LiveMaxMessageBytes)
	}

	handshakeTimeout := h.Config.LiveHandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 5 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	messageType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		h.writeWSError(conn, "bad_request", "failed to read hello", "")
		return
	}
	if messageType != websocket.TextMessage {
		h.writeWSError(conn, "bad_request", "first frame must be hello", "")
		return
	}

	decoded, err := protocol.DecodeClientMessage(firstFrame)
	if err != nil {
		var de *protocol.DecodeError
		if !errors.As(err, &de) {
			de = &protocol.DecodeError{Code: "bad_request", Message: "invalid hello frame"}
		}
		h.writeWSError(conn, de.Code, de.Message, de.Param)
		return
	}
	hello, ok := decoded.(protocol.ClientHello)
	if !ok {
		h.writeWSError(conn, "bad_request", "first frame must be hello", "")
		return
	}

	language := strings.TrimSpace(hello.Language)
	if language == "" {
		language = h.Config.Language
	}

	sessionID := "s_" + uuid.NewString()
	ack := protocol.ServerHelloAck{
		Type:            "hello_ack",
		ProtocolVersion: protocol.ProtocolVersion1,
		SessionID:       sessionID,
		SampleRateHz:    hello.SampleRateHz,
		AudioFormat:     h.Config.AudioFormat,
		Language:        language,
		Limits: protocol.HelloAckLimits{
			MaxMessageBytes:      h.Config.LiveMaxMessageBytes,
			MaxSessionDurationMS: h.Config.LiveMaxSessionDuration.Milliseconds(),
		},
	}
	if err := conn.WriteJSON(ack); err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	bridge, err := session.New(session.Dependencies{
		Conn:      conn,
		Logger:    h.Logger,
		Metrics:   h.Metrics,
		SessionID: sessionID,
		RequestID: reqID,
		STT:       h.STT,
		Dialogue:  h.Dialogue,
		TTS:       h.TTS,
		Session: live.SessionConfig{
			SampleRate:       hello.SampleRateHz,
			Language:         language,
			VocabularyPrompt: live.DefaultSessionConfig().VocabularyPrompt,
			STTModel:         h.Config.STTModel,
			Voice:            h.Config.Voice,
			SpeechSpeed:      h.Config.SpeechSpeed,
			AudioFormat:      h.Config.AudioFormat,
			MaxHistory:       h.Config.MaxHistory,
			MinUtteranceRMS:  h.Config.MinUtteranceRMS,
			Retry: live.RetryPolicy{
				MaxRetries: h.Config.InterpretMaxRetries,
				BaseDelay:  h.Config.InterpretBaseDelay,
				Multiplier: 2,
			},
			TurnTimeout:     h.Config.TurnTimeout,
			CompletionGrace: h.Config.CompletionGrace,
		},
		Config: session.Config{
			PingInterval:       h.Config.LiveWSPingInterval,
			WriteTimeout:       h.Config.LiveWSWriteTimeout,
			MaxSessionDuration: h.Config.LiveMaxSessionDuration,
		},
	})
	if err != nil {
		h.writeWSError(conn, "internal", "failed to initialize live session", "")
		return
	}

	unregister := func() {}
	if h.Sessions != nil {
		unregister = h.Sessions.Register(sessionID, bridge.Cancel)
	}
	defer unregister()

	if err := bridge.Run(); err != nil && h.Logger != nil {
		h.Logger.Warn("live session ended with error", "session_id", sessionID, "request_id", reqID, "error", err)
	}
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

func (h LiveHandler) writeWSError(conn *websocket.Conn, code, message, param string) {
	_ = conn.WriteJSON(protocol.ServerError{Type: "error", Code: code, Message: message, Param: param, Close: true})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(2*time.Second))
}
