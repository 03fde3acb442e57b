package handlers

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vozcredit/voz-gateway/pkg/core/dialogue"
	"github.com/vozcredit/voz-gateway/pkg/core/form"
	"github.com/vozcredit/voz-gateway/pkg/core/voice/stt"
	"github.com/vozcredit/voz-gateway/pkg/core/voice/tts"
	"github.com/vozcredit/voz-gateway/pkg/gateway/live/sessions"
	"github.com/vozcredit/voz-gateway/pkg/gateway/metrics"
)

type stubSTT struct {
	text  string
	calls atomic.Int64
}

func (s *stubSTT) Name() string { return "stub" }

func (s *stubSTT) Transcribe(ctx context.Context, audio io.Reader, opts stt.TranscribeOptions) (*stt.Transcript, error) {
	s.calls.Add(1)
	return &stt.Transcript{Text: s.text, Language: opts.Language}, nil
}

type stubDialogue struct {
	calls atomic.Int64
	fn    func(call int64, req *dialogue.TurnRequest) (*dialogue.TurnResult, error)
}

func (s *stubDialogue) Name() string { return "stub" }

func (s *stubDialogue) Interpret(ctx context.Context, req *dialogue.TurnRequest) (*dialogue.TurnResult, error) {
	return s.fn(s.calls.Add(1), req)
}

type stubTTS struct{}

func (stubTTS) Name() string { return "stub" }

func (stubTTS) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOptions) (*tts.Synthesis, error) {
	return &tts.Synthesis{Audio: []byte("audio:" + text), Format: opts.Format}, nil
}

func f32leB64(samples []float32) string {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(s))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func dialLive(t *testing.T, h LiveHandler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one with the wanted type arrives. Frames of
// other types are discarded.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q frame: %v", frameType, err)
		}
		var frame map[string]any
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("bad frame %q: %v", raw, err)
		}
		if frame["type"] == frameType {
			return frame
		}
		if frame["type"] == "error" {
			t.Fatalf("error frame while waiting for %q: %v", frameType, frame)
		}
	}
}

func sendJSON(t *testing.T, conn *websocket.Conn, frame any) {
	t.Helper()
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func ackPlayback(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	audio := readUntil(t, conn, "audio")
	sendJSON(t, conn, map[string]any{"type": "playback_done", "audio_id": audio["audio_id"]})
}

func TestLiveHandlerFullTurn(t *testing.T) {
	sttProv := &stubSTT{text: "mi cédula es uno dos tres"}
	dlg := &stubDialogue{fn: func(call int64, req *dialogue.TurnRequest) (*dialogue.TurnResult, error) {
		if call == 1 {
			return &dialogue.TurnResult{Reply: "Hola, bienvenido"}, nil
		}
		var extracted form.Fields
		if err := extracted.Set(form.KeyCedula, "123"); err != nil {
			return nil, err
		}
		return &dialogue.TurnResult{Reply: "Gracias", Extracted: extracted}, nil
	}}

	h := LiveHandler{
		Config:   validConfig(),
		Logger:   slog.New(slog.DiscardHandler),
		Metrics:  metrics.New("test"),
		STT:      sttProv,
		Dialogue: dlg,
		TTS:      stubTTS{},
		Sessions: sessions.NewTracker(),
	}
	conn := dialLive(t, h)

	sendJSON(t, conn, map[string]any{"type": "hello", "protocol_version": "1", "sample_rate_hz": 16000})
	ack := readUntil(t, conn, "hello_ack")
	sessionID, _ := ack["session_id"].(string)
	if sessionID == "" {
		t.Fatal("hello_ack is missing session_id")
	}
	if ack["audio_format"] != "mp3" {
		t.Errorf("audio_format = %v, want mp3", ack["audio_format"])
	}

	// Greeting turn: assistant message and audio, then listening once the
	// client reports playback finished.
	greeting := readUntil(t, conn, "assistant_message")
	if greeting["text"] != "Hola, bienvenido" {
		t.Errorf("greeting = %v", greeting["text"])
	}
	ackPlayback(t, conn)
	state := readUntil(t, conn, "state")
	if state["state"] != "listening" {
		t.Fatalf("state after greeting = %v, want listening", state["state"])
	}

	// One spoken turn.
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = 0.5
	}
	sendJSON(t, conn, map[string]any{"type": "utterance", "seq": 1, "samples_b64": f32leB64(samples)})

	transcript := readUntil(t, conn, "transcript")
	if transcript["text"] != "mi cédula es uno dos tres" {
		t.Errorf("transcript = %v", transcript["text"])
	}
	fields := readUntil(t, conn, "fields")
	got, _ := fields["fields"].(map[string]any)
	if got == nil || got[form.KeyCedula] != "123" {
		t.Errorf("fields frame = %v, want cedula filled", fields)
	}
	if fields["complete"] != false {
		t.Errorf("complete = %v, want false", fields["complete"])
	}
	ackPlayback(t, conn)

	if n := sttProv.calls.Load(); n != 1 {
		t.Errorf("stt calls = %d, want 1", n)
	}

	sendJSON(t, conn, map[string]any{"type": "bye"})
	closed := readUntil(t, conn, "session_closed")
	if closed["reason"] != "bye" {
		t.Errorf("close reason = %v, want bye", closed["reason"])
	}
}

func TestLiveHandlerFieldEdit(t *testing.T) {
	dlg := &stubDialogue{fn: func(call int64, req *dialogue.TurnRequest) (*dialogue.TurnResult, error) {
		return &dialogue.TurnResult{Reply: "Hola"}, nil
	}}
	h := LiveHandler{
		Config:   validConfig(),
		Logger:   slog.New(slog.DiscardHandler),
		Metrics:  metrics.New("test"),
		STT:      &stubSTT{},
		Dialogue: dlg,
		TTS:      stubTTS{},
		Sessions: sessions.NewTracker(),
	}
	conn := dialLive(t, h)

	sendJSON(t, conn, map[string]any{"type": "hello", "protocol_version": "1", "sample_rate_hz": 16000})
	readUntil(t, conn, "hello_ack")
	ackPlayback(t, conn)

	sendJSON(t, conn, map[string]any{"type": "field_edit", "field": form.KeyNumeroCelular, "value": "3001234567"})
	fields := readUntil(t, conn, "fields")
	got, _ := fields["fields"].(map[string]any)
	if got == nil || got[form.KeyNumeroCelular] != "3001234567" {
		t.Errorf("fields frame = %v, want numeroCelular filled", fields)
	}
}

func TestLiveHandlerRejectsBadHello(t *testing.T) {
	h := LiveHandler{
		Config:   validConfig(),
		Logger:   slog.New(slog.DiscardHandler),
		Metrics:  metrics.New("test"),
		STT:      &stubSTT{},
		Dialogue: &stubDialogue{fn: func(int64, *dialogue.TurnRequest) (*dialogue.TurnResult, error) { return nil, nil }},
		TTS:      stubTTS{},
		Sessions: sessions.NewTracker(),
	}
	conn := dialLive(t, h)

	sendJSON(t, conn, map[string]any{"type": "hello", "protocol_version": "99", "sample_rate_hz": 16000})
	errFrame := readUntil(t, conn, "error")
	if errFrame["close"] != true {
		t.Errorf("error frame = %v, want close=true", errFrame)
	}
}

func TestLiveHandlerDraining(t *testing.T) {
	h := LiveHandler{
		Config:   validConfig(),
		Logger:   slog.New(slog.DiscardHandler),
		Draining: func() bool { return true },
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/live"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial succeeded while draining")
	}
	if resp == nil || resp.StatusCode != 529 {
		t.Fatalf("status = %v, want 529", resp)
	}
}

func TestLiveHandlerOriginDenied(t *testing.T) {
	cfg := validConfig()
	cfg.CORSAllowedOrigins = map[string]struct{}{"https://app.example.com": {}}
	h := LiveHandler{Config: cfg, Logger: slog.New(slog.DiscardHandler)}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/live"
	hdr := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, hdr)
	if err == nil {
		t.Fatal("dial succeeded from a disallowed origin")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("status = %v, want 401", resp)
	}
}
