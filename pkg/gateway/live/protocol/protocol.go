// Package protocol defines the JSON wire frames for the /v1/live WebSocket.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vozcredit/voz-gateway/pkg/core/form"
)

const ProtocolVersion1 = "1"

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

type HelloClient struct {
	Name     string `json:"name,omitempty"`
	Version  string `json:"version,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// ClientHello opens a session. The client declares its capture shape; the
// gateway replies with hello_ack before the greeting turn starts.
type ClientHello struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Client          HelloClient `json:"client,omitempty"`
	SampleRateHz    int         `json:"sample_rate_hz"`
	Language        string      `json:"language,omitempty"`
}

// ClientUtterance carries one complete voice-activity-segmented utterance as
// base64 little-endian float32 samples.
type ClientUtterance struct {
	Type       string `json:"type"`
	Seq        int64  `json:"seq,omitempty"`
	SamplesB64 string `json:"samples_b64"`
}

// ClientFieldEdit is a direct form edit from the UI, outside the voice loop.
type ClientFieldEdit struct {
	Type  string `json:"type"`
	Field string `json:"field"`
	Value string `json:"value"`
}

// ClientPlaybackDone reports that the client finished playing the reply audio
// it last received. The gateway treats it as natural playback completion.
type ClientPlaybackDone struct {
	Type    string `json:"type"`
	AudioID string `json:"audio_id"`
}

// ClientBye asks for an orderly session teardown.
type ClientBye struct {
	Type string `json:"type"`
}

func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "hello":
		var msg ClientHello
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hello frame", "")
		}
		if err := ValidateHello(msg); err != nil {
			return nil, err
		}
		return msg, nil
	case "utterance":
		var msg ClientUtterance
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid utterance frame", "")
		}
		if strings.TrimSpace(msg.SamplesB64) == "" {
			return nil, badRequest("utterance.samples_b64 is required", "samples_b64")
		}
		return msg, nil
	case "field_edit":
		var msg ClientFieldEdit
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid field_edit frame", "")
		}
		field := strings.TrimSpace(msg.Field)
		if field == "" {
			return nil, badRequest("field_edit.field is required", "field")
		}
		if !validFieldKey(field) {
			return nil, unsupported("unknown form field", "field")
		}
		if strings.TrimSpace(msg.Value) == "" {
			return nil, badRequest("field_edit.value is required", "value")
		}
		msg.Field = field
		return msg, nil
	case "playback_done":
		var msg ClientPlaybackDone
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid playback_done frame", "")
		}
		if strings.TrimSpace(msg.AudioID) == "" {
			return nil, badRequest("playback_done.audio_id is required", "audio_id")
		}
		return msg, nil
	case "bye":
		var msg ClientBye
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid bye frame", "")
		}
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

func ValidateHello(msg ClientHello) error {
	version := strings.TrimSpace(msg.ProtocolVersion)
	if version == "" {
		return badRequest("hello.protocol_version is required", "protocol_version")
	}
	if version != ProtocolVersion1 {
		return unsupported("unsupported protocol version", "protocol_version")
	}
	if msg.SampleRateHz <= 0 {
		return badRequest("hello.sample_rate_hz must be > 0", "sample_rate_hz")
	}
	return nil
}

func validFieldKey(key string) bool {
	for _, k := range form.Keys {
		if k == key {
			return true
		}
	}
	return false
}

type HelloAckLimits struct {
	MaxMessageBytes      int64 `json:"max_message_bytes"`
	MaxSessionDurationMS int64 `json:"max_session_duration_ms"`
}

type ServerHelloAck struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	SampleRateHz    int            `json:"sample_rate_hz"`
	AudioFormat     string         `json:"audio_format"`
	Language        string         `json:"language"`
	Limits          HelloAckLimits `json:"limits"`
}

type ServerState struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

type ServerTranscript struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ServerAssistantMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ServerFields struct {
	Type     string      `json:"type"`
	Fields   form.Fields `json:"fields"`
	Complete bool        `json:"complete"`
	Missing  []string    `json:"missing,omitempty"`
}

// ServerAudio carries one full reply's audio. The client must answer with
// playback_done once the audio finishes playing.
type ServerAudio struct {
	Type     string `json:"type"`
	AudioID  string `json:"audio_id"`
	Format   string `json:"format"`
	AudioB64 string `json:"audio_b64"`
}

// ServerAudioReset tells the client to stop playing and discard any audio
// it has buffered for the given ID. Sent when the server aborts playback
// (teardown, drain, session cap).
type ServerAudioReset struct {
	Type    string `json:"type"`
	AudioID string `json:"audio_id,omitempty"`
}

type ServerSessionClosed struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Close   bool   `json:"close,omitempty"`
}
