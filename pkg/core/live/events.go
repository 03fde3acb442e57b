package live

import "github.com/vozcredit/voz-gateway/pkg/core/form"

// Event is the interface implemented by all session events.
type Event interface {
	EventType() string
}

// StateChangedEvent reports a state machine transition.
type StateChangedEvent struct {
	From State
	To   State
}

// EventType returns the event type identifier.
func (e *StateChangedEvent) EventType() string { return "state_changed" }

// TranscriptEvent carries the user's transcribed utterance. It is emitted
// as soon as transcription resolves so the transcript surfaces while the
// turn is still processing; the message is committed to history only once
// interpretation succeeds.
type TranscriptEvent struct {
	Text string
}

// EventType returns the event type identifier.
func (e *TranscriptEvent) EventType() string { return "transcript" }

// AssistantMessageEvent carries the assistant's reply text. It is emitted
// together with the synthesized audio so text and speech surface at once.
type AssistantMessageEvent struct {
	Text string
}

// EventType returns the event type identifier.
func (e *AssistantMessageEvent) EventType() string { return "assistant_message" }

// FieldsUpdatedEvent carries the merged field set after a turn commit or a
// direct edit.
type FieldsUpdatedEvent struct {
	Fields   form.Fields
	Complete bool
}

// EventType returns the event type identifier.
func (e *FieldsUpdatedEvent) EventType() string { return "fields_updated" }

// TurnErrorEvent reports a turn-fatal failure. The session has already
// fallen back to listening; this event exists for diagnostics only.
type TurnErrorEvent struct {
	Stage string
	Err   error
}

// EventType returns the event type identifier.
func (e *TurnErrorEvent) EventType() string { return "turn_error" }

// SessionClosedEvent reports that the session reached its end of life,
// either because the form completed or because it was torn down.
type SessionClosedEvent struct {
	Reason string
}

// EventType returns the event type identifier.
func (e *SessionClosedEvent) EventType() string { return "session_closed" }
