// Package live implements the voice-turn orchestrator: the session state
// machine, the transcribe/interpret/synthesize pipeline, and the
// cancellation discipline that keeps turns from overlapping or corrupting
// shared conversation state.
package live

// State is the session state.
type State int

const (
	// StateIdle means the session is closed or finished with the form
	// complete.
	StateIdle State = iota

	// StateListening means the session is waiting for an utterance.
	StateListening

	// StateProcessing means transcription or interpretation is in flight.
	StateProcessing

	// StateSpeaking means reply audio is playing.
	StateSpeaking
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}
