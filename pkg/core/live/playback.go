package live

import "context"

// Playback is the audio sink port. It is exclusively owned by the turn
// pipeline for the duration of one playback; there is no ambient shared
// audio state.
type Playback interface {
	// Play delivers one reply's audio and blocks until playback finishes
	// naturally or ctx is cancelled.
	Play(ctx context.Context, audio []byte, format string) error

	// Stop aborts active playback and discards any queued audio.
	Stop()
}
