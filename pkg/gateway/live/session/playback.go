package session

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/vozcredit/voz-gateway/pkg/gateway/live/protocol"
)

var errPlaybackStopped = errors.New("playback stopped")

// wsPlayback bridges reply audio to the client. The whole reply is sent as
// one audio frame tagged with an ID; the client answers with playback_done
// carrying the same ID when the audio finishes playing. That round trip is
// what makes Play block until natural completion.
type wsPlayback struct {
	send func(frame any) error

	mu      sync.Mutex
	current string
	done    chan struct{}
	aborted chan struct{}
}

func newWSPlayback(send func(frame any) error) *wsPlayback {
	return &wsPlayback{send: send}
}

func (p *wsPlayback) Play(ctx context.Context, audio []byte, format string) error {
	id := "aud_" + uuid.NewString()
	done := make(chan struct{})
	aborted := make(chan struct{})

	p.mu.Lock()
	p.current = id
	p.done = done
	p.aborted = aborted
	p.mu.Unlock()

	frame := &protocol.ServerAudio{
		Type:     "audio",
		AudioID:  id,
		Format:   format,
		AudioB64: base64.StdEncoding.EncodeToString(audio),
	}
	if err := p.send(frame); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-aborted:
		return errPlaybackStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish resolves the wait for audioID. Stale or unknown IDs are ignored.
func (p *wsPlayback) Finish(audioID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != audioID || p.done == nil {
		return false
	}
	close(p.done)
	p.done = nil
	// Finished audio needs no reset on a later teardown.
	p.aborted = nil
	return true
}

// Stop aborts the active playback wait, if any, and tells the client to
// discard the audio it already buffered for it.
func (p *wsPlayback) Stop() {
	p.mu.Lock()
	aborted := p.aborted
	id := p.current
	p.aborted = nil
	p.mu.Unlock()

	if aborted == nil {
		return
	}
	close(aborted)
	_ = p.send(&protocol.ServerAudioReset{Type: "audio_reset", AudioID: id})
}
