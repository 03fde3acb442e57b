package session

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vozcredit/voz-gateway/pkg/gateway/live/protocol"
)

func TestWSPlaybackFinish(t *testing.T) {
	var sent *protocol.ServerAudio
	var resets int
	p := newWSPlayback(func(frame any) error {
		switch f := frame.(type) {
		case *protocol.ServerAudio:
			sent = f
		case *protocol.ServerAudioReset:
			resets++
		}
		return nil
	})

	result := make(chan error, 1)
	go func() {
		result <- p.Play(context.Background(), []byte{1, 2, 3}, "mp3")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sent == nil && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if sent == nil {
		t.Fatal("no audio frame sent")
	}
	if sent.Format != "mp3" {
		t.Errorf("format = %q, want mp3", sent.Format)
	}
	if got, _ := base64.StdEncoding.DecodeString(sent.AudioB64); string(got) != "\x01\x02\x03" {
		t.Errorf("audio payload = %v", got)
	}

	if p.Finish("aud_bogus") {
		t.Error("Finish accepted an unknown audio id")
	}
	if !p.Finish(sent.AudioID) {
		t.Error("Finish rejected the live audio id")
	}
	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("Play() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play() did not return after Finish")
	}

	if p.Finish(sent.AudioID) {
		t.Error("Finish accepted the same id twice")
	}

	// Teardown after natural completion has nothing left to reset.
	p.Stop()
	if resets != 0 {
		t.Errorf("audio_reset frames after Finish = %d, want 0", resets)
	}
}

func TestWSPlaybackStop(t *testing.T) {
	var mu sync.Mutex
	var frames []any
	p := newWSPlayback(func(frame any) error {
		mu.Lock()
		frames = append(frames, frame)
		mu.Unlock()
		return nil
	})

	result := make(chan error, 1)
	go func() {
		result <- p.Play(context.Background(), []byte{1}, "mp3")
	}()
	time.Sleep(10 * time.Millisecond)

	p.Stop()
	select {
	case err := <-result:
		if !errors.Is(err, errPlaybackStopped) {
			t.Fatalf("Play() error = %v, want errPlaybackStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play() did not return after Stop")
	}

	// Stop must tell the client to discard the audio it already buffered.
	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 2 {
		t.Fatalf("frames sent = %d, want audio then audio_reset", len(frames))
	}
	audio, ok := frames[0].(*protocol.ServerAudio)
	if !ok {
		t.Fatalf("first frame = %T, want *protocol.ServerAudio", frames[0])
	}
	reset, ok := frames[1].(*protocol.ServerAudioReset)
	if !ok {
		t.Fatalf("second frame = %T, want *protocol.ServerAudioReset", frames[1])
	}
	if reset.Type != "audio_reset" {
		t.Errorf("reset type = %q, want audio_reset", reset.Type)
	}
	if reset.AudioID != audio.AudioID {
		t.Errorf("reset audio_id = %q, want %q", reset.AudioID, audio.AudioID)
	}
}

func TestWSPlaybackStopIdle(t *testing.T) {
	var sends int
	p := newWSPlayback(func(frame any) error {
		sends++
		return nil
	})

	// No active playback: nothing to abort, nothing to reset.
	p.Stop()
	if sends != 0 {
		t.Errorf("frames sent = %d, want 0", sends)
	}
}

func TestWSPlaybackContextCancel(t *testing.T) {
	p := newWSPlayback(func(frame any) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	go func() {
		result <- p.Play(ctx, []byte{1}, "mp3")
	}()
	time.Sleep(10 * time.Millisecond)

	cancel()
	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Play() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play() did not return after cancel")
	}
}

func TestWSPlaybackSendFailure(t *testing.T) {
	sendErr := errors.New("socket gone")
	p := newWSPlayback(func(frame any) error { return sendErr })

	if err := p.Play(context.Background(), []byte{1}, "mp3"); !errors.Is(err, sendErr) {
		t.Fatalf("Play() error = %v, want send failure", err)
	}
}
