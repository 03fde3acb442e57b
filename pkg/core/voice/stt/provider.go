// Package stt provides speech-to-text functionality.
package stt

import (
	"context"
	"io"
)

// Provider is the interface for speech-to-text services.
//
// An empty transcript is a normal outcome (nothing understood), not an
// error; callers must not retry transcription.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts audio to text.
	Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error)
}

// TranscribeOptions configures transcription.
type TranscribeOptions struct {
	Model      string // Provider-specific model
	Language   string // ISO language code (default "es")
	Prompt     string // Domain vocabulary hint
	Format     string // Audio format hint (wav, mp3, webm, ...)
	SampleRate int    // Audio sample rate in Hz
}

// Transcript is the result of transcription.
type Transcript struct {
	Text     string  // Full transcribed text, may be empty
	Language string  // Detected or specified language
	Duration float64 // Audio duration in seconds, if reported
}
