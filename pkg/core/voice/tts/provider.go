// Package tts provides text-to-speech functionality.
package tts

import "context"

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio in a playable container.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice    string  // Voice identifier
	Speed    float64 // Speed multiplier (provider-specific range, 1.0 = normal)
	Language string  // Language code hint
	Format   string  // Output format: "mp3" or "wav"
}

// Synthesis is the result of synthesis.
type Synthesis struct {
	Audio  []byte // Audio data
	Format string // Audio format ("mp3", "wav")
}
