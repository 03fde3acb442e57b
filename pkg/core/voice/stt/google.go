package stt

import (
	"context"
	"fmt"
	"io"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/vozcredit/voz-gateway/pkg/core"
)

// GoogleProvider implements the STT Provider interface using Google Cloud
// Speech-to-Text. Authentication relies on Application Default Credentials.
type GoogleProvider struct {
	client *speech.Client
}

// NewGoogle creates a new Google Cloud Speech provider.
func NewGoogle(ctx context.Context) (*GoogleProvider, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

// Name returns the provider identifier.
func (p *GoogleProvider) Name() string {
	return "google"
}

// Close releases the underlying gRPC connection.
func (p *GoogleProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// Transcribe runs a synchronous recognition over one utterance. The audio
// is expected to be 16-bit PCM (a WAV container is accepted; LINEAR16
// recognition reads past the header).
func (p *GoogleProvider) Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	language := opts.Language
	if language == "" {
		language = "es"
	}
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	cfg := &speechpb.RecognitionConfig{
		Encoding:        speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz: int32(sampleRate),
		LanguageCode:    language,
	}
	if opts.Prompt != "" {
		cfg.SpeechContexts = []*speechpb.SpeechContext{
			{Phrases: []string{opts.Prompt}},
		}
	}

	resp, err := p.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		return nil, core.NewProviderError("google", err)
	}

	var text string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			text += result.Alternatives[0].Transcript
		}
	}
	return &Transcript{Text: text, Language: language}, nil
}
