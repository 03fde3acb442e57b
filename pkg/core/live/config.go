package live

import "time"

// SessionConfig tunes one voice session.
type SessionConfig struct {
	// SampleRate of inbound utterance buffers in Hz.
	SampleRate int `json:"sample_rate"`

	// Language is the ISO code passed to transcription and synthesis.
	Language string `json:"language"`

	// VocabularyPrompt biases transcription toward domain terms.
	VocabularyPrompt string `json:"vocabulary_prompt"`

	// STTModel overrides the transcription model. Empty uses the
	// provider default.
	STTModel string `json:"stt_model,omitempty"`

	// Voice and SpeechSpeed are passed to synthesis.
	Voice       string  `json:"voice"`
	SpeechSpeed float64 `json:"speech_speed"`

	// AudioFormat is the synthesis output container.
	AudioFormat string `json:"audio_format"`

	// MaxHistory bounds the conversation log sent to the dialogue service.
	MaxHistory int `json:"max_history"`

	// MinUtteranceRMS discards near-silent buffers before transcription.
	// Zero disables the check.
	MinUtteranceRMS float64 `json:"min_utterance_rms"`

	// Retry bounds the interpret retry loop.
	Retry RetryPolicy `json:"retry"`

	// TurnTimeout bounds each network call within a turn.
	TurnTimeout time.Duration `json:"turn_timeout"`

	// CompletionGrace is how long the session lingers in idle after the
	// final reply finishes playing, so the user perceives completion
	// before the interface dismisses.
	CompletionGrace time.Duration `json:"completion_grace"`

	// EventBuffer is the session event channel capacity.
	EventBuffer int `json:"event_buffer"`
}

// DefaultSessionConfig returns the production defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SampleRate:       16000,
		Language:         "es",
		VocabularyPrompt: "Solicitud de crédito, nombre, dirección, monto, ingreso, gasto, celular, cédula.",
		Voice:            "nova",
		SpeechSpeed:      1.15,
		AudioFormat:      "mp3",
		MaxHistory:       18,
		MinUtteranceRMS:  0.005,
		Retry:            DefaultRetryPolicy(),
		TurnTimeout:      30 * time.Second,
		CompletionGrace:  1500 * time.Millisecond,
		EventBuffer:      64,
	}
}

func (c *SessionConfig) applyDefaults() {
	def := DefaultSessionConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if c.Language == "" {
		c.Language = def.Language
	}
	if c.Voice == "" {
		c.Voice = def.Voice
	}
	if c.SpeechSpeed <= 0 {
		c.SpeechSpeed = def.SpeechSpeed
	}
	if c.AudioFormat == "" {
		c.AudioFormat = def.AudioFormat
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = def.MaxHistory
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = def.Retry.BaseDelay
	}
	if c.Retry.Multiplier <= 0 {
		c.Retry.Multiplier = def.Retry.Multiplier
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = def.TurnTimeout
	}
	if c.CompletionGrace <= 0 {
		c.CompletionGrace = def.CompletionGrace
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
}
