package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	STTOpenAI = "openai"
	STTGoogle = "google"

	DialogueOpenAI = "openai"
	DialogueGemini = "gemini"

	TTSOpenAI     = "openai"
	TTSElevenLabs = "elevenlabs"
)

type Config struct {
	Addr string

	// Provider selection per pipeline stage.
	STTProvider      string
	DialogueProvider string
	TTSProvider      string

	// Provider credentials. Google STT authenticates via Application
	// Default Credentials and needs no key here.
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GeminiAPIKey     string
	ElevenLabsAPIKey string

	// Model overrides; empty means the provider default.
	STTModel      string
	DialogueModel string
	TTSModel      string

	// Synthesis shaping.
	Voice       string
	SpeechSpeed float64
	AudioFormat string

	// Session behaviour.
	Language            string
	SampleRate          int
	MaxHistory          int
	MinUtteranceRMS     float64
	InterpretMaxRetries int
	InterpretBaseDelay  time.Duration
	TurnTimeout         time.Duration
	CompletionGrace     time.Duration

	// Live WebSocket mode (/v1/live).
	LiveMaxMessageBytes    int64
	LiveMaxSessionDuration time.Duration
	LiveWSPingInterval     time.Duration
	LiveWSWriteTimeout     time.Duration
	LiveHandshakeTimeout   time.Duration

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP client defaults
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("VOZ_ADDR", ":8080"),
		STTProvider:                   envOr("VOZ_STT_PROVIDER", STTOpenAI),
		DialogueProvider:              envOr("VOZ_DIALOGUE_PROVIDER", DialogueOpenAI),
		TTSProvider:                   envOr("VOZ_TTS_PROVIDER", TTSOpenAI),
		OpenAIAPIKey:                  envOr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:                 envOr("VOZ_OPENAI_BASE_URL", ""),
		GeminiAPIKey:                  envOr("GEMINI_API_KEY", ""),
		ElevenLabsAPIKey:              envOr("ELEVENLABS_API_KEY", ""),
		STTModel:                      envOr("VOZ_STT_MODEL", ""),
		DialogueModel:                 envOr("VOZ_DIALOGUE_MODEL", ""),
		TTSModel:                      envOr("VOZ_TTS_MODEL", ""),
		Voice:                         envOr("VOZ_TTS_VOICE", "nova"),
		SpeechSpeed:                   envFloat64Or("VOZ_TTS_SPEED", 1.15),
		AudioFormat:                   envOr("VOZ_AUDIO_FORMAT", "mp3"),
		Language:                      envOr("VOZ_LANGUAGE", "es"),
		SampleRate:                    envIntOr("VOZ_SAMPLE_RATE", 16000),
		MaxHistory:                    envIntOr("VOZ_MAX_HISTORY", 18),
		MinUtteranceRMS:               envFloat64Or("VOZ_MIN_UTTERANCE_RMS", 0.005),
		InterpretMaxRetries:           envIntOr("VOZ_INTERPRET_MAX_RETRIES", 2),
		InterpretBaseDelay:            envDurationOr("VOZ_INTERPRET_BASE_DELAY", 500*time.Millisecond),
		TurnTimeout:                   envDurationOr("VOZ_TURN_TIMEOUT", 30*time.Second),
		CompletionGrace:               envDurationOr("VOZ_COMPLETION_GRACE", 1500*time.Millisecond),
		LiveMaxMessageBytes:           envInt64Or("VOZ_LIVE_MAX_MESSAGE_BYTES", 4<<20), // 4 MiB: ~15s of base64 f32 audio
		LiveMaxSessionDuration:        envDurationOr("VOZ_LIVE_MAX_SESSION_DURATION", 30*time.Minute),
		LiveWSPingInterval:            envDurationOr("VOZ_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:            envDurationOr("VOZ_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveHandshakeTimeout:          envDurationOr("VOZ_LIVE_HANDSHAKE_TIMEOUT", 5*time.Second),
		CORSAllowedOrigins:            make(map[string]struct{}),
		ReadHeaderTimeout:             envDurationOr("VOZ_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:           envDurationOr("VOZ_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		UpstreamConnectTimeout:        envDurationOr("VOZ_CONNECT_TIMEOUT", 5*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("VOZ_RESPONSE_HEADER_TIMEOUT", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("VOZ_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	switch cfg.STTProvider {
	case STTOpenAI, STTGoogle:
	default:
		return Config{}, fmt.Errorf("VOZ_STT_PROVIDER must be one of openai|google")
	}
	switch cfg.DialogueProvider {
	case DialogueOpenAI, DialogueGemini:
	default:
		return Config{}, fmt.Errorf("VOZ_DIALOGUE_PROVIDER must be one of openai|gemini")
	}
	switch cfg.TTSProvider {
	case TTSOpenAI, TTSElevenLabs:
	default:
		return Config{}, fmt.Errorf("VOZ_TTS_PROVIDER must be one of openai|elevenlabs")
	}

	needsOpenAI := cfg.STTProvider == STTOpenAI || cfg.DialogueProvider == DialogueOpenAI || cfg.TTSProvider == TTSOpenAI
	if needsOpenAI && cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY must be set when an openai provider is selected")
	}
	if cfg.DialogueProvider == DialogueGemini && cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY must be set when VOZ_DIALOGUE_PROVIDER=gemini")
	}
	if cfg.TTSProvider == TTSElevenLabs && cfg.ElevenLabsAPIKey == "" {
		return Config{}, fmt.Errorf("ELEVENLABS_API_KEY must be set when VOZ_TTS_PROVIDER=elevenlabs")
	}

	switch cfg.AudioFormat {
	case "mp3", "wav":
	default:
		return Config{}, fmt.Errorf("VOZ_AUDIO_FORMAT must be one of mp3|wav")
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		return Config{}, fmt.Errorf("VOZ_TTS_VOICE must not be empty")
	}
	if cfg.SpeechSpeed <= 0 {
		return Config{}, fmt.Errorf("VOZ_TTS_SPEED must be > 0")
	}
	if strings.TrimSpace(cfg.Language) == "" {
		return Config{}, fmt.Errorf("VOZ_LANGUAGE must not be empty")
	}
	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("VOZ_SAMPLE_RATE must be > 0")
	}
	if cfg.MaxHistory <= 0 {
		return Config{}, fmt.Errorf("VOZ_MAX_HISTORY must be > 0")
	}
	if cfg.MinUtteranceRMS < 0 {
		return Config{}, fmt.Errorf("VOZ_MIN_UTTERANCE_RMS must be >= 0")
	}
	if cfg.InterpretMaxRetries < 0 {
		return Config{}, fmt.Errorf("VOZ_INTERPRET_MAX_RETRIES must be >= 0")
	}
	if cfg.InterpretBaseDelay <= 0 {
		return Config{}, fmt.Errorf("VOZ_INTERPRET_BASE_DELAY must be > 0")
	}
	if cfg.TurnTimeout <= 0 {
		return Config{}, fmt.Errorf("VOZ_TURN_TIMEOUT must be > 0")
	}
	if cfg.CompletionGrace <= 0 {
		return Config{}, fmt.Errorf("VOZ_COMPLETION_GRACE must be > 0")
	}
	if cfg.LiveMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("VOZ_LIVE_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveMaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("VOZ_LIVE_MAX_SESSION_DURATION must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("VOZ_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("VOZ_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveHandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("VOZ_LIVE_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VOZ_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VOZ_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.UpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("VOZ_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.UpstreamResponseHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VOZ_RESPONSE_HEADER_TIMEOUT must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
