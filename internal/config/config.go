package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/satriahrh/suara/domain/repositories"
)

// Provider names for the speech capabilities
const (
	ProviderNone       = "none"
	ProviderMock       = "mock"
	ProviderGoogle     = "google"
	ProviderElevenLabs = "elevenlabs"
)

type Config struct {
	Port string

	// STTProvider is one of none, mock or google.
	STTProvider string
	// TTSProvider is one of none, mock or elevenlabs.
	TTSProvider string

	// Audio holds the recognition defaults used when a client leaves them out.
	Audio repositories.AudioConfig

	VoiceRefreshInterval time.Duration
	// MockVoiceLoadDelay makes the mock voice catalog arrive late, like a
	// platform that loads its voices asynchronously.
	MockVoiceLoadDelay time.Duration

	AuthSecret   string
	AuthRequired bool
	TokenTTL     time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Load reads an optional .env file, then builds the config from the environment
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the config from the environment only
func FromEnv() (*Config, error) {
	sampleRate, err := getIntEnv("SPEECH_SAMPLE_RATE", 16000)
	if err != nil {
		return nil, err
	}
	refresh, err := getDurationEnv("VOICE_REFRESH_INTERVAL", 0)
	if err != nil {
		return nil, err
	}
	voiceDelay, err := getDurationEnv("MOCK_VOICE_LOAD_DELAY", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	tokenTTL, err := getDurationEnv("AUTH_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		STTProvider: strings.ToLower(getEnv("STT_PROVIDER", ProviderMock)),
		TTSProvider: strings.ToLower(getEnv("TTS_PROVIDER", ProviderMock)),

		Audio: repositories.AudioConfig{
			SampleRate: sampleRate,
			Encoding:   getEnv("SPEECH_ENCODING", "LINEAR16"),
			Language:   getEnv("SPEECH_LANGUAGE", "en-US"),
		},

		VoiceRefreshInterval: refresh,
		MockVoiceLoadDelay:   voiceDelay,

		AuthSecret:   os.Getenv("AUTH_SECRET"),
		AuthRequired: getBoolEnv("AUTH_REQUIRED", false),
		TokenTTL:     tokenTTL,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks provider names and the auth settings
func (c *Config) Validate() error {
	switch c.STTProvider {
	case ProviderNone, ProviderMock, ProviderGoogle:
	default:
		return fmt.Errorf("unknown STT_PROVIDER %q", c.STTProvider)
	}
	switch c.TTSProvider {
	case ProviderNone, ProviderMock, ProviderElevenLabs:
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider)
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 48000 {
		return fmt.Errorf("SPEECH_SAMPLE_RATE must be between 8000 and 48000")
	}
	if c.VoiceRefreshInterval < 0 {
		return fmt.Errorf("VOICE_REFRESH_INTERVAL must not be negative")
	}
	if c.AuthRequired && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_REQUIRED needs AUTH_SECRET to be set")
	}
	return nil
}
