package voice

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-g1/pkg/audioio"
	"github.com/teslashibe/go-g1/pkg/transcribe"
)

// Provider identifies the speech-to-text provider.
type Provider string

const (
	// ProviderAssemblyAI uses AssemblyAI realtime transcription.
	ProviderAssemblyAI Provider = "assemblyai"
)

// Config holds voice session parameters.
type Config struct {
	Provider Provider

	// AssemblyAIKey authenticates the realtime session.
	AssemblyAIKey string

	// RealtimeURL overrides the provider endpoint (default: provider URL).
	RealtimeURL string

	// SampleRate is the rate audio is captured and streamed at.
	SampleRate int

	// Audio configures microphone capture.
	Audio audioio.Config

	// Debug enables per-transcript debug logging.
	Debug bool
}

// DefaultConfig returns a Config for AssemblyAI at 16kHz.
func DefaultConfig() Config {
	audio := audioio.DefaultConfig()
	audio.SampleRate = transcribe.DefaultSampleRate
	return Config{
		Provider:   ProviderAssemblyAI,
		SampleRate: transcribe.DefaultSampleRate,
		Audio:      audio,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderAssemblyAI:
		if c.AssemblyAIKey == "" {
			return ErrMissingAPIKey
		}
	default:
		return errors.New("voice: unknown provider: " + string(c.Provider))
	}

	if c.SampleRate <= 0 {
		return fmt.Errorf("voice: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Audio.SampleRate != c.SampleRate {
		return fmt.Errorf("voice: audio captures at %d Hz but session expects %d Hz", c.Audio.SampleRate, c.SampleRate)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("voice: audio: %w", err)
	}
	return nil
}

// WithAPIKey returns a copy with the provider API key set.
func (c Config) WithAPIKey(key string) Config {
	c.AssemblyAIKey = key
	return c
}

// WithSampleRate returns a copy with capture and session rates set.
func (c Config) WithSampleRate(rate int) Config {
	c.SampleRate = rate
	c.Audio.SampleRate = rate
	return c
}

// WithAudioBackend returns a copy using the given capture backend.
func (c Config) WithAudioBackend(b audioio.Backend) Config {
	c.Audio.Backend = b
	return c
}

// WithURL returns a copy with the realtime endpoint overridden.
func (c Config) WithURL(url string) Config {
	c.RealtimeURL = url
	return c
}

// WithDebug returns a copy with debug enabled.
func (c Config) WithDebug(debug bool) Config {
	c.Debug = debug
	return c
}
