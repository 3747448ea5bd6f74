// Package config holds the runtime settings shared across go-companion
// components.
//
// Settings are owned by whatever settings UI or operator tooling sits outside
// the core; the orchestrator and dispatcher consult them through Snapshot on
// every call rather than caching values across turns, so a change made between
// turns takes effect on the next dispatch.
package config

import (
	"os"
	"sync"
)

// Provider names understood by the backend dispatcher.
const (
	ProviderCloud = "cloud"
	ProviderLocal = "local"
)

// Defaults applied by FromEnv when the corresponding variable is unset.
const (
	DefaultChatAddress   = "http://127.0.0.1:8000/api/chat"
	DefaultSpeechAddress = "http://127.0.0.1:9880"
	DefaultModel         = "qwen-lora"
)

// Settings is the mutable process-wide configuration.
// All accessors are safe for concurrent use.
type Settings struct {
	mu sync.RWMutex

	provider      string
	serverAddress string
	speechAddress string
	apiKey        string
	model         string
	speechEnabled bool
}

// Snapshot is an immutable copy of the settings at one point in time.
// Callers take a snapshot per dispatch so a mid-turn settings change cannot
// tear a single request.
type Snapshot struct {
	Provider      string
	ServerAddress string
	SpeechAddress string
	APIKey        string
	Model         string
	SpeechEnabled bool
}

// New returns Settings seeded with the built-in defaults.
func New() *Settings {
	return &Settings{
		provider:      ProviderCloud,
		serverAddress: DefaultChatAddress,
		speechAddress: DefaultSpeechAddress,
		model:         DefaultModel,
		speechEnabled: true,
	}
}

// FromEnv returns Settings populated from COMPANION_* environment variables,
// falling back to defaults for anything unset.
func FromEnv() *Settings {
	s := New()
	s.provider = envOr("COMPANION_PROVIDER", s.provider)
	s.serverAddress = envOr("COMPANION_SERVER_ADDR", s.serverAddress)
	s.speechAddress = envOr("COMPANION_SPEECH_ADDR", s.speechAddress)
	s.apiKey = os.Getenv("COMPANION_API_KEY")
	s.model = envOr("COMPANION_MODEL", s.model)
	if v := os.Getenv("COMPANION_SPEECH"); v == "0" || v == "false" || v == "off" {
		s.speechEnabled = false
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Snapshot returns a consistent copy of the current settings.
func (s *Settings) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Provider:      s.provider,
		ServerAddress: s.serverAddress,
		SpeechAddress: s.speechAddress,
		APIKey:        s.apiKey,
		Model:         s.model,
		SpeechEnabled: s.speechEnabled,
	}
}

// SetProvider selects the backend provider ("cloud" or "local").
func (s *Settings) SetProvider(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = p
}

// SetServerAddress sets the local chat endpoint.
func (s *Settings) SetServerAddress(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverAddress = addr
}

// SetSpeechAddress sets the speech synthesis endpoint.
func (s *Settings) SetSpeechAddress(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speechAddress = addr
}

// SetAPIKey sets the cloud provider API key.
func (s *Settings) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
}

// SetModel sets the chat model identifier.
func (s *Settings) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// SetSpeechEnabled toggles speech synthesis for assistant replies.
func (s *Settings) SetSpeechEnabled(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speechEnabled = on
}
