// Package config loads nova settings from a YAML file, an optional .env
// file and environment variables, in increasing order of precedence.
// Command-line flags are applied on top by the cli package.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full nova configuration.
type Config struct {
	Device     string           `yaml:"device"`
	Store      StoreConfig      `yaml:"store"`
	Persona    PersonaConfig    `yaml:"persona"`
	Completion CompletionConfig `yaml:"completion"`
	Speech     SpeechConfig     `yaml:"speech"`
	Verify     VerifyConfig     `yaml:"verify"`
	Memory     MemoryConfig     `yaml:"memory"`
	Relay      RelayConfig      `yaml:"relay"`
	Log        LogConfig        `yaml:"log"`
}

// StoreConfig selects the device store.
type StoreConfig struct {
	// Backend is sqlite, badger or memory.
	Backend string `yaml:"backend"`
	// Path is the SQLite file or the Badger directory.
	Path string `yaml:"path"`
}

// PersonaConfig describes the companion and the user fields sent with each request.
type PersonaConfig struct {
	Character string `yaml:"character"`
	Gender    string `yaml:"gender"`
	Tone      string `yaml:"tone"`
	Language  string `yaml:"language,omitempty"`
}

// CompletionConfig selects how replies are generated.
type CompletionConfig struct {
	// Backend is http (a relay or compatible backend), openai or gemini.
	Backend   string `yaml:"backend"`
	URL       string `yaml:"url"`
	Model     string `yaml:"model,omitempty"`
	Timeout   string `yaml:"timeout"`
	Proxy     string `yaml:"proxy,omitempty"`
	OpenAIKey string `yaml:"openai_api_key,omitempty"`
	GeminiKey string `yaml:"gemini_api_key,omitempty"`
	// MemoryBudget caps the characters of memory sent per request. Zero sends all.
	MemoryBudget int `yaml:"memory_budget"`
}

// SpeechConfig configures the speech bus.
type SpeechConfig struct {
	// URL of the speech service WebSocket. Empty means typed input only.
	URL             string `yaml:"url,omitempty"`
	Voice           string `yaml:"voice"`
	Pause           string `yaml:"pause"`
	MaxSegmentRunes int    `yaml:"max_segment_runes"`
}

// VerifyConfig configures returning-user verification.
type VerifyConfig struct {
	Strategy       string   `yaml:"strategy"`
	MaxAttempts    int      `yaml:"max_attempts"`
	Lockout        string   `yaml:"lockout"`
	ChallengeWords []string `yaml:"challenge_words,omitempty"`
}

// MemoryConfig configures the fact accumulator.
type MemoryConfig struct {
	Capacity  int      `yaml:"capacity"`
	SpanWords int      `yaml:"span_words"`
	Triggers  []string `yaml:"triggers,omitempty"`
	Essential []string `yaml:"essential,omitempty"`
}

// RelayConfig configures `nova relay`.
type RelayConfig struct {
	Addr string `yaml:"addr"`
	// Provider is openai or gemini.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultVoice is the preferred render voice.
const DefaultVoice = "Microsoft Libby Online (Natural)"

// Dir returns the nova home directory (~/.nova).
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nova")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Device: "default",
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    filepath.Join(Dir(), "nova.db"),
		},
		Persona: PersonaConfig{
			Character: "nova",
			Gender:    "unspecified",
			Tone:      "gentle",
		},
		Completion: CompletionConfig{
			Backend: "http",
			URL:     "http://localhost:8787/chat",
			Timeout: "30s",
		},
		Speech: SpeechConfig{
			Voice: DefaultVoice,
			Pause: "400ms",
		},
		Verify: VerifyConfig{
			Strategy:    "graduated",
			MaxAttempts: 2,
			Lockout:     "5m",
		},
		Memory: MemoryConfig{
			Capacity:  100,
			SpanWords: 6,
		},
		Relay: RelayConfig{
			Addr:     ":8787",
			Provider: "openai",
			Model:    "gpt-3.5-turbo",
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadEnvFile loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyEnvOverrides() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Store.Path, "NOVA_DB")
	set(&c.Store.Backend, "NOVA_BACKEND")
	set(&c.Device, "NOVA_DEVICE")
	set(&c.Completion.URL, "NOVA_COMPLETION_URL")
	set(&c.Speech.URL, "NOVA_SPEECH_URL")
	set(&c.Speech.Voice, "NOVA_VOICE")
	set(&c.Completion.Proxy, "NOVA_PROXY")
	set(&c.Completion.OpenAIKey, "OPENAI_API_KEY")
	set(&c.Completion.GeminiKey, "GEMINI_API_KEY")
}

// Validate checks enumerations and durations.
func (c *Config) Validate() error {
	var errs []error
	if !oneOf(c.Store.Backend, "sqlite", "badger", "memory") {
		errs = append(errs, fmt.Errorf("store.backend %q: want sqlite, badger or memory", c.Store.Backend))
	}
	if !oneOf(c.Completion.Backend, "http", "openai", "gemini") {
		errs = append(errs, fmt.Errorf("completion.backend %q: want http, openai or gemini", c.Completion.Backend))
	}
	if !oneOf(c.Relay.Provider, "openai", "gemini") {
		errs = append(errs, fmt.Errorf("relay.provider %q: want openai or gemini", c.Relay.Provider))
	}
	if !oneOf(c.Verify.Strategy, "graduated", "codeword", "challenge") {
		errs = append(errs, fmt.Errorf("verify.strategy %q: want graduated, codeword or challenge", c.Verify.Strategy))
	}
	for name, v := range map[string]string{
		"completion.timeout": c.Completion.Timeout,
		"speech.pause":       c.Speech.Pause,
		"verify.lockout":     c.Verify.Lockout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// CompletionTimeout returns the completion timeout as a duration.
func (c *Config) CompletionTimeout() time.Duration {
	return parseDuration(c.Completion.Timeout, 30*time.Second)
}

// RenderPause returns the inter-segment render pause.
func (c *Config) RenderPause() time.Duration {
	return parseDuration(c.Speech.Pause, 400*time.Millisecond)
}

// LockoutDuration returns the verification lockout cooldown.
func (c *Config) LockoutDuration() time.Duration {
	return parseDuration(c.Verify.Lockout, 5*time.Minute)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func oneOf(v string, options ...string) bool {
	v = strings.ToLower(v)
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
