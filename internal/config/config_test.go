package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"NOVA_DB", "NOVA_BACKEND", "NOVA_DEVICE", "NOVA_COMPLETION_URL", "NOVA_SPEECH_URL",
		"NOVA_VOICE", "NOVA_PROXY", "OPENAI_API_KEY", "GEMINI_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Device)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "graduated", cfg.Verify.Strategy)
	assert.Equal(t, 2, cfg.Verify.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.LockoutDuration())
	assert.Equal(t, 400*time.Millisecond, cfg.RenderPause())
	assert.Equal(t, 30*time.Second, cfg.CompletionTimeout())
	assert.Equal(t, 100, cfg.Memory.Capacity)
	assert.Equal(t, DefaultVoice, cfg.Speech.Voice)
	assert.Equal(t, ":8787", cfg.Relay.Addr)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device: kitchen
verify:
  strategy: codeword
  lockout: 90s
speech:
  pause: 600ms
memory:
  capacity: 20
  triggers: [chess, piano]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "kitchen", cfg.Device)
	assert.Equal(t, "codeword", cfg.Verify.Strategy)
	assert.Equal(t, 2, cfg.Verify.MaxAttempts, "unset fields keep defaults")
	assert.Equal(t, 90*time.Second, cfg.LockoutDuration())
	assert.Equal(t, 600*time.Millisecond, cfg.RenderPause())
	assert.Equal(t, 20, cfg.Memory.Capacity)
	assert.Equal(t, []string{"chess", "piano"}, cfg.Memory.Triggers)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device: kitchen\n"), 0o644))

	t.Setenv("NOVA_DEVICE", "bedroom")
	t.Setenv("NOVA_BACKEND", "badger")
	t.Setenv("NOVA_DB", "/tmp/nova-badger")
	t.Setenv("NOVA_COMPLETION_URL", "http://relay.local/chat")
	t.Setenv("NOVA_SPEECH_URL", "ws://speech.local/bus")
	t.Setenv("NOVA_VOICE", "Ryan")
	t.Setenv("NOVA_PROXY", "127.0.0.1:1080")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bedroom", cfg.Device)
	assert.Equal(t, "badger", cfg.Store.Backend)
	assert.Equal(t, "/tmp/nova-badger", cfg.Store.Path)
	assert.Equal(t, "http://relay.local/chat", cfg.Completion.URL)
	assert.Equal(t, "ws://speech.local/bus", cfg.Speech.URL)
	assert.Equal(t, "Ryan", cfg.Speech.Voice)
	assert.Equal(t, "127.0.0.1:1080", cfg.Completion.Proxy)
	assert.Equal(t, "sk-test", cfg.Completion.OpenAIKey)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: postgres
verify:
  strategy: voiceprint
  lockout: soon
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "store.backend")
	assert.ErrorContains(t, err, "verify.strategy")
	assert.ErrorContains(t, err, "verify.lockout")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device: [unclosed\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
	assert.NoError(t, LoadEnvFile(""))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("NOVA_TEST_VOICE=Sonia\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("NOVA_TEST_VOICE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "Sonia", os.Getenv("NOVA_TEST_VOICE"))
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Device = "studio"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "studio", loaded.Device)
}
