package rescuepost

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rescuepost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
name: "Shelter Posts"
url: "https://posts.example/"
admin_password: "hunter2"
session_secret: "s3cret"
organizations:
  - id: happy-paws
    name: Happy Paws
publishing:
  max_retries: 5
  retry_delay: 30s
  poll_interval: -1s
ai:
  provider: gemini
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.AnalyticsEnabled)
	assert.Equal(t, "Shelter Posts", cfg.Name)
	assert.Equal(t, 5, cfg.Publishing.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Publishing.RetryDelay)
	require.Len(t, cfg.Organizations, 1)
	assert.Equal(t, "Happy Paws", cfg.Organizations[0].Name)

	cfg.setDefaults()
	assert.Equal(t, "https://posts.example", cfg.URL)
	assert.Equal(t, -time.Second, cfg.Publishing.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Publishing.Timeout)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "nmae: typo\n")
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.True(t, cfg.AnalyticsEnabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("RESCUEPOST_ADMIN_PASSWORD", "from-env")
	t.Setenv("RESCUEPOST_ANALYTICS", "false")
	t.Setenv("RESCUEPOST_FAILURE_RATE", "0.5")
	t.Setenv("RESCUEPOST_AI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig(writeConfig(t, `admin_password: "from-file"`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AdminPassword)
	assert.False(t, cfg.AnalyticsEnabled)
	assert.Equal(t, 0.5, cfg.Publishing.FailureRate)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.True(t, cfg.AI.Enabled())
}

func TestLoadConfigBadEnv(t *testing.T) {
	t.Setenv("RESCUEPOST_COOKIE_SECURE", "sometimes")
	_, err := LoadConfig("")
	assert.ErrorContains(t, err, "RESCUEPOST_COOKIE_SECURE")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	cfg := Config{
		AI:            AIConfig{Provider: "llama"},
		Publishing:    PublishingConfig{FailureRate: 2, MaxRetries: 64},
		Organizations: []Organization{{ID: "Happy Paws"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"admin_password", "session_secret", "llama", "failure_rate", "max_retries", "Happy Paws"} {
		assert.ErrorContains(t, err, want)
	}
}
