package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("IDRAC_HOST", "192.168.1.100")
	t.Setenv("IDRAC_PASSWORD", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.100", cfg.IDRACHost)
	assert.Equal(t, "root", cfg.IDRACUsername)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 100, cfg.AlertRetention)
	assert.Equal(t, 10, cfg.PredictiveLifeThreshold)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("IDRAC_HOST", "")
	t.Setenv("IDRAC_PASSWORD", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDRAC_HOST")

	t.Setenv("IDRAC_HOST", "192.168.1.100")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDRAC_PASSWORD")
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("IDRAC_USERNAME", "monitor")
	t.Setenv("IDRAC_INSECURE_SKIP_VERIFY", "false")
	t.Setenv("POLL_INTERVAL", "2m")
	t.Setenv("ALERT_RETENTION", "50")
	t.Setenv("LISTEN_ADDR", ":9000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.IDRACUsername)
	assert.False(t, cfg.InsecureSkipVerify)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval)
	assert.Equal(t, 50, cfg.AlertRetention)
	assert.Equal(t, ":9000", cfg.ListenAddr)
}

func TestDurationBareSeconds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLL_INTERVAL", "300")
	t.Setenv("REQUEST_TIMEOUT", "45")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
}

func TestUnparseableValuesFallBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLL_INTERVAL", "whenever")
	t.Setenv("ALERT_RETENTION", "many")
	t.Setenv("IDRAC_INSECURE_SKIP_VERIFY", "maybe")
	t.Setenv("PREDICTIVE_LIFE_THRESHOLD", "250")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 100, cfg.AlertRetention)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, 10, cfg.PredictiveLifeThreshold, "out-of-range threshold clamps to default")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "IDRAC_HOST=10.0.0.5\nIDRAC_PASSWORD=fromfile\nSERVER_NAME=rack-42\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	// godotenv does not override variables already in the environment, so
	// clear them for this test.
	t.Setenv("IDRAC_HOST", "")
	t.Setenv("IDRAC_PASSWORD", "")
	t.Setenv("SERVER_NAME", "")
	os.Unsetenv("IDRAC_HOST")
	os.Unsetenv("IDRAC_PASSWORD")
	os.Unsetenv("SERVER_NAME")

	cfg, err := Load(envPath)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.IDRACHost)
	assert.Equal(t, "fromfile", cfg.IDRACPassword)
	assert.Equal(t, "rack-42", cfg.ServerName)
	assert.Equal(t, envPath, cfg.EnvFile)
}

func TestValidateClamps(t *testing.T) {
	cfg := &Config{
		IDRACHost:               "h",
		IDRACPassword:           "p",
		PollInterval:            -1,
		RequestTimeout:          0,
		AlertRetention:          -5,
		PredictiveLifeThreshold: -1,
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 100, cfg.AlertRetention)
	assert.Equal(t, 10, cfg.PredictiveLifeThreshold)
}
