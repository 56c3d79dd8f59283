package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath,
		[]byte("IDRAC_HOST=10.0.0.5\nIDRAC_PASSWORD=first\n"), 0o600))

	t.Setenv("IDRAC_HOST", "10.0.0.5")
	t.Setenv("IDRAC_PASSWORD", "first")

	var mu sync.Mutex
	var reloaded *Config
	watcher, err := NewWatcher(envPath, func(cfg *Config) {
		mu.Lock()
		reloaded = cfg
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	// Ensure the modtime visibly advances on coarse-grained filesystems.
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, os.WriteFile(envPath,
		[]byte("IDRAC_HOST=10.0.0.5\nIDRAC_PASSWORD=second\nSERVER_NAME=renamed\n"), 0o600))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloaded != nil
	}, 5*time.Second, 50*time.Millisecond, "reload callback never fired")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "second", reloaded.IDRACPassword)
	assert.Equal(t, "renamed", reloaded.ServerName)
}

func TestWatcherIgnoresInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath,
		[]byte("IDRAC_HOST=10.0.0.5\nIDRAC_PASSWORD=ok\n"), 0o600))

	t.Setenv("IDRAC_HOST", "10.0.0.5")
	t.Setenv("IDRAC_PASSWORD", "ok")

	fired := make(chan struct{}, 1)
	watcher, err := NewWatcher(envPath, func(cfg *Config) {
		fired <- struct{}{}
	})
	require.NoError(t, err)
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	// A file emptying the required host must not reach the callback. The
	// variables stay in the process environment though, so clear them to
	// simulate a fresh evaluation.
	os.Unsetenv("IDRAC_HOST")
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, os.WriteFile(envPath, []byte("IDRAC_PASSWORD=ok\n"), 0o600))

	select {
	case <-fired:
		t.Fatal("callback fired for invalid config")
	case <-time.After(2 * time.Second):
	}
}

func TestWatcherStopTwice(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("A=b\n"), 0o600))

	watcher, err := NewWatcher(envPath, nil)
	require.NoError(t, err)
	require.NoError(t, watcher.Start())

	watcher.Stop()
	watcher.Stop()
}
