package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Watcher monitors the .env file for changes and applies updated values to
// the running config. Credential and interval changes take effect on the
// next refresh cycle.
type Watcher struct {
	envPath     string
	watcher     *fsnotify.Watcher
	stopChan    chan struct{}
	lastModTime time.Time
	mu          sync.Mutex
	onReload    func(*Config)
}

// NewWatcher creates a watcher for the given .env file.
func NewWatcher(envPath string, onReload func(*Config)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		envPath:  envPath,
		watcher:  watcher,
		stopChan: make(chan struct{}),
		onReload: onReload,
	}

	if stat, err := os.Stat(envPath); err == nil {
		w.lastModTime = stat.ModTime()
	}

	return w, nil
}

// Start begins watching the env file's directory. Editors replace files
// rather than writing in place, so the directory is watched and events are
// filtered by name.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.envPath)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	go w.watchForChanges()
	log.Info().Str("env_path", w.envPath).Msg("Started watching config file for changes")
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	select {
	case <-w.stopChan:
		return
	default:
		close(w.stopChan)
	}
	w.watcher.Close()
}

func (w *Watcher) watchForChanges() {
	// Debounce rapid successive writes from editors and provisioning tools.
	var debounce *time.Timer

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.envPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	stat, err := os.Stat(w.envPath)
	if err != nil {
		log.Warn().Err(err).Str("path", w.envPath).Msg("Config file disappeared; keeping current config")
		return
	}
	if !stat.ModTime().After(w.lastModTime) {
		return
	}
	w.lastModTime = stat.ModTime()

	envMap, err := godotenv.Read(w.envPath)
	if err != nil {
		log.Warn().Err(err).Str("path", w.envPath).Msg("Failed to re-read env file")
		return
	}
	for key, value := range envMap {
		os.Setenv(key, value)
	}

	cfg, err := Load(w.envPath)
	if err != nil {
		log.Warn().Err(err).Msg("Reloaded config failed validation; keeping current config")
		return
	}

	log.Info().Str("path", w.envPath).Msg("Config file changed, applying new values")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
