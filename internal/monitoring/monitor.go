package monitoring

import (
	"context"
	stderrors "errors"
	"sync"
	"syscall"
	"time"

	"github.com/raidwatch/raidwatch/internal/alerts"
	"github.com/raidwatch/raidwatch/internal/config"
	internalerrors "github.com/raidwatch/raidwatch/internal/errors"
	"github.com/raidwatch/raidwatch/internal/models"
	"github.com/raidwatch/raidwatch/internal/redfish"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const defaultPollInterval = 5 * time.Minute

// Fetcher is the upstream contract the scheduler drives. Satisfied by
// *redfish.Client; tests substitute their own.
type Fetcher interface {
	FetchInventory(ctx context.Context) (*redfish.RawInventory, error)
}

// Monitor drives refresh cycles against the management controller and owns
// the snapshot cache. The periodic timer and on-demand refresh requests both
// funnel through one singleflight gate, so at most one upstream fetch
// sequence is in flight regardless of caller count.
type Monitor struct {
	mu         sync.Mutex
	client     Fetcher
	serverName string
	address    string
	interval   time.Duration

	cache        *SnapshotCache
	alertManager *alerts.Manager
	group        singleflight.Group
	onPublish    func(*models.Snapshot)

	runCtx  context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New builds a monitor around the given upstream client and alert manager.
func New(cfg *config.Config, client Fetcher, alertManager *alerts.Manager) *Monitor {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	stopped := make(chan struct{})
	close(stopped)

	return &Monitor{
		client:       client,
		serverName:   cfg.ServerName,
		address:      cfg.IDRACHost,
		interval:     interval,
		cache:        NewSnapshotCache(cfg.ServerName, cfg.IDRACHost),
		alertManager: alertManager,
		stopped:      stopped,
	}
}

// SetPublishCallback registers a hook invoked after every publish (success
// or failure), outside the scheduler's locks. Used for live streaming.
func (m *Monitor) SetPublishCallback(cb func(*models.Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPublish = cb
}

// Start begins periodic polling: one immediate cycle, then a ticker.
func (m *Monitor) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.cancel = cancel
	m.stopped = make(chan struct{})
	stopped := m.stopped
	interval := m.interval
	m.mu.Unlock()

	go func() {
		defer close(stopped)
		defer func() {
			m.mu.Lock()
			if m.stopped == stopped {
				m.cancel = nil
			}
			m.mu.Unlock()
		}()

		if _, err := m.RequestRefresh(runCtx); err != nil {
			log.Warn().Err(err).Msg("Initial refresh failed; serving placeholder until next cycle")
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if _, err := m.RequestRefresh(runCtx); err != nil {
					log.Warn().Err(err).Msg("Scheduled refresh failed")
				}
				if next := m.currentInterval(); next != interval {
					interval = next
					ticker.Reset(interval)
					log.Info().Dur("interval", interval).Msg("Poll interval updated")
				}
			}
		}
	}()
}

// Stop requests shutdown and waits up to five seconds for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	stopped := m.stopped
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stopped == nil {
		return
	}

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Monitor stop timed out waiting for shutdown")
	}
}

// GetSnapshot returns the current cached snapshot immediately. It never
// errors: before the first successful poll it returns the disconnected
// placeholder.
func (m *Monitor) GetSnapshot() *models.Snapshot {
	return m.cache.Get()
}

// RequestRefresh triggers a refresh cycle, or attaches to the one already in
// flight, and returns that cycle's snapshot. An abandoned caller context
// does not cancel the shared fetch: other waiters may still be attached, so
// the cycle runs to completion and publishes regardless.
func (m *Monitor) RequestRefresh(ctx context.Context) (*models.Snapshot, error) {
	result := m.group.DoChan("refresh", func() (any, error) {
		return m.runCycle()
	})

	select {
	case res := <-result:
		snapshot, _ := res.Val.(*models.Snapshot)
		return snapshot, res.Err
	case <-ctx.Done():
		return m.cache.Get(), ctx.Err()
	}
}

// UpdateConfig applies a hot-reloaded configuration. A new client takes
// effect on the next cycle; an interval change takes effect after the next
// tick.
func (m *Monitor) UpdateConfig(cfg *config.Config, client Fetcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if client != nil {
		m.client = client
	}
	if cfg.PollInterval > 0 {
		m.interval = cfg.PollInterval
	}
	m.serverName = cfg.ServerName
	m.address = cfg.IDRACHost
}

func (m *Monitor) currentInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// runCycle executes one complete refresh: fetch, normalize, derive alerts,
// publish. Failures keep the previous inventory visible with the connection
// status updated; no failure is fatal to the process.
func (m *Monitor) runCycle() (*models.Snapshot, error) {
	m.mu.Lock()
	client := m.client
	serverName := m.serverName
	address := m.address
	interval := m.interval
	cycleParent := m.runCtx
	m.mu.Unlock()

	if cycleParent == nil {
		cycleParent = context.Background()
	}
	cycleCtx, cancelCycle := context.WithTimeout(cycleParent, interval)
	defer cancelCycle()

	start := time.Now()
	raw, err := client.FetchInventory(cycleCtx)
	end := time.Now()

	pm := getPollMetrics()

	if err != nil {
		pm.RecordResult(PollResult{Success: false, Error: err, StartTime: start, EndTime: end})
		snapshot := m.publishFailure(serverName, address, err)
		return snapshot, err
	}

	pm.RecordResult(PollResult{Success: true, StartTime: start, EndTime: end})

	inventory := redfish.Normalize(raw, end)
	if inventory.ServerName != "" {
		serverName = inventory.ServerName
	}

	snapshot := &models.Snapshot{
		ServerName:       serverName,
		Address:          address,
		ConnectionStatus: models.StatusConnected,
		PhysicalDisks:    inventory.PhysicalDisks,
		VirtualDisks:     inventory.VirtualDisks,
		RaidControllers:  inventory.RaidControllers,
		LastUpdate:       end,
	}

	degraded := alerts.Degradation{
		PhysicalDisks:   raw.DrivesErr != nil,
		VirtualDisks:    raw.VolumesErr != nil,
		RaidControllers: raw.ControllersErr != nil,
	}

	previous := m.cache.Current()
	m.alertManager.HandleConnectivityRestored()
	raised := m.alertManager.Evaluate(previous, snapshot, degraded)
	snapshot.Alerts = m.alertManager.Active()

	m.cache.Publish(snapshot)
	m.notifyPublish(snapshot)

	log.Debug().
		Int("physicalDisks", len(snapshot.PhysicalDisks)).
		Int("virtualDisks", len(snapshot.VirtualDisks)).
		Int("controllers", len(snapshot.RaidControllers)).
		Int("newAlerts", len(raised)).
		Dur("duration", end.Sub(start)).
		Msg("Refresh cycle completed")

	return snapshot.Clone(), nil
}

// publishFailure keeps the last good inventory visible while surfacing the
// failure through the connection status and a single connectivity alert.
func (m *Monitor) publishFailure(serverName, address string, cause error) *models.Snapshot {
	status := models.StatusError
	if isCleanRefusal(cause) {
		status = models.StatusDisconnected
	}

	m.alertManager.HandleConnectivityLoss(address, cause)

	var snapshot *models.Snapshot
	if previous := m.cache.Current(); previous != nil {
		snapshot = previous.Clone()
	} else {
		snapshot = models.EmptySnapshot(serverName, address)
	}
	snapshot.ConnectionStatus = status
	snapshot.LastError = cause.Error()
	snapshot.Alerts = m.alertManager.Active()

	m.cache.Publish(snapshot)
	m.notifyPublish(snapshot)

	log.Warn().
		Err(cause).
		Str("status", string(status)).
		Bool("retryable", internalerrors.IsRetryableError(cause)).
		Msg("Refresh cycle failed; previous inventory retained")

	return snapshot.Clone()
}

func (m *Monitor) notifyPublish(snapshot *models.Snapshot) {
	m.mu.Lock()
	cb := m.onPublish
	m.mu.Unlock()
	if cb != nil {
		cb(snapshot.Clone())
	}
}

// isCleanRefusal distinguishes a refused connection (controller down or
// port closed) from unexpected faults.
func isCleanRefusal(err error) bool {
	if stderrors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var pollErr *internalerrors.PollError
	if stderrors.As(err, &pollErr) {
		return pollErr.Type == internalerrors.ErrorTypeConnection &&
			stderrors.Is(pollErr.Err, syscall.ECONNREFUSED)
	}
	return false
}
