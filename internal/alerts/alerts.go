package alerts

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raidwatch/raidwatch/internal/models"
	"github.com/rs/zerolog/log"
)

// Condition names used in dedupe keys. An alert is identified by
// kind/componentID/condition: a persisting condition is raised once and
// stays open, never re-raised every cycle.
const (
	conditionHealth            = "health"
	conditionPredictiveFailure = "predictive-failure"
	conditionDegraded          = "degraded"
	conditionConnectivity      = "connectivity"

	kindDisk       = "disk"
	kindVolume     = "volume"
	kindController = "controller"
	kindServer     = "server"

	connectivityComponent = "server"
)

// Degradation flags collections whose upstream fetch failed this cycle.
// Alerts tied to a degraded collection are held open: absence of data is
// not recovery.
type Degradation struct {
	PhysicalDisks   bool
	VirtualDisks    bool
	RaidControllers bool
}

func (d Degradation) covers(kind string) bool {
	switch kind {
	case kindDisk:
		return d.PhysicalDisks
	case kindVolume:
		return d.VirtualDisks
	case kindController:
		return d.RaidControllers
	}
	return false
}

// Manager owns the derived alert list. The upstream controller has no
// reliable alert feed, so alerts are synthesized by inspecting each freshly
// normalized snapshot (and the previous one for transitions).
type Manager struct {
	mu            sync.RWMutex
	active        map[string]*models.SystemAlert // keyed by kind/componentID/condition
	order         []string                       // dedupe keys, oldest first
	retention     int
	lifeThreshold int
}

// NewManager creates an alert manager. retention caps the alert list; when
// exceeded the oldest alerts are dropped overall, acknowledged or not.
// lifeThreshold is the predicted-media-life-left percentage at or below
// which a drive counts as predictively failing.
func NewManager(retention, lifeThreshold int) *Manager {
	if retention <= 0 {
		retention = 100
	}
	return &Manager{
		active:        make(map[string]*models.SystemAlert),
		retention:     retention,
		lifeThreshold: lifeThreshold,
	}
}

// Evaluate derives alerts from the new snapshot, using the previous one for
// transition detection, and returns the alerts raised this cycle. It also
// closes alerts whose condition has cleared, except for components in a
// degraded collection, whose true state is unknown this cycle.
func (m *Manager) Evaluate(prev, next *models.Snapshot, degraded Degradation) []models.SystemAlert {
	if next == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	present := make(map[string]struct{})
	var raised []models.SystemAlert

	raise := func(key string, severity models.AlertSeverity, title, message, component string) {
		present[key] = struct{}{}
		if _, open := m.active[key]; open {
			return
		}
		alert := &models.SystemAlert{
			ID:        uuid.NewString(),
			Severity:  severity,
			Title:     title,
			Message:   message,
			Component: component,
			Timestamp: time.Now(),
		}
		m.active[key] = alert
		m.order = append(m.order, key)
		raised = append(raised, *alert)
		alertsFiredTotal.WithLabelValues(string(severity)).Inc()
		log.Warn().
			Str("component", component).
			Str("severity", string(severity)).
			Str("title", title).
			Msg("Alert raised")
	}

	for _, disk := range next.PhysicalDisks {
		if disk.Status == models.HealthCritical || disk.Status == models.HealthFailed {
			raise(
				key(kindDisk, disk.ID, conditionHealth),
				models.SeverityCritical,
				"Physical disk failure",
				fmt.Sprintf("Disk %s (%s) reports status %s", disk.Name, disk.Location, disk.Status),
				disk.ID,
			)
		}
		if disk.PredictedLifeLeftPercent != nil && *disk.PredictedLifeLeftPercent <= m.lifeThreshold {
			raise(
				key(kindDisk, disk.ID, conditionPredictiveFailure),
				models.SeverityWarning,
				"Predictive disk failure",
				fmt.Sprintf("Disk %s reports %d%% media life remaining", disk.Name, *disk.PredictedLifeLeftPercent),
				disk.ID,
			)
		}
	}

	for _, vd := range next.VirtualDisks {
		switch vd.Status {
		case models.VolumeFailed:
			raise(
				key(kindVolume, vd.ID, conditionHealth),
				models.SeverityCritical,
				"Virtual disk failed",
				fmt.Sprintf("Volume %s (%s) reports status %s", vd.Name, vd.RaidLevel, vd.Status),
				vd.ID,
			)
		case models.VolumeDegraded, models.VolumeRebuilding:
			message := fmt.Sprintf("Volume %s (%s) is %s", vd.Name, vd.RaidLevel, vd.Status)
			if vd.Status == models.VolumeRebuilding && vd.RebuildProgress != nil {
				message = fmt.Sprintf("%s (%d%% complete)", message, *vd.RebuildProgress)
			}
			raise(
				key(kindVolume, vd.ID, conditionDegraded),
				models.SeverityWarning,
				"Virtual disk degraded",
				message,
				vd.ID,
			)
		}
	}

	for _, controller := range next.RaidControllers {
		if controller.Status == models.HealthCritical || controller.Status == models.HealthFailed {
			raise(
				key(kindController, controller.ID, conditionHealth),
				models.SeverityCritical,
				"RAID controller failure",
				fmt.Sprintf("Controller %s (%s) reports status %s", controller.Name, controller.Model, controller.Status),
				controller.ID,
			)
		}
	}

	m.clearResolvedLocked(present, degraded)
	m.enforceRetentionLocked()

	return raised
}

// HandleConnectivityLoss raises one connectivity alert. Repeated failed
// cycles attach to the same open alert instead of flooding the list.
func (m *Manager) HandleConnectivityLoss(address string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(kindServer, connectivityComponent, conditionConnectivity)
	if _, open := m.active[k]; open {
		return
	}

	alert := &models.SystemAlert{
		ID:        uuid.NewString(),
		Severity:  models.SeverityCritical,
		Title:     "Management controller unreachable",
		Message:   fmt.Sprintf("Polling %s failed: %v", address, cause),
		Component: connectivityComponent,
		Timestamp: time.Now(),
	}
	m.active[k] = alert
	m.order = append(m.order, k)
	alertsFiredTotal.WithLabelValues(string(models.SeverityCritical)).Inc()
	log.Error().Err(cause).Str("address", address).Msg("Connectivity alert raised")
}

// HandleConnectivityRestored closes the open connectivity alert, if any.
func (m *Manager) HandleConnectivityRestored() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key(kindServer, connectivityComponent, conditionConnectivity))
}

// Acknowledge marks the alert acknowledged. Idempotent; returns false when
// no alert carries the id, which callers surface as not-found rather than a
// fault.
func (m *Manager) Acknowledge(alertID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, alert := range m.active {
		if alert.ID == alertID {
			if !alert.Acknowledged {
				alert.Acknowledged = true
				alertsAcknowledgedTotal.Inc()
				log.Debug().Str("alertID", alertID).Msg("Alert acknowledgment recorded")
			}
			return true
		}
	}
	return false
}

// Active returns a copy of the current alerts, oldest first.
func (m *Manager) Active() []models.SystemAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alerts := make([]models.SystemAlert, 0, len(m.order))
	for _, k := range m.order {
		if alert, ok := m.active[k]; ok {
			alerts = append(alerts, *alert)
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Timestamp.Before(alerts[j].Timestamp)
	})
	return alerts
}

// clearResolvedLocked closes alerts whose condition no longer holds, so a
// relapse raises a fresh alert. Alerts whose collection failed to fetch this
// cycle stay open with their acknowledged state intact; the connectivity
// alert has its own lifecycle and is skipped as well.
func (m *Manager) clearResolvedLocked(present map[string]struct{}, degraded Degradation) {
	kept := m.order[:0]
	for _, k := range m.order {
		if _, stillPresent := present[k]; stillPresent {
			kept = append(kept, k)
			continue
		}
		kind := kindOf(k)
		if kind == kindServer || degraded.covers(kind) {
			kept = append(kept, k)
			continue
		}
		if alert, ok := m.active[k]; ok {
			log.Info().
				Str("component", alert.Component).
				Str("title", alert.Title).
				Msg("Alert condition cleared")
			alertsResolvedTotal.Inc()
		}
		delete(m.active, k)
	}
	m.order = kept
}

// enforceRetentionLocked drops the oldest alerts overall when the cap is
// exceeded. Acknowledged alerts are not preferred for eviction.
func (m *Manager) enforceRetentionLocked() {
	for len(m.order) > m.retention {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.active, oldest)
	}
}

func (m *Manager) removeLocked(k string) {
	if _, ok := m.active[k]; !ok {
		return
	}
	delete(m.active, k)
	for i, existing := range m.order {
		if existing == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	alertsResolvedTotal.Inc()
}

func key(kind, componentID, condition string) string {
	return kind + "/" + componentID + "/" + condition
}

func kindOf(key string) string {
	if i := strings.Index(key, "/"); i > 0 {
		return key[:i]
	}
	return ""
}
