package alerts

import (
	"errors"
	"fmt"
	"testing"

	"github.com/raidwatch/raidwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWithDisk(disk models.PhysicalDisk) *models.Snapshot {
	return &models.Snapshot{
		ConnectionStatus: models.StatusConnected,
		PhysicalDisks:    []models.PhysicalDisk{disk},
	}
}

func TestEvaluateDiskFailureOnce(t *testing.T) {
	m := NewManager(100, 10)

	failed := snapshotWithDisk(models.PhysicalDisk{
		ID: "Disk.Bay.0", Name: "Disk 0", Status: models.HealthCritical,
	})

	raised := m.Evaluate(nil, failed, Degradation{})
	require.Len(t, raised, 1)
	assert.Equal(t, models.SeverityCritical, raised[0].Severity)
	assert.Equal(t, "Disk.Bay.0", raised[0].Component)

	// Same condition next cycle: no new alert, the open one persists.
	raised = m.Evaluate(failed, failed, Degradation{})
	assert.Empty(t, raised)
	assert.Len(t, m.Active(), 1)
}

func TestEvaluateClearAndRelapse(t *testing.T) {
	m := NewManager(100, 10)

	failed := snapshotWithDisk(models.PhysicalDisk{ID: "Disk.Bay.0", Status: models.HealthFailed})
	healthy := snapshotWithDisk(models.PhysicalDisk{ID: "Disk.Bay.0", Status: models.HealthHealthy})

	first := m.Evaluate(nil, failed, Degradation{})
	require.Len(t, first, 1)

	m.Evaluate(failed, healthy, Degradation{})
	assert.Empty(t, m.Active(), "cleared condition closes the alert")

	second := m.Evaluate(healthy, failed, Degradation{})
	require.Len(t, second, 1, "relapse raises a fresh alert")
	assert.NotEqual(t, first[0].ID, second[0].ID)
}

func TestDegradedCollectionHoldsAlertsOpen(t *testing.T) {
	m := NewManager(100, 10)

	failed := snapshotWithDisk(models.PhysicalDisk{
		ID: "Disk.Bay.0", Name: "Disk 0", Status: models.HealthCritical,
	})
	raised := m.Evaluate(nil, failed, Degradation{})
	require.Len(t, raised, 1)
	require.True(t, m.Acknowledge(raised[0].ID))

	// Drive fetch failed this cycle: the snapshot carries no disks, but
	// that says nothing about the disk's condition.
	empty := &models.Snapshot{ConnectionStatus: models.StatusConnected}
	got := m.Evaluate(failed, empty, Degradation{PhysicalDisks: true})
	assert.Empty(t, got)

	active := m.Active()
	require.Len(t, active, 1, "alert must survive the degraded cycle")
	assert.Equal(t, raised[0].ID, active[0].ID, "identity preserved, not re-raised")
	assert.True(t, active[0].Acknowledged, "acknowledged state preserved")

	// Collection recovers and the condition persists: same open alert.
	got = m.Evaluate(empty, failed, Degradation{})
	assert.Empty(t, got)
	active = m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, raised[0].ID, active[0].ID)

	// True recovery still clears it.
	healthy := snapshotWithDisk(models.PhysicalDisk{ID: "Disk.Bay.0", Status: models.HealthHealthy})
	m.Evaluate(failed, healthy, Degradation{})
	assert.Empty(t, m.Active())
}

func TestDegradationScopedPerCollection(t *testing.T) {
	m := NewManager(100, 10)

	both := &models.Snapshot{
		PhysicalDisks: []models.PhysicalDisk{{ID: "Disk.Bay.0", Status: models.HealthCritical}},
		RaidControllers: []models.RaidController{{
			ID: "RAID.Integrated.1-1", Status: models.HealthCritical,
		}},
	}
	raised := m.Evaluate(nil, both, Degradation{})
	require.Len(t, raised, 2)

	// Drives degraded, controllers fetched fine and healthy: the controller
	// alert clears while the disk alert is held open.
	controllersHealthy := &models.Snapshot{
		RaidControllers: []models.RaidController{{
			ID: "RAID.Integrated.1-1", Status: models.HealthHealthy,
		}},
	}
	m.Evaluate(both, controllersHealthy, Degradation{PhysicalDisks: true})

	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "Disk.Bay.0", active[0].Component)
}

func TestEvaluatePredictiveFailure(t *testing.T) {
	m := NewManager(100, 10)

	life := 8
	raised := m.Evaluate(nil, snapshotWithDisk(models.PhysicalDisk{
		ID: "Disk.Bay.2", Name: "Disk 2", Status: models.HealthHealthy,
		PredictedLifeLeftPercent: &life,
	}), Degradation{})
	require.Len(t, raised, 1)
	assert.Equal(t, models.SeverityWarning, raised[0].Severity)
	assert.Contains(t, raised[0].Message, "8%")

	// Above the threshold: nothing fires.
	m = NewManager(100, 10)
	life = 11
	raised = m.Evaluate(nil, snapshotWithDisk(models.PhysicalDisk{
		ID: "Disk.Bay.2", Status: models.HealthHealthy, PredictedLifeLeftPercent: &life,
	}), Degradation{})
	assert.Empty(t, raised)
}

func TestEvaluateVolumeRebuildingSingleAlert(t *testing.T) {
	m := NewManager(100, 10)

	progress := 10
	rebuilding := &models.Snapshot{
		VirtualDisks: []models.VirtualDisk{{
			ID: "VD0", Name: "Virtual Disk 0", RaidLevel: "RAID5",
			Status: models.VolumeRebuilding, RebuildProgress: &progress,
		}},
	}

	raised := m.Evaluate(nil, rebuilding, Degradation{})
	require.Len(t, raised, 1)
	assert.Equal(t, models.SeverityWarning, raised[0].Severity)
	assert.Contains(t, raised[0].Message, "10% complete")

	// Progress advancing does not re-raise; the condition is the same.
	progress = 60
	raised = m.Evaluate(rebuilding, rebuilding, Degradation{})
	assert.Empty(t, raised)

	// Degraded and rebuilding share a dedupe key: the transition between
	// them keeps one open alert.
	degraded := &models.Snapshot{
		VirtualDisks: []models.VirtualDisk{{ID: "VD0", Status: models.VolumeDegraded}},
	}
	raised = m.Evaluate(rebuilding, degraded, Degradation{})
	assert.Empty(t, raised)
	assert.Len(t, m.Active(), 1)
}

func TestEvaluateVolumeFailed(t *testing.T) {
	m := NewManager(100, 10)

	raised := m.Evaluate(nil, &models.Snapshot{
		VirtualDisks: []models.VirtualDisk{{ID: "VD1", Status: models.VolumeFailed}},
	}, Degradation{})
	require.Len(t, raised, 1)
	assert.Equal(t, models.SeverityCritical, raised[0].Severity)
}

func TestEvaluateControllerFailure(t *testing.T) {
	m := NewManager(100, 10)

	raised := m.Evaluate(nil, &models.Snapshot{
		RaidControllers: []models.RaidController{{
			ID: "RAID.Integrated.1-1", Name: "PERC", Status: models.HealthCritical,
		}},
	}, Degradation{})
	require.Len(t, raised, 1)
	assert.Equal(t, "RAID.Integrated.1-1", raised[0].Component)
}

func TestAcknowledge(t *testing.T) {
	m := NewManager(100, 10)

	raised := m.Evaluate(nil, snapshotWithDisk(models.PhysicalDisk{
		ID: "Disk.Bay.0", Status: models.HealthCritical,
	}), Degradation{})
	require.Len(t, raised, 1)

	assert.True(t, m.Acknowledge(raised[0].ID))
	assert.True(t, m.Acknowledge(raised[0].ID), "acknowledging twice is idempotent")
	assert.False(t, m.Acknowledge("no-such-alert"))

	active := m.Active()
	require.Len(t, active, 1)
	assert.True(t, active[0].Acknowledged)
}

func TestRetentionDropsOldest(t *testing.T) {
	m := NewManager(3, 10)

	disks := make([]models.PhysicalDisk, 5)
	for i := range disks {
		disks[i] = models.PhysicalDisk{
			ID:     fmt.Sprintf("Disk.Bay.%d", i),
			Status: models.HealthCritical,
		}
	}

	raised := m.Evaluate(nil, &models.Snapshot{PhysicalDisks: disks}, Degradation{})
	require.Len(t, raised, 5, "all conditions fire before retention trims")

	active := m.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "Disk.Bay.2", active[0].Component, "oldest alerts dropped first")
	assert.Equal(t, "Disk.Bay.4", active[2].Component)
}

func TestConnectivityLifecycle(t *testing.T) {
	m := NewManager(100, 10)

	cause := errors.New("connection refused")
	m.HandleConnectivityLoss("192.168.1.100", cause)
	m.HandleConnectivityLoss("192.168.1.100", cause)
	m.HandleConnectivityLoss("192.168.1.100", cause)

	active := m.Active()
	require.Len(t, active, 1, "repeated failures share one alert")
	assert.Equal(t, models.SeverityCritical, active[0].Severity)

	// An inventory evaluation between failed cycles must not close it.
	m.Evaluate(nil, &models.Snapshot{}, Degradation{})
	assert.Len(t, m.Active(), 1)

	m.HandleConnectivityRestored()
	assert.Empty(t, m.Active())

	// Restoring twice is harmless.
	m.HandleConnectivityRestored()
	assert.Empty(t, m.Active())
}
