package monitoring

import (
	"sync/atomic"

	"github.com/raidwatch/raidwatch/internal/models"
)

// SnapshotCache holds the single most recent published snapshot. Reads never
// block on upstream I/O; writes happen only from the scheduler's one active
// cycle, so the publish is a plain atomic swap.
type SnapshotCache struct {
	current     atomic.Pointer[models.Snapshot]
	placeholder *models.Snapshot
}

// NewSnapshotCache creates a cache that serves the given placeholder until
// the first publish.
func NewSnapshotCache(serverName, address string) *SnapshotCache {
	return &SnapshotCache{
		placeholder: models.EmptySnapshot(serverName, address),
	}
}

// Get returns a copy of the latest snapshot, or the never-populated
// placeholder before the first publish. Callers own the returned value.
func (c *SnapshotCache) Get() *models.Snapshot {
	if snapshot := c.current.Load(); snapshot != nil {
		return snapshot.Clone()
	}
	return c.placeholder.Clone()
}

// Current returns the last published snapshot without copying, or nil before
// the first publish. For scheduler-internal use only; the value must be
// treated as immutable.
func (c *SnapshotCache) Current() *models.Snapshot {
	return c.current.Load()
}

// Publish atomically replaces the cached snapshot. Readers in flight keep
// the value they loaded; nobody observes a partially constructed snapshot.
func (c *SnapshotCache) Publish(snapshot *models.Snapshot) {
	c.current.Store(snapshot)
}
