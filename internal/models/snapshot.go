package models

import "time"

// Snapshot is one immutable, internally consistent view of the monitored
// server's storage hardware. It is built whole by a refresh cycle and
// replaced wholesale; nothing mutates a published Snapshot in place.
type Snapshot struct {
	ServerName       string           `json:"serverName"`
	Address          string           `json:"address"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus"`
	LastError        string           `json:"lastError,omitempty"`
	PhysicalDisks    []PhysicalDisk   `json:"physicalDisks"`
	VirtualDisks     []VirtualDisk    `json:"virtualDisks"`
	RaidControllers  []RaidController `json:"raidControllers"`
	Alerts           []SystemAlert    `json:"alerts"`
	LastUpdate       time.Time        `json:"lastUpdate"`
}

// EmptySnapshot is the well-defined "never populated yet" state served
// before the first successful poll.
func EmptySnapshot(serverName, address string) *Snapshot {
	return &Snapshot{
		ServerName:       serverName,
		Address:          address,
		ConnectionStatus: StatusDisconnected,
		PhysicalDisks:    []PhysicalDisk{},
		VirtualDisks:     []VirtualDisk{},
		RaidControllers:  []RaidController{},
		Alerts:           []SystemAlert{},
	}
}

// Clone returns a deep copy so readers never share slices with the cached
// value.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	out := *s
	out.PhysicalDisks = append([]PhysicalDisk{}, s.PhysicalDisks...)
	out.RaidControllers = append([]RaidController{}, s.RaidControllers...)
	out.Alerts = append([]SystemAlert{}, s.Alerts...)

	out.VirtualDisks = make([]VirtualDisk, len(s.VirtualDisks))
	for i, vd := range s.VirtualDisks {
		copied := vd
		copied.PhysicalDiskIDs = append([]string{}, vd.PhysicalDiskIDs...)
		if vd.RebuildProgress != nil {
			progress := *vd.RebuildProgress
			copied.RebuildProgress = &progress
		}
		if vd.UsedBytes != nil {
			used := *vd.UsedBytes
			copied.UsedBytes = &used
		}
		out.VirtualDisks[i] = copied
	}

	return &out
}

// WithAlerts returns a copy of the snapshot carrying the given alert list.
// Read paths use this to attach the alert manager's current view, so
// acknowledgements show up without waiting for the next cycle.
func (s *Snapshot) WithAlerts(alerts []SystemAlert) *Snapshot {
	out := s.Clone()
	out.Alerts = append([]SystemAlert{}, alerts...)
	return out
}
