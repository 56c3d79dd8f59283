package models

import "time"

// HealthStatus is the closed internal health taxonomy. Upstream vendor
// vocabulary never passes through; anything unmapped becomes HealthUnknown.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
	HealthFailed   HealthStatus = "failed"
	HealthOffline  HealthStatus = "offline"
	HealthUnknown  HealthStatus = "unknown"
)

// Virtual disk statuses form their own closed set.
const (
	VolumeOptimal    HealthStatus = "optimal"
	VolumeDegraded   HealthStatus = "degraded"
	VolumeFailed     HealthStatus = "failed"
	VolumeRebuilding HealthStatus = "rebuilding"
	VolumeUnknown    HealthStatus = "unknown"
)

// SmartStatus reports the drive's self-test verdict.
type SmartStatus string

const (
	SmartPassed SmartStatus = "passed"
	SmartFailed SmartStatus = "failed"
)

// ConnectionStatus describes the upstream controller link as of the last cycle.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
)

// AlertSeverity levels for derived alerts.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// PhysicalDisk is one normalized drive record. The ID is the upstream's
// stable slot/bay identifier so consumers can diff across snapshots.
type PhysicalDisk struct {
	ID                       string       `json:"id"`
	Name                     string       `json:"name"`
	Model                    string       `json:"model"`
	SerialNumber             string       `json:"serialNumber"`
	Manufacturer             string       `json:"manufacturer"`
	MediaType                string       `json:"mediaType"`
	Interface                string       `json:"interface"`
	CapacityBytes            int64        `json:"capacityBytes"`
	Status                   HealthStatus `json:"status"`
	SmartStatus              SmartStatus  `json:"smartStatus"`
	Temperature              *int         `json:"temperature,omitempty"`
	PowerOnHours             *int         `json:"powerOnHours,omitempty"`
	PredictedLifeLeftPercent *int         `json:"predictedLifeLeftPercent,omitempty"`
	Location                 string       `json:"location"`
	LastChecked              time.Time    `json:"lastChecked"`
}

// VirtualDisk is one normalized RAID volume record.
type VirtualDisk struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	RaidLevel       string       `json:"raidLevel"`
	Status          HealthStatus `json:"status"`
	CapacityBytes   int64        `json:"capacityBytes"`
	UsedBytes       *int64       `json:"usedBytes,omitempty"`
	PhysicalDiskIDs []string     `json:"physicalDisks"`
	// RebuildProgress is set only while Status is rebuilding.
	RebuildProgress *int      `json:"rebuildProgress,omitempty"`
	LastChecked     time.Time `json:"lastChecked"`
}

// RaidController is one normalized storage controller record.
type RaidController struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Model         string       `json:"model"`
	Status        HealthStatus `json:"status"`
	BatteryStatus HealthStatus `json:"batteryStatus"`
	CacheSizeMiB  int          `json:"cacheSizeMiB"`
	Temperature   *int         `json:"temperature,omitempty"`
	LastChecked   time.Time    `json:"lastChecked"`
}

// SystemAlert is a derived alert. Acknowledged is the only mutable field
// after creation.
type SystemAlert struct {
	ID           string        `json:"id"`
	Severity     AlertSeverity `json:"severity"`
	Title        string        `json:"title"`
	Message      string        `json:"message"`
	Component    string        `json:"component"`
	Timestamp    time.Time     `json:"timestamp"`
	Acknowledged bool          `json:"acknowledged"`
}
