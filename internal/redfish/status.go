package redfish

import (
	"strings"

	"github.com/raidwatch/raidwatch/internal/models"
)

// MapHealth translates a Redfish Status.State/Status.Health pair into the
// internal health taxonomy. It is total: every input, including empty and
// never-before-seen firmware vocabulary, maps to a value in the closed set.
// Vendor vocabulary drift degrades to unknown instead of failing the cycle.
func MapHealth(state, health string) models.HealthStatus {
	state = strings.ToLower(strings.TrimSpace(state))
	health = strings.ToLower(strings.TrimSpace(health))

	switch state {
	case "absent", "unavailableoffline":
		return models.HealthOffline
	case "standbyspare":
		return models.HealthCritical
	}

	switch health {
	case "ok":
		return models.HealthHealthy
	case "warning":
		return models.HealthWarning
	case "critical":
		if state == "disabled" {
			return models.HealthFailed
		}
		return models.HealthCritical
	default:
		return models.HealthUnknown
	}
}

// MapVolumeHealth translates volume status into the virtual-disk health set.
// A reported rebuild operation takes precedence over the health field.
func MapVolumeHealth(state, health string, rebuilding bool) models.HealthStatus {
	if rebuilding {
		return models.VolumeRebuilding
	}

	switch strings.ToLower(strings.TrimSpace(health)) {
	case "ok":
		return models.VolumeOptimal
	case "warning":
		return models.VolumeDegraded
	case "critical":
		return models.VolumeFailed
	default:
		return models.VolumeUnknown
	}
}

// MapSmart derives the SMART verdict from the drive health field. Anything
// other than an explicit OK is treated as failed: the safe default for a
// predictive signal.
func MapSmart(health string) models.SmartStatus {
	if strings.EqualFold(strings.TrimSpace(health), "ok") {
		return models.SmartPassed
	}
	return models.SmartFailed
}
