package redfish

import (
	"path"
	"strings"
	"time"

	"github.com/raidwatch/raidwatch/internal/models"
)

// Inventory is the normalized output of one fetch: every record carried into
// the stable internal schema with vendor vocabulary already mapped.
type Inventory struct {
	ServerName      string
	PhysicalDisks   []models.PhysicalDisk
	VirtualDisks    []models.VirtualDisk
	RaidControllers []models.RaidController
}

// Normalize translates a raw inventory into internal records. It is pure:
// no I/O, deterministic given raw and now. Unmapped vendor values come out
// as unknown, never as an error.
func Normalize(raw *RawInventory, now time.Time) *Inventory {
	inv := &Inventory{
		PhysicalDisks:   make([]models.PhysicalDisk, 0, len(raw.Drives)),
		VirtualDisks:    make([]models.VirtualDisk, 0, len(raw.Volumes)),
		RaidControllers: make([]models.RaidController, 0, len(raw.Controllers)),
	}

	if raw.System != nil {
		inv.ServerName = firstNonEmpty(raw.System.HostName, raw.System.Name)
	}

	for _, drive := range raw.Drives {
		inv.PhysicalDisks = append(inv.PhysicalDisks, normalizeDrive(drive, now))
	}
	for _, volume := range raw.Volumes {
		inv.VirtualDisks = append(inv.VirtualDisks, normalizeVolume(volume, now))
	}
	for _, controller := range raw.Controllers {
		inv.RaidControllers = append(inv.RaidControllers, normalizeController(controller, now))
	}

	return inv
}

func normalizeDrive(drive driveRecord, now time.Time) models.PhysicalDisk {
	oem := drive.Oem.Dell.DellPhysicalDisk

	disk := models.PhysicalDisk{
		ID:                       drive.ID,
		Name:                     firstNonEmpty(drive.Name, drive.ID),
		Model:                    firstNonEmpty(drive.Model, "Unknown"),
		SerialNumber:             firstNonEmpty(drive.SerialNumber, "Unknown"),
		Manufacturer:             firstNonEmpty(drive.Manufacturer, "Unknown"),
		MediaType:                firstNonEmpty(drive.MediaType, "Unknown"),
		Interface:                firstNonEmpty(drive.Protocol, "Unknown"),
		CapacityBytes:            drive.CapacityBytes,
		Status:                   MapHealth(drive.Status.State, drive.Status.Health),
		SmartStatus:              MapSmart(drive.Status.Health),
		Location:                 firstNonEmpty(drive.PhysicalLocation.PartLocation.ServiceLabel, "Unknown"),
		PowerOnHours:             copyIntPtr(oem.PowerOnHours),
		PredictedLifeLeftPercent: copyIntPtr(oem.PredictedMediaLifeLeftPercent),
		Temperature:              copyIntPtr(oem.TemperatureCelsius),
		LastChecked:              now,
	}

	return disk
}

func normalizeVolume(volume volumeRecord, now time.Time) models.VirtualDisk {
	rebuilding, progress := rebuildOperation(volume)

	memberIDs := make([]string, 0, len(volume.Links.Drives))
	for _, ref := range volume.Links.Drives {
		if id := path.Base(strings.TrimSpace(ref.ODataID)); id != "" && id != "." {
			memberIDs = append(memberIDs, id)
		}
	}

	raidLevel := firstNonEmpty(volume.Oem.Dell.DellVirtualDisk.RAIDType, volume.RAIDType, "Unknown")

	vd := models.VirtualDisk{
		ID:              volume.ID,
		Name:            firstNonEmpty(volume.Name, volume.ID),
		RaidLevel:       raidLevel,
		Status:          MapVolumeHealth(volume.Status.State, volume.Status.Health, rebuilding),
		CapacityBytes:   volume.CapacityBytes,
		UsedBytes:       copyInt64Ptr(volume.Oem.Dell.DellVirtualDisk.UsedSpaceBytes),
		PhysicalDiskIDs: memberIDs,
		LastChecked:     now,
	}
	if rebuilding {
		vd.RebuildProgress = progress
	}

	return vd
}

func normalizeController(raw rawController, now time.Time) models.RaidController {
	oem := raw.Subsystem.Oem.Dell.DellController

	id := raw.Controller.MemberID
	if id == "" {
		id = raw.Subsystem.ID
	}

	battery := models.HealthUnknown
	switch strings.ToLower(strings.TrimSpace(oem.BatteryState)) {
	case "ready", "ok", "charged":
		battery = models.HealthHealthy
	case "charging", "degraded", "learning":
		battery = models.HealthWarning
	case "failed", "missing":
		battery = models.HealthFailed
	}

	return models.RaidController{
		ID:            id,
		Name:          firstNonEmpty(raw.Controller.Name, raw.Subsystem.Name, id),
		Model:         firstNonEmpty(raw.Controller.Model, "Unknown"),
		Status:        MapHealth(raw.Controller.Status.State, raw.Controller.Status.Health),
		BatteryStatus: battery,
		CacheSizeMiB:  oem.CacheSizeInMB,
		Temperature:   copyIntPtr(oem.ControllerTemperatureCelsius),
		LastChecked:   now,
	}
}

// rebuildOperation reports whether a rebuild is in progress and its
// percentage when the controller exposes one.
func rebuildOperation(volume volumeRecord) (bool, *int) {
	for _, op := range volume.Operations {
		name := strings.ToLower(strings.TrimSpace(op.OperationName))
		if strings.Contains(name, "rebuild") {
			return true, copyIntPtr(op.PercentageComplete)
		}
	}
	return false, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func copyIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyInt64Ptr(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
