package redfish

import "time"

// Wire shapes for the subset of the Redfish schema the monitor reads. Field
// names and health vocabulary are upstream-defined; nothing outside this
// package sees them.

type odataRef struct {
	ODataID string `json:"@odata.id"`
}

type collectionResponse struct {
	Members []odataRef `json:"Members"`
	Count   int        `json:"Members@odata.count"`
}

type resourceStatus struct {
	State  string `json:"State"`
	Health string `json:"Health"`
}

type sessionRequest struct {
	UserName string `json:"UserName"`
	Password string `json:"Password"`
}

// systemRecord is the computer-system resource carrying server identity.
type systemRecord struct {
	Name     string `json:"Name"`
	HostName string `json:"HostName"`
}

// storageRecord is one storage subsystem: controller metadata plus refs to
// its drives and volumes collection.
type storageRecord struct {
	ID                 string             `json:"Id"`
	Name               string             `json:"Name"`
	Status             resourceStatus     `json:"Status"`
	Drives             []odataRef         `json:"Drives"`
	StorageControllers []controllerRecord `json:"StorageControllers"`
	Volumes            odataRef           `json:"Volumes"`
	Oem                struct {
		Dell struct {
			DellController struct {
				CacheSizeInMB                int    `json:"CacheSizeInMB"`
				ControllerTemperatureCelsius *int   `json:"ControllerTemperatureCelsius"`
				BatteryState                 string `json:"BatteryState"`
			} `json:"DellController"`
		} `json:"Dell"`
	} `json:"Oem"`
}

type controllerRecord struct {
	MemberID     string         `json:"MemberId"`
	Name         string         `json:"Name"`
	Model        string         `json:"Model"`
	Manufacturer string         `json:"Manufacturer"`
	Status       resourceStatus `json:"Status"`
}

type driveRecord struct {
	ID               string         `json:"Id"`
	Name             string         `json:"Name"`
	Model            string         `json:"Model"`
	SerialNumber     string         `json:"SerialNumber"`
	Manufacturer     string         `json:"Manufacturer"`
	MediaType        string         `json:"MediaType"`
	Protocol         string         `json:"Protocol"`
	CapacityBytes    int64          `json:"CapacityBytes"`
	Status           resourceStatus `json:"Status"`
	PhysicalLocation struct {
		PartLocation struct {
			ServiceLabel string `json:"ServiceLabel"`
		} `json:"PartLocation"`
	} `json:"PhysicalLocation"`
	Oem struct {
		Dell struct {
			DellPhysicalDisk struct {
				PowerOnHours                  *int `json:"PowerOnHours"`
				PredictedMediaLifeLeftPercent *int `json:"PredictedMediaLifeLeftPercent"`
				TemperatureCelsius            *int `json:"TemperatureCelsius"`
			} `json:"DellPhysicalDisk"`
		} `json:"Dell"`
	} `json:"Oem"`
}

type volumeRecord struct {
	ID            string         `json:"Id"`
	Name          string         `json:"Name"`
	RAIDType      string         `json:"RAIDType"`
	CapacityBytes int64          `json:"CapacityBytes"`
	Status        resourceStatus `json:"Status"`
	Links         struct {
		Drives []odataRef `json:"Drives"`
	} `json:"Links"`
	Operations []struct {
		OperationName      string `json:"OperationName"`
		PercentageComplete *int   `json:"PercentageComplete"`
	} `json:"Operations"`
	Oem struct {
		Dell struct {
			DellVirtualDisk struct {
				RAIDType       string `json:"RAIDType"`
				UsedSpaceBytes *int64 `json:"UsedSpaceBytes"`
			} `json:"DellVirtualDisk"`
		} `json:"Dell"`
	} `json:"Oem"`
}

// RawInventory is the unnormalized result of one upstream fetch sequence.
// Collections that failed are empty with the failure noted, so one broken
// endpoint never empties the others.
type RawInventory struct {
	System      *systemRecord
	Drives      []driveRecord
	Volumes     []volumeRecord
	Controllers []rawController

	DrivesErr      error
	VolumesErr     error
	ControllersErr error

	CollectedAt time.Time
}

// rawController pairs the controller entry with its parent storage
// subsystem, which carries the Dell OEM battery/cache/temperature data.
type rawController struct {
	Subsystem  storageRecord
	Controller controllerRecord
}
