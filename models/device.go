package models

import "math"

// DeviceType is only used to pick an icon. It is never validated.
type DeviceType string

const (
	DeviceMobile DeviceType = "mobile"
	DeviceTablet DeviceType = "tablet"
	DevicePC     DeviceType = "pc"
)

// Coordinates is a latitude (X) / longitude (Y) pair.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Device is the canonical registry value. View handles are kept by the
// registry next to it, never inside it.
type Device struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Type         DeviceType  `json:"type"`
	Coordinates  Coordinates `json:"coordinates"`
	BatteryLevel *int        `json:"batteryLevel,omitempty"` // 0-100, nil without battery telemetry
}

// WireDevice is a device as the upstream server sends it. Battery is a
// 0..1 fraction and absent in protocol variants without telemetry.
type WireDevice struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Type        DeviceType  `json:"type"`
	Coordinates Coordinates `json:"coordinates"`
	Battery     *float64    `json:"battery,omitempty"`
}

// ToDevice converts the wire form into the registry form.
func (w WireDevice) ToDevice() Device {
	d := Device{
		ID:          w.ID,
		Name:        w.Name,
		Type:        w.Type,
		Coordinates: w.Coordinates,
	}
	if w.Battery != nil {
		pct := BatteryPercent(*w.Battery)
		d.BatteryLevel = &pct
	}
	return d
}

// DeviceUpdate is the partial state carried by locationUpdate/dataUpdate.
type DeviceUpdate struct {
	Coordinates  Coordinates
	BatteryLevel *int
}

// Update extracts the partial update from a wire device.
func (w WireDevice) Update() DeviceUpdate {
	d := w.ToDevice()
	return DeviceUpdate{Coordinates: d.Coordinates, BatteryLevel: d.BatteryLevel}
}

// BatteryPercent scales a 0..1 fraction to a whole percentage.
func BatteryPercent(fraction float64) int {
	pct := int(math.Round(fraction * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Tier is a battery level classification bucket.
type Tier string

const (
	TierCritical Tier = "critical"
	TierWarning  Tier = "warning"
	TierStable   Tier = "stable"
)

// BatteryTier classifies a percentage. Thresholds are inclusive-low:
// exactly 10 is warning, exactly 50 is stable.
func BatteryTier(pct int) Tier {
	switch {
	case pct < 10:
		return TierCritical
	case pct < 50:
		return TierWarning
	default:
		return TierStable
	}
}
