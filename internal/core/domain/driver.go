package domain

import "time"

// Driver is a registered bus driver together with the device bound to their
// account. DeviceID is empty until the first login from a device.
type Driver struct {
	ID            string
	Name          string
	Phone         string
	LicenseNumber string
	BusID         string
	RouteID       string
	DeviceID      string
	IsActive      bool
	LastSeen      time.Time
	CreatedAt     time.Time
}

// Online reports whether the driver has been seen within the supplied window.
func (d Driver) Online(at time.Time, window time.Duration) bool {
	return at.Sub(d.LastSeen) < window
}

// DriverStats aggregates fleet counts for the admin surface.
type DriverStats struct {
	TotalDrivers   int `json:"total_drivers"`
	ActiveDrivers  int `json:"active_drivers"`
	OfflineDrivers int `json:"offline_drivers"`
}
