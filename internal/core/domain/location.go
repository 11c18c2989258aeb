package domain

import "time"

// FixStatus describes the liveness of a driver at the moment a fix was taken.
type FixStatus string

const (
	StatusActive  FixStatus = "active"
	StatusIdle    FixStatus = "idle"
	StatusOffline FixStatus = "offline"
)

// KnownStatus reports whether the value is one of the accepted fix statuses.
func KnownStatus(s FixStatus) bool {
	switch s {
	case StatusActive, StatusIdle, StatusOffline:
		return true
	}
	return false
}

// LocationFix is a single GPS sample from a driver device. A fix is immutable
// once committed; only the Offline Detector may rewrite the status of the
// most recent stored fix for a silent driver.
type LocationFix struct {
	ID        string
	DriverID  string
	BusID     string
	RouteID   string
	Latitude  float64
	Longitude float64
	Heading   float64
	Speed     float64
	Accuracy  float64
	Status    FixStatus
	SessionID string
	Timestamp time.Time
}

// Point returns the fix coordinates as a GeoPoint.
func (f LocationFix) Point() GeoPoint {
	return GeoPoint{Latitude: f.Latitude, Longitude: f.Longitude}
}

// CommitReceipt is returned to the submitter once a fix has been drained from
// the ordering queue and durably stored.
type CommitReceipt struct {
	LocationID string    `json:"location_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// BoundingBox delimits a rectangular geographic area.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Contains reports whether the point falls inside the box.
func (b BoundingBox) Contains(p GeoPoint) bool {
	return p.Latitude >= b.South && p.Latitude <= b.North &&
		p.Longitude >= b.West && p.Longitude <= b.East
}
