package domain

import "time"

// Session represents a driver authorization window tying a device to a
// driver/bus/route assignment.
type Session struct {
	ID                 string
	DriverID           string
	BusID              string
	RouteID            string
	DeviceID           string
	CreatedAt          time.Time
	LastActivityAt     time.Time
	ExpiresAt          time.Time
	IsActive           bool
	CurrentLocation    *GeoPoint
	LastLocationUpdate *time.Time
}

// IsValid reports whether the session authorizes publishing at the supplied
// moment. Expiry is absolute from creation; activity never extends it.
func (s Session) IsValid(at time.Time) bool {
	return s.IsActive && at.Before(s.ExpiresAt)
}

// Expired reports whether the session's lifetime has elapsed regardless of
// its active flag.
func (s Session) Expired(at time.Time) bool {
	return !at.Before(s.ExpiresAt)
}

// Touch refreshes last-activity metadata. It deliberately leaves ExpiresAt
// alone: a new session must be created to extend authorization.
func (s *Session) Touch(at time.Time) {
	s.LastActivityAt = at
}

// RecordLocation updates the session's current-location pointer.
func (s *Session) RecordLocation(point GeoPoint, at time.Time) {
	p := point
	s.CurrentLocation = &p
	t := at
	s.LastLocationUpdate = &t
	s.LastActivityAt = at
}

// Deactivate marks the session unusable. Returns true when the session
// changed state.
func (s *Session) Deactivate() bool {
	if !s.IsActive {
		return false
	}
	s.IsActive = false
	return true
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SessionStats summarizes registry state for admin endpoints.
type SessionStats struct {
	ActiveSessions  int           `json:"active_sessions"`
	OldestCreatedAt *time.Time    `json:"oldest_created_at,omitempty"`
	AverageAge      time.Duration `json:"average_age"`
}
