package domain

import "time"

// SessionCreatedEvent is emitted when a new authorization session is issued.
type SessionCreatedEvent struct {
	SessionID string
	DriverID  string
	BusID     string
	RouteID   string
	DeviceID  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionEndedEvent is emitted when a session leaves the active state, either
// by explicit logout, admin termination, or the expiry sweep.
type SessionEndedEvent struct {
	SessionID string
	DriverID  string
	DeviceID  string
	EndedAt   time.Time
	Reason    string
}

// DriverOfflineEvent is emitted when the offline detector marks a silent
// driver's latest fix offline.
type DriverOfflineEvent struct {
	DriverID   string
	BusID      string
	RouteID    string
	SessionID  string
	LastFixAt  time.Time
	DetectedAt time.Time
}

// LocationCommittedEvent is emitted after a fix has been durably stored.
type LocationCommittedEvent struct {
	LocationID  string
	DriverID    string
	BusID       string
	RouteID     string
	Status      FixStatus
	Timestamp   time.Time
	CommittedAt time.Time
}
