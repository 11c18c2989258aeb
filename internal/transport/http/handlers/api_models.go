package handlers

import (
	"time"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
)

// APIResponse is the envelope returned by every endpoint. Success responses
// carry data and an optional message; failures carry an error string and an
// optional detail list for validation problems.
type APIResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    any      `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
	Details []string `json:"details,omitempty"`
}

// OK wraps a success payload.
func OK(data any) APIResponse {
	return APIResponse{Success: true, Data: data}
}

// OKMessage wraps a success payload with a human-readable message.
func OKMessage(data any, message string) APIResponse {
	return APIResponse{Success: true, Data: data, Message: message}
}

// Fail wraps an error message.
func Fail(message string) APIResponse {
	return APIResponse{Success: false, Error: message}
}

// FailDetails wraps an error message with per-field detail.
func FailDetails(message string, details []string) APIResponse {
	return APIResponse{Success: false, Error: message, Details: details}
}

// RegisterDriverRequest is the payload for driver registration.
type RegisterDriverRequest struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	LicenseNumber string `json:"licenseNumber"`
	BusID         string `json:"busId"`
	RouteID       string `json:"routeId"`
	DeviceID      string `json:"deviceId"`
}

// LoginRequest is the payload for phone+device driver login.
type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	DeviceID string `json:"deviceId" binding:"required"`
}

// SessionRequest carries a bare session identifier.
type SessionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// LocationUpdateRequest is the payload for a GPS fix submission. Coordinate
// fields are pointers so that absent and zero are distinguishable.
type LocationUpdateRequest struct {
	DriverID  string     `json:"driverId"`
	BusID     string     `json:"busId"`
	RouteID   string     `json:"routeId"`
	SessionID string     `json:"sessionId"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Heading   *float64   `json:"heading"`
	Speed     *float64   `json:"speed"`
	Accuracy  *float64   `json:"accuracy"`
	Status    string     `json:"status"`
	Timestamp *time.Time `json:"timestamp"`
}

// StatusUpdateRequest is the payload for an explicit driver status change.
type StatusUpdateRequest struct {
	DriverID  string `json:"driverId" binding:"required"`
	SessionID string `json:"sessionId" binding:"required"`
	Status    string `json:"status" binding:"required"`
}

// DriverView is the API shape of a driver.
type DriverView struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	LicenseNumber string    `json:"licenseNumber"`
	BusID         string    `json:"busId"`
	RouteID       string    `json:"routeId"`
	IsActive      bool      `json:"isActive"`
	IsOnline      *bool     `json:"isOnline,omitempty"`
	LastSeen      time.Time `json:"lastSeen"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SessionView is the API shape of a session.
type SessionView struct {
	ID                 string     `json:"id"`
	DriverID           string     `json:"driverId"`
	BusID              string     `json:"busId"`
	RouteID            string     `json:"routeId"`
	CreatedAt          time.Time  `json:"createdAt"`
	LastActivityAt     time.Time  `json:"lastActivityAt"`
	ExpiresAt          time.Time  `json:"expiresAt"`
	LastLocationUpdate *time.Time `json:"lastLocationUpdate,omitempty"`
}

// FixView is the API shape of a location fix.
type FixView struct {
	DriverID  string    `json:"driverId"`
	BusID     string    `json:"busId"`
	RouteID   string    `json:"routeId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   float64   `json:"heading"`
	Speed     float64   `json:"speed"`
	Accuracy  float64   `json:"accuracy"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports per-dependency readiness.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func driverView(d domain.Driver, online *bool) DriverView {
	return DriverView{
		ID:            d.ID,
		Name:          d.Name,
		Phone:         d.Phone,
		LicenseNumber: d.LicenseNumber,
		BusID:         d.BusID,
		RouteID:       d.RouteID,
		IsActive:      d.IsActive,
		IsOnline:      online,
		LastSeen:      d.LastSeen,
		CreatedAt:     d.CreatedAt,
	}
}

func sessionView(s domain.Session) SessionView {
	return SessionView{
		ID:                 s.ID,
		DriverID:           s.DriverID,
		BusID:              s.BusID,
		RouteID:            s.RouteID,
		CreatedAt:          s.CreatedAt,
		LastActivityAt:     s.LastActivityAt,
		ExpiresAt:          s.ExpiresAt,
		LastLocationUpdate: s.LastLocationUpdate,
	}
}

func fixView(f domain.LocationFix) FixView {
	return FixView{
		DriverID:  f.DriverID,
		BusID:     f.BusID,
		RouteID:   f.RouteID,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Heading:   f.Heading,
		Speed:     f.Speed,
		Accuracy:  f.Accuracy,
		Status:    string(f.Status),
		Timestamp: f.Timestamp,
	}
}

func fixViews(fixes []domain.LocationFix) []FixView {
	out := make([]FixView, 0, len(fixes))
	for _, f := range fixes {
		out = append(out, fixView(f))
	}
	return out
}
