package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
	"github.com/SameeraMS/BusTracking-Backend/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, driverID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("driver_id", driverID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishSessionCreated logs transit.session.created events.
func (p *StubPublisher) PublishSessionCreated(_ context.Context, event domain.SessionCreatedEvent) error {
	payload := map[string]any{
		"session_id": event.SessionID,
		"driver_id":  event.DriverID,
		"bus_id":     event.BusID,
		"route_id":   event.RouteID,
		"device_id":  event.DeviceID,
		"created_at": event.CreatedAt,
		"expires_at": event.ExpiresAt,
	}
	p.logEvent("transit.session.created", event.DriverID, event.CreatedAt, payload)
	return nil
}

// PublishSessionEnded logs transit.session.ended events.
func (p *StubPublisher) PublishSessionEnded(_ context.Context, event domain.SessionEndedEvent) error {
	payload := map[string]any{
		"session_id": event.SessionID,
		"driver_id":  event.DriverID,
		"device_id":  event.DeviceID,
		"ended_at":   event.EndedAt,
		"reason":     event.Reason,
	}
	p.logEvent("transit.session.ended", event.DriverID, event.EndedAt, payload)
	return nil
}

// PublishDriverOffline logs transit.driver.offline events.
func (p *StubPublisher) PublishDriverOffline(_ context.Context, event domain.DriverOfflineEvent) error {
	payload := map[string]any{
		"driver_id":   event.DriverID,
		"bus_id":      event.BusID,
		"route_id":    event.RouteID,
		"session_id":  event.SessionID,
		"last_fix_at": event.LastFixAt,
		"detected_at": event.DetectedAt,
	}
	p.logEvent("transit.driver.offline", event.DriverID, event.DetectedAt, payload)
	return nil
}

// PublishLocationCommitted logs transit.location.committed events.
func (p *StubPublisher) PublishLocationCommitted(_ context.Context, event domain.LocationCommittedEvent) error {
	payload := map[string]any{
		"location_id":  event.LocationID,
		"driver_id":    event.DriverID,
		"bus_id":       event.BusID,
		"route_id":     event.RouteID,
		"status":       string(event.Status),
		"timestamp":    event.Timestamp,
		"committed_at": event.CommittedAt,
	}
	p.logEvent("transit.location.committed", event.DriverID, event.Timestamp, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
