package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
	"github.com/SameeraMS/BusTracking-Backend/internal/core/port"
	"github.com/SameeraMS/BusTracking-Backend/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	DriverID  string           `json:"driver_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventType, driverID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	envelope := eventEnvelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		DriverID:  driverID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: envelopeMetadata{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(driverID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSessionCreated publishes transit.session.created events.
func (p *EventPublisher) PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error {
	payload := struct {
		SessionID string    `json:"session_id"`
		DriverID  string    `json:"driver_id"`
		BusID     string    `json:"bus_id"`
		RouteID   string    `json:"route_id"`
		DeviceID  string    `json:"device_id"`
		CreatedAt time.Time `json:"created_at"`
		ExpiresAt time.Time `json:"expires_at"`
	}{
		SessionID: event.SessionID,
		DriverID:  event.DriverID,
		BusID:     event.BusID,
		RouteID:   event.RouteID,
		DeviceID:  event.DeviceID,
		CreatedAt: event.CreatedAt.UTC(),
		ExpiresAt: event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, "transit.session.created", event.DriverID, event.CreatedAt, payload)
}

// PublishSessionEnded publishes transit.session.ended events.
func (p *EventPublisher) PublishSessionEnded(ctx context.Context, event domain.SessionEndedEvent) error {
	payload := struct {
		SessionID string    `json:"session_id"`
		DriverID  string    `json:"driver_id"`
		DeviceID  string    `json:"device_id"`
		EndedAt   time.Time `json:"ended_at"`
		Reason    string    `json:"reason"`
	}{
		SessionID: event.SessionID,
		DriverID:  event.DriverID,
		DeviceID:  event.DeviceID,
		EndedAt:   event.EndedAt.UTC(),
		Reason:    event.Reason,
	}

	return p.publish(ctx, "transit.session.ended", event.DriverID, event.EndedAt, payload)
}

// PublishDriverOffline publishes transit.driver.offline events.
func (p *EventPublisher) PublishDriverOffline(ctx context.Context, event domain.DriverOfflineEvent) error {
	payload := struct {
		DriverID   string    `json:"driver_id"`
		BusID      string    `json:"bus_id"`
		RouteID    string    `json:"route_id"`
		SessionID  string    `json:"session_id"`
		LastFixAt  time.Time `json:"last_fix_at"`
		DetectedAt time.Time `json:"detected_at"`
	}{
		DriverID:   event.DriverID,
		BusID:      event.BusID,
		RouteID:    event.RouteID,
		SessionID:  event.SessionID,
		LastFixAt:  event.LastFixAt.UTC(),
		DetectedAt: event.DetectedAt.UTC(),
	}

	return p.publish(ctx, "transit.driver.offline", event.DriverID, event.DetectedAt, payload)
}

// PublishLocationCommitted publishes transit.location.committed events.
func (p *EventPublisher) PublishLocationCommitted(ctx context.Context, event domain.LocationCommittedEvent) error {
	payload := struct {
		LocationID  string    `json:"location_id"`
		DriverID    string    `json:"driver_id"`
		BusID       string    `json:"bus_id"`
		RouteID     string    `json:"route_id"`
		Status      string    `json:"status"`
		Timestamp   time.Time `json:"timestamp"`
		CommittedAt time.Time `json:"committed_at"`
	}{
		LocationID:  event.LocationID,
		DriverID:    event.DriverID,
		BusID:       event.BusID,
		RouteID:     event.RouteID,
		Status:      string(event.Status),
		Timestamp:   event.Timestamp.UTC(),
		CommittedAt: event.CommittedAt.UTC(),
	}

	return p.publish(ctx, "transit.location.committed", event.DriverID, event.Timestamp, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
