package port

import (
	"context"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error
	PublishSessionEnded(ctx context.Context, event domain.SessionEndedEvent) error
	PublishDriverOffline(ctx context.Context, event domain.DriverOfflineEvent) error
	PublishLocationCommitted(ctx context.Context, event domain.LocationCommittedEvent) error
}
