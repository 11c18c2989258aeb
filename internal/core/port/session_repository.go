package port

import (
	"context"
	"time"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
)

// SessionRepository deals with durable session storage. Sessions are keyed by
// id with a secondary index on device id.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByDevice(ctx context.Context, deviceID string) (*domain.Session, error)
	GetActiveByDriver(ctx context.Context, driverID string) (*domain.Session, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error
	RecordLocation(ctx context.Context, sessionID string, point domain.GeoPoint, at time.Time) error
	Deactivate(ctx context.Context, sessionID string) error
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
	ListActive(ctx context.Context) ([]domain.Session, error)
	ListStale(ctx context.Context, cutoff time.Time) ([]domain.Session, error)
}
