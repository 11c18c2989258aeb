package port

import (
	"context"
	"time"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
)

// DriverRepository stores registered drivers.
type DriverRepository interface {
	Create(ctx context.Context, driver domain.Driver) error
	Get(ctx context.Context, driverID string) (*domain.Driver, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Driver, error)
	GetByBus(ctx context.Context, busID string) (*domain.Driver, error)
	ListByRoute(ctx context.Context, routeID string) ([]domain.Driver, error)
	List(ctx context.Context) ([]domain.Driver, error)
	UpdateDevice(ctx context.Context, driverID, deviceID string) error
	UpdateActivity(ctx context.Context, driverID string, active bool, lastSeen time.Time) error
	Delete(ctx context.Context, driverID string) error
}
