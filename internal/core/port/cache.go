package port

import (
	"context"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
)

// CurrentLocationCache keeps the most recent fix per driver for the hot read
// path. A miss is reported with found=false, never as an error.
type CurrentLocationCache interface {
	Set(ctx context.Context, fix domain.LocationFix) error
	Get(ctx context.Context, driverID string) (fix *domain.LocationFix, found bool, err error)
	Delete(ctx context.Context, driverID string) error
}
