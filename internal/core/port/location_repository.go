package port

import (
	"context"
	"time"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
)

// LocationRepository stores the append-only location history. Fixes are keyed
// by (driver id, timestamp) and carry retention fields.
type LocationRepository interface {
	Insert(ctx context.Context, fix domain.LocationFix) error
	Latest(ctx context.Context, driverID string) (*domain.LocationFix, error)
	// History returns up to limit most recent fixes for the driver in
	// chronological (oldest first) order.
	History(ctx context.Context, driverID string, limit int) ([]domain.LocationFix, error)
	// LatestPerDriver returns the most recent fix for every driver whose
	// latest fix is newer than the cutoff and whose status is in statuses.
	LatestPerDriver(ctx context.Context, cutoff time.Time, statuses []domain.FixStatus) ([]domain.LocationFix, error)
	LatestByBus(ctx context.Context, busID string) (*domain.LocationFix, error)
	LatestPerDriverOnRoute(ctx context.Context, routeID string) ([]domain.LocationFix, error)
	// TrimHistory deletes all but the keep most recent fixes for the driver
	// and returns the number of rows removed.
	TrimHistory(ctx context.Context, driverID string, keep int) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	// MarkStatus rewrites the status of the fix identified by driver id and
	// timestamp. Used only by the offline detector.
	MarkStatus(ctx context.Context, driverID string, at time.Time, status domain.FixStatus) error
}
