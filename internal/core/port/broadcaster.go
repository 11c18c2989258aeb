package port

import "github.com/SameeraMS/BusTracking-Backend/internal/core/domain"

// Broadcaster fans events out to subscribed viewers. Implementations must
// isolate per-connection send failures; a failing viewer never aborts
// delivery to the rest.
type Broadcaster interface {
	PublishLocationUpdate(fix domain.LocationFix)
	PublishStatusChange(driverID string, status domain.FixStatus, busID, routeID string)
}
