package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
	"github.com/SameeraMS/BusTracking-Backend/internal/core/port"
	"github.com/SameeraMS/BusTracking-Backend/internal/repository"
)

var (
	// ErrDriverNotFound indicates the requested driver does not exist.
	ErrDriverNotFound = errors.New("driver not found")
	// ErrDeviceMismatch indicates a login attempt from a device other than
	// the one bound to the driver.
	ErrDeviceMismatch = errors.New("device not registered to driver")
)

// DriverValidationError carries all missing registration fields.
type DriverValidationError struct {
	Violations []string
}

func (e *DriverValidationError) Error() string {
	return fmt.Sprintf("invalid driver registration: %d constraint(s) violated", len(e.Violations))
}

// DefaultOnlineWindow is how recently a driver must have been seen to be
// reported online on the admin surface.
const DefaultOnlineWindow = 2 * time.Minute

// DriverRegistration is the already-parsed registration request body.
type DriverRegistration struct {
	Name          string
	Phone         string
	LicenseNumber string
	BusID         string
	RouteID       string
	DeviceID      string
}

// DriverWithStatus augments a driver with the derived online flag.
type DriverWithStatus struct {
	domain.Driver
	IsOnline bool
}

// DriverService handles driver registration, phone+device login, and the
// admin fleet surface. Login issues sessions through the SessionRegistry.
type DriverService struct {
	drivers  port.DriverRepository
	registry *SessionRegistry
	logger   *zap.Logger
	now      func() time.Time
}

// NewDriverService constructs a DriverService.
func NewDriverService(drivers port.DriverRepository, registry *SessionRegistry, logger *zap.Logger) *DriverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &DriverService{
		drivers:  drivers,
		registry: registry,
		logger:   logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *DriverService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Register creates a new driver record. All fields are required; the full
// list of missing ones is returned at once.
func (s *DriverService) Register(ctx context.Context, reg DriverRegistration) (*domain.Driver, error) {
	var violations []string
	if reg.Name == "" {
		violations = append(violations, "missing required field: name")
	}
	if reg.Phone == "" {
		violations = append(violations, "missing required field: phone")
	}
	if reg.LicenseNumber == "" {
		violations = append(violations, "missing required field: licenseNumber")
	}
	if reg.BusID == "" {
		violations = append(violations, "missing required field: busId")
	}
	if reg.RouteID == "" {
		violations = append(violations, "missing required field: routeId")
	}
	if reg.DeviceID == "" {
		violations = append(violations, "missing required field: deviceId")
	}
	if len(violations) > 0 {
		return nil, &DriverValidationError{Violations: violations}
	}

	now := s.now()
	driver := domain.Driver{
		ID:            fmt.Sprintf("driver_%s", uuid.NewString()),
		Name:          reg.Name,
		Phone:         reg.Phone,
		LicenseNumber: reg.LicenseNumber,
		BusID:         reg.BusID,
		RouteID:       reg.RouteID,
		DeviceID:      reg.DeviceID,
		IsActive:      false,
		LastSeen:      now,
		CreatedAt:     now,
	}

	if err := s.drivers.Create(ctx, driver); err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}

	s.logger.Info("driver registered",
		zap.String("driver_id", driver.ID),
		zap.String("bus_id", driver.BusID),
		zap.String("route_id", driver.RouteID))
	return &driver, nil
}

// Login authenticates a driver by phone and device. A driver with no bound
// device adopts the presented one; a bound driver logging in from another
// device is rejected. The returned session comes from the SessionRegistry
// and is idempotent per device.
func (s *DriverService) Login(ctx context.Context, phone, deviceID string) (*domain.Driver, *domain.Session, error) {
	driver, err := s.drivers.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrDriverNotFound
		}
		return nil, nil, fmt.Errorf("lookup driver by phone: %w", err)
	}

	if driver.DeviceID != "" && driver.DeviceID != deviceID {
		return nil, nil, ErrDeviceMismatch
	}
	if driver.DeviceID == "" {
		if err := s.drivers.UpdateDevice(ctx, driver.ID, deviceID); err != nil {
			return nil, nil, fmt.Errorf("bind device: %w", err)
		}
		driver.DeviceID = deviceID
	}

	session, err := s.registry.Create(ctx, driver.ID, driver.BusID, driver.RouteID, deviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("issue session: %w", err)
	}

	now := s.now()
	if err := s.drivers.UpdateActivity(ctx, driver.ID, true, now); err != nil {
		s.logger.Warn("failed to update driver activity",
			zap.String("driver_id", driver.ID),
			zap.Error(err))
	}
	driver.IsActive = true
	driver.LastSeen = now

	return driver, session, nil
}

// Logout ends the driver's session and flags the driver inactive.
func (s *DriverService) Logout(ctx context.Context, sessionID string) bool {
	session, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return false
	}
	if !s.registry.End(ctx, sessionID, "logout") {
		return false
	}
	if err := s.drivers.UpdateActivity(ctx, session.DriverID, false, s.now()); err != nil {
		s.logger.Warn("failed to flag driver inactive",
			zap.String("driver_id", session.DriverID),
			zap.Error(err))
	}
	return true
}

// Get fetches one driver.
func (s *DriverService) Get(ctx context.Context, driverID string) (*domain.Driver, error) {
	driver, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("get driver: %w", err)
	}
	return driver, nil
}

// ByBus fetches the driver currently assigned to a bus.
func (s *DriverService) ByBus(ctx context.Context, busID string) (*domain.Driver, error) {
	driver, err := s.drivers.GetByBus(ctx, busID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("get driver by bus: %w", err)
	}
	return driver, nil
}

// List returns all drivers with the derived online flag.
func (s *DriverService) List(ctx context.Context) ([]DriverWithStatus, error) {
	drivers, err := s.drivers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}

	now := s.now()
	out := make([]DriverWithStatus, 0, len(drivers))
	for _, driver := range drivers {
		out = append(out, DriverWithStatus{
			Driver:   driver,
			IsOnline: driver.Online(now, DefaultOnlineWindow),
		})
	}
	return out, nil
}

// Remove deletes a driver record. Returns ErrDriverNotFound for unknown ids.
func (s *DriverService) Remove(ctx context.Context, driverID string) error {
	if err := s.drivers.Delete(ctx, driverID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDriverNotFound
		}
		return fmt.Errorf("delete driver: %w", err)
	}
	s.logger.Info("driver removed", zap.String("driver_id", driverID))
	return nil
}

// Stats aggregates fleet counts.
func (s *DriverService) Stats(ctx context.Context) (*domain.DriverStats, error) {
	drivers, err := s.drivers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}

	now := s.now()
	stats := &domain.DriverStats{TotalDrivers: len(drivers)}
	for _, driver := range drivers {
		if driver.IsActive && driver.Online(now, DefaultOnlineWindow) {
			stats.ActiveDrivers++
		}
	}
	stats.OfflineDrivers = stats.TotalDrivers - stats.ActiveDrivers
	return stats, nil
}
