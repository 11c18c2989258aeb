package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
	"github.com/SameeraMS/BusTracking-Backend/internal/core/port"
	"github.com/SameeraMS/BusTracking-Backend/internal/repository"
)

var (
	// ErrLocationNotFound indicates no fix exists for the requested driver or bus.
	ErrLocationNotFound = errors.New("location not found")
)

const (
	// DefaultHistoryCap is the maximum number of fixes retained per driver.
	DefaultHistoryCap = 100
	// DefaultHistoryMaxAge is the age past which fixes are deleted regardless
	// of the retention cap.
	DefaultHistoryMaxAge = 24 * time.Hour
	// DefaultFreshnessWindow bounds how old a driver's latest fix may be to
	// still count as live.
	DefaultFreshnessWindow = 30 * time.Second
)

// LocationService owns the durable location history: bounded per-driver
// append log, the hot most-recent-fix read path, and route/bus scoped reads
// for viewer initial state.
type LocationService struct {
	locations  port.LocationRepository
	cache      port.CurrentLocationCache
	logger     *zap.Logger
	historyCap int
	maxAge     time.Duration
	now        func() time.Time
}

// NewLocationService constructs a LocationService.
func NewLocationService(locations port.LocationRepository, cache port.CurrentLocationCache, logger *zap.Logger) *LocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &LocationService{
		locations:  locations,
		cache:      cache,
		logger:     logger,
		historyCap: DefaultHistoryCap,
		maxAge:     DefaultHistoryMaxAge,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *LocationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithRetention overrides history cap and maximum fix age.
func (s *LocationService) WithRetention(cap int, maxAge time.Duration) {
	if cap > 0 {
		s.historyCap = cap
	}
	if maxAge > 0 {
		s.maxAge = maxAge
	}
}

// Commit appends the fix to the driver's history, refreshes the hot cache,
// and trims retention for that driver. The fix is immutable from here on.
func (s *LocationService) Commit(ctx context.Context, fix domain.LocationFix) (*domain.CommitReceipt, error) {
	if err := s.locations.Insert(ctx, fix); err != nil {
		return nil, fmt.Errorf("insert fix: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, fix); err != nil {
			s.logger.Warn("failed to cache current location",
				zap.String("driver_id", fix.DriverID),
				zap.Error(err))
		}
	}

	s.cleanup(ctx, fix.DriverID)

	return &domain.CommitReceipt{LocationID: fix.ID, Timestamp: fix.Timestamp}, nil
}

// Current returns the most recent fix for a driver, cache first.
func (s *LocationService) Current(ctx context.Context, driverID string) (*domain.LocationFix, error) {
	if s.cache != nil {
		fix, found, err := s.cache.Get(ctx, driverID)
		if err != nil {
			s.logger.Warn("current location cache read failed",
				zap.String("driver_id", driverID),
				zap.Error(err))
		} else if found {
			return fix, nil
		}
	}

	fix, err := s.locations.Latest(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("latest fix: %w", err)
	}
	return fix, nil
}

// History returns up to limit most recent fixes for the driver, oldest
// first. A driver with no history yields an empty slice, not an error.
func (s *LocationService) History(ctx context.Context, driverID string, limit int) ([]domain.LocationFix, error) {
	if limit <= 0 || limit > s.historyCap {
		limit = s.historyCap
	}
	fixes, err := s.locations.History(ctx, driverID, limit)
	if err != nil {
		return nil, fmt.Errorf("fix history: %w", err)
	}
	return fixes, nil
}

// Active returns one fix per driver: the most recent, for drivers whose
// latest fix is newer than now-threshold and not offline.
func (s *LocationService) Active(ctx context.Context, threshold time.Duration) ([]domain.LocationFix, error) {
	if threshold <= 0 {
		threshold = DefaultFreshnessWindow
	}
	cutoff := s.now().Add(-threshold)
	fixes, err := s.locations.LatestPerDriver(ctx, cutoff, []domain.FixStatus{domain.StatusActive, domain.StatusIdle})
	if err != nil {
		return nil, fmt.Errorf("latest fixes per driver: %w", err)
	}
	return fixes, nil
}

// ByBus returns the latest fix reported for a bus.
func (s *LocationService) ByBus(ctx context.Context, busID string) (*domain.LocationFix, error) {
	fix, err := s.locations.LatestByBus(ctx, busID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("latest fix by bus: %w", err)
	}
	return fix, nil
}

// ByRoute returns the latest fix per driver currently reporting on a route.
func (s *LocationService) ByRoute(ctx context.Context, routeID string) ([]domain.LocationFix, error) {
	fixes, err := s.locations.LatestPerDriverOnRoute(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("latest fixes by route: %w", err)
	}
	return fixes, nil
}

// MarkOffline rewrites the status of the driver's fix at the given timestamp.
// Reserved for the offline detector.
func (s *LocationService) MarkOffline(ctx context.Context, driverID string, at time.Time) error {
	if err := s.locations.MarkStatus(ctx, driverID, at, domain.StatusOffline); err != nil {
		return fmt.Errorf("mark fix offline: %w", err)
	}
	if s.cache != nil {
		fix, found, err := s.cache.Get(ctx, driverID)
		if err == nil && found && fix.Timestamp.Equal(at) {
			fix.Status = domain.StatusOffline
			if err := s.cache.Set(ctx, *fix); err != nil {
				s.logger.Warn("failed to refresh cached status",
					zap.String("driver_id", driverID),
					zap.Error(err))
			}
		}
	}
	return nil
}

// SetStatus rewrites the status of the driver's latest fix and returns the
// updated fix. Used by the explicit status-update endpoint.
func (s *LocationService) SetStatus(ctx context.Context, driverID string, status domain.FixStatus) (*domain.LocationFix, error) {
	fix, err := s.locations.Latest(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("latest fix: %w", err)
	}

	if err := s.locations.MarkStatus(ctx, driverID, fix.Timestamp, status); err != nil {
		return nil, fmt.Errorf("mark fix status: %w", err)
	}
	fix.Status = status

	if s.cache != nil {
		if err := s.cache.Set(ctx, *fix); err != nil {
			s.logger.Warn("failed to refresh cached status",
				zap.String("driver_id", driverID),
				zap.Error(err))
		}
	}
	return fix, nil
}

// cleanup applies both retention policies for a driver: the sliding count cap
// and the independent age bound. Failures are logged, never surfaced; the
// commit already succeeded.
func (s *LocationService) cleanup(ctx context.Context, driverID string) {
	if trimmed, err := s.locations.TrimHistory(ctx, driverID, s.historyCap); err != nil {
		s.logger.Warn("history trim failed", zap.String("driver_id", driverID), zap.Error(err))
	} else if trimmed > 0 {
		s.logger.Debug("history trimmed",
			zap.String("driver_id", driverID),
			zap.Int("evicted", trimmed))
	}

	cutoff := s.now().Add(-s.maxAge)
	if _, err := s.locations.DeleteOlderThan(ctx, cutoff); err != nil {
		s.logger.Warn("aged fix cleanup failed", zap.Error(err))
	}
}
