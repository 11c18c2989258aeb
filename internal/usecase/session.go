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
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// DefaultSessionTTL is the absolute lifetime of a driver session.
const DefaultSessionTTL = 8 * time.Hour

// SessionRegistry owns driver authorization sessions. It is the single
// source of truth for whether a device is currently allowed to publish
// location fixes.
type SessionRegistry struct {
	sessions port.SessionRepository
	events   port.EventPublisher
	logger   *zap.Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionRegistry constructs a SessionRegistry.
func NewSessionRegistry(sessions port.SessionRepository, events port.EventPublisher, logger *zap.Logger) *SessionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := &SessionRegistry{
		sessions: sessions,
		events:   events,
		logger:   logger,
		ttl:      DefaultSessionTTL,
	}
	registry.now = func() time.Time { return time.Now().UTC() }
	return registry
}

// WithClock overrides the internal clock for deterministic tests.
func (r *SessionRegistry) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// WithTTL overrides the session lifetime.
func (r *SessionRegistry) WithTTL(ttl time.Duration) {
	if ttl > 0 {
		r.ttl = ttl
	}
}

// Create issues a session for the driver's device. Creation is idempotent
// per device: while an unexpired active session exists for the device it is
// returned unchanged, so a re-login never forks a second authorization.
func (r *SessionRegistry) Create(ctx context.Context, driverID, busID, routeID, deviceID string) (*domain.Session, error) {
	now := r.now()

	existing, err := r.sessions.GetByDevice(ctx, deviceID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup device session: %w", err)
	}
	if existing != nil {
		if existing.IsValid(now) {
			return existing, nil
		}
		// Stale entry under the device index: retire it before reissuing.
		if _, err := r.end(ctx, existing, "expired"); err != nil {
			r.logger.Warn("failed to retire stale device session",
				zap.String("session_id", existing.ID),
				zap.Error(err))
		}
	}

	session := domain.Session{
		ID:             uuid.NewString(),
		DriverID:       driverID,
		BusID:          busID,
		RouteID:        routeID,
		DeviceID:       deviceID,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(r.ttl),
		IsActive:       true,
	}

	if err := r.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if r.events != nil {
		if err := r.events.PublishSessionCreated(ctx, domain.SessionCreatedEvent{
			SessionID: session.ID,
			DriverID:  session.DriverID,
			BusID:     session.BusID,
			RouteID:   session.RouteID,
			DeviceID:  session.DeviceID,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
		}); err != nil {
			r.logger.Warn("failed to publish session created event",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}

	r.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("driver_id", session.DriverID),
		zap.String("device_id", session.DeviceID),
		zap.Time("expires_at", session.ExpiresAt))

	return &session, nil
}

// Validate reports whether the session authorizes publishing right now. An
// expired session is deactivated on the spot so a second Validate also
// returns false. Success refreshes last-activity metadata but never the
// expiry. Unknown sessions fail softly with false.
func (r *SessionRegistry) Validate(ctx context.Context, sessionID string) bool {
	session, err := r.lookup(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			r.logger.Warn("session lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return false
	}

	now := r.now()
	if !session.IsActive {
		return false
	}
	if session.Expired(now) {
		if _, err := r.end(ctx, session, "expired"); err != nil {
			r.logger.Warn("failed to deactivate expired session",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
		return false
	}

	if err := r.sessions.Touch(ctx, sessionID, now); err != nil {
		r.logger.Warn("failed to touch session", zap.String("session_id", sessionID), zap.Error(err))
	}
	return true
}

// Get fetches a session by id.
func (r *SessionRegistry) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return r.lookup(ctx, sessionID)
}

// SessionFor returns the active session for a driver, or ErrSessionNotFound.
func (r *SessionRegistry) SessionFor(ctx context.Context, driverID string) (*domain.Session, error) {
	session, err := r.sessions.GetActiveByDriver(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("lookup driver session: %w", err)
	}
	return session, nil
}

// RecordLocation updates the session's current location pointer after a fix
// commit. Missing sessions are tolerated: the fix is already stored.
func (r *SessionRegistry) RecordLocation(ctx context.Context, sessionID string, point domain.GeoPoint, at time.Time) {
	if sessionID == "" {
		return
	}
	if err := r.sessions.RecordLocation(ctx, sessionID, point, at); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn("failed to record session location",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
	}
}

// End deactivates a session and removes it from the device index. Returns
// false when the session is unknown. Deactivation is the only mutation path
// out of the active state.
func (r *SessionRegistry) End(ctx context.Context, sessionID, reason string) bool {
	session, err := r.lookup(ctx, sessionID)
	if err != nil {
		return false
	}
	ended, err := r.end(ctx, session, reason)
	if err != nil {
		r.logger.Warn("failed to end session", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}
	return ended
}

// SweepExpired deactivates every session whose expiry has passed, whether or
// not anything touched it since. Returns the number of sessions retired.
func (r *SessionRegistry) SweepExpired(ctx context.Context) int {
	count, err := r.sessions.DeactivateExpired(ctx, r.now())
	if err != nil {
		r.logger.Error("expired session sweep failed", zap.Error(err))
		return 0
	}
	if count > 0 {
		r.logger.Info("expired sessions deactivated", zap.Int("count", count))
	}
	return count
}

// ActiveSessions lists sessions currently in the active state.
func (r *SessionRegistry) ActiveSessions(ctx context.Context) ([]domain.Session, error) {
	sessions, err := r.sessions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// Stats summarizes registry state for the admin surface.
func (r *SessionRegistry) Stats(ctx context.Context) (*domain.SessionStats, error) {
	sessions, err := r.sessions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	stats := &domain.SessionStats{ActiveSessions: len(sessions)}
	if len(sessions) == 0 {
		return stats, nil
	}

	now := r.now()
	oldest := sessions[0].CreatedAt
	var total time.Duration
	for _, session := range sessions {
		if session.CreatedAt.Before(oldest) {
			oldest = session.CreatedAt
		}
		total += now.Sub(session.CreatedAt)
	}
	stats.OldestCreatedAt = &oldest
	stats.AverageAge = total / time.Duration(len(sessions))
	return stats, nil
}

func (r *SessionRegistry) lookup(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	session, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (r *SessionRegistry) end(ctx context.Context, session *domain.Session, reason string) (bool, error) {
	if !session.Deactivate() {
		return false, nil
	}
	if err := r.sessions.Deactivate(ctx, session.ID); err != nil {
		return false, fmt.Errorf("deactivate session: %w", err)
	}

	if r.events != nil {
		if err := r.events.PublishSessionEnded(ctx, domain.SessionEndedEvent{
			SessionID: session.ID,
			DriverID:  session.DriverID,
			DeviceID:  session.DeviceID,
			EndedAt:   r.now(),
			Reason:    reason,
		}); err != nil {
			r.logger.Warn("failed to publish session ended event",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}

	r.logger.Info("session ended",
		zap.String("session_id", session.ID),
		zap.String("driver_id", session.DriverID),
		zap.String("reason", reason))
	return true, nil
}
