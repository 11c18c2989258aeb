package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
	"github.com/SameeraMS/BusTracking-Backend/internal/core/port"
)

const (
	// DefaultOfflineThreshold is the silence window after which a driver's
	// latest fix is marked offline. Intentionally much tighter than session
	// expiry: offline is a liveness signal, expired is an authorization one.
	DefaultOfflineThreshold = 30 * time.Second
	// DefaultDetectorPeriod is how often the sweep runs.
	DefaultDetectorPeriod = 30 * time.Second
)

// OfflineDetector periodically marks drivers silent past the threshold. It
// never deactivates sessions; a driver that resumes publishing reappears as
// active without re-authenticating.
type OfflineDetector struct {
	sessions  port.SessionRepository
	locations *LocationService
	hub       port.Broadcaster
	events    port.EventPublisher
	logger    *zap.Logger
	threshold time.Duration
	period    time.Duration
	now       func() time.Time
}

// NewOfflineDetector constructs an OfflineDetector.
func NewOfflineDetector(sessions port.SessionRepository, locations *LocationService, hub port.Broadcaster, events port.EventPublisher, logger *zap.Logger) *OfflineDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	detector := &OfflineDetector{
		sessions:  sessions,
		locations: locations,
		hub:       hub,
		events:    events,
		logger:    logger,
		threshold: DefaultOfflineThreshold,
		period:    DefaultDetectorPeriod,
	}
	detector.now = func() time.Time { return time.Now().UTC() }
	return detector
}

// WithClock overrides the internal clock for deterministic tests.
func (d *OfflineDetector) WithClock(clock func() time.Time) {
	if clock != nil {
		d.now = clock
	}
}

// WithThreshold overrides the silence window and sweep period.
func (d *OfflineDetector) WithThreshold(threshold, period time.Duration) {
	if threshold > 0 {
		d.threshold = threshold
	}
	if period > 0 {
		d.period = period
	}
}

// Run sweeps on a fixed period until the context is cancelled.
func (d *OfflineDetector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	d.logger.Info("offline detector started",
		zap.Duration("threshold", d.threshold),
		zap.Duration("period", d.period))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("offline detector stopped")
			return
		case <-ticker.C:
			d.Sweep(ctx)
		}
	}
}

// Sweep marks the most recent fix of every silent driver offline and emits a
// status change for each. Returns the number of drivers marked.
func (d *OfflineDetector) Sweep(ctx context.Context) int {
	cutoff := d.now().Add(-d.threshold)
	stale, err := d.sessions.ListStale(ctx, cutoff)
	if err != nil {
		d.logger.Error("stale session scan failed", zap.Error(err))
		return 0
	}

	marked := 0
	for _, session := range stale {
		if session.LastLocationUpdate == nil {
			continue
		}
		lastFix := *session.LastLocationUpdate
		if err := d.locations.MarkOffline(ctx, session.DriverID, lastFix); err != nil {
			d.logger.Warn("failed to mark driver offline",
				zap.String("driver_id", session.DriverID),
				zap.Error(err))
			continue
		}
		marked++

		if d.hub != nil {
			d.hub.PublishStatusChange(session.DriverID, domain.StatusOffline, session.BusID, session.RouteID)
		}
		if d.events != nil {
			if err := d.events.PublishDriverOffline(ctx, domain.DriverOfflineEvent{
				DriverID:   session.DriverID,
				BusID:      session.BusID,
				RouteID:    session.RouteID,
				SessionID:  session.ID,
				LastFixAt:  lastFix,
				DetectedAt: d.now(),
			}); err != nil {
				d.logger.Warn("failed to publish driver offline event",
					zap.String("driver_id", session.DriverID),
					zap.Error(err))
			}
		}
	}

	if marked > 0 {
		d.logger.Info("drivers marked offline", zap.Int("count", marked))
	}
	return marked
}
