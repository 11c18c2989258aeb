package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
	"github.com/SameeraMS/BusTracking-Backend/internal/core/port"
)

var (
	// ErrSessionRequired indicates a fix was rejected because strict ingest
	// is enabled and the session did not authorize the write.
	ErrSessionRequired = errors.New("valid session required")
)

// FixValidationError carries the complete list of violated constraints for a
// rejected fix.
type FixValidationError struct {
	Violations []string
}

func (e *FixValidationError) Error() string {
	return fmt.Sprintf("invalid location fix: %d constraint(s) violated", len(e.Violations))
}

// FixSubmission is the already-parsed request body handed over by the HTTP
// layer. Optional fields are pointers so absence is distinguishable from
// zero.
type FixSubmission struct {
	DriverID  string
	BusID     string
	RouteID   string
	Latitude  *float64
	Longitude *float64
	Heading   *float64
	Speed     *float64
	Accuracy  *float64
	Status    string
	Timestamp time.Time
}

// IngestObserver receives ingest pipeline measurements. Implementations live
// in the telemetry layer; a nil observer disables instrumentation.
type IngestObserver interface {
	FixAccepted()
	FixRejected(reason string)
	QueueDepth(depth int)
}

type pendingFix struct {
	fix    domain.LocationFix
	result chan commitOutcome
}

type commitOutcome struct {
	receipt *domain.CommitReceipt
	err     error
}

// IngestService validates, authenticates, orders, and commits incoming GPS
// fixes. Fixes for a single driver are committed in non-decreasing timestamp
// order even when the network delivers them reordered.
type IngestService struct {
	registry  *SessionRegistry
	locations *LocationService
	hub       port.Broadcaster
	events    port.EventPublisher
	observer  IngestObserver
	logger    *zap.Logger
	strict    bool
	now       func() time.Time

	mu       sync.Mutex
	pending  []pendingFix
	draining bool
}

// NewIngestService constructs an IngestService. When strict is true, a fix
// without a valid session is rejected instead of accepted with degraded
// trust.
func NewIngestService(registry *SessionRegistry, locations *LocationService, hub port.Broadcaster, events port.EventPublisher, strict bool, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &IngestService{
		registry:  registry,
		locations: locations,
		hub:       hub,
		events:    events,
		logger:    logger,
		strict:    strict,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *IngestService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithObserver attaches pipeline instrumentation.
func (s *IngestService) WithObserver(observer IngestObserver) {
	s.observer = observer
}

// ValidateFix checks presence and ranges of every field and returns the full
// list of violations, not just the first.
func (s *IngestService) ValidateFix(sub FixSubmission) []string {
	var violations []string

	if sub.DriverID == "" {
		violations = append(violations, "missing required field: driverId")
	}
	if sub.BusID == "" {
		violations = append(violations, "missing required field: busId")
	}
	if sub.RouteID == "" {
		violations = append(violations, "missing required field: routeId")
	}

	switch {
	case sub.Latitude == nil:
		violations = append(violations, "missing required field: latitude")
	case *sub.Latitude < -90 || *sub.Latitude > 90:
		violations = append(violations, "invalid latitude: must be between -90 and 90")
	}

	switch {
	case sub.Longitude == nil:
		violations = append(violations, "missing required field: longitude")
	case *sub.Longitude < -180 || *sub.Longitude > 180:
		violations = append(violations, "invalid longitude: must be between -180 and 180")
	}

	switch {
	case sub.Accuracy == nil:
		violations = append(violations, "missing required field: accuracy")
	case *sub.Accuracy < 0:
		violations = append(violations, "invalid accuracy: must be non-negative")
	}

	if sub.Heading != nil && (*sub.Heading < 0 || *sub.Heading > 360) {
		violations = append(violations, "invalid heading: must be between 0 and 360")
	}
	if sub.Speed != nil && *sub.Speed < 0 {
		violations = append(violations, "invalid speed: must be non-negative")
	}
	if sub.Status != "" && !domain.KnownStatus(domain.FixStatus(sub.Status)) {
		violations = append(violations, "invalid status: must be one of active, idle, offline")
	}

	return violations
}

// Submit runs the full pipeline for one fix: validate, authenticate against
// the session registry, enqueue for ordered commit, and block until the fix
// has been drained. The returned receipt reflects the durable commit.
func (s *IngestService) Submit(ctx context.Context, sub FixSubmission, sessionID string) (*domain.CommitReceipt, error) {
	if violations := s.ValidateFix(sub); len(violations) > 0 {
		s.logger.Warn("fix validation failed",
			zap.String("driver_id", sub.DriverID),
			zap.Strings("violations", violations))
		s.observeRejected("validation")
		return nil, &FixValidationError{Violations: violations}
	}

	authorized := s.registry.Validate(ctx, sessionID)
	if !authorized {
		if s.strict {
			s.observeRejected("auth")
			return nil, ErrSessionRequired
		}
		// Availability over strict auth: tracking data is accepted with
		// degraded trust and the gap is logged for later reconciliation.
		s.logger.Warn("session missing or expired, accepting fix with degraded trust",
			zap.String("session_id", sessionID),
			zap.String("driver_id", sub.DriverID))
	} else if session, err := s.registry.Get(ctx, sessionID); err == nil {
		if session.DriverID != sub.DriverID || session.BusID != sub.BusID || session.RouteID != sub.RouteID {
			s.logger.Warn("fix does not match session assignment",
				zap.String("session_id", sessionID),
				zap.String("session_driver", session.DriverID),
				zap.String("fix_driver", sub.DriverID))
		}
	}

	fix := s.buildFix(sub, sessionID)
	outcome := s.enqueue(ctx, fix)
	if outcome.err != nil {
		return nil, outcome.err
	}
	return outcome.receipt, nil
}

// UpdateStatus applies an explicit driver status change. Unlike fix
// submission there is no degraded-trust path here: a missing or expired
// session is a hard failure.
func (s *IngestService) UpdateStatus(ctx context.Context, driverID, sessionID string, status domain.FixStatus) (*domain.LocationFix, error) {
	if !domain.KnownStatus(status) {
		return nil, &FixValidationError{Violations: []string{"invalid status: must be one of active, idle, offline"}}
	}

	if !s.registry.Validate(ctx, sessionID) {
		return nil, ErrSessionRequired
	}

	fix, err := s.locations.SetStatus(ctx, driverID, status)
	if err != nil {
		return nil, err
	}

	s.hub.PublishStatusChange(driverID, status, fix.BusID, fix.RouteID)

	s.logger.Info("driver status updated",
		zap.String("driver_id", driverID),
		zap.String("status", string(status)))
	return fix, nil
}

func (s *IngestService) buildFix(sub FixSubmission, sessionID string) domain.LocationFix {
	fix := domain.LocationFix{
		ID:        uuid.NewString(),
		DriverID:  sub.DriverID,
		BusID:     sub.BusID,
		RouteID:   sub.RouteID,
		Latitude:  *sub.Latitude,
		Longitude: *sub.Longitude,
		Accuracy:  *sub.Accuracy,
		Status:    domain.StatusActive,
		SessionID: sessionID,
		Timestamp: sub.Timestamp,
	}
	if sub.Heading != nil {
		fix.Heading = *sub.Heading
	}
	if sub.Speed != nil {
		fix.Speed = *sub.Speed
	}
	if sub.Status != "" {
		fix.Status = domain.FixStatus(sub.Status)
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = s.now()
	}
	return fix
}

// enqueue inserts the fix into the ordering queue and blocks until the
// drainer resolves it. The whole pending queue is re-sorted by timestamp on
// every insert; n is bounded by burst size, so correctness wins over
// throughput here.
func (s *IngestService) enqueue(ctx context.Context, fix domain.LocationFix) commitOutcome {
	item := pendingFix{fix: fix, result: make(chan commitOutcome, 1)}

	s.mu.Lock()
	s.pending = append(s.pending, item)
	sort.SliceStable(s.pending, func(i, j int) bool {
		return s.pending[i].fix.Timestamp.Before(s.pending[j].fix.Timestamp)
	})
	s.observeDepth(len(s.pending))
	start := !s.draining
	if start {
		s.draining = true
	}
	s.mu.Unlock()

	if start {
		go s.drain()
	}

	select {
	case outcome := <-item.result:
		return outcome
	case <-ctx.Done():
		// The fix stays queued; there is no mid-flight cancellation of a
		// committed position. The caller just stops waiting.
		return commitOutcome{err: ctx.Err()}
	}
}

// drain commits queued fixes head-first. Exactly one drainer runs at a time,
// guarded by the draining flag.
func (s *IngestService) drain() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		item := s.pending[0]
		s.pending = s.pending[1:]
		s.observeDepth(len(s.pending))
		s.mu.Unlock()

		receipt, err := s.commit(context.Background(), item.fix)
		if err != nil {
			s.logger.Error("fix commit failed",
				zap.String("driver_id", item.fix.DriverID),
				zap.Time("fix_time", item.fix.Timestamp),
				zap.Error(err))
			s.observeRejected("storage")
			item.result <- commitOutcome{err: err}
			continue
		}
		if s.observer != nil {
			s.observer.FixAccepted()
		}
		item.result <- commitOutcome{receipt: receipt}
	}
}

func (s *IngestService) commit(ctx context.Context, fix domain.LocationFix) (*domain.CommitReceipt, error) {
	receipt, err := s.locations.Commit(ctx, fix)
	if err != nil {
		return nil, err
	}

	s.registry.RecordLocation(ctx, fix.SessionID, fix.Point(), fix.Timestamp)

	if s.events != nil {
		if err := s.events.PublishLocationCommitted(ctx, domain.LocationCommittedEvent{
			LocationID:  receipt.LocationID,
			DriverID:    fix.DriverID,
			BusID:       fix.BusID,
			RouteID:     fix.RouteID,
			Status:      fix.Status,
			Timestamp:   fix.Timestamp,
			CommittedAt: s.now(),
		}); err != nil {
			s.logger.Warn("failed to publish location committed event", zap.Error(err))
		}
	}

	if s.hub != nil {
		s.hub.PublishLocationUpdate(fix)
	}

	return receipt, nil
}

func (s *IngestService) observeRejected(reason string) {
	if s.observer != nil {
		s.observer.FixRejected(reason)
	}
}

func (s *IngestService) observeDepth(depth int) {
	if s.observer != nil {
		s.observer.QueueDepth(depth)
	}
}
