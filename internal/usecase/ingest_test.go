package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
)

func float(v float64) *float64 { return &v }

func validSubmission(driverID string, ts time.Time) FixSubmission {
	return FixSubmission{
		DriverID:  driverID,
		BusID:     "bus-1",
		RouteID:   "route-1",
		Latitude:  float(6.9271),
		Longitude: float(79.8612),
		Accuracy:  float(5),
		Timestamp: ts,
	}
}

func newIngestFixture(strict bool) (*IngestService, *fakeSessionRepo, *fakeLocationRepo, *recordingBroadcaster, *recordingPublisher) {
	sessions := newFakeSessionRepo()
	locations := newFakeLocationRepo()
	hub := &recordingBroadcaster{}
	events := &recordingPublisher{}

	registry := NewSessionRegistry(sessions, events, nil)
	store := NewLocationService(locations, newFakeCache(), nil)
	// Retention cleanup runs against this clock; keep it near the fixture
	// timestamps so aged-fix deletion stays out of the way.
	store.WithClock(func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) })
	service := NewIngestService(registry, store, hub, events, strict, nil)
	return service, sessions, locations, hub, events
}

func TestValidateFixCollectsAllViolations(t *testing.T) {
	service, _, _, _, _ := newIngestFixture(false)

	badLat := 95.0
	badHeading := 420.0
	violations := service.ValidateFix(FixSubmission{
		DriverID: "driver-1",
		Latitude: &badLat,
		Heading:  &badHeading,
	})

	// busId, routeId, longitude, accuracy missing; latitude and heading out
	// of range.
	if len(violations) != 6 {
		t.Fatalf("expected 6 violations, got %d: %v", len(violations), violations)
	}
}

func TestSubmitRejectsInvalidFix(t *testing.T) {
	service, _, locations, _, _ := newIngestFixture(false)

	_, err := service.Submit(context.Background(), FixSubmission{}, "")
	var validationErr *FixValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected FixValidationError, got %v", err)
	}
	if locations.count("") != 0 {
		t.Fatal("invalid fix must not reach the store")
	}
}

func TestSubmitAcceptsWithoutSessionByDefault(t *testing.T) {
	service, _, locations, hub, _ := newIngestFixture(false)

	ts := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	receipt, err := service.Submit(context.Background(), validSubmission("driver-1", ts), "no-such-session")
	if err != nil {
		t.Fatalf("expected degraded-trust accept, got %v", err)
	}
	if receipt == nil || !receipt.Timestamp.Equal(ts) {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if locations.count("driver-1") != 1 {
		t.Fatal("expected fix to be stored")
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if len(hub.fixes) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(hub.fixes))
	}
}

func TestSubmitStrictRequiresSession(t *testing.T) {
	service, _, locations, _, _ := newIngestFixture(true)

	ts := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err := service.Submit(context.Background(), validSubmission("driver-1", ts), "no-such-session")
	if !errors.Is(err, ErrSessionRequired) {
		t.Fatalf("expected ErrSessionRequired, got %v", err)
	}
	if locations.count("driver-1") != 0 {
		t.Fatal("rejected fix must not reach the store")
	}
}

func TestSubmitWithValidSessionRecordsLocation(t *testing.T) {
	service, sessions, _, _, events := newIngestFixture(true)

	registry := NewSessionRegistry(sessions, nil, nil)
	session, err := registry.Create(context.Background(), "driver-1", "bus-1", "route-1", "device-1")
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}

	ts := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := service.Submit(context.Background(), validSubmission("driver-1", ts), session.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	stored, err := sessions.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if stored.LastLocationUpdate == nil || !stored.LastLocationUpdate.Equal(ts) {
		t.Fatalf("expected session location pointer at %v, got %v", ts, stored.LastLocationUpdate)
	}

	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.committed) != 1 {
		t.Fatalf("expected one committed event, got %d", len(events.committed))
	}
}

func TestQueueCommitsInTimestampOrder(t *testing.T) {
	service, _, locations, _, _ := newIngestFixture(false)

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	// Hold the drainer off until every fix is queued, then drain once. This
	// mirrors a burst arriving while a commit is in flight.
	service.mu.Lock()
	service.draining = true
	service.mu.Unlock()

	arrivals := []time.Duration{2 * time.Second, 0, time.Second}
	var wg sync.WaitGroup
	for _, offset := range arrivals {
		wg.Add(1)
		go func(ts time.Time) {
			defer wg.Done()
			if _, err := service.Submit(context.Background(), validSubmission("driver-1", ts), ""); err != nil {
				t.Errorf("Submit(%v): %v", ts, err)
			}
		}(base.Add(offset))
	}

	// Wait until all three sit in the ordering queue.
	deadline := time.Now().Add(2 * time.Second)
	for {
		service.mu.Lock()
		queued := len(service.pending)
		service.mu.Unlock()
		if queued == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d fixes queued before deadline", queued)
		}
		time.Sleep(time.Millisecond)
	}

	go service.drain()
	wg.Wait()

	locations.mu.Lock()
	order := append([]time.Time(nil), locations.insertOrder...)
	locations.mu.Unlock()

	if len(order) != 3 {
		t.Fatalf("expected 3 commits, got %d", len(order))
	}
	for i, want := range []time.Duration{0, time.Second, 2 * time.Second} {
		if !order[i].Equal(base.Add(want)) {
			t.Fatalf("commit %d at %v, want %v", i, order[i], base.Add(want))
		}
	}
}

func TestSubmitSurfacesStorageFailure(t *testing.T) {
	service, _, locations, _, _ := newIngestFixture(false)

	locations.mu.Lock()
	locations.insertErr = errors.New("disk full")
	locations.mu.Unlock()

	_, err := service.Submit(context.Background(), validSubmission("driver-1", time.Now().UTC()), "")
	if err == nil {
		t.Fatal("expected storage failure to surface")
	}
}

func TestUpdateStatusRequiresValidSession(t *testing.T) {
	service, sessions, locations, hub, _ := newIngestFixture(false)

	_, err := service.UpdateStatus(context.Background(), "driver-1", "no-such-session", domain.StatusIdle)
	if !errors.Is(err, ErrSessionRequired) {
		t.Fatalf("expected ErrSessionRequired, got %v", err)
	}

	registry := NewSessionRegistry(sessions, nil, nil)
	session, err := registry.Create(context.Background(), "driver-1", "bus-1", "route-1", "device-1")
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}

	ts := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := locations.Insert(context.Background(), domain.LocationFix{
		ID: "fix-1", DriverID: "driver-1", BusID: "bus-1", RouteID: "route-1",
		Status: domain.StatusActive, Timestamp: ts,
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	fix, err := service.UpdateStatus(context.Background(), "driver-1", session.ID, domain.StatusIdle)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if fix.Status != domain.StatusIdle {
		t.Fatalf("expected idle, got %s", fix.Status)
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if len(hub.statuses) != 1 || hub.statuses[0] != domain.StatusIdle {
		t.Fatalf("expected one idle status broadcast, got %v", hub.statuses)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	service, _, _, _, _ := newIngestFixture(false)

	_, err := service.UpdateStatus(context.Background(), "driver-1", "s", domain.FixStatus("sleeping"))
	var validationErr *FixValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected FixValidationError, got %v", err)
	}
}
