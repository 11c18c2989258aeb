package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
)

func staleSession(driverID string, lastFix time.Time) domain.Session {
	last := lastFix
	return domain.Session{
		ID:                 "sess-" + driverID,
		DriverID:           driverID,
		DeviceID:           "device-" + driverID,
		BusID:              "bus-1",
		RouteID:            "route-1",
		IsActive:           true,
		CreatedAt:          lastFix.Add(-time.Hour),
		ExpiresAt:          lastFix.Add(7 * time.Hour),
		LastActivityAt:     lastFix,
		LastLocationUpdate: &last,
	}
}

func TestSweepMarksSilentDriversOffline(t *testing.T) {
	sessions := newFakeSessionRepo()
	repo := newFakeLocationRepo()
	locations := NewLocationService(repo, newFakeCache(), nil)
	hub := &recordingBroadcaster{}
	events := &recordingPublisher{}

	detector := NewOfflineDetector(sessions, locations, hub, events, nil)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	detector.WithClock(func() time.Time { return now })

	lastFix := now.Add(-45 * time.Second)
	if err := sessions.Create(context.Background(), staleSession("driver-1", lastFix)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Insert(context.Background(), fixAt("driver-1", lastFix)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if marked := detector.Sweep(context.Background()); marked != 1 {
		t.Fatalf("expected 1 driver marked, got %d", marked)
	}

	latest, err := repo.Latest(context.Background(), "driver-1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Status != domain.StatusOffline {
		t.Fatalf("expected latest fix offline, got %s", latest.Status)
	}

	// The session itself stays active; offline is not a logout.
	session, err := sessions.Get(context.Background(), "sess-driver-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !session.IsActive {
		t.Fatal("expected session to remain active")
	}

	if len(hub.statuses) != 1 || hub.statuses[0] != domain.StatusOffline {
		t.Fatalf("expected one offline status broadcast, got %v", hub.statuses)
	}
	if len(events.offline) != 1 {
		t.Fatalf("expected one offline event, got %d", len(events.offline))
	}
	event := events.offline[0]
	if event.DriverID != "driver-1" || !event.LastFixAt.Equal(lastFix) {
		t.Fatalf("unexpected offline event %+v", event)
	}
}

func TestSweepSkipsFreshDrivers(t *testing.T) {
	sessions := newFakeSessionRepo()
	repo := newFakeLocationRepo()
	locations := NewLocationService(repo, nil, nil)
	hub := &recordingBroadcaster{}

	detector := NewOfflineDetector(sessions, locations, hub, nil, nil)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	detector.WithClock(func() time.Time { return now })

	lastFix := now.Add(-10 * time.Second)
	if err := sessions.Create(context.Background(), staleSession("driver-1", lastFix)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Insert(context.Background(), fixAt("driver-1", lastFix)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if marked := detector.Sweep(context.Background()); marked != 0 {
		t.Fatalf("expected no drivers marked, got %d", marked)
	}

	latest, err := repo.Latest(context.Background(), "driver-1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Status != domain.StatusActive {
		t.Fatalf("expected latest fix still active, got %s", latest.Status)
	}
	if len(hub.statuses) != 0 {
		t.Fatalf("expected no broadcasts, got %v", hub.statuses)
	}
}

func TestSweepSkipsSessionsWithoutFixes(t *testing.T) {
	sessions := newFakeSessionRepo()
	locations := NewLocationService(newFakeLocationRepo(), nil, nil)

	detector := NewOfflineDetector(sessions, locations, nil, nil, nil)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	detector.WithClock(func() time.Time { return now })

	// Session that authenticated but never published a fix.
	session := staleSession("driver-1", now.Add(-time.Hour))
	session.LastLocationUpdate = nil
	if err := sessions.Create(context.Background(), session); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if marked := detector.Sweep(context.Background()); marked != 0 {
		t.Fatalf("expected no drivers marked, got %d", marked)
	}
}

func TestSweepCustomThreshold(t *testing.T) {
	sessions := newFakeSessionRepo()
	repo := newFakeLocationRepo()
	locations := NewLocationService(repo, nil, nil)

	detector := NewOfflineDetector(sessions, locations, nil, nil, nil)
	detector.WithThreshold(5*time.Minute, time.Minute)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	detector.WithClock(func() time.Time { return now })

	// Silent for 45s: past the default threshold but inside the override.
	lastFix := now.Add(-45 * time.Second)
	if err := sessions.Create(context.Background(), staleSession("driver-1", lastFix)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Insert(context.Background(), fixAt("driver-1", lastFix)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if marked := detector.Sweep(context.Background()); marked != 0 {
		t.Fatalf("expected no drivers marked under 5m threshold, got %d", marked)
	}
}
