package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
	"github.com/SameeraMS/BusTracking-Backend/internal/repository"
)

func TestSessionRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	createdAt := time.Now().UTC()
	session := domain.Session{
		ID:             "sess-1",
		DriverID:       "driver-1",
		BusID:          "bus-1",
		RouteID:        "route-138",
		DeviceID:       "device-123",
		CreatedAt:      createdAt,
		LastActivityAt: createdAt,
		ExpiresAt:      createdAt.Add(8 * time.Hour),
		IsActive:       true,
	}

	mock.ExpectExec(`INSERT INTO transit\.sessions`).
		WithArgs(
			session.ID,
			session.DriverID,
			session.BusID,
			session.RouteID,
			session.DeviceID,
			session.CreatedAt,
			session.LastActivityAt,
			session.ExpiresAt,
			session.IsActive,
			nil,
			nil,
			nil,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_CreateWithLocation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	createdAt := time.Now().UTC()
	session := domain.Session{
		ID:                 "sess-2",
		DriverID:           "driver-2",
		BusID:              "bus-2",
		RouteID:            "route-120",
		DeviceID:           "device-456",
		CreatedAt:          createdAt,
		LastActivityAt:     createdAt,
		ExpiresAt:          createdAt.Add(8 * time.Hour),
		IsActive:           true,
		CurrentLocation:    &domain.GeoPoint{Latitude: 6.9271, Longitude: 79.8612},
		LastLocationUpdate: &createdAt,
	}

	mock.ExpectExec(`INSERT INTO transit\.sessions`).
		WithArgs(
			session.ID,
			session.DriverID,
			session.BusID,
			session.RouteID,
			session.DeviceID,
			session.CreatedAt,
			session.LastActivityAt,
			session.ExpiresAt,
			session.IsActive,
			6.9271,
			79.8612,
			createdAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	createdAt := time.Now().UTC()
	lastLoc := createdAt.Add(5 * time.Minute)
	lat := 6.9271
	lon := 79.8612

	rows := pgxmock.NewRows(sessionColumns).AddRow(
		"sess-1", "driver-1", "bus-1", "route-138", "device-123",
		createdAt, createdAt, createdAt.Add(8*time.Hour), true,
		&lat, &lon, &lastLoc,
	)

	mock.ExpectQuery(`SELECT .*FROM transit\.sessions`).WithArgs("sess-1").WillReturnRows(rows)

	session, err := repo.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if session.ID != "sess-1" || session.DriverID != "driver-1" {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.CurrentLocation == nil || session.CurrentLocation.Latitude != lat {
		t.Fatalf("expected current location, got %+v", session.CurrentLocation)
	}
	if session.LastLocationUpdate == nil || !session.LastLocationUpdate.Equal(lastLoc) {
		t.Fatalf("expected last location update %v, got %v", lastLoc, session.LastLocationUpdate)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_GetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM transit\.sessions`).
		WithArgs("sess-missing").
		WillReturnRows(pgxmock.NewRows(sessionColumns))

	if _, err := repo.Get(context.Background(), "sess-missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_GetByDevice(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	createdAt := time.Now().UTC()
	rows := pgxmock.NewRows(sessionColumns).AddRow(
		"sess-1", "driver-1", "bus-1", "route-138", "device-123",
		createdAt, createdAt, createdAt.Add(8*time.Hour), true,
		nil, nil, nil,
	)

	mock.ExpectQuery(`SELECT .*FROM transit\.sessions`).
		WithArgs("device-123", true).
		WillReturnRows(rows)

	session, err := repo.GetByDevice(context.Background(), "device-123")
	if err != nil {
		t.Fatalf("GetByDevice returned error: %v", err)
	}
	if session.DeviceID != "device-123" {
		t.Fatalf("unexpected session %+v", session)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_Touch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE transit\.sessions SET last_activity_at`).
		WithArgs(at, "sess-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Touch(context.Background(), "sess-1", at); err != nil {
		t.Fatalf("Touch returned error: %v", err)
	}

	mock.ExpectExec(`UPDATE transit\.sessions SET last_activity_at`).
		WithArgs(at, "sess-missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Touch(context.Background(), "sess-missing", at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_RecordLocation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	at := time.Now().UTC()
	point := domain.GeoPoint{Latitude: 6.9271, Longitude: 79.8612}

	mock.ExpectExec(`UPDATE transit\.sessions SET`).
		WithArgs(point.Latitude, point.Longitude, at, at, "sess-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.RecordLocation(context.Background(), "sess-1", point, at); err != nil {
		t.Fatalf("RecordLocation returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_DeactivateExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE transit\.sessions SET is_active`).
		WithArgs(false, true, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	count, err := repo.DeactivateExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("DeactivateExpired returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 expired sessions, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_ListStale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	createdAt := time.Now().UTC()
	lastLoc := createdAt.Add(-time.Minute)
	cutoff := createdAt.Add(-30 * time.Second)

	rows := pgxmock.NewRows(sessionColumns).AddRow(
		"sess-1", "driver-1", "bus-1", "route-138", "device-123",
		createdAt, createdAt, createdAt.Add(8*time.Hour), true,
		nil, nil, &lastLoc,
	)

	mock.ExpectQuery(`SELECT .*FROM transit\.sessions`).
		WithArgs(true, cutoff).
		WillReturnRows(rows)

	stale, err := repo.ListStale(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ListStale returned error: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "sess-1" {
		t.Fatalf("unexpected stale sessions %+v", stale)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
