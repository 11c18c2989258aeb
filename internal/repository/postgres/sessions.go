package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
	"github.com/SameeraMS/BusTracking-Backend/internal/repository"
)

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
// Sessions are keyed by id; device_id carries a partial unique index over
// active rows so a device holds at most one active session.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var sessionColumns = []string{
	"id",
	"driver_id",
	"bus_id",
	"route_id",
	"device_id",
	"created_at",
	"last_activity_at",
	"expires_at",
	"is_active",
	"current_lat",
	"current_lon",
	"last_location_update",
}

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	// Untyped nils bind as NULL; typed nil pointers confuse arg matching in
	// mocked executors.
	var lat, lon, lastLoc any
	if session.CurrentLocation != nil {
		lat = session.CurrentLocation.Latitude
		lon = session.CurrentLocation.Longitude
	}
	if session.LastLocationUpdate != nil {
		lastLoc = *session.LastLocationUpdate
	}

	sqlStmt, args, err := r.builder.Insert("transit.sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.DriverID,
			session.BusID,
			session.RouteID,
			session.DeviceID,
			session.CreatedAt,
			session.LastActivityAt,
			session.ExpiresAt,
			session.IsActive,
			lat,
			lon,
			lastLoc,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sqlStmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get fetches a session by its identifier.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	stmt, args, err := r.builder.Select(sessionColumns...).
		From("transit.sessions").
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	return r.scanOne(ctx, stmt, args)
}

// GetByDevice fetches the active session registered under a device, if any.
func (r *SessionRepository) GetByDevice(ctx context.Context, deviceID string) (*domain.Session, error) {
	stmt, args, err := r.builder.Select(sessionColumns...).
		From("transit.sessions").
		Where(squirrel.Eq{"device_id": deviceID, "is_active": true}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select device session sql: %w", err)
	}

	return r.scanOne(ctx, stmt, args)
}

// GetActiveByDriver fetches the driver's active session, if any.
func (r *SessionRepository) GetActiveByDriver(ctx context.Context, driverID string) (*domain.Session, error) {
	stmt, args, err := r.builder.Select(sessionColumns...).
		From("transit.sessions").
		Where(squirrel.Eq{"driver_id": driverID, "is_active": true}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select driver session sql: %w", err)
	}

	return r.scanOne(ctx, stmt, args)
}

// Touch refreshes last-activity metadata. Expiry is never updated here.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	stmt, args, err := r.builder.Update("transit.sessions").
		Set("last_activity_at", at).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RecordLocation stores the session's current-location pointer.
func (r *SessionRepository) RecordLocation(ctx context.Context, sessionID string, point domain.GeoPoint, at time.Time) error {
	stmt, args, err := r.builder.Update("transit.sessions").
		Set("current_lat", point.Latitude).
		Set("current_lon", point.Longitude).
		Set("last_location_update", at).
		Set("last_activity_at", at).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record location sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("record session location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Deactivate flips the session out of the active state.
func (r *SessionRepository) Deactivate(ctx context.Context, sessionID string) error {
	stmt, args, err := r.builder.Update("transit.sessions").
		Set("is_active", false).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeactivateExpired retires every active session past its expiry in one
// statement and reports how many were affected.
func (r *SessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	stmt, args, err := r.builder.Update("transit.sessions").
		Set("is_active", false).
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build expire sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListActive returns all sessions currently flagged active.
func (r *SessionRepository) ListActive(ctx context.Context) ([]domain.Session, error) {
	stmt, args, err := r.builder.Select(sessionColumns...).
		From("transit.sessions").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list active sessions sql: %w", err)
	}

	return r.scanMany(ctx, stmt, args)
}

// ListStale returns active sessions whose last location update predates the
// cutoff. Sessions that never reported a location are excluded.
func (r *SessionRepository) ListStale(ctx context.Context, cutoff time.Time) ([]domain.Session, error) {
	stmt, args, err := r.builder.Select(sessionColumns...).
		From("transit.sessions").
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.Lt{"last_location_update": cutoff}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list stale sessions sql: %w", err)
	}

	return r.scanMany(ctx, stmt, args)
}

func (r *SessionRepository) scanOne(ctx context.Context, stmt string, args []any) (*domain.Session, error) {
	row := r.exec.QueryRow(ctx, stmt, args...)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) scanMany(ctx context.Context, stmt string, args []any) ([]domain.Session, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		session  domain.Session
		lat, lon *float64
		lastLoc  *time.Time
	)
	if err := row.Scan(
		&session.ID,
		&session.DriverID,
		&session.BusID,
		&session.RouteID,
		&session.DeviceID,
		&session.CreatedAt,
		&session.LastActivityAt,
		&session.ExpiresAt,
		&session.IsActive,
		&lat,
		&lon,
		&lastLoc,
	); err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		session.CurrentLocation = &domain.GeoPoint{Latitude: *lat, Longitude: *lon}
	}
	session.LastLocationUpdate = lastLoc
	return &session, nil
}
