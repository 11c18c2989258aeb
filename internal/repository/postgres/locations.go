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

// LocationRepository implements port.LocationRepository backed by PostgreSQL.
// Fixes live in transit.locations keyed by (driver_id, recorded_at) with a
// covering index for the most-recent-per-driver query.
type LocationRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLocationRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewLocationRepository(exec pgExecutor) *LocationRepository {
	return &LocationRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var locationColumns = []string{
	"id",
	"driver_id",
	"bus_id",
	"route_id",
	"latitude",
	"longitude",
	"heading",
	"speed",
	"accuracy",
	"status",
	"session_id",
	"recorded_at",
}

// Insert appends one fix to the history.
func (r *LocationRepository) Insert(ctx context.Context, fix domain.LocationFix) error {
	stmt, args, err := r.builder.Insert("transit.locations").
		Columns(locationColumns...).
		Values(
			fix.ID,
			fix.DriverID,
			fix.BusID,
			fix.RouteID,
			fix.Latitude,
			fix.Longitude,
			fix.Heading,
			fix.Speed,
			fix.Accuracy,
			string(fix.Status),
			fix.SessionID,
			fix.Timestamp,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert fix sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert fix: %w", err)
	}
	return nil
}

// Latest fetches the most recent fix for a driver.
func (r *LocationRepository) Latest(ctx context.Context, driverID string) (*domain.LocationFix, error) {
	stmt, args, err := r.builder.Select(locationColumns...).
		From("transit.locations").
		Where(squirrel.Eq{"driver_id": driverID}).
		OrderBy("recorded_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest fix sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	fix, err := scanFix(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan fix: %w", err)
	}
	return fix, nil
}

// History returns up to limit most recent fixes for the driver, reordered
// oldest first for the caller.
func (r *LocationRepository) History(ctx context.Context, driverID string, limit int) ([]domain.LocationFix, error) {
	stmt, args, err := r.builder.Select(locationColumns...).
		From("transit.locations").
		Where(squirrel.Eq{"driver_id": driverID}).
		OrderBy("recorded_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history sql: %w", err)
	}

	fixes, err := r.scanMany(ctx, stmt, args)
	if err != nil {
		return nil, err
	}

	// Truncation happens newest-first; the caller gets insertion order.
	for i, j := 0, len(fixes)-1; i < j; i, j = i+1, j-1 {
		fixes[i], fixes[j] = fixes[j], fixes[i]
	}
	return fixes, nil
}

// LatestPerDriver returns the newest fix per driver, filtered by freshness
// and status. DISTINCT ON runs in a subquery so the filters apply to each
// driver's latest fix, not to the latest fix that happens to match. A driver
// whose newest fix went offline must drop out rather than surface an older
// active one.
func (r *LocationRepository) LatestPerDriver(ctx context.Context, cutoff time.Time, statuses []domain.FixStatus) ([]domain.LocationFix, error) {
	states := make([]string, 0, len(statuses))
	for _, s := range statuses {
		states = append(states, string(s))
	}

	latest := r.builder.
		Select("DISTINCT ON (driver_id) " + columnList()).
		From("transit.locations").
		OrderBy("driver_id", "recorded_at DESC")

	stmt, args, err := r.builder.
		Select(locationColumns...).
		FromSelect(latest, "latest").
		Where(squirrel.GtOrEq{"recorded_at": cutoff}).
		Where(squirrel.Eq{"status": states}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest per driver sql: %w", err)
	}

	return r.scanMany(ctx, stmt, args)
}

// LatestByBus fetches the most recent fix reported for a bus.
func (r *LocationRepository) LatestByBus(ctx context.Context, busID string) (*domain.LocationFix, error) {
	stmt, args, err := r.builder.Select(locationColumns...).
		From("transit.locations").
		Where(squirrel.Eq{"bus_id": busID}).
		OrderBy("recorded_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest by bus sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	fix, err := scanFix(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan fix: %w", err)
	}
	return fix, nil
}

// LatestPerDriverOnRoute returns the newest fix per driver on a route.
func (r *LocationRepository) LatestPerDriverOnRoute(ctx context.Context, routeID string) ([]domain.LocationFix, error) {
	stmt, args, err := r.builder.
		Select("DISTINCT ON (driver_id) " + columnList()).
		From("transit.locations").
		Where(squirrel.Eq{"route_id": routeID}).
		OrderBy("driver_id", "recorded_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest on route sql: %w", err)
	}

	return r.scanMany(ctx, stmt, args)
}

// TrimHistory deletes all but the keep most recent fixes for the driver.
func (r *LocationRepository) TrimHistory(ctx context.Context, driverID string, keep int) (int, error) {
	const stmt = `DELETE FROM transit.locations
WHERE driver_id = $1 AND id NOT IN (
	SELECT id FROM transit.locations
	WHERE driver_id = $1
	ORDER BY recorded_at DESC
	LIMIT $2
)`
	tag, err := r.exec.Exec(ctx, stmt, driverID, keep)
	if err != nil {
		return 0, fmt.Errorf("trim history: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteOlderThan removes fixes past the age bound regardless of count.
func (r *LocationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	stmt, args, err := r.builder.Delete("transit.locations").
		Where(squirrel.Lt{"recorded_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete aged sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete aged fixes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// MarkStatus rewrites the status of the fix at (driverID, at).
func (r *LocationRepository) MarkStatus(ctx context.Context, driverID string, at time.Time, status domain.FixStatus) error {
	stmt, args, err := r.builder.Update("transit.locations").
		Set("status", string(status)).
		Where(squirrel.Eq{"driver_id": driverID, "recorded_at": at}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark status sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark fix status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *LocationRepository) scanMany(ctx context.Context, stmt string, args []any) ([]domain.LocationFix, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query fixes: %w", err)
	}
	defer rows.Close()

	fixes := make([]domain.LocationFix, 0)
	for rows.Next() {
		fix, err := scanFix(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fix: %w", err)
		}
		fixes = append(fixes, *fix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fixes: %w", err)
	}
	return fixes, nil
}

func scanFix(row pgx.Row) (*domain.LocationFix, error) {
	var (
		fix    domain.LocationFix
		status string
	)
	if err := row.Scan(
		&fix.ID,
		&fix.DriverID,
		&fix.BusID,
		&fix.RouteID,
		&fix.Latitude,
		&fix.Longitude,
		&fix.Heading,
		&fix.Speed,
		&fix.Accuracy,
		&status,
		&fix.SessionID,
		&fix.Timestamp,
	); err != nil {
		return nil, err
	}
	fix.Status = domain.FixStatus(status)
	return &fix, nil
}

func columnList() string {
	list := locationColumns[0]
	for _, col := range locationColumns[1:] {
		list += ", " + col
	}
	return list
}
