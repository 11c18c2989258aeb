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

// DriverRepository implements port.DriverRepository backed by PostgreSQL.
type DriverRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewDriverRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewDriverRepository(exec pgExecutor) *DriverRepository {
	return &DriverRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var driverColumns = []string{
	"id",
	"name",
	"phone",
	"license_number",
	"bus_id",
	"route_id",
	"device_id",
	"is_active",
	"last_seen",
	"created_at",
}

// Create inserts a driver record.
func (r *DriverRepository) Create(ctx context.Context, driver domain.Driver) error {
	stmt, args, err := r.builder.Insert("transit.drivers").
		Columns(driverColumns...).
		Values(
			driver.ID,
			driver.Name,
			driver.Phone,
			driver.LicenseNumber,
			driver.BusID,
			driver.RouteID,
			driver.DeviceID,
			driver.IsActive,
			driver.LastSeen,
			driver.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert driver sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert driver: %w", err)
	}
	return nil
}

// Get fetches a driver by id.
func (r *DriverRepository) Get(ctx context.Context, driverID string) (*domain.Driver, error) {
	return r.getBy(ctx, squirrel.Eq{"id": driverID})
}

// GetByPhone fetches a driver by phone number.
func (r *DriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	return r.getBy(ctx, squirrel.Eq{"phone": phone})
}

// GetByBus fetches the driver assigned to a bus.
func (r *DriverRepository) GetByBus(ctx context.Context, busID string) (*domain.Driver, error) {
	return r.getBy(ctx, squirrel.Eq{"bus_id": busID})
}

// ListByRoute returns drivers assigned to a route.
func (r *DriverRepository) ListByRoute(ctx context.Context, routeID string) ([]domain.Driver, error) {
	stmt, args, err := r.builder.Select(driverColumns...).
		From("transit.drivers").
		Where(squirrel.Eq{"route_id": routeID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list by route sql: %w", err)
	}
	return r.scanMany(ctx, stmt, args)
}

// List returns all drivers.
func (r *DriverRepository) List(ctx context.Context) ([]domain.Driver, error) {
	stmt, args, err := r.builder.Select(driverColumns...).
		From("transit.drivers").
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list drivers sql: %w", err)
	}
	return r.scanMany(ctx, stmt, args)
}

// UpdateDevice binds a device to the driver.
func (r *DriverRepository) UpdateDevice(ctx context.Context, driverID, deviceID string) error {
	stmt, args, err := r.builder.Update("transit.drivers").
		Set("device_id", deviceID).
		Where(squirrel.Eq{"id": driverID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update device sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update driver device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateActivity flips the active flag and refreshes last seen.
func (r *DriverRepository) UpdateActivity(ctx context.Context, driverID string, active bool, lastSeen time.Time) error {
	stmt, args, err := r.builder.Update("transit.drivers").
		Set("is_active", active).
		Set("last_seen", lastSeen).
		Where(squirrel.Eq{"id": driverID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update activity sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update driver activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes the driver record.
func (r *DriverRepository) Delete(ctx context.Context, driverID string) error {
	stmt, args, err := r.builder.Delete("transit.drivers").
		Where(squirrel.Eq{"id": driverID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete driver sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete driver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *DriverRepository) getBy(ctx context.Context, pred squirrel.Eq) (*domain.Driver, error) {
	stmt, args, err := r.builder.Select(driverColumns...).
		From("transit.drivers").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select driver sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	driver, err := scanDriver(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan driver: %w", err)
	}
	return driver, nil
}

func (r *DriverRepository) scanMany(ctx context.Context, stmt string, args []any) ([]domain.Driver, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query drivers: %w", err)
	}
	defer rows.Close()

	drivers := make([]domain.Driver, 0)
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		drivers = append(drivers, *driver)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drivers: %w", err)
	}
	return drivers, nil
}

func scanDriver(row pgx.Row) (*domain.Driver, error) {
	var driver domain.Driver
	if err := row.Scan(
		&driver.ID,
		&driver.Name,
		&driver.Phone,
		&driver.LicenseNumber,
		&driver.BusID,
		&driver.RouteID,
		&driver.DeviceID,
		&driver.IsActive,
		&driver.LastSeen,
		&driver.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &driver, nil
}
