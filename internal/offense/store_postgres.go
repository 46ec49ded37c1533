package offense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trafficase/internal/offense/models"
	"trafficase/pkg/platform/sentinel"
	txcontext "trafficase/pkg/platform/tx"
	"trafficase/pkg/requestcontext"
)

// PostgresStore persists offense records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const offenseColumns = `id, driver_name, license_plate, offense_type, offense_location, fine_amount, deducted_points, process_status, occurred_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, offense *models.Offense) error {
	query := `
		INSERT INTO offense_records (driver_name, license_plate, offense_type, offense_location, fine_amount, deducted_points, process_status, occurred_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id`

	err := s.execer(ctx).QueryRowContext(ctx, query,
		offense.DriverName,
		offense.LicensePlate,
		offense.OffenseType,
		offense.OffenseLocation,
		offense.FineAmount,
		offense.DeductedPoints,
		offense.ProcessStatus,
		offense.OccurredAt,
		offense.CreatedAt,
	).Scan(&offense.ID)
	if err != nil {
		return fmt.Errorf("insert offense: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Offense, error) {
	query := `SELECT ` + offenseColumns + ` FROM offense_records WHERE id = $1`
	// Inside a transaction the row is locked so concurrent lifecycle events
	// serialize instead of clobbering each other.
	if _, inTx := txcontext.From(ctx); inTx {
		query += ` FOR UPDATE`
	}

	offense, err := scanOffense(s.execer(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find offense %d: %w", id, err)
	}
	return offense, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status string, page, size int) ([]models.Offense, error) {
	query := `
		SELECT ` + offenseColumns + `
		FROM offense_records
		WHERE process_status = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.execer(ctx).QueryContext(ctx, query, status, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("list offenses: %w", err)
	}
	defer rows.Close()

	var offenses []models.Offense
	for rows.Next() {
		var o models.Offense
		if err := rows.Scan(&o.ID, &o.DriverName, &o.LicensePlate, &o.OffenseType, &o.OffenseLocation, &o.FineAmount, &o.DeductedPoints, &o.ProcessStatus, &o.OccurredAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan offense: %w", err)
		}
		offenses = append(offenses, o)
	}
	return offenses, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE offense_records SET process_status = $1, updated_at = $2 WHERE id = $3`

	result, err := s.execer(ctx).ExecContext(ctx, query, status, requestcontext.Now(ctx), id)
	if err != nil {
		return fmt.Errorf("update offense status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update offense status: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanOffense(row *sql.Row) (*models.Offense, error) {
	var o models.Offense
	err := row.Scan(&o.ID, &o.DriverName, &o.LicensePlate, &o.OffenseType, &o.OffenseLocation, &o.FineAmount, &o.DeductedPoints, &o.ProcessStatus, &o.OccurredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
