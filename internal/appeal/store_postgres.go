package appeal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trafficase/internal/appeal/models"
	"trafficase/pkg/platform/sentinel"
	txcontext "trafficase/pkg/platform/tx"
	"trafficase/pkg/requestcontext"
)

// PostgresStore persists appeal records in PostgreSQL.
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

const appealColumns = `id, offense_id, appellant_name, appeal_reason, process_status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, appeal *models.Appeal) error {
	query := `
		INSERT INTO appeal_records (offense_id, appellant_name, appeal_reason, process_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id`

	err := s.execer(ctx).QueryRowContext(ctx, query,
		appeal.OffenseID,
		appeal.AppellantName,
		appeal.AppealReason,
		appeal.ProcessStatus,
		appeal.CreatedAt,
	).Scan(&appeal.ID)
	if err != nil {
		return fmt.Errorf("insert appeal: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeal_records WHERE id = $1`
	if _, inTx := txcontext.From(ctx); inTx {
		query += ` FOR UPDATE`
	}

	appeal, err := scanAppeal(s.execer(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find appeal %d: %w", id, err)
	}
	return appeal, nil
}

func (s *PostgresStore) FindByOffense(ctx context.Context, offenseID int64) ([]models.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeal_records WHERE offense_id = $1 ORDER BY created_at`

	rows, err := s.execer(ctx).QueryContext(ctx, query, offenseID)
	if err != nil {
		return nil, fmt.Errorf("list appeals for offense %d: %w", offenseID, err)
	}
	defer rows.Close()
	return collectAppeals(rows)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status string, page, size int) ([]models.Appeal, error) {
	query := `
		SELECT ` + appealColumns + `
		FROM appeal_records
		WHERE process_status = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.execer(ctx).QueryContext(ctx, query, status, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("list appeals: %w", err)
	}
	defer rows.Close()
	return collectAppeals(rows)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE appeal_records SET process_status = $1, updated_at = $2 WHERE id = $3`

	result, err := s.execer(ctx).ExecContext(ctx, query, status, requestcontext.Now(ctx), id)
	if err != nil {
		return fmt.Errorf("update appeal status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update appeal status: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanAppeal(row *sql.Row) (*models.Appeal, error) {
	var a models.Appeal
	err := row.Scan(&a.ID, &a.OffenseID, &a.AppellantName, &a.AppealReason, &a.ProcessStatus, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAppeals(rows *sql.Rows) ([]models.Appeal, error) {
	var appeals []models.Appeal
	for rows.Next() {
		var a models.Appeal
		if err := rows.Scan(&a.ID, &a.OffenseID, &a.AppellantName, &a.AppealReason, &a.ProcessStatus, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan appeal: %w", err)
		}
		appeals = append(appeals, a)
	}
	return appeals, rows.Err()
}
