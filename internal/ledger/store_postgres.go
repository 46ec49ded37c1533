package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"trafficase/pkg/platform/sentinel"
	txcontext "trafficase/pkg/platform/tx"
)

// PostgresStore persists ledger entries in PostgreSQL. The unique constraint
// on idempotency_key is the real concurrency control: when two requests race
// to admit the same key, exactly one insert lands and the other reads the
// surviving row.
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

const entryColumns = `id, idempotency_key, business_status, request_params, business_id, attempts, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, key string, now time.Time) (*Entry, bool, error) {
	query := `
		INSERT INTO request_ledger (idempotency_key, business_status, request_params, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING ` + entryColumns

	entry, err := scanEntry(s.execer(ctx).QueryRowContext(ctx, query, key, StatusProcessing, PhasePending, now))
	if err == nil {
		return entry, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) && !isUniqueViolation(err) {
		return nil, false, fmt.Errorf("insert ledger entry: %w", err)
	}

	// Lost the race or the key already existed; the surviving row wins.
	existing, err := s.FindByKey(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("read existing ledger entry: %w", err)
	}
	return existing, false, nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, key string) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM request_ledger WHERE idempotency_key = $1`
	entry, err := scanEntry(s.execer(ctx).QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find ledger entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) MarkSuccess(ctx context.Context, key string, businessID int64, now time.Time) (bool, error) {
	query := `
		UPDATE request_ledger
		SET business_status = $2, request_params = $3, business_id = $4, updated_at = $5
		WHERE idempotency_key = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, key, StatusSuccess, PhaseDone, businessID, now)
	if err != nil {
		return false, fmt.Errorf("mark ledger success: %w", err)
	}
	return oneRowAffected(result)
}

func (s *PostgresStore) MarkFailure(ctx context.Context, key, reason string, now time.Time) (bool, error) {
	query := `
		UPDATE request_ledger
		SET business_status = $2, request_params = $3, updated_at = $4
		WHERE idempotency_key = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, key, StatusFailed, TruncateDiagnostic(reason), now)
	if err != nil {
		return false, fmt.Errorf("mark ledger failure: %w", err)
	}
	return oneRowAffected(result)
}

func (s *PostgresStore) RetryFailed(ctx context.Context, key string, maxAttempts int, now time.Time) (bool, error) {
	// The WHERE clause makes this a single-winner transition: concurrent
	// retries race on the same row and only one UPDATE matches.
	query := `
		UPDATE request_ledger
		SET business_status = $2, request_params = $3, attempts = attempts + 1, updated_at = $4
		WHERE idempotency_key = $1 AND business_status = $5 AND attempts < $6
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		key, StatusProcessing, PhasePending, now, StatusFailed, maxAttempts)
	if err != nil {
		return false, fmt.Errorf("retry failed ledger entry: %w", err)
	}
	return oneRowAffected(result)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status BusinessStatus, page, size int) ([]Entry, error) {
	if page < 1 {
		page = 1
	}
	query := `
		SELECT ` + entryColumns + `
		FROM request_ledger
		WHERE business_status = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, status, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) ReapExpired(ctx context.Context, cutoff time.Time, reason string, now time.Time) (int64, error) {
	query := `
		UPDATE request_ledger
		SET business_status = $1, request_params = $2, updated_at = $3
		WHERE business_status = $4 AND updated_at < $5
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		StatusFailed, TruncateDiagnostic(reason), now, StatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reap expired ledger entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reap rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	var businessID sql.NullInt64
	if err := row.Scan(
		&entry.ID,
		&entry.IdempotencyKey,
		&entry.BusinessStatus,
		&entry.RequestParams,
		&businessID,
		&entry.Attempts,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if businessID.Valid {
		entry.BusinessID = &businessID.Int64
	}
	return &entry, nil
}

func oneRowAffected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
