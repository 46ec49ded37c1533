package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trafficase/internal/payment/models"
	"trafficase/pkg/platform/sentinel"
	txcontext "trafficase/pkg/platform/tx"
	"trafficase/pkg/requestcontext"
)

// PostgresStore persists payment records in PostgreSQL.
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

const paymentColumns = `id, offense_id, amount_due, amount_paid, payment_method, payment_status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payment_records (offense_id, amount_due, amount_paid, payment_method, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id`

	err := s.execer(ctx).QueryRowContext(ctx, query,
		payment.OffenseID,
		payment.AmountDue,
		payment.AmountPaid,
		payment.PaymentMethod,
		payment.PaymentStatus,
		payment.CreatedAt,
	).Scan(&payment.ID)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE id = $1`
	if _, inTx := txcontext.From(ctx); inTx {
		query += ` FOR UPDATE`
	}

	payment, err := scanPayment(s.execer(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find payment %d: %w", id, err)
	}
	return payment, nil
}

func (s *PostgresStore) FindByOffense(ctx context.Context, offenseID int64) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE offense_id = $1 ORDER BY created_at`

	rows, err := s.execer(ctx).QueryContext(ctx, query, offenseID)
	if err != nil {
		return nil, fmt.Errorf("list payments for offense %d: %w", offenseID, err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status string, page, size int) ([]models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_records
		WHERE payment_status = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.execer(ctx).QueryContext(ctx, query, status, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE payment_records SET payment_status = $1, updated_at = $2 WHERE id = $3`
	return s.exec(ctx, query, status, requestcontext.Now(ctx), id)
}

func (s *PostgresStore) RecordAmount(ctx context.Context, id int64, amount int64) error {
	query := `UPDATE payment_records SET amount_paid = amount_paid + $1, updated_at = $2 WHERE id = $3`
	return s.exec(ctx, query, amount, requestcontext.Now(ctx), id)
}

func (s *PostgresStore) exec(ctx context.Context, query string, args ...any) error {
	result, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanPayment(row *sql.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.OffenseID, &p.AmountDue, &p.AmountPaid, &p.PaymentMethod, &p.PaymentStatus, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPayments(rows *sql.Rows) ([]models.Payment, error) {
	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.OffenseID, &p.AmountDue, &p.AmountPaid, &p.PaymentMethod, &p.PaymentStatus, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
