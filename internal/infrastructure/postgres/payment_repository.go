package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/jackc/pgx/v5"
)

const attemptColumns = `id, order_id, user_id, transaction_id, amount, currency, status, suspicious,
	failure_reason, expires_at, created_at, updated_at`

// transitionAttempt keeps an earlier suspicious flag or failure reason when the new one is empty.
const transitionAttempt = `UPDATE payment_attempts
	SET status = $2, suspicious = suspicious OR $3::boolean,
		failure_reason = CASE WHEN $4::text = '' THEN failure_reason ELSE $4::text END, updated_at = $5
	WHERE id = $1 AND status = 'pending'`

type PaymentRepository struct{ s *Store }

func (r *PaymentRepository) Insert(ctx context.Context, a *domain.Attempt) error {
	_, err := r.s.q(ctx).Exec(ctx, `INSERT INTO payment_attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.OrderID, a.UserID, a.TransactionID, a.Amount, a.Currency, string(a.Status), a.Suspicious,
		a.FailureReason, a.ExpiresAt, a.CreatedAt, a.UpdatedAt)
	return insertError(err)
}

func insertError(err error) error {
	if err == nil {
		return nil
	}
	constraint, dup := violated(err)
	if !dup {
		return fmt.Errorf("postgres: insert attempt: %w", err)
	}
	switch constraint {
	case conTransaction:
		return domain.ErrDuplicateTransaction
	case conAttemptPending:
		return domain.ErrPendingExists
	}
	return domain.ErrConflict
}

func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Attempt, error) {
	return r.findOne(ctx, `SELECT `+attemptColumns+` FROM payment_attempts WHERE transaction_id = $1`, transactionID)
}

func (r *PaymentRepository) FindPendingByOrder(ctx context.Context, orderID string) (*domain.Attempt, error) {
	return r.findOne(ctx, `SELECT `+attemptColumns+` FROM payment_attempts WHERE order_id = $1 AND status = 'pending'`, orderID)
}

func (r *PaymentRepository) findOne(ctx context.Context, sql string, args ...any) (*domain.Attempt, error) {
	a, err := scanAttempt(r.s.q(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get attempt: %w", err)
	}
	return a, nil
}

func scanAttempt(row pgx.Row) (*domain.Attempt, error) {
	var (
		a      domain.Attempt
		status string
	)
	if err := row.Scan(&a.ID, &a.OrderID, &a.UserID, &a.TransactionID, &a.Amount, &a.Currency, &status,
		&a.Suspicious, &a.FailureReason, &a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = domain.Status(status)
	return &a, nil
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Attempt, error) {
	return r.list(ctx, `SELECT `+attemptColumns+` FROM payment_attempts WHERE order_id = $1 ORDER BY created_at`, orderID)
}

func (r *PaymentRepository) Transition(ctx context.Context, id string, to domain.Status, suspicious bool, reason string) (bool, error) {
	tag, err := r.s.q(ctx).Exec(ctx, transitionAttempt, id, string(to), suspicious, reason, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("postgres: transition attempt: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.s.q(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payment_attempts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: transition attempt: %w", err)
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func (r *PaymentRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Attempt, error) {
	return r.list(ctx, `SELECT `+attemptColumns+` FROM payment_attempts
		WHERE status = 'pending' AND expires_at < $1 ORDER BY expires_at LIMIT $2`, now, limitArg(limit))
}

func (r *PaymentRepository) list(ctx context.Context, sql string, args ...any) ([]*domain.Attempt, error) {
	rows, err := r.s.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list attempts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
