package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, user_id, COALESCE(idempotency_key, ''), lines, total, currency, payment_method,
	shipping_method, contact, payment_status, shipping_status, created_at, updated_at`

type lineRow struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

type contactRow struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

func encodeLines(lines []domain.Line) ([]byte, error) {
	rows := make([]lineRow, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, lineRow(l))
	}
	return json.Marshal(rows)
}

func decodeLines(raw []byte) ([]domain.Line, error) {
	var rows []lineRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	lines := make([]domain.Line, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, domain.Line(r))
	}
	return lines, nil
}

type OrderRepository struct{ s *Store }

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	lines, err := encodeLines(o.Lines)
	if err != nil {
		return fmt.Errorf("postgres: encode order lines: %w", err)
	}
	contact, err := json.Marshal(contactRow(o.Contact))
	if err != nil {
		return fmt.Errorf("postgres: encode order contact: %w", err)
	}

	_, err = r.s.q(ctx).Exec(ctx, `
		INSERT INTO orders (id, user_id, idempotency_key, lines, total, currency, payment_method,
			shipping_method, contact, payment_status, shipping_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.UserID, nullable(o.IdempotencyKey), lines, o.Total, o.Currency, o.PaymentMethod,
		o.ShippingMethod, contact, string(o.PaymentStatus), string(o.ShippingStatus), o.CreatedAt, o.UpdatedAt)
	if _, dup := violated(err); dup {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("postgres: insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	if key == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
}

func (r *OrderRepository) findOne(ctx context.Context, sql string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(r.s.q(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get order: %w", err)
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                 domain.Order
		lines, contact    []byte
		payment, shipping string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.IdempotencyKey, &lines, &o.Total, &o.Currency, &o.PaymentMethod,
		&o.ShippingMethod, &contact, &payment, &shipping, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if o.Lines, err = decodeLines(lines); err != nil {
		return nil, fmt.Errorf("decode lines: %w", err)
	}
	var c contactRow
	if err := json.Unmarshal(contact, &c); err != nil {
		return nil, fmt.Errorf("decode contact: %w", err)
	}
	o.Contact = domain.Contact(c)
	o.PaymentStatus = domain.PaymentStatus(payment)
	o.ShippingStatus = domain.ShippingStatus(shipping)
	return &o, nil
}

func (r *OrderRepository) ApplyStatus(ctx context.Context, id string, change domain.StatusChange) (bool, error) {
	sql, args := statusUpdate(id, change, time.Now().UTC())
	tag, err := r.s.q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("postgres: apply order status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.s.q(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: apply order status: %w", err)
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// statusUpdate builds a conditional UPDATE that only matches while the change's expectations hold.
func statusUpdate(id string, c domain.StatusChange, now time.Time) (string, []any) {
	args := []any{id, now}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	set := []string{"updated_at = $2"}
	if c.Payment != "" {
		set = append(set, "payment_status = "+arg(string(c.Payment)))
	}
	if c.Shipping != "" {
		set = append(set, "shipping_status = "+arg(string(c.Shipping)))
	}
	where := []string{"id = $1"}
	if c.ExpectPayment != "" {
		where = append(where, "payment_status = "+arg(string(c.ExpectPayment)))
	}
	if c.ExpectShipping != "" {
		where = append(where, "shipping_status = "+arg(string(c.ExpectShipping)))
	}
	return "UPDATE orders SET " + strings.Join(set, ", ") + " WHERE " + strings.Join(where, " AND "), args
}

func (r *OrderRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	rows, err := r.s.q(ctx).Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE payment_status = 'pending' AND created_at < $1 ORDER BY created_at LIMIT $2`,
		cutoff, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending orders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
