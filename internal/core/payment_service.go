package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PaymentService reconciles money received against an order. Payments are
// append-only; paid_amount is always recomputed as the sum of all rows, never
// incremented in place.
type PaymentService interface {
	RecordPayment(ctx context.Context, orderID int, amount decimal.Decimal, method, reference, notes string, actorID int) (*Payment, error)
	ListPayments(ctx context.Context, orderID int) ([]Payment, error)
}

type paymentService struct {
	pool *pgxpool.Pool
}

func NewPaymentService(pool *pgxpool.Pool) PaymentService {
	return &paymentService{pool: pool}
}

// PaymentStatusFor derives the payment status from the running totals.
// The comparison is >=: overpayment is tolerated and simply marks the order
// fully paid.
func PaymentStatusFor(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(total) && paid.IsPositive():
		return PaymentPaid
	case paid.IsPositive():
		return PaymentPartial
	default:
		return PaymentPending
	}
}

func (s *paymentService) RecordPayment(ctx context.Context, orderID int, amount decimal.Decimal, method, reference, notes string, actorID int) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, newValidationError("amount", "must be greater than zero")
	}
	if method == "" {
		return nil, newValidationError("payment_method", "is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the order row so concurrent payments serialize their recomputation.
	var total decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT total_amount FROM service_orders WHERE id = $1 FOR UPDATE", orderID,
	).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	var p Payment
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (service_order_id, amount, payment_method, reference, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, service_order_id, amount, payment_method, reference, notes, created_by, created_at
	`, orderID, amount, method, reference, notes, actorID).Scan(
		&p.ID, &p.ServiceOrderID, &p.Amount, &p.PaymentMethod, &p.Reference, &p.Notes, &p.CreatedBy, &p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	var paid decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE service_order_id = $1", orderID,
	).Scan(&paid)
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments for order %d: %w", orderID, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE service_orders
		SET paid_amount = $1, payment_status = $2, updated_by = $3, updated_at = NOW()
		WHERE id = $4
	`, paid, PaymentStatusFor(paid, total), actorID, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment totals on order %d: %w", orderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return &p, nil
}

func (s *paymentService) ListPayments(ctx context.Context, orderID int) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, service_order_id, amount, payment_method, reference, notes, created_by, created_at
		FROM payments
		WHERE service_order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.ServiceOrderID, &p.Amount, &p.PaymentMethod,
			&p.Reference, &p.Notes, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
