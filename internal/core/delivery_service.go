package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DeliveryService records the hand-back of repaired goods. Creating a
// delivery note is the sole trigger that forces an order into the terminal
// DELIVERED status; the transition runs through the same audited primitive
// as every other status change.
type DeliveryService interface {
	CreateDeliveryNote(ctx context.Context, orderID int, receivedBy, notes string, amount *decimal.Decimal, actorID int) (*DeliveryNote, error)
	ListDeliveryNotes(ctx context.Context, orderID int) ([]DeliveryNote, error)
}

type deliveryService struct {
	pool     *pgxpool.Pool
	orders   OrderService
	notifier Notifier
}

func NewDeliveryService(pool *pgxpool.Pool, orders OrderService, notifier Notifier) DeliveryService {
	return &deliveryService{pool: pool, orders: orders, notifier: notifier}
}

func (s *deliveryService) CreateDeliveryNote(ctx context.Context, orderID int, receivedBy, notes string, amount *decimal.Decimal, actorID int) (*DeliveryNote, error) {
	if receivedBy == "" {
		return nil, newValidationError("received_by", "is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx,
		"SELECT status FROM service_orders WHERE id = $1 FOR UPDATE", orderID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}
	previous := Status(current)

	var note DeliveryNote
	err = tx.QueryRow(ctx, `
		INSERT INTO delivery_notes (service_order_id, note_number, received_by, amount, notes, created_by)
		VALUES ($1, '', $2, $3, $4, $5)
		RETURNING id, service_order_id, received_by, notes, created_by, created_at
	`, orderID, receivedBy, nullDecimal(amount), notes, actorID).Scan(
		&note.ID, &note.ServiceOrderID, &note.ReceivedBy, &note.Notes, &note.CreatedBy, &note.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert delivery note: %w", err)
	}
	note.Amount = amount

	// The note number is derived from the row id, so it is assigned after the insert.
	note.NoteNumber = fmt.Sprintf("NE-%06d", note.ID)
	if _, err = tx.Exec(ctx,
		"UPDATE delivery_notes SET note_number = $1 WHERE id = $2", note.NoteNumber, note.ID); err != nil {
		return nil, fmt.Errorf("failed to number delivery note %d: %w", note.ID, err)
	}

	statusChanged := previous != StatusDelivered
	if statusChanged {
		_, err = tx.Exec(ctx, `
			UPDATE service_orders
			SET status = $1, fecha_entrega = NOW(), updated_by = $2, updated_at = NOW()
			WHERE id = $3
		`, StatusDelivered, actorID, orderID)
		if err != nil {
			return nil, fmt.Errorf("failed to mark order %d delivered: %w", orderID, err)
		}
		historyNote := fmt.Sprintf("entrega registrada (%s, recibido por %s)", note.NoteNumber, receivedBy)
		if err = appendStatusHistoryTx(ctx, tx, orderID, previous, StatusDelivered, historyNote, actorID); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delivery note: %w", err)
	}

	if statusChanged && s.notifier != nil {
		if order, err := s.orders.GetOrder(ctx, orderID); err == nil {
			client, _ := fetchClient(ctx, s.pool, order.ClientID)
			s.notifier.StatusChanged(ctx, order, previous, client)
		}
	}
	return &note, nil
}

func (s *deliveryService) ListDeliveryNotes(ctx context.Context, orderID int) ([]DeliveryNote, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, service_order_id, note_number, received_by, amount, notes, created_by, created_at
		FROM delivery_notes
		WHERE service_order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery notes: %w", err)
	}
	defer rows.Close()

	var notes []DeliveryNote
	for rows.Next() {
		var n DeliveryNote
		var amount decimal.NullDecimal
		if err := rows.Scan(&n.ID, &n.ServiceOrderID, &n.NoteNumber, &n.ReceivedBy,
			&amount, &n.Notes, &n.CreatedBy, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery note: %w", err)
		}
		if amount.Valid {
			n.Amount = &amount.Decimal
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
