package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"taller-service/internal/core"
)

func TestPaymentService_PartialThenPaid(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	orders := core.NewOrderService(pool, nil)
	payments := core.NewPaymentService(pool)
	ctx := context.Background()

	in := basicInput()
	in.TotalAmount = decimal.NewFromInt(100)
	order, err := orders.CreateOrder(ctx, in, 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// First payment covers part of the total.
	p1, err := payments.RecordPayment(ctx, order.ID, decimal.NewFromInt(40), "efectivo", "", "", 1)
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if !p1.Amount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("unexpected payment amount %s", p1.Amount)
	}

	order, _ = orders.GetOrder(ctx, order.ID)
	if order.PaymentStatus != core.PaymentPartial {
		t.Errorf("expected PARTIAL, got %s", order.PaymentStatus)
	}
	if !order.PaidAmount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("paid amount should be the sum of payments, got %s", order.PaidAmount)
	}
	if !order.Balance().Equal(decimal.NewFromInt(60)) {
		t.Errorf("expected balance 60, got %s", order.Balance())
	}

	// Second payment settles the order.
	if _, err := payments.RecordPayment(ctx, order.ID, decimal.NewFromInt(60), "transferencia", "SPEI-123", "", 1); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	order, _ = orders.GetOrder(ctx, order.ID)
	if order.PaymentStatus != core.PaymentPaid {
		t.Errorf("expected PAID, got %s", order.PaymentStatus)
	}
	if !order.PaidAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected paid 100, got %s", order.PaidAmount)
	}

	// The ledger is append-only: both rows survive, in order.
	list, err := payments.ListPayments(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(list))
	}
	if list[0].PaymentMethod != "efectivo" || list[1].Reference != "SPEI-123" {
		t.Errorf("ledger rows mutated: %+v", list)
	}
}

func TestPaymentService_OverpaymentStaysPaid(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	orders := core.NewOrderService(pool, nil)
	payments := core.NewPaymentService(pool)
	ctx := context.Background()

	in := basicInput()
	in.TotalAmount = decimal.NewFromInt(100)
	order, err := orders.CreateOrder(ctx, in, 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if _, err := payments.RecordPayment(ctx, order.ID, decimal.NewFromInt(120), "efectivo", "", "", 1); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	order, _ = orders.GetOrder(ctx, order.ID)
	if order.PaymentStatus != core.PaymentPaid {
		t.Errorf("overpaid order should be PAID, got %s", order.PaymentStatus)
	}
	if !order.PaidAmount.Equal(decimal.NewFromInt(120)) {
		t.Errorf("paid amount records the real sum, got %s", order.PaidAmount)
	}
	if !order.Balance().Equal(decimal.Zero) {
		t.Errorf("overpaid balance reports zero, got %s", order.Balance())
	}
}

func TestPaymentService_Validation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	payments := core.NewPaymentService(pool)
	ctx := context.Background()

	if _, err := payments.RecordPayment(ctx, 1, decimal.Zero, "efectivo", "", "", 1); !core.IsValidation(err) {
		t.Errorf("zero amount: expected validation error, got %v", err)
	}
	if _, err := payments.RecordPayment(ctx, 1, decimal.NewFromInt(-5), "efectivo", "", "", 1); !core.IsValidation(err) {
		t.Errorf("negative amount: expected validation error, got %v", err)
	}
	if _, err := payments.RecordPayment(ctx, 1, decimal.NewFromInt(10), "", "", "", 1); !core.IsValidation(err) {
		t.Errorf("missing method: expected validation error, got %v", err)
	}
}

func TestPaymentService_OrderNotFound(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	payments := core.NewPaymentService(pool)

	_, err := payments.RecordPayment(context.Background(), 999999, decimal.NewFromInt(10), "efectivo", "", "", 1)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
