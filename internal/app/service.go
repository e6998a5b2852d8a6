package app

import (
	"context"
)

// ApplicationService is the single interface all adapters call. It decouples
// presentation from the engine: adapters deal in JSON-friendly request types,
// the engine deals in domain types, and the conversion happens here.
type ApplicationService interface {
	// CreateOrder opens a new service order with a collision-safe order code.
	CreateOrder(ctx context.Context, req CreateOrderRequest, actorID int) (*OrderResult, error)

	// UpdateOrder applies a partial update; a real status change is audited
	// and notified.
	UpdateOrder(ctx context.Context, orderID int, req UpdateOrderRequest, actorID int) (*OrderResult, error)

	// AssignTechnician makes the given technician the single active assignee,
	// retiring (never rewriting) the previous assignment.
	AssignTechnician(ctx context.Context, orderID int, req AssignTechnicianRequest, actorID int) (*OrderResult, error)

	// RecordPayment appends a payment and reconciles the order's paid amount
	// and payment status.
	RecordPayment(ctx context.Context, orderID int, req RecordPaymentRequest, actorID int) (*PaymentResult, error)

	// CreateDeliveryNote registers the hand-back and forces the order into
	// the terminal DELIVERED status.
	CreateDeliveryNote(ctx context.Context, orderID int, req CreateDeliveryNoteRequest, actorID int) (*DeliveryNoteResult, error)

	GetOrder(ctx context.Context, orderID int) (*OrderResult, error)
	ListOrders(ctx context.Context, status *string) (*OrderListResult, error)
	ListOrdersUnderWarranty(ctx context.Context) (*OrderListResult, error)
	GetStatusHistory(ctx context.Context, orderID int) (*StatusHistoryResult, error)
	ListPayments(ctx context.Context, orderID int) (*PaymentListResult, error)
	ListDeliveryNotes(ctx context.Context, orderID int) (*DeliveryNoteListResult, error)
	GetAssignments(ctx context.Context, orderID int) (*AssignmentListResult, error)
}
