package app

import "taller-service/internal/core"

// OrderResult is returned by order lifecycle operations.
type OrderResult struct {
	Order *core.ServiceOrder
}

// OrderListResult is returned by the list queries.
type OrderListResult struct {
	Orders []core.ServiceOrder
}

// PaymentResult carries the appended payment and the reconciled order.
type PaymentResult struct {
	Payment *core.Payment
	Order   *core.ServiceOrder
}

type PaymentListResult struct {
	Payments []core.Payment
}

// DeliveryNoteResult carries the note and the order it forced to DELIVERED.
type DeliveryNoteResult struct {
	Note  *core.DeliveryNote
	Order *core.ServiceOrder
}

type DeliveryNoteListResult struct {
	Notes []core.DeliveryNote
}

type StatusHistoryResult struct {
	Entries []core.StatusHistoryEntry
}

type AssignmentListResult struct {
	Assignments []core.TechnicianAssignment
}
