package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"taller-service/internal/app"
)

// orderID extracts and parses the {id} URL parameter.
func orderID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		writeError(w, r, "invalid order id", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// listOrders handles GET /api/orders. Accepts an optional ?status= filter.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	var statusPtr *string
	if statusFilter != "" {
		statusPtr = &statusFilter
	}

	result, err := h.svc.ListOrders(r.Context(), statusPtr)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Orders)
}

// listOrdersUnderWarranty handles GET /api/orders/warranty.
func (h *Handler) listOrdersUnderWarranty(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListOrdersUnderWarranty(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Orders)
}

// getOrder handles GET /api/orders/{id}.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	result, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Order)
}

// createOrder handles POST /api/orders.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), req, actorID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, result.Order)
}

// updateOrder handles PATCH /api/orders/{id}.
func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req app.UpdateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.UpdateOrder(r.Context(), id, req, actorID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Order)
}

// getStatusHistory handles GET /api/orders/{id}/history.
func (h *Handler) getStatusHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	result, err := h.svc.GetStatusHistory(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Entries)
}

// assignTechnician handles POST /api/orders/{id}/technician.
func (h *Handler) assignTechnician(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req app.AssignTechnicianRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.AssignTechnician(r.Context(), id, req, actorID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Order)
}

// getAssignments handles GET /api/orders/{id}/assignments.
func (h *Handler) getAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	result, err := h.svc.GetAssignments(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Assignments)
}

// recordPayment handles POST /api/orders/{id}/payments.
func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req app.RecordPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.RecordPayment(r.Context(), id, req, actorID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, result)
}

// listPayments handles GET /api/orders/{id}/payments.
func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	result, err := h.svc.ListPayments(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Payments)
}

// listDeliveryNotes handles GET /api/orders/{id}/delivery.
func (h *Handler) listDeliveryNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	result, err := h.svc.ListDeliveryNotes(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Notes)
}

// createDeliveryNote handles POST /api/orders/{id}/delivery.
func (h *Handler) createDeliveryNote(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req app.CreateDeliveryNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.CreateDeliveryNote(r.Context(), id, req, actorID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, result)
}
