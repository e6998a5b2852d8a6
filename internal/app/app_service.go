package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"taller-service/internal/core"
)

type appService struct {
	orders     core.OrderService
	payments   core.PaymentService
	deliveries core.DeliveryService
}

func NewAppService(orders core.OrderService, payments core.PaymentService, deliveries core.DeliveryService) ApplicationService {
	return &appService{orders: orders, payments: payments, deliveries: deliveries}
}

// parseAmount converts a decimal string from the wire; empty means zero.
func parseAmount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &core.ValidationError{Field: field, Reason: fmt.Sprintf("invalid amount %q", raw)}
	}
	return d, nil
}

// parseOptionalAmount converts an optional decimal string; empty means unset.
func parseOptionalAmount(field, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := parseAmount(field, raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *appService) CreateOrder(ctx context.Context, req CreateOrderRequest, actorID int) (*OrderResult, error) {
	total, err := parseAmount("total_amount", req.TotalAmount)
	if err != nil {
		return nil, err
	}
	presupuesto, err := parseOptionalAmount("presupuesto_amount", req.PresupuestoAmount)
	if err != nil {
		return nil, err
	}

	input := core.CreateOrderInput{
		ClientID:                   req.ClientID,
		TechnicianID:               req.TechnicianID,
		IsPreOrder:                 req.IsPreOrder,
		TotalAmount:                total,
		PresupuestoAmount:          presupuesto,
		IncludeIVA:                 req.IncludeIVA,
		FechaCaptacion:             req.FechaCaptacion,
		FechaAgendado:              req.FechaAgendado,
		ClientNotificationsEnabled: req.ClientNotificationsEnabled,
	}
	for _, a := range req.Appliances {
		input.Appliances = append(input.Appliances, core.ApplianceInput{
			ApplianceID: a.ApplianceID,
			Falla:       a.Falla,
		})
	}

	order, err := s.orders.CreateOrder(ctx, input, actorID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) UpdateOrder(ctx context.Context, orderID int, req UpdateOrderRequest, actorID int) (*OrderResult, error) {
	patch := core.OrderPatch{
		StatusNotes:                req.StatusNotes,
		IncludeIVA:                 req.IncludeIVA,
		GarantiaStartDate:          req.GarantiaStartDate,
		GarantiaEndDate:            req.GarantiaEndDate,
		GarantiaIlimitada:          req.GarantiaIlimitada,
		RazonGarantia:              req.RazonGarantia,
		FechaCaptacion:             req.FechaCaptacion,
		FechaAgendado:              req.FechaAgendado,
		FechaReparacion:            req.FechaReparacion,
		FechaSeguimiento:           req.FechaSeguimiento,
		ClientNotificationsEnabled: req.ClientNotificationsEnabled,
		TechnicianID:               req.TechnicianID,
	}

	if req.Status != nil {
		status := core.Status(*req.Status)
		patch.Status = &status
	}
	if req.GarantiaPrioridad != nil {
		prioridad := core.WarrantyPriority(*req.GarantiaPrioridad)
		patch.GarantiaPrioridad = &prioridad
	}
	if req.TotalAmount != nil {
		total, err := parseAmount("total_amount", *req.TotalAmount)
		if err != nil {
			return nil, err
		}
		patch.TotalAmount = &total
	}
	if req.PresupuestoAmount != nil {
		presupuesto, err := parseAmount("presupuesto_amount", *req.PresupuestoAmount)
		if err != nil {
			return nil, err
		}
		patch.PresupuestoAmount = &presupuesto
	}
	for _, a := range req.Appliances {
		patch.Appliances = append(patch.Appliances, core.ApplianceUpdate{
			ApplianceID: a.ApplianceID,
			Falla:       a.Falla,
			Solucion:    a.Solucion,
		})
	}

	order, err := s.orders.UpdateOrder(ctx, orderID, patch, actorID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) AssignTechnician(ctx context.Context, orderID int, req AssignTechnicianRequest, actorID int) (*OrderResult, error) {
	order, err := s.orders.AssignTechnician(ctx, orderID, req.TechnicianID, req.Notes, actorID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) RecordPayment(ctx context.Context, orderID int, req RecordPaymentRequest, actorID int) (*PaymentResult, error) {
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.RecordPayment(ctx, orderID, amount, req.PaymentMethod, req.Reference, req.Notes, actorID)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: payment, Order: order}, nil
}

func (s *appService) CreateDeliveryNote(ctx context.Context, orderID int, req CreateDeliveryNoteRequest, actorID int) (*DeliveryNoteResult, error) {
	amount, err := parseOptionalAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}

	note, err := s.deliveries.CreateDeliveryNote(ctx, orderID, req.ReceivedBy, req.Notes, amount, actorID)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &DeliveryNoteResult{Note: note, Order: order}, nil
}

func (s *appService) GetOrder(ctx context.Context, orderID int) (*OrderResult, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) ListOrders(ctx context.Context, status *string) (*OrderListResult, error) {
	var filter *core.Status
	if status != nil && *status != "" {
		st := core.Status(*status)
		if !st.Valid() {
			return nil, &core.ValidationError{Field: "status", Reason: fmt.Sprintf("unrecognized value %q", *status)}
		}
		filter = &st
	}

	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders}, nil
}

func (s *appService) ListOrdersUnderWarranty(ctx context.Context) (*OrderListResult, error) {
	orders, err := s.orders.ListOrdersUnderWarranty(ctx)
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders}, nil
}

func (s *appService) GetStatusHistory(ctx context.Context, orderID int) (*StatusHistoryResult, error) {
	entries, err := s.orders.GetStatusHistory(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &StatusHistoryResult{Entries: entries}, nil
}

func (s *appService) ListPayments(ctx context.Context, orderID int) (*PaymentListResult, error) {
	payments, err := s.payments.ListPayments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &PaymentListResult{Payments: payments}, nil
}

func (s *appService) ListDeliveryNotes(ctx context.Context, orderID int) (*DeliveryNoteListResult, error) {
	notes, err := s.deliveries.ListDeliveryNotes(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &DeliveryNoteListResult{Notes: notes}, nil
}

func (s *appService) GetAssignments(ctx context.Context, orderID int) (*AssignmentListResult, error) {
	assignments, err := s.orders.GetAssignments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &AssignmentListResult{Assignments: assignments}, nil
}
