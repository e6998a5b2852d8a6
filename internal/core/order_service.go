package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Notifier receives best-effort notifications after durable writes commit.
// Implementations must log and swallow their own failures; the engine never
// inspects the outcome.
type Notifier interface {
	OrderCreated(ctx context.Context, order *ServiceOrder, client *Client)
	StatusChanged(ctx context.Context, order *ServiceOrder, previous Status, client *Client)
}

// ApplianceInput references one client-owned appliance and its reported fault.
type ApplianceInput struct {
	ApplianceID int
	Falla       string
}

// CreateOrderInput carries everything needed to open a service order.
type CreateOrderInput struct {
	ClientID     int
	Appliances   []ApplianceInput
	TechnicianID int // 0 means unassigned
	IsPreOrder   bool

	TotalAmount       decimal.Decimal
	PresupuestoAmount *decimal.Decimal
	IncludeIVA        bool

	FechaCaptacion *time.Time
	FechaAgendado  *time.Time

	ClientNotificationsEnabled *bool // nil defaults to true
}

// ApplianceUpdate patches the fault/resolution text of one appliance link.
type ApplianceUpdate struct {
	ApplianceID int
	Falla       *string
	Solucion    *string
}

// OrderPatch is a partial update; nil fields are left untouched.
type OrderPatch struct {
	Status      *Status
	StatusNotes string // appended to the audit entry when the status changes

	TotalAmount       *decimal.Decimal
	PresupuestoAmount *decimal.Decimal
	IncludeIVA        *bool

	GarantiaStartDate *time.Time
	GarantiaEndDate   *time.Time
	GarantiaIlimitada *bool
	GarantiaPrioridad *WarrantyPriority
	RazonGarantia     *string

	FechaCaptacion   *time.Time
	FechaAgendado    *time.Time
	FechaReparacion  *time.Time
	FechaSeguimiento *time.Time

	ClientNotificationsEnabled *bool

	TechnicianID *int // 0 deactivates the current assignment
	Appliances   []ApplianceUpdate
}

// OrderService drives the service-order lifecycle: creation with a
// collision-safe order code, audited status transitions, technician
// assignment history, and warranty queries.
type OrderService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput, actorID int) (*ServiceOrder, error)
	UpdateOrder(ctx context.Context, orderID int, patch OrderPatch, actorID int) (*ServiceOrder, error)
	AssignTechnician(ctx context.Context, orderID, technicianID int, notes string, actorID int) (*ServiceOrder, error)

	GetOrder(ctx context.Context, orderID int) (*ServiceOrder, error)
	ListOrders(ctx context.Context, status *Status) ([]ServiceOrder, error)
	ListOrdersUnderWarranty(ctx context.Context) ([]ServiceOrder, error)
	GetStatusHistory(ctx context.Context, orderID int) ([]StatusHistoryEntry, error)
	GetAssignments(ctx context.Context, orderID int) ([]TechnicianAssignment, error)
}

type orderService struct {
	pool     *pgxpool.Pool
	codes    *CodeGenerator
	notifier Notifier
}

func NewOrderService(pool *pgxpool.Pool, notifier Notifier) OrderService {
	s := &orderService{pool: pool, notifier: notifier}
	s.codes = NewCodeGenerator(s.codeExists)
	return s
}

// InitialStatus determines the status a new order starts in. It depends on
// nothing but these two inputs.
func InitialStatus(isPreOrder bool, technicianID int) Status {
	switch {
	case isPreOrder:
		return StatusPreorder
	case technicianID > 0:
		return StatusAssigned
	default:
		return StatusPending
	}
}

// ── Create ───────────────────────────────────────────────────────────────────

func (s *orderService) CreateOrder(ctx context.Context, input CreateOrderInput, actorID int) (*ServiceOrder, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	status := InitialStatus(input.IsPreOrder, input.TechnicianID)
	notifyClient := true
	if input.ClientNotificationsEnabled != nil {
		notifyClient = *input.ClientNotificationsEnabled
	}

	var orderID int
	_, err := s.codes.Reserve(ctx, func(code string) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx, `
			INSERT INTO service_orders (order_code, order_number, client_id, status, payment_status,
			                            total_amount, presupuesto_amount, include_iva,
			                            fecha_captacion, fecha_agendado, client_notifications_enabled, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id
		`, code, FormatOrderNumber(code), input.ClientID, status, PaymentPending,
			input.TotalAmount, nullDecimal(input.PresupuestoAmount), input.IncludeIVA,
			input.FechaCaptacion, input.FechaAgendado, notifyClient, actorID).Scan(&orderID)
		if err != nil {
			// A unique-violation here is the order-code race; Reserve retries it.
			if IsUniqueViolation(err) {
				return err
			}
			return fmt.Errorf("failed to insert service order: %w", err)
		}

		for _, a := range input.Appliances {
			_, err = tx.Exec(ctx, `
				INSERT INTO service_order_appliances (service_order_id, appliance_id, falla)
				VALUES ($1, $2, $3)
			`, orderID, a.ApplianceID, a.Falla)
			if err != nil {
				return fmt.Errorf("failed to link appliance %d: %w", a.ApplianceID, err)
			}
		}

		if input.TechnicianID > 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO technician_assignments (service_order_id, technician_id, is_active)
				VALUES ($1, $2, true)
			`, orderID, input.TechnicianID)
			if err != nil {
				return fmt.Errorf("failed to assign technician %d: %w", input.TechnicianID, err)
			}
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Best-effort: the order is durable, dispatch failures stay in the logs.
	if s.notifier != nil {
		client, _ := fetchClient(ctx, s.pool, order.ClientID)
		s.notifier.OrderCreated(ctx, order, client)
	}
	return order, nil
}

func validateCreateInput(input CreateOrderInput) error {
	if input.ClientID <= 0 {
		return newValidationError("client_id", "is required")
	}
	if len(input.Appliances) == 0 {
		return newValidationError("appliances", "at least one appliance is required")
	}
	seen := make(map[int]bool, len(input.Appliances))
	for _, a := range input.Appliances {
		if a.ApplianceID <= 0 {
			return newValidationError("appliances", "appliance id is required")
		}
		if seen[a.ApplianceID] {
			return newValidationError("appliances", fmt.Sprintf("appliance %d referenced twice", a.ApplianceID))
		}
		seen[a.ApplianceID] = true
	}
	if input.TotalAmount.IsNegative() {
		return newValidationError("total_amount", "must not be negative")
	}
	return nil
}

func (s *orderService) codeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM service_orders WHERE order_code = $1)", code,
	).Scan(&exists)
	return exists, err
}

// ── Update / status transition ───────────────────────────────────────────────

func (s *orderService) UpdateOrder(ctx context.Context, orderID int, patch OrderPatch, actorID int) (*ServiceOrder, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, newValidationError("status", fmt.Sprintf("unrecognized value %q", *patch.Status))
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

	set := []string{"updated_by = $1", "updated_at = NOW()"}
	args := []any{actorID}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	// The engine writes any recognized status; only an actual change is audited.
	statusChanged := patch.Status != nil && *patch.Status != previous
	if statusChanged {
		add("status", *patch.Status)
	}
	if patch.TotalAmount != nil {
		add("total_amount", *patch.TotalAmount)
	}
	if patch.PresupuestoAmount != nil {
		add("presupuesto_amount", *patch.PresupuestoAmount)
	}
	if patch.IncludeIVA != nil {
		add("include_iva", *patch.IncludeIVA)
	}
	// Warranty fields are written verbatim; the warranty helpers are advisory.
	if patch.GarantiaStartDate != nil {
		add("garantia_start_date", *patch.GarantiaStartDate)
	}
	if patch.GarantiaEndDate != nil {
		add("garantia_end_date", *patch.GarantiaEndDate)
	}
	if patch.GarantiaIlimitada != nil {
		add("garantia_ilimitada", *patch.GarantiaIlimitada)
	}
	if patch.GarantiaPrioridad != nil {
		add("garantia_prioridad", string(*patch.GarantiaPrioridad))
	}
	if patch.RazonGarantia != nil {
		add("razon_garantia", *patch.RazonGarantia)
	}
	if patch.FechaCaptacion != nil {
		add("fecha_captacion", *patch.FechaCaptacion)
	}
	if patch.FechaAgendado != nil {
		add("fecha_agendado", *patch.FechaAgendado)
	}
	if patch.FechaReparacion != nil {
		add("fecha_reparacion", *patch.FechaReparacion)
	}
	if patch.FechaSeguimiento != nil {
		add("fecha_seguimiento", *patch.FechaSeguimiento)
	}
	if patch.ClientNotificationsEnabled != nil {
		add("client_notifications_enabled", *patch.ClientNotificationsEnabled)
	}

	query := "UPDATE service_orders SET " + strings.Join(set, ", ") + fmt.Sprintf(" WHERE id = $%d", len(args)+1)
	args = append(args, orderID)
	if _, err = tx.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update order %d: %w", orderID, err)
	}

	if statusChanged {
		if err = appendStatusHistoryTx(ctx, tx, orderID, previous, *patch.Status, patch.StatusNotes, actorID); err != nil {
			return nil, err
		}
	}

	for _, a := range patch.Appliances {
		if err = s.updateApplianceTx(ctx, tx, orderID, a); err != nil {
			return nil, err
		}
	}

	if patch.TechnicianID != nil {
		if err = reassignTechnicianTx(ctx, tx, orderID, *patch.TechnicianID, "", actorID); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order update: %w", err)
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if statusChanged && s.notifier != nil {
		client, _ := fetchClient(ctx, s.pool, order.ClientID)
		s.notifier.StatusChanged(ctx, order, previous, client)
	}
	return order, nil
}

func (s *orderService) updateApplianceTx(ctx context.Context, tx pgx.Tx, orderID int, a ApplianceUpdate) error {
	set := []string{}
	args := []any{}
	if a.Falla != nil {
		args = append(args, *a.Falla)
		set = append(set, fmt.Sprintf("falla = $%d", len(args)))
	}
	if a.Solucion != nil {
		args = append(args, *a.Solucion)
		set = append(set, fmt.Sprintf("solucion = $%d", len(args)))
	}
	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE service_order_appliances SET %s WHERE service_order_id = $%d AND appliance_id = $%d",
		strings.Join(set, ", "), len(args)+1, len(args)+2)
	args = append(args, orderID, a.ApplianceID)
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update appliance %d on order %d: %w", a.ApplianceID, orderID, err)
	}
	return nil
}

// appendStatusHistoryTx writes the immutable audit row for a status change.
// Every transition path, delivery included, goes through this.
func appendStatusHistoryTx(ctx context.Context, tx pgx.Tx, orderID int, from, to Status, notes string, actorID int) error {
	text := fmt.Sprintf("%s → %s", from, to)
	if notes != "" {
		text += ": " + notes
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO status_history (service_order_id, status, notes, created_by)
		VALUES ($1, $2, $3, $4)
	`, orderID, to, text, actorID)
	if err != nil {
		return fmt.Errorf("failed to append status history for order %d: %w", orderID, err)
	}
	return nil
}

// ── Technician assignment ────────────────────────────────────────────────────

func (s *orderService) AssignTechnician(ctx context.Context, orderID, technicianID int, notes string, actorID int) (*ServiceOrder, error) {
	if technicianID < 0 {
		return nil, newValidationError("technician_id", "must not be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM service_orders WHERE id = $1)", orderID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}
	if !exists {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}

	if err = reassignTechnicianTx(ctx, tx, orderID, technicianID, notes, actorID); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit assignment: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

// reassignTechnicianTx deactivates the current active assignment and inserts
// a new active row, never mutating technician_id in place. technicianID 0
// only deactivates. Assigning the already-active technician is a no-op.
func reassignTechnicianTx(ctx context.Context, tx pgx.Tx, orderID, technicianID int, notes string, actorID int) error {
	var currentID, currentTech int
	err := tx.QueryRow(ctx, `
		SELECT id, technician_id FROM technician_assignments
		WHERE service_order_id = $1 AND is_active FOR UPDATE
	`, orderID).Scan(&currentID, &currentTech)
	switch {
	case err == nil:
		if currentTech == technicianID {
			return nil
		}
		_, err = tx.Exec(ctx,
			"UPDATE technician_assignments SET is_active = false, unassigned_at = NOW() WHERE id = $1", currentID)
		if err != nil {
			return fmt.Errorf("failed to deactivate assignment %d: %w", currentID, err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		// no active assignment to retire
	default:
		return fmt.Errorf("failed to fetch active assignment for order %d: %w", orderID, err)
	}

	if technicianID == 0 {
		return nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO technician_assignments (service_order_id, technician_id, is_active, notes)
		VALUES ($1, $2, true, $3)
	`, orderID, technicianID, notes)
	if err != nil {
		return fmt.Errorf("failed to assign technician %d to order %d: %w", technicianID, orderID, err)
	}
	return nil
}

func (s *orderService) GetAssignments(ctx context.Context, orderID int) ([]TechnicianAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ta.id, ta.service_order_id, ta.technician_id, t.name, ta.is_active,
		       ta.notes, ta.assigned_at, ta.unassigned_at
		FROM technician_assignments ta
		JOIN technicians t ON t.id = ta.technician_id
		WHERE ta.service_order_id = $1
		ORDER BY ta.assigned_at
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []TechnicianAssignment
	for rows.Next() {
		var a TechnicianAssignment
		if err := rows.Scan(&a.ID, &a.ServiceOrderID, &a.TechnicianID, &a.TechnicianName,
			&a.IsActive, &a.Notes, &a.AssignedAt, &a.UnassignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ── Queries ──────────────────────────────────────────────────────────────────

const orderColumns = `
	so.id, so.order_code, so.order_number, so.client_id, c.name,
	so.status, so.payment_status, so.total_amount, so.paid_amount, so.presupuesto_amount,
	so.include_iva, so.garantia_start_date, so.garantia_end_date, so.garantia_ilimitada,
	COALESCE(so.garantia_prioridad, ''), COALESCE(so.razon_garantia, ''),
	so.fecha_captacion, so.fecha_agendado, so.fecha_reparacion, so.fecha_seguimiento, so.fecha_entrega,
	so.client_notifications_enabled, so.created_by, so.updated_by, so.created_at, so.updated_at`

func scanOrder(row pgx.Row) (*ServiceOrder, error) {
	var o ServiceOrder
	var status, payStatus, prioridad string
	var presupuesto decimal.NullDecimal
	err := row.Scan(
		&o.ID, &o.OrderCode, &o.OrderNumber, &o.ClientID, &o.ClientName,
		&status, &payStatus, &o.TotalAmount, &o.PaidAmount, &presupuesto,
		&o.IncludeIVA, &o.GarantiaStartDate, &o.GarantiaEndDate, &o.GarantiaIlimitada,
		&prioridad, &o.RazonGarantia,
		&o.FechaCaptacion, &o.FechaAgendado, &o.FechaReparacion, &o.FechaSeguimiento, &o.FechaEntrega,
		&o.ClientNotificationsEnabled, &o.CreatedBy, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(payStatus)
	o.GarantiaPrioridad = WarrantyPriority(prioridad)
	if presupuesto.Valid {
		o.PresupuestoAmount = &presupuesto.Decimal
	}
	return &o, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID int) (*ServiceOrder, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM service_orders so
		JOIN clients c ON c.id = so.client_id
		WHERE so.id = $1
	`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	o.Appliances, err = s.fetchAppliances(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *orderService) fetchAppliances(ctx context.Context, orderID int) ([]OrderAppliance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT soa.id, soa.service_order_id, soa.appliance_id, a.kind, soa.falla, soa.solucion
		FROM service_order_appliances soa
		JOIN appliances a ON a.id = soa.appliance_id
		WHERE soa.service_order_id = $1
		ORDER BY soa.id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order appliances: %w", err)
	}
	defer rows.Close()

	var links []OrderAppliance
	for rows.Next() {
		var l OrderAppliance
		if err := rows.Scan(&l.ID, &l.ServiceOrderID, &l.ApplianceID, &l.ApplianceKind, &l.Falla, &l.Solucion); err != nil {
			return nil, fmt.Errorf("failed to scan order appliance: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *orderService) ListOrders(ctx context.Context, status *Status) ([]ServiceOrder, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM service_orders so
		JOIN clients c ON c.id = so.client_id`
	var args []any
	if status != nil {
		query += " WHERE so.status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY so.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (s *orderService) ListOrdersUnderWarranty(ctx context.Context) ([]ServiceOrder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM service_orders so
		JOIN clients c ON c.id = so.client_id
		WHERE so.garantia_ilimitada
		   OR (so.garantia_start_date IS NOT NULL AND so.garantia_end_date IS NOT NULL
		       AND NOW() BETWEEN so.garantia_start_date AND so.garantia_end_date)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query warranty orders: %w", err)
	}
	defer rows.Close()

	var orders []ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	SortByWarrantyPriority(orders)
	return orders, nil
}

func (s *orderService) GetStatusHistory(ctx context.Context, orderID int) ([]StatusHistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, service_order_id, status, notes, created_by, created_at
		FROM status_history
		WHERE service_order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var entries []StatusHistoryEntry
	for rows.Next() {
		var e StatusHistoryEntry
		var status string
		if err := rows.Scan(&e.ID, &e.ServiceOrderID, &status, &e.Notes, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		e.Status = Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func fetchClient(ctx context.Context, q pgxQuerier, clientID int) (*Client, error) {
	var c Client
	err := q.QueryRow(ctx, `
		SELECT id, name, COALESCE(phone, ''), notifications_enabled
		FROM clients WHERE id = $1
	`, clientID).Scan(&c.ID, &c.Name, &c.Phone, &c.NotificationsEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch client %d: %w", clientID, err)
	}
	return &c, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
