package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a service order. The engine does not
// enforce a transition graph: any recognized status may follow any other.
// Changes are detected against the stored value and audited in status_history.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusPreorder         Status = "PREORDER"
	StatusAssigned         Status = "ASSIGNED"
	StatusInProgress       Status = "IN_PROGRESS"
	StatusAprobado         Status = "APROBADO"
	StatusNoAprobado       Status = "NO_APROBADO"
	StatusCompleted        Status = "COMPLETED"
	StatusDelivered        Status = "DELIVERED"
	StatusGarantiaAplicada Status = "GARANTIA_APLICADA"
	StatusCancelled        Status = "CANCELLED"
)

var knownStatuses = map[Status]bool{
	StatusPending:          true,
	StatusPreorder:         true,
	StatusAssigned:         true,
	StatusInProgress:       true,
	StatusAprobado:         true,
	StatusNoAprobado:       true,
	StatusCompleted:        true,
	StatusDelivered:        true,
	StatusGarantiaAplicada: true,
	StatusCancelled:        true,
}

// Valid reports whether s is a recognized lifecycle status.
func (s Status) Valid() bool {
	return knownStatuses[s]
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPartial   PaymentStatus = "PARTIAL"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// WarrantyPriority is the triage level for orders under warranty.
type WarrantyPriority string

const (
	PriorityBaja  WarrantyPriority = "BAJA"
	PriorityMedia WarrantyPriority = "MEDIA"
	PriorityAlta  WarrantyPriority = "ALTA"
)

// IVARate is the tax rate applied when an order is flagged include_iva.
var IVARate = decimal.NewFromFloat(0.16)

// ServiceOrder is the aggregate root. All owned entities (appliance links,
// assignments, payments, delivery notes, history) are created and updated
// only through the engine's operations.
type ServiceOrder struct {
	ID                int              `json:"id"`
	OrderCode         string           `json:"order_code"`
	OrderNumber       string           `json:"order_number"`
	ClientID          int              `json:"client_id"`
	ClientName        string           `json:"client_name"` // joined from clients
	Status            Status           `json:"status"`
	PaymentStatus     PaymentStatus    `json:"payment_status"`
	TotalAmount       decimal.Decimal  `json:"total_amount"`
	PaidAmount        decimal.Decimal  `json:"paid_amount"`
	PresupuestoAmount *decimal.Decimal `json:"presupuesto_amount,omitempty"`
	IncludeIVA        bool             `json:"include_iva"`

	GarantiaStartDate *time.Time       `json:"garantia_start_date,omitempty"`
	GarantiaEndDate   *time.Time       `json:"garantia_end_date,omitempty"`
	GarantiaIlimitada bool             `json:"garantia_ilimitada"`
	GarantiaPrioridad WarrantyPriority `json:"garantia_prioridad,omitempty"`
	RazonGarantia     string           `json:"razon_garantia,omitempty"`

	FechaCaptacion   *time.Time `json:"fecha_captacion,omitempty"`
	FechaAgendado    *time.Time `json:"fecha_agendado,omitempty"`
	FechaReparacion  *time.Time `json:"fecha_reparacion,omitempty"`
	FechaSeguimiento *time.Time `json:"fecha_seguimiento,omitempty"`
	FechaEntrega     *time.Time `json:"fecha_entrega,omitempty"`

	ClientNotificationsEnabled bool `json:"client_notifications_enabled"`

	CreatedBy int       `json:"created_by"`
	UpdatedBy *int      `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Appliances []OrderAppliance `json:"appliances"`
}

// TotalWithIVA returns the order total including tax when include_iva is set.
func (o *ServiceOrder) TotalWithIVA() decimal.Decimal {
	if !o.IncludeIVA {
		return o.TotalAmount
	}
	return o.TotalAmount.Add(o.TotalAmount.Mul(IVARate)).Round(2)
}

// Balance returns the outstanding amount. Overpaid orders report zero.
func (o *ServiceOrder) Balance() decimal.Decimal {
	b := o.TotalAmount.Sub(o.PaidAmount)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// OrderAppliance links one service order to one client-owned appliance,
// carrying the reported fault and (eventually) its resolution.
type OrderAppliance struct {
	ID             int    `json:"id"`
	ServiceOrderID int    `json:"service_order_id"`
	ApplianceID    int    `json:"appliance_id"`
	ApplianceKind  string `json:"appliance_kind"` // joined from appliances
	Falla          string `json:"falla"`
	Solucion       string `json:"solucion"`
}

// TechnicianAssignment records that a technician is (or was) responsible for
// an order. Reassignment deactivates the previous row and inserts a new one;
// technician_id is never mutated in place, preserving the full history.
type TechnicianAssignment struct {
	ID             int        `json:"id"`
	ServiceOrderID int        `json:"service_order_id"`
	TechnicianID   int        `json:"technician_id"`
	TechnicianName string     `json:"technician_name"` // joined from technicians
	IsActive       bool       `json:"is_active"`
	Notes          string     `json:"notes"`
	AssignedAt     time.Time  `json:"assigned_at"`
	UnassignedAt   *time.Time `json:"unassigned_at,omitempty"`
}

// Payment is an immutable, append-only record of money received against an
// order. The running balance is always derived by summing these rows.
type Payment struct {
	ID             int             `json:"id"`
	ServiceOrderID int             `json:"service_order_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	Reference      string          `json:"reference,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedBy      int             `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DeliveryNote evidences that repaired goods were handed back to the client.
// Creating one forces the order into the terminal DELIVERED status.
type DeliveryNote struct {
	ID             int              `json:"id"`
	ServiceOrderID int              `json:"service_order_id"`
	NoteNumber     string           `json:"note_number"`
	ReceivedBy     string           `json:"received_by"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	CreatedBy      int              `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
}

// StatusHistoryEntry is an immutable audit row appended whenever an order's
// status actually changes.
type StatusHistoryEntry struct {
	ID             int       `json:"id"`
	ServiceOrderID int       `json:"service_order_id"`
	Status         Status    `json:"status"`
	Notes          string    `json:"notes"`
	CreatedBy      int       `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// Client is the read-only slice of the clients table the engine needs to
// derive notification recipients. Client CRUD lives outside the engine.
type Client struct {
	ID                   int    `json:"id"`
	Name                 string `json:"name"`
	Phone                string `json:"phone"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}
