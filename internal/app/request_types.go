package app

import "time"

// ApplianceRef references one client-owned appliance and its reported fault.
type ApplianceRef struct {
	ApplianceID int    `json:"appliance_id"`
	Falla       string `json:"falla"`
}

// CreateOrderRequest is the wire shape for opening a service order. Monetary
// values travel as decimal strings to avoid float rounding.
type CreateOrderRequest struct {
	ClientID     int            `json:"client_id"`
	Appliances   []ApplianceRef `json:"appliances"`
	TechnicianID int            `json:"technician_id,omitempty"`
	IsPreOrder   bool           `json:"is_pre_order,omitempty"`

	TotalAmount       string `json:"total_amount,omitempty"`
	PresupuestoAmount string `json:"presupuesto_amount,omitempty"`
	IncludeIVA        bool   `json:"include_iva,omitempty"`

	FechaCaptacion *time.Time `json:"fecha_captacion,omitempty"`
	FechaAgendado  *time.Time `json:"fecha_agendado,omitempty"`

	ClientNotificationsEnabled *bool `json:"client_notifications_enabled,omitempty"`
}

// ApplianceUpdateRef patches fault/resolution text on one appliance link.
type ApplianceUpdateRef struct {
	ApplianceID int     `json:"appliance_id"`
	Falla       *string `json:"falla,omitempty"`
	Solucion    *string `json:"solucion,omitempty"`
}

// UpdateOrderRequest is a partial update; absent fields are left untouched.
type UpdateOrderRequest struct {
	Status      *string `json:"status,omitempty"`
	StatusNotes string  `json:"status_notes,omitempty"`

	TotalAmount       *string `json:"total_amount,omitempty"`
	PresupuestoAmount *string `json:"presupuesto_amount,omitempty"`
	IncludeIVA        *bool   `json:"include_iva,omitempty"`

	GarantiaStartDate *time.Time `json:"garantia_start_date,omitempty"`
	GarantiaEndDate   *time.Time `json:"garantia_end_date,omitempty"`
	GarantiaIlimitada *bool      `json:"garantia_ilimitada,omitempty"`
	GarantiaPrioridad *string    `json:"garantia_prioridad,omitempty"`
	RazonGarantia     *string    `json:"razon_garantia,omitempty"`

	FechaCaptacion   *time.Time `json:"fecha_captacion,omitempty"`
	FechaAgendado    *time.Time `json:"fecha_agendado,omitempty"`
	FechaReparacion  *time.Time `json:"fecha_reparacion,omitempty"`
	FechaSeguimiento *time.Time `json:"fecha_seguimiento,omitempty"`

	ClientNotificationsEnabled *bool `json:"client_notifications_enabled,omitempty"`

	TechnicianID *int                 `json:"technician_id,omitempty"`
	Appliances   []ApplianceUpdateRef `json:"appliances,omitempty"`
}

type AssignTechnicianRequest struct {
	TechnicianID int    `json:"technician_id"`
	Notes        string `json:"notes,omitempty"`
}

type RecordPaymentRequest struct {
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Reference     string `json:"reference,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type CreateDeliveryNoteRequest struct {
	ReceivedBy string `json:"received_by"`
	Amount     string `json:"amount,omitempty"`
	Notes      string `json:"notes,omitempty"`
}
