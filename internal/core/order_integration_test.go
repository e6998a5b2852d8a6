package core_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"taller-service/internal/core"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	schema, err := os.ReadFile("../../migrations/schema.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	// Clean and seed test DB
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE status_history, delivery_notes, payments, technician_assignments,
		               service_order_appliances, service_orders, appliances, technicians, clients
		RESTART IDENTITY CASCADE;

		INSERT INTO clients (name, phone, notifications_enabled) VALUES
		('Ana Torres', '+5215550001', true),
		('Luis Mora', NULL, false);

		INSERT INTO appliances (client_id, kind, brand) VALUES
		(1, 'Refrigerador', 'Mabe'),
		(1, 'Lavadora', 'LG'),
		(2, 'Microondas', 'Samsung');

		INSERT INTO technicians (name, phone) VALUES
		('Pedro Sánchez', '+5215550100'),
		('María López', '+5215550101');
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

// recordingNotifier captures engine notifications for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	created  []string      // order numbers
	changed  []core.Status // previous statuses
	lastInto core.Status
}

func (n *recordingNotifier) OrderCreated(ctx context.Context, order *core.ServiceOrder, client *core.Client) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, order.OrderNumber)
}

func (n *recordingNotifier) StatusChanged(ctx context.Context, order *core.ServiceOrder, previous core.Status, client *core.Client) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, previous)
	n.lastInto = order.Status
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.created), len(n.changed)
}

func basicInput() core.CreateOrderInput {
	return core.CreateOrderInput{
		ClientID:    1,
		Appliances:  []core.ApplianceInput{{ApplianceID: 1, Falla: "no enfría"}},
		TotalAmount: decimal.NewFromInt(800),
	}
}

func TestOrderService_CreateOrder(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	notifier := &recordingNotifier{}
	svc := core.NewOrderService(pool, notifier)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, basicInput(), 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if order.Status != core.StatusPending {
		t.Errorf("expected PENDING, got %s", order.Status)
	}
	if order.PaymentStatus != core.PaymentPending {
		t.Errorf("expected payment PENDING, got %s", order.PaymentStatus)
	}
	if len(order.OrderCode) != 8 {
		t.Errorf("expected an 8-character order code, got %q", order.OrderCode)
	}
	if order.OrderNumber != "OS-"+order.OrderCode {
		t.Errorf("order number %q does not match code %q", order.OrderNumber, order.OrderCode)
	}
	if order.ClientName != "Ana Torres" {
		t.Errorf("expected joined client name, got %q", order.ClientName)
	}
	if len(order.Appliances) != 1 || order.Appliances[0].Falla != "no enfría" {
		t.Errorf("appliance link not persisted: %+v", order.Appliances)
	}
	if !order.ClientNotificationsEnabled {
		t.Error("client notifications should default to enabled")
	}

	created, _ := notifier.counts()
	if created != 1 {
		t.Errorf("expected one creation notification, got %d", created)
	}

	// Order codes are unique across orders.
	second, err := svc.CreateOrder(ctx, basicInput(), 1)
	if err != nil {
		t.Fatalf("second CreateOrder failed: %v", err)
	}
	if second.OrderCode == order.OrderCode {
		t.Error("two orders received the same code")
	}
}

func TestOrderService_CreateOrder_InitialStatuses(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewOrderService(pool, nil)
	ctx := context.Background()

	pre := basicInput()
	pre.IsPreOrder = true
	pre.TechnicianID = 1
	order, err := svc.CreateOrder(ctx, pre, 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.Status != core.StatusPreorder {
		t.Errorf("pre-order flag must win: got %s", order.Status)
	}

	assigned := basicInput()
	assigned.Appliances = []core.ApplianceInput{{ApplianceID: 2, Falla: "no centrifuga"}}
	assigned.TechnicianID = 2
	order, err = svc.CreateOrder(ctx, assigned, 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.Status != core.StatusAssigned {
		t.Errorf("expected ASSIGNED, got %s", order.Status)
	}

	assignments, err := svc.GetAssignments(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetAssignments failed: %v", err)
	}
	if len(assignments) != 1 || !assignments[0].IsActive || assignments[0].TechnicianID != 2 {
		t.Errorf("expected one active assignment for technician 2, got %+v", assignments)
	}
}

func TestOrderService_CreateOrder_Validation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewOrderService(pool, nil)
	ctx := context.Background()

	bad := basicInput()
	bad.ClientID = 0
	if _, err := svc.CreateOrder(ctx, bad, 1); !core.IsValidation(err) {
		t.Errorf("missing client: expected validation error, got %v", err)
	}

	bad = basicInput()
	bad.Appliances = nil
	if _, err := svc.CreateOrder(ctx, bad, 1); !core.IsValidation(err) {
		t.Errorf("no appliances: expected validation error, got %v", err)
	}

	bad = basicInput()
	bad.TotalAmount = decimal.NewFromInt(-5)
	if _, err := svc.CreateOrder(ctx, bad, 1); !core.IsValidation(err) {
		t.Errorf("negative total: expected validation error, got %v", err)
	}
}

func TestOrderService_UpdateOrder_AuditsRealStatusChanges(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	notifier := &recordingNotifier{}
	svc := core.NewOrderService(pool, notifier)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, basicInput(), 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	inProgress := core.StatusInProgress
	updated, err := svc.UpdateOrder(ctx, order.ID, core.OrderPatch{
		Status:      &inProgress,
		StatusNotes: "revisión iniciada",
	}, 2)
	if err != nil {
		t.Fatalf("UpdateOrder failed: %v", err)
	}
	if updated.Status != core.StatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", updated.Status)
	}
	if updated.UpdatedBy == nil || *updated.UpdatedBy != 2 {
		t.Errorf("expected updated_by 2, got %v", updated.UpdatedBy)
	}

	history, err := svc.GetStatusHistory(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetStatusHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(history))
	}
	if history[0].Status != core.StatusInProgress {
		t.Errorf("audit entry records %s, want IN_PROGRESS", history[0].Status)
	}
	if !strings.Contains(history[0].Notes, "PENDING → IN_PROGRESS") ||
		!strings.Contains(history[0].Notes, "revisión iniciada") {
		t.Errorf("unexpected audit notes %q", history[0].Notes)
	}

	// Writing the same status again is not a change: no audit, no notification.
	if _, err := svc.UpdateOrder(ctx, order.ID, core.OrderPatch{Status: &inProgress}, 2); err != nil {
		t.Fatalf("idempotent update failed: %v", err)
	}
	history, _ = svc.GetStatusHistory(ctx, order.ID)
	if len(history) != 1 {
		t.Errorf("same-status write must not append history, got %d entries", len(history))
	}
	if _, changed := notifier.counts(); changed != 1 {
		t.Errorf("expected exactly one status notification, got %d", changed)
	}
	if notifier.changed[0] != core.StatusPending {
		t.Errorf("notification should carry previous status PENDING, got %s", notifier.changed[0])
	}
}

func TestOrderService_UpdateOrder_FieldPatches(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	notifier := &recordingNotifier{}
	svc := core.NewOrderService(pool, notifier)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, basicInput(), 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	total := decimal.NewFromInt(950)
	presupuesto := decimal.NewFromInt(900)
	ilimitada := true
	prioridad := core.PriorityAlta
	razon := "compresor reemplazado"
	solucion := "se cambió el compresor"
	updated, err := svc.UpdateOrder(ctx, order.ID, core.OrderPatch{
		TotalAmount:       &total,
		PresupuestoAmount: &presupuesto,
		GarantiaIlimitada: &ilimitada,
		GarantiaPrioridad: &prioridad,
		RazonGarantia:     &razon,
		Appliances:        []core.ApplianceUpdate{{ApplianceID: 1, Solucion: &solucion}},
	}, 1)
	if err != nil {
		t.Fatalf("UpdateOrder failed: %v", err)
	}

	if !updated.TotalAmount.Equal(total) {
		t.Errorf("total not updated: %s", updated.TotalAmount)
	}
	if updated.PresupuestoAmount == nil || !updated.PresupuestoAmount.Equal(presupuesto) {
		t.Errorf("presupuesto not updated: %v", updated.PresupuestoAmount)
	}
	if !updated.GarantiaIlimitada || updated.GarantiaPrioridad != core.PriorityAlta || updated.RazonGarantia != razon {
		t.Errorf("warranty fields not written verbatim: %+v", updated)
	}
	if len(updated.Appliances) != 1 || updated.Appliances[0].Solucion != solucion {
		t.Errorf("appliance solucion not patched: %+v", updated.Appliances)
	}
	if updated.Status != order.Status {
		t.Errorf("field patch must not move the status: %s", updated.Status)
	}

	history, _ := svc.GetStatusHistory(ctx, order.ID)
	if len(history) != 0 {
		t.Errorf("field-only update must not audit, got %d entries", len(history))
	}
	if _, changed := notifier.counts(); changed != 0 {
		t.Errorf("field-only update must not notify, got %d", changed)
	}
}

func TestOrderService_UpdateOrder_RejectsUnknownStatus(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewOrderService(pool, nil)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, basicInput(), 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	bogus := core.Status("EN_ROUTE")
	if _, err := svc.UpdateOrder(ctx, order.ID, core.OrderPatch{Status: &bogus}, 1); !core.IsValidation(err) {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
}

func TestOrderService_UpdateOrder_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewOrderService(pool, nil)

	status := core.StatusCompleted
	_, err := svc.UpdateOrder(context.Background(), 999999, core.OrderPatch{Status: &status}, 1)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOrderService_ReassignmentPreservesHistory(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewOrderService(pool, nil)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, basicInput(), 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if _, err := svc.AssignTechnician(ctx, order.ID, 1, "primer turno", 1); err != nil {
		t.Fatalf("first assignment failed: %v", err)
	}
	if _, err := svc.AssignTechnician(ctx, order.ID, 2, "relevo", 1); err != nil {
		t.Fatalf("reassignment failed: %v", err)
	}

	assignments, err := svc.GetAssignments(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetAssignments failed: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignment rows, got %d", len(assignments))
	}

	first, second := assignments[0], assignments[1]
	if first.TechnicianID != 1 || first.IsActive || first.UnassignedAt == nil {
		t.Errorf("first assignment should be retired, got %+v", first)
	}
	if second.TechnicianID != 2 || !second.IsActive || second.UnassignedAt != nil {
		t.Errorf("second assignment should be active, got %+v", second)
	}

	// Assigning the already-active technician is a no-op.
	if _, err := svc.AssignTechnician(ctx, order.ID, 2, "", 1); err != nil {
		t.Fatalf("same-technician assignment failed: %v", err)
	}
	assignments, _ = svc.GetAssignments(ctx, order.ID)
	if len(assignments) != 2 {
		t.Errorf("same-technician assignment must not add rows, got %d", len(assignments))
	}

	// Technician 0 via patch only deactivates.
	zero := 0
	if _, err := svc.UpdateOrder(ctx, order.ID, core.OrderPatch{TechnicianID: &zero}, 1); err != nil {
		t.Fatalf("deactivation failed: %v", err)
	}
	assignments, _ = svc.GetAssignments(ctx, order.ID)
	for _, a := range assignments {
		if a.IsActive {
			t.Errorf("expected no active assignment after deactivation, got %+v", a)
		}
	}
}

func TestOrderService_ListOrders_StatusFilter(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewOrderService(pool, nil)
	ctx := context.Background()

	if _, err := svc.CreateOrder(ctx, basicInput(), 1); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	pre := basicInput()
	pre.Appliances = []core.ApplianceInput{{ApplianceID: 2, Falla: "fuga"}}
	pre.IsPreOrder = true
	if _, err := svc.CreateOrder(ctx, pre, 1); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	all, err := svc.ListOrders(ctx, nil)
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 orders, got %d", len(all))
	}

	preorder := core.StatusPreorder
	filtered, err := svc.ListOrders(ctx, &preorder)
	if err != nil {
		t.Fatalf("filtered ListOrders failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Status != core.StatusPreorder {
		t.Errorf("expected one PREORDER, got %+v", filtered)
	}
}

func TestOrderService_ListOrdersUnderWarranty(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewOrderService(pool, nil)
	ctx := context.Background()

	mkOrder := func(applianceID int) int {
		in := basicInput()
		in.Appliances = []core.ApplianceInput{{ApplianceID: applianceID, Falla: "x"}}
		order, err := svc.CreateOrder(ctx, in, 1)
		if err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
		return order.ID
	}
	expired := mkOrder(1)
	covered := mkOrder(2)
	unlimited := mkOrder(3)

	now := time.Now()
	past := now.AddDate(-1, 0, 0)
	pastEnd := now.AddDate(0, -6, 0)
	future := now.AddDate(0, 1, 0)
	media := core.PriorityMedia
	alta := core.PriorityAlta

	patch := func(id int, p core.OrderPatch) {
		if _, err := svc.UpdateOrder(ctx, id, p, 1); err != nil {
			t.Fatalf("UpdateOrder failed: %v", err)
		}
	}
	patch(expired, core.OrderPatch{GarantiaStartDate: &past, GarantiaEndDate: &pastEnd, GarantiaPrioridad: &alta})
	patch(covered, core.OrderPatch{GarantiaStartDate: &past, GarantiaEndDate: &future, GarantiaPrioridad: &media})
	ilimitada := true
	patch(unlimited, core.OrderPatch{GarantiaIlimitada: &ilimitada, GarantiaPrioridad: &alta})

	orders, err := svc.ListOrdersUnderWarranty(ctx)
	if err != nil {
		t.Fatalf("ListOrdersUnderWarranty failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 covered orders, got %d", len(orders))
	}
	// ALTA unlimited first, then MEDIA dated.
	if orders[0].ID != unlimited || orders[1].ID != covered {
		t.Errorf("unexpected ordering: %d, %d", orders[0].ID, orders[1].ID)
	}
}
