package notify

import (
	"fmt"

	"taller-service/internal/core"
)

// Message is a channel-agnostic human-readable notification.
type Message struct {
	Title string
	Body  string
}

// statusTitles maps each new status to its notification headline. Statuses
// without an entry fall back to the generic "order updated" title.
var statusTitles = map[core.Status]string{
	core.StatusCompleted:        "✅ Servicio completado",
	core.StatusDelivered:        "📦 Equipo entregado",
	core.StatusAprobado:         "👍 Presupuesto aprobado",
	core.StatusNoAprobado:       "👎 Presupuesto rechazado",
	core.StatusInProgress:       "🔧 Servicio en progreso",
	core.StatusAssigned:         "🛠️ Técnico asignado",
	core.StatusGarantiaAplicada: "🛡️ Garantía aplicada",
}

const genericStatusTitle = "🔔 Orden actualizada"

// StatusTitle returns the headline for a transition into the given status.
func StatusTitle(s core.Status) string {
	if t, ok := statusTitles[s]; ok {
		return t
	}
	return genericStatusTitle
}

// StatusChangeMessage renders the notification for a status transition.
func StatusChangeMessage(order *core.ServiceOrder, previous core.Status) Message {
	body := fmt.Sprintf("Orden %s (%s): %s → %s",
		order.OrderNumber, order.ClientName, previous, order.Status)
	if order.Status == core.StatusAprobado && order.PresupuestoAmount != nil {
		body += fmt.Sprintf("\nPresupuesto: $%s", order.PresupuestoAmount.StringFixed(2))
	}
	if order.Status == core.StatusDelivered {
		body += fmt.Sprintf("\nTotal: $%s — Pagado: $%s",
			order.TotalWithIVA().StringFixed(2), order.PaidAmount.StringFixed(2))
	}
	return Message{Title: StatusTitle(order.Status), Body: body}
}

// OrderCreatedMessage renders the notification for a freshly created order.
func OrderCreatedMessage(order *core.ServiceOrder) Message {
	body := fmt.Sprintf("Nueva orden %s para %s (%d equipo(s)). Estado inicial: %s.",
		order.OrderNumber, order.ClientName, len(order.Appliances), order.Status)
	if order.TotalAmount.IsPositive() {
		body += fmt.Sprintf(" Total estimado: $%s.", order.TotalWithIVA().StringFixed(2))
	}
	return Message{Title: "🧾 Orden de servicio creada", Body: body}
}
