package notify

import (
	"context"

	log "github.com/sirupsen/logrus"

	"taller-service/internal/core"
)

// OrderNotifier implements core.Notifier on top of the Dispatcher. The
// operator recipient is always attempted; the client is attempted only when
// a phone is on file and the order has client notifications enabled. All
// dispatch failures are logged here and never reach the engine.
type OrderNotifier struct {
	dispatcher *Dispatcher
	operator   Recipient
}

func NewOrderNotifier(dispatcher *Dispatcher, operator Recipient) *OrderNotifier {
	return &OrderNotifier{dispatcher: dispatcher, operator: operator}
}

func (n *OrderNotifier) OrderCreated(ctx context.Context, order *core.ServiceOrder, client *core.Client) {
	n.fanOut(ctx, order, client, OrderCreatedMessage(order))
}

func (n *OrderNotifier) StatusChanged(ctx context.Context, order *core.ServiceOrder, previous core.Status, client *core.Client) {
	n.fanOut(ctx, order, client, StatusChangeMessage(order, previous))
}

func (n *OrderNotifier) fanOut(ctx context.Context, order *core.ServiceOrder, client *core.Client, msg Message) {
	for _, to := range n.recipients(order, client) {
		if err := n.dispatcher.Dispatch(ctx, to, msg); err != nil {
			log.WithFields(log.Fields{
				"order":     order.OrderNumber,
				"recipient": to.Name,
			}).WithError(err).Error("notification dropped")
		}
	}
}

func (n *OrderNotifier) recipients(order *core.ServiceOrder, client *core.Client) []Recipient {
	recipients := []Recipient{n.operator}
	if client == nil || client.Phone == "" {
		return recipients
	}
	if !order.ClientNotificationsEnabled || !client.NotificationsEnabled {
		return recipients
	}
	return append(recipients, Recipient{Name: client.Name, Phone: client.Phone})
}
