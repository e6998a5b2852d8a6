package notify

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Recipient is an addressable destination for a notification.
type Recipient struct {
	Name  string
	Phone string
}

// Channel is one delivery strategy for a message.
type Channel interface {
	Name() string
	Send(ctx context.Context, to Recipient, msg Message) error
}

const defaultDispatchTimeout = 10 * time.Second

// Dispatcher tries an ordered list of channels until one succeeds. Dispatch
// is strictly best-effort: every attempt failure is logged on its own, and
// the caller is expected to log-and-drop the aggregate error as well. When
// disabled, Dispatch is a no-op that reports success. The enabled flag is
// fixed at construction; there is no ambient global switch.
type Dispatcher struct {
	channels []Channel
	enabled  bool
	timeout  time.Duration
}

func NewDispatcher(enabled bool, timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{channels: channels, enabled: enabled, timeout: timeout}
}

// Enabled reports whether dispatching is active.
func (d *Dispatcher) Enabled() bool { return d.enabled }

// Dispatch sends msg to one recipient, trying each channel in order. Each
// attempt gets its own timeout so a slow channel cannot stall the caller.
// Returns nil on the first success, or the last failure when every channel
// failed.
func (d *Dispatcher) Dispatch(ctx context.Context, to Recipient, msg Message) error {
	if !d.enabled {
		return nil
	}
	if len(d.channels) == 0 {
		return fmt.Errorf("no notification channels configured")
	}

	var lastErr error
	for _, ch := range d.channels {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := ch.Send(attemptCtx, to, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		log.WithFields(log.Fields{
			"channel":   ch.Name(),
			"recipient": to.Phone,
		}).WithError(err).Warn("notification attempt failed, trying next channel")
	}
	return fmt.Errorf("all notification channels failed: %w", lastErr)
}
