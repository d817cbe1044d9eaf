// Package notification routes notifications to delivery channels.
package notification

import (
	"context"
	"errors"
	"fmt"
)

const ChannelWhatsApp = "whatsapp"

var ErrUnknownChannel = errors.New("unknown notification channel")

// Notifiable is anything that can receive notifications.
type Notifiable interface {
	// RouteFor returns the address for channel, or "" when there is none.
	RouteFor(channel string) string
}

type Notification interface {
	// Via lists the channels n should be delivered on.
	Via(n Notifiable) []string
}

type Channel interface {
	Send(ctx context.Context, to Notifiable, n Notification) error
}

type Dispatcher struct {
	channels map[string]Channel
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{channels: make(map[string]Channel)}
}

// Register binds a channel to a name; registering a name again replaces it.
func (d *Dispatcher) Register(name string, ch Channel) *Dispatcher {
	d.channels[name] = ch
	return d
}

// Send delivers n on every channel it asks for. Delivery continues past a
// failing channel; all errors are returned joined.
func (d *Dispatcher) Send(ctx context.Context, to Notifiable, n Notification) error {
	var errs []error
	for _, name := range n.Via(to) {
		ch, ok := d.channels[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownChannel, name))
			continue
		}
		if err := ch.Send(ctx, to, n); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
