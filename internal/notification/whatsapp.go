package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmehdipour/orderdesk/internal/metrics"
	"github.com/jmehdipour/orderdesk/internal/whatsapp"
	"go.uber.org/zap"
)

var ErrInvalidMessage = errors.New("invalid whatsapp message")

// WhatsAppMessage is a rendered template send.
type WhatsAppMessage struct {
	To           string               `json:"to"`
	TemplateName string               `json:"template_name"`
	Language     string               `json:"language"`
	Components   *whatsapp.Components `json:"components"`
}

// missing lists the required fields that are empty.
func (m WhatsAppMessage) missing() []string {
	var out []string
	if m.To == "" {
		out = append(out, "to")
	}
	if m.TemplateName == "" {
		out = append(out, "template_name")
	}
	if m.Language == "" {
		out = append(out, "language")
	}
	if m.Components == nil {
		out = append(out, "components")
	}
	return out
}

// WhatsAppNotification is implemented by notifications that can render
// themselves as a WhatsApp template message.
type WhatsAppNotification interface {
	ToWhatsApp(to Notifiable) WhatsAppMessage
}

type TemplateSender interface {
	SendTemplate(ctx context.Context, to, name, lang string, components *whatsapp.Components) (*whatsapp.Response, error)
}

// APIError is a non-200 reply from the WhatsApp API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api returned %d: %s", e.StatusCode, e.Body)
}

type WhatsAppChannel struct {
	client TemplateSender
	log    *zap.Logger
}

func NewWhatsAppChannel(client TemplateSender, log *zap.Logger) *WhatsAppChannel {
	if log == nil {
		log = zap.NewNop()
	}
	return &WhatsAppChannel{client: client, log: log.With(zap.String("channel", ChannelWhatsApp))}
}

// Send is a no-op for notifications that do not implement
// WhatsAppNotification.
func (c *WhatsAppChannel) Send(ctx context.Context, to Notifiable, n Notification) error {
	wn, ok := n.(WhatsAppNotification)
	if !ok {
		metrics.WhatsAppMessagesTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	msg := wn.ToWhatsApp(to)
	if missing := msg.missing(); len(missing) > 0 {
		metrics.WhatsAppMessagesTotal.WithLabelValues("invalid").Inc()
		c.log.Error("whatsapp message missing required fields",
			zap.Strings("missing", missing),
			zap.String("to", msg.To),
			zap.String("template", msg.TemplateName),
		)
		return fmt.Errorf("%w: missing %v", ErrInvalidMessage, missing)
	}

	res, err := c.client.SendTemplate(ctx, msg.To, msg.TemplateName, msg.Language, msg.Components)
	if err != nil {
		metrics.WhatsAppMessagesTotal.WithLabelValues("error").Inc()
		c.log.Error("whatsapp send failed",
			zap.String("to", msg.To),
			zap.String("template", msg.TemplateName),
			zap.Error(err),
		)
		return fmt.Errorf("send whatsapp template %s: %w", msg.TemplateName, err)
	}

	if !res.OK() {
		metrics.WhatsAppMessagesTotal.WithLabelValues("api_error").Inc()
		c.log.Error("whatsapp api rejected message",
			zap.Int("status", res.StatusCode),
			zap.ByteString("body", res.Body),
			zap.String("to", msg.To),
			zap.String("template", msg.TemplateName),
		)
		return &APIError{StatusCode: res.StatusCode, Body: string(res.Body)}
	}

	metrics.WhatsAppMessagesTotal.WithLabelValues("sent").Inc()
	c.log.Debug("whatsapp message sent",
		zap.String("to", msg.To),
		zap.String("template", msg.TemplateName),
	)
	return nil
}
