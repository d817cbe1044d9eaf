package notification

import "github.com/jmehdipour/orderdesk/internal/whatsapp"

// Recipient is a plain notifiable with a WhatsApp number.
type Recipient struct {
	Phone string
}

func (r Recipient) RouteFor(channel string) string {
	if channel == ChannelWhatsApp {
		return r.Phone
	}
	return ""
}

// OrderUpdateNotification tells a buyer something about their order through
// a template with two body parameters: the message and a link.
type OrderUpdateNotification struct {
	Message  string
	URL      string
	Template string
	Language string
}

func (n OrderUpdateNotification) Via(Notifiable) []string {
	return []string{ChannelWhatsApp}
}

func (n OrderUpdateNotification) ToWhatsApp(to Notifiable) WhatsAppMessage {
	return WhatsAppMessage{
		To:           to.RouteFor(ChannelWhatsApp),
		TemplateName: n.Template,
		Language:     n.Language,
		Components: &whatsapp.Components{
			Body: []whatsapp.Parameter{
				whatsapp.TextParam(n.Message),
				whatsapp.TextParam(n.URL),
			},
		},
	}
}
