package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jmehdipour/orderdesk/internal/notification"
	"github.com/jmehdipour/orderdesk/internal/util"
	"github.com/jmehdipour/orderdesk/internal/whatsapp"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Notifier interface {
	Send(ctx context.Context, to notification.Notifiable, n notification.Notification) error
}

type sendWhatsAppReq struct {
	To       string `json:"to"`
	Template string `json:"template"`
	Language string `json:"language"`
	Message  string `json:"message"`
	URL      string `json:"url"`
}

func sendWhatsAppHandler(n Notifier, defaultCountry string, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sendWhatsAppReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		to := notification.Recipient{Phone: util.NormalizePhone(req.To, defaultCountry)}
		note := notification.OrderUpdateNotification{
			Message:  strings.TrimSpace(req.Message),
			URL:      strings.TrimSpace(req.URL),
			Template: strings.TrimSpace(req.Template),
			Language: strings.TrimSpace(req.Language),
		}

		err := n.Send(c.Request().Context(), to, note)
		if err == nil {
			return c.JSON(http.StatusAccepted, map[string]any{"sent": true, "to": to.Phone})
		}

		var apiErr *notification.APIError
		switch {
		case errors.Is(err, notification.ErrInvalidMessage):
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		case errors.As(err, &apiErr):
			return c.JSON(http.StatusBadGateway, map[string]any{
				"error":           "whatsapp api error",
				"upstream_status": apiErr.StatusCode,
			})
		case errors.Is(err, whatsapp.ErrCircuitOpen):
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "whatsapp temporarily unavailable"})
		default:
			log.Error("send whatsapp notification", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "send failed"})
		}
	}
}
