package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"draft-relay/internal/logger"
	"draft-relay/internal/service"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type WebhookHandler struct {
	commandService service.CommandService
	logger         *logger.Logger
}

func NewWebhookHandler(commandService service.CommandService, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		commandService: commandService,
		logger:         logger,
	}
}

// Twilio handles inbound channel messages. It always answers 200 so the
// channel does not retry commands that were ignored.
func (h *WebhookHandler) Twilio(c echo.Context) error {
	from := c.FormValue("From")
	body := c.FormValue("Body")

	if from != "" && body != "" {
		// a dropped webhook connection must not abort a send halfway
		h.commandService.HandleInbound(context.WithoutCancel(c.Request().Context()), from, body)
	} else {
		h.logger.Debug("Ignoring webhook without From or Body")
	}

	return c.Blob(http.StatusOK, "text/xml", []byte(emptyTwiML))
}
