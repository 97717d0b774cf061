package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"draft-relay/internal/apperror"
	"draft-relay/internal/logger"
)

// respondError maps service errors onto HTTP statuses.
func respondError(c echo.Context, log *logger.Logger, err error) error {
	var (
		validation *ValidationError
		upstream   *apperror.UpstreamError
	)
	err = formatValidation(err)
	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": validation.Message})
	case errors.Is(err, apperror.ErrDraftNotFound), errors.Is(err, apperror.ErrInvalidState):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Draft not found"})
	case errors.Is(err, apperror.ErrAccountNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Account not found"})
	case apperror.IsAuthError(err):
		return c.JSON(http.StatusConflict, map[string]string{
			"error":  "Mailbox needs to be reconnected",
			"action": "reconnect_required",
		})
	case apperror.IsRateLimited(err):
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Upstream rate limit reached, try again later"})
	case errors.As(err, &upstream):
		status := http.StatusBadGateway
		if upstream.Timeout {
			status = http.StatusGatewayTimeout
		}
		log.Error("Upstream failure:", err)
		return c.JSON(status, map[string]string{"error": "Upstream service failed"})
	}
	log.Error("Request failed:", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

func currentAccount(c echo.Context) string {
	id, _ := c.Get(ContextAccountKey).(string)
	return id
}
