package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"draft-relay/internal/handler"
)

// AuthMiddleware rejects requests without a connected account and stores
// the account id in the echo context.
func AuthMiddleware(authHandler *handler.AuthHandler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accountID, err := authHandler.CurrentAccountID(c)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "Unauthorized",
				})
			}
			c.Set(handler.ContextAccountKey, accountID)
			return next(c)
		}
	}
}
