package handler

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"

	"draft-relay/internal/config"
	"draft-relay/internal/logger"
	"draft-relay/internal/service"
)

type AuthHandler struct {
	accountService service.AccountService
	store          sessions.Store
	logger         *logger.Logger
}

func NewAuthHandler(accountService service.AccountService, store sessions.Store, config *config.Config, logger *logger.Logger) *AuthHandler {
	gothic.Store = store

	provider := google.New(
		config.GoogleClientID,
		config.GoogleClientSecret,
		config.BaseURL+"/auth/google/callback",
		"https://www.googleapis.com/auth/gmail.modify",
		"https://www.googleapis.com/auth/gmail.send",
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
	)
	// consent on every sign-in so Google returns a refresh token
	provider.SetPrompt("consent")
	goth.UseProviders(provider)

	return &AuthHandler{
		accountService: accountService,
		store:          store,
		logger:         logger,
	}
}

// BeginAuthHandler initiates the OAuth flow
func (h *AuthHandler) BeginAuthHandler(c echo.Context) error {
	if c.Param("provider") != "google" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid provider",
		})
	}
	gothic.BeginAuthHandler(c.Response(), withProvider(c))
	return nil
}

// CallbackHandler connects the Gmail mailbox behind the Google sign-in
func (h *AuthHandler) CallbackHandler(c echo.Context) error {
	req := withProvider(c)

	googleUser, err := gothic.CompleteUserAuth(c.Response(), req)
	if err != nil {
		h.logger.Error("Failed to complete user auth:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Authentication failed",
		})
	}

	account, err := h.accountService.ConnectGmail(
		req.Context(),
		googleUser.Email,
		googleUser.Name,
		googleUser.AccessToken,
		googleUser.RefreshToken,
		googleUser.ExpiresAt,
	)
	if err != nil {
		h.logger.Error("Failed to connect account:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to connect mailbox",
		})
	}

	if err := h.saveAccount(c, account.ID); err != nil {
		h.logger.Error("Failed to save session:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to save session",
		})
	}

	return c.Redirect(http.StatusTemporaryRedirect, "/")
}

// LogoutHandler clears the session
func (h *AuthHandler) LogoutHandler(c echo.Context) error {
	if err := h.saveAccount(c, ""); err != nil {
		h.logger.Warn("Failed to clear session:", err)
	}
	_ = gothic.Logout(c.Response(), withProvider(c))
	return c.Redirect(http.StatusTemporaryRedirect, "/")
}

// CurrentAccountID returns the account bound to the request's session.
func (h *AuthHandler) CurrentAccountID(c echo.Context) (string, error) {
	session, err := h.store.Get(c.Request(), sessionName)
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	accountID, ok := session.Values[sessionAccount].(string)
	if !ok || accountID == "" {
		return "", fmt.Errorf("not authenticated")
	}
	return accountID, nil
}

func (h *AuthHandler) saveAccount(c echo.Context, accountID string) error {
	session, _ := h.store.Get(c.Request(), sessionName)
	if accountID == "" {
		delete(session.Values, sessionAccount)
		if session.Options != nil {
			session.Options.MaxAge = -1
		}
	} else {
		session.Values[sessionAccount] = accountID
	}
	return session.Save(c.Request(), c.Response())
}

// withProvider sets the provider query parameter goth looks for.
func withProvider(c echo.Context) *http.Request {
	req := c.Request()
	q := req.URL.Query()
	q.Set("provider", "google")
	req.URL.RawQuery = q.Encode()
	return req
}
