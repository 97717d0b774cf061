package handler

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName     = "draft_relay_session"
	sessionAccount  = "account_id"
	sessionLifetime = 86400 * 30 // 30 days
)

// ContextAccountKey is the echo context key holding the signed-in account id.
const ContextAccountKey = "account_id"

// NewSessionStore creates a new cookie store for sessions
func NewSessionStore(secret []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionLifetime,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
