package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func ok(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func TestRateLimiterPerIP(t *testing.T) {
	e := echo.New()
	h := RateLimiter(2, time.Minute)(ok)

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		_ = h(e.NewContext(req, rec))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}

func TestTwilioSignature(t *testing.T) {
	e := echo.New()
	h := TwilioSignature("token", "https://relay.example.com")(ok)
	form := url.Values{"From": {"whatsapp:+15550001111"}, "Body": {"approve abc"}}

	call := func(signature string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		req.Header.Set("X-Twilio-Signature", signature)
		rec := httptest.NewRecorder()
		_ = h(e.NewContext(req, rec))
		return rec.Code
	}

	valid := TwilioSign("token", "https://relay.example.com/webhooks/twilio", form)
	assert.Equal(t, http.StatusOK, call(valid))
	assert.Equal(t, http.StatusForbidden, call("forged"))
	assert.Equal(t, http.StatusForbidden, call(""))
}
