package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// TwilioSignature verifies the X-Twilio-Signature header of form webhooks.
// publicURL is the externally visible base URL the webhook was registered with.
func TwilioSignature(authToken, publicURL string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			form, err := c.FormParams()
			if err != nil {
				return c.NoContent(http.StatusBadRequest)
			}
			url := strings.TrimSuffix(publicURL, "/") + c.Request().URL.RequestURI()
			expected := TwilioSign(authToken, url, form)
			if !hmac.Equal([]byte(expected), []byte(c.Request().Header.Get("X-Twilio-Signature"))) {
				return c.NoContent(http.StatusForbidden)
			}
			return next(c)
		}
	}
}

// TwilioSign computes the signature Twilio sends for a POST to url with params.
func TwilioSign(authToken, url string, params map[string][]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
