package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"draft-relay/internal/apperror"
	"draft-relay/internal/logger"
	"draft-relay/internal/model"
)

const (
	twilioBaseURL  = "https://api.twilio.com"
	whatsappPrefix = "whatsapp:"
)

// TwilioNotifier posts messages through the Twilio Messages REST API.
type TwilioNotifier struct {
	accountSID string
	authToken  string
	from       string
	whatsapp   bool
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewTwilioNotifier(accountSID, authToken, from string, whatsapp bool, logger *logger.Logger) *TwilioNotifier {
	return &TwilioNotifier{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		whatsapp:   whatsapp,
		baseURL:    twilioBaseURL,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type twilioMessage struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (t *TwilioNotifier) Announce(ctx context.Context, target string, n *model.Notification) (string, error) {
	if target == "" {
		return "", fmt.Errorf("no notification target")
	}
	_, body := Format(n)

	form := url.Values{}
	form.Set("To", t.address(target))
	form.Set("From", t.address(t.from))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", apperror.Upstream("twilio send", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &apperror.RateLimitedError{Op: "twilio send"}
	case resp.StatusCode >= 500:
		return "", &apperror.UpstreamError{Op: "twilio send", Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 300:
		return "", fmt.Errorf("twilio rejected message with status %d: %s", resp.StatusCode, string(raw))
	}

	var msg twilioMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("failed to decode twilio response: %w", err)
	}
	t.logger.Info("Notification sent via Twilio:", msg.SID, n.Kind)
	return msg.SID, nil
}

// address applies the WhatsApp channel prefix once.
func (t *TwilioNotifier) address(number string) string {
	number = strings.TrimSpace(number)
	if !t.whatsapp {
		return strings.TrimPrefix(number, whatsappPrefix)
	}
	if strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}
