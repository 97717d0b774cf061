package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draft-relay/internal/apperror"
	"draft-relay/internal/logger"
	"draft-relay/internal/model"
)

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *gmailClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGmailClient(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     server.URL + "/",
		TokenURL:     server.URL + "/token",
	}, logger.New()).(*gmailClient)
}

var cred = model.Credential{Provider: model.ProviderGmail, Username: "me@example.com", AccessToken: "tok", RefreshToken: "refresh"}

func TestListUnseenMapsHeadersAndBody(t *testing.T) {
	since := time.Unix(1700000000, 0)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/gmail/v1/users/me/messages":
			assert.Equal(t, "is:unread after:1700000000", r.URL.Query().Get("q"))
			assert.Equal(t, "3", r.URL.Query().Get("maxResults"))
			io.WriteString(w, `{"messages":[{"id":"m1","threadId":"t1"}],"resultSizeEstimate":7}`)
		case "/gmail/v1/users/me/messages/m1":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":           "m1",
				"threadId":     "t1",
				"internalDate": "1700000100000",
				"payload": map[string]interface{}{
					"mimeType": "multipart/alternative",
					"headers": []map[string]string{
						{"name": "From", "value": "Alice <alice@example.com>"},
						{"name": "Subject", "value": "Budget"},
						{"name": "Message-ID", "value": "<m1@example.com>"},
						{"name": "In-Reply-To", "value": "<p1@example.com>"},
						{"name": "References", "value": "<r0@example.com> <p1@example.com>"},
					},
					"parts": []map[string]interface{}{
						{"mimeType": "text/html", "body": map[string]string{"data": encode("<p>Hello</p>")}},
						{"mimeType": "text/plain", "body": map[string]string{"data": encode("Hello there")}},
					},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	batch, err := client.ListUnseen(context.Background(), cred, since, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, batch.Total)
	require.Len(t, batch.Items, 1)

	msg := batch.Items[0]
	assert.Equal(t, "m1", msg.SourceMessageID)
	assert.Equal(t, "t1", msg.ConversationID)
	assert.Equal(t, "Alice <alice@example.com>", msg.From)
	assert.Equal(t, "Budget", msg.Subject)
	assert.Equal(t, "<m1@example.com>", msg.MessageIDHeader)
	assert.Equal(t, "<p1@example.com>", msg.InReplyToHeader)
	assert.Equal(t, "<r0@example.com> <p1@example.com>", msg.ReferencesHeader)
	assert.Equal(t, "Hello there", msg.Body)
	assert.Equal(t, time.UnixMilli(1700000100000), msg.ReceivedAt)
}

func TestListUnseenCountsItemsThatFailToLoad(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/gmail/v1/users/me/messages":
			io.WriteString(w, `{"messages":[{"id":"m1","threadId":"t1"},{"id":"m2","threadId":"t2"}],"resultSizeEstimate":2}`)
		case "/gmail/v1/users/me/messages/m1":
			io.WriteString(w, `{"id":"m1","threadId":"t1","payload":{"mimeType":"text/plain","body":{"data":"`+encode("Hi")+`"}}}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":{"code":500,"message":"backend error"}}`)
		}
	})

	batch, err := client.ListUnseen(context.Background(), cred, time.Unix(0, 0), 3)
	require.NoError(t, err)
	require.Len(t, batch.Items, 1)
	assert.Equal(t, "m1", batch.Items[0].SourceMessageID)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 2, batch.Total)
}

func TestSendUsesThreadAndRawMessage(t *testing.T) {
	var raw string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/messages/send", r.URL.Path)
		var body struct {
			Raw      string `json:"raw"`
			ThreadID string `json:"threadId"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "t1", body.ThreadID)
		decoded, err := base64.URLEncoding.DecodeString(body.Raw)
		assert.NoError(t, err)
		raw = string(decoded)
		io.WriteString(w, `{"id":"sent-1","threadId":"t1"}`)
	})

	id, err := client.Send(context.Background(), cred, &model.OutboundReply{
		To:             "alice@example.com",
		Subject:        "Re: Budget",
		Body:           "Looks good.",
		ConversationID: "t1",
		InReplyTo:      "<m1@example.com>",
		References:     []string{"<r0@example.com>", "<m1@example.com>"},
	})

	require.NoError(t, err)
	assert.Equal(t, "sent-1", id)
	assert.Contains(t, raw, "In-Reply-To: <m1@example.com>")
	assert.Contains(t, raw, "Subject: Re: Budget")
	assert.True(t, strings.Contains(raw, "Looks good."))
}

func TestMarkReadRemovesUnreadLabel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/messages/m1/modify", r.URL.Path)
		var body struct {
			RemoveLabelIds []string `json:"removeLabelIds"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"UNREAD"}, body.RemoveLabelIds)
		io.WriteString(w, `{"id":"m1"}`)
	})

	require.NoError(t, client.MarkRead(context.Background(), cred, "m1"))
}

func TestAPIErrorsAreClassified(t *testing.T) {
	status := http.StatusUnauthorized
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":{"code":%d,"message":"request failed"}}`, status)
	})

	_, err := client.ListUnseen(context.Background(), cred, time.Now(), 3)
	assert.True(t, apperror.IsAuthError(err))

	status = http.StatusTooManyRequests
	_, err = client.ListUnseen(context.Background(), cred, time.Now(), 3)
	assert.True(t, apperror.IsRateLimited(err))

	status = http.StatusServiceUnavailable
	err = client.MarkRead(context.Background(), cred, "m1")
	assert.True(t, apperror.IsTransient(err))
}

func TestRefresh(t *testing.T) {
	grant := "ok"
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		if grant != "ok" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		io.WriteString(w, `{"access_token":"new-token","token_type":"Bearer","expires_in":3600}`)
	})

	fresh, err := client.Refresh(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, "new-token", fresh.AccessToken)
	assert.Equal(t, "refresh", fresh.RefreshToken)
	assert.True(t, fresh.Expiry.After(time.Now()))
	assert.Equal(t, "tok", cred.AccessToken, "input credential is not mutated")

	grant = "revoked"
	_, err = client.Refresh(context.Background(), cred)
	assert.True(t, apperror.IsAuthError(err))
}
