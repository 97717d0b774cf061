package ai

import (
	"context"
	"encoding/json"
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

var testPrefs = model.ReplyPreferences{Tone: "friendly", SignOff: "Cheers", Name: "Dana", Context: "grant"}

func TestGenerateReplyOpenAIStyle(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"  Happy to help.\n\nCheers  "}}]}`)
	}))
	defer server.Close()

	client := NewAIClient(Options{Provider: ProviderOpenAI, APIKey: "test-key", BaseURL: server.URL}, logger.New())
	reply, err := client.GenerateReply(context.Background(), "Could you review the grant draft?", testPrefs)

	require.NoError(t, err)
	assert.Equal(t, "Happy to help.\n\nCheers", reply)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 600, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "grant-related")
	assert.Contains(t, got.Messages[1].Content, "Could you review the grant draft?")
	assert.Contains(t, got.Messages[1].Content, `Sign off with: "Cheers"`)
	assert.Contains(t, got.Messages[1].Content, `Sign as: "Dana"`)
}

func TestGenerateReplyGemini(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"))
		assert.Equal(t, "gem-key", r.URL.Query().Get("key"))
		var req geminiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotNil(t, req.SystemInstruction)
		assert.Equal(t, 600, req.GenerationConfig.MaxOutputTokens)
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Sounds good."}]}}]}`)
	}))
	defer server.Close()

	client := NewAIClient(Options{Provider: ProviderGemini, APIKey: "gem-key", BaseURL: server.URL}, logger.New())
	reply, err := client.GenerateReply(context.Background(), "Lunch?", testPrefs)

	require.NoError(t, err)
	assert.Equal(t, "Sounds good.", reply)
}

func TestGenerateReplyClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			header: map[string]string{"Retry-After": "30"},
			check: func(t *testing.T, err error) {
				var rl *apperror.RateLimitedError
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, 30*time.Second, rl.RetryAfter)
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				var up *apperror.UpstreamError
				require.ErrorAs(t, err, &up)
				assert.True(t, apperror.IsTransient(err))
			},
		},
		{
			name:   "bad key",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.Error(t, err)
				assert.False(t, apperror.IsTransient(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, `{"error":"nope"}`)
			}))
			defer server.Close()

			client := NewAIClient(Options{APIKey: "k", BaseURL: server.URL}, logger.New())
			_, err := client.GenerateReply(context.Background(), "hi", testPrefs)
			tt.check(t, err)
		})
	}
}

func TestUserPromptOmitsEmptyOptionalLines(t *testing.T) {
	prompt := userPrompt("Hello", model.ReplyPreferences{Tone: "professional", SignOff: "Best regards"})

	assert.NotContains(t, prompt, "Include signature")
	assert.NotContains(t, prompt, "Sign as")
	assert.Contains(t, systemPrompt(model.ReplyPreferences{Context: "unknown"}), "general academic")
}
