package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"draft-relay/internal/apperror"
	"draft-relay/internal/logger"
	"draft-relay/internal/model"
	"draft-relay/internal/service"
)

const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderGemini   = "gemini"

	temperature = 0.7
	maxTokens   = 600
)

// Options configures the generation client. Empty Model and BaseURL fall
// back to the provider defaults.
type Options struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

type aiClient struct {
	provider   string
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewAIClient(opts Options, logger *logger.Logger) service.AIClient {
	provider := opts.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}
	client := &aiClient{
		provider:   provider,
		apiKey:     opts.APIKey,
		model:      opts.Model,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
	if client.model == "" {
		client.model = getModel(provider)
	}
	if client.baseURL == "" {
		client.baseURL = getBaseURL(provider)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{}
	}
	return client
}

// getBaseURL returns the appropriate API base URL based on the provider
func getBaseURL(provider string) string {
	switch provider {
	case ProviderDeepSeek:
		return "https://api.deepseek.com"
	case ProviderGemini:
		return "https://generativelanguage.googleapis.com/v1beta"
	default:
		return "https://api.openai.com/v1"
	}
}

// getModel returns the appropriate model based on the provider
func getModel(provider string) string {
	switch provider {
	case ProviderDeepSeek:
		return "deepseek-chat"
	case ProviderGemini:
		return "gemini-2.0-flash-lite"
	default:
		return "gpt-4o-mini"
	}
}

// OpenAI/DeepSeek API request/response structures
type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Gemini API request/response structures
type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

func (a *aiClient) GenerateReply(ctx context.Context, originalText string, prefs model.ReplyPreferences) (string, error) {
	system := systemPrompt(prefs)
	user := userPrompt(originalText, prefs)

	var reply string
	var err error
	switch a.provider {
	case ProviderGemini:
		reply, err = a.generateWithGemini(ctx, system, user)
	default:
		reply, err = a.generateWithOpenAIStyle(ctx, system, user)
	}
	if err != nil {
		return "", err
	}

	a.logger.Debug("Generated reply with provider", a.provider)
	return strings.TrimSpace(reply), nil
}

// generateWithOpenAIStyle handles generation using the OpenAI/DeepSeek style API
func (a *aiClient) generateWithOpenAIStyle(ctx context.Context, system, user string) (string, error) {
	request := chatCompletionRequest{
		Model: a.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	var resp chatCompletionResponse
	if err := a.post(ctx, a.baseURL+"/chat/completions", request, &resp, map[string]string{
		"Authorization": "Bearer " + a.apiKey,
	}); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", apperror.Upstream("generate reply", fmt.Errorf("no choices returned from AI"))
	}
	return resp.Choices[0].Message.Content, nil
}

// generateWithGemini handles generation using the Google Gemini API
func (a *aiClient) generateWithGemini(ctx context.Context, system, user string) (string, error) {
	request := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: user}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxTokens,
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, a.model, a.apiKey)
	var resp geminiResponse
	if err := a.post(ctx, url, request, &resp, nil); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", apperror.Upstream("generate reply", fmt.Errorf("no content returned from Gemini"))
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// post sends a JSON request and classifies failures: 429 is rate limiting,
// 5xx and transport errors are upstream failures.
func (a *aiClient) post(ctx context.Context, url string, request, out interface{}, headers map[string]string) error {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return apperror.Upstream("generate reply", fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &apperror.RateLimitedError{Op: "generate reply", RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &apperror.UpstreamError{Op: "generate reply", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("AI API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Upstream("generate reply", fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func parseRetryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
