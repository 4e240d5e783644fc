package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

var (
	// ErrNotConfigured is returned when no API key was supplied.  Callers
	// treat it like any other backend failure and fall back.
	ErrNotConfigured = errors.New("llm: openai client not configured")
	// ErrEmptyResponse is returned when the backend answers without text.
	ErrEmptyResponse = errors.New("llm: empty response")
	// ErrRateLimited is returned when the local request budget is spent.
	ErrRateLimited = errors.New("llm: local rate limit exceeded")
)

// Message is a minimal chat message used by the guidance service.
// Role must be one of: "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// Client is the remote guidance backend.  Chat accepts the full message list
// (system prompt first, then the patient's message).
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Complete sends a single system prompt and user message through c.
func Complete(ctx context.Context, c Client, system, user string) (string, error) {
	return c.Chat(ctx, []Message{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	})
}

// Options configures the OpenAI client.
type Options struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxTokens     int
	Temperature   float32
	Timeout       time.Duration
	RatePerMinute int
}

// OpenAIClient calls the OpenAI chat completion API.  Output size and
// randomness are fixed per client so advisory answers stay short and
// steady.
type OpenAIClient struct {
	client  *openai.Client
	opts    Options
	limiter *rate.Limiter
}

// NewOpenAIClient constructs an OpenAI-backed client.  Without an API key
// the client is still usable but every call fails with ErrNotConfigured.
func NewOpenAIClient(opts Options) *OpenAIClient {
	if opts.Model == "" {
		// default to a modern small model; can be overridden via env
		opts.Model = "gpt-4o-mini"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 300
	}
	if opts.RatePerMinute <= 0 {
		opts.RatePerMinute = 60
	}
	c := &OpenAIClient{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), opts.RatePerMinute),
	}
	if strings.TrimSpace(opts.APIKey) != "" {
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		c.client = openai.NewClientWithConfig(cfg)
	}
	return c
}

// Configured reports whether an API key was supplied.
func (c *OpenAIClient) Configured() bool { return c.client != nil }

// Chat sends the messages to the chat completion API and returns the
// assistant's trimmed reply.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	if c.client == nil {
		return "", ErrNotConfigured
	}
	if !c.limiter.Allow() {
		return "", ErrRateLimited
	}
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			// coerce anything unknown to user
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    oaMsgs,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
