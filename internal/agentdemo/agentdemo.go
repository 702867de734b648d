// Package agentdemo drives one simulated conversation turn through the
// Anthropic API so the demo binary has a real prompt/response pair to
// record instead of a canned string. It follows the retry and templating
// shape of the teacher's internal/compact haiku client: an API key read
// from the environment, a text/template-rendered prompt, and bounded
// exponential-backoff retry around the single Messages.New call.
package agentdemo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	defaultModel   = anthropic.Model("claude-3-5-haiku-latest")
)

// ErrAPIKeyRequired is returned when no ANTHROPIC_API_KEY is available.
var ErrAPIKeyRequired = errors.New("agentdemo: ANTHROPIC_API_KEY not set")

// Client generates example conversation turns for the demo binary.
type Client struct {
	client         anthropic.Client
	model          anthropic.Model
	turnTemplate   *template.Template
	maxRetries     int
	initialBackoff time.Duration
}

// NewClient builds a Client from ANTHROPIC_API_KEY. It returns
// ErrAPIKeyRequired when the variable is unset so callers can fall back to
// a canned turn instead of failing the whole demo run. Extra opts are
// passed through to the SDK client, letting tests point at an httptest
// server via option.WithBaseURL.
func NewClient(opts ...option.RequestOption) (*Client, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	tmpl, err := template.New("turn").Parse(turnPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("agentdemo: parse turn template: %w", err)
	}

	allOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client:         anthropic.NewClient(allOpts...),
		model:          defaultModel,
		turnTemplate:   tmpl,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

// turnData feeds the prompt template.
type turnData struct {
	Topic   string
	Persona string
}

// Turn is one generated assistant reply plus the token accounting the
// caller needs to populate graph.TokenUsage.
type Turn struct {
	Content          string
	PromptTokens     int64
	CompletionTokens int64
}

// GenerateTurn renders a short role-played prompt around topic/persona and
// returns the model's reply. Errors are always non-nil alongside a zero
// Turn on failure.
func (c *Client) GenerateTurn(ctx context.Context, topic, persona string) (Turn, error) {
	prompt, err := c.renderPrompt(topic, persona)
	if err != nil {
		return Turn{}, fmt.Errorf("agentdemo: render prompt: %w", err)
	}
	return c.callWithRetry(ctx, prompt)
}

func (c *Client) renderPrompt(topic, persona string) (string, error) {
	var buf []byte
	w := &bytesWriter{buf: buf}
	data := turnData{Topic: topic, Persona: persona}
	if err := c.turnTemplate.Execute(w, data); err != nil {
		return "", err
	}
	return string(w.buf), nil
}

func (c *Client) callWithRetry(ctx context.Context, prompt string) (Turn, error) {
	var lastErr error
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Turn{}, ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) == 0 {
				return Turn{}, fmt.Errorf("agentdemo: empty response content")
			}
			block := message.Content[0]
			if block.Type != "text" {
				return Turn{}, fmt.Errorf("agentdemo: unexpected content block type %q", block.Type)
			}
			return Turn{
				Content:          block.Text,
				PromptTokens:     message.Usage.InputTokens,
				CompletionTokens: message.Usage.OutputTokens,
			}, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return Turn{}, ctx.Err()
		}
		if !isRetryable(err) {
			return Turn{}, fmt.Errorf("agentdemo: non-retryable error: %w", err)
		}
	}

	return Turn{}, fmt.Errorf("agentdemo: failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

type bytesWriter struct {
	buf []byte
}

func (w *bytesWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

const turnPromptTemplate = `You are {{.Persona}}, replying inside a recorded conversation turn about {{.Topic}}.

Write one short, natural reply (2-4 sentences). Do not narrate that you are an AI or mention this prompt.`
