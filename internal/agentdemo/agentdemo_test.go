package agentdemo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockTurnResponse(text string) map[string]any {
	return map[string]any{
		"id":          "msg_test123",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-3-5-haiku-20241022",
		"stop_reason": "end_turn",
		"usage": map[string]int{
			"input_tokens":  40,
			"output_tokens": 12,
		},
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewClient()
	require.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestNewClientSucceedsWithEnvKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	client, err := NewClient()
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestGenerateTurnReturnsContentAndUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(mockTurnResponse("Sure, here's a short reply about the demo binary."))
	}))
	defer server.Close()

	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	client, err := NewClient(option.WithBaseURL(server.URL))
	require.NoError(t, err)

	turn, err := client.GenerateTurn(context.Background(), "the demo binary", "a terse engineer")
	require.NoError(t, err)
	assert.Equal(t, "Sure, here's a short reply about the demo binary.", turn.Content)
	assert.Equal(t, int64(40), turn.PromptTokens)
	assert.Equal(t, int64(12), turn.CompletionTokens)
}

func TestGenerateTurnRetriesOn429ThenSucceeds(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{"type": "error", "error": map[string]any{"type": "rate_limit_error", "message": "slow down"}})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(mockTurnResponse("recovered"))
	}))
	defer server.Close()

	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	client, err := NewClient(option.WithBaseURL(server.URL), option.WithMaxRetries(0))
	require.NoError(t, err)
	client.initialBackoff = 5 * time.Millisecond

	turn, err := client.GenerateTurn(context.Background(), "topic", "persona")
	require.NoError(t, err)
	assert.Equal(t, "recovered", turn.Content)
	assert.Equal(t, int32(3), attempts)
}

func TestGenerateTurnDoesNotRetryOn400(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "error", "error": map[string]any{"type": "invalid_request_error", "message": "bad"}})
	}))
	defer server.Close()

	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	client, err := NewClient(option.WithBaseURL(server.URL), option.WithMaxRetries(0))
	require.NoError(t, err)
	client.initialBackoff = 5 * time.Millisecond

	_, err = client.GenerateTurn(context.Background(), "topic", "persona")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-retryable")
	assert.Equal(t, int32(1), attempts)
}

func TestGenerateTurnExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "error", "error": map[string]any{"type": "rate_limit_error", "message": "slow down"}})
	}))
	defer server.Close()

	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	client, err := NewClient(option.WithBaseURL(server.URL), option.WithMaxRetries(0))
	require.NoError(t, err)
	client.initialBackoff = 1 * time.Millisecond
	client.maxRetries = 2

	_, err = client.GenerateTurn(context.Background(), "topic", "persona")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after")
}

func TestGenerateTurnContextCancellation(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	client, err := NewClient()
	require.NoError(t, err)
	client.initialBackoff = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.callWithRetry(ctx, "test prompt")
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableRejectsNilAndContextErrors(t *testing.T) {
	assert.False(t, isRetryable(nil))
	assert.False(t, isRetryable(context.Canceled))
	assert.False(t, isRetryable(context.DeadlineExceeded))
}

func TestRenderPromptIncludesTopicAndPersona(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	client, err := NewClient()
	require.NoError(t, err)

	prompt, err := client.renderPrompt("database internals", "a skeptical reviewer")
	require.NoError(t, err)
	assert.Contains(t, prompt, "database internals")
	assert.Contains(t, prompt, "a skeptical reviewer")
}

func TestBytesWriterAccumulates(t *testing.T) {
	w := &bytesWriter{}
	n, err := w.Write([]byte("hel"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = w.Write([]byte("lo"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(w.buf))
}
