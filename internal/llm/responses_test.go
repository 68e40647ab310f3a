package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kessan/backend/internal/config"
	"kessan/backend/internal/domain"
)

func testProvider(endpoint string) config.ProviderConfig {
	return config.ProviderConfig{
		API:                 config.ProviderAPIResponses,
		Endpoint:            endpoint,
		APIKey:              "test-key",
		APIVersion:          "2025-03-01-preview",
		Deployment:          "kessan-deploy",
		MaxCompletionTokens: 4096,
	}
}

func TestResponsesClient_Complete(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/openai/responses", r.URL.Path)
		assert.Equal(t, "2025-03-01-preview", r.URL.Query().Get("api-version"))
		assert.Equal(t, "test-key", r.Header.Get("api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text","text":"減価償却の説明です"}]}]}`))
	}))
	defer server.Close()

	client := NewResponsesClient(testProvider(server.URL), server.Client(), zap.NewNop())
	assert.True(t, client.AcceptsFileReferences())
	assert.Equal(t, "azure-responses", client.Name())

	reply, err := client.Complete(context.Background(), Request{
		SystemPrompt: "system",
		Blocks: []domain.ContentBlock{
			domain.TextBlock("質問"),
			domain.FileReferenceBlock("bs.pdf", "application/pdf", "UERG"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "減価償却の説明です", reply.Text)
	assert.Equal(t, StrategyOutputMessage, reply.Strategy)
	assert.False(t, reply.Fallback)

	assert.Equal(t, "kessan-deploy", captured["model"])
	input := captured["input"].([]any)
	require.Len(t, input, 2)

	system := input[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, "system", system["content"])

	user := input[1].(map[string]any)
	assert.Equal(t, "user", user["role"])
	content := user["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, map[string]any{"type": "input_text", "text": "質問"}, content[0])
	assert.Equal(t, map[string]any{
		"type":      "input_file",
		"file_data": "data:application/pdf;base64,UERG",
		"filename":  "bs.pdf",
	}, content[1])
}

func TestResponsesClient_UpstreamErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":"429","message":"Rate limit"}}`))
	}))
	defer server.Close()

	client := NewResponsesClient(testProvider(server.URL), server.Client(), nil)
	_, err := client.Complete(context.Background(), Request{SystemPrompt: "s", Blocks: []domain.ContentBlock{domain.TextBlock("q")}})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
	assert.Equal(t, `{"error":{"code":"429","message":"Rate limit"}}`, upstream.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestResponsesClient_ParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewResponsesClient(testProvider(server.URL), server.Client(), nil)
	_, err := client.Complete(context.Background(), Request{SystemPrompt: "s"})

	var parseErr *ResponseParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "not json", parseErr.Body)
}

func TestResponsesClient_FallbackReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"resp_123","output":[]}`))
	}))
	defer server.Close()

	client := NewResponsesClient(testProvider(server.URL), server.Client(), nil)
	reply, err := client.Complete(context.Background(), Request{SystemPrompt: "s"})
	require.NoError(t, err)
	assert.True(t, reply.Fallback)
	assert.Contains(t, reply.Text, "resp_123")
}

func TestResponsesClient_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output_text":"late"}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewResponsesClient(testProvider(server.URL), server.Client(), nil)
	_, err := client.Complete(ctx, Request{SystemPrompt: "s"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewGateway(t *testing.T) {
	cfg := testProvider("https://example.openai.azure.com")

	gw, err := NewGateway(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &ResponsesClient{}, gw)

	cfg.API = config.ProviderAPIChat
	gw, err = NewGateway(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &ChatCompletionClient{}, gw)

	cfg.API = "other"
	_, err = NewGateway(cfg, zap.NewNop())
	require.Error(t, err)
}
