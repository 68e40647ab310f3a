package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"kessan/backend/internal/config"
	"kessan/backend/internal/domain"
)

// ChatCompletionClient 通过 go-openai 调用 Azure OpenAI Chat Completions API。
// 该接口不接收文件引用，PDF 需由调用方先转换为文本。
type ChatCompletionClient struct {
	client     *openai.Client
	deployment string
	maxTokens  int
	logger     *zap.Logger
}

// NewChatCompletionClient 创建 Chat Completions 客户端，所有模型名都映射到配置的部署名
func NewChatCompletionClient(cfg config.ProviderConfig, httpClient *http.Client, logger *zap.Logger) *ChatCompletionClient {
	clientCfg := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	clientCfg.APIVersion = cfg.APIVersion
	deployment := cfg.Deployment
	clientCfg.AzureModelMapperFunc = func(string) string { return deployment }
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	clientCfg.HTTPClient = withCapture(httpClient)

	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChatCompletionClient{
		client:     openai.NewClientWithConfig(clientCfg),
		deployment: deployment,
		maxTokens:  cfg.MaxCompletionTokens,
		logger:     logger,
	}
}

func (c *ChatCompletionClient) Name() string { return "azure-chat" }

func (c *ChatCompletionClient) AcceptsFileReferences() bool { return false }

// Complete 发送一次请求。应答和错误都基于传输层截获的原始响应体构造，
// 与 Responses API 客户端的错误分类一致。
func (c *ChatCompletionClient) Complete(ctx context.Context, req Request) (Reply, error) {
	parts := make([]openai.ChatMessagePart, 0, len(req.Blocks))
	for _, b := range req.Blocks {
		if b.Kind != domain.BlockText {
			c.logger.Warn("chat completions api ignores file reference", zap.String("file", b.FileName))
			continue
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: b.Text,
		})
	}

	captured := &capturedResponse{}
	ctx = context.WithValue(ctx, capturedResponseKey{}, captured)

	_, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               c.deployment,
		MaxCompletionTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})

	if !captured.received {
		if err != nil {
			return Reply{}, fmt.Errorf("call chat completions api: %w", err)
		}
		return Reply{}, errors.New("call chat completions api: no response captured")
	}

	c.logger.Debug("chat completions api returned",
		zap.Int("status", captured.statusCode),
		zap.String("body_preview", preview(captured.body, logBodyPreview)),
	)

	if captured.statusCode < 200 || captured.statusCode > 299 {
		return Reply{}, &UpstreamError{StatusCode: captured.statusCode, Body: string(captured.body)}
	}
	if captured.readErr != nil {
		return Reply{}, fmt.Errorf("read response: %w", captured.readErr)
	}

	// go-openai 解码失败（非 JSON 等）时以原始响应体为准
	return ParseReply(captured.body)
}

type capturedResponseKey struct{}

// capturedResponse 保存一次请求的原始状态码和响应体
type capturedResponse struct {
	received   bool
	statusCode int
	body       []byte
	readErr    error
}

// captureTransport 读取完整响应体并放回，供 go-openai 继续解码
type captureTransport struct {
	base http.RoundTripper
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	captured, ok := req.Context().Value(capturedResponseKey{}).(*capturedResponse)
	if !ok {
		return resp, nil
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	captured.received = true
	captured.statusCode = resp.StatusCode
	captured.body = body
	captured.readErr = readErr

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// withCapture 返回传输层被包装的 http.Client 副本，不修改调用方的客户端
func withCapture(httpClient *http.Client) *http.Client {
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *httpClient
	wrapped.Transport = &captureTransport{base: base}
	return &wrapped
}
