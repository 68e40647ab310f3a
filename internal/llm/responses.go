package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"kessan/backend/internal/config"
	"kessan/backend/internal/domain"
)

const logBodyPreview = 500

// ResponsesClient 调用 Azure OpenAI Responses API，PDF 以 input_file 直接上传
type ResponsesClient struct {
	endpoint   string
	apiKey     string
	apiVersion string
	deployment string
	httpClient *http.Client
	logger     *zap.Logger
}

type responsesPayload struct {
	Model string           `json:"model"`
	Input []responsesInput `json:"input"`
}

type responsesInput struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responsesPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	FileData string `json:"file_data,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// NewResponsesClient 创建 Responses API 客户端。httpClient 为 nil 时按配置的超时创建，超时为 0 表示不限制。
func NewResponsesClient(cfg config.ProviderConfig, httpClient *http.Client, logger *zap.Logger) *ResponsesClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponsesClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		deployment: cfg.Deployment,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *ResponsesClient) Name() string { return "azure-responses" }

func (c *ResponsesClient) AcceptsFileReferences() bool { return true }

// Complete 发送一次请求。非 2xx 返回 *UpstreamError，响应体无法解析返回 *ResponseParseError。
func (c *ResponsesClient) Complete(ctx context.Context, req Request) (Reply, error) {
	payload := responsesPayload{
		Model: c.deployment,
		Input: []responsesInput{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: toResponsesParts(req.Blocks)},
		},
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(), bytes.NewReader(bodyBytes))
	if err != nil {
		return Reply{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Reply{}, fmt.Errorf("call responses api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("responses api returned",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("body_preview", preview(body, logBodyPreview)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reply{}, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return ParseReply(body)
}

func (c *ResponsesClient) url() string {
	return c.endpoint + "/openai/responses?api-version=" + url.QueryEscape(c.apiVersion)
}

func toResponsesParts(blocks []domain.ContentBlock) []responsesPart {
	parts := make([]responsesPart, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case domain.BlockFileReference:
			parts = append(parts, responsesPart{
				Type:     "input_file",
				FileData: b.DataURL(),
				Filename: b.FileName,
			})
		default:
			parts = append(parts, responsesPart{Type: "input_text", Text: b.Text})
		}
	}
	return parts
}

// preview 截取前 n 个字符用于日志
func preview(body []byte, n int) string {
	runes := []rune(string(body))
	if len(runes) > n {
		return string(runes[:n])
	}
	return string(runes)
}
