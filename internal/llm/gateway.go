// Package llm 封装对大模型服务（Azure OpenAI）的一次调用以及应答文本的归一化。
package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kessan/backend/internal/config"
	"kessan/backend/internal/domain"
)

// Request 是一次大模型调用的输入
type Request struct {
	SystemPrompt string
	Blocks       []domain.ContentBlock
}

// Reply 是归一化后的应答
type Reply struct {
	Text     string
	Strategy string // 命中的提取策略名，兜底时为 StrategyFallback
	Fallback bool   // 未能提取文本，Text 为原始应答摘录
}

// Gateway 大模型网关。每次请求只调用一次，不重试。
type Gateway interface {
	Complete(ctx context.Context, req Request) (Reply, error)
	// AcceptsFileReferences 报告是否能直接接收 base64 文件引用块
	AcceptsFileReferences() bool
	Name() string
}

// NewGateway 根据 provider.api 选择网关实现
func NewGateway(cfg config.ProviderConfig, logger *zap.Logger) (Gateway, error) {
	switch cfg.API {
	case config.ProviderAPIResponses:
		return NewResponsesClient(cfg, nil, logger), nil
	case config.ProviderAPIChat:
		return NewChatCompletionClient(cfg, nil, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider api %q", cfg.API)
	}
}
