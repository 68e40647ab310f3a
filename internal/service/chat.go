package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"kessan/backend/internal/domain"
	"kessan/backend/internal/llm"
	"kessan/backend/internal/monitoring"
	"kessan/backend/internal/prompt"
)

// ErrMessageRequired 表示请求缺少 message
var ErrMessageRequired = errors.New("message is required")

// 大模型调用结果，用于指标标签
const (
	callSuccess       = "success"
	callUpstreamError = "upstream_error"
	callParseError    = "parse_error"
	callError         = "error"
)

// ChatInput 定义一次对话请求的输入
type ChatInput struct {
	Message      string
	BusinessType string
	Mode         string
	ContextText  string // 之前通过文件导入接口取得的参考资料
	Attachments  []domain.Attachment
}

// ChatResult 定义对话结果
type ChatResult struct {
	Reply     string
	EmailMeta *domain.EmailMeta
	Strategy  string
	Fallback  bool
}

// ChatService 组装内容、选择提示词并调用大模型。无状态，可并发使用。
type ChatService struct {
	gateway   llm.Gateway
	assembler *Assembler
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// NewChatService 创建对话服务
func NewChatService(gateway llm.Gateway, metrics *monitoring.Metrics, logger *zap.Logger) *ChatService {
	return &ChatService{
		gateway:   gateway,
		assembler: NewAssembler(metrics, logger),
		metrics:   metrics,
		logger:    logger,
	}
}

// Chat 处理一次对话请求。message 为空时返回 ErrMessageRequired 且不调用大模型；
// 大模型错误原样返回（*llm.UpstreamError、*llm.ResponseParseError 等）。
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (*ChatResult, error) {
	fileNames := make([]string, 0, len(in.Attachments))
	fileTypes := make([]string, 0, len(in.Attachments))
	for _, att := range in.Attachments {
		fileNames = append(fileNames, att.FileName)
		fileTypes = append(fileTypes, att.MIMEType)
	}

	businessType, mode := prompt.WithDefaults(in.BusinessType, in.Mode)

	s.logger.Info("chat request received",
		zap.Bool("has_message", in.Message != ""),
		zap.String("business_type", businessType),
		zap.String("mode", mode),
		zap.Int("file_count", len(in.Attachments)),
		zap.Strings("file_names", fileNames),
		zap.Strings("file_types", fileTypes),
		zap.Bool("has_context", in.ContextText != ""),
	)

	// 只拒绝空消息，仅含空白的消息照常转发
	if in.Message == "" {
		return nil, ErrMessageRequired
	}

	hasEmail := prompt.HasEmailAttachment(fileNames)
	promptKind, systemPrompt := prompt.Select(hasEmail, businessType, mode)

	assembly := s.assembler.Assemble(ctx, in.Message, in.ContextText, in.Attachments, s.gateway.AcceptsFileReferences())

	start := time.Now()
	reply, err := s.gateway.Complete(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		Blocks:       assembly.Blocks,
	})
	duration := time.Since(start)

	if err != nil {
		s.metrics.RecordProviderCall(s.gateway.Name(), callOutcome(err), duration)
		s.logger.Error("provider call failed",
			zap.String("gateway", s.gateway.Name()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordProviderCall(s.gateway.Name(), callSuccess, duration)
	s.metrics.RecordReplyStrategy(reply.Strategy)

	if reply.Fallback {
		s.logger.Warn("reply text not found in provider response", zap.String("gateway", s.gateway.Name()))
	}

	s.logger.Info("chat request completed",
		zap.String("prompt", string(promptKind)),
		zap.Int("blocks", len(assembly.Blocks)),
		zap.Strings("skipped", assembly.Skipped),
		zap.String("strategy", reply.Strategy),
		zap.Int("reply_length", len([]rune(reply.Text))),
		zap.Duration("duration", duration),
	)

	return &ChatResult{
		Reply:     reply.Text,
		EmailMeta: assembly.EmailMeta,
		Strategy:  reply.Strategy,
		Fallback:  reply.Fallback,
	}, nil
}

func callOutcome(err error) string {
	var upstream *llm.UpstreamError
	var parse *llm.ResponseParseError
	switch {
	case errors.As(err, &upstream):
		return callUpstreamError
	case errors.As(err, &parse):
		return callParseError
	default:
		return callError
	}
}
