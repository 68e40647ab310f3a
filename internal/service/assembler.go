package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kessan/backend/internal/domain"
	"kessan/backend/internal/email"
	"kessan/backend/internal/extract"
	"kessan/backend/internal/monitoring"
)

// 附件处理结果，用于指标标签
const (
	outcomeText          = "text"
	outcomeFileReference = "file_reference"
	outcomeFallback      = "fallback"
	outcomeExtractError  = "extract_error"
	outcomeSkipped       = "skipped"
)

// 各类型附件的前言
const (
	preambleContext = "以下は事前に取り込まれた参考資料のテキストです。" +
		"この内容も踏まえて回答してください。\n\n"
	preamblePDFText = "以下はアップロードされた PDF ファイル「%s」から抽出したテキストです。" +
		"決算資料として、この内容も踏まえて回答してください。\n\n"
	preambleDocx = "以下はアップロードされた Word ファイル「%s」の本文です。" +
		"決算一次チェック・会計処理の背景として、この内容も踏まえて回答してください。\n\n"
	preambleXlsx = "以下はアップロードされた Excel ファイル「%s」の内容（シート／セル）をテキスト化したものです。" +
		"勘定残高・分析用のデータとして、この内容も踏まえて回答してください。\n\n"
	preamblePptx = "以下はアップロードされた PowerPoint ファイル「%s」のスライド上のテキストです。" +
		"経営説明資料・決算説明会資料として、この内容も踏まえて回答してください。\n\n"
	preambleEML = "以下はアップロードされたメールファイル「%s」の本文です。" +
		"問い合わせ内容として読み取り、適切な返信メール本文を1通作成してください。\n\n"
	preambleMSG = "以下はアップロードされた Outlook メールファイル（.msg）「%s」の本文です。" +
		"問い合わせ内容として読み取り、適切な返信メール本文を1通作成してください。\n\n"
	preambleMSGFallback = "以下はアップロードされたメールファイル「%s」の内容です（一部文字化けしている可能性があります）。" +
		"問い合わせ内容として読み取り、適切な返信メール本文を1通作成してください。\n\n"
	preambleText = "以下はアップロードされたテキストファイル「%s」の内容です。" +
		"問い合わせや補足情報として読み取り、必要に応じて回答に反映してください。\n\n"
	placeholderUnreadable = "アップロードされたファイル「%s」は内容を読み取れませんでした。"
)

// Assembly 是组装后的用户消息内容
type Assembly struct {
	Blocks    []domain.ContentBlock
	EmailMeta *domain.EmailMeta // 最后一个邮件附件的头部摘要，没有邮件附件时为 nil
	Skipped   []string          // 因类型未知而跳过的文件名
}

// Assembler 将用户输入和附件按顺序转换为内容块
type Assembler struct {
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewAssembler 创建内容组装器
func NewAssembler(metrics *monitoring.Metrics, logger *zap.Logger) *Assembler {
	return &Assembler{metrics: metrics, logger: logger}
}

// Assemble 组装内容块：首块为用户消息，其次为参考资料（如有），然后每个附件恰好一块。
// 类型未知的附件被跳过；单个附件解析失败时以占位文本代替，不中断整个请求。
// acceptsFileRefs 为 false 时 PDF 在本地提取文本。
func (a *Assembler) Assemble(ctx context.Context, message, contextText string, attachments []domain.Attachment, acceptsFileRefs bool) Assembly {
	result := Assembly{
		Blocks: make([]domain.ContentBlock, 0, len(attachments)+2),
	}
	result.Blocks = append(result.Blocks, domain.TextBlock(message))

	if contextText != "" {
		result.Blocks = append(result.Blocks, domain.TextBlock(preambleContext+contextText))
	}

	for _, att := range attachments {
		if err := ctx.Err(); err != nil {
			break
		}

		kind := extract.DetectKind(att.FileName, att.MIMEType)
		block, meta, outcome := a.convert(kind, att, acceptsFileRefs)

		a.metrics.RecordAttachment(string(kind), outcome, len(att.Data))

		if outcome == outcomeSkipped {
			a.logger.Warn("unsupported file type ignored",
				zap.String("file", att.FileName),
				zap.String("mime", att.ContentType()),
			)
			result.Skipped = append(result.Skipped, att.FileName)
			continue
		}

		if kind.IsEmail() && meta != nil {
			// 多个邮件附件时以最后一个为准，整体覆盖
			result.EmailMeta = meta
		}

		a.logger.Debug("attachment converted",
			zap.String("file", att.FileName),
			zap.String("kind", string(kind)),
			zap.String("outcome", outcome),
			zap.Int("size", len(att.Data)),
		)
		result.Blocks = append(result.Blocks, block)
	}

	return result
}

func (a *Assembler) convert(kind domain.FileKind, att domain.Attachment, acceptsFileRefs bool) (domain.ContentBlock, *domain.EmailMeta, string) {
	name := att.FileName

	switch kind {
	case domain.FileKindPDF:
		if acceptsFileRefs {
			return extract.PDFReference(name, att.Data), nil, outcomeFileReference
		}
		text, _, err := extract.PDFText(att.Data)
		return a.textOrPlaceholder(preamblePDFText, name, text, err)

	case domain.FileKindDocx:
		text, err := extract.Docx(att.Data)
		return a.textOrPlaceholder(preambleDocx, name, text, err)

	case domain.FileKindXlsx:
		text, err := extract.Xlsx(att.Data)
		return a.textOrPlaceholder(preambleXlsx, name, text, err)

	case domain.FileKindPptx:
		text, err := extract.Pptx(att.Data)
		return a.textOrPlaceholder(preamblePptx, name, text, err)

	case domain.FileKindEML:
		msg := email.ParseEML(att.Data)
		return domain.TextBlock(fmt.Sprintf(preambleEML, name) + msg.Body), msg.Meta, outcomeText

	case domain.FileKindMSG:
		msg, err := email.ParseMSG(att.Data)
		if err != nil {
			a.logger.Warn("msg parse failed, falling back to raw text",
				zap.String("file", name),
				zap.Error(err),
			)
			return domain.TextBlock(fmt.Sprintf(preambleMSGFallback, name) + extract.Text(att.Data)), nil, outcomeFallback
		}
		return domain.TextBlock(fmt.Sprintf(preambleMSG, name) + msg.Body), msg.Meta, outcomeText

	case domain.FileKindText:
		return domain.TextBlock(fmt.Sprintf(preambleText, name) + extract.Text(att.Data)), nil, outcomeText

	default:
		return domain.ContentBlock{}, nil, outcomeSkipped
	}
}

func (a *Assembler) textOrPlaceholder(preamble, name, text string, err error) (domain.ContentBlock, *domain.EmailMeta, string) {
	if err != nil {
		a.logger.Warn("attachment extraction failed",
			zap.String("file", name),
			zap.Error(err),
		)
		return domain.TextBlock(fmt.Sprintf(placeholderUnreadable, name)), nil, outcomeExtractError
	}
	return domain.TextBlock(fmt.Sprintf(preamble, name) + text), nil, outcomeText
}
