package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"kessan/backend/internal/domain"
	"kessan/backend/internal/email"
	"kessan/backend/internal/extract"
	"kessan/backend/internal/monitoring"
)

// ErrUnsupportedFileType 表示文件导入接口不支持该扩展名
var ErrUnsupportedFileType = errors.New("unsupported file type")

// IngestMeta 是导入文件的元信息
type IngestMeta struct {
	FileName  string            `json:"fileName"`
	FileType  domain.FileKind   `json:"fileType"`
	PageCount int               `json:"pageCount,omitempty"`
	EmailMeta *domain.EmailMeta `json:"emailMeta,omitempty"`
}

// IngestResult 是文件导入结果，Text 可作为后续对话的 contextText
type IngestResult struct {
	Text string     `json:"text"`
	Meta IngestMeta `json:"meta"`
}

// IngestService 将单个文件转换为纯文本
type IngestService struct {
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewIngestService 创建文件导入服务
func NewIngestService(metrics *monitoring.Metrics, logger *zap.Logger) *IngestService {
	return &IngestService{metrics: metrics, logger: logger}
}

// Ingest 按扩展名解析文件。扩展名不受支持时返回 ErrUnsupportedFileType，解析失败返回包装后的错误。
func (s *IngestService) Ingest(ctx context.Context, fileName string, data []byte) (*IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kind := extract.KindFromExtension(fileName)
	result := &IngestResult{Meta: IngestMeta{FileName: fileName, FileType: kind}}

	var err error
	switch kind {
	case domain.FileKindPDF:
		result.Text, result.Meta.PageCount, err = extract.PDFText(data)
	case domain.FileKindDocx:
		result.Text, err = extract.Docx(data)
	case domain.FileKindXlsx:
		result.Text, err = extract.Xlsx(data)
	case domain.FileKindPptx:
		result.Text, err = extract.Pptx(data)
	case domain.FileKindEML:
		msg := email.ParseEML(data)
		result.Text, result.Meta.EmailMeta = msg.Body, msg.Meta
	case domain.FileKindMSG:
		var msg email.Message
		msg, err = email.ParseMSG(data)
		result.Text, result.Meta.EmailMeta = msg.Body, msg.Meta
	case domain.FileKindText:
		result.Text = extract.Text(data)
	default:
		s.metrics.RecordAttachment(string(kind), outcomeSkipped, len(data))
		return nil, ErrUnsupportedFileType
	}

	if err != nil {
		s.metrics.RecordAttachment(string(kind), outcomeExtractError, len(data))
		s.logger.Warn("file ingest failed",
			zap.String("file", fileName),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("extract %s: %w", kind, err)
	}

	s.metrics.RecordAttachment(string(kind), outcomeText, len(data))
	s.logger.Info("file ingested",
		zap.String("file", fileName),
		zap.String("kind", string(kind)),
		zap.Int("text_length", len([]rune(result.Text))),
	)
	return result, nil
}
