package service

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"kessan/backend/internal/config"
	"kessan/backend/internal/export"
	"kessan/backend/internal/monitoring"
)

// ErrUnknownFormat 表示不支持的导出格式
var ErrUnknownFormat = errors.New("unknown export format")

// 导出格式
const (
	FormatWord  = "word"
	FormatExcel = "excel"
	FormatCSV   = "csv"
	FormatPptx  = "pptx"
	FormatEML   = "eml"
)

// ExportService 将对话记录导出为文件
type ExportService struct {
	emlOptions export.EMLOptions
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// NewExportService 创建导出服务
func NewExportService(cfg config.ExportConfig, metrics *monitoring.Metrics, logger *zap.Logger) *ExportService {
	return &ExportService{
		emlOptions: export.EMLOptions{
			Sender:           cfg.SenderAddress,
			DefaultRecipient: cfg.DefaultRecipient,
			DefaultSubject:   cfg.DefaultSubject,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Export 按格式生成文件。格式未知返回 ErrUnknownFormat，没有助手回答返回 export.ErrNothingToExport。
func (s *ExportService) Export(format string, in export.Input) (export.File, error) {
	var (
		file export.File
		err  error
	)

	switch strings.ToLower(format) {
	case FormatWord:
		file, err = export.Word(in.Messages)
	case FormatExcel:
		file, err = export.Excel(in.Messages, in.BusinessType)
	case FormatCSV:
		file, err = export.CSV(in.Messages, in.BusinessType)
	case FormatPptx:
		file, err = export.Pptx(in.Messages)
	case FormatEML:
		file, err = export.EML(in.Messages, in.EmailMeta, s.emlOptions)
	default:
		return export.File{}, ErrUnknownFormat
	}
	if err != nil {
		return export.File{}, err
	}

	s.metrics.RecordExport(strings.ToLower(format))
	s.logger.Info("conversation exported",
		zap.String("format", format),
		zap.String("file", file.Name),
		zap.Int("messages", len(in.Messages)),
		zap.Int("size", len(file.Data)),
	)
	return file, nil
}
