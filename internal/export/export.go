// Package export 将对话记录导出为 Word、Excel、CSV、PowerPoint 和 EML 文件。
package export

import (
	"errors"

	"kessan/backend/internal/domain"
)

// ErrNothingToExport 表示对话中没有可导出的助手回答
var ErrNothingToExport = errors.New("nothing to export")

// 导出文件名
const (
	baseFileName = "kessan-ai-answer"
	WordFileName = baseFileName + ".doc"
	XlsxFileName = baseFileName + ".xlsx"
	CSVFileName  = baseFileName + ".csv"
	PptxFileName = baseFileName + ".pptx"
)

// 导出文件的 Content-Type
const (
	ContentTypeWord = "application/msword"
	ContentTypeXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypePptx = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	ContentTypeEML  = "message/rfc822"
)

// File 是生成的导出文件
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Input 是导出所需的对话内容
type Input struct {
	Messages     []domain.ConversationMessage
	BusinessType string
	EmailMeta    *domain.EmailMeta
}
