// Package extract 将上传的办公文档转换为纯文本或文件引用。
package extract

import (
	"path/filepath"
	"strings"

	"kessan/backend/internal/domain"
)

// 识别用的 MIME 类型
const (
	MIMEPDF        = "application/pdf"
	MIMEDocx       = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXlsx       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEXls        = "application/vnd.ms-excel"
	MIMEPptx       = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MIMEPpt        = "application/vnd.ms-powerpoint"
	MIMEOctet      = "application/octet-stream"
	mimeTextPrefix = "text/"
)

// DetectKind 按 MIME 类型和扩展名判断附件类型，按 PDF、Word、Excel、PowerPoint、EML、MSG、文本的顺序首个匹配生效
func DetectKind(fileName, mimeType string) domain.FileKind {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		mimeType = MIMEOctet
	}
	ext := strings.ToLower(filepath.Ext(fileName))

	switch {
	case mimeType == MIMEPDF || ext == ".pdf":
		return domain.FileKindPDF
	case mimeType == MIMEDocx || ext == ".docx":
		return domain.FileKindDocx
	case mimeType == MIMEXlsx || mimeType == MIMEXls || ext == ".xlsx" || ext == ".xls":
		return domain.FileKindXlsx
	case mimeType == MIMEPptx || mimeType == MIMEPpt || ext == ".pptx" || ext == ".ppt":
		return domain.FileKindPptx
	case ext == ".eml":
		return domain.FileKindEML
	case ext == ".msg":
		return domain.FileKindMSG
	case strings.HasPrefix(mimeType, mimeTextPrefix) || ext == ".txt":
		return domain.FileKindText
	default:
		return domain.FileKindUnknown
	}
}

var extensionKinds = map[string]domain.FileKind{
	".pdf":  domain.FileKindPDF,
	".docx": domain.FileKindDocx,
	".xlsx": domain.FileKindXlsx,
	".pptx": domain.FileKindPptx,
	".eml":  domain.FileKindEML,
	".msg":  domain.FileKindMSG,
	".txt":  domain.FileKindText,
}

// KindFromExtension 只按扩展名判断类型（文件导入接口使用）
func KindFromExtension(fileName string) domain.FileKind {
	if kind, ok := extensionKinds[strings.ToLower(filepath.Ext(fileName))]; ok {
		return kind
	}
	return domain.FileKindUnknown
}
