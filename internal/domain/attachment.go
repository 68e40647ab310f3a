package domain

import "strings"

// FileKind 表示附件的处理类型
type FileKind string

const (
	FileKindPDF     FileKind = "pdf"
	FileKindDocx    FileKind = "docx"
	FileKindXlsx    FileKind = "xlsx"
	FileKindPptx    FileKind = "pptx"
	FileKindEML     FileKind = "eml"
	FileKindMSG     FileKind = "msg"
	FileKindText    FileKind = "text"
	FileKindUnknown FileKind = "unknown"
)

// IsEmail 是否为邮件类附件（.eml / .msg）
func (k FileKind) IsEmail() bool {
	return k == FileKindEML || k == FileKindMSG
}

// Attachment 表示一次请求中上传的文件，仅在本次请求内使用，不做持久化。
type Attachment struct {
	FileName string // 原始文件名
	MIMEType string // 浏览器上报的 MIME 类型，可能为空
	Data     []byte // 文件内容
}

// ContentType 返回 MIME 类型，缺失时视为 application/octet-stream
func (a Attachment) ContentType() string {
	if strings.TrimSpace(a.MIMEType) == "" {
		return "application/octet-stream"
	}
	return strings.ToLower(strings.TrimSpace(a.MIMEType))
}
