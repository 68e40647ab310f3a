package domain

// BlockKind 内容块类型
type BlockKind string

const (
	BlockText          BlockKind = "text"
	BlockFileReference BlockKind = "file_reference"
)

// ContentBlock 是发送给大模型的 user 消息中的一个单元。
//
// Kind 为 text 时只使用 Text；为 file_reference 时使用其余字段。
// 块的顺序有意义：用户输入在前，随后按上传顺序排列附件内容。
type ContentBlock struct {
	Kind          BlockKind
	Text          string
	MIMEType      string
	Base64Payload string
	FileName      string
}

// TextBlock 创建文本块
func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockText, Text: text}
}

// FileReferenceBlock 创建内联文件引用块
func FileReferenceBlock(fileName, mimeType, base64Payload string) ContentBlock {
	return ContentBlock{
		Kind:          BlockFileReference,
		FileName:      fileName,
		MIMEType:      mimeType,
		Base64Payload: base64Payload,
	}
}

// DataURL 返回 data:<mime>;base64,<payload> 形式的内联数据
func (b ContentBlock) DataURL() string {
	return "data:" + b.MIMEType + ";base64," + b.Base64Payload
}
