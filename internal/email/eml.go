package email

import (
	"regexp"
	"strings"

	"kessan/backend/internal/domain"
)

// Message 是解析后的邮件：正文和可选的头部摘要
type Message struct {
	Meta *domain.EmailMeta
	Body string
}

var blankLine = regexp.MustCompile(`\r?\n\r?\n`)

// SplitEML 在第一个空行处拆分头部块和正文。
//
// 没有空行时，头部块和正文都是全文。
func SplitEML(raw string) (headers, body string) {
	loc := blankLine.FindStringIndex(raw)
	if loc == nil {
		return raw, raw
	}
	return raw[:loc[0]], raw[loc[1]:]
}

// ParseEML 解析 .eml 文件。正文原样返回，不做 MIME 解码。
func ParseEML(raw []byte) Message {
	text := strings.ToValidUTF8(string(raw), "�")
	headers, body := SplitEML(text)

	msg := Message{Body: body}
	if headers != "" {
		meta := ParseHeaders(headers)
		msg.Meta = &meta
	}
	return msg
}
