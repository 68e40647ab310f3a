package email

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"

	"kessan/backend/internal/domain"
)

// ErrNotOutlookMessage 表示文件不是可识别的 Outlook .msg（复合文档中没有属性流）
var ErrNotOutlookMessage = errors.New("email: not an outlook message")

// MAPI 属性标签
const (
	propSubject       = "0037"
	propBody          = "1000"
	propBodyHTML      = "1013"
	propSenderName    = "0C1A"
	propSenderEmail   = "0C1F"
	propSenderSMTP    = "5D01"
	propDisplayTo     = "0E04"
	propDisplayCc     = "0E03"
	substgPrefix      = "__substg1.0_"
	substgSuffixBytes = 8
)

// MAPI 属性类型
const (
	typeUnicode = "001F"
	typeString8 = "001E"
	typeBinary  = "0102"
)

var htmlStripper = bluemonday.StrictPolicy()

// ParseMSG 解析 Outlook .msg（OLE 复合文档）。
//
// 只读取顶层属性流，附件和收件人子存储被忽略。
// From 优先取发件人邮箱，其次取发件人名称；正文优先取纯文本，其次取去除标签的 HTML。
func ParseMSG(raw []byte) (Message, error) {
	doc, err := mscfb.New(bytes.NewReader(raw))
	if err != nil {
		return Message{}, fmt.Errorf("open compound file: %w", err)
	}

	props := make(map[string]string)
	unicodeTags := make(map[string]bool)
	for entry, err := doc.Next(); err != io.EOF; entry, err = doc.Next() {
		if err != nil {
			return Message{}, fmt.Errorf("read compound file: %w", err)
		}
		if !isTopLevel(entry.Path) {
			continue
		}
		tag, typ, ok := parseStreamName(entry.Name)
		if !ok {
			continue
		}
		data, err := io.ReadAll(entry)
		if err != nil {
			return Message{}, fmt.Errorf("read stream %s: %w", entry.Name, err)
		}
		value, ok := decodeProperty(typ, data)
		if !ok || value == "" {
			continue
		}
		// 同一标签可能同时存在 Unicode 和 8 位版本，Unicode 优先
		if _, exists := props[tag]; exists && (unicodeTags[tag] || typ != typeUnicode) {
			continue
		}
		props[tag] = value
		if typ == typeUnicode {
			unicodeTags[tag] = true
		}
	}

	if len(props) == 0 {
		return Message{}, ErrNotOutlookMessage
	}

	meta := &domain.EmailMeta{
		From:    firstNonEmpty(props[propSenderEmail], props[propSenderSMTP], props[propSenderName]),
		To:      props[propDisplayTo],
		Cc:      props[propDisplayCc],
		Subject: props[propSubject],
	}

	body := props[propBody]
	if body == "" && props[propBodyHTML] != "" {
		body = strings.TrimSpace(htmlStripper.Sanitize(props[propBodyHTML]))
	}

	return Message{Meta: meta, Body: body}, nil
}

// isTopLevel 判断流是否位于根存储下（不在附件或收件人子存储中）
func isTopLevel(path []string) bool {
	for _, p := range path {
		if strings.HasPrefix(p, "__") {
			return false
		}
	}
	return true
}

// parseStreamName 从 "__substg1.0_0037001F" 解析出属性标签和类型
func parseStreamName(name string) (tag, typ string, ok bool) {
	if !strings.HasPrefix(name, substgPrefix) {
		return "", "", false
	}
	rest := strings.ToUpper(strings.TrimPrefix(name, substgPrefix))
	if len(rest) != substgSuffixBytes {
		return "", "", false
	}
	return rest[:4], rest[4:], true
}

func decodeProperty(typ string, data []byte) (string, bool) {
	switch typ {
	case typeUnicode:
		s, err := decodeUTF16LE(data)
		if err != nil {
			return "", false
		}
		return s, true
	case typeString8, typeBinary:
		return decodeString8(data), true
	default:
		return "", false
	}
}

// decodeUTF16LE 解码 UTF-16LE 字符串并去掉结尾的 NUL
func decodeUTF16LE(data []byte) (string, error) {
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(decoded), "\x00"), nil
}

// decodeString8 解码 8 位字符串：合法 UTF-8 直接使用，否则按 Shift_JIS 解码
func decodeString8(data []byte) string {
	data = bytes.TrimRight(data, "\x00")
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(decoded)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
