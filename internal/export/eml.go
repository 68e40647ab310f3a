package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/emersion/go-message/mail"

	"kessan/backend/internal/domain"
)

// EMLOptions 定义回信草稿的默认值
type EMLOptions struct {
	Sender           string // From 地址
	DefaultRecipient string // 原邮件没有 From 时的收件人
	DefaultSubject   string // 原邮件没有主题时使用的主题
	Now              func() time.Time
}

var fileNameReplacer = strings.NewReplacer(
	`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
)

// EML 以最后一个助手回答为正文生成回信草稿：
// To 为原邮件的发件人，Cc 沿用原邮件抄送，主题为 "Re: " 加原主题。
// 文件名为主题中替换掉非法字符后的结果。
func EML(messages []domain.ConversationMessage, meta *domain.EmailMeta, opts EMLOptions) (File, error) {
	answers := domain.AssistantMessages(messages)
	if len(answers) == 0 {
		return File{}, ErrNothingToExport
	}
	body := strings.TrimSpace(answers[len(answers)-1].Content)

	if meta == nil {
		meta = &domain.EmailMeta{}
	}
	to := firstNonBlank(meta.From, opts.DefaultRecipient)
	subject := "Re: " + firstNonBlank(meta.Subject, opts.DefaultSubject)

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	var h mail.Header
	h.SetDate(now())
	setAddressField(&h, "From", opts.Sender)
	setAddressField(&h, "To", to)
	if strings.TrimSpace(meta.Cc) != "" {
		setAddressField(&h, "Cc", meta.Cc)
	}
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return File{}, fmt.Errorf("generate message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return File{}, fmt.Errorf("create eml writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return File{}, fmt.Errorf("write eml body: %w", err)
	}
	if err := w.Close(); err != nil {
		return File{}, fmt.Errorf("close eml writer: %w", err)
	}

	return File{
		Name:        fileNameReplacer.Replace(subject) + ".eml",
		ContentType: ContentTypeEML,
		Data:        buf.Bytes(),
	}, nil
}

// setAddressField 写入地址类头部：ASCII 原样写入；含非 ASCII 时能解析为地址列表则按地址编码，否则整体按 RFC 2047 编码
func setAddressField(h *mail.Header, key, value string) {
	if isASCII(value) {
		h.Set(key, value)
		return
	}
	if addrs, err := mail.ParseAddressList(value); err == nil && len(addrs) > 0 {
		h.SetAddressList(key, addrs)
		return
	}
	h.SetText(key, value)
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
