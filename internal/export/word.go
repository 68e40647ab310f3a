package export

import (
	"fmt"
	"html"
	"strings"

	"kessan/backend/internal/domain"
)

const answerSeparator = "\n\n------------------------------\n\n"

// Word 将全部助手回答输出为 Word 可打开的 HTML 文档（.doc）。
// 每个回答以 【回答N】 开头，回答之间以虚线分隔。
func Word(messages []domain.ConversationMessage) (File, error) {
	answers := domain.AssistantMessages(messages)
	if len(answers) == 0 {
		return File{}, ErrNothingToExport
	}

	sections := make([]string, len(answers))
	for i, answer := range answers {
		sections[i] = fmt.Sprintf("【回答%d】\n%s", i+1, answer.Content)
	}

	var sb strings.Builder
	sb.WriteString("<html>\n<head><meta charset=\"utf-8\" /></head>\n<body>\n")
	sb.WriteString("<pre style=\"font-family: Meiryo; white-space: pre-wrap;\">\n")
	sb.WriteString(html.EscapeString(strings.Join(sections, answerSeparator)))
	sb.WriteString("\n</pre></body></html>\n")

	return File{
		Name:        WordFileName,
		ContentType: ContentTypeWord,
		Data:        []byte(sb.String()),
	}, nil
}
