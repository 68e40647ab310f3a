package llm

import (
	"bytes"
	"encoding/json"
	"strings"
)

// 提取策略名
const (
	StrategyOutputMessage        = "output_message"
	StrategyOutputText           = "output_text"
	StrategyOutputMessageContent = "output_message_content"
	StrategyFirstOutputContent   = "first_output_content"
	StrategyLegacyChoices        = "legacy_choices"
	StrategyEmptyResponse        = "empty_response"
	StrategyFallback             = "fallback"
)

const (
	// EmptyResponseText 应答体为空（null 等）时返回的固定文本
	EmptyResponseText = "応答テキストを取得できませんでした（レスポンスが空です）"

	fallbackHeader   = "【応答テキストを取得できませんでした。生レスポンス（抜粋）】"
	fallbackMaxRunes = 2000
)

type strategy struct {
	name    string
	extract func(body map[string]any) (string, bool)
}

// strategies 按顺序尝试，第一个得到非空文本的策略生效
var strategies = []strategy{
	{StrategyOutputMessage, fromOutputMessage},
	{StrategyOutputText, fromOutputText},
	{StrategyOutputMessageContent, fromOutputMessageContent},
	{StrategyFirstOutputContent, fromFirstOutputContent},
	{StrategyLegacyChoices, fromLegacyChoices},
}

// Normalize 从已解析的应答中提取助手文本，返回文本和命中的策略名。
// 没有策略命中时返回两个空串；本函数不会失败。
func Normalize(raw any) (string, string) {
	if isEmptyValue(raw) {
		return EmptyResponseText, StrategyEmptyResponse
	}

	body, ok := raw.(map[string]any)
	if !ok {
		return "", ""
	}

	for _, s := range strategies {
		if text, ok := s.extract(body); ok && text != "" {
			return text, s.name
		}
	}
	return "", ""
}

// ParseReply 解析响应体并归一化。无法提取文本时以原始应答摘录兜底；
// 只有响应体不是合法 JSON 时返回 *ResponseParseError。
func ParseReply(body []byte) (Reply, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Reply{}, &ResponseParseError{Body: string(body), Err: err}
	}

	text, name := Normalize(raw)
	if strings.TrimSpace(text) == "" {
		return Reply{Text: FallbackText(body), Strategy: StrategyFallback, Fallback: true}, nil
	}
	return Reply{Text: text, Strategy: name}, nil
}

// FallbackText 生成兜底文本：固定标题加上缩进后 JSON 的前 2000 个字符
func FallbackText(body []byte) string {
	var indented bytes.Buffer
	dump := string(body)
	if err := json.Indent(&indented, bytes.TrimSpace(body), "", "  "); err == nil {
		dump = indented.String()
	}

	runes := []rune(dump)
	if len(runes) > fallbackMaxRunes {
		runes = runes[:fallbackMaxRunes]
	}
	return fallbackHeader + "\n" + string(runes) + "\n"
}

func isEmptyValue(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case bool:
		return !v
	case float64:
		return v == 0
	case string:
		return v == ""
	default:
		return false
	}
}

// fromOutputMessage: output[] 中第一个 type=message 的条目，拼接其中 output_text 部分
func fromOutputMessage(body map[string]any) (string, bool) {
	items, ok := body["output"].([]any)
	if !ok {
		return "", false
	}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok || m["type"] != "message" {
			continue
		}
		parts, ok := m["content"].([]any)
		if !ok {
			return "", false
		}
		var texts []string
		for _, p := range parts {
			part, ok := p.(map[string]any)
			if !ok || part["type"] != "output_text" {
				continue
			}
			if text, ok := part["text"].(string); ok {
				texts = append(texts, text)
			}
		}
		return strings.Join(texts, "\n"), len(texts) > 0
	}
	return "", false
}

// fromOutputText: 顶层 output_text 字符串
func fromOutputText(body map[string]any) (string, bool) {
	text, ok := body["output_text"].(string)
	return text, ok
}

// fromOutputMessageContent: output.message.content[]
func fromOutputMessageContent(body map[string]any) (string, bool) {
	output, ok := body["output"].(map[string]any)
	if !ok {
		return "", false
	}
	message, ok := output["message"].(map[string]any)
	if !ok {
		return "", false
	}
	return joinContentTexts(message["content"])
}

// fromFirstOutputContent: output[0].content[]
func fromFirstOutputContent(body map[string]any) (string, bool) {
	items, ok := body["output"].([]any)
	if !ok || len(items) == 0 {
		return "", false
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return "", false
	}
	return joinContentTexts(first["content"])
}

// fromLegacyChoices: choices[0].message.content（Chat Completions 格式）
func fromLegacyChoices(body map[string]any) (string, bool) {
	choices, ok := body["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	message, ok := choice["message"].(map[string]any)
	if !ok {
		return "", false
	}
	content, ok := message["content"].(string)
	return content, ok
}

// joinContentTexts 取每个部分的 text.value 或 text，丢弃空值后以换行拼接
func joinContentTexts(v any) (string, bool) {
	parts, ok := v.([]any)
	if !ok {
		return "", false
	}
	var texts []string
	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}
		var text string
		switch t := part["text"].(type) {
		case string:
			text = t
		case map[string]any:
			text, _ = t["value"].(string)
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n"), len(texts) > 0
}
