package llm

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string) any {
	t.Helper()
	var raw any
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		text     string
		strategy string
	}{
		{
			name:     "output 中的 message 条目",
			body:     `{"output":[{"type":"reasoning"},{"type":"message","content":[{"type":"output_text","text":"A"},{"type":"refusal","text":"x"},{"type":"output_text","text":"B"}]}]}`,
			text:     "A\nB",
			strategy: StrategyOutputMessage,
		},
		{
			name:     "顶层 output_text",
			body:     `{"output_text":"回答です"}`,
			text:     "回答です",
			strategy: StrategyOutputText,
		},
		{
			name:     "output.message.content 中的 text.value",
			body:     `{"output":{"message":{"content":[{"text":{"value":"甲"}},{"text":"乙"},{"text":""}]}}}`,
			text:     "甲\n乙",
			strategy: StrategyOutputMessageContent,
		},
		{
			name:     "output[0].content",
			body:     `{"output":[{"type":"other","content":[{"text":"一"},{"text":{"value":"二"}}]}]}`,
			text:     "一\n二",
			strategy: StrategyFirstOutputContent,
		},
		{
			name:     "旧版 choices",
			body:     `{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`,
			text:     "hello",
			strategy: StrategyLegacyChoices,
		},
		{
			name:     "message 条目没有文本时继续尝试后续策略",
			body:     `{"output":[{"type":"message","content":[{"type":"refusal","refusal":"no"}]}],"output_text":"後続"}`,
			text:     "後続",
			strategy: StrategyOutputText,
		},
		{
			name:     "无法识别的结构",
			body:     `{"id":"resp_1","status":"incomplete"}`,
			text:     "",
			strategy: "",
		},
		{
			name:     "数组应答",
			body:     `[1,2]`,
			text:     "",
			strategy: "",
		},
		{
			name:     "null 应答",
			body:     `null`,
			text:     EmptyResponseText,
			strategy: StrategyEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, strategy := Normalize(decode(t, tt.body))
			assert.Equal(t, tt.text, text)
			assert.Equal(t, tt.strategy, strategy)
		})
	}
}

func TestParseReply(t *testing.T) {
	t.Run("提取成功", func(t *testing.T) {
		reply, err := ParseReply([]byte(`{"output_text":"OK"}`))
		require.NoError(t, err)
		assert.Equal(t, Reply{Text: "OK", Strategy: StrategyOutputText}, reply)
	})

	t.Run("无法提取时兜底", func(t *testing.T) {
		reply, err := ParseReply([]byte(`{"id":"resp_1"}`))
		require.NoError(t, err)
		assert.True(t, reply.Fallback)
		assert.Equal(t, StrategyFallback, reply.Strategy)
		assert.True(t, strings.HasPrefix(reply.Text, "【応答テキストを取得できませんでした。生レスポンス（抜粋）】\n"))
		assert.Contains(t, reply.Text, `"id": "resp_1"`)
	})

	t.Run("空白文本视为未提取", func(t *testing.T) {
		reply, err := ParseReply([]byte(`{"output_text":"   "}`))
		require.NoError(t, err)
		assert.True(t, reply.Fallback)
	})

	t.Run("非法 JSON", func(t *testing.T) {
		_, err := ParseReply([]byte("<html>gateway</html>"))
		var parseErr *ResponseParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "<html>gateway</html>", parseErr.Body)
	})
}

func TestFallbackText_Truncates(t *testing.T) {
	body := []byte(`{"data":"` + strings.Repeat("あ", 3000) + `"}`)
	text := FallbackText(body)

	excerpt := strings.TrimPrefix(text, fallbackHeader+"\n")
	excerpt = strings.TrimSuffix(excerpt, "\n")
	assert.Equal(t, fallbackMaxRunes, utf8.RuneCountInString(excerpt))
	assert.True(t, strings.HasPrefix(excerpt, "{\n  \"data\": \"あ"))
}

func TestFallbackText_KeepsFieldOrder(t *testing.T) {
	text := FallbackText([]byte(`{"z":1,"a":2}`))
	assert.Equal(t, fallbackHeader+"\n{\n  \"z\": 1,\n  \"a\": 2\n}\n", text)
}
