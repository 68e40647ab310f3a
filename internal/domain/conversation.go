package domain

// 会话角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationMessage 是浏览器端会话中的一条消息，服务端不保存。
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QAPair 问答对，用于 Excel / PPT 导出
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// BuildQAPairs 将每条助手回复与其之前最近的一条用户消息配对。
//
// 一条用户消息只会被配对一次；没有对应提问的回复，问题为空字符串。
func BuildQAPairs(messages []ConversationMessage) []QAPair {
	pairs := make([]QAPair, 0, len(messages)/2)
	var lastQuestion *string

	for i := range messages {
		switch messages[i].Role {
		case RoleUser:
			lastQuestion = &messages[i].Content
		case RoleAssistant:
			pair := QAPair{Answer: messages[i].Content}
			if lastQuestion != nil {
				pair.Question = *lastQuestion
			}
			pairs = append(pairs, pair)
			lastQuestion = nil
		}
	}
	return pairs
}

// AssistantMessages 返回全部助手回复，保持原顺序
func AssistantMessages(messages []ConversationMessage) []ConversationMessage {
	out := make([]ConversationMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}
