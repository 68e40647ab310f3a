package domain

// EmailMeta 是最近一封邮件附件的摘要信息。
//
// 每处理一封邮件附件就整体覆盖一次，只保留最后一封。
type EmailMeta struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Cc      string `json:"cc,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// IsZero 四个字段均为空
func (m EmailMeta) IsZero() bool {
	return m == EmailMeta{}
}
