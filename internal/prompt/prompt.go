// Package prompt 根据是否附带邮件选择系统提示词。
package prompt

import (
	"fmt"
	"strings"
)

// 默认值，请求未指定时使用
const (
	DefaultBusinessType = "未指定"
	DefaultMode         = "general"
)

// Kind 标识选中的提示词模板
type Kind string

const (
	KindEmailReply Kind = "email_reply"
	KindAccounting Kind = "accounting"
)

const emailReplyTemplate = `あなたは日本語のビジネスメール返信を作成するアシスタントです。

【最重要ルール】
・返信メール本文だけを1通だけ作成すること。
・件名案、複数パターン、番号付きの案（1) 2) 等）は出さないこと。
・「件名:」「本文案:」「回答案:」などのラベルも出さないこと。
・そのまま Outlook から送信できる自然なビジネス日本語で書くこと。
・署名ブロックはダミー（会社名・部署名・氏名・連絡先は仮）で付けること。

【返信メールの構成】
1. 冒頭挨拶
2. 相手の要件の簡潔な要約
3. 質問・依頼への回答／提案（不足情報があれば丁寧に依頼）
4. クロージング
5. 署名（ダミーで可）

上記の構成を満たしつつ、「返信メール本文」だけを出力してください。`

const accountingTemplate = `あなたは上場企業の決算業務に精通したプロの会計士かつAIアシスタントです。
利用者は決算実務担当者またはコンサルタントです。
日本基準・IFRS・税務・監査実務を踏まえ、専門的かつ分かりやすく回答してください。
業務タイプ: %s
モード: %s
アップロードされたファイル（PDF・Word・Excel・PPT）の内容も踏まえて、決算レビューや会計処理の背景を丁寧に説明してください。`

// HasEmailAttachment 判断文件名中是否有 .eml 或 .msg（不区分大小写）
func HasEmailAttachment(fileNames []string) bool {
	for _, name := range fileNames {
		lower := strings.ToLower(name)
		if strings.HasSuffix(lower, ".eml") || strings.HasSuffix(lower, ".msg") {
			return true
		}
	}
	return false
}

// Select 选择系统提示词：附带邮件时使用回信模板（忽略业务类型和模式），
// 否则使用会计助手模板并原样插入业务类型和模式
func Select(hasEmail bool, businessType, mode string) (Kind, string) {
	if hasEmail {
		return KindEmailReply, emailReplyTemplate
	}
	return KindAccounting, fmt.Sprintf(accountingTemplate, businessType, mode)
}

// WithDefaults 为空的业务类型和模式填充默认值
func WithDefaults(businessType, mode string) (string, string) {
	if strings.TrimSpace(businessType) == "" {
		businessType = DefaultBusinessType
	}
	if strings.TrimSpace(mode) == "" {
		mode = DefaultMode
	}
	return businessType, mode
}
