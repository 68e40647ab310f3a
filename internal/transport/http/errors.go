package httptransport

import (
	"errors"
	"mime"
	"net/http"

	"kessan/backend/internal/config"
	"kessan/backend/internal/export"
	"kessan/backend/internal/llm"
	"kessan/backend/internal/service"
)

// 通用错误消息
const (
	// 请求相关
	MsgMessageRequired = "message が必要です"
	MsgFileRequired    = "file が必要です"
	MsgInvalidRequest  = "リクエストの形式が正しくありません"
	MsgUnsupportedFile = "対応していないファイル形式です"
	MsgUnknownFormat   = "対応していないエクスポート形式です"
	MsgNothingToExport = "エクスポートできる回答がありません"
	MsgFileParseFailed = "ファイル解析中にエラーが発生しました"

	// 大模型相关
	MsgMissingConfig   = "Azure OpenAI の環境変数が不足しています"
	MsgUpstreamFailed  = "Azure OpenAI 呼び出しでエラーが発生しました"
	MsgResponseInvalid = "Azure 応答の JSON パースに失敗しました"

	// 服务器错误
	MsgInternalError = "内部エラーが発生しました"
)

// 错误消息映射表（业务错误 -> 状态码和日文消息）
var errorMessages = map[error]struct {
	status int
	msg    string
}{
	service.ErrMessageRequired:     {http.StatusBadRequest, MsgMessageRequired},
	service.ErrUnsupportedFileType: {http.StatusBadRequest, MsgUnsupportedFile},
	service.ErrUnknownFormat:       {http.StatusBadRequest, MsgUnknownFormat},
	export.ErrNothingToExport:      {http.StatusBadRequest, MsgNothingToExport},
}

// mapError 将服务层错误转换为响应状态码、消息和详情
func mapError(err error) (int, string, any) {
	for target, m := range errorMessages {
		if errors.Is(err, target) {
			return m.status, m.msg, nil
		}
	}

	var (
		missing  *config.MissingConfigError
		upstream *llm.UpstreamError
		parse    *llm.ResponseParseError
	)
	switch {
	case errors.As(err, &missing):
		return http.StatusInternalServerError, MsgMissingConfig, missingDetail(missing)
	case errors.As(err, &upstream):
		return http.StatusInternalServerError, MsgUpstreamFailed, upstream.Body
	case errors.As(err, &parse):
		return http.StatusInternalServerError, MsgResponseInvalid, parse.Body
	default:
		return http.StatusInternalServerError, MsgInternalError, err.Error()
	}
}

// missingDetail 按变量名给出是否已配置
func missingDetail(err *config.MissingConfigError) map[string]bool {
	detail := map[string]bool{
		"AZURE_OPENAI_ENDPOINT":    true,
		"AZURE_OPENAI_API_KEY":     true,
		"AZURE_OPENAI_API_VERSION": true,
		"AZURE_OPENAI_DEPLOYMENT":  true,
	}
	for _, key := range err.Keys {
		detail[key] = false
	}
	return detail
}

func contentDisposition(fileName string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": fileName}); v != "" {
		return v
	}
	return "attachment"
}
