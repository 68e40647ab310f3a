package llm

import "fmt"

// UpstreamError 表示大模型服务返回了非 2xx 状态，Body 为原始响应体
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// ResponseParseError 表示响应体不是合法 JSON
type ResponseParseError struct {
	Body string
	Err  error
}

func (e *ResponseParseError) Error() string {
	return "parse upstream response: " + e.Err.Error()
}

func (e *ResponseParseError) Unwrap() error {
	return e.Err
}
