package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kessan/backend/internal/domain"
)

// ErrorResponse 统一错误响应结构
type ErrorResponse struct {
	Error  string `json:"error"`            // 面向用户的日文提示
	Detail any    `json:"detail,omitempty"` // 调试信息（上游原始响应、异常消息等）
}

// ChatResponse 对话接口响应
type ChatResponse struct {
	Reply     string            `json:"reply"`
	EmailMeta *domain.EmailMeta `json:"emailMeta"` // 无邮件附件时为 null
}

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// BadRequestWithDetail 请求参数错误（400），附带详情
func BadRequestWithDetail(c *gin.Context, msg string, detail any) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Detail: detail})
}

// InternalError 服务器内部错误（500）
func InternalError(c *gin.Context, msg string, detail any) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msg, Detail: detail})
}

// Error 通用错误响应
func Error(c *gin.Context, httpCode int, msg string, detail any) {
	c.JSON(httpCode, ErrorResponse{Error: msg, Detail: detail})
}

// Attachment 以附件形式返回文件，文件名按 RFC 2231 编码以支持日文
func Attachment(c *gin.Context, fileName, contentType string, data []byte) {
	c.Header("Content-Disposition", contentDisposition(fileName))
	c.Data(http.StatusOK, contentType, data)
}
