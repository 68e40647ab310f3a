package httptransport

import (
	"github.com/gin-gonic/gin"

	"kessan/backend/internal/domain"
	"kessan/backend/internal/export"
	"kessan/backend/internal/service"
)

// ExportHandler 导出接口处理器
type ExportHandler struct {
	export *service.ExportService
}

// NewExportHandler 创建导出接口处理器
func NewExportHandler(export *service.ExportService) *ExportHandler {
	return &ExportHandler{export: export}
}

// exportRequest 导出请求，messages 为浏览器端保存的会话
type exportRequest struct {
	Messages     []domain.ConversationMessage `json:"messages"`
	BusinessType string                       `json:"businessType"`
	EmailMeta    *domain.EmailMeta            `json:"emailMeta"`
}

// Export godoc
// @Summary 导出会话
// @Description format 为 word、excel、csv、pptx 或 eml，以附件形式返回文件
// @Tags Export
// @Accept json
// @Param format path string true "导出格式"
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse
// @Router /api/export/{format} [post]
func (h *ExportHandler) Export(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestWithDetail(c, MsgInvalidRequest, err.Error())
		return
	}

	file, err := h.export.Export(c.Param("format"), export.Input{
		Messages:     req.Messages,
		BusinessType: req.BusinessType,
		EmailMeta:    req.EmailMeta,
	})
	if err != nil {
		status, msg, detail := mapError(err)
		if status >= 500 {
			_ = c.Error(err)
		}
		Error(c, status, msg, detail)
		return
	}

	Attachment(c, file.Name, file.ContentType, file.Data)
}
