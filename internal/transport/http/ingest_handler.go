package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kessan/backend/internal/config"
	"kessan/backend/internal/middleware"
	"kessan/backend/internal/service"
)

// IngestHandler 文件导入接口处理器
type IngestHandler struct {
	ingest *service.IngestService
	upload config.UploadConfig
	logger *zap.Logger
}

// NewIngestHandler 创建文件导入接口处理器
func NewIngestHandler(ingest *service.IngestService, upload config.UploadConfig, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{ingest: ingest, upload: upload, logger: logger}
}

// Ingest godoc
// @Summary 导入文件
// @Description 将单个文件转换为纯文本，结果可作为后续对话的 contextText
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Success 200 {object} service.IngestResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/files/ingest [post]
func (h *IngestHandler) Ingest(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(h.upload.MaxMemoryBytes); err != nil {
		if middleware.IsBodyTooLarge(err) {
			middleware.AbortBodyTooLarge(c, h.upload.MaxBodyBytes)
			return
		}
		BadRequest(c, MsgFileRequired)
		return
	}
	defer func() { _ = c.Request.MultipartForm.RemoveAll() }()

	fh, err := c.FormFile(fileField)
	if err != nil {
		BadRequest(c, MsgFileRequired)
		return
	}

	att, err := readAttachment(fh)
	if err != nil {
		InternalError(c, MsgFileParseFailed, err.Error())
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), att.FileName, att.Data)
	switch {
	case err == nil:
		Success(c, result)
	case errors.Is(err, service.ErrUnsupportedFileType):
		BadRequest(c, MsgUnsupportedFile)
	default:
		_ = c.Error(err)
		Error(c, http.StatusInternalServerError, MsgFileParseFailed, err.Error())
	}
}
