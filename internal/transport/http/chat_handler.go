package httptransport

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kessan/backend/internal/config"
	"kessan/backend/internal/domain"
	"kessan/backend/internal/middleware"
	"kessan/backend/internal/service"
)

const fileField = "file"

// ChatHandler 对话接口处理器
type ChatHandler struct {
	chat   *service.ChatService
	upload config.UploadConfig
	logger *zap.Logger
}

// NewChatHandler 创建对话接口处理器
func NewChatHandler(chat *service.ChatService, upload config.UploadConfig, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, upload: upload, logger: logger}
}

// chatJSONRequest JSON 形式的对话请求
type chatJSONRequest struct {
	Message      string `json:"message"`
	BusinessType string `json:"businessType"`
	Mode         string `json:"mode"`
	ContextText  string `json:"contextText"`
}

// Chat godoc
// @Summary 发送对话消息
// @Description multipart（message、businessType、mode、contextText、多个 file）或 JSON 请求，返回大模型回答
// @Tags Chat
// @Accept multipart/form-data,json
// @Produce json
// @Success 200 {object} ChatResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	var (
		input service.ChatInput
		err   error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		input, err = h.bindMultipart(c)
	} else {
		input, err = bindJSON(c)
	}
	if err != nil {
		h.respondBindError(c, err)
		return
	}

	result, err := h.chat.Chat(c.Request.Context(), input)
	if err != nil {
		status, msg, detail := mapError(err)
		if status >= 500 {
			_ = c.Error(err)
		}
		Error(c, status, msg, detail)
		return
	}

	Success(c, ChatResponse{Reply: result.Reply, EmailMeta: result.EmailMeta})
}

func (h *ChatHandler) bindMultipart(c *gin.Context) (service.ChatInput, error) {
	if err := c.Request.ParseMultipartForm(h.upload.MaxMemoryBytes); err != nil {
		return service.ChatInput{}, err
	}
	form := c.Request.MultipartForm
	defer func() { _ = form.RemoveAll() }()

	input := service.ChatInput{
		Message:      firstValue(form.Value, "message"),
		BusinessType: firstValue(form.Value, "businessType"),
		Mode:         firstValue(form.Value, "mode"),
		ContextText:  firstValue(form.Value, "contextText"),
	}

	for _, fh := range form.File[fileField] {
		att, err := readAttachment(fh)
		if err != nil {
			return service.ChatInput{}, err
		}
		input.Attachments = append(input.Attachments, att)
	}
	return input, nil
}

func bindJSON(c *gin.Context) (service.ChatInput, error) {
	var req chatJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return service.ChatInput{}, err
	}
	return service.ChatInput{
		Message:      req.Message,
		BusinessType: req.BusinessType,
		Mode:         req.Mode,
		ContextText:  req.ContextText,
	}, nil
}

func (h *ChatHandler) respondBindError(c *gin.Context, err error) {
	if middleware.IsBodyTooLarge(err) {
		middleware.AbortBodyTooLarge(c, h.upload.MaxBodyBytes)
		return
	}
	h.logger.Warn("invalid chat request", zap.Error(err))
	BadRequestWithDetail(c, MsgInvalidRequest, err.Error())
}

// readAttachment 读取上传文件，MIME 类型取自分段头
func readAttachment(fh *multipart.FileHeader) (domain.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}
	return domain.Attachment{
		FileName: fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func firstValue(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
