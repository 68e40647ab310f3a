package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"kessan/backend/internal/config"
	"kessan/backend/internal/health"
	"kessan/backend/internal/llm"
	"kessan/backend/internal/monitoring"
	"kessan/backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockGateway 模拟大模型网关
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Complete(ctx context.Context, req llm.Request) (llm.Reply, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(llm.Reply), args.Error(1)
}

func (m *MockGateway) AcceptsFileReferences() bool { return true }

func (m *MockGateway) Name() string { return "mock" }

func testConfig() *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{MaxBodyBytes: 1 << 20, MaxMemoryBytes: 1 << 20},
		Export: config.ExportConfig{
			SenderAddress:    "your.name@example.com",
			DefaultRecipient: "unknown@example.com",
			DefaultSubject:   "お問い合わせの件",
		},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"*"}},
		Health: config.HealthConfig{MaxGoroutines: 100000},
	}
}

func newTestRouter(t *testing.T, gw llm.Gateway) (*gin.Engine, *config.Config) {
	t.Helper()
	cfg := testConfig()
	r, _ := buildTestRouter(cfg, gw, zap.NewNop())
	return r, cfg
}

func buildTestRouter(cfg *config.Config, gw llm.Gateway, logger *zap.Logger) (*gin.Engine, *monitoring.Metrics) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())

	return NewRouter(RouterDependencies{
		Config:        cfg,
		ChatService:   service.NewChatService(gw, metrics, logger),
		IngestService: service.NewIngestService(metrics, logger),
		ExportService: service.NewExportService(cfg.Export, metrics, logger),
		Health:        health.NewChecker(cfg.Health, "", "test", logger),
		Metrics:       metrics,
		Logger:        logger,
	}), metrics
}

type formFile struct {
	field, name, contentType, body string
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		if f.contentType != "" {
			h.Set("Content-Type", f.contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestChat_JSON(t *testing.T) {
	gw := &MockGateway{}
	gw.On("Complete", mock.Anything, mock.Anything).Return(llm.Reply{Text: "回答です"}, nil).Once()
	r, _ := newTestRouter(t, gw)

	rec := doJSON(r, http.MethodPost, "/api/chat", `{"message":"テスト"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply":"回答です","emailMeta":null}`, rec.Body.String())
	gw.AssertExpectations(t)
}

func TestChat_MultipartWithEmail(t *testing.T) {
	gw := &MockGateway{}
	gw.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.SystemPrompt, "ビジネスメール返信") && len(req.Blocks) == 2
	})).Return(llm.Reply{Text: "返信本文"}, nil).Once()
	r, _ := newTestRouter(t, gw)

	body, contentType := multipartBody(t,
		map[string]string{"message": "返信を作って", "businessType": "連結"},
		formFile{field: "file", name: "inquiry.eml", body: "From: a@x.com\r\nSubject: 見積依頼\r\n\r\n本文"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "返信本文", resp.Reply)
	require.NotNil(t, resp.EmailMeta)
	assert.Equal(t, "a@x.com", resp.EmailMeta.From)
	assert.Equal(t, "見積依頼", resp.EmailMeta.Subject)
	gw.AssertExpectations(t)
}

func TestChat_MissingMessage(t *testing.T) {
	gw := &MockGateway{}
	r, _ := newTestRouter(t, gw)

	t.Run("JSON", func(t *testing.T) {
		rec := doJSON(r, http.MethodPost, "/api/chat", `{"businessType":"単体"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"message が必要です"}`, rec.Body.String())
	})

	t.Run("空请求体", func(t *testing.T) {
		rec := doJSON(r, http.MethodPost, "/api/chat", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("multipart", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"mode": "review"})
		req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	gw.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestChat_InvalidJSON(t *testing.T) {
	r, _ := newTestRouter(t, &MockGateway{})

	rec := doJSON(r, http.MethodPost, "/api/chat", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgInvalidRequest)
}

func TestChat_ProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantError  string
		wantDetail string
	}{
		{
			name:       "上游返回 429",
			err:        &llm.UpstreamError{StatusCode: 429, Body: `{"error":{"code":"429"}}`},
			wantError:  MsgUpstreamFailed,
			wantDetail: `{"error":{"code":"429"}}`,
		},
		{
			name:       "响应无法解析",
			err:        &llm.ResponseParseError{Body: "<html>", Err: assert.AnError},
			wantError:  MsgResponseInvalid,
			wantDetail: "<html>",
		},
		{
			name:       "其他错误",
			err:        context.DeadlineExceeded,
			wantError:  MsgInternalError,
			wantDetail: context.DeadlineExceeded.Error(),
		},
		{
			name:      "缺少配置",
			err:       &config.MissingConfigError{Keys: []string{"AZURE_OPENAI_API_KEY"}},
			wantError: MsgMissingConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &MockGateway{}
			gw.On("Complete", mock.Anything, mock.Anything).Return(llm.Reply{}, tt.err).Once()
			r, _ := newTestRouter(t, gw)

			rec := doJSON(r, http.MethodPost, "/api/chat", `{"message":"q"}`)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp["error"])
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, resp["detail"])
			}
			gw.AssertNumberOfCalls(t, "Complete", 1)
		})
	}
}

func TestChat_MissingConfigDetail(t *testing.T) {
	gw := &MockGateway{}
	gw.On("Complete", mock.Anything, mock.Anything).
		Return(llm.Reply{}, &config.MissingConfigError{Keys: []string{"AZURE_OPENAI_API_KEY"}}).Once()
	r, _ := newTestRouter(t, gw)

	rec := doJSON(r, http.MethodPost, "/api/chat", `{"message":"q"}`)

	var resp struct {
		Detail map[string]bool `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Detail["AZURE_OPENAI_API_KEY"])
	assert.True(t, resp.Detail["AZURE_OPENAI_ENDPOINT"])
}

func TestChat_BodyTooLarge(t *testing.T) {
	r, cfg := newTestRouter(t, &MockGateway{})

	big := strings.Repeat("a", int(cfg.Upload.MaxBodyBytes)+1)
	rec := doJSON(r, http.MethodPost, "/api/chat", `{"message":"`+big+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestIngest(t *testing.T) {
	r, _ := newTestRouter(t, &MockGateway{})

	post := func(files ...formFile) *httptest.ResponseRecorder {
		body, contentType := multipartBody(t, nil, files...)
		req := httptest.NewRequest(http.MethodPost, "/api/files/ingest", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	t.Run("文本文件", func(t *testing.T) {
		rec := post(formFile{field: "file", name: "memo.txt", contentType: "text/plain", body: "決算日程"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"text":"決算日程","meta":{"fileName":"memo.txt","fileType":"text"}}`, rec.Body.String())
	})

	t.Run("不支持的扩展名", func(t *testing.T) {
		rec := post(formFile{field: "file", name: "photo.png", body: "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"対応していないファイル形式です"}`, rec.Body.String())
	})

	t.Run("缺少文件", func(t *testing.T) {
		rec := post()
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), MsgFileRequired)
	})

	t.Run("解析失败", func(t *testing.T) {
		rec := post(formFile{field: "file", name: "broken.docx", body: "not a zip"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), MsgFileParseFailed)
	})
}

func TestExport(t *testing.T) {
	r, _ := newTestRouter(t, &MockGateway{})
	conversation := `{"messages":[{"role":"user","content":"質問"},{"role":"assistant","content":"回答"}],` +
		`"businessType":"単体決算","emailMeta":{"from":"a@x.com","subject":"見積依頼"}}`

	t.Run("Word", func(t *testing.T) {
		rec := doJSON(r, http.MethodPost, "/api/export/word", conversation)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/msword", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename=kessan-ai-answer.doc`, rec.Header().Get("Content-Disposition"))
		assert.Contains(t, rec.Body.String(), "【回答1】")
	})

	t.Run("EML 文件名含日文", func(t *testing.T) {
		rec := doJSON(r, http.MethodPost, "/api/export/eml", conversation)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "filename*=utf-8''")
		assert.Contains(t, rec.Body.String(), "To: a@x.com")
	})

	t.Run("未知格式", func(t *testing.T) {
		rec := doJSON(r, http.MethodPost, "/api/export/pdf", conversation)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), MsgUnknownFormat)
	})

	t.Run("没有回答", func(t *testing.T) {
		rec := doJSON(r, http.MethodPost, "/api/export/excel", `{"messages":[{"role":"user","content":"質問"}]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), MsgNothingToExport)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, &MockGateway{})

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kessan_http_requests_total")
}

func TestPanicIsLoggedAndCounted(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r, metrics := buildTestRouter(testConfig(), &MockGateway{}, zap.New(core))
	r.GET("/boom", func(c *gin.Context) {
		panic("assembler exploded")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"内部エラーが発生しました","detail":"assembler exploded"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PanicsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/boom", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues("http_5xx", "http")))

	serverErrors := logs.FilterMessage("server error").All()
	require.Len(t, serverErrors, 1)
	assert.Equal(t, int64(http.StatusInternalServerError), serverErrors[0].ContextMap()["status"])
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t, &MockGateway{})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
