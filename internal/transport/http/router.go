package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kessan/backend/internal/config"
	"kessan/backend/internal/health"
	"kessan/backend/internal/middleware"
	"kessan/backend/internal/monitoring"
	"kessan/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config        *config.Config
	ChatService   *service.ChatService
	IngestService *service.IngestService
	ExportService *service.ExportService
	Health        *health.Checker
	Metrics       *monitoring.Metrics
	Logger        *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = deps.Config.Upload.MaxMemoryBytes

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(monitor.HTTPMetrics())
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.SecurityHeaders())

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowOrigins = nil
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	chatHandler := NewChatHandler(deps.ChatService, deps.Config.Upload, deps.Logger)
	ingestHandler := NewIngestHandler(deps.IngestService, deps.Config.Upload, deps.Logger)
	exportHandler := NewExportHandler(deps.ExportService)

	// 健康检查与监控
	router.GET("/health", gin.WrapF(deps.Health.ReportEndpoint))
	router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
	router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	api := router.Group("/api")
	api.Use(middleware.BodySizeLimit(deps.Config.Upload.MaxBodyBytes))
	{
		api.POST("/chat", chatHandler.Chat)
		api.POST("/files/ingest", ingestHandler.Ingest)
		api.POST("/export/:format", exportHandler.Export)
	}

	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "not found", c.Request.URL.Path)
	})

	return router
}
