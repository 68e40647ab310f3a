package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kessan/backend/internal/config"
	"kessan/backend/internal/health"
	"kessan/backend/internal/llm"
	"kessan/backend/internal/logger"
	"kessan/backend/internal/monitoring"
	"kessan/backend/internal/service"
	httptransport "kessan/backend/internal/transport/http"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

const shutdownTimeout = 10 * time.Second

// main 启动决算支援 AI 的 HTTP 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrap := logger.NewDevelopmentLogger()
		var missing *config.MissingConfigError
		if errors.As(err, &missing) {
			bootstrap.Fatal("Azure OpenAI の環境変数が不足しています", zap.Strings("missing", missing.Keys))
		}
		bootstrap.Fatal("failed to load config", zap.Error(err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting kessan server",
		zap.String("version", version),
		zap.String("provider_api", cfg.Provider.API),
		zap.String("deployment", cfg.Provider.Deployment),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化监控系统
	metrics := monitoring.NewMetrics(nil)
	healthChecker := health.NewChecker(cfg.Health, cfg.Provider.Endpoint, version, log.Named("health"))

	// 初始化大模型网关
	gateway, err := llm.NewGateway(cfg.Provider, log.Named("llm"))
	if err != nil {
		log.Fatal("failed to create provider gateway", zap.Error(err))
	}
	log.Info("provider gateway initialized", zap.String("gateway", gateway.Name()))

	// 初始化服务层
	chatService := service.NewChatService(gateway, metrics, log.Named("chat"))
	ingestService := service.NewIngestService(metrics, log.Named("ingest"))
	exportService := service.NewExportService(cfg.Export, metrics, log.Named("export"))

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:        cfg,
		ChatService:   chatService,
		IngestService: ingestService,
		ExportService: exportService,
		Health:        healthChecker,
		Metrics:       metrics,
		Logger:        log.Named("http"),
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 告警 goroutine
	if cfg.Alert.Interval > 0 {
		alertManager := newAlertManager(cfg.Alert, metrics, log.Named("alert"))
		group.Go(func() error {
			log.Info("starting alert monitoring", zap.Duration("interval", cfg.Alert.Interval))
			alertManager.Run(groupCtx, cfg.Alert.Interval)
			return nil
		})
	}

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// newAlertManager 按配置注册告警规则和接收器
func newAlertManager(cfg config.AlertConfig, metrics *monitoring.Metrics, log *zap.Logger) *monitoring.AlertManager {
	am := monitoring.NewAlertManager(log)
	am.AddReceiver(monitoring.NewLogAlertReceiver(log))
	if cfg.WebhookURL != "" {
		am.AddReceiver(monitoring.NewWebhookAlertReceiver(cfg.WebhookURL, nil))
	}

	if cfg.MemoryThresholdMB > 0 {
		am.AddRule(monitoring.HighMemoryUsageRule(cfg.MemoryThresholdMB))
	}
	if cfg.ProviderErrorRate > 0 {
		am.AddRule(monitoring.ProviderErrorRateRule(metrics, cfg.ProviderErrorRate, cfg.MinProviderCalls))
	}
	return am
}
