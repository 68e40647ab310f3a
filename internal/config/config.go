package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"kessan/backend/internal/domain"
)

// 大模型接口类型
const (
	ProviderAPIResponses = "responses" // Azure OpenAI Responses API（支持 PDF 直传）
	ProviderAPIChat      = "chat"      // Azure OpenAI Chat Completions API
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host         string        // 监听地址，默认 "0.0.0.0"
	Port         int           // 监听端口，默认 8080
	ReadTimeout  time.Duration // 读取超时（含上传文件），默认 60s
	WriteTimeout time.Duration // 写入超时，需覆盖一次大模型往返，默认 90s
}

// ProviderConfig 定义大模型服务（Azure OpenAI）的连接参数
type ProviderConfig struct {
	API                 string        // 接口类型: "responses" 或 "chat"
	Endpoint            string        // 服务地址，如 https://xxx.openai.azure.com
	APIKey              string        // API Key（api-key 请求头）
	APIVersion          string        // api-version 查询参数
	Deployment          string        // 部署名（同时作为 model 字段）
	MaxCompletionTokens int           // chat 模式的 max_completion_tokens
	Timeout             time.Duration // 单次调用超时，0 表示不设置
}

// UploadConfig 定义上传相关限制
type UploadConfig struct {
	MaxBodyBytes   int64 // 请求体上限（字节）
	MaxMemoryBytes int64 // multipart 解析时驻留内存的上限（字节）
}

// ExportConfig 定义导出（EML 等）使用的默认值
type ExportConfig struct {
	SenderAddress    string // EML 发件人地址
	DefaultRecipient string // 未解析到原邮件发件人时的收件人
	DefaultSubject   string // 未解析到原邮件主题时使用的主题
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 控制台格式输出和错误堆栈
	File        string // 日志文件路径，留空仅输出到控制台
	MaxSizeMB   int    // 单个日志文件大小上限（MB）
	MaxBackups  int    // 保留的旧日志文件数
	MaxAgeDays  int    // 旧日志保留天数
	Compress    bool   // 是否压缩旧日志
}

// HealthConfig 定义健康检查配置
type HealthConfig struct {
	ProviderDNSCheck bool // 就绪检查是否解析大模型服务域名
	MaxGoroutines    int  // 存活检查的协程数量上限
}

// AlertConfig 定义告警配置，Interval 为 0 时不启动告警
type AlertConfig struct {
	Interval          time.Duration // 规则评估间隔
	MemoryThresholdMB float64       // 内存告警阈值（MB）
	ProviderErrorRate float64       // 大模型调用失败率阈值（0~1）
	MinProviderCalls  int           // 评估失败率所需的最少调用次数
	WebhookURL        string        // 告警推送地址，留空仅写日志
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig
	Provider ProviderConfig
	Upload   UploadConfig
	Export   ExportConfig
	CORS     CORSConfig
	Log      LogConfig
	Health   HealthConfig
	Alert    AlertConfig
}

// MissingConfigError 表示必需配置项缺失，Keys 列出全部缺失项对应的环境变量名
type MissingConfigError struct {
	Keys []string
}

func (e *MissingConfigError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

// Validate 校验大模型连接参数，一次性返回所有缺失项
func (p ProviderConfig) Validate() error {
	required := []struct {
		env   string
		value string
	}{
		{"AZURE_OPENAI_ENDPOINT", p.Endpoint},
		{"AZURE_OPENAI_API_KEY", p.APIKey},
		{"AZURE_OPENAI_API_VERSION", p.APIVersion},
		{"AZURE_OPENAI_DEPLOYMENT", p.Deployment},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.env)
		}
	}
	if len(missing) > 0 {
		return &MissingConfigError{Keys: missing}
	}

	switch p.API {
	case ProviderAPIResponses, ProviderAPIChat:
	default:
		return fmt.Errorf("invalid provider.api %q: must be %q or %q", p.API, ProviderAPIResponses, ProviderAPIChat)
	}
	return nil
}

// Validate 校验导出使用的邮箱地址
func (e ExportConfig) Validate() error {
	if err := domain.ValidateAddress(e.SenderAddress); err != nil {
		return fmt.Errorf("invalid export.sender_address %q: %w", e.SenderAddress, err)
	}
	if err := domain.ValidateAddress(e.DefaultRecipient); err != nil {
		return fmt.Errorf("invalid export.default_recipient %q: %w", e.DefaultRecipient, err)
	}
	return nil
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: KESSAN_，例如 KESSAN_SERVER_PORT。
// 大模型参数同时兼容 AZURE_OPENAI_* 变量名。
//
// 大模型参数缺失时返回 *MissingConfigError，调用方应直接终止启动。
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("kessan")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("provider.endpoint", "KESSAN_PROVIDER_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
	_ = v.BindEnv("provider.api_key", "KESSAN_PROVIDER_API_KEY", "AZURE_OPENAI_API_KEY")
	_ = v.BindEnv("provider.api_version", "KESSAN_PROVIDER_API_VERSION", "AZURE_OPENAI_API_VERSION")
	_ = v.BindEnv("provider.deployment", "KESSAN_PROVIDER_DEPLOYMENT", "AZURE_OPENAI_DEPLOYMENT")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("provider.api", ProviderAPIResponses)
	v.SetDefault("provider.max_completion_tokens", 4096)
	v.SetDefault("provider.timeout", "0s")
	v.SetDefault("upload.max_body_bytes", 50*1024*1024)
	v.SetDefault("upload.max_memory_bytes", 32*1024*1024)
	v.SetDefault("export.sender_address", "your.name@example.com")
	v.SetDefault("export.default_recipient", "unknown@example.com")
	v.SetDefault("export.default_subject", "お問い合わせの件")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)
	v.SetDefault("health.provider_dns_check", false)
	v.SetDefault("health.max_goroutines", 1000)
	v.SetDefault("alert.interval", "1m")
	v.SetDefault("alert.memory_threshold_mb", 1024)
	v.SetDefault("alert.provider_error_rate", 0.5)
	v.SetDefault("alert.min_provider_calls", 5)
	v.SetDefault("alert.webhook_url", "")

	readTimeout, err := time.ParseDuration(v.GetString("server.read_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid server.read_timeout: %w", err)
	}
	writeTimeout, err := time.ParseDuration(v.GetString("server.write_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid server.write_timeout: %w", err)
	}
	providerTimeout, err := time.ParseDuration(v.GetString("provider.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid provider.timeout: %w", err)
	}

	alertInterval, err := time.ParseDuration(v.GetString("alert.interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid alert.interval: %w", err)
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	maxTokens := v.GetInt("provider.max_completion_tokens")
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         v.GetString("server.host"),
			Port:         v.GetInt("server.port"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		Provider: ProviderConfig{
			API:                 strings.ToLower(strings.TrimSpace(v.GetString("provider.api"))),
			Endpoint:            strings.TrimRight(strings.TrimSpace(v.GetString("provider.endpoint")), "/"),
			APIKey:              strings.TrimSpace(v.GetString("provider.api_key")),
			APIVersion:          strings.TrimSpace(v.GetString("provider.api_version")),
			Deployment:          strings.TrimSpace(v.GetString("provider.deployment")),
			MaxCompletionTokens: maxTokens,
			Timeout:             providerTimeout,
		},
		Upload: UploadConfig{
			MaxBodyBytes:   v.GetInt64("upload.max_body_bytes"),
			MaxMemoryBytes: v.GetInt64("upload.max_memory_bytes"),
		},
		Export: ExportConfig{
			SenderAddress:    v.GetString("export.sender_address"),
			DefaultRecipient: v.GetString("export.default_recipient"),
			DefaultSubject:   v.GetString("export.default_subject"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
			MaxSizeMB:   v.GetInt("log.max_size_mb"),
			MaxBackups:  v.GetInt("log.max_backups"),
			MaxAgeDays:  v.GetInt("log.max_age_days"),
			Compress:    v.GetBool("log.compress"),
		},
		Health: HealthConfig{
			ProviderDNSCheck: v.GetBool("health.provider_dns_check"),
			MaxGoroutines:    v.GetInt("health.max_goroutines"),
		},
		Alert: AlertConfig{
			Interval:          alertInterval,
			MemoryThresholdMB: v.GetFloat64("alert.memory_threshold_mb"),
			ProviderErrorRate: v.GetFloat64("alert.provider_error_rate"),
			MinProviderCalls:  v.GetInt("alert.min_provider_calls"),
			WebhookURL:        strings.TrimSpace(v.GetString("alert.webhook_url")),
		},
	}

	if err := cfg.Provider.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Export.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env
//
// 文件不存在时静默跳过；已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
