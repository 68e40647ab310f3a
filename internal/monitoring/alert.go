package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// Alert 告警
type Alert struct {
	ID        string     `json:"id"`
	RuleID    string     `json:"rule_id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Level     AlertLevel `json:"level"`
	Component string     `json:"component"`
	Timestamp time.Time  `json:"timestamp"`
}

// AlertRule 告警规则，Condition 返回 true 时触发，返回的字符串作为告警详情
type AlertRule struct {
	ID        string
	Name      string
	Condition func() (bool, string)
	Level     AlertLevel
	Component string
	Cooldown  time.Duration
}

// AlertReceiver 告警接收器接口
type AlertReceiver interface {
	SendAlert(ctx context.Context, alert *Alert) error
}

// AlertManager 告警管理器，按间隔评估规则并分发给接收器
type AlertManager struct {
	rules         []AlertRule
	receivers     []AlertReceiver
	lastTriggered map[string]time.Time
	history       []Alert
	logger        *zap.Logger
	now           func() time.Time
	mu            sync.Mutex
}

const alertHistoryLimit = 100

// NewAlertManager 创建告警管理器
func NewAlertManager(logger *zap.Logger) *AlertManager {
	return &AlertManager{
		lastTriggered: make(map[string]time.Time),
		logger:        logger,
		now:           time.Now,
	}
}

// AddReceiver 添加告警接收器
func (am *AlertManager) AddReceiver(receiver AlertReceiver) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.receivers = append(am.receivers, receiver)
}

// AddRule 添加告警规则
func (am *AlertManager) AddRule(rule AlertRule) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.rules = append(am.rules, rule)
}

// CheckRules 评估所有规则，冷却期内的规则跳过
func (am *AlertManager) CheckRules(ctx context.Context) {
	am.mu.Lock()
	rules := make([]AlertRule, len(am.rules))
	copy(rules, am.rules)
	receivers := make([]AlertReceiver, len(am.receivers))
	copy(receivers, am.receivers)
	am.mu.Unlock()

	for _, rule := range rules {
		now := am.now()

		am.mu.Lock()
		last, seen := am.lastTriggered[rule.ID]
		am.mu.Unlock()
		if seen && now.Sub(last) < rule.Cooldown {
			continue
		}

		fired, detail := rule.Condition()
		if !fired {
			continue
		}

		alert := &Alert{
			ID:        fmt.Sprintf("%s_%d", rule.ID, now.Unix()),
			RuleID:    rule.ID,
			Title:     rule.Name,
			Message:   detail,
			Level:     rule.Level,
			Component: rule.Component,
			Timestamp: now,
		}

		am.mu.Lock()
		am.lastTriggered[rule.ID] = now
		am.history = append(am.history, *alert)
		if len(am.history) > alertHistoryLimit {
			am.history = am.history[len(am.history)-alertHistoryLimit:]
		}
		am.mu.Unlock()

		for _, receiver := range receivers {
			if err := receiver.SendAlert(ctx, alert); err != nil {
				am.logger.Error("failed to send alert",
					zap.String("alert_id", alert.ID),
					zap.Error(err),
				)
			}
		}
	}
}

// History 返回最近触发的告警
func (am *AlertManager) History() []Alert {
	am.mu.Lock()
	defer am.mu.Unlock()
	out := make([]Alert, len(am.history))
	copy(out, am.history)
	return out
}

// Run 按间隔评估规则直到 ctx 取消
func (am *AlertManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			am.CheckRules(ctx)
		}
	}
}

// ========== 内置告警规则 ==========

// HighMemoryUsageRule 内存占用超过阈值
func HighMemoryUsageRule(thresholdMB float64) AlertRule {
	return AlertRule{
		ID:   "high_memory_usage",
		Name: "High Memory Usage",
		Condition: func() (bool, string) {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			usageMB := float64(m.Alloc) / 1024 / 1024
			return usageMB > thresholdMB, fmt.Sprintf("memory usage %.1f MB exceeds %.1f MB", usageMB, thresholdMB)
		},
		Level:     AlertLevelWarning,
		Component: "memory",
		Cooldown:  5 * time.Minute,
	}
}

// ProviderErrorRateRule 两次评估之间大模型调用失败率超过阈值
//
// 调用次数少于 minCalls 时不触发。
func ProviderErrorRateRule(metrics *Metrics, threshold float64, minCalls int) AlertRule {
	var (
		mu                    sync.Mutex
		lastTotal, lastFailed float64
	)

	return AlertRule{
		ID:   "provider_error_rate",
		Name: "Provider Error Rate",
		Condition: func() (bool, string) {
			total, failed := metrics.providerCallCounts()

			mu.Lock()
			deltaTotal, deltaFailed := total-lastTotal, failed-lastFailed
			lastTotal, lastFailed = total, failed
			mu.Unlock()

			if deltaTotal < float64(minCalls) || deltaTotal == 0 {
				return false, ""
			}
			rate := deltaFailed / deltaTotal
			return rate > threshold, fmt.Sprintf("provider error rate %.1f%% (%d/%d) exceeds %.1f%%",
				rate*100, int(deltaFailed), int(deltaTotal), threshold*100)
		},
		Level:     AlertLevelCritical,
		Component: "provider",
		Cooldown:  5 * time.Minute,
	}
}

// ========== 告警接收器实现 ==========

// LogAlertReceiver 日志告警接收器
type LogAlertReceiver struct {
	logger *zap.Logger
}

// NewLogAlertReceiver 创建日志告警接收器
func NewLogAlertReceiver(logger *zap.Logger) *LogAlertReceiver {
	return &LogAlertReceiver{logger: logger}
}

// SendAlert 按级别写入日志
func (lar *LogAlertReceiver) SendAlert(_ context.Context, alert *Alert) error {
	fields := []zap.Field{
		zap.String("alert_id", alert.ID),
		zap.String("title", alert.Title),
		zap.String("message", alert.Message),
		zap.String("component", alert.Component),
		zap.Time("timestamp", alert.Timestamp),
	}

	switch alert.Level {
	case AlertLevelCritical:
		lar.logger.Error("CRITICAL ALERT", fields...)
	case AlertLevelWarning:
		lar.logger.Warn("WARNING ALERT", fields...)
	default:
		lar.logger.Info("INFO ALERT", fields...)
	}
	return nil
}

// WebhookAlertReceiver 以 JSON POST 推送告警
type WebhookAlertReceiver struct {
	url    string
	client *http.Client
}

// NewWebhookAlertReceiver 创建 Webhook 告警接收器
func NewWebhookAlertReceiver(url string, client *http.Client) *WebhookAlertReceiver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookAlertReceiver{url: url, client: client}
}

// SendAlert 发送告警到 Webhook，非 2xx 视为失败
func (war *WebhookAlertReceiver) SendAlert(ctx context.Context, alert *Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, war.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := war.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
