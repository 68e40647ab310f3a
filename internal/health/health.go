package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"kessan/backend/internal/config"
)

// Status 健康状态
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const dnsTimeout = 2 * time.Second

// CheckResult 单项检查结果
type CheckResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report 健康报告
type Report struct {
	Status    Status        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    time.Duration `json:"uptime"`
	Version   string        `json:"version"`
	Checks    []CheckResult `json:"checks"`
}

// Checker 健康检查器
//
// 存活检查失败时整体为 unhealthy，就绪检查失败时为 degraded。
type Checker struct {
	handler   healthcheck.Handler
	startedAt time.Time
	version   string
	logger    *zap.Logger

	mu        sync.RWMutex
	liveness  map[string]healthcheck.Check
	readiness map[string]healthcheck.Check
}

// NewChecker 创建健康检查器
//
// 存活检查：协程数量不超过 cfg.MaxGoroutines。
// 就绪检查：开启 cfg.ProviderDNSCheck 时解析大模型服务域名。
func NewChecker(cfg config.HealthConfig, providerEndpoint, version string, logger *zap.Logger) *Checker {
	hc := &Checker{
		handler:   healthcheck.NewHandler(),
		startedAt: time.Now(),
		version:   version,
		logger:    logger,
		liveness:  make(map[string]healthcheck.Check),
		readiness: make(map[string]healthcheck.Check),
	}

	if cfg.MaxGoroutines > 0 {
		hc.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(cfg.MaxGoroutines))
	}

	if cfg.ProviderDNSCheck {
		if host := endpointHost(providerEndpoint); host != "" {
			hc.AddReadinessCheck("provider-dns", healthcheck.DNSResolveCheck(host, dnsTimeout))
		} else {
			logger.Warn("provider dns check skipped: endpoint has no host", zap.String("endpoint", providerEndpoint))
		}
	}

	return hc
}

// AddLivenessCheck 添加存活检查
func (hc *Checker) AddLivenessCheck(name string, check healthcheck.Check) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.liveness[name] = check
	hc.handler.AddLivenessCheck(name, check)
}

// AddReadinessCheck 添加就绪检查
func (hc *Checker) AddReadinessCheck(name string, check healthcheck.Check) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.readiness[name] = check
	hc.handler.AddReadinessCheck(name, check)
}

// LiveEndpoint 存活检查端点，?full=1 时返回各项结果
func (hc *Checker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.handler.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查端点，同时执行存活检查
func (hc *Checker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.handler.ReadyEndpoint(w, r)
}

// Check 执行全部检查并生成报告
func (hc *Checker) Check() *Report {
	hc.mu.RLock()
	liveness := sortedChecks(hc.liveness)
	readiness := sortedChecks(hc.readiness)
	hc.mu.RUnlock()

	report := &Report{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(hc.startedAt),
		Version:   hc.version,
		Checks:    make([]CheckResult, 0, len(liveness)+len(readiness)+1),
	}

	for _, c := range liveness {
		result := run(c.name, c.check, StatusUnhealthy)
		report.Checks = append(report.Checks, result)
		if result.Status == StatusUnhealthy {
			report.Status = StatusUnhealthy
		}
	}
	for _, c := range readiness {
		result := run(c.name, c.check, StatusDegraded)
		report.Checks = append(report.Checks, result)
		if result.Status == StatusDegraded && report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}

	report.Checks = append(report.Checks, memoryResult())
	return report
}

// ReportEndpoint 以 JSON 返回健康报告，unhealthy 时返回 503
func (hc *Checker) ReportEndpoint(w http.ResponseWriter, r *http.Request) {
	report := hc.Check()

	status := http.StatusOK
	if report.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
		hc.logger.Warn("health check failed", zap.Any("checks", report.Checks))
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}

type namedCheck struct {
	name  string
	check healthcheck.Check
}

func sortedChecks(checks map[string]healthcheck.Check) []namedCheck {
	out := make([]namedCheck, 0, len(checks))
	for name, check := range checks {
		out = append(out, namedCheck{name: name, check: check})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func run(name string, check healthcheck.Check, failStatus Status) CheckResult {
	start := time.Now()
	result := CheckResult{Name: name, Status: StatusHealthy}
	if err := check(); err != nil {
		result.Status = failStatus
		result.Message = err.Error()
	}
	result.Duration = time.Since(start)
	return result
}

// memoryResult 仅报告当前内存占用，不影响整体状态
func memoryResult() CheckResult {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return CheckResult{
		Name:    "memory",
		Status:  StatusHealthy,
		Message: fmt.Sprintf("alloc %.2f MB, goroutines %d", float64(m.Alloc)/1024/1024, runtime.NumGoroutine()),
	}
}

func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
