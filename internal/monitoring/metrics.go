package monitoring

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	registry  *prometheus.Registry
	startedAt time.Time

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 大模型调用指标
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	ReplyStrategyTotal      *prometheus.CounterVec

	// 附件与导出指标
	AttachmentsTotal *prometheus.CounterVec
	AttachmentSize   *prometheus.HistogramVec
	ExportsTotal     *prometheus.CounterVec

	// 系统指标
	SystemUptime prometheus.Gauge
	MemoryUsage  prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 在独立的注册表上创建监控指标，reg 为 nil 时新建注册表并附带 Go 运行时和进程指标
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry:  reg,
		startedAt: time.Now(),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kessan_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kessan_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kessan_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kessan_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kessan_provider_requests_total",
				Help: "Total number of LLM provider calls by outcome",
			},
			[]string{"gateway", "outcome"},
		),

		ProviderRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kessan_provider_request_duration_seconds",
				Help:    "LLM provider call duration in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90},
			},
			[]string{"gateway"},
		),

		ReplyStrategyTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kessan_reply_strategy_total",
				Help: "Replies by the normalization strategy that produced the text",
			},
			[]string{"strategy"},
		),

		AttachmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kessan_attachments_total",
				Help: "Uploaded attachments by kind and extraction outcome",
			},
			[]string{"kind", "outcome"},
		),

		AttachmentSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kessan_attachment_size_bytes",
				Help:    "Uploaded attachment size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"kind"},
		),

		ExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kessan_exports_total",
				Help: "Generated export files by format",
			},
			[]string{"format"},
		),

		SystemUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kessan_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kessan_memory_usage_bytes",
				Help: "Memory usage in bytes",
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kessan_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kessan_panics_total",
				Help: "Total number of panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordProviderCall 记录一次大模型调用
func (m *Metrics) RecordProviderCall(gateway, outcome string, duration time.Duration) {
	m.ProviderRequestsTotal.WithLabelValues(gateway, outcome).Inc()
	m.ProviderRequestDuration.WithLabelValues(gateway).Observe(duration.Seconds())
}

// RecordReplyStrategy 记录应答文本由哪个策略提取
func (m *Metrics) RecordReplyStrategy(strategy string) {
	m.ReplyStrategyTotal.WithLabelValues(strategy).Inc()
}

// RecordAttachment 记录附件处理结果
func (m *Metrics) RecordAttachment(kind, outcome string, size int) {
	m.AttachmentsTotal.WithLabelValues(kind, outcome).Inc()
	m.AttachmentSize.WithLabelValues(kind).Observe(float64(size))
}

// RecordExport 记录导出
func (m *Metrics) RecordExport(format string) {
	m.ExportsTotal.WithLabelValues(format).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// UpdateSystemMetrics 更新运行时间和内存使用量
func (m *Metrics) UpdateSystemMetrics() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	m.MemoryUsage.Set(float64(stats.Alloc))
	m.SystemUptime.Set(time.Since(m.startedAt).Seconds())
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus HTTP 处理器，每次抓取前刷新运行时间和内存指标
func (m *Metrics) HTTPHandler() http.Handler {
	handler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.UpdateSystemMetrics()
		handler.ServeHTTP(w, r)
	})
}

// providerCallCounts 汇总大模型调用总数和失败数
func (m *Metrics) providerCallCounts() (total, failed float64) {
	families, err := m.registry.Gather()
	if err != nil {
		return 0, 0
	}
	for _, family := range families {
		if family.GetName() != "kessan_provider_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			value := metric.GetCounter().GetValue()
			total += value
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() != "success" {
					failed += value
				}
			}
		}
	}
	return total, failed
}
