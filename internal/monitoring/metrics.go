package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 摄取管线指标
	PollCycles         prometheus.Counter
	PollErrors         prometheus.Counter
	MessagesDispatched prometheus.Counter
	WebhooksDelivered  prometheus.Counter
	WebhookFailures    prometheus.Counter

	// 发送路径指标
	MailsSent      prometheus.Counter
	QuotaRejected  prometheus.Counter
	SendFailures   prometheus.Counter

	// 代理指标
	AgentsRegistered prometheus.Counter
	AgentsActive     prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标（独立 registry，避免测试间指标名冲突）。
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		PollCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentmail_poll_cycles_total",
			Help: "Total number of completed ingestion poll cycles",
		}),
		PollErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentmail_poll_errors_total",
			Help: "Total number of failed shared mailbox fetches",
		}),
		MessagesDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentmail_messages_dispatched_total",
			Help: "Total number of new messages handed to the dispatcher",
		}),
		WebhooksDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentmail_webhooks_delivered_total",
			Help: "Total number of successful webhook deliveries",
		}),
		WebhookFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentmail_webhook_failures_total",
			Help: "Total number of failed webhook deliveries",
		}),

		MailsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentmail_mails_sent_total",
			Help: "Total number of outbound mails sent",
		}),
		QuotaRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentmail_quota_rejected_total",
			Help: "Total number of sends rejected by the daily quota",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentmail_send_failures_total",
			Help: "Total number of outbound send transport failures",
		}),

		AgentsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentmail_agents_registered_total",
			Help: "Total number of registered agents",
		}),
		AgentsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agentmail_agents_active",
			Help: "Current number of agents with a delivery target",
		}),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmail_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type", "component"},
		),
		PanicsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentmail_panics_total",
			Help: "Total number of recovered panics",
		}),
	}
}

// RecordHTTPRequest 记录一次 HTTP 请求的指标。
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordError 记录一次分类错误。
func (m *Metrics) RecordError(errType, component string) {
	m.ErrorsTotal.WithLabelValues(errType, component).Inc()
}

// RecordPanic 记录一次 panic 恢复。
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus 指标端点处理器。
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
