package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry 应用自己的 collector 集合，不使用全局默认注册表
	Registry = prometheus.NewRegistry()

	previewSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront_builder",
			Subsystem: "preview",
			Name:      "messages_sent_total",
			Help:      "Messages delivered to preview surfaces.",
		},
		[]string{"type"},
	)

	previewDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront_builder",
			Subsystem: "preview",
			Name:      "messages_dropped_total",
			Help:      "Messages not delivered to a preview surface.",
		},
		[]string{"type", "reason"},
	)

	previewReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront_builder",
			Subsystem: "preview",
			Name:      "ready_surfaces",
			Help:      "Preview surfaces that have sent PREVIEW_READY.",
		},
	)

	previewSockets = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "storefront_builder",
			Subsystem: "preview",
			Name:      "sockets_open",
			Help:      "Open preview websocket connections by mode.",
		},
		[]string{"mode"},
	)

	sessionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront_builder",
			Subsystem: "editor",
			Name:      "sessions_open",
			Help:      "Builder sessions currently held in memory.",
		},
	)

	persistenceOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront_builder",
			Subsystem: "persistence",
			Name:      "operations_total",
			Help:      "Persistence gateway calls by operation and outcome.",
		},
		[]string{"op", "success"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront_builder",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront_builder",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms ~ 5s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		previewSent,
		previewDropped,
		previewReady,
		previewSockets,
		sessionsOpen,
		persistenceOps,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware 记录每个请求的状态码和耗时，path 使用路由模板
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func PreviewSent(msgType string) {
	previewSent.WithLabelValues(msgType).Inc()
}

func PreviewDropped(msgType, reason string) {
	previewDropped.WithLabelValues(msgType, reason).Inc()
}

// PreviewReadyDelta 调整就绪预览端数量
func PreviewReadyDelta(delta int) {
	if delta != 0 {
		previewReady.Add(float64(delta))
	}
}

// SocketOpened / SocketClosed 预览端 websocket 连接数（edit / live）
func SocketOpened(mode string) { previewSockets.WithLabelValues(mode).Inc() }

func SocketClosed(mode string) { previewSockets.WithLabelValues(mode).Dec() }

func SessionOpened() { sessionsOpen.Inc() }

func SessionClosed() { sessionsOpen.Dec() }

// RecordPersistence 记录一次网关调用
func RecordPersistence(op string, err error) {
	persistenceOps.WithLabelValues(op, strconv.FormatBool(err == nil)).Inc()
}
