package services

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const (
	MONITORING_SVC          = "monitoring_svc"
	SERVICE_NAME            = "progress_api"
	DEFAULT_PROMETHEUS_PORT = 2112
)

// HTTP Metrics
var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	httpRequestsSuccessfulTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_successful_total",
			Help: "Total successful HTTP requests (2xx status codes)",
		},
		[]string{"endpoint", "method"},
	)

	httpRequestsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_failed_total",
			Help: "Total failed HTTP requests (4xx, 5xx status codes)",
		},
		[]string{"endpoint", "method"},
	)

	httpRequestsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_active",
			Help: "Number of active concurrent HTTP requests",
		},
		[]string{"endpoint", "method"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "method", "status"},
	)

	httpResponseSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response payload size in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
		},
		[]string{"endpoint", "method"},
	)
)

// Progress Metrics
var (
	lessonCompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lesson_completions_total",
			Help: "Lesson completions recorded, by kind",
		},
		[]string{"result"},
	)

	xpAwardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xp_awarded_total",
			Help: "Total XP credited to learners",
		},
	)

	cacheWarmTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_warm_total",
			Help: "Progress cache warms, by snapshot source",
		},
		[]string{"source"},
	)

	cacheFallbackReadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_fallback_reads_total",
			Help: "Progress reads served from the durable snapshot because the cache was unavailable",
		},
	)

	structureLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "structure_loads_total",
			Help: "Structure resolutions, by outcome",
		},
		[]string{"result"},
	)

	structurePublishesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "structure_publishes_total",
			Help: "Structure revisions published",
		},
	)

	walletCreditFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_credit_failures_total",
			Help: "XP credits that could not reach the wallet",
		},
	)

	auditEventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Audit events dropped because the buffer was full",
		},
	)
)

// Sync Metrics
var (
	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Snapshot sync runs, by outcome",
		},
		[]string{"outcome"},
	)

	syncEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_entries_total",
			Help: "Dirty entries processed by the snapshot syncer, by result",
		},
		[]string{"result"},
	)

	syncBatchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_batch_duration_seconds",
			Help:    "Snapshot sync batch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	syncDirtyBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_dirty_backlog",
			Help: "Entries waiting in the dirty set",
		},
	)
)

// System Metrics
var (
	heapAllocBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "heap_alloc_bytes",
			Help: "Heap memory allocated in bytes",
		},
	)

	heapSysBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "heap_sys_bytes",
			Help: "Heap memory obtained from system in bytes",
		},
	)

	gcTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gc_total",
			Help: "Total number of garbage collections",
		},
	)

	memoryUsageBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_usage_bytes",
			Help: "Current memory usage in bytes",
		},
	)

	memoryUsagePercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_usage_percent",
			Help: "Memory usage percentage",
		},
	)
)

type MonitoringService struct {
	appContext.DefaultService

	port     int
	register *prometheus.Registry

	closed      chan struct{}
	server      *fiber.App
	lastGCCount uint32
}

func (svc MonitoringService) Id() string {
	return MONITORING_SVC
}

func (svc *MonitoringService) Configure(ctx *appContext.Context) error {
	svc.port = DEFAULT_PROMETHEUS_PORT
	if portStr := os.Getenv("PROMETHEUS_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			svc.port = port
		}
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *MonitoringService) Start() error {
	svc.closed = make(chan struct{}, 1)

	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reg.MustRegister(
		httpRequestsTotal,
		httpRequestsSuccessfulTotal,
		httpRequestsFailedTotal,
		httpRequestsActive,
		httpRequestDurationSeconds,
		httpResponseSizeBytes,
		lessonCompletionsTotal,
		xpAwardedTotal,
		cacheWarmTotal,
		cacheFallbackReadsTotal,
		structureLoadsTotal,
		structurePublishesTotal,
		walletCreditFailuresTotal,
		auditEventsDroppedTotal,
		syncRunsTotal,
		syncEntriesTotal,
		syncBatchDurationSeconds,
		syncDirtyBacklog,
		heapAllocBytes,
		heapSysBytes,
		gcTotal,
		memoryUsageBytes,
		memoryUsagePercent,
	)

	svc.register = reg

	go svc.updateMemoryMetrics()

	config := fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
		},
	}

	svc.server = fiber.New(config)
	svc.server.Use(recover.New())

	svc.server.Get("/metrics", svc.metricsHandler)
	svc.server.Get("/health", svc.healthHandler)

	// The API server owns the main goroutine; metrics listen on the side.
	go func() {
		log.Printf("Prometheus metrics server listening on :%v", svc.port)
		if err := svc.server.Listen(fmt.Sprintf(":%v", svc.port)); err != nil {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()

	return nil
}

func (svc *MonitoringService) Shutdown() {
	svc.closed <- struct{}{}
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

func (svc *MonitoringService) metricsHandler(c *fiber.Ctx) error {
	handler := promhttp.HandlerFor(svc.register, promhttp.HandlerOpts{})
	return adaptor.HTTPHandler(handler)(c)
}

func (svc *MonitoringService) healthHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    "healthy",
		"service":   SERVICE_NAME,
		"timestamp": time.Now().Unix(),
	})
}

// updateMemoryMetrics updates memory-related metrics every 15 seconds
func (svc *MonitoringService) updateMemoryMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			heapAllocBytes.Set(float64(m.Alloc))
			heapSysBytes.Set(float64(m.Sys))

			if m.NumGC > svc.lastGCCount {
				gcTotal.Add(float64(m.NumGC - svc.lastGCCount))
				svc.lastGCCount = m.NumGC
			}

			memoryUsageBytes.Set(float64(m.Alloc))

			memPercent := float64(m.Alloc) / float64(m.Sys) * 100
			if memPercent > 100 {
				memPercent = 100
			}
			memoryUsagePercent.Set(memPercent)

		case <-svc.closed:
			return
		}
	}
}

// RecordRequest records HTTP request metrics
func (svc *MonitoringService) RecordRequest(method, endpoint, status string, duration time.Duration, responseSize int) {
	httpRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	httpRequestDurationSeconds.WithLabelValues(endpoint, method, status).Observe(duration.Seconds())
	httpResponseSizeBytes.WithLabelValues(endpoint, method).Observe(float64(responseSize))

	statusCode, _ := strconv.Atoi(status)
	if statusCode >= 200 && statusCode < 400 {
		httpRequestsSuccessfulTotal.WithLabelValues(endpoint, method).Inc()
	} else if statusCode >= 400 {
		httpRequestsFailedTotal.WithLabelValues(endpoint, method).Inc()
	}
}

// IncrementActiveRequests increments the active requests gauge
func (svc *MonitoringService) IncrementActiveRequests(endpoint, method string) {
	httpRequestsActive.WithLabelValues(endpoint, method).Inc()
}

// DecrementActiveRequests decrements the active requests gauge
func (svc *MonitoringService) DecrementActiveRequests(endpoint, method string) {
	httpRequestsActive.WithLabelValues(endpoint, method).Dec()
}

// RecordCompletion counts a completion write; result is one of
// first, replay or repeat.
func (svc *MonitoringService) RecordCompletion(result string) {
	lessonCompletionsTotal.WithLabelValues(result).Inc()
}

func (svc *MonitoringService) RecordXPAwarded(xp int) {
	if xp > 0 {
		xpAwardedTotal.Add(float64(xp))
	}
}

// RecordCacheWarm counts a cache warm; source is durable or empty.
func (svc *MonitoringService) RecordCacheWarm(source string) {
	cacheWarmTotal.WithLabelValues(source).Inc()
}

func (svc *MonitoringService) RecordCacheFallbackRead() {
	cacheFallbackReadsTotal.Inc()
}

func (svc *MonitoringService) RecordStructureLoad(result string) {
	structureLoadsTotal.WithLabelValues(result).Inc()
}

func (svc *MonitoringService) RecordStructurePublish() {
	structurePublishesTotal.Inc()
}

func (svc *MonitoringService) RecordWalletCreditFailure() {
	walletCreditFailuresTotal.Inc()
}

func (svc *MonitoringService) RecordAuditDropped() {
	auditEventsDroppedTotal.Inc()
}

func (svc *MonitoringService) RecordSyncRun(outcome string) {
	syncRunsTotal.WithLabelValues(outcome).Inc()
}

func (svc *MonitoringService) RecordSyncEntries(result string, n int) {
	if n > 0 {
		syncEntriesTotal.WithLabelValues(result).Add(float64(n))
	}
}

func (svc *MonitoringService) ObserveSyncBatch(duration time.Duration) {
	syncBatchDurationSeconds.Observe(duration.Seconds())
}

func (svc *MonitoringService) SetDirtyBacklog(n int64) {
	syncDirtyBacklog.Set(float64(n))
}

// MonitoringMiddleware creates a Fiber middleware for monitoring HTTP requests
func MonitoringMiddleware(monitoringSvc *MonitoringService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}

		start := time.Now()
		endpoint := c.Route().Path // Get route pattern, not actual path
		method := c.Method()

		monitoringSvc.IncrementActiveRequests(endpoint, method)
		defer monitoringSvc.DecrementActiveRequests(endpoint, method)

		err := c.Next()

		duration := time.Since(start)
		status := strconv.Itoa(c.Response().StatusCode())
		responseSize := len(c.Response().Body())

		monitoringSvc.RecordRequest(method, endpoint, status, duration, responseSize)

		return err
	}
}
