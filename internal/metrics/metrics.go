package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 公文流转次数
	notaTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nota_transitions_total",
			Help: "Total number of nota dinas transitions",
		},
		[]string{"action"}, // send, return, decide
	)

	// 签名结果
	signaturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signatures_total",
			Help: "Total number of signing attempts by result",
		},
		[]string{"result"},
	)

	// 电子签名服务调用
	esignProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esign_provider_calls_total",
			Help: "Total number of calls to the e-signature provider",
		},
		[]string{"endpoint", "status"},
	)

	esignProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "esign_provider_duration_seconds",
			Help:    "E-signature provider call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// 存储完整性校验失败
	storageIntegrityFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_integrity_failures_total",
			Help: "Total number of write-then-verify hash mismatches",
		},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 公文状态分布
	notasByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notas_by_status",
			Help: "Number of nota dinas by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(notaTransitionsTotal)
	prometheus.MustRegister(signaturesTotal)
	prometheus.MustRegister(esignProviderCallsTotal)
	prometheus.MustRegister(esignProviderDuration)
	prometheus.MustRegister(storageIntegrityFailuresTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(notasByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordTransition 记录公文流转
func RecordTransition(action string) {
	notaTransitionsTotal.WithLabelValues(action).Inc()
}

// RecordSignature 记录签名结果
func RecordSignature(result string) {
	signaturesTotal.WithLabelValues(result).Inc()
}

// RecordProviderCall 记录电子签名服务调用
func RecordProviderCall(endpoint string, status int, seconds float64) {
	esignProviderCallsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	esignProviderDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordIntegrityFailure 记录存储完整性校验失败
func RecordIntegrityFailure() {
	storageIntegrityFailuresTotal.Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateNotasByStatus 更新公文状态分布指标
func UpdateNotasByStatus(status string, count float64) {
	notasByStatus.WithLabelValues(status).Set(count)
}
