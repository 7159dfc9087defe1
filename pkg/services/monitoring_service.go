package services

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// maxLogEntries bounds the in-memory request log used by the dashboard.
const maxLogEntries = 10000

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time
	Path         string
	Method       string
	StatusCode   int
	ResponseTime time.Duration
}

// MonitoringService はAPIのモニタリング機能を提供します。
// リクエストログはダッシュボード用にメモリへ、メトリクスはPrometheusへ記録します。
type MonitoringService struct {
	logs []LogEntry
	mu   sync.RWMutex
	log  zerolog.Logger

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	trainingRuns     *prometheus.CounterVec
	trainingDuration prometheus.Histogram
	forecasts        *prometheus.CounterVec
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
// メトリクスは reg に登録されます（テストでは prometheus.NewRegistry() を渡す）。
func NewMonitoringService(reg prometheus.Registerer, log zerolog.Logger) *MonitoringService {
	factory := promauto.With(reg)
	return &MonitoringService{
		logs: make([]LogEntry, 0),
		log:  log,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "market_pulse_http_requests_total",
			Help: "Total HTTP requests by route, method and status code.",
		}, []string{"path", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "market_pulse_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		trainingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "market_pulse_training_runs_total",
			Help: "Model training runs by result.",
		}, []string{"result"}),
		trainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "market_pulse_training_duration_seconds",
			Help:    "Wall time of a full three-model training run.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		forecasts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "market_pulse_forecasts_total",
			Help: "Forecasts served by source (model, fallback, on-the-fly).",
		}, []string{"source"}),
	}
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogEntries {
		s.logs = append([]LogEntry(nil), s.logs[len(s.logs)-maxLogEntries:]...)
	}
}

// RecordTraining は学習結果をメトリクスに記録します。nilレシーバでも安全です。
func (s *MonitoringService) RecordTraining(result string, d time.Duration) {
	if s == nil {
		return
	}
	s.trainingRuns.WithLabelValues(result).Inc()
	if result == "success" {
		s.trainingDuration.Observe(d.Seconds())
	}
}

// RecordForecast は予測の出所をメトリクスに記録します。nilレシーバでも安全です。
func (s *MonitoringService) RecordForecast(source string) {
	if s == nil {
		return
	}
	s.forecasts.WithLabelValues(source).Inc()
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// 次のミドルウェア/ハンドラを実行
		c.Next()

		path := c.Request.URL.Path
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		latency := time.Since(start)
		status := c.Writer.Status()

		s.httpRequests.WithLabelValues(route, c.Request.Method, statusLabel(status)).Inc()
		s.httpDuration.WithLabelValues(route, c.Request.Method).Observe(latency.Seconds())

		event := s.log.Info()
		if status >= 500 {
			event = s.log.Error()
		} else if status >= 400 {
			event = s.log.Warn()
		}
		event.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Int64("duration_ms", latency.Milliseconds()).
			Msg("リクエスト処理")

		// 除外するパスプレフィックス
		if strings.HasPrefix(path, "/api/v1/admin") || strings.HasPrefix(path, "/api/v1/monitoring") || path == "/metrics" {
			return
		}

		// リクエスト情報を記録
		s.LogRequest(LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   status,
			ResponseTime: latency,
		})
	}
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// TimeBucket は1時間あたりのリクエスト数です。
type TimeBucket struct {
	Time     string `json:"time"`
	Requests int    `json:"requests"`
}

// NamedCount はステータスクラスごとの件数です。
type NamedCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// EndpointLatency はエンドポイントごとの平均応答時間（ミリ秒）です。
type EndpointLatency struct {
	Endpoint     string `json:"endpoint"`
	ResponseTime int64  `json:"responseTime"`
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	RequestsOverTime []TimeBucket      `json:"requestsOverTime"`
	Endpoints        map[string]int    `json:"endpoints"`
	StatusCodes      []NamedCount      `json:"statusCodes"`
	AvgResponseTimes []EndpointLatency `json:"avgResponseTimes"`
	RecentErrors     []LogEntry        `json:"recentErrors"`
	TotalRequests    int               `json:"totalRequests"`
	ErrorRate        float64           `json:"errorRate"`
}

// GetDashboardData は指定された期間のログを集計してダッシュボード用データを返します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if periodHours < 1 {
		periodHours = 1
	}
	jst, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		jst = time.UTC
	}
	now := time.Now().In(jst)
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	// 過去から現在へ向かう順序で時間バケットを用意する
	buckets := make([]TimeBucket, periodHours)
	bucketIndex := make(map[int64]int, periodHours)
	for i := 0; i < periodHours; i++ {
		t := now.Add(-time.Duration(periodHours-1-i) * time.Hour).Truncate(time.Hour)
		buckets[i] = TimeBucket{Time: t.Format("15:00")}
		bucketIndex[t.Unix()] = i
	}

	endpoints := make(map[string]int)
	classes := map[string]int{"2xx Success": 0, "4xx Client Error": 0, "5xx Server Error": 0}
	latencySum := make(map[string]time.Duration)
	recentErrors := make([]LogEntry, 0)
	total, failed := 0, 0

	for i := len(s.logs) - 1; i >= 0; i-- {
		entry := s.logs[i]
		if !entry.Timestamp.After(since) {
			continue
		}
		total++
		if idx, ok := bucketIndex[entry.Timestamp.In(jst).Truncate(time.Hour).Unix()]; ok {
			buckets[idx].Requests++
		}
		endpoints[entry.Path]++
		latencySum[entry.Path] += entry.ResponseTime

		switch {
		case entry.StatusCode >= 500:
			classes["5xx Server Error"]++
			failed++
			if len(recentErrors) < 10 {
				recentErrors = append(recentErrors, entry)
			}
		case entry.StatusCode >= 400:
			classes["4xx Client Error"]++
		case entry.StatusCode >= 200:
			classes["2xx Success"]++
		}
	}

	statusCodes := make([]NamedCount, 0, len(classes))
	for _, name := range []string{"2xx Success", "4xx Client Error", "5xx Server Error"} {
		statusCodes = append(statusCodes, NamedCount{Name: name, Value: classes[name]})
	}
	latencies := make([]EndpointLatency, 0, len(latencySum))
	for path, sum := range latencySum {
		latencies = append(latencies, EndpointLatency{Endpoint: path, ResponseTime: sum.Milliseconds() / int64(endpoints[path])})
	}

	data := DashboardData{
		RequestsOverTime: buckets,
		Endpoints:        endpoints,
		StatusCodes:      statusCodes,
		AvgResponseTimes: latencies,
		RecentErrors:     recentErrors,
		TotalRequests:    total,
	}
	if total > 0 {
		data.ErrorRate = roundTo(float64(failed)/float64(total), 4)
	}
	return data
}
