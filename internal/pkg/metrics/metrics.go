package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 論理トランザクションの開始数（kind: new, joined, requires_new）
	TransactionsBegunTotal *prometheus.CounterVec

	// 物理トランザクションの完了数（outcome: committed, rolled_back, unexpected_rollback, commit_failed）
	TransactionsCompletedTotal *prometheus.CounterVec

	// 物理トランザクションの所要時間（outcome）
	TransactionDuration *prometheus.HistogramVec

	// 実行中の物理トランザクション数
	ActiveTransactions prometheus.Gauge

	// 参加者による rollback-only マーク数
	RollbackOnlyMarksTotal prometheus.Counter

	// 会員登録の結果（result: success, partial, failed, unexpected_rollback）
	MemberJoinsTotal *prometheus.CounterVec

	// 注文の結果（status: completed, pending, failed）
	OrdersTotal *prometheus.CounterVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		TransactionsBegunTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_begun_total",
				Help: "Total number of logical transactions begun by propagation kind",
			},
			[]string{"kind"},
		),
		TransactionsCompletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_completed_total",
				Help: "Total number of physical transactions completed by outcome",
			},
			[]string{"outcome"},
		),
		TransactionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transaction_duration_seconds",
				Help:    "Physical transaction lifetime in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"outcome"},
		),
		ActiveTransactions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_transactions",
				Help: "Current number of open physical transactions",
			},
		),
		RollbackOnlyMarksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "transaction_rollback_only_marks_total",
				Help: "Total number of times a participant marked a shared transaction rollback-only",
			},
		),
		MemberJoinsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "member_joins_total",
				Help: "Total number of member join attempts by result",
			},
			[]string{"result"},
		),
		OrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_total",
				Help: "Total number of order attempts by resulting status",
			},
			[]string{"status"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TransactionsBegunTotal,
		m.TransactionsCompletedTotal,
		m.TransactionDuration,
		m.ActiveTransactions,
		m.RollbackOnlyMarksTotal,
		m.MemberJoinsTotal,
		m.OrdersTotal,
	)

	return m
}

// TransactionBegun は論理トランザクションの開始を記録する
// 参加（joined）は物理トランザクションを増やさない
func (m *Metrics) TransactionBegun(kind string) {
	m.TransactionsBegunTotal.WithLabelValues(kind).Inc()
	if kind != "joined" {
		m.ActiveTransactions.Inc()
	}
}

// TransactionCompleted は物理トランザクションの完了を記録する
func (m *Metrics) TransactionCompleted(outcome string, elapsed time.Duration) {
	m.TransactionsCompletedTotal.WithLabelValues(outcome).Inc()
	m.TransactionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	m.ActiveTransactions.Dec()
}

// RollbackOnlyMarked は rollback-only マークを記録する
func (m *Metrics) RollbackOnlyMarked() {
	m.RollbackOnlyMarksTotal.Inc()
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
