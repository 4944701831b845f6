package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 包级指标句柄，InitMetrics 调用后可用。
var (
	LoginTotal                 *prometheus.CounterVec
	SignupTotal                *prometheus.CounterVec
	PasswordResetRequestTotal  *prometheus.CounterVec
	PasswordResetConsumedTotal *prometheus.CounterVec
	EmailSendTotal             *prometheus.CounterVec
	RateLimitRejectedTotal     prometheus.Counter
	RateLimitWaitDuration      prometheus.Histogram
	HashPoolWorkers            prometheus.Gauge
	HashPoolDepth              prometheus.Gauge
)

var initOnce sync.Once

// InitMetrics 注册所有 Prometheus 指标。
//
// 幂等：测试里可以重复调用。
//
// 参数:
//   - hashWorkers: 密码哈希 worker 池大小（作为 gauge 暴露）
func InitMetrics(hashWorkers int) {
	initOnce.Do(func() {
		LoginTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourhive_login_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"})

		SignupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourhive_signup_total",
			Help: "Signup attempts by outcome.",
		}, []string{"outcome"})

		PasswordResetRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourhive_password_reset_request_total",
			Help: "Password reset requests by outcome.",
		}, []string{"outcome"})

		PasswordResetConsumedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourhive_password_reset_consumed_total",
			Help: "Password reset consumptions by outcome.",
		}, []string{"outcome"})

		EmailSendTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourhive_email_send_total",
			Help: "Outbound emails by outcome.",
		}, []string{"outcome"})

		RateLimitRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourhive_ratelimit_rejected_total",
			Help: "Requests rejected by the rate limiter.",
		})

		RateLimitWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tourhive_ratelimit_check_duration_seconds",
			Help:    "Latency of rate limit checks.",
			Buckets: prometheus.DefBuckets,
		})

		HashPoolWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tourhive_hash_pool_workers",
			Help: "Configured password hashing worker count.",
		})

		HashPoolDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tourhive_hash_pool_depth",
			Help: "Pending jobs in the password hashing queue.",
		})

		prometheus.MustRegister(
			LoginTotal,
			SignupTotal,
			PasswordResetRequestTotal,
			PasswordResetConsumedTotal,
			EmailSendTotal,
			RateLimitRejectedTotal,
			RateLimitWaitDuration,
			HashPoolWorkers,
			HashPoolDepth,
		)
	})

	if HashPoolWorkers != nil {
		HashPoolWorkers.Set(float64(hashWorkers))
	}
}
