package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VotingMetrics records the service's request activity and the chain oracle's
// behaviour on the vote-admission path.
type VotingMetrics struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	ballots       *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	oracleLatency *prometheus.HistogramVec
	sweeps        *prometheus.CounterVec
}

var (
	votingMetricsOnce sync.Once
	votingRegistry    *VotingMetrics
)

// Metrics returns the lazily-initialised metrics registry shared by the HTTP
// surface and the voting engine wrappers.
func Metrics() *VotingMetrics {
	votingMetricsOnce.Do(func() {
		votingRegistry = &VotingMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fipvote",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests segmented by route, method, and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "fipvote",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			ballots: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fipvote",
				Subsystem: "ledger",
				Name:      "ballots_total",
				Help:      "Ballots admitted, segmented by network and choice.",
			}, []string{"network", "choice"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fipvote",
				Subsystem: "ledger",
				Name:      "rejections_total",
				Help:      "Ballots rejected, segmented by network and reason.",
			}, []string{"network", "reason"}),
			oracleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "fipvote",
				Subsystem: "oracle",
				Name:      "call_duration_seconds",
				Help:      "Latency distribution for chain oracle calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"network", "method"}),
			sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fipvote",
				Subsystem: "ledger",
				Name:      "concluded_sweeps_total",
				Help:      "Proposals moved from the active to the concluded index.",
			}, []string{"network"}),
		}
		prometheus.MustRegister(
			votingRegistry.requests,
			votingRegistry.latency,
			votingRegistry.ballots,
			votingRegistry.rejections,
			votingRegistry.oracleLatency,
			votingRegistry.sweeps,
		)
	})
	return votingRegistry
}

// ObserveRequest records one completed HTTP request.
func (m *VotingMetrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// BallotAdmitted counts an accepted ballot.
func (m *VotingMetrics) BallotAdmitted(network, choice string) {
	if m == nil {
		return
	}
	m.ballots.WithLabelValues(network, choice).Inc()
}

// BallotRejected counts a rejected ballot with its reason label.
func (m *VotingMetrics) BallotRejected(network, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(network, reason).Inc()
}

// ObserveOracleCall records one chain oracle round trip.
func (m *VotingMetrics) ObserveOracleCall(network, method string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.oracleLatency.WithLabelValues(network, method).Observe(elapsed.Seconds())
}

// SweptConcluded counts proposals retired to the concluded index.
func (m *VotingMetrics) SweptConcluded(network string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.sweeps.WithLabelValues(network).Add(float64(count))
}
