package loadtest

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

type promMetrics struct {
	reqsTotal   *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
	checksTotal *prometheus.CounterVec
	iterations  *prometheus.CounterVec
	vus         *prometheus.GaugeVec
}

var metricsSingleton = sync.OnceValue(func() *promMetrics {
	return &promMetrics{
		reqsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qaload",
			Name:      "http_reqs_total",
			Help:      "Total number of HTTP requests issued by virtual users.",
		}, []string{"scenario", "status"}),
		reqDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qaload",
			Name:      "http_req_duration_seconds",
			Help:      "Latency distribution of HTTP requests issued by virtual users.",
			Buckets: []float64{
				0.005, 0.01, 0.025,
				0.05, 0.1, 0.25,
				0.5, 1, 2, 5, 10, 30,
			},
		}, []string{"scenario"}),
		checksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qaload",
			Name:      "checks_total",
			Help:      "Total number of check evaluations.",
		}, []string{"check", "result"}),
		iterations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qaload",
			Name:      "iterations_total",
			Help:      "Total number of completed default iterations.",
		}, []string{"scenario"}),
		vus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "qaload",
			Name:      "vus",
			Help:      "Currently active virtual users.",
		}, []string{"profile"}),
	}
})

func getMetrics() *promMetrics {
	return metricsSingleton()
}

func (m *promMetrics) observe(res IterationResult) {
	s := res.Sample
	m.iterations.WithLabelValues(s.Scenario).Inc()
	m.reqsTotal.WithLabelValues(s.Scenario, strconv.Itoa(s.Status)).Inc()
	if s.Duration > 0 {
		m.reqDuration.WithLabelValues(s.Scenario).Observe(s.Duration.Seconds())
	}
	for _, c := range res.Checks {
		result := "fail"
		if c.OK {
			result = "pass"
		}
		m.checksTotal.WithLabelValues(c.Name, result).Inc()
	}
}

// PushMetrics sends the default registry to a Pushgateway, grouped by run id.
func PushMetrics(gatewayURL, runID string) error {
	return push.New(gatewayURL, "qaload").
		Gatherer(prometheus.DefaultGatherer).
		Grouping("run_id", runID).
		Push()
}
