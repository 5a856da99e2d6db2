package loadtest

import (
	"sort"
	"strconv"
	"sync"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

type TrendStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Med float64 `json:"med"`
	Max float64 `json:"max"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// RateStat follows k6 rate metrics: Passes counts true samples, so for
// http_req_failed it is the number of failed requests.
type RateStat struct {
	Rate   float64 `json:"rate"`
	Passes int64   `json:"passes"`
	Fails  int64   `json:"fails"`
}

type CounterStat struct {
	Count int64   `json:"count"`
	Rate  float64 `json:"rate"`
}

type CheckSummary struct {
	Name   string `json:"name"`
	Passes int64  `json:"passes"`
	Fails  int64  `json:"fails"`
}

type EndpointSummary struct {
	Endpoint string  `json:"endpoint"`
	Count    int64   `json:"count"`
	Errors   int64   `json:"errors"`
	P50MS    float64 `json:"p50_ms"`
	P95MS    float64 `json:"p95_ms"`
	P99MS    float64 `json:"p99_ms"`
}

// Summary is the aggregated view of a run. Durations are in milliseconds.
type Summary struct {
	ElapsedSeconds  float64           `json:"elapsed_seconds"`
	HTTPReqs        CounterStat       `json:"http_reqs"`
	HTTPReqFailed   RateStat          `json:"http_req_failed"`
	HTTPReqDuration TrendStats        `json:"http_req_duration"`
	Iterations      CounterStat       `json:"iterations"`
	Checks          RateStat          `json:"checks"`
	CheckDetails    []CheckSummary    `json:"check_details,omitempty"`
	DataReceived    int64             `json:"data_received"`
	DataSent        int64             `json:"data_sent"`
	StatusCodes     map[string]int64  `json:"status_codes,omitempty"`
	Errors          map[string]int64  `json:"errors,omitempty"`
	Endpoints       []EndpointSummary `json:"endpoints"`

	durations []float64
}

// DurationPercentile returns the percentile (p in [0,1]) of the retained request durations.
func (s *Summary) DurationPercentile(p float64) float64 {
	return percentile(s.durations, p)
}

// latencyReservoirSize bounds the samples kept per endpoint and overall.
// Percentiles are exact until a run exceeds it and uniformly sampled after.
const latencyReservoirSize = 10000

// latencyStats keeps exact count, sum, min and max plus a uniform reservoir
// of durations in nanoseconds for percentiles.
type latencyStats struct {
	count     int64
	sum       float64
	min       float64
	max       float64
	reservoir gometrics.Sample
}

func newLatencyStats() *latencyStats {
	return &latencyStats{reservoir: gometrics.NewUniformSample(latencyReservoirSize)}
}

func (l *latencyStats) add(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	if l.count == 0 || ms < l.min {
		l.min = ms
	}
	if l.count == 0 || ms > l.max {
		l.max = ms
	}
	l.count++
	l.sum += ms
	l.reservoir.Update(int64(d))
}

func (l *latencyStats) retained() int {
	return l.reservoir.Size()
}

// sortedMillis returns the retained durations in milliseconds, ascending.
func (l *latencyStats) sortedMillis() []float64 {
	values := l.reservoir.Values()
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v) / float64(time.Millisecond)
	}
	sort.Float64s(out)
	return out
}

func (l *latencyStats) trend(sorted []float64) TrendStats {
	if l.count == 0 {
		return TrendStats{}
	}
	return TrendStats{
		Avg: l.sum / float64(l.count),
		Min: l.min,
		Med: percentile(sorted, 0.50),
		Max: l.max,
		P90: percentile(sorted, 0.90),
		P95: percentile(sorted, 0.95),
		P99: percentile(sorted, 0.99),
	}
}

type endpointStats struct {
	count     int64
	errors    int64
	latencies *latencyStats
}

// Collector is the thread-safe metrics sink shared by all VUs.
type Collector struct {
	mu sync.Mutex

	endpoints   map[string]*endpointStats
	all         *latencyStats
	requests    int64
	failed      int64
	iterations  int64
	bytesIn     int64
	bytesOut    int64
	statusCodes map[string]int64
	errors      map[string]int64

	checkOrder []string
	checks     map[string]*CheckSummary
}

const maxDistinctErrors = 50

func NewCollector() *Collector {
	return &Collector{
		endpoints:   map[string]*endpointStats{},
		all:         newLatencyStats(),
		statusCodes: map[string]int64{},
		errors:      map[string]int64{},
		checks:      map[string]*CheckSummary{},
	}
}

func (c *Collector) Record(res IterationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := res.Sample
	c.iterations++
	c.requests++
	c.bytesIn += s.BytesIn
	c.bytesOut += s.BytesOut

	es := c.endpoints[s.Endpoint]
	if es == nil {
		es = &endpointStats{latencies: newLatencyStats()}
		c.endpoints[s.Endpoint] = es
	}
	es.count++
	if s.Failed() {
		es.errors++
		c.failed++
	}
	if s.Duration > 0 {
		es.latencies.add(s.Duration)
		c.all.add(s.Duration)
	}
	if s.Status > 0 {
		c.statusCodes[statusKey(s.Status)]++
	}
	if s.Err != nil {
		msg := s.Err.Error()
		if _, ok := c.errors[msg]; ok || len(c.errors) < maxDistinctErrors {
			c.errors[msg]++
		}
	}

	for _, cr := range res.Checks {
		cs := c.checks[cr.Name]
		if cs == nil {
			cs = &CheckSummary{Name: cr.Name}
			c.checks[cr.Name] = cs
			c.checkOrder = append(c.checkOrder, cr.Name)
		}
		if cr.OK {
			cs.Passes++
		} else {
			cs.Fails++
		}
	}
}

func (c *Collector) Summary(elapsed time.Duration) *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	secs := elapsed.Seconds()
	perSecond := func(n int64) float64 {
		if secs <= 0 {
			return 0
		}
		return float64(n) / secs
	}

	sorted := c.all.sortedMillis()

	s := &Summary{
		ElapsedSeconds:  secs,
		HTTPReqs:        CounterStat{Count: c.requests, Rate: perSecond(c.requests)},
		HTTPReqFailed:   RateStat{Passes: c.failed, Fails: c.requests - c.failed},
		HTTPReqDuration: c.all.trend(sorted),
		Iterations:      CounterStat{Count: c.iterations, Rate: perSecond(c.iterations)},
		DataReceived:    c.bytesIn,
		DataSent:        c.bytesOut,
		StatusCodes:     cloneCounts(c.statusCodes),
		Errors:          cloneCounts(c.errors),
		durations:       sorted,
	}
	if c.requests > 0 {
		s.HTTPReqFailed.Rate = float64(c.failed) / float64(c.requests)
	}

	var passes, fails int64
	for _, name := range c.checkOrder {
		cs := *c.checks[name]
		passes += cs.Passes
		fails += cs.Fails
		s.CheckDetails = append(s.CheckDetails, cs)
	}
	s.Checks = RateStat{Passes: passes, Fails: fails}
	if passes+fails > 0 {
		s.Checks.Rate = float64(passes) / float64(passes+fails)
	}

	s.Endpoints = make([]EndpointSummary, 0, len(c.endpoints))
	for endpoint, es := range c.endpoints {
		cp := es.latencies.sortedMillis()
		s.Endpoints = append(s.Endpoints, EndpointSummary{
			Endpoint: endpoint,
			Count:    es.count,
			Errors:   es.errors,
			P50MS:    percentile(cp, 0.50),
			P95MS:    percentile(cp, 0.95),
			P99MS:    percentile(cp, 0.99),
		})
	}
	sort.Slice(s.Endpoints, func(i, j int) bool { return s.Endpoints[i].Endpoint < s.Endpoints[j].Endpoint })
	return s
}

// percentile expects sorted input.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func statusKey(code int) string {
	return strconv.Itoa(code)
}

func cloneCounts(m map[string]int64) map[string]int64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
