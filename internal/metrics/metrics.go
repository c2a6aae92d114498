// Package metrics exposes the engine's counters as Prometheus
// collectors, additive to (never a replacement for) the text-protocol
// stats/stats-tube/stats-job verbs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds every gauge/counter HiveQ exports.
type Collector struct {
	cmdTotal        *prometheus.CounterVec
	jobsByState     *prometheus.GaugeVec
	sessionsByState *prometheus.GaugeVec
	tubesPaused     prometheus.Gauge
	tubesTotal      prometheus.Gauge
	jobTimeouts     prometheus.Counter
	jobsTotal       prometheus.Counter
}

// New builds a Collector and registers it with reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests) or
// prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cmdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hiveq_cmd_total",
			Help: "Number of times each beanstalkd verb has been dispatched.",
		}, []string{"command"}),
		jobsByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hiveq_jobs",
			Help: "Current job count by lifecycle state.",
		}, []string{"state"}),
		sessionsByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hiveq_sessions",
			Help: "Current session count by state.",
		}, []string{"state"}),
		tubesPaused: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hiveq_tubes_paused",
			Help: "Number of tubes currently paused.",
		}),
		tubesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hiveq_tubes_total",
			Help: "Number of tubes that exist.",
		}),
		jobTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hiveq_job_timeouts_total",
			Help: "Total reservations that expired via TTR.",
		}),
		jobsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hiveq_jobs_created_total",
			Help: "Total jobs ever put.",
		}),
	}
	reg.MustRegister(c.cmdTotal, c.jobsByState, c.sessionsByState, c.tubesPaused, c.tubesTotal, c.jobTimeouts, c.jobsTotal)
	return c
}

// ObserveCommand records one dispatch of the named verb.
func (c *Collector) ObserveCommand(name string) {
	c.cmdTotal.WithLabelValues(name).Inc()
}

// ObservePut records a newly created job.
func (c *Collector) ObservePut(tube string) {
	c.jobsTotal.Inc()
}

// ObserveTimeout records one TTR expiry.
func (c *Collector) ObserveTimeout() {
	c.jobTimeouts.Inc()
}

// SetJobsByState replaces the current state gauges wholesale; called once
// per periodic sweep with a freshly computed snapshot.
func (c *Collector) SetJobsByState(counts map[string]int) {
	for state, n := range counts {
		c.jobsByState.WithLabelValues(state).Set(float64(n))
	}
}

// SetSessionsByState replaces the current session-state gauges.
func (c *Collector) SetSessionsByState(counts map[string]int) {
	for state, n := range counts {
		c.sessionsByState.WithLabelValues(state).Set(float64(n))
	}
}

// SetTubeCounts updates the tube-level gauges.
func (c *Collector) SetTubeCounts(total, paused int) {
	c.tubesTotal.Set(float64(total))
	c.tubesPaused.Set(float64(paused))
}
