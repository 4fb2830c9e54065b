package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "predator"

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	invocationsTotal   *prometheus.CounterVec
	remoteCallsTotal   *prometheus.CounterVec
	remoteCallDuration *prometheus.HistogramVec
	compactionsTotal   *prometheus.CounterVec
	runsTotal          *prometheus.CounterVec
}

// NewPrometheusRecorder creates the collectors and registers them on reg
// (prometheus.DefaultRegisterer when nil). Collectors that are already
// registered with an identical description are reused, so multiple recorders
// may share one registry.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &PrometheusRecorder{
		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of finished invocations by kind and terminal status.",
			},
			[]string{"kind", "status"},
		),
		remoteCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_calls_total",
				Help:      "Total number of remote agent calls by agent and outcome.",
			},
			[]string{"agent", "outcome"},
		),
		remoteCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_call_duration_seconds",
				Help:      "Duration of remote agent calls including retries.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"agent"},
		),
		compactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compactions_total",
				Help:      "Total number of compaction attempts by outcome.",
			},
			[]string{"outcome"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of runs by outcome.",
			},
			[]string{"outcome"},
		),
	}

	var err error
	if p.invocationsTotal, err = registerCounter(reg, p.invocationsTotal); err != nil {
		return nil, err
	}
	if p.remoteCallsTotal, err = registerCounter(reg, p.remoteCallsTotal); err != nil {
		return nil, err
	}
	if p.compactionsTotal, err = registerCounter(reg, p.compactionsTotal); err != nil {
		return nil, err
	}
	if p.runsTotal, err = registerCounter(reg, p.runsTotal); err != nil {
		return nil, err
	}
	if err := reg.Register(p.remoteCallDuration); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		p.remoteCallDuration = already.ExistingCollector.(*prometheus.HistogramVec)
	}

	return p, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

// InvocationFinished records the terminal status of one invocation.
func (p *PrometheusRecorder) InvocationFinished(kind, status string) {
	p.invocationsTotal.WithLabelValues(kind, status).Inc()
}

// RemoteCall records one remote agent call.
func (p *PrometheusRecorder) RemoteCall(agent, outcome string, duration time.Duration) {
	p.remoteCallsTotal.WithLabelValues(agent, outcome).Inc()
	p.remoteCallDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// Compaction records the outcome of a compaction attempt.
func (p *PrometheusRecorder) Compaction(outcome string) {
	p.compactionsTotal.WithLabelValues(outcome).Inc()
}

// RunFinished records how a run ended.
func (p *PrometheusRecorder) RunFinished(outcome string) {
	p.runsTotal.WithLabelValues(outcome).Inc()
}
