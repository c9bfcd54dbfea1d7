// Package metrics exposes the bridge's Prometheus collectors. A nil
// *Provider is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Provider struct {
	registry      *prometheus.Registry
	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	modelRounds   *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
}

func New(registry *prometheus.Registry) *Provider {
	if registry == nil {
		return nil
	}

	p := &Provider{
		registry: registry,
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashbridge_queries_total",
				Help: "Total number of chat queries by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashbridge_query_duration_seconds",
				Help:    "Time to answer a chat query",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"mode"},
		),
		modelRounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashbridge_model_rounds_total",
				Help: "Total number of model calls by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashbridge_tool_calls_total",
				Help: "Total number of tool invocations by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashbridge_tool_call_duration_seconds",
				Help:    "Tool invocation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
	}

	registry.MustRegister(
		p.queries,
		p.queryDuration,
		p.modelRounds,
		p.toolCalls,
		p.toolDuration,
	)
	return p
}

// Registry returns the registry the collectors live in.
func (p *Provider) Registry() *prometheus.Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

// TrackSessions exports the number of open conversation sessions.
func (p *Provider) TrackSessions(count func() int) {
	if p == nil {
		return
	}
	p.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "dashbridge_active_sessions",
			Help: "Number of open conversation sessions",
		},
		func() float64 { return float64(count()) },
	))
}

func (p *Provider) Query(mode string, err error, elapsed time.Duration) {
	if p != nil && p.queries != nil {
		p.queries.WithLabelValues(mode, outcome(err != nil)).Inc()
		p.queryDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	}
}

func (p *Provider) ModelRound(model string, err error) {
	if p != nil && p.modelRounds != nil {
		p.modelRounds.WithLabelValues(model, outcome(err != nil)).Inc()
	}
}

func (p *Provider) ToolCall(tool string, failed bool, elapsed time.Duration) {
	if p != nil && p.toolCalls != nil {
		p.toolCalls.WithLabelValues(tool, outcome(failed)).Inc()
		p.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
	}
}

func outcome(failed bool) string {
	if failed {
		return "error"
	}
	return "success"
}
