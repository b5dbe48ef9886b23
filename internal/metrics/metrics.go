package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"wavegraph/pkg/graph"
)

const namespace = "wavegraph"

// Observer is a graph.Observer that records run events as Prometheus
// metrics. Every series carries a constant graph label.
type Observer struct {
	runs         *prometheus.CounterVec
	waves        prometheus.Counter
	waveWidth    prometheus.Histogram
	nodeRuns     *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	routes       *prometheus.CounterVec
	ends         prometheus.Counter
}

// New creates the collectors for graphName and registers them with reg.
func New(reg prometheus.Registerer, graphName string) (*Observer, error) {
	labels := prometheus.Labels{"graph": graphName}
	o := &Observer{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_total",
			Help:        "Finished runs by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		waves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "waves_total",
			Help:        "Waves started.",
			ConstLabels: labels,
		}),
		waveWidth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "wave_width",
			Help:        "Number of nodes scheduled per wave.",
			ConstLabels: labels,
			Buckets:     []float64{1, 2, 4, 8, 16, 32},
		}),
		nodeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "node_runs_total",
			Help:        "Node handler executions by status.",
			ConstLabels: labels,
		}, []string{"node", "status"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "node_duration_seconds",
			Help:        "Node handler latency.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"node"}),
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "routes_total",
			Help:        "Conditional routes taken by node and label.",
			ConstLabels: labels,
		}, []string{"node", "label"}),
		ends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "end_reached_total",
			Help:        "Branches that reached END.",
			ConstLabels: labels,
		}),
	}
	for _, c := range []prometheus.Collector{o.runs, o.waves, o.waveWidth, o.nodeRuns, o.nodeDuration, o.routes, o.ends} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return o, nil
}

// OnEvent implements graph.Observer.
func (o *Observer) OnEvent(e graph.Event) {
	switch e.Type {
	case graph.EventWaveStart:
		o.waves.Inc()
		o.waveWidth.Observe(float64(len(e.Nodes)))
	case graph.EventNodeExit:
		status := "ok"
		if e.Error != nil {
			status = "error"
		}
		o.nodeRuns.WithLabelValues(e.Node, status).Inc()
		o.nodeDuration.WithLabelValues(e.Node).Observe(e.Elapsed.Seconds())
	case graph.EventRoute:
		o.routes.WithLabelValues(e.Node, string(e.Label)).Inc()
	case graph.EventEndReached:
		o.ends.Inc()
	case graph.EventRunComplete:
		o.runs.WithLabelValues("complete").Inc()
	case graph.EventRunError:
		o.runs.WithLabelValues("error").Inc()
	}
}

// WriteText writes every metric family gathered from g in the Prometheus
// text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
