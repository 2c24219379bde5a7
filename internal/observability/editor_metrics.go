package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EditorCollector exposes diagram editor metrics: graph size, controller
// action outcomes and layout simulation steps.
type EditorCollector struct {
	gatherer prometheus.Gatherer

	Views            prometheus.Gauge
	Nodes            prometheus.Gauge
	Links            prometheus.Gauge
	Actions          *prometheus.CounterVec
	PolicyViolations prometheus.Counter
	LayoutTicks      prometheus.Counter
	TickDuration     prometheus.Histogram
	LayoutAlpha      prometheus.Gauge
}

// NewEditorCollector registers editor metrics against the provided registerer.
func NewEditorCollector(reg prometheus.Registerer) (*EditorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	views, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "editor_views",
		Help: "Current number of views in the working graph.",
	}), "editor_views")
	if err != nil {
		return nil, err
	}
	nodes, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "editor_nodes",
		Help: "Current number of nodes across all views.",
	}), "editor_nodes")
	if err != nil {
		return nil, err
	}
	links, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "editor_links",
		Help: "Current number of links across all views.",
	}), "editor_links")
	if err != nil {
		return nil, err
	}

	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_actions_total",
		Help: "Editor actions handled, labeled by action and outcome.",
	}, []string{"action", "outcome"})
	actions, err = register(reg, actions, "editor_actions_total")
	if err != nil {
		return nil, err
	}

	violations, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "editor_policy_violations_total",
		Help: "Actions refused because they would break a graph rule.",
	}), "editor_policy_violations_total")
	if err != nil {
		return nil, err
	}

	ticks, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "layout_ticks_total",
		Help: "Layout simulation steps taken.",
	}), "layout_ticks_total")
	if err != nil {
		return nil, err
	}

	tickHistogram, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "layout_tick_duration_seconds",
		Help:    "Duration of one layout simulation step.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}), "layout_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	alpha, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "layout_alpha",
		Help: "Energy of the layout simulation after the latest step.",
	}), "layout_alpha")
	if err != nil {
		return nil, err
	}

	return &EditorCollector{
		gatherer:         gatherer,
		Views:            views,
		Nodes:            nodes,
		Links:            links,
		Actions:          actions,
		PolicyViolations: violations,
		LayoutTicks:      ticks,
		TickDuration:     tickHistogram,
		LayoutAlpha:      alpha,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *EditorCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetGraphCounts updates the graph size gauges.
func (c *EditorCollector) SetGraphCounts(views, nodes, links int) {
	if c == nil {
		return
	}
	c.Views.Set(float64(views))
	c.Nodes.Set(float64(nodes))
	c.Links.Set(float64(links))
}

// RecordAction counts a controller action. Blocked actions also count as
// policy violations.
func (c *EditorCollector) RecordAction(action, outcome string) {
	if c == nil || c.Actions == nil {
		return
	}
	c.Actions.WithLabelValues(action, outcome).Inc()
	if outcome == "blocked" && c.PolicyViolations != nil {
		c.PolicyViolations.Inc()
	}
}

// ObserveTick records one layout step.
func (c *EditorCollector) ObserveTick(d time.Duration, alpha float64) {
	if c == nil {
		return
	}
	c.LayoutTicks.Inc()
	c.TickDuration.Observe(d.Seconds())
	c.LayoutAlpha.Set(alpha)
}
