// Package metrics counts what the frontend does and exposes the numbers
// in the Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds the frontend metrics. A nil *Metrics records nothing, so
// components can take one optionally.
type Metrics struct {
	namespace string

	Registrations  *CounterVec
	SubmitDuration *Histogram
	Uploads        *CounterVec
	CartEvents     *CounterVec
	Copies         *CounterVec
	AgentActions   *CounterVec

	mu     sync.RWMutex
	gauges map[string]GaugeFunc
}

// GaugeFunc reads a gauge when metrics are scraped.
type GaugeFunc func() float64

// New creates metrics prefixed with namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		namespace:      namespace,
		Registrations:  NewCounterVec("registrations_total", "Registration submissions by outcome.", "outcome"),
		SubmitDuration: NewHistogram("registration_submit_seconds", "Time spent submitting a registration.", DefaultBuckets),
		Uploads:        NewCounterVec("uploads_total", "Documents attached to the wizard by outcome.", "outcome"),
		CartEvents:     NewCounterVec("cart_events_total", "Cart operations by kind.", "event"),
		Copies:         NewCounterVec("credential_copies_total", "Credential copies by outcome.", "outcome"),
		AgentActions:   NewCounterVec("agent_actions_total", "Point-of-sale API actions by kind and outcome.", "action"),
		gauges:         make(map[string]GaugeFunc),
	}
}

// Registration records a finished submission.
func (m *Metrics) Registration(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.Registrations.Inc(outcome)
	m.SubmitDuration.Observe(took.Seconds())
}

// Upload records an attached or rejected document.
func (m *Metrics) Upload(outcome string) {
	if m == nil {
		return
	}
	m.Uploads.Inc(outcome)
}

// CartEvent records a cart operation.
func (m *Metrics) CartEvent(event string) {
	if m == nil {
		return
	}
	m.CartEvents.Inc(event)
}

// Copy records a credentials copy.
func (m *Metrics) Copy(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.Copies.Inc("ok")
		return
	}
	m.Copies.Inc("failed")
}

// AgentAction records a point-of-sale API call. Failures are counted
// under action + "_failed".
func (m *Metrics) AgentAction(action string, ok bool) {
	if m == nil {
		return
	}
	if !ok {
		action += "_failed"
	}
	m.AgentActions.Inc(action)
}

// Gauge registers fn under name.
func (m *Metrics) Gauge(name string, fn GaugeFunc) {
	m.mu.Lock()
	m.gauges[name] = fn
	m.mu.Unlock()
}

// WriteTo writes every metric in the text exposition format.
func (m *Metrics) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder

	m.mu.RLock()
	names := make([]string, 0, len(m.gauges))
	for name := range m.gauges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		full := m.name(name)
		fmt.Fprintf(&b, "# TYPE %s gauge\n%s %g\n", full, full, m.gauges[name]())
	}
	m.mu.RUnlock()

	for _, cv := range []*CounterVec{m.Registrations, m.Uploads, m.CartEvents, m.Copies, m.AgentActions} {
		cv.write(&b, m.name(cv.name))
	}
	m.SubmitDuration.write(&b, m.name(m.SubmitDuration.name))

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func (m *Metrics) name(s string) string {
	if m.namespace == "" {
		return s
	}
	return m.namespace + "_" + s
}

// Handler serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = m.WriteTo(w)
	})
}

// Counter is a monotonically increasing counter.
type Counter struct {
	value atomic.Int64
}

func (c *Counter) Inc() { c.value.Add(1) }

func (c *Counter) Value() int64 { return c.value.Load() }

// CounterVec is a counter per label value.
type CounterVec struct {
	name  string
	help  string
	label string

	mu     sync.RWMutex
	values map[string]*Counter
}

// NewCounterVec creates a counter partitioned by label.
func NewCounterVec(name, help, label string) *CounterVec {
	return &CounterVec{name: name, help: help, label: label, values: make(map[string]*Counter)}
}

// WithLabel returns the counter of value.
func (cv *CounterVec) WithLabel(value string) *Counter {
	cv.mu.RLock()
	c, ok := cv.values[value]
	cv.mu.RUnlock()
	if ok {
		return c
	}

	cv.mu.Lock()
	defer cv.mu.Unlock()
	if c, ok := cv.values[value]; ok {
		return c
	}
	c = &Counter{}
	cv.values[value] = c
	return c
}

func (cv *CounterVec) Inc(value string) { cv.WithLabel(value).Inc() }

// Values returns a snapshot of every label.
func (cv *CounterVec) Values() map[string]int64 {
	cv.mu.RLock()
	defer cv.mu.RUnlock()

	out := make(map[string]int64, len(cv.values))
	for label, c := range cv.values {
		out[label] = c.Value()
	}
	return out
}

func (cv *CounterVec) write(b *strings.Builder, name string) {
	values := cv.Values()
	labels := make([]string, 0, len(values))
	for l := range values {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s counter\n", name, cv.help, name)
	for _, l := range labels {
		fmt.Fprintf(b, "%s{%s=%q} %d\n", name, cv.label, l, values[l])
	}
}

// DefaultBuckets suit calls to the platform API, in seconds.
var DefaultBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20}

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	name    string
	help    string
	buckets []float64

	mu     sync.Mutex
	counts []int64
	sum    float64
	count  int64
}

// NewHistogram creates a histogram with the given upper bounds.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	b := slices.Clone(buckets)
	slices.Sort(b)
	return &Histogram{name: name, help: help, buckets: b, counts: make([]int64, len(b))}
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	for i, upper := range h.buckets {
		if v <= upper {
			h.counts[i]++
		}
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *Histogram) write(b *strings.Builder, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s histogram\n", name, h.help, name)
	for i, upper := range h.buckets {
		fmt.Fprintf(b, "%s_bucket{le=\"%g\"} %d\n", name, upper, h.counts[i])
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"} %d\n", name, h.count)
	fmt.Fprintf(b, "%s_sum %g\n%s_count %d\n", name, h.sum, name, h.count)
}
