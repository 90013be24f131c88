package runner

import (
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Reporter observes a stream of TestStarted/TestFinished events. Workers
// call it concurrently; implementations must serialize their own output.
type Reporter interface {
	TestStarted(name string)
	TestFinished(o Outcome)
}

// StdoutReporter renders the three canonical line formats, serializing
// concurrent writers through a mutex the way the teacher's log handlers
// serialize theirs.
type StdoutReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdoutReporter builds a StdoutReporter writing to w.
func NewStdoutReporter(w io.Writer) *StdoutReporter {
	return &StdoutReporter{w: w}
}

func (s *StdoutReporter) TestStarted(name string) {}

func (s *StdoutReporter) TestFinished(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seconds := o.Duration.Seconds()
	switch o.Status {
	case StatusOk:
		fmt.Fprintf(s.w, "%s in %.3fs: ok\n", o.Name, seconds)
	case StatusFailed, StatusTimeout:
		fmt.Fprintf(s.w, "%s in %.3fs: failed at %s:%d:%d\n%s\n",
			o.Name, seconds, o.Location.File, o.Location.Line, o.Location.Column, o.Message)
	case StatusPanicked:
		fmt.Fprintf(s.w, "%s in %.3fs: panicked at %s:%d:%d\n%s\n",
			o.Name, seconds, o.Location.File, o.Location.Line, o.Location.Column, o.Message)
	}
}

// PrometheusReporter records suite progress as Prometheus metrics,
// alongside forwarding to a wrapped Reporter for human-readable output.
type PrometheusReporter struct {
	wrapped  Reporter
	total    *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewPrometheusReporter registers its metrics on reg and wraps inner for
// the actual line output.
func NewPrometheusReporter(reg prometheus.Registerer, inner Reporter) *PrometheusReporter {
	p := &PrometheusReporter{
		wrapped: inner,
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parables",
			Subsystem: "runner",
			Name:      "tests_total",
			Help:      "Number of tests finished, by status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parables",
			Subsystem: "runner",
			Name:      "test_duration_seconds",
			Help:      "Per-test wall-clock duration.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(p.total, p.duration)
	return p
}

func (p *PrometheusReporter) TestStarted(name string) {
	if p.wrapped != nil {
		p.wrapped.TestStarted(name)
	}
}

func (p *PrometheusReporter) TestFinished(o Outcome) {
	p.total.WithLabelValues(statusLabel(o.Status)).Inc()
	p.duration.Observe(o.Duration.Seconds())
	if p.wrapped != nil {
		p.wrapped.TestFinished(o)
	}
}

func statusLabel(s Status) string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusPanicked:
		return "panicked"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}
