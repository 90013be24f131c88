// Package runner is the parallel test harness: a fixed-size worker pool
// pulls registered tests off a queue, runs each inside a panic-recovery
// frame, and streams outcomes to a Reporter. Modeled on the teacher's
// channel-based worker pools (e.g. eth/downloader's queue) since neither
// the teacher nor the rest of the pack reach for an external queue
// library for this shape.
package runner

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parables-dev/parables/log"
)

// Status tags how one test finished.
type Status int

const (
	StatusOk Status = iota
	StatusFailed
	StatusPanicked
	StatusTimeout
)

// Location is a captured source position. Column is always 0: unlike
// the assertion macro the original harness used, Go's call-site capture
// (runtime.Caller, go-stack) reports file and line only.
type Location struct {
	File   string
	Line   int
	Column int
}

// Outcome is one finished test's result.
type Outcome struct {
	Name     string
	Duration time.Duration
	Status   Status
	Message  string
	Location Location
}

// Test is one registered unit: a name, a closure, and the source
// location of the registration call (for reporting registration-time
// errors; a failure's own location comes from where the assertion fired).
type Test struct {
	Name     string
	Fn       func(t *T)
	Location Location
	Timeout  time.Duration // zero: use Config.DefaultTimeout
}

// Config controls a Runner's execution shape.
type Config struct {
	Workers         int // 0: runtime.GOMAXPROCS(0)
	Bail            bool
	DefaultTimeout  time.Duration // 0: no timeout
}

// Runner schedules a fixed set of Tests across a worker pool and streams
// outcomes to a Reporter.
type Runner struct {
	cfg      Config
	tests    []Test
	reporter Reporter
}

// New builds an empty Runner configured by cfg, reporting to reporter;
// tests are added with Register.
func New(cfg Config, reporter Reporter) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{cfg: cfg, reporter: reporter}
}

// Register adds a test to the run. loc should be captured by the caller
// with CallerLocation(0) at the registration site.
func (r *Runner) Register(name string, fn func(t *T), loc Location) {
	r.tests = append(r.tests, Test{Name: name, Fn: fn, Location: loc})
}

// counters is the atomic pass/fail tally Run keeps while its workers
// report outcomes; it is local to one Run call.
type counters struct {
	passed int64
	failed int64
}

// Run executes every registered test across the worker pool and returns
// the process exit code: 0 if every test passed, 1 otherwise.
func (r *Runner) Run() int {
	logger := log.New("component", "runner")
	logger.Info("suite starting", "tests", len(r.tests), "workers", r.cfg.Workers)

	queue := make(chan Test, len(r.tests))
	for _, t := range r.tests {
		queue <- t
	}
	close(queue)

	var bailed atomic.Bool
	var c counters
	var wg sync.WaitGroup
	wg.Add(r.cfg.Workers)
	for i := 0; i < r.cfg.Workers; i++ {
		go func() {
			defer wg.Done()
			for t := range queue {
				if r.cfg.Bail && bailed.Load() {
					continue
				}
				r.reporter.TestStarted(t.Name)
				outcome := runOne(t, r.cfg.DefaultTimeout)
				r.reporter.TestFinished(outcome)
				if outcome.Status == StatusOk {
					atomic.AddInt64(&c.passed, 1)
				} else {
					atomic.AddInt64(&c.failed, 1)
					if r.cfg.Bail {
						bailed.Store(true)
					}
				}
			}
		}()
	}
	wg.Wait()

	logger.Info("suite finished", "passed", c.passed, "failed", c.failed)
	if c.failed > 0 {
		return 1
	}
	return 0
}

// runOne executes t's closure in a failure-capture frame, applying its
// timeout (or the runner default) cooperatively: the deadline is only
// observed after the closure returns, matching §5's "cancellation of the
// in-progress EVM step is not supported" note.
func runOne(t Test, defaultTimeout time.Duration) Outcome {
	timeout := t.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	start := time.Now()
	outcome := Outcome{Name: t.Name}
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				switch v := rec.(type) {
				case *assertionFailure:
					outcome.Status = StatusFailed
					outcome.Message = v.message
					outcome.Location = v.location
				default:
					outcome.Status = StatusPanicked
					outcome.Message = formatPanic(rec)
					outcome.Location = Location{}
				}
			}
		}()
		tt := &T{}
		t.Fn(tt)
		if tt.failed {
			outcome.Status = StatusFailed
			outcome.Message = tt.message
			outcome.Location = tt.location
		}
	}()
	outcome.Duration = time.Since(start)

	if timeout > 0 && outcome.Duration > timeout && outcome.Status == StatusOk {
		outcome.Status = StatusTimeout
		outcome.Message = "exceeded timeout"
	}
	return outcome
}
