// Package harness runs Go test cases in process and reports their setup,
// call and teardown phases to a report.Listener, the way a pytest session
// reports to its plugins.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/dkoosis/mdreport/pkg/report"
)

// Func is one phase of a case.
type Func func(ctx context.Context) error

// Case is one test. Setup and Teardown are optional.
type Case struct {
	ID       string
	Setup    Func
	Call     Func
	Teardown Func
	// XFail marks the case as expected to fail; the string is the reason.
	XFail string
	// Reruns is how many times a failed call is retried.
	Reruns int
}

// SkipError reports a skipped phase.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

// Skip returns an error that marks the current phase as skipped.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// PanicError wraps a recovered panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Runner executes cases sequentially.
type Runner struct {
	listener report.Listener
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now for phase timing.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New returns a runner reporting to l.
func New(l report.Listener, opts ...Option) *Runner {
	r := &Runner{
		listener: l,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cases in order inside one session. Cancelling ctx stops before
// the next case; the session still finishes. Listener errors are joined and
// returned after the session.
func (r *Runner) Run(ctx context.Context, cases []Case) error {
	r.listener.SessionStart(len(cases))

	var errs []error
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		errs = append(errs, r.runCase(ctx, c)...)
	}
	errs = append(errs, r.listener.SessionFinish())
	return errors.Join(errs...)
}

func (r *Runner) runCase(ctx context.Context, c Case) []error {
	var errs []error
	emit := func(res report.PhaseResult) {
		res.TestID = c.ID
		if err := r.listener.LogReport(res); err != nil {
			errs = append(errs, err)
		}
	}

	for attempt := 0; ; attempt++ {
		last := attempt >= c.Reruns
		results := r.attempt(ctx, c)
		if last || !failed(results) {
			for _, res := range results {
				emit(res)
			}
			return errs
		}
		// Phases before the failure are reported as they ran; the failing
		// phase becomes the rerun and nothing after it is reported.
		r.logger.Debug("rerunning failed case", "id", c.ID, "attempt", attempt+1)
		for _, res := range results {
			if res.Outcome != report.OutcomeFailed {
				emit(res)
				continue
			}
			res.Outcome = report.OutcomeRerun
			res.Rerun = attempt
			res.Sections = nil
			emit(res)
			break
		}
	}
}

// attempt runs one setup/call/teardown cycle. The call runs only when setup
// passed; teardown always runs.
func (r *Runner) attempt(ctx context.Context, c Case) []report.PhaseResult {
	ctx, extras := report.WithExtras(ctx)

	setup := r.phase(ctx, report.PhaseSetup, c.Setup)
	results := []report.PhaseResult{setup}
	if setup.Outcome == report.OutcomePassed {
		call := r.phase(ctx, report.PhaseCall, c.Call)
		if c.XFail != "" {
			call = expectFailure(call, c.XFail)
		}
		results = append(results, report.MergeExtras(call, extras))
	}
	results = append(results, r.phase(ctx, report.PhaseTeardown, c.Teardown))
	// Extras added after the call are dropped with the scope.
	extras.Drain()
	return results
}

// expectFailure applies an xfail marker to a call result: an expected
// failure is reported as skipped, a pass stays a pass. Both carry the marker.
func expectFailure(call report.PhaseResult, reason string) report.PhaseResult {
	call.XFail = true
	call.XFailReason = reason
	if call.Outcome == report.OutcomeFailed {
		call.Outcome = report.OutcomeSkipped
	}
	return call
}

func failed(results []report.PhaseResult) bool {
	for _, res := range results {
		if res.Outcome == report.OutcomeFailed {
			return true
		}
	}
	return false
}

func (r *Runner) phase(ctx context.Context, p report.Phase, fn Func) report.PhaseResult {
	res := report.PhaseResult{Phase: p, Outcome: report.OutcomePassed}
	if fn == nil {
		return res
	}
	start := r.now()
	err := protect(ctx, fn)
	res.Duration = r.now().Sub(start)

	var skip *SkipError
	var pe *PanicError
	switch {
	case err == nil:
	case errors.As(err, &skip):
		res.Outcome = report.OutcomeSkipped
		res.LongRepr = "Skipped: " + skip.Reason
	case errors.As(err, &pe):
		res.Outcome = report.OutcomeFailed
		res.LongRepr = pe.Error() + "\n\n" + string(pe.Stack)
	default:
		res.Outcome = report.OutcomeFailed
		res.LongRepr = err.Error()
	}
	return res
}

func protect(ctx context.Context, fn Func) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}
