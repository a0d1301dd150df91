package report

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// phaseOrder fixes the commit order of a test's stored results.
var phaseOrder = map[Phase]int{
	PhaseSetup:    0,
	PhaseCall:     1,
	PhaseTeardown: 2,
	PhaseCollect:  3,
}

type resultKey struct {
	phase   Phase
	outcome Outcome
}

// Collector turns the phase results of a session into finalized records.
// All methods are safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	data     *Data
	pending  map[string]map[resultKey][]PhaseResult
	onCommit func(TestRecord)
	logger   *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithCommitHook registers fn to receive the persisted record of every test
// once it finishes. fn runs outside the collector lock.
func WithCommitHook(fn func(TestRecord)) Option {
	return func(c *Collector) { c.onCommit = fn }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCollector returns a collector writing into data. A nil data starts from
// an empty store.
func NewCollector(data *Data, opts ...Option) *Collector {
	if data == nil {
		data = NewData()
	}
	c := &Collector{
		data:    data,
		pending: make(map[string]map[resultKey][]PhaseResult),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionStart marks the session as started with collected items.
func (c *Collector) SessionStart(collected int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.State = StateStarted
	c.data.Collected = collected
}

// AddCollected grows the collected count for runners that discover tests
// while running.
func (c *Collector) AddCollected(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Collected += n
}

// LogReport records one phase result. It never fails.
func (c *Collector) LogReport(r PhaseResult) error {
	c.Record(r)
	return nil
}

// Record stores r and, when r is the teardown that finishes its test,
// commits the test. It reports whether the test finished.
func (c *Collector) Record(r PhaseResult) bool {
	c.mu.Lock()
	rec, finished := c.record(r)
	c.mu.Unlock()

	if finished && c.onCommit != nil {
		c.onCommit(rec)
	}
	return finished
}

func (c *Collector) record(r PhaseResult) (TestRecord, bool) {
	groups, ok := c.pending[r.TestID]
	if !ok {
		groups = make(map[resultKey][]PhaseResult)
		c.pending[r.TestID] = groups
	}
	key := resultKey{phase: r.Phase, outcome: r.Outcome}
	if r.Outcome == OutcomeRerun {
		groups[key] = append(groups[key], r)
	} else {
		groups[key] = []PhaseResult{r}
	}

	c.data.TotalDuration += r.Duration

	if r.Phase != PhaseTeardown || r.Outcome == OutcomeRerun {
		return TestRecord{}, false
	}
	delete(c.pending, r.TestID)
	return c.finalize(r.TestID, groups), true
}

// finalize commits every stored result of a finished test. Each commit
// classifies and counts; call-phase commits replace the stored record with
// full logs and extras, while other phases only write a bare record when
// nothing was written for the test yet in this round.
func (c *Collector) finalize(id string, groups map[resultKey][]PhaseResult) TestRecord {
	var testDuration time.Duration
	for k, rs := range groups {
		if k.outcome != OutcomeRerun {
			testDuration += rs[0].Duration
		}
	}

	written := false
	for _, k := range sortedKeys(groups) {
		for _, r := range groups[k] {
			label := Classify(r)
			c.data.Increment(label)

			switch {
			case k.phase == PhaseCall:
				c.data.AddTest(TestRecord{
					TestID:   id,
					Result:   label,
					Duration: testDuration,
					Extras:   slices.Clone(r.Extras),
					Logs:     ProcessLogs(r),
				})
				written = true
			case !written && k.outcome != OutcomeRerun:
				c.data.AddTest(TestRecord{TestID: id, Result: label, Duration: r.Duration})
				written = true
			}
		}
	}

	rec, _ := c.data.Test(id)
	c.logger.Debug("test finished",
		slog.String("test", id),
		slog.String("result", string(rec.Result)),
		slog.Duration("duration", rec.Duration))
	return rec
}

// sortedKeys orders keys by phase, unknown phases last by name; within a
// phase reruns come first so the final attempt is committed last.
func sortedKeys(groups map[resultKey][]PhaseResult) []resultKey {
	keys := make([]resultKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b resultKey) int {
		if pa, pb := phaseRank(a.phase), phaseRank(b.phase); pa != pb {
			return pa - pb
		}
		if a.phase != b.phase {
			return cmp.Compare(a.phase, b.phase)
		}
		if (a.outcome == OutcomeRerun) != (b.outcome == OutcomeRerun) {
			if a.outcome == OutcomeRerun {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.outcome, b.outcome)
	})
	return keys
}

func phaseRank(p Phase) int {
	if r, ok := phaseOrder[p]; ok {
		return r
	}
	return len(phaseOrder)
}

// SessionFinish marks the session as finished.
func (c *Collector) SessionFinish() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.State = StateFinished
	return nil
}

// Pending reports how many tests have results but have not finished.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Snapshot returns a deep copy of the store.
func (c *Collector) Snapshot() *Data {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.Clone()
}

// Update runs fn with exclusive access to the store, e.g. to set the title or
// the additional summary.
func (c *Collector) Update(fn func(d *Data)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.data)
}
