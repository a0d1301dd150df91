package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/mdreport/internal/detect"
	"github.com/dkoosis/mdreport/pkg/report"
)

func reportLog(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func testReport(nodeid, when, outcome string, duration string, extra string) string {
	return `{"nodeid": "` + nodeid + `", "when": "` + when + `", "outcome": "` + outcome + `", "duration": ` + duration + extra + `, "$report_type": "TestReport"}`
}

var sampleSession = reportLog(
	`{"pytest_version": "8.1.1", "$report_type": "SessionStart"}`,
	`{"nodeid": "", "outcome": "passed", "longrepr": null, "result": [{"nodeid": "test_a.py", "type": "Module"}], "sections": [], "$report_type": "CollectReport"}`,
	`{"nodeid": "test_a.py", "outcome": "passed", "longrepr": null, "result": [{"nodeid": "test_a.py::test_ok", "type": "Function"}, {"nodeid": "test_a.py::test_bad", "type": "Function"}], "sections": [], "$report_type": "CollectReport"}`,
	testReport("test_a.py::test_ok", "setup", "passed", "0.001", ""),
	testReport("test_a.py::test_ok", "call", "passed", "0.5", ""),
	testReport("test_a.py::test_ok", "teardown", "passed", "0.001", ""),
	testReport("test_a.py::test_bad", "setup", "passed", "0.125", ""),
	testReport("test_a.py::test_bad", "call", "failed", "0.25", `, "longrepr": {"reprcrash": `+crashJSON+`, "reprtraceback": `+tracebackJSON+`}, "sections": [["Captured stdout call", "boom\n"]]`),
	testReport("test_a.py::test_bad", "teardown", "passed", "0.125", ""),
	`{"$report_type": "WarningMessage", "message": "deprecated"}`,
	`{"exitstatus": 1, "$report_type": "SessionFinish"}`,
)

type events struct {
	names []string
}

func (e *events) SessionStart(n int) { e.names = append(e.names, "start") }

func (e *events) LogReport(r report.PhaseResult) error {
	e.names = append(e.names, r.TestID+":"+string(r.Phase))
	return nil
}

func (e *events) SessionFinish() error {
	e.names = append(e.names, "finish")
	return nil
}

func TestReplay_ReportLogIntoCollector(t *testing.T) {
	t.Parallel()

	c := report.NewCollector(nil)
	stats, err := Replay(context.Background(), strings.NewReader(sampleSession), detect.Unknown, c, nil)
	require.NoError(t, err)
	assert.Equal(t, detect.ReportLog, stats.Format)
	assert.Equal(t, 11, stats.Events)
	assert.Zero(t, stats.Malformed)

	d := c.Snapshot()
	assert.Equal(t, report.StateFinished, d.State)
	assert.Equal(t, 2, d.Collected)
	assert.Equal(t, 1, d.Count("failed"))
	assert.Equal(t, 5, d.Count("passed"))

	bad, ok := d.Test("test_a.py::test_bad")
	require.True(t, ok)
	assert.Equal(t, report.LabelFailed, bad.Result)
	require.Len(t, bad.Logs, 2)
	assert.Equal(t, tracebackText+"\n", bad.Logs[0])
	assert.True(t, strings.HasSuffix(bad.Logs[1], "\nboom\n"))
	assert.Equal(t, 500*time.Millisecond, bad.Duration)
}

func TestReplay_SessionEventsOnce(t *testing.T) {
	t.Parallel()

	in := reportLog(
		testReport("t::a", "setup", "passed", "0", ""),
		`{"pytest_version": "8.1.1", "$report_type": "SessionStart"}`,
		testReport("t::a", "call", "passed", "0", ""),
	)
	var ev events
	_, err := Replay(context.Background(), strings.NewReader(in), detect.ReportLog, &ev, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "t::a:setup", "t::a:call", "finish"}, ev.names)
}

func TestReplay_CollectErrorBecomesTest(t *testing.T) {
	t.Parallel()

	in := reportLog(
		`{"nodeid": "test_b.py", "outcome": "failed", "longrepr": "ImportError", "result": [], "$report_type": "CollectReport"}`,
	)
	c := report.NewCollector(nil)
	_, err := Replay(context.Background(), strings.NewReader(in), detect.Unknown, c, nil)
	require.NoError(t, err)

	rec, ok := c.Snapshot().Test("test_b.py")
	require.True(t, ok)
	assert.Equal(t, report.LabelError, rec.Result)
}

func TestReplay_CountsMalformed(t *testing.T) {
	t.Parallel()

	in := reportLog(
		`{"pytest_version": "8.1.1", "$report_type": "SessionStart"}`,
		`{garbage`,
		`{"nodeid": "no type"}`,
	)
	stats, err := Replay(context.Background(), strings.NewReader(in), detect.Unknown, report.NewCollector(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Malformed)
	assert.Equal(t, 1, stats.Events)
}

func TestReplay_GoTest(t *testing.T) {
	t.Parallel()

	in := reportLog(
		`{"Action":"run","Package":"p","Test":"TestA"}`,
		`{"Action":"pass","Package":"p","Test":"TestA","Elapsed":0.1}`,
		`{"Action":"pass","Package":"p","Elapsed":0.2}`,
	)
	var ev events
	stats, err := Replay(context.Background(), strings.NewReader(in), detect.Unknown, &ev, nil)
	require.NoError(t, err)
	assert.Equal(t, detect.GoTestJSON, stats.Format)
	assert.Equal(t, 3, stats.Events)
	assert.Equal(t, []string{"start", "p::TestA:setup", "p::TestA:call", "p::TestA:teardown", "finish"}, ev.names)
}

func TestReplay_UnknownFormat(t *testing.T) {
	t.Parallel()

	var ev events
	_, err := Replay(context.Background(), strings.NewReader("hello\n"), detect.Unknown, &ev, nil)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
	assert.Empty(t, ev.names)
}

func TestReplay_CancelledStillFinishes(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte(reportLog(testReport("t::a", "setup", "passed", "0", ""))))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var ev events
	_, err := Replay(ctx, pr, detect.ReportLog, &ev, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"start", "t::a:setup", "finish"}, ev.names)
}

func TestPeekLine_DoesNotWaitForMore(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer pr.Close()
	line := `{"Action":"start","Package":"p"}` + "\n"
	go func() { _, _ = pw.Write([]byte(line)) }()

	done := make(chan []byte, 1)
	go func() { done <- peekLine(bufio.NewReader(pr)) }()

	select {
	case got := <-done:
		assert.Equal(t, line, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("peekLine blocked waiting for more input")
	}
}
