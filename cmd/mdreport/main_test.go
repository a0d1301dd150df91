package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no config sources.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", filepath.Join(dir, "home"))
	for _, k := range []string{
		"MDREPORT_PATH", "MDREPORT_TITLE", "MDREPORT_INITIAL_SORT",
		"MDREPORT_RENDER_COLLAPSED", "MDREPORT_TEMPLATE_DIR", "MDREPORT_DEBUG",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("NO_COLOR", "1")
	return dir
}

var reportLogSession = strings.Join([]string{
	`{"pytest_version": "8.1.1", "$report_type": "SessionStart"}`,
	`{"nodeid": "test_a.py", "outcome": "passed", "longrepr": null, "result": [{"nodeid": "test_a.py::test_ok", "type": "Function"}, {"nodeid": "test_a.py::test_bad", "type": "Function"}], "sections": [], "$report_type": "CollectReport"}`,
	`{"nodeid": "test_a.py::test_ok", "when": "setup", "outcome": "passed", "duration": 0.125, "$report_type": "TestReport"}`,
	`{"nodeid": "test_a.py::test_ok", "when": "call", "outcome": "passed", "duration": 0.5, "$report_type": "TestReport"}`,
	`{"nodeid": "test_a.py::test_ok", "when": "teardown", "outcome": "passed", "duration": 0.125, "$report_type": "TestReport"}`,
	`{"nodeid": "test_a.py::test_bad", "when": "setup", "outcome": "passed", "duration": 0.125, "$report_type": "TestReport"}`,
	`{"nodeid": "test_a.py::test_bad", "when": "call", "outcome": "failed", "duration": 0.25, "longrepr": "assert 1 == 2", "$report_type": "TestReport"}`,
	`{"nodeid": "test_a.py::test_bad", "when": "teardown", "outcome": "passed", "duration": 0.125, "$report_type": "TestReport"}`,
	`{"exitstatus": 1, "$report_type": "SessionFinish"}`,
}, "\n") + "\n"

var goTestSession = strings.Join([]string{
	`{"Time":"2024-01-01T00:00:00Z","Action":"start","Package":"example.com/pkg/handler"}`,
	`{"Time":"2024-01-01T00:00:00Z","Action":"run","Package":"example.com/pkg/handler","Test":"TestCreateUser"}`,
	`{"Time":"2024-01-01T00:00:00Z","Action":"output","Package":"example.com/pkg/handler","Test":"TestCreateUser","Output":"created\n"}`,
	`{"Time":"2024-01-01T00:00:00Z","Action":"pass","Package":"example.com/pkg/handler","Test":"TestCreateUser","Elapsed":0.1}`,
	`{"Time":"2024-01-01T00:00:00Z","Action":"pass","Package":"example.com/pkg/handler","Elapsed":0.2}`,
}, "\n") + "\n"

func TestRun_ReportLogWithFailure(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "reports", "report.md")

	var stdout, stderr bytes.Buffer
	code := run([]string{"--md", out, "--title", "Nightly"}, strings.NewReader(reportLogSession), &stdout, &stderr)

	assert.Equal(t, 1, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "Nightly")
	assert.Contains(t, stdout.String(), "Failed: 1")
	assert.Contains(t, stdout.String(), "test_a.py::test_bad")
	assert.NotContains(t, stdout.String(), "\033[")

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Nightly")
	assert.Contains(t, string(body), "test_a.py::test_bad")
	assert.Contains(t, string(body), "assert 1 == 2")
	assert.Contains(t, stderr.String(), "report written")
}

func TestRun_GoTestJSONAllPassing(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "report.md")
	sidecar := filepath.Join(dir, "report.json")

	var stdout, stderr bytes.Buffer
	code := run([]string{"--md", out, "--json", sidecar}, strings.NewReader(goTestSession), &stdout, &stderr)

	assert.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "Passed: 3")

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(body), "example.com/pkg/handler::TestCreateUser")

	js, err := os.ReadFile(sidecar)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"run_id"`)
}

func TestRun_WithoutPathWritesNoFile(t *testing.T) {
	dir := isolate(t)

	var stdout, stderr bytes.Buffer
	code := run(nil, strings.NewReader(goTestSession), &stdout, &stderr)

	assert.Equal(t, 0, code)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".md", filepath.Ext(e.Name()))
	}
	assert.NotContains(t, stderr.String(), "report written")
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		input string
		want  int
		msg   string
	}{
		{name: "no input", input: "", want: 2, msg: "format"},
		{name: "unknown input", input: "hello world\n", want: 2, msg: "format"},
		{name: "bad flag", args: []string{"--nope"}, input: goTestSession, want: 2},
		{name: "stray argument", args: []string{"extra"}, input: goTestSession, want: 2, msg: "unexpected arguments"},
		{name: "bad theme", args: []string{"--theme", "neon"}, input: goTestSession, want: 2, msg: "invalid theme"},
		{name: "missing template", args: []string{"--md", "r.md", "--template", "absent.tmpl"}, input: goTestSession, want: 2, msg: "template not found"},
		{name: "help", args: []string{"-h"}, input: "", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			var stdout, stderr bytes.Buffer
			code := run(tt.args, strings.NewReader(tt.input), &stdout, &stderr)
			assert.Equal(t, tt.want, code, "stderr: %s", stderr.String())
			if tt.msg != "" {
				assert.Contains(t, stderr.String(), tt.msg)
			}
		})
	}
}

func TestRun_UnknownInitialSortWarns(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "report.md")

	var stdout, stderr bytes.Buffer
	code := run([]string{"--md", out, "--initial-sort", "size"}, strings.NewReader(goTestSession), &stdout, &stderr)

	assert.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stderr.String(), "level=WARN")
	assert.Contains(t, stderr.String(), "unknown initial sort")
	assert.FileExists(t, out)
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--version"}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout.String(), "mdreport "))
}

func TestRun_ForcedFormatAcceptsEmptyInput(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "report.md")

	var stdout, stderr bytes.Buffer
	code := run([]string{"--md", out, "--format", "gotest"}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.FileExists(t, out)
	assert.Contains(t, stdout.String(), "0 test took 0 ms.")
}

func TestRun_ConfigFileSuppliesPath(t *testing.T) {
	dir := isolate(t)
	cfg := "path: from-config.md\ntitle: Configured\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".mdreport.yaml"), []byte(cfg), 0o600))

	var stdout, stderr bytes.Buffer
	code := run(nil, strings.NewReader(goTestSession), &stdout, &stderr)

	assert.Equal(t, 0, code, "stderr: %s", stderr.String())
	body, err := os.ReadFile(filepath.Join(dir, "from-config.md"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "Configured")
}
