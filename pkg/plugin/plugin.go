// Package plugin wires the collector, the renderers and the report file into
// a report.Listener that a test runner drives.
package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkoosis/mdreport/pkg/render"
	"github.com/dkoosis/mdreport/pkg/report"
)

// Options configures the Markdown report plugin.
type Options struct {
	// Path is the report file. Empty leaves the plugin inactive.
	Path            string
	Title           string
	InitialSort     string
	RenderCollapsed string
	TemplateDirs    []string
	Template        string
	// JSONPath, when set, also writes a JSON sidecar there.
	JSONPath    string
	Incremental bool
	Environment map[string]string
	Summary     report.AdditionalSummary
	// OnCommit receives every persisted test record.
	OnCommit func(report.TestRecord)
	// Now stamps the report; time.Now when nil.
	Now func() time.Time
}

// Plugin collects phase results and writes the Markdown report.
type Plugin struct {
	collector *report.Collector
	markdown  *render.Markdown
	json      *render.JSON
	path      string
	jsonPath  string
	runID     string
	incr      bool
	now       func() time.Time
	logger    *slog.Logger

	writeMu sync.Mutex
}

var _ report.Listener = (*Plugin)(nil)

// Configure builds the plugin from opts. An empty path returns (nil, nil):
// no report was requested. Template and path problems are returned before
// anything subscribes to events.
func Configure(opts Options, logger *slog.Logger) (*Plugin, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if strings.TrimSpace(opts.Path) == "" {
		logger.Debug("no report path, markdown report disabled")
		return nil, nil
	}

	path, err := ResolvePath(opts.Path)
	if err != nil {
		return nil, err
	}
	var jsonPath string
	if opts.JSONPath != "" {
		if jsonPath, err = ResolvePath(opts.JSONPath); err != nil {
			return nil, err
		}
	}

	md, err := render.LoadTemplate(opts.TemplateDirs, opts.Template)
	if err != nil {
		return nil, fmt.Errorf("load report template: %w", err)
	}

	data := report.NewData()
	if opts.Title != "" {
		data.Title = opts.Title
	}
	if opts.InitialSort != "" {
		data.InitialSort = opts.InitialSort
	}
	data.RenderCollapsed = ParseCollapsed(opts.RenderCollapsed, logger)
	for k, v := range opts.Environment {
		data.Environment[k] = v
	}
	data.AdditionalSummary = opts.Summary

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var collectorOpts []report.Option
	collectorOpts = append(collectorOpts, report.WithLogger(logger))
	if opts.OnCommit != nil {
		collectorOpts = append(collectorOpts, report.WithCommitHook(opts.OnCommit))
	}

	p := &Plugin{
		collector: report.NewCollector(data, collectorOpts...),
		markdown:  md,
		json:      render.NewJSON(),
		path:      path,
		jsonPath:  jsonPath,
		runID:     uuid.NewString(),
		incr:      opts.Incremental,
		now:       now,
		logger:    logger,
	}
	logger.Debug("markdown report enabled", "path", path, "template", md.Source(), "run_id", p.runID)
	return p, nil
}

// ParseCollapsed splits a comma-separated list of results to render folded.
// The legacy value "true" means "all".
func ParseCollapsed(s string, logger *slog.Logger) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if part == "true" {
			if logger != nil {
				logger.Warn(`render collapsed "true" is deprecated, use "all"`)
			}
			part = "all"
		}
		out = append(out, part)
	}
	return out
}

// ResolvePath expands environment variables and a leading "~" in path and
// makes it absolute against the working directory.
func ResolvePath(path string) (string, error) {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %q: %w", path, err)
		}
		path = filepath.Join(home, path[1:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return abs, nil
}

// Path returns the resolved report file path.
func (p *Plugin) Path() string { return p.path }

// RunID identifies this run in the JSON sidecar.
func (p *Plugin) RunID() string { return p.runID }

// Collector exposes the underlying collector.
func (p *Plugin) Collector() *report.Collector { return p.collector }

// SessionStart implements report.Listener.
func (p *Plugin) SessionStart(collected int) {
	p.collector.SessionStart(collected)
}

// AddCollected implements report.CollectedAdder.
func (p *Plugin) AddCollected(n int) {
	p.collector.AddCollected(n)
}

// LogReport implements report.Listener. In incremental mode the report is
// rewritten every time a test finishes.
func (p *Plugin) LogReport(r report.PhaseResult) error {
	if !p.collector.Record(r) || !p.incr {
		return nil
	}
	return p.Write()
}

// SessionFinish implements report.Listener. It may be called more than once;
// each call rewrites the report from the current state.
func (p *Plugin) SessionFinish() error {
	if err := p.collector.SessionFinish(); err != nil {
		return err
	}
	return p.Write()
}

// Write renders the current snapshot to the report file and, if configured,
// the JSON sidecar. Failures are returned, not retried.
func (p *Plugin) Write() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	bag := render.NewBag(p.collector.Snapshot(), p.now())
	bag.RunID = p.runID

	out, err := p.markdown.Render(bag)
	if err != nil {
		return err
	}
	var errs []error
	if err := writeFile(p.path, out); err != nil {
		errs = append(errs, err)
	} else {
		p.logger.Debug("report written", "path", p.path, "tests", len(bag.Tests))
	}

	if p.jsonPath != "" {
		js, err := p.json.Render(bag)
		if err != nil {
			errs = append(errs, err)
		} else if err := writeFile(p.jsonPath, js); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
