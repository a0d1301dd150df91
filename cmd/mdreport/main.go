// mdreport writes a Markdown report of a recorded test session.
//
// Usage:
//
//	pytest --report-log=session.jsonl; mdreport --md report.md < session.jsonl
//	go test -json ./... | mdreport --md report.md --live
//
// Accepts two input formats on stdin, detected from the first line:
//   - pytest-reportlog JSON lines
//   - go test -json
//
// The report file is written when the session ends. A terminal summary is
// printed to stdout. Exit codes: 0 clean, 1 failures or errors present,
// 2 usage, config or I/O error, 130 interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/dkoosis/mdreport/internal/config"
	"github.com/dkoosis/mdreport/internal/detect"
	"github.com/dkoosis/mdreport/internal/version"
	"github.com/dkoosis/mdreport/pkg/plugin"
	"github.com/dkoosis/mdreport/pkg/render"
	"github.com/dkoosis/mdreport/pkg/report"
	"github.com/dkoosis/mdreport/pkg/source"
	"github.com/dkoosis/mdreport/pkg/stream"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cli, showVersion, code := parseFlags(args, stderr)
	if code >= 0 {
		return code
	}
	if showVersion {
		fmt.Fprintln(stdout, version.String())
		return 0
	}

	cfg, err := config.Resolve(cli)
	if err != nil {
		fmt.Fprintf(stderr, "mdreport: %v\n", err)
		return 2
	}
	logger := newLogger(stderr, cfg.Debug)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	if cfg.ConfigFile != "" {
		logger.Debug("loaded config", "file", cfg.ConfigFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p, err := plugin.Configure(plugin.Options{
		Path:            cfg.Path,
		Title:           cfg.Title,
		InitialSort:     cfg.InitialSort,
		RenderCollapsed: cfg.RenderCollapsed,
		TemplateDirs:    cfg.TemplateDirs,
		Template:        cfg.Template,
		JSONPath:        cfg.JSONPath,
		Incremental:     cfg.Incremental,
		Environment:     cfg.Environment,
		Summary:         cfg.Summary,
	}, logger)
	if err != nil {
		fmt.Fprintf(stderr, "mdreport: %v\n", err)
		return 2
	}

	// The summary collector backs the terminal output and the exit code.
	summary := report.NewCollector(nil, report.WithLogger(logger))
	summary.Update(func(d *report.Data) { d.Title = cfg.Title })

	mgr := plugin.NewManager()
	mgr.Register(summary)
	if p != nil {
		mgr.Register(p)
	}

	theme := selectTheme(cfg.Theme, cfg.NoColor)
	var listener report.Listener = mgr
	if cfg.Live && isTTYWriter(stderr) {
		width, height := termSize(stderr)
		listener = stream.NewLive(mgr, stderr, width, height, theme)
	}

	stats, err := source.Replay(ctx, stdin, detect.Parse(cfg.Format), listener, logger)
	switch {
	case errors.Is(err, source.ErrUnknownFormat):
		fmt.Fprintf(stderr, "mdreport: %v\n", err)
		return 2
	case ctx.Err() != nil:
		fmt.Fprintln(stderr, "mdreport: interrupted")
		return 130
	case err != nil:
		fmt.Fprintf(stderr, "mdreport: %v\n", err)
		return 2
	}
	logger.Debug("session replayed", "format", stats.Format.String(), "events", stats.Events, "malformed", stats.Malformed)
	if p != nil {
		logger.Info("report written", "path", p.Path())
	}

	data := summary.Snapshot()
	width, _ := termSize(stdout)
	out, err := render.NewTerminal(theme, width).Render(render.NewBag(data, time.Now()))
	if err != nil {
		fmt.Fprintf(stderr, "mdreport: %v\n", err)
		return 2
	}
	fmt.Fprint(stdout, out)
	return exitCode(data)
}

// parseFlags returns the parsed flags, or an exit code >= 0 when the program
// should stop.
func parseFlags(args []string, stderr io.Writer) (config.CliFlags, bool, int) {
	var cli config.CliFlags
	var templateDirs stringList

	fs := flag.NewFlagSet("mdreport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cli.Path, "md", "", "Create the Markdown report at `path`")
	fs.StringVar(&cli.Title, "title", "", "Report title (default \""+report.DefaultTitle+"\")")
	fs.StringVar(&cli.InitialSort, "initial-sort", "", "Row order: result, testId, duration, original; prefix - to reverse")
	fs.StringVar(&cli.RenderCollapsed, "render-collapsed", "", "Comma-separated results shown folded, or all / none")
	fs.Var(&templateDirs, "template-dir", "Directory searched for the report template (repeatable)")
	fs.StringVar(&cli.Template, "template", "", "Template file name (default \""+render.DefaultTemplate+"\")")
	fs.StringVar(&cli.JSONPath, "json", "", "Also write a JSON report to `path`")
	fs.StringVar(&cli.Format, "format", "", "Input format: auto, reportlog, gotest")
	fs.BoolVar(&cli.Incremental, "incremental", false, "Rewrite the report after every test")
	fs.BoolVar(&cli.Live, "live", false, "Show a live view on stderr when it is a terminal")
	fs.StringVar(&cli.Theme, "theme", "", "Theme: default, orca, mono")
	fs.StringVar(&cli.ConfigPath, "config", "", "Config file (default ./"+config.FileName+")")
	fs.BoolVar(&cli.Debug, "debug", false, "Enable debug logging")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cli, false, 0
		}
		return cli, false, 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "mdreport: unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return cli, false, 2
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "md":
			cli.PathSet = true
		case "render-collapsed":
			cli.RenderCollapsedSet = true
		case "incremental":
			cli.IncrementalSet = true
		case "live":
			cli.LiveSet = true
		case "debug":
			cli.DebugSet = true
		}
	})
	cli.TemplateDirs = templateDirs
	return cli, *showVersion, -1
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func selectTheme(name string, noColor bool) render.Theme {
	if noColor {
		return render.MonoTheme()
	}
	return render.ThemeByName(name)
}

// isTTYWriter reports whether w is a terminal.
func isTTYWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// termSize returns the terminal dimensions for w, defaulting to 80x24.
func termSize(w io.Writer) (width, height int) {
	width, height = 80, 24
	if f, ok := w.(*os.File); ok {
		if tw, th, err := term.GetSize(int(f.Fd())); err == nil {
			if tw > 0 {
				width = tw
			}
			if th > 0 {
				height = th
			}
		}
	}
	return width, height
}

// exitCode returns 0 for clean, 1 when failures or errors were recorded.
func exitCode(d *report.Data) int {
	if d.Count("failed") > 0 || d.Count("error") > 0 {
		return 1
	}
	return 0
}
