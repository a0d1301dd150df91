package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/dkoosis/mdreport/pkg/report"
)

// CliFlags holds the values of command-line flags.
type CliFlags struct {
	Path            string
	Title           string
	InitialSort     string
	RenderCollapsed string
	TemplateDirs    []string
	Template        string
	JSONPath        string
	Theme           string
	Format          string
	ConfigPath      string
	Incremental     bool
	Live            bool
	Debug           bool

	// Flags to track if they were explicitly set by the user
	PathSet            bool
	RenderCollapsedSet bool
	IncrementalSet     bool
	LiveSet            bool
	DebugSet           bool
}

// ResolvedConfig holds the final configuration after applying all priority rules.
type ResolvedConfig struct {
	Path            string
	Title           string
	InitialSort     string
	RenderCollapsed string
	TemplateDirs    []string
	Template        string
	JSONPath        string
	Incremental     bool
	Live            bool
	Theme           string
	NoColor         bool
	Debug           bool
	Format          string
	Environment     map[string]string
	Summary         report.AdditionalSummary

	// Resolution metadata (for debugging)
	ConfigFile string // file that was loaded, empty for none
	PathSource string // "cli", "env", "file", "default"

	// Warnings lists values that were replaced by their defaults.
	Warnings []string
}

// Defaults.
const (
	DefaultTheme  = "default"
	DefaultFormat = "auto"
)

var (
	validSort    = regexp.MustCompile(`^-?(result|testId|duration|original)$`)
	validThemes  = map[string]bool{"default": true, "orca": true, "mono": true}
	validFormats = map[string]bool{"auto": true, "reportlog": true, "gotest": true}
)

// Resolve builds the configuration from all sources with explicit priority
// order: CLI > environment > file > defaults.
func Resolve(cli CliFlags) (*ResolvedConfig, error) {
	resolved := &ResolvedConfig{
		Title:       report.DefaultTitle,
		InitialSort: report.DefaultInitialSort,
		Theme:       DefaultTheme,
		Format:      DefaultFormat,
		Environment: map[string]string{},
		PathSource:  "default",
	}

	configPath := cli.ConfigPath
	if configPath == "" {
		configPath = FindFile()
	}
	if configPath != "" {
		file, err := LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		applyFile(resolved, file)
		resolved.ConfigFile = configPath
	}

	applyEnv(resolved)
	applyCLI(resolved, cli)
	fallBackToDefaults(resolved)

	if err := validateResolvedConfig(resolved); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return resolved, nil
}

func applyFile(r *ResolvedConfig, f *FileConfig) {
	if f.Path != "" {
		r.Path = f.Path
		r.PathSource = "file"
	}
	setString(&r.Title, f.Title)
	setString(&r.InitialSort, f.InitialSort)
	setString(&r.RenderCollapsed, f.RenderCollapsed)
	setString(&r.Template, f.Template)
	setString(&r.JSONPath, f.JSONPath)
	setString(&r.Theme, f.Theme)
	setBool(&r.Incremental, f.Incremental)
	setBool(&r.Live, f.Live)
	setBool(&r.NoColor, f.NoColor)
	setBool(&r.Debug, f.Debug)
	if len(f.TemplateDirs) > 0 {
		r.TemplateDirs = f.TemplateDirs
	}
	for k, v := range f.Environment {
		r.Environment[k] = v
	}
	r.Summary = report.AdditionalSummary{
		Prefix:  f.Summary.Prefix,
		Summary: f.Summary.Summary,
		Postfix: f.Summary.Postfix,
	}
}

func applyEnv(r *ResolvedConfig) {
	if v := os.Getenv("MDREPORT_PATH"); v != "" {
		r.Path = v
		r.PathSource = "env"
	}
	setString(&r.Title, os.Getenv("MDREPORT_TITLE"))
	setString(&r.InitialSort, os.Getenv("MDREPORT_INITIAL_SORT"))
	if v, ok := os.LookupEnv("MDREPORT_RENDER_COLLAPSED"); ok {
		r.RenderCollapsed = v
	}
	if v := os.Getenv("MDREPORT_TEMPLATE_DIR"); v != "" {
		r.TemplateDirs = filepath.SplitList(v)
	}
	setBool(&r.Debug, getEnvBool("MDREPORT_DEBUG"))
	// NO_COLOR disables color for any non-empty value.
	if os.Getenv("NO_COLOR") != "" {
		r.NoColor = true
	}
}

func applyCLI(r *ResolvedConfig, cli CliFlags) {
	if cli.PathSet {
		r.Path = cli.Path
		r.PathSource = "cli"
	}
	setString(&r.Title, cli.Title)
	setString(&r.InitialSort, cli.InitialSort)
	if cli.RenderCollapsedSet {
		r.RenderCollapsed = cli.RenderCollapsed
	}
	if len(cli.TemplateDirs) > 0 {
		// Flag directories are searched before configured ones.
		r.TemplateDirs = append(append([]string{}, cli.TemplateDirs...), r.TemplateDirs...)
	}
	setString(&r.Template, cli.Template)
	setString(&r.JSONPath, cli.JSONPath)
	setString(&r.Theme, cli.Theme)
	setString(&r.Format, cli.Format)
	if cli.IncrementalSet {
		r.Incremental = cli.Incremental
	}
	if cli.LiveSet {
		r.Live = cli.Live
	}
	if cli.DebugSet {
		r.Debug = cli.Debug
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// getEnvBool reads a boolean from environment variables, trying multiple keys.
// Returns nil if none are set, or a pointer to the boolean value.
func getEnvBool(keys ...string) *bool {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				return &b
			}
		}
	}
	return nil
}

// fallBackToDefaults replaces optional values the report can live without.
func fallBackToDefaults(cfg *ResolvedConfig) {
	if !validSort.MatchString(cfg.InitialSort) {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf(
			"unknown initial sort %q, using %q (valid: result, testId, duration, original, optionally prefixed with -)",
			cfg.InitialSort, report.DefaultInitialSort))
		cfg.InitialSort = report.DefaultInitialSort
	}
}

// validateResolvedConfig returns an error for values no renderer can use.
func validateResolvedConfig(cfg *ResolvedConfig) error {
	if !validThemes[cfg.Theme] {
		return fmt.Errorf("invalid theme %q (must be: default, orca, mono)", cfg.Theme)
	}
	if !validFormats[cfg.Format] {
		return fmt.Errorf("invalid format %q (must be: auto, reportlog, gotest)", cfg.Format)
	}
	return nil
}
