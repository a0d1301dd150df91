// Package config resolves mdreport settings.
//
// # Configuration Precedence
//
// Configuration values are resolved in the following order (highest to lowest priority):
//
//  1. CLI flags (--md, --title, --initial-sort, --theme, etc.)
//  2. Environment variables (MDREPORT_PATH, MDREPORT_TITLE, NO_COLOR, ...)
//  3. YAML config file (.mdreport.yaml in the working directory or
//     $XDG_CONFIG_HOME/mdreport/.mdreport.yaml)
//  4. Hardcoded defaults
//
// When a higher-priority source sets a value, it overrides any lower-priority values.
// A config file that exists but does not parse or match the schema is an
// error; a missing file is not.
//
// # Environment Variables
//
//   - MDREPORT_PATH: report file path
//   - MDREPORT_TITLE: report title
//   - MDREPORT_INITIAL_SORT: result, testId, duration or original, "-" prefix reverses
//   - MDREPORT_RENDER_COLLAPSED: comma-separated results rendered folded
//   - MDREPORT_TEMPLATE_DIR: template search directories, os.PathListSeparator separated
//   - MDREPORT_DEBUG: "true" or "1" enables debug logging
//   - NO_COLOR: any non-empty value disables colors
package config
