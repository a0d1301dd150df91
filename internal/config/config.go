package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory and the
// user config directory.
const FileName = ".mdreport.yaml"

//go:embed schema.json
var schemaJSON []byte

var (
	fileSchema  *jsonschema.Schema
	compileOnce sync.Once
	compileErr  error
)

// FileConfig is the content of a .mdreport.yaml file.
type FileConfig struct {
	Path            string            `yaml:"path"`
	Title           string            `yaml:"title"`
	InitialSort     string            `yaml:"initial_sort"`
	RenderCollapsed string            `yaml:"render_collapsed"`
	TemplateDirs    []string          `yaml:"template_dirs"`
	Template        string            `yaml:"template"`
	JSONPath        string            `yaml:"json"`
	Incremental     *bool             `yaml:"incremental"`
	Live            *bool             `yaml:"live"`
	Theme           string            `yaml:"theme"`
	NoColor         *bool             `yaml:"no_color"`
	Debug           *bool             `yaml:"debug"`
	Environment     map[string]string `yaml:"environment"`
	Summary         struct {
		Prefix  []string `yaml:"prefix"`
		Summary []string `yaml:"summary"`
		Postfix []string `yaml:"postfix"`
	} `yaml:"summary"`
}

func compileSchema() error {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal config schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("config.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add config schema resource: %w", err)
			return
		}
		fileSchema, err = compiler.Compile("config.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile config schema: %w", err)
		}
	})
	return compileErr
}

// Validate checks YAML config data against the embedded schema.
func Validate(data []byte) error {
	if err := compileSchema(); err != nil {
		return err
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	if raw == nil {
		// Empty file.
		return nil
	}
	// Round-trip through JSON so the validator sees JSON types.
	js, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("config is not a plain mapping: %w", err)
	}
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(js))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := fileSchema.Validate(v); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// LoadFile reads and validates the config file at path.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// FindFile returns the config file to use: ./.mdreport.yaml first, then
// <user config dir>/mdreport/.mdreport.yaml. Empty when neither exists.
func FindFile() string {
	if fileExists(FileName) {
		return FileName
	}
	configHome, err := os.UserConfigDir()
	// An empty or root config dir is not usable.
	if err != nil || configHome == "" || configHome == "/" {
		return ""
	}
	xdgPath := filepath.Join(configHome, "mdreport", FileName)
	if fileExists(xdgPath) {
		return xdgPath
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
