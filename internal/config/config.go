package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/C-BJ/val/internal/source"
)

// Options configures a type-checker run. The zero value is the default
// configuration.
type Options struct {
	// IsBuiltinModuleVisible enables resolution of 'Builtin' as a module
	// and of built-in function and type names.
	IsBuiltinModuleVisible bool `yaml:"builtin-module-visible"`

	// TracingInferenceIn scopes inference tracing to subjects covering the
	// given source line ("file:line" in config files).
	TracingInferenceIn *source.Line `yaml:"trace-inference,omitempty"`
}

// ShouldTrace reports whether inference over a subject at the site should
// be traced.
func (o Options) ShouldTrace(site source.Site) bool {
	return o.TracingInferenceIn != nil && o.TracingInferenceIn.Contains(site)
}

// fileOptions is the YAML shape of a config file.
type fileOptions struct {
	BuiltinModuleVisible bool   `yaml:"builtin-module-visible"`
	TraceInference       string `yaml:"trace-inference"`
}

// Parse decodes options from YAML.
func Parse(data []byte) (Options, error) {
	var f fileOptions
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Options{}, fmt.Errorf("invalid config: %w", err)
	}
	opts := Options{IsBuiltinModuleVisible: f.BuiltinModuleVisible}
	if f.TraceInference != "" {
		line, err := source.ParseLine(f.TraceInference)
		if err != nil {
			return Options{}, fmt.Errorf("invalid config: %w", err)
		}
		opts.TracingInferenceIn = &line
	}
	return opts, nil
}

// Load reads options from a YAML config file.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}
	return Parse(data)
}
