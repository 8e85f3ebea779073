// Package config loads extractor settings from an HCL or YAML file.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/walteh/gotwoslash/pkg/extract"
)

// Config is the file format. Unset fields keep the extractor defaults.
type Config struct {
	// HCL object literal; converted to CompilerOptions after decoding
	CompilerOptionsHCL cty.Value      `hcl:"compiler_options,optional" yaml:"-" json:"-"`
	CompilerOptions    map[string]any `yaml:"compiler_options,omitempty" json:"compiler_options,omitempty"`

	Themes            []string `hcl:"themes,optional" yaml:"themes,omitempty" json:"themes,omitempty"`
	Cache             *bool    `hcl:"cache,optional" yaml:"cache,omitempty" json:"cache,omitempty"`
	CacheSize         *int     `hcl:"cache_size,optional" yaml:"cache_size,omitempty" json:"cache_size,omitempty"`
	IncludeDefaultLib *bool    `hcl:"include_default_lib,optional" yaml:"include_default_lib,omitempty" json:"include_default_lib,omitempty"`
	Concurrency       *int     `hcl:"concurrency,optional" yaml:"concurrency,omitempty" json:"concurrency,omitempty"`

	Analyzer *AnalyzerBlock `hcl:"analyzer,block" yaml:"analyzer,omitempty" json:"analyzer,omitempty"`
}

// AnalyzerBlock describes the external analyzer process.
type AnalyzerBlock struct {
	Command []string `hcl:"command,optional" yaml:"command,omitempty" json:"command,omitempty"`
	Timeout string   `hcl:"timeout,optional" yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Load reads path as YAML when it ends in .yaml or .yml and as HCL otherwise.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes data; filename picks the format and labels diagnostics.
func Parse(data []byte, filename string) (*Config, error) {
	if strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml") {
		var cfg Config
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, errors.Errorf("parsing YAML: %w", err)
		}
		return &cfg, nil
	}

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var cfg Config
	diags = gohcl.DecodeBody(hclFile.Body, ctx, &cfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	if !cfg.CompilerOptionsHCL.IsNull() {
		opts, err := ctyToMap(cfg.CompilerOptionsHCL)
		if err != nil {
			return nil, errors.Errorf("decoding compiler_options: %w", err)
		}
		cfg.CompilerOptions = opts
	}

	return &cfg, nil
}

func ctyToMap(v cty.Value) (map[string]any, error) {
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, errors.Errorf("expected an object, got %s", v.Type().FriendlyName())
	}

	data, err := ctyjson.SimpleJSONValue{Value: v}.MarshalJSON()
	if err != nil {
		return nil, errors.Errorf("encoding value: %w", err)
	}

	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Errorf("decoding value: %w", err)
	}
	return out, nil
}

// Options applies the file over extract.DefaultOptions.
func (c *Config) Options() (extract.Options, error) {
	opts := extract.DefaultOptions()
	if c == nil {
		return opts, nil
	}

	if c.CompilerOptions != nil {
		opts.CompilerOptions = c.CompilerOptions
	}
	if len(c.Themes) > 0 {
		opts.Themes = c.Themes
	}
	if c.Cache != nil {
		opts.Cache = *c.Cache
	}
	if c.CacheSize != nil {
		opts.CacheSize = *c.CacheSize
	}
	if c.IncludeDefaultLib != nil {
		opts.IncludeDefaultLib = *c.IncludeDefaultLib
	}
	if c.Concurrency != nil {
		if *c.Concurrency <= 0 {
			return opts, errors.Errorf("concurrency must be positive, got %d", *c.Concurrency)
		}
		opts.Concurrency = *c.Concurrency
	}

	if c.Analyzer != nil && c.Analyzer.Timeout != "" {
		timeout, err := time.ParseDuration(c.Analyzer.Timeout)
		if err != nil {
			return opts, errors.Errorf("parsing analyzer timeout: %w", err)
		}
		opts.Timeout = timeout
	}

	return opts, nil
}

// AnalyzerCommand is the configured analyzer command line, if any.
func (c *Config) AnalyzerCommand() []string {
	if c == nil || c.Analyzer == nil {
		return nil
	}
	return c.Analyzer.Command
}
