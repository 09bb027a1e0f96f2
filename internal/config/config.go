// Package config defines the JSON pipeline configuration for carousel_etl.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"serpcarousel/internal/carousel"
)

type Pipeline struct {
	Job     string  `json:"job"`
	Source  Source  `json:"source"`
	Rules   Rules   `json:"rules"`
	Output  Output  `json:"output"`
	Storage Storage `json:"storage"`
	Metrics Metrics `json:"metrics"`
	Runtime Runtime `json:"runtime"`
}

type Source struct {
	// Kind: "file" extracts one page, "dir" walks every regular file under
	// Path in name order.
	Kind string `json:"kind"`
	Path string `json:"path"`
}

type Rules struct {
	// File points at a categories JSON document. When both File and
	// Categories are empty the built-in rule set applies.
	File       string                `json:"file,omitempty"`
	Categories []carousel.RuleConfig `json:"categories,omitempty"`
}

type Output struct {
	// Path receives the extraction JSON; empty means stdout.
	Path   string `json:"path,omitempty"`
	Indent bool   `json:"indent,omitempty"`
}

type Storage struct {
	// Kind: "postgres" | "mssql" | "sqlite". Empty or "none" disables
	// storage.
	Kind       string `json:"kind,omitempty"`
	DSN        string `json:"dsn,omitempty"`
	Table      string `json:"table,omitempty"`
	AutoCreate bool   `json:"auto_create,omitempty"`
}

type Metrics struct {
	// Backend: "datadog" | "pushgateway". Empty or "none" disables metrics.
	Backend      string   `json:"backend,omitempty"`
	PushURL      string   `json:"push_url,omitempty"`
	FlushSeconds int      `json:"flush_seconds,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// Runtime controls pipeline execution behavior.
type Runtime struct {
	// Workers bounds concurrent page parses in dir mode; <=1 means serial.
	Workers int `json:"workers,omitempty"`
}

// Load reads and parses a pipeline config file.
func Load(path string) (Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	var p Pipeline
	if err := json.Unmarshal(raw, &p); err != nil {
		return Pipeline{}, fmt.Errorf("parse config: %w", err)
	}
	return p, nil
}

// Validate reports the first structural problem found, using the dotted
// JSON path of the offending field.
func (p Pipeline) Validate() error {
	switch p.Source.Kind {
	case "file", "dir":
	default:
		return fmt.Errorf("source.kind must be file or dir")
	}
	if p.Source.Path == "" {
		return fmt.Errorf("source.path is required")
	}
	if p.Rules.File != "" && len(p.Rules.Categories) > 0 {
		return fmt.Errorf("rules.file and rules.categories are mutually exclusive")
	}
	if p.Storage.Kind != "" && p.Storage.Kind != "none" && p.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required when storage.kind is set")
	}
	switch p.Metrics.Backend {
	case "", "none", "datadog", "pushgateway":
	default:
		return fmt.Errorf("metrics.backend must be datadog, pushgateway, or none")
	}
	if p.Metrics.Backend == "pushgateway" && p.Metrics.PushURL == "" {
		return fmt.Errorf("metrics.push_url is required for the pushgateway backend")
	}
	if p.Metrics.FlushSeconds < 0 {
		return fmt.Errorf("metrics.flush_seconds must not be negative")
	}
	if p.Runtime.Workers < 0 {
		return fmt.Errorf("runtime.workers must not be negative")
	}
	return nil
}

// ResolveRules returns the extraction rule set the pipeline should run:
// inline categories first, then a rules file, then the built-in defaults.
func (p Pipeline) ResolveRules() ([]carousel.Rule, error) {
	if len(p.Rules.Categories) > 0 {
		return carousel.RulesFromConfig(p.Rules.Categories)
	}
	if p.Rules.File != "" {
		return carousel.LoadRulesFile(p.Rules.File)
	}
	return carousel.DefaultRules(), nil
}
