package carousel

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// RuleConfig is one category entry in a rules file or pipeline config.
type RuleConfig struct {
	Name            string `json:"name"`
	Schema          string `json:"schema"` // "artwork", "book", or "song"
	ContainerClass  string `json:"container_class"`
	ItemClass       string `json:"item_class"`
	SkipImageLookup bool   `json:"skip_image_lookup,omitempty"`
}

// RulesFile describes the optional category-set JSON file consumers supply
// to restrict or extend the default categories.
type RulesFile struct {
	Categories []RuleConfig `json:"categories"`
}

// LoadRulesFile reads and validates a JSON category set.
func LoadRulesFile(path string) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var rf RulesFile
	if err := json.Unmarshal(b, &rf); err != nil {
		return nil, fmt.Errorf("parse rules json: %w", err)
	}
	return RulesFromConfig(rf.Categories)
}

// RulesFromConfig validates category entries and converts them to rules.
// It rejects an empty set, unnamed categories, unknown schemas, and missing
// class predicates.
func RulesFromConfig(entries []RuleConfig) ([]Rule, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("rules: no categories configured")
	}

	rules := make([]Rule, 0, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("rules: category %d has no name", i)
		}
		schema, err := ParseSchema(e.Schema)
		if err != nil {
			return nil, fmt.Errorf("rules: category %q: %w", e.Name, err)
		}
		if strings.TrimSpace(e.ContainerClass) == "" || strings.TrimSpace(e.ItemClass) == "" {
			return nil, fmt.Errorf("rules: category %q needs container_class and item_class", e.Name)
		}
		rules = append(rules, Rule{
			Name:            e.Name,
			Schema:          schema,
			ContainerClass:  e.ContainerClass,
			ItemClass:       e.ItemClass,
			SkipImageLookup: e.SkipImageLookup,
		})
	}
	return rules, nil
}
