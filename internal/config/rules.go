package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// CrossServiceRule declares that errors from the listed services may be
// correlated into one group when they occur within the window.
type CrossServiceRule struct {
	Services []string
	// Window overrides the global correlation window for this rule.
	// Zero means use the global window.
	Window time.Duration

	set map[string]bool
}

// Matches reports whether both services are covered by this rule.
func (r *CrossServiceRule) Matches(a, b string) bool {
	if r.set == nil {
		r.set = make(map[string]bool, len(r.Services))
		for _, s := range r.Services {
			r.set[s] = true
		}
	}
	return r.set[a] && r.set[b]
}

// rulesFile is the on-disk YAML shape:
//
//	rules:
//	  - services: [api, db]
//	    window: 30s   # optional, defaults to the global correlation window
type rulesFile struct {
	Rules []struct {
		Services []string `yaml:"services"`
		Window   string   `yaml:"window,omitempty"`
	} `yaml:"rules"`
}

// LoadRules parses a cross-service rules file. An empty path returns no
// rules and no error so callers fall back to the generic heuristic.
func LoadRules(path string) ([]CrossServiceRule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: rules file: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: rules file %s: %w", path, err)
	}

	rules := make([]CrossServiceRule, 0, len(f.Rules))
	for i, raw := range f.Rules {
		if len(raw.Services) < 2 {
			return nil, fmt.Errorf("config: rules file %s: rule %d needs at least two services", path, i+1)
		}
		rule := CrossServiceRule{Services: raw.Services}
		if raw.Window != "" {
			d, err := time.ParseDuration(raw.Window)
			if err != nil {
				return nil, fmt.Errorf("config: rules file %s: rule %d window: %w", path, i+1, err)
			}
			if d <= 0 {
				return nil, fmt.Errorf("config: rules file %s: rule %d window must be positive", path, i+1)
			}
			rule.Window = d
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// LinePattern is a user-supplied line format: a regex with named capture
// groups plus the Go time layout for its timestamp group.
//
// Recognized group names: ts (or time), level, msg (or message), service.
// Other named captures land in the event's Fields map.
//
// YAML form:
//
//	patterns:
//	  - name: payment-svc
//	    regex: '^(?P<ts>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) \[(?P<level>\w+)\] (?P<msg>.*)$'
//	    time_layout: "2006-01-02 15:04:05"
//	    service: payment   # optional fixed service tag
type LinePattern struct {
	Name       string `yaml:"name"`
	Regex      string `yaml:"regex"`
	TimeLayout string `yaml:"time_layout"`
	Service    string `yaml:"service,omitempty"`

	// Compiled is populated by LoadPatterns.
	Compiled *regexp.Regexp `yaml:"-"`
}

type patternsFile struct {
	Patterns []LinePattern `yaml:"patterns"`
}

// LoadPatterns parses and compiles a custom patterns file. An empty path
// returns no patterns and no error.
func LoadPatterns(path string) ([]LinePattern, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: patterns file: %w", err)
	}
	var f patternsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: patterns file %s: %w", path, err)
	}
	for i := range f.Patterns {
		p := &f.Patterns[i]
		if p.Name == "" {
			return nil, fmt.Errorf("config: patterns file %s: pattern %d has no name", path, i+1)
		}
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("config: patterns file %s: pattern %q: %w", path, p.Name, err)
		}
		p.Compiled = re
	}
	return f.Patterns, nil
}
