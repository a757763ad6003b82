// Package config loads logdoctor configuration from defaults, YAML config
// files and LOGDOCTOR_* environment variables, in that order of precedence.
//
// Two file locations are consulted: $HOME/.logdoctor/config.yaml and the
// project-local .logdoctor/config.yaml, with project keys overriding home
// keys. The result is decoded once into an immutable Config value that is
// passed into component constructors; nothing reads viper after Load returns.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Version is the logdoctor release version, overridable at link time.
var Version = "0.3.0"

// Config is the complete runtime configuration.
type Config struct {
	Correlation CorrelationConfig
	Parse       ParseConfig
	Source      SourceConfig
	Store       StoreConfig
	Semantic    SemanticConfig
	Log         LogConfig
}

// CorrelationConfig controls error grouping.
type CorrelationConfig struct {
	// Window is how long a group stays open after its last member.
	Window time.Duration
	// Similarity is the minimum normalized signature similarity
	// (0..1) for a fuzzy group match. 1 requires exact signatures.
	Similarity float64
	// CrossServiceFallback admits errors from other origins into a
	// group purely on temporal proximity when no explicit rule matches.
	CrossServiceFallback bool
	// RulesFile optionally points at a YAML file of cross-service rules.
	RulesFile string
}

// ParseConfig controls line parsing and normalization.
type ParseConfig struct {
	// PatternsFile optionally points at a YAML file of custom line patterns.
	PatternsFile string
	// MaxContinuationLines bounds how many continuation lines (stack
	// trace frames etc.) may be folded into a single event.
	MaxContinuationLines int
	// Timezone is applied to zone-naive timestamps, e.g. "UTC" or
	// "America/New_York".
	Timezone string
	// SeverityOverrides maps extra level tokens to canonical names,
	// e.g. {"oops": "error"}.
	SeverityOverrides map[string]string
}

// SourceConfig controls log origins and the merge stage.
type SourceConfig struct {
	// DirGlobs selects which files a directory origin picks up.
	DirGlobs []string
	// PollInterval is the sleep between polls in tail/follow mode.
	PollInterval time.Duration
	// HTTPTimeout bounds each HTTP log fetch.
	HTTPTimeout time.Duration
	// DockerTimeout bounds container log attachment.
	DockerTimeout time.Duration
	// MergeLookback is the merge reorder buffer size in lines.
	MergeLookback int
	// MergeHorizon is how long a line may wait in the reorder buffer.
	MergeHorizon time.Duration
}

// StoreConfig controls the result store.
type StoreConfig struct {
	// Path is the sqlite database location.
	Path string
}

// SemanticConfig controls the optional similar-error search.
type SemanticConfig struct {
	// Enabled turns the embedding index on. Even when enabled the
	// feature degrades to unavailable if the model files are missing.
	Enabled bool
	// ModelDir holds model.onnx, vocab.txt and projection.safetensors.
	ModelDir string
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level string
}

// Load reads configuration from all sources. cfgFile, if non-empty,
// replaces the project-local config file. Missing config files are fine;
// an unreadable explicit cfgFile is an error.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, ".logdoctor", "config.yaml"))
		_ = v.ReadInConfig()
	}

	project := filepath.Join(".", ".logdoctor", "config.yaml")
	if cfgFile != "" {
		project = cfgFile
	}
	v.SetConfigFile(project)
	if err := v.MergeInConfig(); err != nil {
		if cfgFile != "" {
			return Config{}, fmt.Errorf("config: read %s: %w", cfgFile, err)
		}
	}

	v.SetEnvPrefix("LOGDOCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Config{
		Correlation: CorrelationConfig{
			Window:               v.GetDuration("correlation.window"),
			Similarity:           v.GetFloat64("correlation.similarity"),
			CrossServiceFallback: v.GetBool("correlation.cross_service_fallback"),
			RulesFile:            v.GetString("correlation.rules_file"),
		},
		Parse: ParseConfig{
			PatternsFile:         v.GetString("parse.patterns_file"),
			MaxContinuationLines: v.GetInt("parse.max_continuation_lines"),
			Timezone:             v.GetString("parse.timezone"),
			SeverityOverrides:    v.GetStringMapString("parse.severity_overrides"),
		},
		Source: SourceConfig{
			DirGlobs:      v.GetStringSlice("source.dir_globs"),
			PollInterval:  v.GetDuration("source.poll_interval"),
			HTTPTimeout:   v.GetDuration("source.http_timeout"),
			DockerTimeout: v.GetDuration("source.docker_timeout"),
			MergeLookback: v.GetInt("source.merge_lookback"),
			MergeHorizon:  v.GetDuration("source.merge_horizon"),
		},
		Store: StoreConfig{
			Path: v.GetString("store.path"),
		},
		Semantic: SemanticConfig{
			Enabled:  v.GetBool("semantic.enabled"),
			ModelDir: v.GetString("semantic.model_dir"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("correlation.window", "60s")
	v.SetDefault("correlation.similarity", 0.82)
	v.SetDefault("correlation.cross_service_fallback", true)
	v.SetDefault("correlation.rules_file", "")

	v.SetDefault("parse.patterns_file", "")
	v.SetDefault("parse.max_continuation_lines", 64)
	v.SetDefault("parse.timezone", "UTC")

	v.SetDefault("source.dir_globs", []string{"*.log", "*.txt", "*.json", "*.gz"})
	v.SetDefault("source.poll_interval", "500ms")
	v.SetDefault("source.http_timeout", "30s")
	v.SetDefault("source.docker_timeout", "10s")
	v.SetDefault("source.merge_lookback", 64)
	v.SetDefault("source.merge_horizon", "250ms")

	v.SetDefault("store.path", filepath.Join(".logdoctor", "logdoctor.db"))

	v.SetDefault("semantic.enabled", true)
	v.SetDefault("semantic.model_dir", filepath.Join(".logdoctor", "models"))

	v.SetDefault("log.level", "info")
}

var logLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "fatal": true,
}

// Validate reports every problem it finds, not just the first.
func (c Config) Validate() error {
	var errs []error

	if c.Correlation.Window <= 0 {
		errs = append(errs, fmt.Errorf("correlation window must be positive, got %v", c.Correlation.Window))
	}
	if c.Correlation.Similarity < 0 || c.Correlation.Similarity > 1 {
		errs = append(errs, fmt.Errorf("correlation similarity must be in [0,1], got %g", c.Correlation.Similarity))
	}
	if c.Correlation.RulesFile != "" {
		if _, err := os.Stat(c.Correlation.RulesFile); err != nil {
			errs = append(errs, fmt.Errorf("correlation rules file: %w", err))
		}
	}

	if c.Parse.MaxContinuationLines < 0 {
		errs = append(errs, fmt.Errorf("max continuation lines must be >= 0, got %d", c.Parse.MaxContinuationLines))
	}
	if c.Parse.Timezone != "" {
		if _, err := time.LoadLocation(c.Parse.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("timezone: %w", err))
		}
	}
	if c.Parse.PatternsFile != "" {
		if _, err := os.Stat(c.Parse.PatternsFile); err != nil {
			errs = append(errs, fmt.Errorf("patterns file: %w", err))
		}
	}

	if c.Source.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %v", c.Source.PollInterval))
	}
	if c.Source.MergeLookback < 1 {
		errs = append(errs, fmt.Errorf("merge lookback must be >= 1, got %d", c.Source.MergeLookback))
	}
	if c.Source.MergeHorizon < 0 {
		errs = append(errs, fmt.Errorf("merge horizon must be >= 0, got %v", c.Source.MergeHorizon))
	}

	if c.Store.Path == "" {
		errs = append(errs, errors.New("store path must not be empty"))
	}

	if !logLevels[c.Log.Level] {
		errs = append(errs, fmt.Errorf("log level %q is not one of trace|debug|info|warn|error|fatal", c.Log.Level))
	}

	return errors.Join(errs...)
}

// Location resolves the configured timezone. Validate must have passed.
func (c Config) Location() *time.Location {
	if c.Parse.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Parse.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
