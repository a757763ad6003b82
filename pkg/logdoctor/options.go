package logdoctor

import (
	"time"

	"github.com/rs/zerolog"
)

type options struct {
	configFile string
	storePath  string
	window     time.Duration
	log        *zerolog.Logger
}

// Option configures a LogDoctor instance.
type Option func(*options)

// WithConfigFile loads configuration from the given file instead of the
// default ./.logdoctor/config.yaml. The home config and LOGDOCTOR_*
// environment variables still apply.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configFile = path
	}
}

// WithStorePath sets the result store location, overriding configuration.
func WithStorePath(path string) Option {
	return func(o *options) {
		o.storePath = path
	}
}

// WithCorrelationWindow sets the time window inside which error events may
// join the same group, overriding configuration. Default: 60s.
func WithCorrelationWindow(d time.Duration) Option {
	return func(o *options) {
		o.window = d
	}
}

// WithLogger routes diagnostics to the given logger instead of the default
// stderr logger at the configured level.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = &log
	}
}

func defaultOptions() options {
	return options{}
}
