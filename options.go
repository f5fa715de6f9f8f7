package virtfs

import (
	"github.com/nwerse/virtfs/data"
	"github.com/nwerse/virtfs/log"
)

type Options struct {
	LogLevel      log.LogLevel
	LogFile       string
	JSONLog       bool
	NoTerminalLog bool
	Comparison    data.PathComparison
}

type Option func(*Options) error

func newDefaultOptions() *Options {
	return &Options{
		LogLevel:   log.Info,
		Comparison: data.Ordinal,
	}
}

func WithLogLevel(level log.LogLevel) Option {
	return func(opts *Options) error {
		opts.LogLevel = level
		return nil
	}
}

// WithLogLevelName sets the log level from its textual name, as read from
// configuration. Unknown names fall back to Info.
func WithLogLevelName(name string) Option {
	return func(opts *Options) error {
		opts.LogLevel = log.ParseLevel(name)
		return nil
	}
}

func WithLogFile(file string) Option {
	return func(opts *Options) error {
		opts.LogFile = file
		return nil
	}
}

// WithJSONLog switches log output from colored text lines to JSON entries.
func WithJSONLog() Option {
	return func(opts *Options) error {
		opts.JSONLog = true
		return nil
	}
}

func WithoutTerminalLog() Option {
	return func(opts *Options) error {
		opts.NoTerminalLog = true
		return nil
	}
}

// WithComparison selects the path comparison strategy used by the mount
// tree. Fixed at construction; Ordinal is the default.
func WithComparison(cmp data.PathComparison) Option {
	return func(opts *Options) error {
		opts.Comparison = cmp
		return nil
	}
}
