package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"
)

var (
	// ErrInvalidConfig is wrapped by every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidInterval reports min_interval > max_interval or a negative bound.
	ErrInvalidInterval = fmt.Errorf("%w: invalid sampling interval", ErrInvalidConfig)
)

// Config contains all the configuration for the application
type Config struct {
	// Target settings
	URL            string  `yaml:"url"`
	RequestTimeout float64 `yaml:"request_timeout"` // Per-request timeout in seconds, 0 disables it

	// Sampling settings
	Samples     int     `yaml:"samples"`
	MinInterval float64 `yaml:"min_interval"` // Seconds
	MaxInterval float64 `yaml:"max_interval"` // Seconds

	// Filter settings
	PackageFilter  string   `yaml:"package_filter"`
	MethodFilter   string   `yaml:"method_filter"`
	ExcludePattern string   `yaml:"exclude_pattern"`
	ThreadStates   []string `yaml:"thread_states"`

	// Output settings
	OutputFile string    `yaml:"output_file"`
	PprofFile  string    `yaml:"pprof_file"`
	Pyroscope  Pyroscope `yaml:"pyroscope"`

	LogLevel string `yaml:"log_level"`
}

// Pyroscope holds the optional upload target for the final profile.
type Pyroscope struct {
	URL       string            `yaml:"url"`
	AppName   string            `yaml:"app_name"`
	AuthToken string            `yaml:"auth_token"`
	Tags      map[string]string `yaml:"tags"`
}

// Enabled reports whether an upload target is configured.
func (p Pyroscope) Enabled() bool {
	return p.URL != ""
}

// NewDefault returns a new default config
func NewDefault() *Config {
	return &Config{
		RequestTimeout: 10,
		Samples:        100,
		MinInterval:    1,
		MaxInterval:    5,
		ThreadStates:   []string{"RUNNABLE"},
		OutputFile:     "method_counts.csv",
		LogLevel:       "info",
	}
}

// Validate checks the settings record before any sampling happens.
// Every returned error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: url %q: %v", ErrInvalidConfig, c.URL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url %q must be an absolute http(s) URL", ErrInvalidConfig, c.URL)
	}

	if c.Samples <= 0 {
		return fmt.Errorf("%w: samples must be positive, got %d", ErrInvalidConfig, c.Samples)
	}
	if err := ValidateInterval(c.MinInterval, c.MaxInterval); err != nil {
		return err
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("%w: request_timeout must not be negative", ErrInvalidConfig)
	}

	if c.ExcludePattern != "" {
		if _, err := regexp.Compile(c.ExcludePattern); err != nil {
			return fmt.Errorf("%w: exclude_pattern: %v", ErrInvalidConfig, err)
		}
	}

	if c.OutputFile == "" {
		return fmt.Errorf("%w: output_file is required", ErrInvalidConfig)
	}

	if c.Pyroscope.Enabled() && c.Pyroscope.AppName == "" {
		return fmt.Errorf("%w: pyroscope.app_name is required when pyroscope.url is set", ErrInvalidConfig)
	}

	return nil
}

// ValidateInterval checks a pair of interval bounds given in seconds.
func ValidateInterval(minSeconds, maxSeconds float64) error {
	if minSeconds < 0 || maxSeconds < 0 {
		return fmt.Errorf("%w: bounds must not be negative (min=%v max=%v)", ErrInvalidInterval, minSeconds, maxSeconds)
	}
	if minSeconds > maxSeconds {
		return fmt.Errorf("%w: min_interval %v exceeds max_interval %v", ErrInvalidInterval, minSeconds, maxSeconds)
	}
	return nil
}

// MinWait returns the lower interval bound as a duration.
func (c *Config) MinWait() time.Duration {
	return Seconds(c.MinInterval)
}

// MaxWait returns the upper interval bound as a duration.
func (c *Config) MaxWait() time.Duration {
	return Seconds(c.MaxInterval)
}

// Timeout returns the per-request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return Seconds(c.RequestTimeout)
}

// Seconds converts fractional seconds to a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
