// Package config provides YAML configuration parsing for the pianista CLI.
//
// The file is optional: every setting has a default, and the API location
// and key fall back to the PIANISTA_API_BASE_URL and PIANISTA_API_KEY
// environment variables.
//
// Example configuration:
//
//	api:
//	  base_url: ${PIANISTA_API_BASE_URL:-https://api.pianista.example}
//	  api_key: ${PIANISTA_API_KEY}
//	  timeout: 30s
//	  retry:
//	    attempts: 3
//	    delay: 1s
//	  rate_limit: 5
//
//	polling:
//	  plan:
//	    max_attempts: 40
//	  solve:
//	    initial_interval: 2s
//	    max_interval: 20s
//
//	server:
//	  port: 8080
//	  title: Planning jobs
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvBaseURL and EnvAPIKey are read when the file leaves the fields empty.
	EnvBaseURL = "PIANISTA_API_BASE_URL"
	EnvAPIKey  = "PIANISTA_API_KEY"

	// DefaultBaseURL is used when neither the file nor the environment set one.
	DefaultBaseURL = "http://localhost:8000"

	defaultPort = 8080

	// minPollInterval keeps a misconfigured file from hammering the API.
	minPollInterval = 1 * time.Second
	maxPollInterval = 1 * time.Hour
	maxRetries      = 10
)

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file structure.
// Use [Load], [Parse] or [Default] to create a Config.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Polling PollingConfig `yaml:"polling"`
	Server  ServerConfig  `yaml:"server"`
}

// APIConfig locates and tunes access to the Pianista API.
type APIConfig struct {
	// BaseURL is the API root. Supports ${VAR} and ${VAR:-default}.
	BaseURL string `yaml:"base_url"`

	// APIKey is sent as the subscription key header. Supports env substitution.
	APIKey string `yaml:"api_key"`

	// Timeout bounds a single HTTP request. Zero keeps the client default (30s).
	Timeout Duration `yaml:"timeout"`

	// Retry controls transport-error retries of status requests.
	Retry *RetryConfig `yaml:"retry"`

	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit"`
}

// RetryConfig configures transport-error retries. A nil RetryConfig keeps
// the client default (3 retries, 1s apart); attempts: 0 disables retries.
type RetryConfig struct {
	Attempts int      `yaml:"attempts"`
	Delay    Duration `yaml:"delay"`
}

// PollingConfig overrides the job poll schedules.
type PollingConfig struct {
	// Plan applies to PDDL planning jobs.
	Plan BackoffConfig `yaml:"plan"`

	// Solve applies to MiniZinc jobs.
	Solve BackoffConfig `yaml:"solve"`
}

// BackoffConfig overrides parts of a poll schedule. Zero fields keep the
// preset value for the job kind.
type BackoffConfig struct {
	InitialInterval Duration `yaml:"initial_interval"`
	MaxInterval     Duration `yaml:"max_interval"`
	MaxAttempts     int      `yaml:"max_attempts"`
	Multiplier      float64  `yaml:"multiplier"`
}

// IsZero reports whether no field is overridden.
func (b BackoffConfig) IsZero() bool {
	return b == BackoffConfig{}
}

// ServerConfig configures the local job gateway.
type ServerConfig struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Title is the dashboard title. Supports env substitution.
	Title string `yaml:"title"`

	// MaxTracked limits concurrently polled jobs. Zero keeps the default.
	MaxTracked int `yaml:"max_tracked"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	return Parse(nil)
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in api.base_url, api.api_key and
// server.title. Empty base_url and api_key fall back to the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables, applies environment
// fallbacks and validates the config.
func (c *Config) expandAndValidate() error {
	var err error
	if c.API.BaseURL, err = expandEnvVars(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if c.API.APIKey, err = expandEnvVars(c.API.APIKey); err != nil {
		return fmt.Errorf("api.api_key: %w", err)
	}
	if c.Server.Title, err = expandEnvVars(c.Server.Title); err != nil {
		return fmt.Errorf("server.title: %w", err)
	}

	if c.API.BaseURL == "" {
		c.API.BaseURL = os.Getenv(EnvBaseURL)
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.APIKey == "" {
		c.API.APIKey = os.Getenv(EnvAPIKey)
	}

	parsedURL, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: invalid url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("api.base_url: scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("api.base_url: host is required")
	}

	if t := c.API.Timeout.Duration(); t != 0 && t < time.Second {
		return fmt.Errorf("api.timeout must be at least 1s if specified, got %s", t)
	}
	if r := c.API.Retry; r != nil {
		if r.Attempts < 0 || r.Attempts > maxRetries {
			return fmt.Errorf("api.retry.attempts must be between 0 and %d, got %d", maxRetries, r.Attempts)
		}
		if r.Delay.Duration() < 0 {
			return fmt.Errorf("api.retry.delay cannot be negative, got %s", r.Delay.Duration())
		}
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit cannot be negative, got %g", c.API.RateLimit)
	}

	if err := c.Polling.Plan.validate("polling.plan"); err != nil {
		return err
	}
	if err := c.Polling.Solve.validate("polling.solve"); err != nil {
		return err
	}
	// overrides are merged with the presets, so the result must be checked too
	if err := c.PlanPolicy().Validate(); err != nil {
		return fmt.Errorf("polling.plan: %w", err)
	}
	if err := c.SolvePolicy().Validate(); err != nil {
		return fmt.Errorf("polling.solve: %w", err)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxTracked < 0 {
		return fmt.Errorf("server.max_tracked cannot be negative, got %d", c.Server.MaxTracked)
	}

	return nil
}

// validate checks the overridden fields of a schedule.
func (b BackoffConfig) validate(context string) error {
	for name, d := range map[string]Duration{
		"initial_interval": b.InitialInterval,
		"max_interval":     b.MaxInterval,
	} {
		if d == 0 {
			continue
		}
		if d.Duration() < minPollInterval {
			return fmt.Errorf("%s.%s must be at least %s, got %s", context, name, minPollInterval, d.Duration())
		}
		if d.Duration() > maxPollInterval {
			return fmt.Errorf("%s.%s must not exceed %s, got %s", context, name, maxPollInterval, d.Duration())
		}
	}

	if b.InitialInterval != 0 && b.MaxInterval != 0 && b.MaxInterval < b.InitialInterval {
		return fmt.Errorf("%s: max_interval (%s) must not be less than initial_interval (%s)",
			context, b.MaxInterval.Duration(), b.InitialInterval.Duration())
	}
	if b.MaxAttempts < 0 {
		return fmt.Errorf("%s.max_attempts cannot be negative, got %d", context, b.MaxAttempts)
	}
	if b.Multiplier != 0 && b.Multiplier < 1 {
		return fmt.Errorf("%s.multiplier must be at least 1, got %g", context, b.Multiplier)
	}
	return nil
}
