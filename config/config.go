// Package config provides YAML configuration parsing for liveboard.
//
// This package enables running liveboard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Ops Board
//	port: 8080
//	refresh_interval: 5m
//
//	storage:
//	  driver: sqlite
//	  path: /var/lib/liveboard/history.db
//	  retention: 168h
//
//	panels:
//	  - name: weather
//	    url: https://api.example.com/weather?key=${WEATHER_KEY}
//	    interval: 10m
//	    transform: json:current
//	    persist: true
//	    placeholder:
//	      temp_c: null
//
//	  - name: transit
//	    url: https://transit.example.com/departures
//	    interval: 1m
//	    ttl: 90s
//	    rate_limit: 30s
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/liveboard/internal/schedule"
)

const (
	defaultPort            = 8080
	defaultRefreshInterval = 5 * time.Minute
	defaultMaxConcurrency  = 10
	defaultRetention       = 7 * 24 * time.Hour
	defaultMaintenance     = "@daily"
	defaultSubjectPrefix   = "liveboard.panels"

	// minRefreshInterval prevents accidental hammering of upstreams.
	minRefreshInterval = time.Second
	maxRefreshInterval = time.Hour
)

// Config is the root configuration structure for liveboard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the board title. Defaults to "Liveboard" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port" validate:"gte=1,lte=65535"`

	// RefreshInterval is the interval for panels that set none.
	// Defaults to 5m.
	RefreshInterval Duration `yaml:"refresh_interval"`

	// MaxConcurrency bounds parallel fetches during the initial fetch.
	// Defaults to 10.
	MaxConcurrency int `yaml:"max_concurrency" validate:"gte=1"`

	Log         LogConfig         `yaml:"log"`
	Storage     StorageConfig     `yaml:"storage"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Relay       RelayConfig       `yaml:"relay"`

	// Panels defines the board's panels.
	Panels []PanelConfig `yaml:"panels" validate:"required,min=1,dive"`
}

// LogConfig controls the binary's logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format is console or json. Defaults to console.
	Format string `yaml:"format" validate:"oneof=console json"`
}

// StorageConfig selects the history store.
type StorageConfig struct {
	// Driver is none, memory or sqlite. Defaults to none.
	Driver string `yaml:"driver" validate:"oneof=none memory sqlite sqlite3"`

	// Path is the SQLite database file. Required for sqlite.
	Path string `yaml:"path" validate:"required_if=Driver sqlite,required_if=Driver sqlite3"`

	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout Duration `yaml:"busy_timeout"`

	// Retention is how long history records are kept. Defaults to 168h.
	Retention Duration `yaml:"retention"`
}

// MaintenanceConfig schedules history pruning.
type MaintenanceConfig struct {
	// Schedule is a cron expression or descriptor. Defaults to "@daily".
	Schedule string `yaml:"schedule"`
}

// RelayConfig enables publishing panel updates to NATS.
type RelayConfig struct {
	// NATSURL is the server to publish to. Empty disables the relay.
	NATSURL string `yaml:"nats_url" validate:"omitempty,url"`

	// SubjectPrefix prefixes every subject. Defaults to "liveboard.panels".
	SubjectPrefix string `yaml:"subject_prefix"`
}

// PanelConfig defines a single panel polled over HTTP.
type PanelConfig struct {
	// Name identifies the panel in the API and in notifications.
	Name string `yaml:"name" validate:"required,ne=maintenance"`

	// URL is the upstream to poll.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url" validate:"required,url"`

	// Method is the HTTP method (GET, HEAD, POST). Defaults to GET.
	Method string `yaml:"method" validate:"omitempty,oneof=GET HEAD POST"`

	// Headers are custom HTTP headers sent with each request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Interval is how often the panel is refreshed.
	// Defaults to the global refresh_interval. Must be between 1s and 1h.
	Interval Duration `yaml:"interval"`

	// TTL is how long a payload stays servable. Must not be shorter than
	// the interval. Defaults to 1.5 intervals.
	TTL Duration `yaml:"ttl" validate:"gtefield=Interval"`

	// Timeout bounds one fetch. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Persist appends fresh payloads to history.
	Persist bool `yaml:"persist"`

	// RateLimit is the minimum gap between upstream requests.
	RateLimit Duration `yaml:"rate_limit"`

	// Transform determines how the response body becomes the payload.
	// Can be shorthand ("json:data.items", "text") or structured.
	Transform TransformConfig `yaml:"transform"`

	// Wrap nests the transformed payload under this field.
	Wrap string `yaml:"wrap"`

	// Placeholder holds the fields served, with an error marker, when the
	// panel has no data.
	Placeholder map[string]any `yaml:"placeholder"`
}

// TransformConfig specifies how a response body becomes a payload.
//
// It supports two formats in YAML:
//
// Shorthand string:
//
//	transform: raw
//	transform: text
//	transform: json:data.departures
//	transform: regex:Temperature:\s*([\d.]+)
//
// Structured object:
//
//	transform:
//	  type: regex
//	  pattern: 'Temp: ([\d.]+)C, (\w+)'
//	  fields: [temp_c, sky]
type TransformConfig struct {
	// Type is the transform type: "default", "raw", "text", "json", "regex".
	Type string

	// Path is the JSON path (for type: json).
	Path string

	// Pattern is the regular expression (for type: regex).
	Pattern string

	// Fields names unnamed capture groups (for type: regex).
	Fields []string
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

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for TransformConfig.
func (t *TransformConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return t.parseShorthand(s)
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Type    string   `yaml:"type"`
			Path    string   `yaml:"path"`
			Pattern string   `yaml:"pattern"`
			Fields  []string `yaml:"fields"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		t.Type = raw.Type
		t.Path = raw.Path
		t.Pattern = raw.Pattern
		t.Fields = raw.Fields
		return nil
	}

	return fmt.Errorf("transform must be a string or object, got %v", node.Kind)
}

// parseShorthand parses transform shorthand syntax.
//
// Supported formats:
//   - "default" → JSON as-is, otherwise text
//   - "raw" → JSON as-is
//   - "text" → {"text": body}
//   - "json:path" → one value from a JSON body
//   - "regex:pattern" → capture groups
func (t *TransformConfig) parseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if idx := strings.Index(s, ":"); idx != -1 {
		t.Type = s[:idx]
		value := s[idx+1:]

		switch t.Type {
		case "json":
			t.Path = value
		case "regex":
			t.Pattern = value
		default:
			return fmt.Errorf("unknown transform type %q", t.Type)
		}
		return nil
	}

	switch s {
	case "default", "raw", "text":
		t.Type = s
	default:
		return fmt.Errorf("unknown transform %q (expected 'default', 'raw', 'text', 'json:path', or 'regex:pattern')", s)
	}
	return nil
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

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
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
// Defaults are applied first, then environment variables are expanded in
// URLs, header values, the storage path and the NATS URL, and finally the
// result is validated.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = Duration(defaultRefreshInterval)
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = defaultMaxConcurrency
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "none"
	}
	if c.Storage.Retention == 0 {
		c.Storage.Retention = Duration(defaultRetention)
	}
	if c.Maintenance.Schedule == "" {
		c.Maintenance.Schedule = defaultMaintenance
	}
	if c.Relay.SubjectPrefix == "" {
		c.Relay.SubjectPrefix = defaultSubjectPrefix
	}

	for i := range c.Panels {
		p := &c.Panels[i]
		if p.Interval == 0 {
			p.Interval = c.RefreshInterval
		}
		if p.TTL == 0 {
			p.TTL = p.Interval * 3 / 2
		}
	}
}

func (c *Config) expandEnv() error {
	for i := range c.Panels {
		p := &c.Panels[i]

		expanded, err := expandEnvVars(p.URL)
		if err != nil {
			return fmt.Errorf("panels[%d] (%s): url: %w", i, p.Name, err)
		}
		p.URL = expanded

		for k, v := range p.Headers {
			expanded, err := expandEnvVars(v)
			if err != nil {
				return fmt.Errorf("panels[%d] (%s): headers[%s]: %w", i, p.Name, k, err)
			}
			p.Headers[k] = expanded
		}
	}

	var err error
	if c.Storage.Path, err = expandEnvVars(c.Storage.Path); err != nil {
		return fmt.Errorf("storage.path: %w", err)
	}
	if c.Relay.NATSURL, err = expandEnvVars(c.Relay.NATSURL); err != nil {
		return fmt.Errorf("relay.nats_url: %w", err)
	}
	return nil
}

// structValidator reports field errors by their YAML names.
var structValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validate checks struct tags, then the rules tags cannot express.
func (c *Config) validate() error {
	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]error, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, errors.New(fieldMessage(fe)))
		}
		return errors.Join(msgs...)
	}

	if c.RefreshInterval.Duration() < minRefreshInterval {
		return fmt.Errorf("refresh_interval must be at least %s, got %s", minRefreshInterval, c.RefreshInterval.Duration())
	}
	if c.Storage.Retention.Duration() < 0 {
		return fmt.Errorf("storage.retention cannot be negative, got %s", c.Storage.Retention.Duration())
	}
	if err := schedule.ValidateSpec(c.Maintenance.Schedule); err != nil {
		return fmt.Errorf("maintenance.schedule: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Panels))
	for i := range c.Panels {
		if err := c.Panels[i].validate(i); err != nil {
			return err
		}
		name := c.Panels[i].Name
		if _, dup := seen[name]; dup {
			return fmt.Errorf("panels[%d]: duplicate panel name %q", i, name)
		}
		seen[name] = struct{}{}
	}

	return nil
}

func (p *PanelConfig) validate(i int) error {
	parsedURL, err := url.Parse(p.URL)
	if err != nil {
		return fmt.Errorf("panels[%d] (%s): invalid url: %w", i, p.Name, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("panels[%d] (%s): url scheme must be http or https, got %q", i, p.Name, parsedURL.Scheme)
	}

	if p.Interval.Duration() < minRefreshInterval {
		return fmt.Errorf("panels[%d] (%s): interval must be at least 1s, got %s",
			i, p.Name, p.Interval.Duration())
	}
	if p.Interval.Duration() > maxRefreshInterval {
		return fmt.Errorf("panels[%d] (%s): interval must not exceed 1h, got %s",
			i, p.Name, p.Interval.Duration())
	}

	if p.Timeout != 0 && p.Timeout.Duration() < time.Second {
		return fmt.Errorf("panels[%d] (%s): timeout must be at least 1s if specified, got %s",
			i, p.Name, p.Timeout.Duration())
	}
	if p.RateLimit < 0 {
		return fmt.Errorf("panels[%d] (%s): rate_limit cannot be negative, got %s",
			i, p.Name, p.RateLimit.Duration())
	}

	return validateTransform(&p.Transform, fmt.Sprintf("panels[%d] (%s)", i, p.Name))
}

// validateTransform validates a transform configuration.
func validateTransform(t *TransformConfig, context string) error {
	switch t.Type {
	case "", "default", "raw", "text":
		return nil
	case "json":
		if t.Path == "" {
			return fmt.Errorf("%s: transform type 'json' requires a path", context)
		}
	case "regex":
		if t.Pattern == "" {
			return fmt.Errorf("%s: transform type 'regex' requires a pattern", context)
		}
		re, err := regexp.Compile(t.Pattern)
		if err != nil {
			return fmt.Errorf("%s: invalid transform pattern: %w", context, err)
		}
		if re.NumSubexp() == 0 {
			return fmt.Errorf("%s: transform pattern must contain a capture group", context)
		}
	default:
		return fmt.Errorf("%s: unknown transform type %q", context, t.Type)
	}
	return nil
}

// fieldMessage renders one validator failure, e.g. "panels[0].name is required".
func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i != -1 {
		// drop the root struct name
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL, got %q", field, fe.Value())
	case "gtefield":
		return fmt.Sprintf("%s must not be shorter than %s", field, strings.ToLower(fe.Param()))
	case "ne":
		return fmt.Sprintf("%s must not be %q", field, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
