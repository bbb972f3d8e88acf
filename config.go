package apiclient

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file form of client settings. Values may reference
// environment variables as ${NAME}.
type Config struct {
	BaseURL             string            `yaml:"base_url"`
	Subdomain           string            `yaml:"subdomain"`
	DataKey             []string          `yaml:"data_key"`
	ErrorKey            []string          `yaml:"error_key"`
	Timeout             time.Duration     `yaml:"timeout"`
	DetailedErrors      bool              `yaml:"detailed_errors"`
	ForceDetailedErrors bool              `yaml:"force_detailed_errors"`
	StringifyErrors     *bool             `yaml:"stringify_errors"`
	IncludeEmpty        bool              `yaml:"include_empty"`
	Headers             map[string]string `yaml:"headers"`
	Query               map[string]string `yaml:"query"`
	BearerToken         string            `yaml:"bearer_token"`

	Transport TransportConfig `yaml:"transport"`
}

// TransportConfig holds settings for the default transport.
type TransportConfig struct {
	MaxConnsPerHost int              `yaml:"max_conns_per_host"`
	ResponseLimit   int64            `yaml:"response_limit"`
	SpoolThreshold  int64            `yaml:"spool_threshold"`
	RateLimit       *RateLimitConfig `yaml:"rate_limit"`
	Retry           *RetryConfig     `yaml:"retry"`
}

// LoadConfig reads a YAML config file, expanding ${NAME} references from
// the environment.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config data, expanding ${NAME} references from
// the environment.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse config: %w", ErrConfiguration, err)
	}
	return cfg, nil
}

// Options converts the config into client options.
func (cfg Config) Options() []Option {
	var opts []Option
	if cfg.Subdomain != "" {
		opts = append(opts, WithDefaultSubdomain(cfg.Subdomain))
	}
	if len(cfg.DataKey) > 0 {
		opts = append(opts, WithResponseDataKey(cfg.DataKey...))
	}
	if len(cfg.ErrorKey) > 0 {
		opts = append(opts, WithErrorKey(cfg.ErrorKey...))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	if cfg.DetailedErrors {
		opts = append(opts, WithDetailedErrors())
	}
	if cfg.ForceDetailedErrors {
		opts = append(opts, WithForceDetailedErrors())
	}
	if cfg.StringifyErrors != nil {
		opts = append(opts, WithStringifyErrors(*cfg.StringifyErrors))
	}
	if cfg.IncludeEmpty {
		opts = append(opts, WithIncludeEmpty())
	}

	var fields []Field
	for _, name := range slices.Sorted(maps.Keys(cfg.Headers)) {
		fields = append(fields, Header(name, cfg.Headers[name]))
	}
	for _, name := range slices.Sorted(maps.Keys(cfg.Query)) {
		fields = append(fields, Query(name, cfg.Query[name]))
	}
	if len(fields) > 0 {
		opts = append(opts, WithGlobalFields(Static(fields...)))
	}
	if cfg.BearerToken != "" {
		opts = append(opts, WithGlobalFields(BearerToken(cfg.BearerToken)))
	}

	return append(opts, cfg.Transport.options()...)
}

func (tc TransportConfig) options() []Option {
	var (
		topts []TransportOption
		mw    []Middleware
	)
	if tc.MaxConnsPerHost > 0 {
		topts = append(topts, WithMaxConnsPerHost(tc.MaxConnsPerHost))
	}
	if tc.SpoolThreshold > 0 {
		topts = append(topts, WithSpoolThreshold(tc.SpoolThreshold))
	}
	if tc.RateLimit != nil {
		mw = append(mw, RateLimit(*tc.RateLimit))
	}
	if tc.Retry != nil {
		mw = append(mw, Retry(*tc.Retry))
	}
	if tc.ResponseLimit > 0 {
		mw = append(mw, ResponseLimit(tc.ResponseLimit))
	}
	if len(mw) > 0 {
		topts = append(topts, WithTransportMiddleware(mw...))
	}
	if len(topts) == 0 {
		return nil
	}
	return []Option{WithTransportOptions(topts...)}
}

// NewFromConfig builds a client from cfg. Options in opts are applied after
// the config ones.
func NewFromConfig(cfg Config, opts ...Option) (*Client, error) {
	return New(cfg.BaseURL, append(cfg.Options(), opts...)...)
}
