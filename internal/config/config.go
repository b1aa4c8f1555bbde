// Package config loads listctl settings from an optional file and LISTCTL_*
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/viper"

	"github.com/goliatone/go-resource-list/apiclient"
	"github.com/goliatone/go-resource-list/cache"
	"github.com/goliatone/go-resource-list/debounce"
	"github.com/goliatone/go-resource-list/internal/cacheinfra"
)

// EnvPrefix prefixes every environment variable, e.g. LISTCTL_API_BASE_URL.
const EnvPrefix = "LISTCTL"

type Config struct {
	API    APIConfig    `mapstructure:"api"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Search SearchConfig `mapstructure:"search"`
	Facets FacetsConfig `mapstructure:"facets"`
	Log    LogConfig    `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Token     string        `mapstructure:"token"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Capacity  int           `mapstructure:"capacity"`
	Staleness time.Duration `mapstructure:"staleness"`
}

type SearchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

type FacetsConfig struct {
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	api := apiclient.DefaultConfig()
	facets := cacheinfra.DefaultConfig()

	v.SetDefault("api.base_url", "")
	v.SetDefault("api.token", "")
	v.SetDefault("api.rate_limit", api.RateLimit)
	v.SetDefault("api.burst", api.Burst)
	v.SetDefault("api.timeout", api.Timeout)
	v.SetDefault("cache.capacity", cache.DefaultCapacity)
	v.SetDefault("cache.staleness", cache.DefaultStaleness)
	v.SetDefault("search.debounce", debounce.DefaultInterval)
	v.SetDefault("facets.capacity", facets.Capacity)
	v.SetDefault("facets.ttl", facets.TTL)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads path when it is not empty, overlays LISTCTL_* variables and validates
// the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "read config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid config")
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.API),
		validation.Field(&c.Cache),
		validation.Field(&c.Search),
		validation.Field(&c.Facets),
		validation.Field(&c.Log),
	)
}

func (c APIConfig) Validate() error {
	return c.Client().Validate()
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.Staleness, validation.Required, validation.Min(time.Duration(1))),
	)
}

func (c SearchConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

func (c FacetsConfig) Validate() error {
	return c.Store().Validate()
}

func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
	)
}

// Client returns the apiclient configuration.
func (c APIConfig) Client() apiclient.Config {
	return apiclient.Config{
		BaseURL:   c.BaseURL,
		Token:     c.Token,
		RateLimit: c.RateLimit,
		Burst:     c.Burst,
		Timeout:   c.Timeout,
	}
}

// Store returns the facet store configuration.
func (c FacetsConfig) Store() cacheinfra.Config {
	cfg := cacheinfra.DefaultConfig()
	cfg.Capacity = c.Capacity
	cfg.TTL = c.TTL
	return cfg
}

// String prints the configuration with the token masked.
func (c *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "api.base_url=%s ", c.API.BaseURL)
	if c.API.Token != "" {
		sb.WriteString("api.token=******** ")
	}
	fmt.Fprintf(&sb, "api.rate_limit=%g api.burst=%d api.timeout=%s ", c.API.RateLimit, c.API.Burst, c.API.Timeout)
	fmt.Fprintf(&sb, "cache.capacity=%d cache.staleness=%s ", c.Cache.Capacity, c.Cache.Staleness)
	fmt.Fprintf(&sb, "search.debounce=%s ", c.Search.Debounce)
	fmt.Fprintf(&sb, "facets.capacity=%d facets.ttl=%s ", c.Facets.Capacity, c.Facets.TTL)
	fmt.Fprintf(&sb, "log.level=%s log.development=%t", c.Log.Level, c.Log.Development)
	return sb.String()
}
