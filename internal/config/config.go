// Package config loads hoopgate settings from an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/layer-3/hoopgate/behavior"
)

const devSecret = "hoopgate-development-secret"

// Duration is a time.Duration written as "15m" in YAML
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := time.ParseDuration(strings.TrimSpace(n.Value))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", n.Value, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	App struct {
		Env  string `yaml:"env" validate:"omitempty,oneof=dev prod test"`
		Name string `yaml:"name"`
	} `yaml:"app"`

	Server struct {
		Addr            string   `yaml:"addr" validate:"required"`
		TrustedProxies  []string `yaml:"trusted_proxies"`
		StaticDir       string   `yaml:"static_dir"`
		ShutdownTimeout Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Store struct {
		Kind            string   `yaml:"kind" validate:"oneof=memory redis"`
		RedisURL        string   `yaml:"redis_url" validate:"required_if=Kind redis"`
		CleanupInterval Duration `yaml:"cleanup_interval" validate:"gt=0"`
	} `yaml:"store"`

	Events struct {
		Kind string `yaml:"kind" validate:"oneof=none gochannel redis"`
	} `yaml:"events"`

	Gate struct {
		Secret           string   `yaml:"secret" validate:"required,min=16"`
		SigningKeyPEM    string   `yaml:"signing_key_pem"`
		ChallengeTTL     Duration `yaml:"challenge_ttl" validate:"gt=0"`
		GrantTTL         Duration `yaml:"grant_ttl" validate:"gt=0"`
		ReceiptTTL       Duration `yaml:"receipt_ttl" validate:"gt=0"`
		DefaultMinWait   Duration `yaml:"default_min_wait" validate:"gte=0"`
		FallbackRedirect string   `yaml:"fallback_redirect" validate:"required,url"`
	} `yaml:"gate"`

	Behavior behavior.Thresholds `yaml:"behavior"`

	Shortener struct {
		APIToken string   `yaml:"api_token"`
		Site     string   `yaml:"site"`
		Timeout  Duration `yaml:"timeout" validate:"gt=0"`
	} `yaml:"shortener"`

	RateLimit struct {
		Max    int      `yaml:"max" validate:"gt=0"`
		Window Duration `yaml:"window" validate:"gt=0"`
	} `yaml:"rate_limit"`
}

// Default returns the settings used when nothing is configured
func Default() *Config {
	var c Config
	c.App.Env = "dev"
	c.App.Name = "hoopgate"
	c.Server.Addr = ":8080"
	c.Server.ShutdownTimeout = Duration(10 * time.Second)
	c.Log.Level = "info"
	c.Store.Kind = "memory"
	c.Store.CleanupInterval = Duration(time.Minute)
	c.Events.Kind = "gochannel"
	c.Gate.ChallengeTTL = Duration(15 * time.Minute)
	c.Gate.GrantTTL = Duration(10 * time.Minute)
	c.Gate.ReceiptTTL = Duration(15 * time.Minute)
	c.Gate.DefaultMinWait = Duration(10 * time.Second)
	c.Gate.FallbackRedirect = "https://www.google.com"
	c.Behavior = behavior.DefaultThresholds()
	c.Shortener.Site = "adrinolinks.in"
	c.Shortener.Timeout = Duration(10 * time.Second)
	c.RateLimit.Max = 50
	c.RateLimit.Window = Duration(10 * time.Minute)
	return &c
}

// Load reads path over the defaults (an empty path skips the file), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if c.Gate.Secret == "" && !strings.EqualFold(c.App.Env, "prod") {
		c.Gate.Secret = devSecret
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks struct constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// Events share the store's Redis connection
	if c.Events.Kind == "redis" && c.Store.RedisURL == "" {
		return fmt.Errorf("invalid config: store.redis_url is required when events.kind is redis")
	}
	return nil
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func (c *Config) applyEnvOverrides() error {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("HOOPGATE_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("HOOPGATE_STATIC_DIR"); ok {
		c.Server.StaticDir = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("HOOPGATE_STORE"); ok {
		c.Store.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_URL"); ok {
		c.Store.RedisURL = v
	}
	if v, ok := getEnvStr("HOOPGATE_EVENTS"); ok {
		c.Events.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("HOOPGATE_SECRET"); ok {
		c.Gate.Secret = v
	}
	if v, ok := getEnvStr("HOOPGATE_SIGNING_KEY"); ok {
		c.Gate.SigningKeyPEM = v
	}
	if v, ok := getEnvStr("HOOPGATE_FALLBACK_REDIRECT"); ok {
		c.Gate.FallbackRedirect = v
	}
	if v, ok := getEnvStr("SHORTENER_API_TOKEN"); ok {
		c.Shortener.APIToken = v
	}
	if v, ok := getEnvStr("SHORTENER_SITE"); ok {
		c.Shortener.Site = v
	}
	if v, ok := getEnvStr("HOOPGATE_RATE_LIMIT_MAX"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("HOOPGATE_RATE_LIMIT_MAX: %w", err)
		}
		c.RateLimit.Max = n
	}
	if v, ok := getEnvStr("HOOPGATE_MIN_WAIT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("HOOPGATE_MIN_WAIT: %w", err)
		}
		c.Gate.DefaultMinWait = Duration(d)
	}
	return nil
}
