// Package config loads aigen settings from a YAML file, a .env file and
// AIGEN_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// AIGEN_EXECUTOR_URL for executor.url.
const EnvPrefix = "AIGEN"

// Config is the full application configuration.
type Config struct {
	Executor ExecutorConfig `mapstructure:"executor"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
}

// ExecutorConfig locates the remote executor.
type ExecutorConfig struct {
	URL     string        `mapstructure:"url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// BatchConfig controls batch runs.
type BatchConfig struct {
	Placeholder   string `mapstructure:"placeholder"`
	HaltOnFailure bool   `mapstructure:"halt_on_failure"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" validate:"oneof=text json TEXT JSON"`
}

// ServerConfig configures `aigen serve`.
type ServerConfig struct {
	Host           string   `mapstructure:"host" validate:"required"`
	Port           int      `mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// StoreConfig is where the server keeps saved graph documents.
type StoreConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

var defaults = map[string]any{
	"executor.url":           "http://localhost:8000",
	"executor.timeout":       120 * time.Second,
	"batch.placeholder":      "",
	"batch.halt_on_failure":  false,
	"log.level":              "info",
	"log.format":             "text",
	"server.host":            "127.0.0.1",
	"server.port":            8080,
	"server.allowed_origins": []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:3000", "http://127.0.0.1:3000"},
	"store.dir":              "graphs",
}

var searchPaths = []string{"./aigen.yml", "./aigen.yaml", "./config/aigen.yml"}

type loaderOptions struct {
	configFile string
	envFile    string
}

// Option customises Load.
type Option func(*loaderOptions)

// WithConfigFile reads settings from path instead of searching for aigen.yml.
func WithConfigFile(path string) Option {
	return func(o *loaderOptions) { o.configFile = path }
}

// WithEnvFile loads path instead of ./.env.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// Load resolves and validates the configuration. An explicitly named config
// or env file that cannot be read is an error; the searched defaults are
// optional.
func Load(opts ...Option) (*Config, error) {
	var lo loaderOptions
	for _, opt := range opts {
		opt(&lo)
	}

	if err := loadEnvFile(lo.envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := lo.configFile
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports each failure by its
// configuration key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", configKey(fe.Namespace()), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config:\n  %s", strings.Join(msgs, "\n  "))
}

// configKey turns "Config.Executor.URL" into "executor.url".
func configKey(ns string) string {
	ns = strings.TrimPrefix(ns, "Config.")
	return strings.ToLower(ns)
}

func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func findConfigFile() string {
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
