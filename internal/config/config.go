package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	"github.com/nm90/educational-mvc-sub001/internal/pkg/logger"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port                   string `mapstructure:"port"`
	Mode                   string `mapstructure:"mode"` // gin mode: debug, release or test
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // sqlite3 or pgx
	DSN          string `mapstructure:"dsn"`
	Seed         bool   `mapstructure:"seed"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// TracingConfig controls the request trace embedded in responses.
type TracingConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	InjectHTML     bool     `mapstructure:"inject_html"`
	EmbedJSON      bool     `mapstructure:"embed_json"`
	MaxValueLength int      `mapstructure:"max_value_length"`
	RedactKeys     []string `mapstructure:"redact_keys"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads config.yaml from the given directories (default "." and
// "./configs"), then applies DEVPANEL_* environment variables, e.g.
// DEVPANEL_DATABASE_DSN. A missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("devpanel")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		logger.Info("No config file found, using defaults and env vars")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout_seconds", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "file:educational_mvc.db?_foreign_keys=on")
	v.SetDefault("database.seed", true)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("tracing.enabled", true)
	v.SetDefault("tracing.inject_html", true)
	v.SetDefault("tracing.embed_json", true)
	v.SetDefault("tracing.max_value_length", 1000)
	v.SetDefault("tracing.redact_keys", []string{"password", "token", "secret", "api_key"})

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
