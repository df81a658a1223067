package config

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

const (
	sslModeDisable = "disable"
	sslModeRequire = "require"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	LogModeDevelopment = "development"
	LogModeProduction  = "production"
)

var Module = fx.Provide(NewConfig)

type (
	Config struct {
		Host       string `mapstructure:"HOST"`
		Port       string `mapstructure:"PORT"`
		DBDriver   string `mapstructure:"DB_DRIVER"`
		DBPath     string `mapstructure:"DB_PATH"`
		DBHost     string `mapstructure:"DB_HOST"`
		DBPort     string `mapstructure:"DB_PORT"`
		DBUser     string `mapstructure:"DB_USER"`
		DBPassword string `mapstructure:"DB_PASSWORD"`
		DBName     string `mapstructure:"DB_NAME"`
		DBSSLMode  string `mapstructure:"DB_SSL_MODE"`
		DBLogLevel string `mapstructure:"DB_LOG_LEVEL"`
		LogMode    string `mapstructure:"LOG_MODE"`
	}
)

func NewConfig() (*Config, error) {
	viper.SetEnvPrefix("ARTARCHIVE")

	viper.SetDefault("HOST", "0.0.0.0")
	viper.SetDefault("PORT", "1323")
	viper.SetDefault("DB_DRIVER", DriverSQLite)
	viper.SetDefault("DB_PATH", "art-archive.db")
	viper.SetDefault("DB_HOST", "0.0.0.0")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "db")
	viper.SetDefault("DB_SSL_MODE", sslModeDisable)
	viper.SetDefault("DB_LOG_LEVEL", "warn")
	viper.SetDefault("LOG_MODE", LogModeDevelopment)

	envs := []string{
		"HOST", "PORT", "DB_DRIVER", "DB_PATH", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
		"DB_SSL_MODE", "DB_LOG_LEVEL", "LOG_MODE",
	}
	for _, key := range envs {
		if err := viper.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if !oneOf(cfg.DBDriver, DriverSQLite, DriverPostgres) {
		return errors.New(fmt.Sprintf("DB driver is invalid: %s", cfg.DBDriver))
	}
	if cfg.DBDriver == DriverSQLite && cfg.DBPath == "" {
		return errors.New("DB path is required for sqlite")
	}
	if !oneOf(cfg.DBSSLMode, sslModeDisable, sslModeRequire) {
		return errors.New(fmt.Sprintf("DB SSL mode is invalid: %s", cfg.DBSSLMode))
	}
	if !oneOf(cfg.DBLogLevel, "silent", "error", "warn", "info") {
		return errors.New(fmt.Sprintf("DB log level is invalid: %s", cfg.DBLogLevel))
	}
	if !oneOf(cfg.LogMode, LogModeDevelopment, LogModeProduction) {
		return errors.New(fmt.Sprintf("log mode is invalid: %s", cfg.LogMode))
	}
	return nil
}

func oneOf(v string, valid ...string) bool {
	for _, validValue := range valid {
		if v == validValue {
			return true
		}
	}
	return false
}
