package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/rpattn/engcrm/internal/db"
)

// EnvPrefix prefixes every environment override, e.g. ENGCRM_DATABASE_HOST.
const EnvPrefix = "ENGCRM"

// Config is the full runtime configuration of the service.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Registry   RegistryConfig
	SmartLists SmartListConfig
	Database   db.Config
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

type LogConfig struct {
	Level       string
	Development bool
}

// RegistryConfig points at a field registry document. An empty path uses the
// embedded default.
type RegistryConfig struct {
	Path string
}

type SmartListConfig struct {
	PreviewLimit       int
	RefreshConcurrency int
}

// Load reads config.yaml from configPath when present, then applies
// environment overrides on top of the defaults.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:           v.GetString("server.addr"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Registry: RegistryConfig{
			Path: v.GetString("registry.path"),
		},
		SmartLists: SmartListConfig{
			PreviewLimit:       v.GetInt("smartlists.preview_limit"),
			RefreshConcurrency: v.GetInt("smartlists.refresh_concurrency"),
		},
		Database: db.Config{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
			MaxConns: v.GetInt32("database.max_conns"),
		},
	}

	if cfg.SmartLists.PreviewLimit <= 0 {
		return Config{}, fmt.Errorf("smartlists.preview_limit must be positive, got %d", cfg.SmartLists.PreviewLimit)
	}
	if cfg.SmartLists.RefreshConcurrency <= 0 {
		return Config{}, fmt.Errorf("smartlists.refresh_concurrency must be positive, got %d", cfg.SmartLists.RefreshConcurrency)
	}
	return cfg, nil
}

// LoadDBConfig returns only the database section.
func LoadDBConfig(configPath string) (db.Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return db.Config{}, err
	}
	return cfg.Database, nil
}

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()
	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.max_conns", dbDefaults.MaxConns)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("registry.path", "")
	v.SetDefault("smartlists.preview_limit", 100)
	v.SetDefault("smartlists.refresh_concurrency", 4)
}
