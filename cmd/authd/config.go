package main

import (
	"os"
	"strings"

	auth "github.com/goliatone/go-auth-gate"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Addr        string   `yaml:"addr" json:"addr"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
}

type AppConfig struct {
	Auth     auth.Config            `yaml:"auth" json:"auth"`
	HTTP     HTTPConfig             `yaml:"http" json:"http"`
	Database auth.PersistenceConfig `yaml:"database" json:"database"`
	LogLevel string                 `yaml:"log_level" json:"log_level"`
	Debug    bool                   `yaml:"debug" json:"debug"`
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Auth: auth.DefaultConfig(),
		HTTP: HTTPConfig{
			Addr:        ":8000",
			CORSOrigins: []string{"*"},
		},
		Database: auth.PersistenceConfig{
			Driver:         auth.DriverSQLite,
			DSN:            "file:authd.db?cache=shared",
			PingTimeout:    auth.DefaultPingTimeout,
			OtelIdentifier: "authd",
		},
		LogLevel: "info",
	}
}

// loadAppConfig reads the optional YAML file then applies the environment
func loadAppConfig(path string, lookup func(string) (string, bool)) (AppConfig, error) {
	cfg := defaultAppConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read config file")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to decode config file")
		}
	}

	authCfg, err := cfg.Auth.ApplyEnv(lookup)
	if err != nil {
		return cfg, err
	}
	cfg.Auth = authCfg

	if v, ok := lookup("HTTP_ADDR"); ok && v != "" {
		cfg.HTTP.Addr = v
	}

	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}

	if v, ok := lookup("DATABASE_DRIVER"); ok && v != "" {
		cfg.Database.Driver = strings.ToLower(v)
	}

	if v, ok := lookup("DATABASE_DSN"); ok && v != "" {
		cfg.Database.DSN = v
	}

	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}

	cfg.Database.Debug = cfg.Database.Debug || cfg.Debug

	switch cfg.Database.GetDriver() {
	case auth.DriverSQLite, auth.DriverPostgres:
	default:
		return cfg, goerrors.New("unsupported database driver "+cfg.Database.Driver, goerrors.CategoryValidation).
			WithTextCode(auth.TextCodeInvalidConfig)
	}

	return cfg, cfg.Auth.Validate()
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
