package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	Debug         bool   `mapstructure:"debug"`

	Server struct {
		Addr    string `mapstructure:"addr"`
		TLSAddr string `mapstructure:"tls_addr"`
	} `mapstructure:"server"`

	Store struct {
		Driver string `mapstructure:"driver"`
		DB     struct {
			Host     string `mapstructure:"host"`
			Port     int    `mapstructure:"port"`
			User     string `mapstructure:"user"`
			Password string `mapstructure:"password"`
			Name     string `mapstructure:"name"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"db"`
		SQLite struct {
			Path string `mapstructure:"path"`
		} `mapstructure:"sqlite"`
		Redis struct {
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
			Prefix   string `mapstructure:"prefix"`
		} `mapstructure:"redis"`
	} `mapstructure:"store"`

	Tracker struct {
		AnonymousActor string `mapstructure:"anonymous_actor"`
	} `mapstructure:"tracker"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`

	Auth struct {
		OktaDomain      string `mapstructure:"okta_domain"`
		ClientID        string `mapstructure:"client_id"`
		ClientSecret    string `mapstructure:"client_secret"`
		RedirectURL     string `mapstructure:"redirect_url"`
		SwaggerClientID string `mapstructure:"swagger_client_id"`
	} `mapstructure:"auth"`

	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// DSN returns the Postgres connection string.
func (c *Config) DSN() string {
	db := c.Store.DB
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.User, db.Password, db.Name, db.SSLMode,
	)
}

// IsDev reports whether the service runs in the DEV environment.
func (c *Config) IsDev() bool {
	return strings.ToUpper(c.Environment) == "DEV"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "PROD")
	v.SetDefault("dev_mode_bypass", false)
	v.SetDefault("debug", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.tls_addr", ":8443")
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.db.host", "localhost")
	v.SetDefault("store.db.port", 5432)
	v.SetDefault("store.db.user", "tracker")
	v.SetDefault("store.db.name", "tracker")
	v.SetDefault("store.db.password", "")
	v.SetDefault("store.db.sslmode", "disable")
	v.SetDefault("store.sqlite.path", "tracker.db")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "tracker")
	v.SetDefault("tracker.anonymous_actor", "Anónimo")
	v.SetDefault("metrics.enabled", true)
	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	for _, key := range []string{
		"auth.okta_domain", "auth.client_id", "auth.client_secret",
		"auth.redirect_url", "auth.swagger_client_id",
		"tls.cert_file", "tls.key_file",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("tls.enable", false)
}

// LoadConfig loads the configuration from a file and the environment.
// An explicit path must exist; otherwise config.yaml is looked up in . and
// ./config and may be absent. Environment variables use the TRACKER_ prefix,
// e.g. TRACKER_STORE_DRIVER.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	config.ConfigFile = v.ConfigFileUsed()

	// normalize OKTA issuer url (strip trailing slash if any)
	config.Auth.OktaDomain = normalizeOktaIssuer(config.Auth.OktaDomain)

	switch config.Store.Driver {
	case DriverPostgres, DriverSQLite, DriverRedis:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", config.Store.Driver)
	}

	return &config, nil
}

// normalizeOktaIssuer ensures the provided Okta issuer string is in a
// predictable form. It removes any trailing slash and leaves the scheme and
// path intact.
func normalizeOktaIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
