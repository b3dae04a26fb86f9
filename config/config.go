package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/milanbella/storyboard/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

const (
	defaultServerHost      = "0.0.0.0"
	defaultServerPort      = 8080
	defaultShutdownTimeout = 10 * time.Second

	defaultDBDriver          = DriverMySQL
	defaultDBHost            = "127.0.0.1"
	defaultDBPort            = 3306
	defaultDBUser            = "storyboard"
	defaultDBPassword        = ""
	defaultDBName            = "storyboard"
	defaultDBPath            = "storyboard.db"
	defaultDBMaxOpenConns    = 10
	defaultDBMaxIdleConns    = 5
	defaultDBConnMaxLifetime = time.Minute * 15
	defaultDBPingTimeout     = 5 * time.Second

	defaultAccessTokenTTL       = time.Hour
	defaultRefreshTokenTTL      = 7 * 24 * time.Hour
	defaultAuthorizationCodeTTL = 5 * time.Minute

	defaultOpenIDURL           = "https://login.launchpad.net/+openid"
	defaultOpenIDPublicURL     = "http://localhost:8080"
	defaultOpenIDVerifyTimeout = 10 * time.Second

	defaultPagingMaxLimit = 500

	defaultLogLevel  = "info"
	defaultLogFormat = "console"
)

var defaultValidScopes = []string{"user"}

type Config struct {
	Server   ServerConfig  `mapstructure:"server"`
	Database DBConfig      `mapstructure:"database"`
	Auth     AuthConfig    `mapstructure:"auth"`
	OpenID   OpenIDConfig  `mapstructure:"openid"`
	Paging   PagingConfig  `mapstructure:"paging"`
	Logging  LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type AuthConfig struct {
	AccessTokenTTL       time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL      time.Duration `mapstructure:"refresh_token_ttl"`
	AuthorizationCodeTTL time.Duration `mapstructure:"authorization_code_ttl"`
	ValidScopes          []string      `mapstructure:"valid_scopes"`
}

// OpenIDConfig points at the OpenID 2.0 provider users are sent to.
// PublicURL is this service's externally reachable base, used to build
// openid.return_to and openid.realm.
type OpenIDConfig struct {
	URL           string        `mapstructure:"url"`
	PublicURL     string        `mapstructure:"public_url"`
	VerifyTimeout time.Duration `mapstructure:"verify_timeout"`
}

type PagingConfig struct {
	MaxLimit int `mapstructure:"max_limit"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings keeps the flat variable names operators already use.
var envBindings = map[string]string{
	"server.host":             "SERVER_HOST",
	"server.port":             "SERVER_PORT",
	"server.shutdown_timeout": "SERVER_SHUTDOWN_TIMEOUT",

	"database.driver":            "DB_DRIVER",
	"database.host":              "DB_HOST",
	"database.port":              "DB_PORT",
	"database.user":              "DB_USER",
	"database.password":          "DB_PASSWORD",
	"database.name":              "DB_NAME",
	"database.path":              "DB_PATH",
	"database.max_open_conns":    "DB_MAX_OPEN_CONNS",
	"database.max_idle_conns":    "DB_MAX_IDLE_CONNS",
	"database.conn_max_lifetime": "DB_CONN_MAX_LIFETIME",
	"database.ping_timeout":      "DB_PING_TIMEOUT",
	"database.auto_migrate":      "DB_AUTO_MIGRATE",

	"auth.access_token_ttl":       "AUTH_ACCESS_TOKEN_TTL",
	"auth.refresh_token_ttl":      "AUTH_REFRESH_TOKEN_TTL",
	"auth.authorization_code_ttl": "AUTH_AUTHORIZATION_CODE_TTL",
	"auth.valid_scopes":           "AUTH_VALID_SCOPES",

	"openid.url":            "OPENID_URL",
	"openid.public_url":     "OPENID_PUBLIC_URL",
	"openid.verify_timeout": "OPENID_VERIFY_TIMEOUT",

	"paging.max_limit": "PAGING_MAX_LIMIT",

	"logging.level":  "LOG_LEVEL",
	"logging.format": "LOG_FORMAT",
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, logger.LogErr(fmt.Errorf("bind %s: %w", env, err))
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, logger.LogErr(fmt.Errorf("read config %s: %w", path, err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, logger.LogErr(fmt.Errorf("decode config: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, logger.LogErr(err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("database.driver", defaultDBDriver)
	v.SetDefault("database.host", defaultDBHost)
	v.SetDefault("database.port", defaultDBPort)
	v.SetDefault("database.user", defaultDBUser)
	v.SetDefault("database.password", defaultDBPassword)
	v.SetDefault("database.name", defaultDBName)
	v.SetDefault("database.path", defaultDBPath)
	v.SetDefault("database.max_open_conns", defaultDBMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultDBMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", defaultDBConnMaxLifetime)
	v.SetDefault("database.ping_timeout", defaultDBPingTimeout)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("auth.access_token_ttl", defaultAccessTokenTTL)
	v.SetDefault("auth.refresh_token_ttl", defaultRefreshTokenTTL)
	v.SetDefault("auth.authorization_code_ttl", defaultAuthorizationCodeTTL)
	v.SetDefault("auth.valid_scopes", defaultValidScopes)

	v.SetDefault("openid.url", defaultOpenIDURL)
	v.SetDefault("openid.public_url", defaultOpenIDPublicURL)
	v.SetDefault("openid.verify_timeout", defaultOpenIDVerifyTimeout)

	v.SetDefault("paging.max_limit", defaultPagingMaxLimit)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.format", defaultLogFormat)
}

// Validate checks ranges and normalizes values that have a canonical form.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SERVER_SHUTDOWN_TIMEOUT must be greater than zero")
	}

	if err := c.Database.validate(); err != nil {
		return err
	}
	if err := c.Auth.validate(); err != nil {
		return err
	}
	if err := c.OpenID.validate(); err != nil {
		return err
	}

	if c.Paging.MaxLimit <= 0 {
		return fmt.Errorf("PAGING_MAX_LIMIT must be greater than zero")
	}

	return nil
}

func (c *DBConfig) validate() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case DriverMySQL:
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("DB_PORT must be between 1 and 65535")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("DB_PATH must not be empty for the sqlite driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q", DriverMySQL, DriverSQLite)
	}

	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be greater than zero")
	}

	if c.MaxIdleConns < 0 {
		return fmt.Errorf("DB_MAX_IDLE_CONNS must be zero or a positive integer")
	}

	if c.ConnMaxLifetime < 0 {
		return fmt.Errorf("DB_CONN_MAX_LIFETIME must be zero or a positive duration")
	}

	if c.PingTimeout <= 0 {
		return fmt.Errorf("DB_PING_TIMEOUT must be greater than zero")
	}

	return nil
}

func (c *AuthConfig) validate() error {
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("AUTH_ACCESS_TOKEN_TTL must be greater than zero")
	}
	if c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("AUTH_REFRESH_TOKEN_TTL must be greater than zero")
	}
	if c.AuthorizationCodeTTL <= 0 {
		return fmt.Errorf("AUTH_AUTHORIZATION_CODE_TTL must be greater than zero")
	}

	var scopes []string
	for _, s := range c.ValidScopes {
		scopes = append(scopes, strings.Fields(strings.ReplaceAll(s, ",", " "))...)
	}
	if len(scopes) == 0 {
		return errors.New("AUTH_VALID_SCOPES must name at least one scope")
	}
	c.ValidScopes = scopes

	return nil
}

func (c *OpenIDConfig) validate() error {
	for name, raw := range map[string]string{"OPENID_URL": c.URL, "OPENID_PUBLIC_URL": c.PublicURL} {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", name)
		}
	}
	c.PublicURL = strings.TrimRight(strings.TrimSpace(c.PublicURL), "/")

	if c.VerifyTimeout <= 0 {
		return fmt.Errorf("OPENID_VERIFY_TIMEOUT must be greater than zero")
	}
	return nil
}
