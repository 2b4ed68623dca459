package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	APIKeyModeLocal  = "local"
	APIKeyModeRemote = "remote"

	IndexerMemory = "memory"
	IndexerSQLite = "sqlite"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Service   ServiceConfig   `mapstructure:"service"`
	APIKey    APIKeyConfig    `mapstructure:"apikey"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Graph     GraphConfig     `mapstructure:"graph"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// IdentityConfig points at the service that issues tokens and owns API keys.
type IdentityConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// JWTConfig must match the identity service exactly or every token is rejected.
// For asymmetric algorithms Secret holds the PEM encoded public key.
type JWTConfig struct {
	Secret    string `mapstructure:"secret"`
	Algorithm string `mapstructure:"algorithm"`
	Audience  string `mapstructure:"audience"`
}

type ServiceConfig struct {
	ID string `mapstructure:"id"`
}

type APIKeyConfig struct {
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type GraphConfig struct {
	BaseDir     string `mapstructure:"base_dir"`
	IndexerType string `mapstructure:"indexer_type"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

type WorkerConfig struct {
	ExpiryInterval time.Duration `mapstructure:"expiry_interval"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// envAliases binds the names the identity service deployment already exports.
var envAliases = map[string][]string{
	"identity.url":         {"IDENTITY_URL", "LOCKSMITHA_URL"},
	"jwt.secret":           {"JWT_SECRET"},
	"jwt.algorithm":        {"JWT_ALGORITHM"},
	"jwt.audience":         {"JWT_AUDIENCE"},
	"service.id":           {"SERVICE_ID"},
	"apikey.mode":          {"APIKEY_MODE"},
	"database.url":         {"DATABASE_URL"},
	"graph.base_dir":       {"GRAPH_BASE_DIR"},
	"graph.indexer_type":   {"GRAPH_INDEXER_TYPE"},
	"cors.allowed_origins": {"CORS_ALLOWED_ORIGINS"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("identity.url", "http://localhost:8001")
	v.SetDefault("identity.timeout", 10*time.Second)

	v.SetDefault("jwt.secret", "changeme")
	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.audience", "fastapi-users:auth")

	v.SetDefault("service.id", "graph_reader_api")
	v.SetDefault("apikey.mode", APIKeyModeLocal)

	v.SetDefault("database.url", "file:data/apikeys.db")
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("graph.base_dir", "resources/kg")
	v.SetDefault("graph.indexer_type", IndexerMemory)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:8001"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type", "X-API-Key", "X-Request-ID"})
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("rate_limit.requests_per_minute", 600)
	v.SetDefault("worker.expiry_interval", 5*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// viper treats an empty variable as unset; JWT_AUDIENCE="" turns the
	// audience check off.
	if aud, ok := os.LookupEnv("JWT_AUDIENCE"); ok && aud == "" {
		config.JWT.Audience = ""
	}

	// Comma separated origins from the environment arrive as a single element.
	config.CORS.AllowedOrigins = splitList(config.CORS.AllowedOrigins)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must not be empty")
	}
	if c.JWT.Algorithm == "" {
		return errors.New("jwt.algorithm must not be empty")
	}
	if c.Service.ID == "" {
		return errors.New("service.id must not be empty")
	}
	switch c.APIKey.Mode {
	case APIKeyModeLocal, APIKeyModeRemote:
	default:
		return fmt.Errorf("apikey.mode must be %q or %q, got %q", APIKeyModeLocal, APIKeyModeRemote, c.APIKey.Mode)
	}
	switch c.Graph.IndexerType {
	case IndexerMemory, IndexerSQLite:
	default:
		return fmt.Errorf("graph.indexer_type must be %q or %q, got %q", IndexerMemory, IndexerSQLite, c.Graph.IndexerType)
	}
	if c.APIKey.Mode == APIKeyModeRemote && c.Identity.URL == "" {
		return errors.New("identity.url is required when apikey.mode is remote")
	}
	return nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
