package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileName is the project configuration file, without extension
const FileName = "pagecraft"

// EnvPrefix prefixes environment overrides, e.g. PAGECRAFT_SERVER_PORT
const EnvPrefix = "PAGECRAFT"

// Config represents the pagecraft configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	Compile   CompileConfig   `mapstructure:"compile"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	Host      string          `mapstructure:"host"`
	BasePath  string          `mapstructure:"base_path"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig limits data queries per client and app. Zero requests
// disables limiting.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DocumentsConfig locates stored app documents
type DocumentsConfig struct {
	Dir string `mapstructure:"dir"`
}

// CacheConfig selects the compiled page cache
type CacheConfig struct {
	// Backend is "memory" or "redis"
	Backend string        `mapstructure:"backend"`
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig represents the redis cache connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CompileConfig holds compile defaults
type CompileConfig struct {
	Pretty bool   `mapstructure:"pretty"`
	OutDir string `mapstructure:"out_dir"`
}

// RuntimeConfig tunes the headless renderer
type RuntimeConfig struct {
	EvalTimeout   time.Duration `mapstructure:"eval_timeout"`
	ViewportWidth float64       `mapstructure:"viewport_width"`
}

// Load loads the configuration of the current directory
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom loads dir/.env, then dir/pagecraft.yml (or .yaml) over the
// defaults, then PAGECRAFT_* environment variables.
func LoadFrom(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	if !filepath.IsAbs(config.Documents.Dir) {
		config.Documents.Dir = filepath.Join(dir, config.Documents.Dir)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.base_path", "")
	v.SetDefault("server.rate_limit.requests", 0)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("documents.dir", "apps")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("compile.pretty", false)
	v.SetDefault("compile.out_dir", "build/pages")
	v.SetDefault("runtime.eval_timeout", "250ms")
	v.SetDefault("runtime.viewport_width", 1024)
}

// InProject checks if dir holds a pagecraft.yml or pagecraft.yaml
func InProject(dir string) bool {
	for _, ext := range []string{".yml", ".yaml"} {
		if _, err := os.Stat(filepath.Join(dir, FileName+ext)); err == nil {
			return true
		}
	}
	return false
}

// GetProjectRoot finds the nearest ancestor of the working directory
// holding a pagecraft configuration file
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if InProject(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a pagecraft project (no %s.yml found)", FileName)
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if p := cfg.Server.BasePath; p != "" {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("server.base_path must start with '/', got: %s", p)
		}
		if strings.HasSuffix(p, "/") {
			return fmt.Errorf("server.base_path must not end with '/', got: %s", p)
		}
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimit.Requests < 0 {
		return fmt.Errorf("server.rate_limit.requests must not be negative, got: %d", cfg.Server.RateLimit.Requests)
	}
	if cfg.Server.RateLimit.Requests > 0 && cfg.Server.RateLimit.Window < time.Millisecond {
		return fmt.Errorf("server.rate_limit.window must be at least 1ms, got: %s", cfg.Server.RateLimit.Window)
	}
	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got: %s", cfg.Cache.Backend)
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got: %s", cfg.Log.Format)
	}
	if cfg.Runtime.EvalTimeout <= 0 {
		return fmt.Errorf("runtime.eval_timeout must be positive, got: %s", cfg.Runtime.EvalTimeout)
	}
	if cfg.Runtime.ViewportWidth <= 0 {
		return fmt.Errorf("runtime.viewport_width must be positive, got: %v", cfg.Runtime.ViewportWidth)
	}
	return nil
}
