// Package config loads the reader configuration from YAML and the environment.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	LLM    LLMConfig    `yaml:"llm"`
	Cache  CacheConfig  `yaml:"cache"`
	Reader ReaderConfig `yaml:"reader"`
	CORS   CORSConfig   `yaml:"cors"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"127.0.0.1"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"120s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LLMConfig selects and configures the language model.
type LLMConfig struct {
	Provider  string        `yaml:"provider"   env:"LLM_PROVIDER"   env-default:"anthropic"`
	APIKey    string        `yaml:"api_key"    env:"LLM_API_KEY"`
	Model     string        `yaml:"model"      env:"LLM_MODEL"`
	BaseURL   string        `yaml:"base_url"   env:"LLM_BASE_URL"`
	Timeout   time.Duration `yaml:"timeout"    env:"LLM_TIMEOUT"    env-default:"30s"`
	MaxTokens int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"256"`
}

// CacheConfig holds the definition cache settings.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"        env:"CACHE_ENABLED"        env-default:"true"`
	Path          string        `yaml:"path"           env:"CACHE_PATH"           env-default:":memory:"`
	BatchSize     int           `yaml:"batch_size"     env:"CACHE_BATCH_SIZE"     env-default:"20"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"CACHE_FLUSH_INTERVAL" env-default:"500ms"`
}

// ReaderConfig holds document handling settings.
type ReaderConfig struct {
	JapaneseMorphemes bool  `yaml:"japanese_morphemes" env:"READER_JAPANESE_MORPHEMES" env-default:"true"`
	DetectSample      int   `yaml:"detect_sample"      env:"READER_DETECT_SAMPLE"      env-default:"1000"`
	MaxUploadBytes    int64 `yaml:"max_upload_bytes"   env:"READER_MAX_UPLOAD_BYTES"   env-default:"52428800"`
	Workers           int   `yaml:"workers"            env:"READER_WORKERS"            env-default:"4"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	AllowedMethods string `yaml:"allowed_methods" env:"CORS_ALLOWED_METHODS" env-default:"GET,POST,DELETE,OPTIONS"`
	AllowedHeaders string `yaml:"allowed_headers" env:"CORS_ALLOWED_HEADERS" env-default:"Content-Type,X-Request-Id"`
	MaxAge         int    `yaml:"max_age"         env:"CORS_MAX_AGE"         env-default:"86400"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535 (got %d)", c.Server.Port)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("llm.provider must be anthropic or openai (got %q)", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be > 0 (got %d)", c.LLM.MaxTokens)
	}

	if c.Cache.Enabled && strings.TrimSpace(c.Cache.Path) == "" {
		return fmt.Errorf("cache.path must be set when the cache is enabled")
	}
	if c.Cache.BatchSize <= 0 {
		return fmt.Errorf("cache.batch_size must be > 0 (got %d)", c.Cache.BatchSize)
	}

	if c.Reader.DetectSample <= 0 {
		return fmt.Errorf("reader.detect_sample must be > 0 (got %d)", c.Reader.DetectSample)
	}
	if c.Reader.MaxUploadBytes <= 0 {
		return fmt.Errorf("reader.max_upload_bytes must be > 0 (got %d)", c.Reader.MaxUploadBytes)
	}
	if c.Reader.Workers <= 0 {
		return fmt.Errorf("reader.workers must be > 0 (got %d)", c.Reader.Workers)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}
	return nil
}

// SplitList splits a comma-separated setting and drops empty items.
func SplitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
