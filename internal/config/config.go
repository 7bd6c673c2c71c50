// Package config loads process configuration from an optional YAML file and
// TAEDAM_-prefixed environment variables, env taking precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Server holds the HTTP listener settings.
type Server struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	Debug       bool     `mapstructure:"debug"`
}

// LLM holds the model provider settings.
type LLM struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	EmbedModel string `mapstructure:"embed_model"`
	Timeout    int    `mapstructure:"timeout"` // seconds
	MaxRetries int    `mapstructure:"max_retries"`
}

// Storage holds the on-disk paths.
type Storage struct {
	DBPath     string `mapstructure:"db_path"`
	VectorPath string `mapstructure:"vector_path"`
	Collection string `mapstructure:"collection"`
}

// History sizes the per-(session, day) snapshot cache.
type History struct {
	CacheSize   int `mapstructure:"cache_size"`
	RecentLimit int `mapstructure:"recent_limit"`
}

// Maintenance sizes the background worker pool.
type Maintenance struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// Config is the full process configuration.
type Config struct {
	Server      Server      `mapstructure:"server"`
	LLM         LLM         `mapstructure:"llm"`
	Storage     Storage     `mapstructure:"storage"`
	History     History     `mapstructure:"history"`
	Maintenance Maintenance `mapstructure:"maintenance"`
	LogLevel    string      `mapstructure:"log_level"`
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply. A missing file at an explicit path is an
// error; unset keys fall back to defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.debug", false)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.embed_model", "text-embedding-3-small")
	v.SetDefault("llm.timeout", 60)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("storage.db_path", "taedam.db")
	v.SetDefault("storage.vector_path", "taedam-vectors")
	v.SetDefault("storage.collection", "medical_sources")
	v.SetDefault("history.cache_size", 512)
	v.SetDefault("history.recent_limit", 50)
	v.SetDefault("maintenance.workers", 2)
	v.SetDefault("maintenance.queue_size", 64)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("TAEDAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
	return &cfg, nil
}
