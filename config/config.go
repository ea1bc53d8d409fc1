package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the discovery service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Listen   string `mapstructure:"listen"`
}

// ProvidersConfig contains external generative service settings
type ProvidersConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig is the configuration for the OpenAI completion client
type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

func (o OpenAIConfig) Validate() error {
	if strings.TrimSpace(o.APIKey) == "" {
		return fmt.Errorf("providers.openai.api_key is required")
	}
	return nil
}

// DatabasesConfig groups the storage backends
type DatabasesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("databases.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("databases.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DiscoveryConfig tunes the discovery engine itself
type DiscoveryConfig struct {
	PageSizeMax       int           `mapstructure:"page_size_max"`
	PageSizeDefault   int           `mapstructure:"page_size_default"`
	BatchSize         int           `mapstructure:"batch_size"`
	ExclusionSample   int           `mapstructure:"exclusion_sample"`
	GenerationTimeout time.Duration `mapstructure:"generation_timeout"`
	FallbackAfter     time.Duration `mapstructure:"fallback_after"`
	BatchTTL          time.Duration `mapstructure:"batch_ttl"`
	StagingFirst      bool          `mapstructure:"staging_first"`
	SweepCron         string        `mapstructure:"sweep_cron"`
}

func (d DiscoveryConfig) Validate() error {
	if d.PageSizeMax <= 0 {
		return fmt.Errorf("discovery.page_size_max must be > 0")
	}
	if d.FallbackAfter > d.GenerationTimeout {
		return fmt.Errorf("discovery.fallback_after must not exceed discovery.generation_timeout")
	}
	return nil
}

// LoadConfig loads config from file and INFLUO_* env overrides
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.listen", ":10002")
	viper.SetDefault("providers.openai.completion_model", "gpt-4o-mini")
	viper.SetDefault("providers.openai.temperature", 0.7)
	viper.SetDefault("providers.openai.max_tokens", 4096)
	viper.SetDefault("providers.openai.timeout", 60*time.Second)
	viper.SetDefault("discovery.page_size_max", 50)
	viper.SetDefault("discovery.page_size_default", 12)
	viper.SetDefault("discovery.batch_size", 12)
	viper.SetDefault("discovery.exclusion_sample", 300)
	viper.SetDefault("discovery.generation_timeout", 45*time.Second)
	viper.SetDefault("discovery.fallback_after", 15*time.Second)
	viper.SetDefault("discovery.batch_ttl", 30*time.Minute)
	viper.SetDefault("discovery.staging_first", true)
	viper.SetDefault("discovery.sweep_cron", "@hourly")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("INFLUO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Databases.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Discovery.Validate(); err != nil {
		panic(err)
	}
	return &config
}
