package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	APIURL          string        `mapstructure:"api_url"`
	APITimeout      time.Duration `mapstructure:"api_timeout"`
	UploadTimeout   time.Duration `mapstructure:"upload_timeout"`
	TokenFile       string        `mapstructure:"token_file"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RefreshTimeout  time.Duration `mapstructure:"refresh_timeout"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
}

// Load reads configuration from defaults, an optional file, an optional .env
// file in the working directory and CHAMADA_* environment variables, in
// increasing order of precedence.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetDefault("api_url", "http://localhost:3001/api")
	v.SetDefault("api_timeout", 10*time.Second)
	v.SetDefault("upload_timeout", 60*time.Second)
	v.SetDefault("token_file", defaultTokenFile())
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("max_upload_bytes", 10<<20)
	v.SetDefault("refresh_interval", 30*time.Second)
	v.SetDefault("refresh_timeout", 10*time.Second)
	v.SetDefault("metrics_addr", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("chamada")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "chamada"))
		}
	}

	v.SetEnvPrefix("CHAMADA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	parsed, err := url.Parse(c.APIURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid api_url %q", c.APIURL)
	}
	if c.APITimeout <= 0 || c.UploadTimeout <= 0 {
		return errors.New("api_timeout and upload_timeout must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".chamada-token"
	}
	return filepath.Join(dir, "chamada", "token")
}
