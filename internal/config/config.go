package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type LiveKitConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	URL       string        `mapstructure:"url"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type Config struct {
	Mode             string        `mapstructure:"mode"`
	Port             int           `mapstructure:"port"`
	ReadLimit        int64         `mapstructure:"read_limit"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	SendBuffer       int           `mapstructure:"send_buffer"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	CallRateLimit    int           `mapstructure:"call_rate_limit"`
	CallRateInterval time.Duration `mapstructure:"call_rate_interval"`
	DatabaseURL      string        `mapstructure:"database_url"`
	CallLogEnabled   bool          `mapstructure:"call_log_enabled"`
	LiveKit          LiveKitConfig `mapstructure:"livekit"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("call_rate_limit", 10)
	v.SetDefault("call_rate_interval", "10s")
	v.SetDefault("database_url", "")
	v.SetDefault("call_log_enabled", false)
	v.SetDefault("livekit.api_key", "")
	v.SetDefault("livekit.api_secret", "")
	v.SetDefault("livekit.url", "")
	v.SetDefault("livekit.token_ttl", "6h")

	// Secrets come from the environment in every deployment we run.
	_ = v.BindEnv("livekit.api_key", "LIVEKIT_API_KEY")
	_ = v.BindEnv("livekit.api_secret", "LIVEKIT_API_SECRET")
	_ = v.BindEnv("livekit.url", "LIVEKIT_URL")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("port", "PORT")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
