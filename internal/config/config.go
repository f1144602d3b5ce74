package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env                  string `mapstructure:"ENV"`
	APITarget            string `mapstructure:"API_TARGET"`
	APIBaseURL           string `mapstructure:"API_BASE_URL"`
	LANHost              string `mapstructure:"LAN_HOST"`
	HTTPTimeoutSeconds   int    `mapstructure:"HTTP_TIMEOUT_SECONDS"`
	StagingPath          string `mapstructure:"STAGING_PATH"`
	AllowOfflineFinalize bool   `mapstructure:"ALLOW_OFFLINE_FINALIZE"`
	StubPort             string `mapstructure:"STUB_PORT"`
	StubJWTSecret        string `mapstructure:"STUB_JWT_SECRET"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("API_TARGET", "emulator")
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 10)
	v.SetDefault("STAGING_PATH", "careplus-staging.json")
	v.SetDefault("ALLOW_OFFLINE_FINALIZE", false)
	v.SetDefault("STUB_PORT", "8080")
	v.SetDefault("STUB_JWT_SECRET", "dev-only-secret")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("ENV")
	v.BindEnv("API_TARGET")
	v.BindEnv("API_BASE_URL")
	v.BindEnv("LAN_HOST")
	v.BindEnv("HTTP_TIMEOUT_SECONDS")
	v.BindEnv("STAGING_PATH")
	v.BindEnv("ALLOW_OFFLINE_FINALIZE")
	v.BindEnv("STUB_PORT")
	v.BindEnv("STUB_JWT_SECRET")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.IsDev() && cfg.AllowOfflineFinalize {
		log.Println("WARNING: ALLOW_OFFLINE_FINALIZE is enabled.")
		log.Println("WARNING: Registration will synthesize a local session when the backend is unreachable.")
		log.Println("WARNING: This mode is for development only.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HTTPTimeout returns the bounded timeout applied to every backend call.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// ResolvedBaseURL returns the backend base URL for the configured target.
// An explicit API_BASE_URL always wins. Otherwise the target selects one of
// the three environments the app is run against:
//   - emulator   → the Android emulator loopback alias
//   - lan        → a developer machine on the local network (LAN_HOST)
//   - production → the production domain
func (c *Config) ResolvedBaseURL() string {
	if c.APIBaseURL != "" {
		return c.APIBaseURL
	}
	switch c.APITarget {
	case "lan":
		host := c.LANHost
		if host == "" {
			host = "localhost"
		}
		return fmt.Sprintf("http://%s:%s", host, c.StubPort)
	case "production":
		return "https://api.careplus.kr"
	default: // emulator
		return fmt.Sprintf("http://10.0.2.2:%s", c.StubPort)
	}
}

// Validate checks that the configuration is safe to run.
// ALLOW_OFFLINE_FINALIZE synthesizes a fake session on backend failure and
// must never be active in production.
func (c *Config) Validate() error {
	switch c.APITarget {
	case "emulator", "lan", "production":
	default:
		return fmt.Errorf("API_TARGET must be \"emulator\", \"lan\", or \"production\", got %q", c.APITarget)
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTPTimeoutSeconds)
	}
	if c.IsProduction() && c.AllowOfflineFinalize {
		return fmt.Errorf("ALLOW_OFFLINE_FINALIZE must not be set in production")
	}
	if c.IsProduction() && c.StubJWTSecret == "dev-only-secret" {
		return fmt.Errorf("STUB_JWT_SECRET must be changed from the development default in production")
	}
	return nil
}
