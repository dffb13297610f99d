package config

import (
	"time"

	"github.com/dmitrijs2005/authgate/internal/flagx"
)

// Config holds runtime settings for the client.
type Config struct {
	ServerURL string
	Login     string
	Timeout   time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.Timeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and the environment. Malformed input panics.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	return cfg
}

func parseEnv(cfg *Config) {
	flagx.EnvString(&cfg.ServerURL, "AUTHGATE_SERVER_URL")
	flagx.EnvString(&cfg.Login, "AUTHGATE_LOGIN")
	if err := flagx.EnvDuration(&cfg.Timeout, "AUTHGATE_CLIENT_TIMEOUT"); err != nil {
		panic(err)
	}
}
