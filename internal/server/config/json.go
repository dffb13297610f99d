package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/authgate/internal/flagx"
	"github.com/dmitrijs2005/authgate/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations accept "1s" strings or
// integer nanoseconds. Pointer fields distinguish "absent" from zero values,
// so a file only overrides what it mentions.
type JsonConfig struct {
	ListenAddr      *string         `json:"listen_addr"`
	MetricsAddr     *string         `json:"metrics_addr"`
	DatabaseDSN     *string         `json:"database_dsn"`
	DatabaseTimeout *timex.Duration `json:"database_timeout"`

	KeySource   *string `json:"key_source"`
	GenerateKey *bool   `json:"generate_key"`

	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`
	S3AccessKey    *string `json:"s3_access_key"`
	S3SecretKey    *string `json:"s3_secret_key"`

	MailMode     *string         `json:"mail_mode"`
	SMTPHost     *string         `json:"smtp_host"`
	SMTPPort     *int            `json:"smtp_port"`
	SMTPUsername *string         `json:"smtp_username"`
	SMTPPassword *string         `json:"smtp_password"`
	MailFrom     *string         `json:"mail_from"`
	MailTimeout  *timex.Duration `json:"mail_timeout"`

	CoreServiceURI    *string         `json:"core_service_uri"`
	RelayTimeout      *timex.Duration `json:"relay_timeout"`
	RelaySecret       *string         `json:"relay_secret"`
	RelayAssertionTTL *timex.Duration `json:"relay_assertion_ttl"`

	AccessCodeBytes *int `json:"access_code_bytes"`

	ShutdownTimeout *timex.Duration `json:"shutdown_timeout"`
	DrainDuration   *timex.Duration `json:"drain_duration"`

	LogJSON    *bool   `json:"log_json"`
	LogDebug   *bool   `json:"log_debug"`
	LogService *string `json:"log_service"`
}

// parseJson overlays values from the file named by -c/-config. Without the
// flag nothing is loaded. An unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setDuration(&config.DatabaseTimeout, c.DatabaseTimeout)

	setString(&config.KeySource, c.KeySource)
	if c.GenerateKey != nil {
		config.GenerateKey = *c.GenerateKey
	}

	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)

	setString(&config.MailMode, c.MailMode)
	setString(&config.SMTPHost, c.SMTPHost)
	if c.SMTPPort != nil {
		config.SMTPPort = *c.SMTPPort
	}
	setString(&config.SMTPUsername, c.SMTPUsername)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)
	setDuration(&config.MailTimeout, c.MailTimeout)

	setString(&config.CoreServiceURI, c.CoreServiceURI)
	setDuration(&config.RelayTimeout, c.RelayTimeout)
	setString(&config.RelaySecret, c.RelaySecret)
	setDuration(&config.RelayAssertionTTL, c.RelayAssertionTTL)

	if c.AccessCodeBytes != nil {
		config.AccessCodeBytes = *c.AccessCodeBytes
	}

	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)
	setDuration(&config.DrainDuration, c.DrainDuration)

	if c.LogJSON != nil {
		config.LogJSON = *c.LogJSON
	}
	if c.LogDebug != nil {
		config.LogDebug = *c.LogDebug
	}
	setString(&config.LogService, c.LogService)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
