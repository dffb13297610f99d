package config

import "github.com/dmitrijs2005/authgate/internal/flagx"

// parseEnv overlays environment variables. The unprefixed names are the ones
// deployments of the gateway have always used; AUTHGATE_* names cover the
// rest and win when both are set. Malformed values panic.
func parseEnv(config *Config) {
	flagx.EnvString(&config.ListenAddr, "AUTHGATE_LISTEN_ADDR", "APP_ENDPOINT")
	flagx.EnvString(&config.MetricsAddr, "AUTHGATE_METRICS_ADDR")
	flagx.EnvString(&config.DatabaseDSN, "AUTHGATE_DATABASE_DSN", "DATABASE_URL")
	flagx.EnvString(&config.KeySource, "AUTHGATE_KEY_SOURCE")

	flagx.EnvString(&config.S3Region, "AUTHGATE_S3_REGION")
	flagx.EnvString(&config.S3BaseEndpoint, "AUTHGATE_S3_BASE_ENDPOINT")
	flagx.EnvString(&config.S3AccessKey, "AUTHGATE_S3_ACCESS_KEY")
	flagx.EnvString(&config.S3SecretKey, "AUTHGATE_S3_SECRET_KEY")

	flagx.EnvString(&config.MailMode, "AUTHGATE_MAIL_MODE")
	flagx.EnvString(&config.SMTPHost, "AUTHGATE_SMTP_HOST")
	flagx.EnvString(&config.SMTPUsername, "AUTHGATE_SMTP_USERNAME", "VERIFICATION_EMAIL")
	flagx.EnvString(&config.SMTPPassword, "AUTHGATE_SMTP_PASSWORD", "VERIFICATION_EMAIL_PASSWORD")
	flagx.EnvString(&config.MailFrom, "AUTHGATE_MAIL_FROM")

	flagx.EnvString(&config.CoreServiceURI, "AUTHGATE_CORE_SERVICE_URI", "CORE_SERVICE_URI")
	flagx.EnvString(&config.RelaySecret, "AUTHGATE_RELAY_SECRET")
	flagx.EnvString(&config.LogService, "AUTHGATE_LOG_SERVICE")

	for _, err := range []error{
		flagx.EnvDuration(&config.DatabaseTimeout, "AUTHGATE_DATABASE_TIMEOUT"),
		flagx.EnvBool(&config.GenerateKey, "AUTHGATE_GENERATE_KEY"),
		flagx.EnvInt(&config.SMTPPort, "AUTHGATE_SMTP_PORT"),
		flagx.EnvDuration(&config.MailTimeout, "AUTHGATE_MAIL_TIMEOUT"),
		flagx.EnvDuration(&config.RelayTimeout, "AUTHGATE_RELAY_TIMEOUT"),
		flagx.EnvInt(&config.AccessCodeBytes, "AUTHGATE_ACCESS_CODE_BYTES"),
		flagx.EnvDuration(&config.ShutdownTimeout, "AUTHGATE_SHUTDOWN_TIMEOUT"),
		flagx.EnvBool(&config.LogJSON, "AUTHGATE_LOG_JSON"),
		flagx.EnvBool(&config.LogDebug, "AUTHGATE_LOG_DEBUG"),
	} {
		if err != nil {
			panic(err)
		}
	}
}
