package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/authgate/internal/flagx"
)

var (
	valueFlags = []string{
		"a", "m", "d", "k", "u", "s",
		"db-timeout", "relay-timeout", "mail-mode", "smtp-host", "smtp-port",
		"smtp-user", "smtp-password", "mail-from", "access-code-bytes",
		"s3-region", "s3-endpoint",
	}
	boolFlags = []string{"generate-key", "log-json", "log-debug"}
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string            API bind address (e.g. "0.0.0.0:8080")
//	-m string            metrics bind address, "" disables the listener
//	-d string            PostgreSQL DSN
//	-k string            key source URI
//	-u string            core service base URI
//	-s string            relay assertion secret
//	-db-timeout dur      per-statement database timeout
//	-relay-timeout dur   downstream relay timeout
//	-mail-mode string    smtp | log
//	-smtp-host, -smtp-port, -smtp-user, -smtp-password, -mail-from
//	-access-code-bytes n random bytes per recovery access code
//	-s3-region, -s3-endpoint
//	-generate-key, -log-json, -log-debug
//
// os.Args is first filtered with flagx.FilterArgs so flags owned by other
// components do not break parsing. A parse error panics.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], valueFlags, boolFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port for metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.KeySource, "k", config.KeySource, "RSA key source (db:, file:///path, s3://bucket/key)")
	fs.StringVar(&config.CoreServiceURI, "u", config.CoreServiceURI, "core service URI")
	fs.StringVar(&config.RelaySecret, "s", config.RelaySecret, "relay assertion secret")

	fs.DurationVar(&config.DatabaseTimeout, "db-timeout", config.DatabaseTimeout, "database statement timeout")
	fs.DurationVar(&config.RelayTimeout, "relay-timeout", config.RelayTimeout, "core service request timeout")

	fs.StringVar(&config.MailMode, "mail-mode", config.MailMode, "mail delivery: smtp or log")
	fs.StringVar(&config.SMTPHost, "smtp-host", config.SMTPHost, "SMTP host")
	fs.IntVar(&config.SMTPPort, "smtp-port", config.SMTPPort, "SMTP port")
	fs.StringVar(&config.SMTPUsername, "smtp-user", config.SMTPUsername, "SMTP username")
	fs.StringVar(&config.SMTPPassword, "smtp-password", config.SMTPPassword, "SMTP password")
	fs.StringVar(&config.MailFrom, "mail-from", config.MailFrom, "sender address")

	fs.IntVar(&config.AccessCodeBytes, "access-code-bytes", config.AccessCodeBytes, "random bytes per access code")

	fs.StringVar(&config.S3Region, "s3-region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "s3-endpoint", config.S3BaseEndpoint, "S3 base endpoint")

	fs.BoolVar(&config.GenerateKey, "generate-key", config.GenerateKey, "generate a key when the db key source is empty")
	fs.BoolVar(&config.LogJSON, "log-json", config.LogJSON, "log in JSON format")
	fs.BoolVar(&config.LogDebug, "log-debug", config.LogDebug, "log debug messages")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
