// Package server wires the gateway together: database and migrations, the
// RSA key store, services, the relay and the HTTP listeners, and runs them
// until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/apperr"
	"github.com/dmitrijs2005/authgate/internal/server/config"
	"github.com/dmitrijs2005/authgate/internal/server/httpserver"
	"github.com/dmitrijs2005/authgate/internal/server/keystore"
	"github.com/dmitrijs2005/authgate/internal/server/mail"
	"github.com/dmitrijs2005/authgate/internal/server/metrics"
	"github.com/dmitrijs2005/authgate/internal/server/paramcodec"
	"github.com/dmitrijs2005/authgate/internal/server/relay"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authgate/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type App struct {
	config *config.Config
	logger *logging.SlogLogger
	db     *sql.DB
	server *httpserver.Server
}

// NewApp connects to the database, applies migrations, loads the key and
// builds the HTTP server. Any failure here is fatal to the process.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(logging.Options{
		JSON:    c.LogJSON,
		Debug:   c.LogDebug,
		Service: c.LogService,
		Version: Version,
	})

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	dctx, cancel := context.WithTimeout(ctx, c.DatabaseTimeout)
	db, err := repomanager.Open(dctx, c.DatabaseDSN)
	cancel()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseConnection, err)
	}

	app := &App{config: c, logger: logger, db: db}
	if err := app.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config
	rm := repomanager.NewPostgresRepositoryManager()

	if err := rm.RunMigrations(ctx, app.db); err != nil {
		return err
	}

	src, err := keystore.NewSource(ctx, c.KeySource, keystore.SourceDeps{
		Keys:        rm.Keys(app.db),
		GenerateKey: c.GenerateKey,
		S3: keystore.S3Options{
			Region:    c.S3Region,
			Endpoint:  c.S3BaseEndpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		},
	})
	if err != nil {
		return err
	}
	keys, err := keystore.Load(ctx, src)
	if err != nil {
		return err
	}
	app.logger.Info(ctx, "rsa key loaded", "source", src.String(), "bits", keys.PublicKey().N.BitLen())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mx, err := metrics.New(metrics.Options{Registerer: reg})
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	codec := paramcodec.New(keys)
	authService := services.NewAuthService(app.db, rm, c, mx, app.logger)
	userService := services.NewUserService(app.db, rm, codec, c, app.logger)
	recoveryService := services.NewRecoveryService(app.db, rm, codec, app.newMailer(), c, mx, app.logger)

	rl, err := relay.New(relay.Options{
		CoreServiceURI: c.CoreServiceURI,
		Timeout:        c.RelayTimeout,
		Secret:         c.RelaySecret,
		AssertionTTL:   c.RelayAssertionTTL,
		Metrics:        mx,
		Log:            app.logger,
	})
	if err != nil {
		return err
	}

	h := httpserver.NewHandler(keys, authService, userService, recoveryService, rl, app.logger)
	app.server = httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               c.ListenAddr,
		MetricsAddr:              c.MetricsAddr,
		Log:                      app.logger,
		Metrics:                  mx,
		Gatherer:                 reg,
		DrainDuration:            c.DrainDuration,
		GracefulShutdownDuration: c.ShutdownTimeout,
		ReadTimeout:              c.RelayTimeout,
		WriteTimeout:             c.WriteTimeout(),
	}, h)
	return nil
}

func (app *App) newMailer() mail.Mailer {
	c := app.config
	if c.MailMode == config.MailModeSMTP {
		return mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.Sender(),
			Timeout:  c.MailTimeout,
		})
	}
	app.logger.Warn(context.Background(), "recovery mail is written to the log, not sent")
	return mail.NewLogMailer(app.logger)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// drains and shuts the listeners down and closes the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "listen", app.config.ListenAddr, "core", app.config.CoreServiceURI)
	app.initSignalHandler(cancelFunc)

	app.server.RunInBackground()
	<-ctx.Done()

	app.logger.Info(context.Background(), "shutting down")
	app.server.Shutdown()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "closing database", "err", err)
	}
}
