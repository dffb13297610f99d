// Package mail delivers access codes to users. SMTPMailer talks to a real
// server through go-mail; LogMailer writes messages to the log for
// development setups.
package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authgate/internal/logging"
	gomail "github.com/wneessen/go-mail"
)

var (
	// ErrInit marks failures to build the message or the SMTP client.
	ErrInit = errors.New("mail init")
	// ErrSend marks delivery failures.
	ErrSend = errors.New("mail send")
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends a single message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

var newSender = func(host string, opts ...gomail.Option) (sender, error) {
	return gomail.NewClient(host, opts...)
}

// SMTPMailer opens a fresh authenticated connection per message.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	gm, err := buildMessage(m.cfg.From, msg)
	if err != nil {
		return errors.Join(ErrInit, err)
	}

	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.cfg.Username),
		gomail.WithPassword(m.cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	}
	if m.cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(m.cfg.Timeout))
	}

	client, err := newSender(m.cfg.Host, opts...)
	if err != nil {
		return errors.Join(ErrInit, err)
	}

	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	if err := client.DialAndSendWithContext(ctx, gm); err != nil {
		return errors.Join(ErrSend, err)
	}
	return nil
}

func buildMessage(from string, msg Message) (*gomail.Msg, error) {
	gm := gomail.NewMsg()
	if err := gm.From(from); err != nil {
		return nil, fmt.Errorf("from %q: %w", from, err)
	}
	if err := gm.To(msg.To); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	gm.Subject(msg.Subject)
	gm.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return gm, nil
}

// LogMailer logs messages instead of sending them. The body carries the
// access code, so it is only logged at debug level.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log.With("module", "mail")}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.Info(ctx, "mail not sent, log mode", "to", msg.To, "subject", msg.Subject)
	m.log.Debug(ctx, "mail body", "body", msg.Body)
	return nil
}
