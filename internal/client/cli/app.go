package cli

import (
	"bufio"
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/authgate/internal/client/client"
	"github.com/dmitrijs2005/authgate/internal/client/config"
	"github.com/urfave/cli/v2"
)

var flagServer = &cli.StringFlag{
	Name:    "server",
	Aliases: []string{"s"},
	Usage:   "gateway base URL",
}

var flagLogin = &cli.StringFlag{
	Name:    "login",
	Aliases: []string{"l"},
	Usage:   "account login",
}

var flagTimeout = &cli.DurationFlag{
	Name:  "timeout",
	Usage: "per-command timeout",
}

var flagConfig = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "path to a JSON config file",
}

var flagEmail = &cli.StringFlag{
	Name:  "email",
	Usage: "account e-mail address",
}

var flagCode = &cli.StringFlag{
	Name:  "code",
	Usage: "access code from the recovery e-mail",
}

var flagData = &cli.StringFlag{
	Name:    "data",
	Aliases: []string{"d"},
	Usage:   "JSON request body",
}

type App struct {
	config *config.Config
	reader *bufio.Reader
	out    io.Writer

	// newClient is replaced in tests.
	newClient func(baseURL string) (*client.Client, error)
}

// NewApp returns the urfave/cli application. cfg supplies flag defaults.
func NewApp(cfg *config.Config, in io.Reader, out io.Writer) *cli.App {
	a := &App{
		config: cfg,
		reader: bufio.NewReader(in),
		out:    out,
		newClient: func(baseURL string) (*client.Client, error) {
			return client.New(baseURL, &http.Client{})
		},
	}
	return a.cliApp()
}

func (a *App) cliApp() *cli.App {
	server := *flagServer
	server.Value = a.config.ServerURL
	login := *flagLogin
	login.Value = a.config.Login
	timeout := *flagTimeout
	timeout.Value = a.config.Timeout

	return &cli.App{
		Name:      "authgate",
		Usage:     "talk to an authgate gateway",
		Writer:    a.out,
		ErrWriter: a.out,
		Flags:     []cli.Flag{&server, &login, &timeout, flagConfig},
		Commands: []*cli.Command{
			{
				Name:   "pubkey",
				Usage:  "print the gateway RSA public key",
				Action: a.pubkey,
			},
			{
				Name:   "register",
				Usage:  "create an account",
				Flags:  []cli.Flag{flagEmail},
				Action: a.register,
			},
			{
				Name:   "login",
				Usage:  "check credentials with a signed request",
				Action: a.login,
			},
			{
				Name:  "recover",
				Usage: "reset a forgotten password",
				Subcommands: []*cli.Command{
					{
						Name:   "request",
						Usage:  "ask for an access code by e-mail",
						Flags:  []cli.Flag{flagEmail},
						Action: a.recoverRequest,
					},
					{
						Name:   "apply",
						Usage:  "confirm the new password with the access code",
						Flags:  []cli.Flag{flagCode},
						Action: a.recoverApply,
					},
				},
			},
			{
				Name:      "call",
				Usage:     "send a signed request to the core service",
				ArgsUsage: "METHOD PATH",
				Flags:     []cli.Flag{flagData},
				Action:    a.call,
			},
		},
	}
}

func (a *App) session(cCtx *cli.Context) (*client.Client, context.Context, context.CancelFunc, error) {
	c, err := a.newClient(cCtx.String(flagServer.Name))
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(flagTimeout.Name))
	return c, ctx, cancel, nil
}

func (a *App) loginName(cCtx *cli.Context) (string, error) {
	if l := cCtx.String(flagLogin.Name); l != "" {
		return l, nil
	}
	return GetSimpleText(a.reader, "Login", a.out)
}

func (a *App) stringOrPrompt(cCtx *cli.Context, name, prompt string) (string, error) {
	if v := cCtx.String(name); v != "" {
		return v, nil
	}
	return GetSimpleText(a.reader, prompt, a.out)
}

func (a *App) pubkey(cCtx *cli.Context) error {
	c, ctx, cancel, err := a.session(cCtx)
	if err != nil {
		return err
	}
	defer cancel()

	pub, err := c.FetchPublicKey(ctx)
	if err != nil {
		return err
	}
	return pem.Encode(a.out, &pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(pub)})
}

func (a *App) register(cCtx *cli.Context) error {
	login, err := a.loginName(cCtx)
	if err != nil {
		return err
	}
	email, err := a.stringOrPrompt(cCtx, flagEmail.Name, "E-mail")
	if err != nil {
		return err
	}
	password, err := GetNewPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}

	c, ctx, cancel, err := a.session(cCtx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := c.Register(ctx, login, email, password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered %s\n", login)
	return nil
}

func (a *App) login(cCtx *cli.Context) error {
	login, err := a.loginName(cCtx)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}

	c, ctx, cancel, err := a.session(cCtx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := c.Login(ctx, login, password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "credentials accepted")
	return nil
}

func (a *App) recoverRequest(cCtx *cli.Context) error {
	login, err := a.loginName(cCtx)
	if err != nil {
		return err
	}
	email, err := a.stringOrPrompt(cCtx, flagEmail.Name, "E-mail")
	if err != nil {
		return err
	}
	password, err := GetNewPassword(a.reader, "New password", a.out)
	if err != nil {
		return err
	}

	c, ctx, cancel, err := a.session(cCtx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := c.RequestRecovery(ctx, login, email, password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "access code sent, check your e-mail")
	return nil
}

func (a *App) recoverApply(cCtx *cli.Context) error {
	login, err := a.loginName(cCtx)
	if err != nil {
		return err
	}
	code, err := a.stringOrPrompt(cCtx, flagCode.Name, "Access code")
	if err != nil {
		return err
	}

	c, ctx, cancel, err := a.session(cCtx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := c.ApplyRecovery(ctx, login, code); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "password changed")
	return nil
}

func (a *App) call(cCtx *cli.Context) error {
	if cCtx.NArg() != 2 {
		return errors.New("usage: call METHOD PATH")
	}
	method := strings.ToUpper(cCtx.Args().Get(0))
	path := cCtx.Args().Get(1)

	login, err := a.loginName(cCtx)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}

	var body []byte
	if d := cCtx.String(flagData.Name); d != "" {
		body = []byte(d)
	}

	c, ctx, cancel, err := a.session(cCtx)
	if err != nil {
		return err
	}
	defer cancel()

	resp, err := c.Do(ctx, method, login, password, path, body)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d %s\n%s\n", resp.Status, http.StatusText(resp.Status), resp.Body)
	return nil
}
