// Package relay forwards authenticated requests to the core service, with
// the login in the path replaced by the user's numeric id.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/apperr"
	"github.com/dmitrijs2005/authgate/internal/server/auth"
	"github.com/dmitrijs2005/authgate/internal/server/metrics"
	"github.com/dmitrijs2005/authgate/internal/server/models"
)

var supportedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// SupportsMethod reports whether method can be relayed.
func SupportsMethod(method string) bool {
	return supportedMethods[method]
}

// RewritePath turns /User/{login}[/rest] into /User/{userID}[/rest]. It works
// on the escaped form of the path, so encoded characters in the trailing
// segments are kept verbatim.
func RewritePath(path string, userID int64) (string, error) {
	_, rest, err := splitUserPath(path)
	if err != nil {
		return "", err
	}
	return "/" + common.UserRoutePrefix + "/" + strconv.FormatInt(userID, 10) + rest, nil
}

// splitUserPath returns the login segment and everything after it,
// including the leading slash.
func splitUserPath(path string) (login, rest string, err error) {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if len(parts) < 2 || parts[0] != common.UserRoutePrefix || parts[1] == "" {
		return "", "", apperr.New(apperr.KindWrongRequest)
	}
	if len(parts) == 3 {
		rest = "/" + parts[2]
	}
	return parts[1], rest, nil
}

type Options struct {
	CoreServiceURI string
	Timeout        time.Duration
	// Secret enables the signed assertion header when non-empty.
	Secret       string
	AssertionTTL time.Duration
	Transport    http.RoundTripper
	Metrics      *metrics.Metrics
	Log          logging.Logger
}

type Relay struct {
	target       *url.URL
	timeout      time.Duration
	secret       []byte
	assertionTTL time.Duration
	transport    http.RoundTripper
	metrics      *metrics.Metrics
	log          logging.Logger
}

func New(opts Options) (*Relay, error) {
	target, err := url.Parse(opts.CoreServiceURI)
	if err != nil {
		return nil, fmt.Errorf("core service uri: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("core service uri %q: scheme and host required", opts.CoreServiceURI)
	}

	ttl := opts.AssertionTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}

	return &Relay{
		target:       target,
		timeout:      opts.Timeout,
		secret:       []byte(opts.Secret),
		assertionTTL: ttl,
		transport:    transport,
		metrics:      opts.Metrics,
		log:          log.With("module", "relay"),
	}, nil
}

// Forward relays r for the authenticated user and copies the downstream
// response to w. A returned error means nothing was written to w.
func (rl *Relay) Forward(w http.ResponseWriter, r *http.Request, user *models.User) error {
	if !SupportsMethod(r.Method) {
		return apperr.New(apperr.KindUnsupportedHTTPMethod)
	}

	escaped := r.URL.EscapedPath()
	rawLogin, _, err := splitUserPath(escaped)
	if err != nil {
		return err
	}
	if login, err := url.PathUnescape(rawLogin); err != nil || login != user.Login {
		return apperr.New(apperr.KindWrongRequest)
	}

	path, err := RewritePath(escaped, user.ID)
	if err != nil {
		return err
	}
	outRaw := strings.TrimSuffix(rl.target.EscapedPath(), "/") + path
	outPath, err := url.PathUnescape(outRaw)
	if err != nil {
		return apperr.Wrap(apperr.KindWrongRequest, err)
	}

	var assertion string
	if len(rl.secret) > 0 {
		assertion, err = auth.GenerateAssertion(user.ID, user.Login, rl.secret, rl.assertionTTL)
		if err != nil {
			return apperr.Wrap(apperr.KindSendRequestToCoreService, err)
		}
	}

	ctx := r.Context()
	if rl.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rl.timeout)
		defer cancel()
	}

	var (
		proxyErr error
		status   int
	)
	start := time.Now()

	proxy := &httputil.ReverseProxy{
		Transport: rl.transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = rl.target.Scheme
			pr.Out.URL.Host = rl.target.Host
			pr.Out.URL.Path = outPath
			pr.Out.URL.RawPath = outRaw
			pr.Out.URL.RawQuery = pr.In.URL.RawQuery
			pr.Out.Host = ""

			pr.Out.Header.Set("Content-Type", "application/json")
			pr.Out.Header.Del(common.SignatureHeaderName)
			pr.Out.Header.Del(common.NonceHeaderName)
			if id := logging.RequestID(ctx); id != "" {
				pr.Out.Header.Set(common.RequestIDHeaderName, id)
			}
			if assertion != "" {
				pr.Out.Header.Set(common.AssertionHeaderName, assertion)
			}
			pr.SetXForwarded()
		},
		ModifyResponse: func(resp *http.Response) error {
			status = resp.StatusCode
			return nil
		},
		ErrorHandler: func(_ http.ResponseWriter, _ *http.Request, err error) {
			proxyErr = err
		},
	}

	proxy.ServeHTTP(w, r.WithContext(ctx))
	rl.metrics.ObserveRelay(r.Method, status, time.Since(start))

	if proxyErr != nil {
		if errors.Is(proxyErr, context.Canceled) && r.Context().Err() != nil {
			rl.log.Info(ctx, "client went away during relay", "user_id", user.ID)
		} else {
			rl.log.Error(ctx, "relay to core service failed", "user_id", user.ID, "path", path, "err", proxyErr)
		}
		return apperr.Wrap(apperr.KindSendRequestToCoreService, proxyErr)
	}

	rl.log.Debug(ctx, "relayed", "user_id", user.ID, "method", r.Method, "path", path, "status", status)
	return nil
}
