package client

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/cryptox"
)

// maxEnvelopeSize bounds how much of an error or success body is read.
const maxEnvelopeSize = 64 * 1024

type Client struct {
	base *url.URL
	http *http.Client

	mu        sync.Mutex
	pub       *rsa.PublicKey
	lastNonce int64
	now       func() time.Time
}

// New returns a Client for the gateway at baseURL. A nil httpClient means
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient, now: time.Now}, nil
}

// Response is a relayed downstream response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NextNonce returns a nonce greater than any this Client issued before.
func (c *Client) NextNonce() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.now().UnixMilli()
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n
	return n
}

// FetchPublicKey returns the gateway key, asking the gateway only once.
func (c *Client) FetchPublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	c.mu.Lock()
	pub := c.pub
	c.mu.Unlock()
	if pub != nil {
		return pub, nil
	}

	var resp struct {
		Success bool   `json:"success"`
		Pubkey  string `json:"pubkey"`
	}
	if err := c.call(ctx, http.MethodGet, "/Pubkey", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Pubkey == "" {
		return nil, ErrNoPublicKey
	}

	pub, err := cryptox.ParsePublicKeyPEM([]byte(resp.Pubkey))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.pub = pub
	c.mu.Unlock()
	return pub, nil
}

func (c *Client) encrypt(ctx context.Context, plaintext string) (string, error) {
	pub, err := c.FetchPublicKey(ctx)
	if err != nil {
		return "", err
	}
	return cryptox.EncryptParameter(pub, plaintext)
}

// Register creates an account. Email and password travel RSA-encrypted.
func (c *Client) Register(ctx context.Context, login, email, password string) error {
	if login == "" {
		return ErrMissingLogin
	}

	encEmail, err := c.encrypt(ctx, email)
	if err != nil {
		return fmt.Errorf("encrypt email: %w", err)
	}
	encPassword, err := c.encrypt(ctx, password)
	if err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}

	body := map[string]string{"login": login, "email": encEmail, "password": encPassword}
	return c.call(ctx, http.MethodPost, "/User", nil, body, nil)
}

// Login checks the credentials with a signed call. It consumes one nonce.
func (c *Client) Login(ctx context.Context, login, password string) error {
	if login == "" {
		return ErrMissingLogin
	}
	return c.call(ctx, http.MethodPost, userPath(login, ""), c.sign(login, password), nil, nil)
}

// RequestRecovery asks the gateway to mail an access code that will set
// newPassword. The email must be the one the account was registered with.
func (c *Client) RequestRecovery(ctx context.Context, login, email, newPassword string) error {
	if login == "" {
		return ErrMissingLogin
	}

	encPassword, err := c.encrypt(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("encrypt new password: %w", err)
	}

	nonce := c.NextNonce()
	body := struct {
		NewPassword string `json:"new_password"`
		NonceEmail  string `json:"nonce_email"`
		Nonce       int64  `json:"nonce"`
	}{encPassword, cryptox.NonceEmailCommitment(nonce, email), nonce}

	return c.call(ctx, http.MethodPost, userPath(login, "Password"), nil, body, nil)
}

// ApplyRecovery confirms a pending password change with the mailed code.
func (c *Client) ApplyRecovery(ctx context.Context, login, accessCode string) error {
	if login == "" {
		return ErrMissingLogin
	}
	body := map[string]string{"access_code": accessCode}
	return c.call(ctx, http.MethodPatch, userPath(login, "Password"), nil, body, nil)
}

// Do sends a signed request that the gateway relays to the core service.
// rel is the path below /User/{login}/ and may carry a query string. The
// downstream response is returned as is, whatever its status; gateway
// rejections are returned as *APIError.
func (c *Client) Do(ctx context.Context, method, login, password, rel string, body []byte) (*Response, error) {
	if login == "" {
		return nil, ErrMissingLogin
	}

	p, rawQuery, _ := strings.Cut(strings.TrimPrefix(rel, "/"), "?")
	u := c.resolve(userPath(login, p))
	u.RawQuery = rawQuery

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, err
	}
	for k, v := range c.sign(login, password) {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}

	if apiErr := gatewayError(resp, data); apiErr != nil {
		return nil, apiErr
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) sign(login, password string) map[string]string {
	nonce := c.NextNonce()
	key := cryptox.DeriveSigningKey(password)
	return map[string]string{
		common.SignatureHeaderName: cryptox.ComputeSignature(login, nonce, key),
		common.NonceHeaderName:     strconv.FormatInt(nonce, 10),
	}
}

func (c *Client) resolve(p string) *url.URL {
	u := *c.base
	u.Path = strings.TrimSuffix(c.base.Path, "/") + p
	u.RawPath = ""
	return &u
}

func userPath(login, rest string) string {
	p := "/" + common.UserRoutePrefix + "/" + login
	if rest != "" {
		p += "/" + rest
	}
	return p
}

// call performs a gateway protocol request and decodes the success body
// into out, if given.
func (c *Client) call(ctx context.Context, method, p string, hdr map[string]string, in, out any) error {
	var rdr io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(p).String(), rdr)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeSize))
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		if apiErr := gatewayError(resp, data); apiErr != nil {
			return apiErr
		}
		return fmt.Errorf("%w: http %d", ErrUnexpected, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	return nil
}

// gatewayError recognises the error envelope. Relayed downstream errors
// that do not look like an envelope are not gateway errors.
func gatewayError(resp *http.Response, data []byte) *APIError {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	var env struct {
		Code    *uint32 `json:"code"`
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(data, &env); err != nil || env.Code == nil || env.Message == nil {
		return nil
	}
	return &APIError{Status: resp.StatusCode, Code: *env.Code, Message: *env.Message}
}
