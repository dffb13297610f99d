package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/cryptox"
	"github.com/dmitrijs2005/authgate/internal/server/keystore"
	"github.com/dmitrijs2005/authgate/internal/server/paramcodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ksOnce sync.Once
	testKS *keystore.KeyStore
)

func testKeyStore(t *testing.T) *keystore.KeyStore {
	t.Helper()
	ksOnce.Do(func() {
		priv, err := keystore.Generate(keystore.MinKeyBits)
		if err != nil {
			panic(err)
		}
		if testKS, err = keystore.FromKey(priv); err != nil {
			panic(err)
		}
	})
	return testKS
}

// gateway is a minimal stand-in that checks what the client sends.
type gateway struct {
	t        *testing.T
	codec    *paramcodec.Codec
	mu       sync.Mutex
	pubkeyN  int
	password string
	email    string
	lastPath string
	lastBody map[string]any
}

func newGateway(t *testing.T) (*gateway, *Client) {
	t.Helper()
	g := &gateway{t: t, codec: paramcodec.New(testKeyStore(t)), password: "p@ss", email: "alice@example.com"}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /Pubkey", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.pubkeyN++
		g.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "pubkey": string(testKeyStore(t).Public())})
	})
	mux.HandleFunc("POST /User", func(w http.ResponseWriter, r *http.Request) {
		body := g.readBody(r)
		email, err := g.codec.Decode(body["email"].(string), "email")
		require.NoError(t, err)
		password, err := g.codec.Decode(body["password"].(string), "password")
		require.NoError(t, err)
		if body["login"] == "taken" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 4, "message": "Failed to register"})
			return
		}
		g.mu.Lock()
		g.email, g.password = email, password
		g.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("POST /User/{login}", func(w http.ResponseWriter, r *http.Request) {
		if !g.verify(r) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 19, "message": "Wrong signature"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("POST /User/{login}/Password", func(w http.ResponseWriter, r *http.Request) {
		body := g.readBody(r)
		_, err := g.codec.Decode(body["new_password"].(string), "new_password")
		require.NoError(t, err)
		nonce := int64(body["nonce"].(float64))
		if !cryptox.VerifyNonceEmail(nonce, g.email, body["nonce_email"].(string)) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 11, "message": "Wrong nonce"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("PATCH /User/{login}/Password", func(w http.ResponseWriter, r *http.Request) {
		body := g.readBody(r)
		if body["access_code"] != "c0de" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 15, "message": "Wrong access code"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("/User/{login}/Orders/", func(w http.ResponseWriter, r *http.Request) {
		if !g.verify(r) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 19, "message": "Wrong signature"})
			return
		}
		g.mu.Lock()
		g.lastPath = r.Method + " " + r.URL.RequestURI()
		g.mu.Unlock()
		if r.Method == http.MethodDelete {
			writeJSON(w, http.StatusConflict, map[string]any{"reason": "locked"})
			return
		}
		data, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Core", "1")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(data)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, srv.Client())
	require.NoError(t, err)
	return g, c
}

func (g *gateway) readBody(r *http.Request) map[string]any {
	g.t.Helper()
	var body map[string]any
	require.NoError(g.t, json.NewDecoder(r.Body).Decode(&body))
	g.mu.Lock()
	g.lastBody = body
	g.mu.Unlock()
	return body
}

func (g *gateway) verify(r *http.Request) bool {
	nonce, err := strconv.ParseInt(r.Header.Get(common.NonceHeaderName), 10, 64)
	if err != nil {
		return false
	}
	g.mu.Lock()
	key := cryptox.DeriveSigningKey(g.password)
	g.mu.Unlock()
	return cryptox.VerifySignature(r.PathValue("login"), nonce, key, r.Header.Get(common.SignatureHeaderName))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("localhost:8080", nil)
	require.Error(t, err)

	c, err := New("http://localhost:8080", nil)
	require.NoError(t, err)
	assert.Same(t, http.DefaultClient, c.http)
}

func TestNextNonce_StrictlyIncreasing(t *testing.T) {
	c, err := New("http://gw", nil)
	require.NoError(t, err)

	fixed := time.UnixMilli(5000)
	c.now = func() time.Time { return fixed }

	assert.Equal(t, int64(5000), c.NextNonce())
	assert.Equal(t, int64(5001), c.NextNonce())
	assert.Equal(t, int64(5002), c.NextNonce())

	c.now = func() time.Time { return time.UnixMilli(9000) }
	assert.Equal(t, int64(9000), c.NextNonce())
}

func TestFetchPublicKey_Cached(t *testing.T) {
	g, c := newGateway(t)
	ctx := context.Background()

	a, err := c.FetchPublicKey(ctx)
	require.NoError(t, err)
	b, err := c.FetchPublicKey(ctx)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, g.pubkeyN)
	assert.Equal(t, testKeyStore(t).PublicKey().N, a.N)
}

func TestRegister_EncryptsSecrets(t *testing.T) {
	g, c := newGateway(t)

	require.NoError(t, c.Register(context.Background(), "alice", "a@b.c", "s3cret"))
	assert.Equal(t, "a@b.c", g.email)
	assert.Equal(t, "s3cret", g.password)
	assert.NotEqual(t, "s3cret", g.lastBody["password"])

	err := c.Register(context.Background(), "taken", "x@y.z", "pw")
	require.Error(t, err)
	assert.True(t, IsCode(err, 4))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Failed to register", apiErr.Message)
}

func TestLogin(t *testing.T) {
	_, c := newGateway(t)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "alice", "p@ss"))

	err := c.Login(ctx, "alice", "wrong")
	assert.True(t, IsCode(err, CodeWrongSignature), "got %v", err)

	assert.ErrorIs(t, c.Login(ctx, "", "p@ss"), ErrMissingLogin)
}

func TestRecovery(t *testing.T) {
	_, c := newGateway(t)
	ctx := context.Background()

	require.NoError(t, c.RequestRecovery(ctx, "alice", "alice@example.com", "new-pass"))

	err := c.RequestRecovery(ctx, "alice", "mallory@example.com", "new-pass")
	assert.True(t, IsCode(err, CodeWrongNonce), "got %v", err)

	require.NoError(t, c.ApplyRecovery(ctx, "alice", "c0de"))
	err = c.ApplyRecovery(ctx, "alice", "nope")
	assert.True(t, IsCode(err, CodeWrongAccessCode), "got %v", err)
}

func TestDo_RelaysDownstreamResponse(t *testing.T) {
	g, c := newGateway(t)
	ctx := context.Background()

	resp, err := c.Do(ctx, http.MethodPost, "alice", "p@ss", "/Orders/7?x=1&y=2", []byte(`{"qty":3}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "1", resp.Header.Get("X-Core"))
	assert.JSONEq(t, `{"qty":3}`, string(resp.Body))
	assert.Equal(t, "POST /User/alice/Orders/7?x=1&y=2", g.lastPath)

	resp, err = c.Do(ctx, http.MethodDelete, "alice", "p@ss", "Orders/7", nil)
	require.NoError(t, err, "downstream errors are not gateway errors")
	assert.Equal(t, http.StatusConflict, resp.Status)

	_, err = c.Do(ctx, http.MethodGet, "alice", "bad", "Orders/7", nil)
	assert.True(t, IsCode(err, CodeWrongSignature), "got %v", err)
}

func TestUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.FetchPublicKey(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = c.Do(context.Background(), http.MethodGet, "alice", "p", "x", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCall_UnexpectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, srv.Client())
	require.NoError(t, err)

	err = c.Login(context.Background(), "alice", "p")
	assert.ErrorIs(t, err, ErrUnexpected)
}
