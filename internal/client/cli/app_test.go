package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authgate/internal/client/client"
	"github.com/dmitrijs2005/authgate/internal/client/config"
	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/server/keystore"
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

type recorded struct {
	method string
	uri    string
	header http.Header
	body   string
}

// fakeGateway answers every protocol route with success and records calls.
func fakeGateway(t *testing.T) (*httptest.Server, *[]recorded) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, recorded{r.Method, r.URL.RequestURI(), r.Header.Clone(), string(data)})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/Pubkey":
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "pubkey": string(testKeyStore(t).Public())})
		case r.URL.Path == "/User/mallory":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"code":19,"message":"Wrong signature"}`)
		case strings.HasPrefix(r.URL.Path, "/User/alice/Orders"):
			w.WriteHeader(http.StatusAccepted)
			_, _ = io.WriteString(w, `{"queued":true}`)
		default:
			_, _ = io.WriteString(w, `{"success":true}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func run(t *testing.T, srv *httptest.Server, stdin string, args ...string) (string, error) {
	t.Helper()
	stubTerminal(t, false, nil)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.ServerURL = srv.URL
	cfg.Timeout = 5 * time.Second

	var out bytes.Buffer
	app := NewApp(cfg, strings.NewReader(stdin), &out)
	err := app.Run(append([]string{"authgate"}, args...))
	return out.String(), err
}

func TestPubkeyCommand(t *testing.T) {
	srv, _ := fakeGateway(t)

	out, err := run(t, srv, "", "pubkey")
	require.NoError(t, err)
	assert.Equal(t, string(testKeyStore(t).Public()), out)
}

func TestRegisterCommand(t *testing.T) {
	srv, calls := fakeGateway(t)

	out, err := run(t, srv, "pw\npw\n", "--login", "alice", "register", "--email", "a@b.c")
	require.NoError(t, err)
	assert.Contains(t, out, "registered alice")

	last := (*calls)[len(*calls)-1]
	assert.Equal(t, "POST", last.method)
	assert.Equal(t, "/User", last.uri)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(last.body), &body))
	assert.Equal(t, "alice", body["login"])
	assert.NotEqual(t, "a@b.c", body["email"])
	assert.NotEqual(t, "pw", body["password"])
}

func TestRegisterCommand_PromptsForMissingValues(t *testing.T) {
	srv, _ := fakeGateway(t)

	out, err := run(t, srv, "bob\nbob@example.com\npw\npw\n", "register")
	require.NoError(t, err)
	assert.Contains(t, out, "Login: ")
	assert.Contains(t, out, "E-mail: ")
	assert.Contains(t, out, "registered bob")
}

func TestLoginCommand(t *testing.T) {
	srv, calls := fakeGateway(t)

	out, err := run(t, srv, "pw\n", "-l", "alice", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "credentials accepted")

	last := (*calls)[len(*calls)-1]
	assert.Equal(t, "/User/alice", last.uri)
	assert.NotEmpty(t, last.header.Get(common.SignatureHeaderName))
	assert.NotEmpty(t, last.header.Get(common.NonceHeaderName))

	_, err = run(t, srv, "pw\n", "-l", "mallory", "login")
	require.Error(t, err)
	assert.True(t, client.IsCode(err, client.CodeWrongSignature))
}

func TestRecoverCommands(t *testing.T) {
	srv, calls := fakeGateway(t)

	out, err := run(t, srv, "new\nnew\n", "-l", "alice", "recover", "request", "--email", "a@b.c")
	require.NoError(t, err)
	assert.Contains(t, out, "check your e-mail")
	last := (*calls)[len(*calls)-1]
	assert.Equal(t, "POST /User/alice/Password", last.method+" "+last.uri)

	out, err = run(t, srv, "", "-l", "alice", "recover", "apply", "--code", "abc123")
	require.NoError(t, err)
	assert.Contains(t, out, "password changed")
	last = (*calls)[len(*calls)-1]
	assert.Equal(t, "PATCH /User/alice/Password", last.method+" "+last.uri)
	assert.JSONEq(t, `{"access_code":"abc123"}`, last.body)
}

func TestCallCommand(t *testing.T) {
	srv, calls := fakeGateway(t)

	out, err := run(t, srv, "pw\n", "-l", "alice", "call", "--data", `{"n":1}`, "post", "Orders?x=1")
	require.NoError(t, err)
	assert.Contains(t, out, "202 Accepted")
	assert.Contains(t, out, `{"queued":true}`)

	last := (*calls)[len(*calls)-1]
	assert.Equal(t, "POST /User/alice/Orders?x=1", last.method+" "+last.uri)
	assert.Equal(t, `{"n":1}`, last.body)

	_, err = run(t, srv, "", "-l", "alice", "call", "GET")
	require.Error(t, err)
}
