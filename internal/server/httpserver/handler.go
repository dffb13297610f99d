package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/apperr"
	"github.com/dmitrijs2005/authgate/internal/server/models"
	"github.com/dmitrijs2005/authgate/internal/server/relay"
	"github.com/dmitrijs2005/authgate/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// maxBodySize caps JSON request bodies (1MB). Relayed bodies are streamed
// and not limited here.
const maxBodySize = 1024 * 1024

type PublicKeyProvider interface {
	Public() []byte
}

type Authenticator interface {
	Authenticate(ctx context.Context, login string, creds services.Credentials) (*models.User, error)
}

type Registrar interface {
	Register(ctx context.Context, req services.RegisterRequest) (*models.User, error)
}

type Recoverer interface {
	RequestCode(ctx context.Context, login string, req services.RecoveryRequest) error
	ApplyCode(ctx context.Context, login, code string) error
}

type Forwarder interface {
	Forward(w http.ResponseWriter, r *http.Request, user *models.User) error
}

// Handler implements the gateway endpoints on top of the services.
type Handler struct {
	keys     PublicKeyProvider
	auth     Authenticator
	users    Registrar
	recovery Recoverer
	relay    Forwarder
	log      logging.Logger
}

func NewHandler(keys PublicKeyProvider, auth Authenticator, users Registrar, recovery Recoverer, relay Forwarder, log logging.Logger) *Handler {
	return &Handler{
		keys:     keys,
		auth:     auth,
		users:    users,
		recovery: recovery,
		relay:    relay,
		log:      log.With("module", "handler"),
	}
}

type registerRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type recoveryRequest struct {
	NewPassword string `json:"new_password"`
	NonceEmail  string `json:"nonce_email"`
	Nonce       int64  `json:"nonce"`
}

type applyRecoveryRequest struct {
	AccessCode string `json:"access_code"`
}

// HandlePubkey serves GET /Pubkey.
func (h *Handler) HandlePubkey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pubkeyResponse{Success: true, Pubkey: string(h.keys.Public())})
}

// HandleRegister serves POST /User.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.users.Register(r.Context(), services.RegisterRequest{
		Login:    body.Login,
		Email:    body.Email,
		Password: body.Password,
	}); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// HandleLogin serves GET and POST /User/{login}: a signed no-op that tells
// the client its credentials and nonce were accepted.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticate(r); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// HandleRequestRecovery serves POST /User/{login}/Password.
func (h *Handler) HandleRequestRecovery(w http.ResponseWriter, r *http.Request) {
	var body recoveryRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	login, err := loginParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.recovery.RequestCode(r.Context(), login, services.RecoveryRequest{
		NewPassword: body.NewPassword,
		NonceEmail:  body.NonceEmail,
		Nonce:       body.Nonce,
	}); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// HandleApplyRecovery serves PATCH /User/{login}/Password. The access code
// comes from the JSON body or, as in the mailed instruction, from the
// access_code query parameter.
func (h *Handler) HandleApplyRecovery(w http.ResponseWriter, r *http.Request) {
	login, err := loginParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	code := r.URL.Query().Get("access_code")
	if code == "" && r.ContentLength != 0 {
		var body applyRecoveryRequest
		if err := decodeBody(w, r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
		code = body.AccessCode
	}

	if err := h.recovery.ApplyCode(r.Context(), login, code); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// HandleRelay authenticates the request and forwards it to the core
// service. Methods the relay cannot forward are refused before the nonce is
// spent.
func (h *Handler) HandleRelay(w http.ResponseWriter, r *http.Request) {
	if !relay.SupportsMethod(r.Method) {
		h.writeError(w, r, apperr.New(apperr.KindUnsupportedHTTPMethod))
		return
	}

	user, err := h.authenticate(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.relay.Forward(w, r, user); err != nil {
		h.writeError(w, r, err)
	}
}

func (h *Handler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, apperr.New(apperr.KindWrongRequest))
}

func (h *Handler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, apperr.New(apperr.KindUnsupportedHTTPMethod))
}

func (h *Handler) authenticate(r *http.Request) (*models.User, error) {
	creds, err := services.CredentialsFromHeader(r.Header)
	if err != nil {
		return nil, err
	}
	login, err := loginParam(r)
	if err != nil {
		return nil, err
	}
	return h.auth.Authenticate(r.Context(), login, creds)
}

// loginParam is the {login} segment, unescaped. chi matches on the raw path
// when the request carries encoded characters.
func loginParam(r *http.Request) (string, error) {
	login, err := url.PathUnescape(chi.URLParam(r, "login"))
	if err != nil {
		return "", apperr.Wrap(apperr.KindWrongRequest, err)
	}
	return login, nil
}

// decodeBody reads a JSON body. Malformed input is WrongRequest with 400.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		return apperr.Wrap(apperr.KindWrongRequest, err).WithStatus(http.StatusBadRequest)
	}
	return nil
}

// writeError renders err as the error envelope. Causes are logged, never
// sent.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)
	status := e.HTTPStatus()

	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "kind", e.Kind.String(), "err", err)
	} else {
		h.log.Debug(r.Context(), "request rejected", "path", r.URL.Path, "kind", e.Kind.String(), "err", err)
	}

	writeJSON(w, status, errorEnvelope{Code: e.Kind.Code(), Message: e.Message()})
}
