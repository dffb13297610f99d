package services

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/cryptox"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/apperr"
	"github.com/dmitrijs2005/authgate/internal/server/config"
	"github.com/dmitrijs2005/authgate/internal/server/metrics"
	"github.com/dmitrijs2005/authgate/internal/server/models"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/repomanager"
)

// Credentials are the per-request proof of identity sent in headers.
type Credentials struct {
	Signature string
	Nonce     int64
}

// CredentialsFromHeader reads the Signature and Nonce headers. A missing
// signature is WrongSignature; a missing or non-integer nonce is WrongNonce.
func CredentialsFromHeader(h http.Header) (Credentials, error) {
	sig := strings.TrimSpace(h.Get(common.SignatureHeaderName))
	if sig == "" {
		return Credentials{}, apperr.New(apperr.KindWrongSignature)
	}

	raw := strings.TrimSpace(h.Get(common.NonceHeaderName))
	if raw == "" {
		return Credentials{}, apperr.New(apperr.KindWrongNonce)
	}
	nonce, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Credentials{}, apperr.Wrap(apperr.KindWrongNonce, err)
	}

	return Credentials{Signature: sig, Nonce: nonce}, nil
}

// AuthService is the authentication gate.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	dbTimeout   time.Duration
	metrics     *metrics.Metrics
	log         logging.Logger
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, mx *metrics.Metrics, log logging.Logger) *AuthService {
	return &AuthService{
		db:          db,
		repomanager: m,
		dbTimeout:   cfg.DatabaseTimeout,
		metrics:     mx,
		log:         log.With("module", "auth"),
	}
}

// Authenticate checks creds for login and consumes the nonce. On success the
// user's auth nonce has already been advanced, so the same signed request
// cannot be replayed.
func (s *AuthService) Authenticate(ctx context.Context, login string, creds Credentials) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	lctx, cancel := dbContext(ctx, s.dbTimeout)
	user, err := repo.GetUserByLogin(lctx, login)
	cancel()
	if err != nil {
		err = userLookupError(login, err)
		s.reject(ctx, login, err)
		return nil, err
	}

	if !cryptox.VerifySignature(user.Login, creds.Nonce, user.Password, creds.Signature) {
		err := apperr.New(apperr.KindWrongSignature)
		s.reject(ctx, login, err)
		return nil, err
	}

	nctx, cancel := dbContext(ctx, s.dbTimeout)
	ok, err := repo.TryAdvanceNonce(nctx, user.ID, models.NonceAuth, creds.Nonce)
	cancel()
	if err != nil {
		e := apperr.Database(err)
		s.reject(ctx, login, e)
		return nil, e
	}
	if !ok {
		e := apperr.New(apperr.KindWrongNonce)
		s.reject(ctx, login, e)
		return nil, e
	}

	s.metrics.ObserveAuth("ok")
	s.log.Debug(ctx, "authenticated", "login", login, "user_id", user.ID)
	return user, nil
}

func (s *AuthService) reject(ctx context.Context, login string, err error) {
	e := apperr.From(err)
	s.metrics.ObserveAuth(outcomeLabel(e.Kind))
	if e.HTTPStatus() >= http.StatusInternalServerError {
		s.log.Error(ctx, "authentication failed", "login", login, "err", err)
		return
	}
	s.log.Warn(ctx, "authentication rejected", "login", login, "reason", e.Kind.String())
}

// outcomeLabel renders a kind as a metric label value.
func outcomeLabel(k apperr.Kind) string {
	switch k {
	case apperr.KindUserNotFound:
		return "user_not_found"
	case apperr.KindWrongSignature:
		return "wrong_signature"
	case apperr.KindWrongNonce:
		return "wrong_nonce"
	case apperr.KindWrongAccessCode:
		return "wrong_access_code"
	case apperr.KindEncodingDecode, apperr.KindRsaDecode, apperr.KindWrongTextEncoding:
		return "bad_parameter"
	case apperr.KindMailInit, apperr.KindMailSend:
		return "mail_error"
	default:
		return "error"
	}
}
