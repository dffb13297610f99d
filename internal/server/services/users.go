package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/cryptox"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/apperr"
	"github.com/dmitrijs2005/authgate/internal/server/config"
	"github.com/dmitrijs2005/authgate/internal/server/models"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/repomanager"
)

// RegisterRequest carries the registration body. Email and Password are
// RSA-encrypted and text-encoded by the client.
type RegisterRequest struct {
	Login    string
	Email    string
	Password string
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       ParamDecoder
	dbTimeout   time.Duration
	log         logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, codec ParamDecoder, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		codec:       codec,
		dbTimeout:   cfg.DatabaseTimeout,
		log:         log.With("module", "users"),
	}
}

// Register decodes the encrypted fields, derives the signing key and stores
// the user. A taken login or email is RegisterFailed.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	login := strings.TrimSpace(req.Login)
	if login == "" || strings.ContainsAny(login, "/?#") {
		return nil, apperr.New(apperr.KindRegisterFailed)
	}

	email, err := s.codec.Decode(req.Email, "email")
	if err != nil {
		return nil, err
	}
	password, err := s.codec.DecodeSecret(req.Password, "password")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(email) == "" || password.IsZero() {
		return nil, apperr.New(apperr.KindRegisterFailed)
	}

	user := &models.User{
		Login:    login,
		Email:    email,
		Password: cryptox.DeriveSigningKey(password.Reveal()),
	}

	ctx, cancel := dbContext(ctx, s.dbTimeout)
	defer cancel()

	created, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			s.log.Warn(ctx, "registration rejected, login or email taken", "login", login)
			return nil, apperr.Wrap(apperr.KindRegisterFailed, err)
		}
		return nil, apperr.Database(err)
	}

	s.log.Info(ctx, "user registered", "login", login, "user_id", created.ID)
	return created, nil
}
