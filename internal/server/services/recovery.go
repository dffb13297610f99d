package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/cryptox"
	"github.com/dmitrijs2005/authgate/internal/dbx"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/apperr"
	"github.com/dmitrijs2005/authgate/internal/server/config"
	"github.com/dmitrijs2005/authgate/internal/server/mail"
	"github.com/dmitrijs2005/authgate/internal/server/metrics"
	"github.com/dmitrijs2005/authgate/internal/server/models"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/repomanager"
)

const recoverySubject = "Password recovery"

// RecoveryRequest is the body of a recovery request. NewPassword is
// RSA-encrypted; NonceEmail is the text-encoded SHA-256 of the decimal nonce
// followed by the account email.
type RecoveryRequest struct {
	NewPassword string
	NonceEmail  string
	Nonce       int64
}

// RecoveryService runs the two-phase password recovery: RequestCode stores a
// pending password and mails an access code, ApplyCode swaps the password
// in when the code matches.
type RecoveryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       ParamDecoder
	mailer      mail.Mailer
	codeBytes   int
	dbTimeout   time.Duration
	metrics     *metrics.Metrics
	log         logging.Logger
}

func NewRecoveryService(db *sql.DB, m repomanager.RepositoryManager, codec ParamDecoder, mailer mail.Mailer,
	cfg *config.Config, mx *metrics.Metrics, log logging.Logger) *RecoveryService {
	return &RecoveryService{
		db:          db,
		repomanager: m,
		codec:       codec,
		mailer:      mailer,
		codeBytes:   cfg.AccessCodeBytes,
		dbTimeout:   cfg.DatabaseTimeout,
		metrics:     mx,
		log:         log.With("module", "recovery"),
	}
}

func (s *RecoveryService) RequestCode(ctx context.Context, login string, req RecoveryRequest) error {
	err := s.requestCode(ctx, login, req)
	s.observe(ctx, "request", login, err)
	return err
}

func (s *RecoveryService) requestCode(ctx context.Context, login string, req RecoveryRequest) error {
	// decoded before the nonce is consumed so a malformed body does not burn it
	password, err := s.codec.DecodeSecret(req.NewPassword, "new_password")
	if err != nil {
		return err
	}
	if password.IsZero() {
		return apperr.WrongTextEncoding("new_password")
	}
	pending := cryptox.DeriveSigningKey(password.Reveal())

	repo := s.repomanager.Users(s.db)

	lctx, cancel := dbContext(ctx, s.dbTimeout)
	user, err := repo.GetUserByLogin(lctx, login)
	cancel()
	if err != nil {
		return userLookupError(login, err)
	}

	if !cryptox.VerifyNonceEmail(req.Nonce, user.Email, req.NonceEmail) {
		return apperr.New(apperr.KindWrongNonce)
	}

	nctx, cancel := dbContext(ctx, s.dbTimeout)
	ok, err := repo.TryAdvanceNonce(nctx, user.ID, models.NonceRecovery, req.Nonce)
	cancel()
	if err != nil {
		return apperr.Database(err)
	}
	if !ok {
		return apperr.New(apperr.KindWrongNonce)
	}

	code, err := common.MakeRandHexString(s.codeBytes)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, fmt.Errorf("access code: %w", err))
	}

	uctx, cancel := dbContext(ctx, s.dbTimeout)
	err = s.repomanager.Recovery(s.db).Upsert(uctx, &models.RecoveryRequest{
		UserID:         user.ID,
		NewPassword:    pending,
		AccessCodeHash: cryptox.HashAccessCode(code),
	})
	cancel()
	if err != nil {
		return apperr.Database(err)
	}

	// the pending request stays stored if delivery fails; a retry with a
	// fresh nonce replaces it
	if err := s.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: recoverySubject,
		Body:    recoveryBody(user.Login, code),
	}); err != nil {
		if errors.Is(err, mail.ErrInit) {
			return apperr.Wrap(apperr.KindMailInit, err)
		}
		return apperr.Wrap(apperr.KindMailSend, err)
	}

	s.log.Info(ctx, "recovery code issued", "login", login, "user_id", user.ID)
	return nil
}

func recoveryBody(login, code string) string {
	return fmt.Sprintf("Password recovery access code: PATCH User/%s/Password?access_code=%s", login, code)
}

// ApplyCode replaces the user's password with the pending one when code
// matches. The password update and the removal of the pending request
// commit together or not at all.
func (s *RecoveryService) ApplyCode(ctx context.Context, login, code string) error {
	err := s.applyCode(ctx, login, code)
	s.observe(ctx, "apply", login, err)
	return err
}

func (s *RecoveryService) applyCode(ctx context.Context, login, code string) error {
	code = strings.TrimSpace(code)

	lctx, cancel := dbContext(ctx, s.dbTimeout)
	user, err := s.repomanager.Users(s.db).GetUserByLogin(lctx, login)
	cancel()
	if err != nil {
		return userLookupError(login, err)
	}

	if code == "" {
		return apperr.New(apperr.KindWrongAccessCode)
	}

	tctx, cancel := dbContext(ctx, s.dbTimeout)
	defer cancel()

	err = dbx.WithTx(tctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recovery := s.repomanager.Recovery(tx)

		pending, err := recovery.GetForUpdate(ctx, user.ID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return apperr.New(apperr.KindWrongAccessCode)
			}
			return apperr.Database(err)
		}

		match, err := cryptox.VerifyAccessCode(code, pending.AccessCodeHash)
		if err != nil || !match {
			return apperr.Wrap(apperr.KindWrongAccessCode, err)
		}

		if err := s.repomanager.Users(tx).UpdatePassword(ctx, user.ID, pending.NewPassword); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return apperr.UserNotFound(login)
			}
			return apperr.Database(err)
		}

		if err := recovery.Delete(ctx, user.ID); err != nil {
			return apperr.Database(err)
		}
		return nil
	})
	if err != nil {
		return apperr.From(err)
	}

	s.log.Info(ctx, "password replaced by recovery", "login", login, "user_id", user.ID)
	return nil
}

func (s *RecoveryService) observe(ctx context.Context, phase, login string, err error) {
	if err == nil {
		s.metrics.ObserveRecovery(phase, "ok")
		return
	}
	e := apperr.From(err)
	s.metrics.ObserveRecovery(phase, outcomeLabel(e.Kind))
	if e.HTTPStatus() >= 500 {
		s.log.Error(ctx, "recovery failed", "phase", phase, "login", login, "err", err)
		return
	}
	s.log.Warn(ctx, "recovery rejected", "phase", phase, "login", login, "reason", e.Kind.String())
}
