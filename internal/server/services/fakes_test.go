package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/cryptox"
	"github.com/dmitrijs2005/authgate/internal/dbx"
	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/config"
	"github.com/dmitrijs2005/authgate/internal/server/keystore"
	"github.com/dmitrijs2005/authgate/internal/server/mail"
	"github.com/dmitrijs2005/authgate/internal/server/models"
	"github.com/dmitrijs2005/authgate/internal/server/paramcodec"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/keys"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/recovery"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/users"
)

// --- users ---

type fakeUsersRepo struct {
	mu     sync.Mutex
	byID   map[int64]*models.User
	nextID int64

	createErr  error
	getErr     error
	advanceErr error
	updateErr  error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[int64]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Login == u.Login || existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	c := *u
	c.ID = f.nextID
	f.byID[c.ID] = &c
	u.ID = c.ID
	return u, nil
}

func (f *fakeUsersRepo) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Login == login {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) TryAdvanceNonce(ctx context.Context, userID int64, ch models.NonceChannel, nonce int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.advanceErr != nil {
		return false, f.advanceErr
	}
	u, ok := f.byID[userID]
	if !ok {
		return false, nil
	}
	var last *int64
	switch ch {
	case models.NonceAuth:
		last = &u.LastAuthNonce
	case models.NonceRecovery:
		last = &u.LastRecoverPassNonce
	default:
		return false, common.ErrorUnknownNonceChannel
	}
	if nonce <= *last {
		return false, nil
	}
	*last = nonce
	return true, nil
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, userID int64, password cryptox.Secret) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	u, ok := f.byID[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.Password = password
	return nil
}

func (f *fakeUsersRepo) user(id int64) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.byID[id]
}

// --- recovery ---

type fakeRecoveryRepo struct {
	mu      sync.Mutex
	pending map[int64]models.RecoveryRequest

	upsertErr error
	getErr    error
	deleteErr error
}

func newFakeRecoveryRepo() *fakeRecoveryRepo {
	return &fakeRecoveryRepo{pending: map[int64]models.RecoveryRequest{}}
}

func (f *fakeRecoveryRepo) Upsert(ctx context.Context, req *models.RecoveryRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.pending[req.UserID] = *req
	return nil
}

func (f *fakeRecoveryRepo) GetForUpdate(ctx context.Context, userID int64) (*models.RecoveryRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	r, ok := f.pending[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &r, nil
}

func (f *fakeRecoveryRepo) Delete(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.pending[userID]; !ok {
		return common.ErrorNotFound
	}
	delete(f.pending, userID)
	return nil
}

func (f *fakeRecoveryRepo) get(userID int64) (models.RecoveryRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.pending[userID]
	return r, ok
}

// --- manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRecoveryRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), r: newFakeRecoveryRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository           { return m.u }
func (m *fakeRepoManager) Recovery(db dbx.DBTX) recovery.Repository     { return m.r }
func (m *fakeRepoManager) Keys(db dbx.DBTX) keys.Repository             { return nil }

// --- mailer ---

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

var accessCodeRe = regexp.MustCompile(`access_code=([0-9a-f]+)`)

// lastCode extracts the access code from the last mail sent.
func (f *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatalf("no mail sent")
	}
	m := accessCodeRe.FindStringSubmatch(f.sent[len(f.sent)-1].Body)
	if m == nil {
		t.Fatalf("no access code in body %q", f.sent[len(f.sent)-1].Body)
	}
	return m[1]
}

// --- shared fixtures ---

var (
	codecOnce sync.Once
	testKS    *keystore.KeyStore
)

func testKeyStore(t *testing.T) *keystore.KeyStore {
	t.Helper()
	codecOnce.Do(func() {
		priv, err := keystore.Generate(keystore.MinKeyBits)
		if err != nil {
			panic(err)
		}
		testKS, err = keystore.FromKey(priv)
		if err != nil {
			panic(err)
		}
	})
	return testKS
}

func testCodec(t *testing.T) *paramcodec.Codec {
	return paramcodec.New(testKeyStore(t))
}

func encrypt(t *testing.T, s string) string {
	t.Helper()
	enc, err := cryptox.EncryptParameter(testKeyStore(t).PublicKey(), s)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	return enc
}

func testConfig() *config.Config {
	return &config.Config{
		DatabaseTimeout: time.Second,
		AccessCodeBytes: 16,
	}
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// seedUser stores a user whose signing key derives from password.
func seedUser(rm *fakeRepoManager, login, email, password string) *models.User {
	u, err := rm.u.Create(context.Background(), &models.User{
		Login:    login,
		Email:    email,
		Password: cryptox.DeriveSigningKey(password),
	})
	if err != nil {
		panic(err)
	}
	return u
}

func signedCreds(login, password string, nonce int64) Credentials {
	return Credentials{
		Signature: cryptox.ComputeSignature(login, nonce, cryptox.DeriveSigningKey(password)),
		Nonce:     nonce,
	}
}

var errBoom = errors.New("boom")

func discardLog() logging.Logger { return logging.Discard() }
