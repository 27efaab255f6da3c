package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-auth-service/internal/model"
	"github.com/iliyamo/user-auth-service/internal/repository"
	"github.com/iliyamo/user-auth-service/internal/token"
	"github.com/iliyamo/user-auth-service/internal/utils"
)

// ----- in-memory fakes -----

type fakeUsers struct {
	mu   sync.Mutex
	seq  uint64
	byID map[uint64]model.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[uint64]model.User{}} }

func (f *fakeUsers) Create(_ context.Context, name, email, phone, passwordHash string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	f.seq++
	f.byID[f.seq] = model.User{
		ID: f.seq, Name: name, Email: email, Phone: phone,
		PasswordHash: passwordHash, IsActive: true, CreatedAt: time.Now(),
	}
	return f.seq, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == strings.ToLower(strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) deactivate(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[id]
	u.IsActive = false
	f.byID[id] = u
}

type fakeLedger struct {
	mu   sync.Mutex
	rows map[string]*model.RefreshToken
}

func newFakeLedger() *fakeLedger { return &fakeLedger{rows: map[string]*model.RefreshToken{}} }

func (f *fakeLedger) Create(_ context.Context, userID uint64, tok string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[tok] = &model.RefreshToken{UserID: userID, Token: tok, ExpiresAt: expiresAt}
	return nil
}

func (f *fakeLedger) Get(_ context.Context, tok string) (model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[tok]
	if !ok || r.IsRevoked {
		return model.RefreshToken{}, repository.ErrNotFound
	}
	return *r, nil
}

func (f *fakeLedger) Consume(_ context.Context, tok string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[tok]
	if !ok || r.IsRevoked {
		return false, nil
	}
	r.IsRevoked = true
	return true, nil
}

func (f *fakeLedger) Revoke(_ context.Context, tok string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[tok]
	if ok {
		r.IsRevoked = true
	}
	return ok, nil
}

func (f *fakeLedger) RevokeAllForUser(_ context.Context, userID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.UserID == userID && !r.IsRevoked {
			r.IsRevoked = true
			n++
		}
	}
	return n, nil
}

type fakeOpaqueStore struct {
	mu   sync.Mutex
	seq  uint64
	rows map[string]*model.OpaqueToken
}

func newFakeOpaqueStore() *fakeOpaqueStore {
	return &fakeOpaqueStore{rows: map[string]*model.OpaqueToken{}}
}

func (f *fakeOpaqueStore) Issue(_ context.Context, userID uint64, tokenType string, ttl time.Duration) (model.OpaqueToken, error) {
	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return model.OpaqueToken{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	rec := &model.OpaqueToken{
		ID: f.seq, UserID: userID, Token: raw, TokenType: tokenType,
		ExpiresAt: time.Now().UTC().Add(ttl), CreatedAt: time.Now().UTC(),
	}
	f.rows[raw] = rec
	return *rec, nil
}

func (f *fakeOpaqueStore) Validate(_ context.Context, tok, tokenType string) (model.OpaqueToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[tok]
	if !ok || r.IsRevoked || (tokenType != "" && r.TokenType != tokenType) {
		return model.OpaqueToken{}, repository.ErrNotFound
	}
	if time.Now().UTC().After(r.ExpiresAt) {
		return model.OpaqueToken{}, repository.ErrNotFound
	}
	now := time.Now().UTC()
	r.LastUsedAt = &now
	return *r, nil
}

func (f *fakeOpaqueStore) Consume(_ context.Context, tok string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[tok]
	if !ok || r.IsRevoked || r.TokenType != model.OpaqueTypeRefresh {
		return false, nil
	}
	r.IsRevoked = true
	return true, nil
}

func (f *fakeOpaqueStore) Revoke(_ context.Context, tok string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[tok]
	if ok {
		r.IsRevoked = true
	}
	return ok, nil
}

func (f *fakeOpaqueStore) RevokeAllForUser(_ context.Context, userID uint64, tokenType string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.UserID == userID && !r.IsRevoked && (tokenType == "" || r.TokenType == tokenType) {
			r.IsRevoked = true
			n++
		}
	}
	return n, nil
}

// ----- fixtures -----

const testSecret = "unit-test-secret"

func newJWTService(t *testing.T) (*AuthService, *fakeUsers, *fakeLedger) {
	t.Helper()
	engine, err := token.New(testSecret, "HS256", 30*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	users := newFakeUsers()
	ledger := newFakeLedger()
	return NewAuthService(users, NewJWTIssuer(engine, ledger), 4, 6), users, ledger
}

func newOpaqueService(t *testing.T) (*AuthService, *fakeUsers, *fakeOpaqueStore) {
	t.Helper()
	users := newFakeUsers()
	store := newFakeOpaqueStore()
	return NewAuthService(users, NewOpaqueIssuer(store, 30*time.Minute, 7*24*time.Hour), 4, 6), users, store
}

func register(t *testing.T, svc *AuthService, email string) model.User {
	t.Helper()
	u, err := svc.Register(context.Background(), "Alice", email, "", "pw123456")
	require.NoError(t, err)
	return u
}

// ----- register / login -----

func TestRegister(t *testing.T) {
	svc, _, _ := newJWTService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "Alice", "A@X.com", "555", "pw123456")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "a@x.com", u.Email, "email is normalized")
	assert.NotEqual(t, "pw123456", u.PasswordHash, "password is never stored in the clear")
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "pw123456"))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newJWTService(t)
	ctx := context.Background()

	register(t, svc, "a@x.com")
	_, err := svc.Register(ctx, "Bob", "a@x.com", "", "pw123456")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestRegister_PasswordTooShort(t *testing.T) {
	svc, _, _ := newJWTService(t)

	_, err := svc.Register(context.Background(), "Alice", "a@x.com", "", "pw1")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

// Unknown email and wrong password must be indistinguishable so login cannot
// be used to enumerate accounts.
func TestLogin_FailuresAreUniform(t *testing.T) {
	svc, _, _ := newJWTService(t)
	ctx := context.Background()
	register(t, svc, "a@x.com")

	_, errUnknown := svc.Login(ctx, "nobody@x.com", "pw123456")
	_, errWrongPw := svc.Login(ctx, "a@x.com", "wrong-password")

	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrongPw, ErrInvalidCredentials)
}

func TestLogin_InactiveUser(t *testing.T) {
	svc, users, _ := newJWTService(t)
	u := register(t, svc, "a@x.com")
	users.deactivate(u.ID)

	_, err := svc.Login(context.Background(), "a@x.com", "pw123456")
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestLogin_IssuesBearerPair(t *testing.T) {
	svc, _, ledger := newJWTService(t)
	register(t, svc, "a@x.com")

	pair, err := svc.Login(context.Background(), "a@x.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	// The refresh side is persisted in the rotation ledger.
	_, err = ledger.Get(context.Background(), pair.RefreshToken)
	assert.NoError(t, err)
}

// ----- refresh rotation -----

func TestRefresh_SingleUse(t *testing.T) {
	svc, _, _ := newJWTService(t)
	ctx := context.Background()
	register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	newPair, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

	// The consumed token is dead; a replay fails.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// The rotated-in token still works.
	_, err = svc.Refresh(ctx, newPair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	svc, _, _ := newJWTService(t)
	ctx := context.Background()
	register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	// An access token is well signed but carries the wrong type claim.
	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_GarbageToken(t *testing.T) {
	svc, _, _ := newJWTService(t)

	_, err := svc.Refresh(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_ExpiredLedgerRow(t *testing.T) {
	svc, _, ledger := newJWTService(t)
	ctx := context.Background()
	register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	// Age the persisted row past its expiry.
	ledger.mu.Lock()
	ledger.rows[pair.RefreshToken].ExpiresAt = time.Now().UTC().Add(-time.Minute)
	ledger.mu.Unlock()

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// The expired row was revoked on sight.
	ledger.mu.Lock()
	assert.True(t, ledger.rows[pair.RefreshToken].IsRevoked)
	ledger.mu.Unlock()
}

func TestRefresh_DeletedUser(t *testing.T) {
	svc, users, _ := newJWTService(t)
	ctx := context.Background()
	u := register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	require.NoError(t, users.Delete(ctx, u.ID))

	// Claims alone are not enough: the user must still exist at refresh time.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_DeactivatedUser(t *testing.T) {
	svc, users, _ := newJWTService(t)
	ctx := context.Background()
	u := register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)
	users.deactivate(u.ID)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

// ----- logout -----

func TestLogout_Idempotent(t *testing.T) {
	svc, _, _ := newJWTService(t)
	ctx := context.Background()
	register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	// Revoking an existing, an already-revoked, and an unknown token all
	// succeed: logout never discloses token validity.
	assert.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	assert.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	assert.NoError(t, svc.Logout(ctx, "never-issued"))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

// ----- current user -----

func TestCurrentUser(t *testing.T) {
	svc, _, _ := newJWTService(t)
	ctx := context.Background()
	u := register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	got, err := svc.CurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "a@x.com", got.Email)
}

func TestCurrentUser_ForeignSecret(t *testing.T) {
	svc, _, _ := newJWTService(t)
	ctx := context.Background()
	register(t, svc, "a@x.com")

	// A token minted by a different service (different secret) must fail even
	// though its structure and claims are plausible.
	foreign, err := token.New("some-other-secret", "HS256", time.Hour, time.Hour)
	require.NoError(t, err)
	forged, _, err := foreign.IssueAccess(1, "a@x.com")
	require.NoError(t, err)

	_, err = svc.CurrentUser(ctx, forged)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestCurrentUser_RefreshTokenRejected(t *testing.T) {
	svc, _, _ := newJWTService(t)
	ctx := context.Background()
	register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	_, err = svc.CurrentUser(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestCurrentUser_DeletedUser(t *testing.T) {
	svc, users, _ := newJWTService(t)
	ctx := context.Background()
	u := register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)
	require.NoError(t, users.Delete(ctx, u.ID))

	_, err = svc.CurrentUser(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

// ----- opaque mode -----

func TestOpaque_LoginAndCurrentUser(t *testing.T) {
	svc, _, _ := newOpaqueService(t)
	ctx := context.Background()
	u := register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)

	got, err := svc.CurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

// The token_type column partitions the namespace: access tokens never work as
// refresh credentials and vice versa.
func TestOpaque_TypePartition(t *testing.T) {
	svc, _, _ := newOpaqueService(t)
	ctx := context.Background()
	register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = svc.CurrentUser(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestOpaque_RefreshSingleUse(t *testing.T) {
	svc, _, _ := newOpaqueService(t)
	ctx := context.Background()
	register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	newPair, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = svc.Refresh(ctx, newPair.RefreshToken)
	assert.NoError(t, err)
}

func TestOpaque_Introspect(t *testing.T) {
	svc, _, _ := newOpaqueService(t)
	ctx := context.Background()
	u := register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	// Introspection accepts either token type and describes it.
	in, err := svc.Introspect(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, in.Valid)
	assert.Equal(t, u.ID, in.UserID)
	assert.Equal(t, "a@x.com", in.Email)
	assert.Equal(t, model.OpaqueTypeRefresh, in.TokenType)
	assert.True(t, in.ExpiresAt.After(time.Now()))

	_, err = svc.Introspect(ctx, "unknown-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestIntrospect_UnsupportedInJWTMode(t *testing.T) {
	svc, _, _ := newJWTService(t)
	ctx := context.Background()
	register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	_, err = svc.Introspect(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

// ----- account deletion -----

func TestDeleteAccount(t *testing.T) {
	svc, users, ledger := newJWTService(t)
	ctx := context.Background()
	u := register(t, svc, "a@x.com")

	pair, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccount(ctx, u.ID))

	_, err = users.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = ledger.Get(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteAccount(ctx, u.ID), ErrUserNotFound)
}
