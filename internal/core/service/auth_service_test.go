package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/infrastructure/hashing"
)

type stubAuthRepo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	findByID atomic.Int64
	failWith error
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubAuthRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	copy := cloneUser(user)
	r.users[copy.ID] = copy
	return cloneUser(copy), nil
}

func (r *stubAuthRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubAuthRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.findByID.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubAuthRepo) UpdateRefreshHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.RefreshTokenHash = hash
	return nil
}

func (r *stubAuthRepo) SwapRefreshHash(_ context.Context, id, expected, next string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.RefreshTokenHash != expected {
		return false, nil
	}
	u.RefreshTokenHash = next
	return true, nil
}

func (r *stubAuthRepo) UpdateRole(_ context.Context, id string, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Role = role
	return nil
}

func (r *stubAuthRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *stubAuthRepo) storedHash(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u.RefreshTokenHash
	}
	return ""
}

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return issuer
}

func newTestAuthService(t *testing.T) (*AuthService, *stubAuthRepo) {
	t.Helper()
	repo := newStubAuthRepo()
	svc, err := NewAuthService(repo, hashing.NewBcryptHasher(bcrypt.MinCost), newTestIssuer(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc, repo
}

func mustRegister(t *testing.T, svc *AuthService, email, password string) *domain.PublicUser {
	t.Helper()
	user, err := svc.Register(context.Background(), email, password, "Alice")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return user
}

func TestAuthService_Register_Success(t *testing.T) {
	svc, repo := newTestAuthService(t)

	user, err := svc.Register(context.Background(), "  Alice@Example.com ", "correct-horse", "Alice")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalised email, got %q", user.Email)
	}
	if user.Role != domain.RoleUser {
		t.Fatalf("expected role user, got %s", user.Role)
	}

	stored, err := repo.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if stored.PasswordHash == "correct-horse" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct-horse")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if stored.HasSession() {
		t.Fatalf("registration must not open a session")
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc, _ := newTestAuthService(t)
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}

	cases := []struct {
		name, email, password, display string
	}{
		{"empty email", "", "correct-horse", "A"},
		{"no at sign", "alice.example.com", "correct-horse", "A"},
		{"short password", "a@example.com", "short", "A"},
		{"long password", "a@example.com", string(long), "A"},
		{"empty name", "a@example.com", "correct-horse", "  "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tc.email, tc.password, tc.display); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	svc, _ := newTestAuthService(t)

	mustRegister(t, svc, "bob@example.com", "correct-horse")
	if _, err := svc.Register(context.Background(), "BOB@example.com", "other-pass", "Bob"); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, repo := newTestAuthService(t)
	registered := mustRegister(t, svc, "carol@example.com", "s3cret-pass")

	result, err := svc.Login(context.Background(), "carol@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", result.Tokens)
	}
	if result.User.ID != registered.ID {
		t.Fatalf("unexpected user: %+v", result.User)
	}

	claims, err := svc.issuer.ParseAccessToken(result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("access token invalid: %v", err)
	}
	if claims.Role != domain.RoleUser || claims.UserID != registered.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	hash := repo.storedHash(registered.ID)
	if hash == "" || hash == result.Tokens.RefreshToken {
		t.Fatalf("expected a hashed refresh token to be stored, got %q", hash)
	}
}

func TestAuthService_Login_FailuresAreUniform(t *testing.T) {
	svc, _ := newTestAuthService(t)
	mustRegister(t, svc, "dave@example.com", "good-password")

	_, wrongPass := svc.Login(context.Background(), "dave@example.com", "bad-password")
	_, unknown := svc.Login(context.Background(), "ghost@example.com", "good-password")

	if !errors.Is(wrongPass, domain.ErrUnauthenticated) || !errors.Is(unknown, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for both, got %v and %v", wrongPass, unknown)
	}
	if wrongPass.Error() != unknown.Error() {
		t.Fatalf("failures must be indistinguishable: %q vs %q", wrongPass, unknown)
	}
}

func TestAuthService_Login_StoreErrorIsNotUnauthenticated(t *testing.T) {
	svc, repo := newTestAuthService(t)
	repo.failWith = errors.New("connection refused")

	_, err := svc.Login(context.Background(), "dave@example.com", "good-password")
	if err == nil || errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}

func TestAuthService_Login_ReplacesPreviousSession(t *testing.T) {
	svc, _ := newTestAuthService(t)
	user := mustRegister(t, svc, "erin@example.com", "correct-horse")

	first, err := svc.Login(context.Background(), "erin@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if _, err := svc.Login(context.Background(), "erin@example.com", "correct-horse"); err != nil {
		t.Fatalf("second login: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), user.ID, first.Tokens.RefreshToken); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected first session to be gone, got %v", err)
	}
}

func TestAuthService_RefreshRotationAndReplay(t *testing.T) {
	svc, _ := newTestAuthService(t)
	user := mustRegister(t, svc, "alice@example.com", "correct-horse")

	login, err := svc.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	r1 := login.Tokens.RefreshToken

	rotated, err := svc.Refresh(context.Background(), user.ID, r1)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	r2 := rotated.Tokens.RefreshToken
	if r2 == r1 || rotated.Tokens.AccessToken == login.Tokens.AccessToken {
		t.Fatalf("expected a brand-new pair")
	}

	if _, err := svc.Refresh(context.Background(), user.ID, r1); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected replayed token to be rejected, got %v", err)
	}
	if _, err := svc.Refresh(context.Background(), user.ID, r2); err != nil {
		t.Fatalf("expected current token to still work, got %v", err)
	}
}

func TestAuthService_Refresh_WrongTypeSkipsStore(t *testing.T) {
	svc, repo := newTestAuthService(t)
	user := mustRegister(t, svc, "mallory@example.com", "correct-horse")
	if _, err := svc.Login(context.Background(), "mallory@example.com", "correct-horse"); err != nil {
		t.Fatalf("login: %v", err)
	}

	forged := signRaw(t, svc.issuer, svc.issuer.refreshKey, accessClaims{
		RegisteredClaims: svc.issuer.registered(user.ID, time.Hour),
		Role:             domain.RoleOwner,
		Type:             domain.TokenKindAccess,
	})

	before := repo.findByID.Load()
	_, err := svc.Refresh(context.Background(), user.ID, forged)
	if !errors.Is(err, domain.ErrInvalidTokenType) {
		t.Fatalf("expected ErrInvalidTokenType, got %v", err)
	}
	if repo.findByID.Load() != before {
		t.Fatalf("store must not be consulted for a mistyped token")
	}
}

func TestAuthService_Refresh_SubjectMismatch(t *testing.T) {
	svc, _ := newTestAuthService(t)
	mustRegister(t, svc, "alice@example.com", "correct-horse")
	bob := mustRegister(t, svc, "bob@example.com", "correct-horse")

	login, err := svc.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), bob.ID, login.Tokens.RefreshToken); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthService_Refresh_ConcurrentRotationHasOneWinner(t *testing.T) {
	svc, _ := newTestAuthService(t)
	user := mustRegister(t, svc, "race@example.com", "correct-horse")
	login, err := svc.Login(context.Background(), "race@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	const callers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int64
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Refresh(context.Background(), user.ID, login.Tokens.RefreshToken); err == nil {
				successes.Add(1)
			} else if !errors.Is(err, domain.ErrUnauthenticated) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := successes.Load(); got != 1 {
		t.Fatalf("expected exactly one successful rotation, got %d", got)
	}
}

func TestAuthService_Logout(t *testing.T) {
	svc, repo := newTestAuthService(t)
	user := mustRegister(t, svc, "alice@example.com", "correct-horse")
	login, err := svc.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(context.Background(), user.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if repo.storedHash(user.ID) != "" {
		t.Fatalf("expected stored hash to be cleared")
	}
	if _, err := svc.Refresh(context.Background(), user.ID, login.Tokens.RefreshToken); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected refresh after logout to fail, got %v", err)
	}

	// Idempotent, including for an id that does not exist.
	if err := svc.Logout(context.Background(), user.ID); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if err := svc.Logout(context.Background(), "missing"); err != nil {
		t.Fatalf("logout of unknown user: %v", err)
	}

	// Access tokens stay valid until expiry.
	if _, err := svc.issuer.ParseAccessToken(login.Tokens.AccessToken); err != nil {
		t.Fatalf("access token should survive logout: %v", err)
	}
}

func TestAuthService_Refresh_DeletedUser(t *testing.T) {
	svc, repo := newTestAuthService(t)
	user := mustRegister(t, svc, "gone@example.com", "correct-horse")
	login, err := svc.Login(context.Background(), "gone@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	repo.mu.Lock()
	delete(repo.users, user.ID)
	repo.mu.Unlock()

	if _, err := svc.Refresh(context.Background(), user.ID, login.Tokens.RefreshToken); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthService_LoginExternal(t *testing.T) {
	svc, repo := newTestAuthService(t)
	identity := &domain.ExternalIdentity{
		Provider:   domain.ProviderGitHub,
		ProviderID: "42",
		Email:      "Octo@Example.com",
	}

	first, err := svc.LoginExternal(context.Background(), identity)
	if err != nil {
		t.Fatalf("first external login: %v", err)
	}
	if first.User.Email != "octo@example.com" || first.User.Name != "octo" || first.User.Role != domain.RoleUser {
		t.Fatalf("unexpected provisioned user: %+v", first.User)
	}

	second, err := svc.LoginExternal(context.Background(), identity)
	if err != nil {
		t.Fatalf("second external login: %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Fatalf("expected the same account to be reused")
	}
	if n, _ := repo.Count(context.Background()); n != 1 {
		t.Fatalf("expected one account, got %d", n)
	}

	if _, err := svc.LoginExternal(context.Background(), &domain.ExternalIdentity{Provider: domain.ProviderGoogle}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected incomplete identity to be rejected, got %v", err)
	}
}

func TestAuthService_LoginExternal_LinksExistingAccount(t *testing.T) {
	svc, _ := newTestAuthService(t)
	user := mustRegister(t, svc, "alice@example.com", "correct-horse")

	result, err := svc.LoginExternal(context.Background(), &domain.ExternalIdentity{
		Provider:   domain.ProviderGoogle,
		ProviderID: "g-1",
		Email:      "alice@example.com",
		Name:       "Alice G",
	})
	if err != nil {
		t.Fatalf("external login: %v", err)
	}
	if result.User.ID != user.ID {
		t.Fatalf("expected link to existing account %s, got %s", user.ID, result.User.ID)
	}
}

func TestAuthService_ChangeRole(t *testing.T) {
	svc, repo := newTestAuthService(t)
	user := mustRegister(t, svc, "alice@example.com", "correct-horse")
	login, err := svc.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	updated, err := svc.ChangeRole(context.Background(), user.ID, domain.RoleAdmin)
	if err != nil {
		t.Fatalf("change role: %v", err)
	}
	if updated.Role != domain.RoleAdmin {
		t.Fatalf("expected admin, got %s", updated.Role)
	}
	if repo.storedHash(user.ID) != "" {
		t.Fatalf("expected session to be ended on role change")
	}
	if _, err := svc.Refresh(context.Background(), user.ID, login.Tokens.RefreshToken); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected old refresh token to be dead, got %v", err)
	}

	if _, err := svc.ChangeRole(context.Background(), user.ID, "superuser"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.ChangeRole(context.Background(), "missing", domain.RoleUser); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_CreateUser_Owner(t *testing.T) {
	svc, _ := newTestAuthService(t)

	owner, err := svc.CreateUser(context.Background(), "root@example.com", "bootstrap-pass", "Root", domain.RoleOwner)
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	if owner.Role != domain.RoleOwner {
		t.Fatalf("expected owner role, got %s", owner.Role)
	}
	login, err := svc.Login(context.Background(), "root@example.com", "bootstrap-pass")
	if err != nil {
		t.Fatalf("owner login: %v", err)
	}
	if login.User.Role != domain.RoleOwner {
		t.Fatalf("expected owner in login result, got %s", login.User.Role)
	}
}
