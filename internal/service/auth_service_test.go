package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shailendra378/tradingqueen/internal/auth"
	"github.com/shailendra378/tradingqueen/internal/cache"
	apperrors "github.com/shailendra378/tradingqueen/internal/errors"
	"github.com/shailendra378/tradingqueen/internal/model"
	"github.com/shailendra378/tradingqueen/internal/repository"
)

const testSecret = "this-is-a-test-secret-with-32-bytes!"

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateIfAbsent(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   AuthService
	repo  repository.UserRepository
	clock *testClock
	jwt   *auth.JWTService
}

func newFixture(t *testing.T, repo repository.UserRepository, opts ...Option) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
	jwtSvc, err := auth.NewJWTService(testSecret, 24*time.Hour, auth.WithClock(clock.Now))
	require.NoError(t, err)
	hasher := auth.NewPasswordHasher(bcrypt.MinCost, 4)

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return &fixture{
		svc:   NewAuthService(repo, hasher, jwtSvc, opts...),
		repo:  repo,
		clock: clock,
		jwt:   jwtSvc,
	}
}

func newMemoryFixture(t *testing.T, opts ...Option) *fixture {
	return newFixture(t, repository.NewMemoryUserRepository(), opts...)
}

func assertDomainError(t *testing.T, err error, kind error, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "want %v, got %v", kind, err)
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "not a domain error: %v", err)
	assert.Equal(t, msg, de.Message)
}

func TestSignup_ThenLogin(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	signed, err := f.svc.Signup(ctx, "Jane Doe", "jane@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", signed.User.Name)
	assert.Equal(t, "jane@x.com", signed.User.Email)
	assert.Equal(t, model.DefaultProfile().InvestmentExperience, signed.User.Profile.InvestmentExperience)
	assert.Equal(t, model.DefaultProfile().RiskTolerance, signed.User.Profile.RiskTolerance)
	assert.True(t, signed.User.Profile.PortfolioValue.IsZero())
	assert.Equal(t, f.clock.Now(), signed.User.CreatedAt)
	assert.Nil(t, signed.User.LastLoginAt)

	stored, err := f.repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.True(t, stored.IsActive)

	logged, err := f.svc.Login(ctx, "jane@x.com", "secret1")
	require.NoError(t, err)
	assert.NotEqual(t, signed.Token, logged.Token, "every login issues a fresh token")
	require.NotNil(t, logged.User.LastLoginAt)
	assert.Equal(t, f.clock.Now(), *logged.User.LastLoginAt)

	for _, token := range []string{signed.Token, logged.Token} {
		claims, err := f.svc.VerifyToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "jane@x.com", claims.Email)
		assert.Equal(t, signed.User.ID, claims.UserID)
		assert.Equal(t, "Jane Doe", claims.Name)
	}
}

func TestSignup_Validation(t *testing.T) {
	f := newMemoryFixture(t)

	tests := []struct {
		name, userName, email, password string
		wantMsg                         string
		wantFields                      []string
	}{
		{"all missing", "", "", "", "all fields are required", []string{"name", "email", "password"}},
		{"missing password", "Jane", "jane@x.com", "", "all fields are required", []string{"password"}},
		{"blank name", "   ", "jane@x.com", "secret1", "all fields are required", []string{"name"}},
		{"bad email", "Jane", "jane.x.com", "secret1", "invalid email format", []string{"email"}},
		{"bad email before short password", "Jane", "jane@x", "123", "invalid email format", []string{"email"}},
		{"short password", "Jane", "jane@x.com", "12345", "password must be at least 6 characters long", []string{"password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Signup(context.Background(), tt.userName, tt.email, tt.password)
			assertDomainError(t, err, apperrors.ErrValidation, tt.wantMsg)

			var de *apperrors.DomainError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.wantFields, de.Fields)
		})
	}
}

func TestSignup_DuplicateKeepsOriginal(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, "Jane Doe", "jane@x.com", "secret1")
	require.NoError(t, err)
	before, err := f.repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)

	_, err = f.svc.Signup(ctx, "Jane2", "jane@x.com", "secret2")
	assertDomainError(t, err, apperrors.ErrConflict, MsgUserExists)

	_, err = f.svc.Signup(ctx, "Jane3", " jane@x.com ", "secret3")
	assertDomainError(t, err, apperrors.ErrConflict, MsgUserExists)

	after, err := f.repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.Equal(t, "Jane Doe", after.Name)
}

func TestSignup_ConcurrentSameEmail(t *testing.T) {
	f := newMemoryFixture(t)

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Signup(context.Background(), "Jane", "jane@x.com", "secret1")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, apperrors.ErrConflict), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

func TestSignup_CreateRaceReportsConflict(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "jane@x.com").Return(nil, repository.ErrUserNotFound)
	repo.On("CreateIfAbsent", mock.Anything, mock.AnythingOfType("*model.User")).Return(repository.ErrUserExists)
	f := newFixture(t, repo)

	_, err := f.svc.Signup(context.Background(), "Jane", "jane@x.com", "secret1")
	assertDomainError(t, err, apperrors.ErrConflict, MsgUserExists)
	repo.AssertExpectations(t)
}

func TestSignup_StoreFailure(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "jane@x.com").Return(nil, errors.New("connection refused"))
	f := newFixture(t, repo)

	_, err := f.svc.Signup(context.Background(), "Jane", "jane@x.com", "secret1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 500, apperrors.MapErrorToHTTP(err).StatusCode)
	repo.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything)
}

func TestLogin_Failures(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, "Jane Doe", "jane@x.com", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name, email, password string
		kind                  error
		msg                   string
	}{
		{"missing password", "jane@x.com", "", apperrors.ErrValidation, "email and password are required"},
		{"missing email", "", "secret1", apperrors.ErrValidation, "email and password are required"},
		{"wrong password", "jane@x.com", "wrong", apperrors.ErrUnauthorized, MsgInvalidCredentials},
		{"unknown email", "john@x.com", "secret1", apperrors.ErrUnauthorized, MsgInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(ctx, tt.email, tt.password)
			assertDomainError(t, err, tt.kind, tt.msg)
		})
	}

	stored, err := f.repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	assert.Nil(t, stored.LastLoginAt, "failed logins leave the record untouched")
}

func TestLogin_InactiveAccount(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, "Jane Doe", "jane@x.com", "secret1")
	require.NoError(t, err)

	user, err := f.repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, f.repo.Update(ctx, user))

	_, err = f.svc.Login(ctx, "jane@x.com", "secret1")
	assertDomainError(t, err, apperrors.ErrUnauthorized, MsgInvalidCredentials)

	stored, _ := f.repo.FindByEmail(ctx, "jane@x.com")
	assert.Nil(t, stored.LastLoginAt)
}

func TestEmailIdentity_TrimmedAndCaseSensitive(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, "Jane Doe", " Jane@x.com ", "secret1")
	require.NoError(t, err)

	res, err := f.svc.Login(ctx, "Jane@x.com  ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Jane@x.com", res.User.Email)

	_, err = f.svc.Login(ctx, "jane@x.com", "secret1")
	assertDomainError(t, err, apperrors.ErrUnauthorized, MsgInvalidCredentials)

	_, err = f.svc.Signup(ctx, "Other Jane", "jane@x.com", "secret2")
	assert.NoError(t, err, "addresses differing only in case are distinct accounts")
}

func TestSignup_LongPassword(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	password := strings.Repeat("a", 80)

	_, err := f.svc.Signup(ctx, "Jane Doe", "jane@x.com", password)
	require.NoError(t, err)

	res, err := f.svc.Login(ctx, "jane@x.com", password)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestNewAuthService_PreparesDummyHash(t *testing.T) {
	f := newMemoryFixture(t)

	svc := f.svc.(*authService)
	cost, err := bcrypt.Cost([]byte(svc.dummyHash))
	require.NoError(t, err, "the hash exists before the first login")
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestVerifyToken(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	res, err := f.svc.Signup(ctx, "Jane Doe", "jane@x.com", "secret1")
	require.NoError(t, err)

	_, err = f.svc.VerifyToken(ctx, "")
	assertDomainError(t, err, apperrors.ErrUnauthorized, MsgTokenRequired)

	_, err = f.svc.VerifyToken(ctx, "garbage")
	assertDomainError(t, err, apperrors.ErrForbidden, MsgInvalidToken)

	_, err = f.svc.VerifyToken(ctx, res.Token)
	require.NoError(t, err)

	f.clock.Advance(24*time.Hour + time.Second)
	_, err = f.svc.VerifyToken(ctx, res.Token)
	assertDomainError(t, err, apperrors.ErrForbidden, MsgInvalidToken)
}

func TestGetProfile(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	res, err := f.svc.Signup(ctx, "Jane Doe", "jane@x.com", "secret1")
	require.NoError(t, err)
	claims, err := f.svc.VerifyToken(ctx, res.Token)
	require.NoError(t, err)

	profile, err := f.svc.GetProfile(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, profile.ID)
	assert.Equal(t, "beginner", profile.Profile.InvestmentExperience)

	_, err = f.svc.GetProfile(ctx, &auth.Claims{Email: "ghost@x.com"})
	assertDomainError(t, err, apperrors.ErrNotFound, MsgUserNotFound)
}

func TestUpdateProfile_Partial(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	res, err := f.svc.Signup(ctx, "Jane Doe", "jane@x.com", "secret1")
	require.NoError(t, err)
	claims, _ := f.svc.VerifyToken(ctx, res.Token)

	f.clock.Advance(time.Hour)
	aggressive := "aggressive"
	empty := ""
	updated, err := f.svc.UpdateProfile(ctx, claims, ProfileUpdate{RiskTolerance: &aggressive, Name: &empty})
	require.NoError(t, err)
	assert.Equal(t, "aggressive", updated.Profile.RiskTolerance)
	assert.Equal(t, "beginner", updated.Profile.InvestmentExperience)
	assert.Equal(t, "Jane Doe", updated.Name)
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, f.clock.Now(), *updated.UpdatedAt)

	stored, err := f.repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	assert.Equal(t, "aggressive", stored.Profile.RiskTolerance)
	assert.Equal(t, res.User.CreatedAt, stored.CreatedAt)

	name := "Jane Smith"
	expert := "expert"
	updated, err = f.svc.UpdateProfile(ctx, claims, ProfileUpdate{Name: &name, InvestmentExperience: &expert})
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", updated.Name)
	assert.Equal(t, "expert", updated.Profile.InvestmentExperience)
	assert.Equal(t, "aggressive", updated.Profile.RiskTolerance)

	_, err = f.svc.UpdateProfile(ctx, &auth.Claims{Email: "ghost@x.com"}, ProfileUpdate{Name: &name})
	assertDomainError(t, err, apperrors.ErrNotFound, MsgUserNotFound)
}

func TestLogout_KeepsTokenValid(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	res, err := f.svc.Signup(ctx, "Jane Doe", "jane@x.com", "secret1")
	require.NoError(t, err)
	claims, _ := f.svc.VerifyToken(ctx, res.Token)

	require.NoError(t, f.svc.Logout(ctx, claims))

	stored, _ := f.repo.FindByEmail(ctx, "jane@x.com")
	require.NotNil(t, stored.LastLogoutAt)
	assert.Equal(t, f.clock.Now(), *stored.LastLogoutAt)

	_, err = f.svc.VerifyToken(ctx, res.Token)
	assert.NoError(t, err, "logout does not revoke without a denylist")

	assert.NoError(t, f.svc.Logout(ctx, &auth.Claims{Email: "ghost@x.com"}))
}

func TestLogout_WithDenylistRevokes(t *testing.T) {
	mr := miniredis.RunT(t)
	store := auth.NewTokenStore(cache.New(mr.Addr(), "", 0))
	f := newMemoryFixture(t, WithDenylist(store))
	ctx := context.Background()

	res, err := f.svc.Signup(ctx, "Jane Doe", "jane@x.com", "secret1")
	require.NoError(t, err)
	other, err := f.svc.Login(ctx, "jane@x.com", "secret1")
	require.NoError(t, err)
	claims, err := f.svc.VerifyToken(ctx, res.Token)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, claims))

	_, err = f.svc.VerifyToken(ctx, res.Token)
	assertDomainError(t, err, apperrors.ErrForbidden, MsgInvalidToken)
	_, err = f.svc.VerifyToken(ctx, other.Token)
	assert.NoError(t, err, "only the presented token is revoked")

	mr.Close()
	_, err = f.svc.VerifyToken(ctx, other.Token)
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.MapErrorToHTTP(err).StatusCode)
}

func TestLogout_RevocationFailureSurfaces(t *testing.T) {
	mr := miniredis.RunT(t)
	store := auth.NewTokenStore(cache.New(mr.Addr(), "", 0))
	f := newMemoryFixture(t, WithDenylist(store))
	ctx := context.Background()

	res, err := f.svc.Signup(ctx, "Jane Doe", "jane@x.com", "secret1")
	require.NoError(t, err)
	claims, err := f.svc.VerifyToken(ctx, res.Token)
	require.NoError(t, err)

	mr.Close()
	err = f.svc.Logout(ctx, claims)
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.MapErrorToHTTP(err).StatusCode)
}

func TestProfileCache(t *testing.T) {
	mr := miniredis.RunT(t)
	f := newMemoryFixture(t, WithCache(cache.New(mr.Addr(), "", 0)))
	ctx := context.Background()

	res, err := f.svc.Signup(ctx, "Jane Doe", "jane@x.com", "secret1")
	require.NoError(t, err)
	claims, _ := f.svc.VerifyToken(ctx, res.Token)

	_, err = f.svc.GetProfile(ctx, claims)
	require.NoError(t, err)
	assert.True(t, mr.Exists("user:profile:jane@x.com"))
	assert.Equal(t, profileCacheTTL, mr.TTL("user:profile:jane@x.com"))

	aggressive := "aggressive"
	_, err = f.svc.UpdateProfile(ctx, claims, ProfileUpdate{RiskTolerance: &aggressive})
	require.NoError(t, err)
	assert.False(t, mr.Exists("user:profile:jane@x.com"), "mutations invalidate the cached profile")

	profile, err := f.svc.GetProfile(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, "aggressive", profile.Profile.RiskTolerance)

	cached, err := f.svc.GetProfile(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, cached.ID)
	assert.Equal(t, "aggressive", cached.Profile.RiskTolerance)
}

func TestSeedDemoAccounts(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	n, err := f.svc.SeedDemoAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.SeedDemoAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "seeding is idempotent")

	res, err := f.svc.Login(ctx, "demo@tradingqueen.com", "demo123")
	require.NoError(t, err)
	assert.Equal(t, "Demo User", res.User.Name)
	assert.Equal(t, "intermediate", res.User.Profile.InvestmentExperience)
	assert.Equal(t, "50000", res.User.Profile.PortfolioValue.String())

	_, err = f.svc.Login(ctx, "test@tradingqueen.com", "test123")
	assert.NoError(t, err)
}

// Signup, login with the same password, a wrong password and a second
// signup for the same address.
func TestAuthScenario(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	t1, err := f.svc.Signup(ctx, "Jane Doe", "jane@x.com", "secret1")
	require.NoError(t, err)
	t2, err := f.svc.Login(ctx, "jane@x.com", "secret1")
	require.NoError(t, err)
	assert.NotEqual(t, t1.Token, t2.Token)

	for _, tok := range []string{t1.Token, t2.Token} {
		_, err := f.svc.VerifyToken(ctx, tok)
		assert.NoError(t, err)
	}

	_, err = f.svc.Login(ctx, "jane@x.com", "wrong")
	assert.Equal(t, 401, apperrors.MapErrorToHTTP(err).StatusCode)

	_, err = f.svc.Signup(ctx, "Jane2", "jane@x.com", "secret2")
	assert.Equal(t, 409, apperrors.MapErrorToHTTP(err).StatusCode)
}
