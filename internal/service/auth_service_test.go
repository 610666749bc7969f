package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/avmironov/project-auth/internal/limiter"
	"github.com/avmironov/project-auth/internal/model"
	"github.com/avmironov/project-auth/internal/queue"
	"github.com/avmironov/project-auth/internal/repository"
	"github.com/avmironov/project-auth/internal/utils"
)

// ----- fakes -----

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*model.User // by uuid
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*model.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, u model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email && existing.DeletedAt == nil {
			return repository.ErrEmailExists
		}
	}
	cp := u
	f.users[u.UUID] = &cp
	return nil
}

func (f *fakeUserStore) live(u *model.User) bool {
	return u != nil && u.IsActive && u.DeletedAt == nil
}

func (f *fakeUserStore) GetActiveByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.users {
		if u.Email == email && f.live(u) {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUserStore) GetActiveByUUID(_ context.Context, uuid string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u := f.users[uuid]; f.live(u) {
		return *u, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUserStore) GetActiveInProject(_ context.Context, uuid, projectUUID string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u := f.users[uuid]; f.live(u) && u.ProjectUUID == projectUUID {
		return *u, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUserStore) RecordLoginFailure(_ context.Context, uuid string, maxAttempts int, lockUntil time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[uuid]
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		t := lockUntil
		u.LockedUntil = &t
	}
	return nil
}

func (f *fakeUserStore) RecordLoginSuccess(_ context.Context, uuid string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[uuid]
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	t := at
	u.LastLogin = &t
	return nil
}

type fakeRoleStore struct {
	roles map[string]model.Role
}

func (f *fakeRoleStore) GetByUUID(_ context.Context, uuid string) (model.Role, error) {
	if ro, ok := f.roles[uuid]; ok {
		return ro, nil
	}
	return model.Role{}, repository.ErrNotFound
}

func (f *fakeRoleStore) GetByTypeInProject(_ context.Context, projectUUID string, t model.RoleType) (model.Role, error) {
	for _, ro := range f.roles {
		if ro.ProjectUUID == projectUUID && ro.Type == t {
			return ro, nil
		}
	}
	return model.Role{}, repository.ErrNotFound
}

func (f *fakeRoleStore) Create(_ context.Context, ro model.Role) error {
	f.roles[ro.UUID] = ro
	return nil
}

type fakeProjectStore struct {
	projects map[string]model.Project
}

func (f *fakeProjectStore) GetByUUID(_ context.Context, uuid string) (model.Project, error) {
	if p, ok := f.projects[uuid]; ok {
		return p, nil
	}
	return model.Project{}, repository.ErrNotFound
}

func (f *fakeProjectStore) GetByName(_ context.Context, name string) (model.Project, error) {
	for _, p := range f.projects {
		if p.Name == name {
			return p, nil
		}
	}
	return model.Project{}, repository.ErrNotFound
}

func (f *fakeProjectStore) Create(_ context.Context, p model.Project) error {
	f.projects[p.UUID] = p
	return nil
}

type fakeBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	writes  int
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: map[string]time.Time{}}
}

func (f *fakeBlacklist) Revoke(_ context.Context, jti string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.revoked[jti] = exp
	return nil
}

func (f *fakeBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[jti]
	return ok, nil
}

type capturedEvents struct {
	events []queue.AuthEvent
}

func (c *capturedEvents) PublishAuthEvent(_ context.Context, ev queue.AuthEvent) error {
	c.events = append(c.events, ev)
	return nil
}

// ----- fixture -----

type fixture struct {
	svc       *AuthService
	users     *fakeUserStore
	roles     *fakeRoleStore
	projects  *fakeProjectStore
	blacklist *fakeBlacklist
	events    *capturedEvents
	now       time.Time
}

const (
	testProject = "p-1"
	testRole    = "r-user"
	testUser    = "u-1"
	testEmail   = "a@x.com"
	testPass    = "correct horse"
	testIP      = "1.2.3.4"
)

// newFixture builds a service over fakes with one active user. The
// limiter budget is generous by default so lockout scenarios are not
// throttled first; rate-limit tests pass their own limiter.
func newFixture(t *testing.T, lim limiter.Limiter) *fixture {
	t.Helper()
	if lim == nil {
		lim = limiter.NewMemory(1000, 15*time.Minute)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(testPass), bcrypt.MinCost)
	require.NoError(t, err)

	roleUUID := testRole
	f := &fixture{
		users: newFakeUserStore(),
		roles: &fakeRoleStore{roles: map[string]model.Role{
			testRole: {UUID: testRole, Name: "User", Key: "USER_p-1", Type: model.RoleUser,
				Permissions: []string{"events:read"}, ProjectUUID: testProject},
		}},
		projects: &fakeProjectStore{projects: map[string]model.Project{
			testProject: {UUID: testProject, Name: "Acme"},
		}},
		blacklist: newFakeBlacklist(),
		events:    &capturedEvents{},
		now:       time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.users.users[testUser] = &model.User{
		UUID: testUser, Email: testEmail, Name: "Alice", PasswordHash: string(hash),
		IsActive: true, RoleUUID: &roleUUID, ProjectUUID: testProject,
	}

	f.svc = NewAuthService(f.users, f.roles, f.projects, f.blacklist, lim, f.events, Options{
		JWTSecret:        "test-secret",
		TokenTTL:         24 * time.Hour,
		BcryptCost:       bcrypt.MinCost,
		MaxLoginAttempts: 5,
		LockDuration:     30 * time.Minute,
	})
	f.svc.now = func() time.Time { return f.now }
	return f
}

// ----- login / lockout -----

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Login(context.Background(), testIP, testEmail, testPass)
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Equal(t, testProject, res.ProjectUUID)
	require.Equal(t, testEmail, res.User.Email)
	require.Equal(t, model.RoleUser, res.User.Role.Type)
	// Token expiry comes from the wall clock inside the issuer.
	require.WithinDuration(t, time.Now().Add(24*time.Hour), res.ExpiresAt, time.Minute)

	u := f.users.users[testUser]
	require.NotNil(t, u.LastLogin)
	require.Equal(t, 0, u.FailedLoginAttempts)
}

func TestLoginWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	f := newFixture(t, nil)

	_, errWrong := f.svc.Login(context.Background(), testIP, testEmail, "nope")
	_, errUnknown := f.svc.Login(context.Background(), testIP, "ghost@x.com", "nope")

	require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.Equal(t, errWrong.Error(), errUnknown.Error())
}

func TestLockoutAfterMaxFailures(t *testing.T) {
	f := newFixture(t, nil)

	for i := 0; i < 5; i++ {
		_, err := f.svc.Login(context.Background(), testIP, testEmail, "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Correct password no longer helps while the lock holds.
	_, err := f.svc.Login(context.Background(), testIP, testEmail, testPass)
	var locked *AccountLockedError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, 30, locked.RemainingMinutes)

	// Locking emitted the security event.
	var lockEvents int
	for _, ev := range f.events.events {
		if ev.Type == queue.EventAccountLocked {
			lockEvents++
		}
	}
	require.Equal(t, 1, lockEvents)
}

func TestLockExpiresLazily(t *testing.T) {
	f := newFixture(t, nil)

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(context.Background(), testIP, testEmail, "wrong")
	}
	_, err := f.svc.Login(context.Background(), testIP, testEmail, testPass)
	require.Error(t, err)

	// After the lock window the same credentials work again and reset
	// the bookkeeping.
	f.now = f.now.Add(31 * time.Minute)
	_, err = f.svc.Login(context.Background(), testIP, testEmail, testPass)
	require.NoError(t, err)
	require.Equal(t, 0, f.users.users[testUser].FailedLoginAttempts)
	require.Nil(t, f.users.users[testUser].LockedUntil)
}

func TestLockRemainingMinutesRoundsUp(t *testing.T) {
	f := newFixture(t, nil)

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(context.Background(), testIP, testEmail, "wrong")
	}
	f.now = f.now.Add(29*time.Minute + 30*time.Second) // 30s left -> 1 minute
	_, err := f.svc.Login(context.Background(), testIP, testEmail, testPass)
	var locked *AccountLockedError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, 1, locked.RemainingMinutes)
}

func TestLoginRateLimited(t *testing.T) {
	f := newFixture(t, limiter.NewMemory(5, 15*time.Minute))

	// Spraying a non-existent identity exhausts the window for that
	// source+identity pair without touching any account row.
	for i := 0; i < 5; i++ {
		_, err := f.svc.Login(context.Background(), testIP, "ghost@x.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := f.svc.Login(context.Background(), testIP, "ghost@x.com", "wrong")
	var rl *limiter.RateLimitError
	require.ErrorAs(t, err, &rl)
	require.Equal(t, 15, rl.RemainingMinutes)

	// A different identity from the same source has its own window.
	_, err = f.svc.Login(context.Background(), testIP, testEmail, testPass)
	require.NoError(t, err)
}

// ----- token lifecycle -----

func TestLogoutThenAuthenticateIsRevoked(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Login(context.Background(), testIP, testEmail, testPass)
	require.NoError(t, err)

	_, err = f.svc.AuthenticateRequest(context.Background(), res.Token)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), res.Token))

	_, err = f.svc.AuthenticateRequest(context.Background(), res.Token)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Login(context.Background(), testIP, testEmail, testPass)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), res.Token))
	require.NoError(t, f.svc.Logout(context.Background(), res.Token))
	require.Len(t, f.blacklist.revoked, 1)

	// A token that cannot be decoded is ignored, not an error.
	require.NoError(t, f.svc.Logout(context.Background(), "garbage"))
}

func TestRefreshRotatesJTI(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Login(context.Background(), testIP, testEmail, testPass)
	require.NoError(t, err)
	oldClaims, err := utils.DecodeSessionToken(res.Token)
	require.NoError(t, err)

	fresh, err := f.svc.Refresh(context.Background(), res.Token, testUser)
	require.NoError(t, err)

	// Old token is dead, new one lives, and the jtis differ.
	_, err = f.svc.AuthenticateRequest(context.Background(), res.Token)
	require.ErrorIs(t, err, ErrTokenRevoked)

	principal, err := f.svc.AuthenticateRequest(context.Background(), fresh.Token)
	require.NoError(t, err)
	require.NotEqual(t, oldClaims.ID, principal.Claims.ID)
}

func TestRefreshUnknownAccount(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Login(context.Background(), testIP, testEmail, testPass)
	require.NoError(t, err)

	f.users.users[testUser].IsActive = false
	_, err = f.svc.Refresh(context.Background(), res.Token, testUser)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticateExpiredAndMalformed(t *testing.T) {
	f := newFixture(t, nil)

	expired, err := utils.NewSessionToken("test-secret", testUser, testEmail, "USER", testProject, -time.Minute)
	require.NoError(t, err)
	_, err = f.svc.AuthenticateRequest(context.Background(), expired.Token)
	require.ErrorIs(t, err, utils.ErrTokenExpired)

	_, err = f.svc.AuthenticateRequest(context.Background(), "bogus")
	require.ErrorIs(t, err, utils.ErrTokenMalformed)

	forged, err := utils.NewSessionToken("wrong-secret", testUser, testEmail, "USER", testProject, time.Hour)
	require.NoError(t, err)
	_, err = f.svc.AuthenticateRequest(context.Background(), forged.Token)
	require.ErrorIs(t, err, utils.ErrTokenMalformed)
}

func TestAuthenticateDeactivatedAccount(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Login(context.Background(), testIP, testEmail, testPass)
	require.NoError(t, err)

	f.users.users[testUser].IsActive = false
	_, err = f.svc.AuthenticateRequest(context.Background(), res.Token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

// ----- whoami -----

func TestWhoami(t *testing.T) {
	f := newFixture(t, nil)

	sum, err := f.svc.Whoami(context.Background(), testUser)
	require.NoError(t, err)
	require.Equal(t, testEmail, sum.Email)
	require.NotNil(t, sum.Role)
	require.Equal(t, []string{"events:read"}, sum.Role.Permissions)
}

func TestWhoamiSoftDeleted(t *testing.T) {
	f := newFixture(t, nil)

	deleted := f.now
	f.users.users[testUser].DeletedAt = &deleted
	_, err := f.svc.Whoami(context.Background(), testUser)
	require.ErrorIs(t, err, ErrNotFound)
}

// ----- register -----

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Register(context.Background(), RegisterParams{
		Email: testEmail, Name: "Clone", Password: "pw",
		ProjectUUID: testProject, RoleUUID: testRole,
	})
	require.ErrorIs(t, err, repository.ErrEmailExists)
}

func TestRegisterDefaultsProjectAndRole(t *testing.T) {
	f := newFixture(t, nil)

	sum, err := f.svc.Register(context.Background(), RegisterParams{
		Email: "new@x.com", Name: "Bob", Password: "pw",
	})
	require.NoError(t, err)
	require.Equal(t, model.RoleUser, sum.Role.Type)

	// Default project and its USER role were created on demand.
	project, err := f.projects.GetByName(context.Background(), defaultProjectName)
	require.NoError(t, err)
	role, err := f.roles.GetByTypeInProject(context.Background(), project.UUID, model.RoleUser)
	require.NoError(t, err)
	require.Equal(t, "USER_"+project.UUID, role.Key)

	// The new account can log in right away.
	_, err = f.svc.Login(context.Background(), testIP, "new@x.com", "pw")
	require.NoError(t, err)
}

func TestRegisterRoleFromOtherProjectRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.projects.projects["p-2"] = model.Project{UUID: "p-2", Name: "Other"}

	_, err := f.svc.Register(context.Background(), RegisterParams{
		Email: "new@x.com", Name: "Bob", Password: "pw",
		ProjectUUID: "p-2", RoleUUID: testRole, // role belongs to p-1
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterUnknownProject(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Register(context.Background(), RegisterParams{
		Email: "new@x.com", Name: "Bob", Password: "pw", ProjectUUID: "ghost",
	})
	require.ErrorIs(t, err, ErrNotFound)
}
