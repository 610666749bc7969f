// Package service implements the session/token lifecycle: credential
// verification, account lockout, token issuance and revocation, and
// the access-control check. It has no knowledge of HTTP; handlers map
// its error kinds to status codes and cookies.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avmironov/project-auth/internal/limiter"
	"github.com/avmironov/project-auth/internal/model"
	"github.com/avmironov/project-auth/internal/queue"
	"github.com/avmironov/project-auth/internal/repository"
	"github.com/avmironov/project-auth/internal/utils"
)

// Store interfaces consumed by the orchestrator. The MySQL
// repositories satisfy them in production; tests substitute fakes.

// UserStore persists accounts and their lockout bookkeeping.
type UserStore interface {
	Create(ctx context.Context, u model.User) error
	GetActiveByEmail(ctx context.Context, email string) (model.User, error)
	GetActiveByUUID(ctx context.Context, uuid string) (model.User, error)
	GetActiveInProject(ctx context.Context, uuid, projectUUID string) (model.User, error)
	RecordLoginFailure(ctx context.Context, uuid string, maxAttempts int, lockUntil time.Time) error
	RecordLoginSuccess(ctx context.Context, uuid string, at time.Time) error
}

// RoleStore resolves and creates roles.
type RoleStore interface {
	GetByUUID(ctx context.Context, uuid string) (model.Role, error)
	GetByTypeInProject(ctx context.Context, projectUUID string, t model.RoleType) (model.Role, error)
	Create(ctx context.Context, ro model.Role) error
}

// ProjectStore resolves and creates tenants.
type ProjectStore interface {
	GetByUUID(ctx context.Context, uuid string) (model.Project, error)
	GetByName(ctx context.Context, name string) (model.Project, error)
	Create(ctx context.Context, p model.Project) error
}

// RevocationStore records revoked token ids.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, exp time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// EventPublisher forwards security events to the broker. Publishing
// is best effort; a broker outage never fails a login.
type EventPublisher interface {
	PublishAuthEvent(ctx context.Context, ev queue.AuthEvent) error
}

// Options are the tunables of the session lifecycle, enumerated once
// at startup and passed at construction.
type Options struct {
	JWTSecret        string
	TokenTTL         time.Duration // session token validity, default 24h
	BcryptCost       int           // password hash work factor, default 12
	MaxLoginAttempts int           // failures before lockout, default 5
	LockDuration     time.Duration // lockout window, default 30m
}

// AuthService composes the verifier, lockout tracker, token issuer,
// revocation store and rate limiter into the user-visible operations.
type AuthService struct {
	users     UserStore
	roles     RoleStore
	projects  ProjectStore
	blacklist RevocationStore
	limiter   limiter.Limiter
	events    EventPublisher // may be nil
	opts      Options

	now func() time.Time // swapped in tests
}

// NewAuthService wires dependencies. events may be nil when no broker
// is configured.
func NewAuthService(users UserStore, roles RoleStore, projects ProjectStore,
	blacklist RevocationStore, lim limiter.Limiter, events EventPublisher, opts Options) *AuthService {
	return &AuthService{
		users:     users,
		roles:     roles,
		projects:  projects,
		blacklist: blacklist,
		limiter:   lim,
		events:    events,
		opts:      opts,
		now:       time.Now,
	}
}

// ----- results -----

// RoleSummary is the public projection of a role.
type RoleSummary struct {
	UUID        string         `json:"uuid"`
	Name        string         `json:"name"`
	Key         string         `json:"key"`
	Type        model.RoleType `json:"type"`
	Description string         `json:"description"`
	Permissions []string       `json:"permissions"`
}

// UserSummary is the public projection of an account. It never
// carries the password hash.
type UserSummary struct {
	UUID      string       `json:"uuid"`
	Email     string       `json:"email"`
	Name      string       `json:"name"`
	LastLogin *time.Time   `json:"last_login,omitempty"`
	Role      *RoleSummary `json:"role,omitempty"`
}

// LoginResult is returned by Login and Refresh.
type LoginResult struct {
	Token       string      `json:"-"`
	ExpiresAt   time.Time   `json:"expires_at"`
	ProjectUUID string      `json:"project_uuid"`
	User        UserSummary `json:"user"`
}

// Principal is the authenticated identity attached to a request for
// downstream access-control checks. Role is nil when the account has
// no role assigned.
type Principal struct {
	User   model.User
	Role   *model.Role
	Claims *utils.Claims
}

func roleSummary(ro *model.Role) *RoleSummary {
	if ro == nil {
		return nil
	}
	return &RoleSummary{
		UUID:        ro.UUID,
		Name:        ro.Name,
		Key:         ro.Key,
		Type:        ro.Type,
		Description: ro.Description,
		Permissions: ro.Permissions,
	}
}

// ----- operations -----

// Login authenticates an email/password pair from the given source
// address and issues a session token. Failure order is fixed: rate
// limit, account lookup, lockout, password. Unknown email and wrong
// password produce the same ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, sourceIP, email, password string) (*LoginResult, error) {
	if err := s.limiter.Allow(ctx, limiter.Key(sourceIP, email)); err != nil {
		return nil, err
	}

	u, err := s.users.GetActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now().UTC()
	if u.Locked(now) {
		return nil, &AccountLockedError{RemainingMinutes: remainingMinutes(now, *u.LockedUntil)}
	}

	if !utils.VerifyPassword(u.PasswordHash, password) {
		// The lock expiry is computed here and applied by the store in
		// the same statement that increments the counter.
		if err := s.users.RecordLoginFailure(ctx, u.UUID, s.opts.MaxLoginAttempts, now.Add(s.opts.LockDuration)); err != nil {
			return nil, err
		}
		s.publish(ctx, queue.AuthEvent{
			Type: queue.EventLoginFailed, UserUUID: u.UUID, Email: u.Email,
			ProjectUUID: u.ProjectUUID, SourceIP: sourceIP,
		})
		if u.FailedLoginAttempts+1 >= s.opts.MaxLoginAttempts {
			s.publish(ctx, queue.AuthEvent{
				Type: queue.EventAccountLocked, UserUUID: u.UUID, Email: u.Email,
				ProjectUUID: u.ProjectUUID, SourceIP: sourceIP,
			})
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.users.RecordLoginSuccess(ctx, u.UUID, now); err != nil {
		return nil, err
	}

	role, err := s.requireRole(ctx, u)
	if err != nil {
		return nil, err
	}

	return s.issue(u, role, now)
}

// Logout revokes the presented token. The token is decoded without
// signature verification: the middleware already authenticated it and
// revoking a token we cannot read would be meaningless anyway. A
// token with no usable jti or expiry is ignored, which keeps the
// operation idempotent.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	claims, err := utils.DecodeSessionToken(rawToken)
	if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.blacklist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	s.publish(ctx, queue.AuthEvent{
		Type: queue.EventTokenRevoked, UserUUID: claims.Subject, Email: claims.Email,
		ProjectUUID: claims.ProjectUUID, TokenJTI: claims.ID,
	})
	return nil
}

// Refresh revokes the old token's jti and issues a new token for the
// account. The new jti is freshly generated and can never collide
// with the old one.
func (s *AuthService) Refresh(ctx context.Context, oldToken, accountUUID string) (*LoginResult, error) {
	if claims, err := utils.DecodeSessionToken(oldToken); err == nil && claims.ID != "" && claims.ExpiresAt != nil {
		if err := s.blacklist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return nil, err
		}
	}

	u, err := s.users.GetActiveByUUID(ctx, accountUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	role, err := s.requireRole(ctx, u)
	if err != nil {
		return nil, err
	}
	return s.issue(u, role, s.now().UTC())
}

// Whoami returns the public projection of an account, role included.
func (s *AuthService) Whoami(ctx context.Context, accountUUID string) (*UserSummary, error) {
	u, err := s.users.GetActiveByUUID(ctx, accountUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	role, err := s.loadRole(ctx, u)
	if err != nil {
		return nil, err
	}
	return &UserSummary{
		UUID:      u.UUID,
		Email:     u.Email,
		Name:      u.Name,
		LastLogin: u.LastLogin,
		Role:      roleSummary(role),
	}, nil
}

// AuthenticateRequest verifies a presented token end to end:
// signature and expiry, then the blacklist, then the account itself,
// which must still be live inside the token's project. The returned
// Principal feeds the access-control check.
func (s *AuthService) AuthenticateRequest(ctx context.Context, rawToken string) (*Principal, error) {
	claims, err := utils.VerifySessionToken(s.opts.JWTSecret, rawToken)
	if err != nil {
		return nil, err
	}

	if claims.ID != "" {
		revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	u, err := s.users.GetActiveInProject(ctx, claims.Subject, claims.ProjectUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	role, err := s.loadRole(ctx, u)
	if err != nil {
		return nil, err
	}
	return &Principal{User: u, Role: role, Claims: claims}, nil
}

// RegisterParams are the inputs of account creation. ProjectUUID and
// RoleUUID are optional; when absent, the default project and the
// project's USER role are found or created.
type RegisterParams struct {
	Email       string
	Name        string
	Password    string
	ProjectUUID string
	RoleUUID    string
}

const defaultProjectName = "Default Project"

// Register creates an account. A taken email surfaces as
// repository.ErrEmailExists; an unknown project or role as
// ErrNotFound. A role from a different project than the account's is
// rejected the same way: roles never cross tenant boundaries.
func (s *AuthService) Register(ctx context.Context, p RegisterParams) (*UserSummary, error) {
	project, err := s.resolveProject(ctx, p.ProjectUUID)
	if err != nil {
		return nil, err
	}
	role, err := s.resolveRole(ctx, project, p.RoleUUID)
	if err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(p.Password, s.opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	u := model.User{
		UUID:         uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(p.Email)),
		Name:         p.Name,
		PasswordHash: hash,
		IsActive:     true,
		RoleUUID:     &role.UUID,
		ProjectUUID:  project.UUID,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	return &UserSummary{
		UUID:  u.UUID,
		Email: u.Email,
		Name:  u.Name,
		Role:  roleSummary(&role),
	}, nil
}

// ----- helpers -----

func (s *AuthService) issue(u model.User, role *model.Role, now time.Time) (*LoginResult, error) {
	tok, err := utils.NewSessionToken(s.opts.JWTSecret, u.UUID, u.Email, string(role.Type), u.ProjectUUID, s.opts.TokenTTL)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:       tok.Token,
		ExpiresAt:   tok.ExpiresAt,
		ProjectUUID: u.ProjectUUID,
		User: UserSummary{
			UUID:      u.UUID,
			Email:     u.Email,
			Name:      u.Name,
			LastLogin: &now,
			Role:      roleSummary(role),
		},
	}, nil
}

// loadRole resolves the account's role, nil when none is assigned.
func (s *AuthService) loadRole(ctx context.Context, u model.User) (*model.Role, error) {
	if u.RoleUUID == nil {
		return nil, nil
	}
	ro, err := s.roles.GetByUUID(ctx, *u.RoleUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The role was deleted after the reference was nulled out in
			// another session; treat as no role.
			return nil, nil
		}
		return nil, err
	}
	return &ro, nil
}

// requireRole is loadRole for operations that mint tokens: the role
// type goes into the claims, so issuing for a role-less account is an
// invariant violation, not a client error.
func (s *AuthService) requireRole(ctx context.Context, u model.User) (*model.Role, error) {
	role, err := s.loadRole(ctx, u)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("account %s has no role assigned", u.UUID)
	}
	return role, nil
}

func (s *AuthService) resolveProject(ctx context.Context, projectUUID string) (model.Project, error) {
	if projectUUID != "" {
		project, err := s.projects.GetByUUID(ctx, projectUUID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return model.Project{}, ErrNotFound
			}
			return model.Project{}, err
		}
		return project, nil
	}
	project, err := s.projects.GetByName(ctx, defaultProjectName)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Project{}, err
	}
	project = model.Project{
		UUID:        uuid.NewString(),
		Name:        defaultProjectName,
		Description: "Default project",
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return model.Project{}, err
	}
	return project, nil
}

func (s *AuthService) resolveRole(ctx context.Context, project model.Project, roleUUID string) (model.Role, error) {
	if roleUUID != "" {
		role, err := s.roles.GetByUUID(ctx, roleUUID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return model.Role{}, ErrNotFound
			}
			return model.Role{}, err
		}
		if role.ProjectUUID != project.UUID {
			return model.Role{}, ErrNotFound
		}
		return role, nil
	}
	role, err := s.roles.GetByTypeInProject(ctx, project.UUID, model.RoleUser)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Role{}, err
	}
	role = model.Role{
		UUID:        uuid.NewString(),
		Name:        "User",
		Key:         "USER_" + project.UUID,
		Type:        model.RoleUser,
		Description: "Default user role",
		Permissions: []string{},
		ProjectUUID: project.UUID,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return model.Role{}, err
	}
	return role, nil
}

func (s *AuthService) publish(ctx context.Context, ev queue.AuthEvent) {
	if s.events == nil {
		return
	}
	ev.OccurredAt = s.now().UTC().Format(time.RFC3339)
	if err := s.events.PublishAuthEvent(ctx, ev); err != nil {
		log.Printf("auth: publish %s event failed: %v", ev.Type, err)
	}
}
