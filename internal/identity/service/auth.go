// Package service implements the Identity Store's authentication flow
// (§4.2, §6 `/auth/*`).
package service

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/fieldpunch/attendance-backend/internal/identity/domain"
	"github.com/fieldpunch/attendance-backend/internal/identity/repository"
	"github.com/fieldpunch/attendance-backend/internal/rbac"
	"github.com/fieldpunch/attendance-backend/pkg/errors"
)

// AuthService authenticates users and issues bearer tokens.
type AuthService struct {
	users    *repository.UserRepository
	perms    *rbac.Resolver
	scopes   *rbac.ScopeResolver
	tokens   *rbac.TokenManager
}

// NewAuthService creates a new auth service.
func NewAuthService(users *repository.UserRepository, perms *rbac.Resolver, scopes *rbac.ScopeResolver, tokens *rbac.TokenManager) *AuthService {
	return &AuthService{users: users, perms: perms, scopes: scopes, tokens: tokens}
}

// Session is the authenticated user's profile returned on login and from
// /auth/me.
type Session struct {
	Token       string        `json:"token"`
	User        *domain.User  `json:"user"`
	Role        string        `json:"role"`
	Roles       []string      `json:"roles"`
	Permissions []string      `json:"permissions"`
	CityScope   rbac.CityScope `json:"city_scope"`
}

// Login validates email/password credentials and issues a token, per §6
// `POST /auth/login`.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	return s.authenticate(ctx, email, password, "")
}

// SupervisorLogin is the supervisor-facing login path; identical
// credential check, restricted to users whose primary role is supervisor.
func (s *AuthService) SupervisorLogin(ctx context.Context, email, password string) (*Session, error) {
	return s.authenticate(ctx, email, password, domain.RoleSupervisor)
}

func (s *AuthService) authenticate(ctx context.Context, email, password string, requireRole domain.PrimaryRole) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, errors.InvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.InvalidCredentials()
	}

	if requireRole != "" && user.PrimaryRole != requireRole {
		return nil, errors.Forbidden("account is not a supervisor account")
	}

	return s.buildSession(ctx, user)
}

// Me re-resolves a user's current profile for §6 `GET /auth/me`; unlike
// Login it does not mint a new token.
func (s *AuthService) Me(ctx context.Context, userID string) (*Session, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	session, err := s.buildSession(ctx, user)
	if err != nil {
		return nil, err
	}
	session.Token = ""
	return session, nil
}

func (s *AuthService) buildSession(ctx context.Context, user *domain.User) (*Session, error) {
	isAdmin := user.IsAdmin()

	resolved, err := s.perms.Resolve(ctx, user.ID, isAdmin)
	if err != nil {
		return nil, errors.Internal("could not resolve permissions")
	}

	scope, err := s.scopes.Resolve(ctx, user.ID, isAdmin, resolved)
	if err != nil {
		return nil, errors.Internal("could not resolve scope")
	}

	roleNames, err := s.users.RoleNamesForUser(ctx, user.ID)
	if err != nil {
		return nil, errors.Internal("could not resolve roles")
	}

	token, _, err := s.tokens.Issue(user.ID, string(user.PrimaryRole))
	if err != nil {
		return nil, errors.Internal("could not issue token")
	}

	return &Session{
		Token:       token,
		User:        user,
		Role:        string(user.PrimaryRole),
		Roles:       roleNames,
		Permissions: resolved.Permissions(),
		CityScope:   scope.City,
	}, nil
}
