package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldpunch/attendance-backend/internal/identity/domain"
	"github.com/fieldpunch/attendance-backend/internal/identity/repository"
	"github.com/fieldpunch/attendance-backend/internal/identity/service"
	"github.com/fieldpunch/attendance-backend/internal/rbac"
	"github.com/fieldpunch/attendance-backend/pkg/config"
	"github.com/fieldpunch/attendance-backend/pkg/database"
	"github.com/fieldpunch/attendance-backend/pkg/logger"
)

var userCols = []string{"id", "name", "emp_code", "email", "phone", "primary_role", "department", "password_hash", "created_at", "updated_at"}

func newAuthServiceUnderTest(t *testing.T) (*service.AuthService, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	sqlxDB := sqlx.NewDb(rawDB, "postgres")
	db := database.NewFromSqlxDB(sqlxDB, logger.New("test", "test"))

	users := repository.NewUserRepository(db)
	perms := repository.NewPermissionRepository(db)
	resolver := rbac.NewResolver(perms, nil, logger.New("test", "test"))
	scopeResolver := rbac.NewScopeResolver(perms)
	tokens := rbac.NewTokenManager(&config.JWTConfig{Secret: "test-secret", Expiry: time.Hour, Issuer: "attendance-backend-test"})

	return service.NewAuthService(users, resolver, scopeResolver, tokens), mock
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return string(hash)
}

func expectPermissionQueries(mock sqlmock.Sqlmock, userID string) {
	mock.ExpectQuery("FROM user_roles ur").WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"module", "action", "city_id"}))
	mock.ExpectQuery("FROM user_permissions").WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"module", "action", "city_id"}))
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, mock := newAuthServiceUnderTest(t)

	hash := hashPassword(t, "correct-password")
	rows := sqlmock.NewRows(userCols).AddRow(
		"user-1", "Ravi Kumar", nil, "ravi@example.com", nil, domain.RoleSupervisor, nil, hash, time.Now(), time.Now(),
	)
	mock.ExpectQuery("FROM users WHERE email = \\$1").WithArgs("ravi@example.com").WillReturnRows(rows)

	expectPermissionQueries(mock, "user-1")
	mock.ExpectQuery("user_city_access").WithArgs("user-1").WillReturnRows(sqlmock.NewRows([]string{"city_id"}))
	mock.ExpectQuery("user_zone_access").WithArgs("user-1").WillReturnRows(sqlmock.NewRows([]string{"zone_id"}))
	mock.ExpectQuery("FROM user_roles ur").WithArgs("user-1").WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("supervisor"))

	session, err := svc.Login(context.Background(), "RAVI@example.com", "correct-password")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "supervisor", session.Role)
	assert.Equal(t, []string{"supervisor"}, session.Roles)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, mock := newAuthServiceUnderTest(t)

	hash := hashPassword(t, "correct-password")
	rows := sqlmock.NewRows(userCols).AddRow(
		"user-1", "Ravi Kumar", nil, "ravi@example.com", nil, domain.RoleSupervisor, nil, hash, time.Now(), time.Now(),
	)
	mock.ExpectQuery("FROM users WHERE email = \\$1").WithArgs("ravi@example.com").WillReturnRows(rows)

	_, err := svc.Login(context.Background(), "ravi@example.com", "wrong-password")
	require.Error(t, err)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	svc, mock := newAuthServiceUnderTest(t)

	mock.ExpectQuery("FROM users WHERE email = \\$1").WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	require.Error(t, err)
}

func TestAuthService_SupervisorLogin_RejectsNonSupervisorAccount(t *testing.T) {
	svc, mock := newAuthServiceUnderTest(t)

	hash := hashPassword(t, "secret")
	rows := sqlmock.NewRows(userCols).AddRow(
		"user-2", "Priya Sharma", nil, "priya@example.com", nil, domain.RoleUser, nil, hash, time.Now(), time.Now(),
	)
	mock.ExpectQuery("FROM users WHERE email = \\$1").WithArgs("priya@example.com").WillReturnRows(rows)

	_, err := svc.SupervisorLogin(context.Background(), "priya@example.com", "secret")
	require.Error(t, err)
}
