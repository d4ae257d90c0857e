package rbac_test

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldpunch/attendance-backend/internal/identity/repository"
	"github.com/fieldpunch/attendance-backend/internal/rbac"
	"github.com/fieldpunch/attendance-backend/pkg/database"
	"github.com/fieldpunch/attendance-backend/pkg/logger"
)

func newResolverUnderTest(t *testing.T) (*rbac.Resolver, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	sqlxDB := sqlx.NewDb(rawDB, "postgres")
	db := database.NewFromSqlxDB(sqlxDB, logger.New("test", "test"))
	permRepo := repository.NewPermissionRepository(db)

	return rbac.NewResolver(permRepo, nil, logger.New("test", "test")), mock
}

func TestResolver_Resolve_MergesRoleAndDirectGrants(t *testing.T) {
	resolver, mock := newResolverUnderTest(t)

	roleRows := sqlmock.NewRows([]string{"module", "action", "city_id"}).
		AddRow("attendance", "view", nil)
	mock.ExpectQuery("FROM user_roles").WithArgs("user-1").WillReturnRows(roleRows)

	directRows := sqlmock.NewRows([]string{"module", "action", "city_id"}).
		AddRow("attendance", "report", int64(7))
	mock.ExpectQuery("FROM user_permissions").WithArgs("user-1").WillReturnRows(directRows)

	resolved, err := resolver.Resolve(context.Background(), "user-1", false)
	require.NoError(t, err)

	assert.True(t, resolved.Has("attendance:view"))
	assert.True(t, resolved.Has("attendance:report"))
	assert.False(t, resolved.Has("rbac:manage"))

	scope := resolved.CityMap["attendance:report"]
	assert.False(t, scope.All)
	assert.Equal(t, []int64{7}, scope.Cities)

	viewScope := resolved.CityMap["attendance:view"]
	assert.True(t, viewScope.All)
}

func TestResolver_Resolve_AdminGetsWildcard(t *testing.T) {
	resolver, mock := newResolverUnderTest(t)

	mock.ExpectQuery("FROM user_roles").WithArgs("admin-1").
		WillReturnRows(sqlmock.NewRows([]string{"module", "action", "city_id"}))
	mock.ExpectQuery("FROM user_permissions").WithArgs("admin-1").
		WillReturnRows(sqlmock.NewRows([]string{"module", "action", "city_id"}))

	resolved, err := resolver.Resolve(context.Background(), "admin-1", true)
	require.NoError(t, err)
	assert.True(t, resolved.Has("*"))
}

func TestResolver_Resolve_CachesUntilVersionBump(t *testing.T) {
	resolver, mock := newResolverUnderTest(t)

	mock.ExpectQuery("FROM user_roles").WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"module", "action", "city_id"}).AddRow("city", "view", nil))
	mock.ExpectQuery("FROM user_permissions").WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"module", "action", "city_id"}))

	_, err := resolver.Resolve(context.Background(), "user-1", false)
	require.NoError(t, err)

	// second call within the same version must not hit the DB again
	_, err = resolver.Resolve(context.Background(), "user-1", false)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	resolver.BumpVersion()

	mock.ExpectQuery("FROM user_roles").WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"module", "action", "city_id"}).AddRow("city", "view", nil))
	mock.ExpectQuery("FROM user_permissions").WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"module", "action", "city_id"}))

	_, err = resolver.Resolve(context.Background(), "user-1", false)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
