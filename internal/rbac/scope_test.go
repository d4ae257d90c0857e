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

func newScopeResolverUnderTest(t *testing.T) (*rbac.ScopeResolver, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	sqlxDB := sqlx.NewDb(rawDB, "postgres")
	db := database.NewFromSqlxDB(sqlxDB, logger.New("test", "test"))
	permRepo := repository.NewPermissionRepository(db)

	return rbac.NewScopeResolver(permRepo), mock
}

func TestScopeResolver_Resolve_Admin(t *testing.T) {
	resolver, _ := newScopeResolverUnderTest(t)

	scope, err := resolver.Resolve(context.Background(), "admin-1", true, &rbac.Resolved{})
	require.NoError(t, err)
	assert.True(t, scope.City.All)
	assert.True(t, scope.Zone.All)
}

func TestScopeResolver_Resolve_CityViewGrantCollapsesToAll(t *testing.T) {
	resolver, _ := newScopeResolverUnderTest(t)

	resolved := &rbac.Resolved{
		CityMap: map[string]rbac.CityScope{
			rbac.CityViewPermission: {All: true},
		},
	}

	scope, err := resolver.Resolve(context.Background(), "user-1", false, resolved)
	require.NoError(t, err)
	assert.True(t, scope.City.All)
	assert.True(t, scope.Zone.All)
}

func TestScopeResolver_Resolve_UnionsExplicitAndCityViewGrants(t *testing.T) {
	resolver, mock := newScopeResolverUnderTest(t)

	mock.ExpectQuery("user_city_access").WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"city_id"}).AddRow(int64(1)))
	mock.ExpectQuery("user_zone_access").WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"zone_id"}).AddRow(int64(9)))

	resolved := &rbac.Resolved{
		CityMap: map[string]rbac.CityScope{
			rbac.CityViewPermission: {All: false, Cities: []int64{1, 2}},
		},
	}

	scope, err := resolver.Resolve(context.Background(), "user-1", false, resolved)
	require.NoError(t, err)
	assert.False(t, scope.City.All)
	assert.ElementsMatch(t, []int64{1, 2}, scope.City.Cities)
	assert.Equal(t, []int64{9}, scope.Zone.Cities)
}

func TestScopeResolver_Resolve_NoCityViewGrantYieldsExplicitOnly(t *testing.T) {
	resolver, mock := newScopeResolverUnderTest(t)

	mock.ExpectQuery("user_city_access").WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"city_id"}).AddRow(int64(4)))
	mock.ExpectQuery("user_zone_access").WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"zone_id"}))

	scope, err := resolver.Resolve(context.Background(), "user-1", false, &rbac.Resolved{CityMap: map[string]rbac.CityScope{}})
	require.NoError(t, err)
	assert.False(t, scope.City.All)
	assert.Equal(t, []int64{4}, scope.City.Cities)
	assert.Empty(t, scope.Zone.Cities)
}

func TestCityScope_Empty(t *testing.T) {
	assert.True(t, rbac.CityScope{}.Empty())
	assert.False(t, rbac.CityScope{All: true}.Empty())
	assert.False(t, rbac.CityScope{Cities: []int64{1}}.Empty())
}
