package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldpunch/attendance-backend/internal/rbac"
)

func strp(s string) *string { return &s }
func int64p(i int64) *int64 { return &i }
func boolp(b bool) *bool    { return &b }

func TestBuild_NoFilters_AllScope(t *testing.T) {
	where, args := build(Filters{}, rbac.CityScope{All: true}, "")
	assert.Equal(t, "1=1", where)
	assert.Empty(t, args)
}

func TestBuild_EmptyScope_ShortCircuits(t *testing.T) {
	where, args := build(Filters{}, rbac.CityScope{}, "")
	assert.Equal(t, "1=1 AND 1=0", where)
	assert.Empty(t, args)
}

func TestBuild_ScopedCities(t *testing.T) {
	where, args := build(Filters{}, rbac.CityScope{Cities: []int64{1, 2, 3}}, "")
	assert.Equal(t, "1=1 AND city.id = ANY($1)", where)
	require := args
	assert.Len(t, require, 1)
}

func TestBuild_DateAndTextFilters(t *testing.T) {
	f := Filters{
		Date:     strp("2026-08-02"),
		CityName: strp("Pune"),
	}
	where, args := build(f, rbac.CityScope{All: true}, "")
	assert.Equal(t, "1=1 AND attendance.logical_date = $1 AND city.name ILIKE $2", where)
	require := args
	assert.Equal(t, []interface{}{"2026-08-02", "%Pune%"}, require)
}

func TestBuild_BooleanFilters_NoBinding(t *testing.T) {
	f := Filters{HasPunchIn: boolp(true), HasPunchOut: boolp(false)}
	where, args := build(f, rbac.CityScope{All: true}, "")
	assert.Equal(t, "1=1 AND attendance.punch_in_time IS NOT NULL AND attendance.punch_out_time IS NULL", where)
	assert.Empty(t, args)
}

func TestBuild_LocationFilter_UsesLocationExprForType(t *testing.T) {
	f := Filters{Location: strp("Warehouse")}

	where, args := build(f, rbac.CityScope{All: true}, "in")
	assert.Equal(t, "1=1 AND NULLIF(TRIM(attendance.in_address), '') ILIKE $1", where)
	assert.Equal(t, []interface{}{"%Warehouse%"}, args)

	where, args = build(f, rbac.CityScope{All: true}, "")
	assert.Equal(t,
		"1=1 AND COALESCE(NULLIF(TRIM(attendance.in_address), ''), NULLIF(TRIM(attendance.out_address), ''), 'Unknown Location') ILIKE $1",
		where)
	assert.Equal(t, []interface{}{"%Warehouse%"}, args)
}

func TestBuild_ParamNumberingSurvivesTenPlusClauses(t *testing.T) {
	f := Filters{
		Date:           strp("2026-08-02"),
		StartDate:      strp("2026-08-01"),
		EndDate:        strp("2026-08-03"),
		ZoneID:         int64p(1),
		WardID:         int64p(2),
		CityID:         int64p(3),
		SupervisorID:   strp("sup-1"),
		EmployeeID:     int64p(4),
		EmpCode:        strp("EMP1"),
		ZoneName:       strp("North"),
		WardName:       strp("Five"),
		CityName:       strp("Pune"),
		SupervisorName: strp("Ravi"),
		Search:         strp("Priya"),
		Location:       strp("Warehouse"),
	}
	where, args := build(f, rbac.CityScope{Cities: []int64{10, 20}}, "")
	assert.Contains(t, where, "$15")
	assert.Contains(t, where, "city.id = ANY($16)")
	assert.Len(t, args, 16)
}

func TestScopeClause_All(t *testing.T) {
	sql, args := scopeClause(rbac.CityScope{All: true}, 0)
	assert.Empty(t, sql)
	assert.Nil(t, args)
}

func TestScopeClause_Empty(t *testing.T) {
	sql, args := scopeClause(rbac.CityScope{}, 3)
	assert.Equal(t, "1=0", sql)
	assert.Nil(t, args)
}

func TestScopeClause_Scoped_OffsetsParamNumber(t *testing.T) {
	sql, args := scopeClause(rbac.CityScope{Cities: []int64{5}}, 3)
	assert.Equal(t, "city.id = ANY($4)", sql)
	assert.Len(t, args, 1)
}
