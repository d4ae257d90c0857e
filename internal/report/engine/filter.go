// Package engine implements the Report Engine (§4.5): parameterised
// groupings, a filter builder, scope injection, and CSV/JSON rendering.
package engine

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/fieldpunch/attendance-backend/internal/rbac"
)

// Filters is the filter-builder's input, per §4.5's accepted field list.
type Filters struct {
	Date           *string
	StartDate      *string
	EndDate        *string
	ZoneID         *int64
	WardID         *int64
	CityID         *int64
	SupervisorID   *string
	EmployeeID     *int64
	EmpCode        *string
	ZoneName       *string
	WardName       *string
	CityName       *string
	SupervisorName *string
	Search         *string
	Location       *string
	HasPunchIn     *bool
	HasPunchOut    *bool
	AbsenteesOnly  bool
}

// clause is one bound-parameter WHERE fragment.
type clause struct {
	sql string
	arg interface{}
}

// build assembles a parameterised WHERE clause from filters and the
// caller's city scope. Text names use case-insensitive contains, ids use
// strict equality, booleans use IS NULL / IS NOT NULL. Every value is
// bound, never interpolated.
func build(f Filters, scope rbac.CityScope, locationType string) (string, []interface{}) {
	var clauses []clause

	if f.Date != nil {
		clauses = append(clauses, clause{"attendance.logical_date = %s", *f.Date})
	}
	if f.StartDate != nil {
		clauses = append(clauses, clause{"attendance.logical_date >= %s", *f.StartDate})
	}
	if f.EndDate != nil {
		clauses = append(clauses, clause{"attendance.logical_date <= %s", *f.EndDate})
	}
	if f.ZoneID != nil {
		clauses = append(clauses, clause{"zone.id = %s", *f.ZoneID})
	}
	if f.WardID != nil {
		clauses = append(clauses, clause{"ward.id = %s", *f.WardID})
	}
	if f.CityID != nil {
		clauses = append(clauses, clause{"city.id = %s", *f.CityID})
	}
	if f.SupervisorID != nil {
		clauses = append(clauses, clause{"supervisor_ward.supervisor_id = %s", *f.SupervisorID})
	}
	if f.EmployeeID != nil {
		clauses = append(clauses, clause{"employees.emp_id = %s", *f.EmployeeID})
	}
	if f.EmpCode != nil {
		clauses = append(clauses, clause{"employees.emp_code = %s", *f.EmpCode})
	}
	if f.ZoneName != nil {
		clauses = append(clauses, clause{"zone.name ILIKE %s", "%" + *f.ZoneName + "%"})
	}
	if f.WardName != nil {
		clauses = append(clauses, clause{"ward.name ILIKE %s", "%" + *f.WardName + "%"})
	}
	if f.CityName != nil {
		clauses = append(clauses, clause{"city.name ILIKE %s", "%" + *f.CityName + "%"})
	}
	if f.SupervisorName != nil {
		clauses = append(clauses, clause{"supervisor.name ILIKE %s", "%" + *f.SupervisorName + "%"})
	}
	if f.Search != nil {
		clauses = append(clauses, clause{"employees.name ILIKE %s", "%" + *f.Search + "%"})
	}
	if f.Location != nil {
		clauses = append(clauses, clause{locationExpr(locationType) + " ILIKE %s", "%" + *f.Location + "%"})
	}
	if f.HasPunchIn != nil {
		if *f.HasPunchIn {
			clauses = append(clauses, clause{"attendance.punch_in_time IS NOT NULL", nil})
		} else {
			clauses = append(clauses, clause{"attendance.punch_in_time IS NULL", nil})
		}
	}
	if f.HasPunchOut != nil {
		if *f.HasPunchOut {
			clauses = append(clauses, clause{"attendance.punch_out_time IS NOT NULL", nil})
		} else {
			clauses = append(clauses, clause{"attendance.punch_out_time IS NULL", nil})
		}
	}

	var sb strings.Builder
	sb.WriteString("1=1")
	var args []interface{}

	for _, c := range clauses {
		if c.arg == nil {
			sb.WriteString(" AND ")
			sb.WriteString(c.sql)
			continue
		}
		args = append(args, c.arg)
		sb.WriteString(" AND ")
		sb.WriteString(fmt.Sprintf(c.sql, fmt.Sprintf("$%d", len(args))))
	}

	scopeSQL, scopeArgs := scopeClause(scope, len(args))
	if scopeSQL != "" {
		sb.WriteString(" AND ")
		sb.WriteString(scopeSQL)
		args = append(args, scopeArgs...)
	}

	return sb.String(), args
}

// scopeClause implements §4.5's scope injection: all → no clause, empty →
// 1=0 short-circuit, else city.id = ANY($N).
func scopeClause(scope rbac.CityScope, argOffset int) (string, []interface{}) {
	if scope.All {
		return "", nil
	}
	if len(scope.Cities) == 0 {
		return "1=0", nil
	}
	return fmt.Sprintf("city.id = ANY($%d)", argOffset+1), []interface{}{pq.Array(scope.Cities)}
}
