package engine

import "fmt"

// Column describes one CSV output column.
type Column struct {
	Header string
	Field  string // key into each result row's map
}

// Grouping declares one of §4.5's eight report shapes.
type Grouping struct {
	Key         string
	Select      string
	From        string
	GroupBy     string
	OrderBy     string
	Having      func(f Filters) string // optional, empty if none
	Columns     []Column
}

const baseFrom = `
	FROM attendance
	JOIN employees ON employees.emp_id = attendance.emp_id
	JOIN wards ward ON ward.id = attendance.ward_id
	JOIN zones zone ON zone.id = ward.zone_id
	JOIN cities city ON city.id = zone.city_id
`

const supervisorFrom = baseFrom + `
	LEFT JOIN supervisor_wards supervisor_ward ON supervisor_ward.ward_id = ward.id
	LEFT JOIN users supervisor ON supervisor.id = supervisor_ward.supervisor_id
`

// locationExpr implements §4.5's location expression.
func locationExpr(locationType string) string {
	switch locationType {
	case "in":
		return "NULLIF(TRIM(attendance.in_address), '')"
	case "out":
		return "NULLIF(TRIM(attendance.out_address), '')"
	default:
		return "COALESCE(NULLIF(TRIM(attendance.in_address), ''), NULLIF(TRIM(attendance.out_address), ''), 'Unknown Location')"
	}
}

// Groupings returns the eight declared report shapes, parameterised by
// location_type for the detail/location groupings.
func Groupings(locationType string) map[string]Grouping {
	location := locationExpr(locationType)

	return map[string]Grouping{
		"detail": {
			Key: "detail",
			Select: fmt.Sprintf(`
				employees.emp_id AS emp_id, employees.emp_code AS emp_code, employees.name AS employee_name,
				ward.id AS ward_id, ward.name AS ward_name, zone.id AS zone_id, zone.name AS zone_name,
				city.id AS city_id, city.name AS city_name,
				attendance.logical_date AS logical_date, attendance.punch_in_time AS punch_in_time,
				attendance.punch_out_time AS punch_out_time, attendance.duration AS duration,
				%s AS location`, location),
			From:    baseFrom,
			OrderBy: "attendance.logical_date DESC, employees.name ASC",
			Columns: []Column{
				{"Employee Code", "emp_code"}, {"Employee Name", "employee_name"},
				{"Ward", "ward_name"}, {"Zone", "zone_name"}, {"City", "city_name"},
				{"Date", "logical_date"}, {"Punch In", "punch_in_time"}, {"Punch Out", "punch_out_time"},
				{"Duration (s)", "duration"}, {"Location", "location"},
			},
		},
		"zone": {
			Key: "zone",
			Select: `
				zone.id AS zone_id, zone.name AS zone_name, city.id AS city_id, city.name AS city_name,
				COUNT(DISTINCT attendance.attendance_id) AS total_punches,
				COUNT(DISTINCT attendance.emp_id) AS distinct_employees`,
			From:    baseFrom,
			GroupBy: "zone.id, zone.name, city.id, city.name",
			OrderBy: "zone.name ASC",
			Columns: []Column{
				{"Zone", "zone_name"}, {"City", "city_name"},
				{"Total Punches", "total_punches"}, {"Distinct Employees", "distinct_employees"},
			},
		},
		"ward": {
			Key: "ward",
			Select: `
				ward.id AS ward_id, ward.name AS ward_name, zone.id AS zone_id, zone.name AS zone_name,
				city.id AS city_id, city.name AS city_name,
				COUNT(DISTINCT attendance.attendance_id) AS total_punches,
				COUNT(DISTINCT attendance.emp_id) AS distinct_employees`,
			From:    baseFrom,
			GroupBy: "ward.id, ward.name, zone.id, zone.name, city.id, city.name",
			OrderBy: "ward.name ASC",
			Columns: []Column{
				{"Ward", "ward_name"}, {"Zone", "zone_name"}, {"City", "city_name"},
				{"Total Punches", "total_punches"}, {"Distinct Employees", "distinct_employees"},
			},
		},
		"city": {
			Key: "city",
			Select: `
				city.id AS city_id, city.name AS city_name,
				COUNT(DISTINCT attendance.attendance_id) AS total_punches,
				COUNT(DISTINCT attendance.emp_id) AS distinct_employees`,
			From:    baseFrom,
			GroupBy: "city.id, city.name",
			OrderBy: "city.name ASC",
			Columns: []Column{
				{"City", "city_name"},
				{"Total Punches", "total_punches"}, {"Distinct Employees", "distinct_employees"},
			},
		},
		"supervisor": {
			Key: "supervisor",
			Select: `
				supervisor.id AS supervisor_id, supervisor.name AS supervisor_name,
				COUNT(DISTINCT attendance.attendance_id) AS total_punches,
				COUNT(DISTINCT attendance.emp_id) AS distinct_employees`,
			From:    supervisorFrom,
			GroupBy: "supervisor.id, supervisor.name",
			OrderBy: "supervisor.name ASC",
			Columns: []Column{
				{"Supervisor", "supervisor_name"},
				{"Total Punches", "total_punches"}, {"Distinct Employees", "distinct_employees"},
			},
		},
		"location": {
			Key:     "location",
			Select:  fmt.Sprintf(`%s AS location, COUNT(*) AS total_punches`, location),
			From:    baseFrom,
			GroupBy: "location",
			OrderBy: "total_punches DESC",
			Columns: []Column{
				{"Location", "location"}, {"Total Punches", "total_punches"},
			},
		},
		"ward_summary": {
			Key: "ward_summary",
			Select: `
				ward.id AS ward_id, ward.name AS ward_name,
				COUNT(DISTINCT employees.emp_id) AS total_employees,
				COUNT(DISTINCT attendance.emp_id) FILTER (WHERE attendance.punch_in_time IS NOT NULL) AS present_today`,
			From:    baseFrom,
			GroupBy: "ward.id, ward.name",
			OrderBy: "ward.name ASC",
			Columns: []Column{
				{"Ward", "ward_name"}, {"Total Employees", "total_employees"}, {"Present Today", "present_today"},
			},
		},
		"supervisor_summary": {
			Key: "supervisor_summary",
			Select: `
				supervisor.id AS supervisor_id, supervisor.name AS supervisor_name,
				COUNT(DISTINCT employees.emp_id) AS total_employees,
				COUNT(DISTINCT attendance.emp_id) FILTER (
					WHERE attendance.logical_date = CURRENT_DATE - 1 AND attendance.punch_in_time IS NOT NULL
				) AS present_yesterday`,
			From:    supervisorFrom,
			GroupBy: "supervisor.id, supervisor.name",
			OrderBy: "supervisor.name ASC",
			Having: func(f Filters) string {
				if !f.AbsenteesOnly {
					return ""
				}
				return "COUNT(DISTINCT employees.emp_id) - COUNT(DISTINCT attendance.emp_id) FILTER (" +
					"WHERE attendance.logical_date = CURRENT_DATE - 1 AND attendance.punch_in_time IS NOT NULL" +
					") > 0"
			},
			Columns: []Column{
				{"Supervisor", "supervisor_name"}, {"Total Employees", "total_employees"}, {"Present Yesterday", "present_yesterday"},
			},
		},
	}
}
