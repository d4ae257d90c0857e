package engine

import (
	"context"
	"fmt"

	"github.com/fieldpunch/attendance-backend/internal/rbac"
	"github.com/fieldpunch/attendance-backend/pkg/database"
	"github.com/fieldpunch/attendance-backend/pkg/errors"
)

// Result is the Report Engine's output, rendered to CSV or JSON by the caller.
type Result struct {
	GroupBy      string                   `json:"group_by"`
	LocationType string                   `json:"location_type"`
	Count        int                      `json:"count"`
	Data         []map[string]interface{} `json:"data"`
	columns      []Column
}

// Engine runs parameterised attendance reports over the database.
type Engine struct {
	db *database.DB
}

// New creates a new report engine.
func New(db *database.DB) *Engine {
	return &Engine{db: db}
}

// Run selects the named grouping, applies filters and city scope, and
// executes the query.
func (e *Engine) Run(ctx context.Context, groupBy, locationType string, filters Filters, scope rbac.CityScope) (*Result, error) {
	groupings := Groupings(locationType)
	grouping, ok := groupings[groupBy]
	if !ok {
		return nil, errors.BadRequest("unknown group_by: " + groupBy)
	}

	where, args := build(filters, scope, locationType)

	query := fmt.Sprintf("SELECT %s %s WHERE %s", grouping.Select, grouping.From, where)
	if grouping.GroupBy != "" {
		query += " GROUP BY " + grouping.GroupBy
	}
	if grouping.Having != nil {
		if having := grouping.Having(filters); having != "" {
			query += " HAVING " + having
		}
	}
	if grouping.OrderBy != "" {
		query += " ORDER BY " + grouping.OrderBy
	}

	rows, err := e.db.QueryxContext(ctx, query, args...)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, errors.Internal("report query failed")
	}
	defer rows.Close()

	var data []map[string]interface{}
	for rows.Next() {
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, errors.Internal("report row scan failed")
		}
		data = append(data, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("report query failed while iterating rows")
	}

	return &Result{
		GroupBy:      groupBy,
		LocationType: locationType,
		Count:        len(data),
		Data:         data,
		columns:      grouping.Columns,
	}, nil
}

// normalizeRow converts driver-returned []byte values (Postgres text/numeric
// types scanned generically) into strings so JSON/CSV rendering doesn't emit
// base64.
func normalizeRow(row map[string]interface{}) map[string]interface{} {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return row
}
