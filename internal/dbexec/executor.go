package dbexec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-hierarchy/provider/internal/hierarchy"
	"github.com/go-hierarchy/provider/internal/logger"
)

// boolColumns are the fixed columns the default row parser expects as Go
// bool, even though MySQL returns them as TINYINT(1) (spec.md ยง4.2, ยง6.3).
var boolColumns = map[string]bool{
	hierarchy.ColHasChildren:             true,
	hierarchy.ColHideIfNoChildren:        true,
	hierarchy.ColHideNodeInHierarchy:     true,
	hierarchy.ColAutoExpand:              true,
	hierarchy.ColSupportsFiltering:       true,
	hierarchy.ColHasFilterTargetAncestor: true,
}

// jsonColumns are the fixed columns the default row parser expects decoded
// into map[string]interface{}, stored as JSON text in MySQL.
var jsonColumns = map[string]bool{
	hierarchy.ColExtendedData: true,
	hierarchy.ColGrouping:     true,
}

// filterMatchesColumn is the row key a filtering-aware executor stashes a
// rewritten instance query's Query.FilterContext under, so the default row
// parser can reconstruct FilteringInfo without understanding identifier
// paths itself (spec.md ยง4.6).
const filterMatchesColumn = "__filterMatches"

// Executor implements hierarchy.QueryExecutor over a single MySQL
// connection.
type Executor struct {
	db  *sql.DB
	log *logger.Logger
}

// NewExecutor wraps db as a hierarchy.QueryExecutor.
func NewExecutor(db *sql.DB, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Executor{db: db, log: log}
}

// ExecuteQuery runs q and returns up to limit+1 rows (limit == 0 means
// unbounded), satisfying the scheduler's row-limit-overrun detection
// contract without a true streaming iterator (spec.md ยง4.1, ยง6.1).
func (e *Executor) ExecuteQuery(ctx context.Context, q hierarchy.Query, limit int) ([]hierarchy.Row, error) {
	sqlText := q.SQL
	if limit > 0 {
		sqlText = fmt.Sprintf("%s LIMIT %d", strings.TrimRight(sqlText, "; \n\t"), limit+1)
	}

	rows, err := e.db.QueryContext(ctx, sqlText, q.Bindings...)
	if err != nil {
		e.log.Errorw("query execution failed", "error", err, "ctes", q.CTEs)
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []hierarchy.Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(hierarchy.Row, len(columns)+1)
		for i, col := range columns {
			row[col] = coerceColumn(col, values[i])
		}
		if q.FilterContext != nil {
			row[filterMatchesColumn] = q.FilterContext
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

// coerceColumn converts a driver value into the shape the default row
// parser expects for col: Go bool for TINYINT(1) flag columns, a decoded
// map for JSON text columns, otherwise a plain string for non-binary
// values (spec.md ยง4.2).
func coerceColumn(col string, v interface{}) interface{} {
	s := normalizeValue(v)

	if boolColumns[col] {
		switch t := s.(type) {
		case bool:
			return t
		case int64:
			return t != 0
		case string:
			return t == "1" || strings.EqualFold(t, "true")
		default:
			return false
		}
	}

	if jsonColumns[col] {
		text, ok := s.(string)
		if !ok || text == "" {
			return nil
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(text), &m); err != nil {
			return nil
		}
		return m
	}

	return s
}

// normalizeValue converts the driver's []byte representation of
// non-binary MySQL columns into string, matching what the row parser
// expects for label/instance-id fields.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
