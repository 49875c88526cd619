package engine

import (
	"database/sql"

	"quarry/internal/domain"
)

// scanResult drains rows into a fully materialized result. Byte slices are
// converted to strings for JSON serialization.
func scanResult(rows *sql.Rows) (*domain.Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	types := make([]string, len(cols))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			types[i] = ct.DatabaseTypeName()
		}
	}

	var resultRows [][]any
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]any, len(vals))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.Result{
		Columns: cols,
		Types:   types,
		Rows:    resultRows,
	}, nil
}
