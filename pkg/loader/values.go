// pkg/loader/values.go
package loader

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// toNullString treats empty (or whitespace-only) cells as NULL
func toNullString(v string) sql.NullString {
	cleaned := strings.TrimSpace(v)
	if cleaned == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: cleaned, Valid: true}
}

// toNullInt parses a non-negative integer cell
func toNullInt(v string) (sql.NullInt64, error) {
	cleaned := strings.TrimSpace(v)
	if cleaned == "" {
		return sql.NullInt64{}, nil
	}
	i, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		// Some exports write integral columns as 1.0
		f, ferr := strconv.ParseFloat(cleaned, 64)
		if ferr != nil || f != float64(int64(f)) {
			return sql.NullInt64{}, fmt.Errorf("cannot parse %q as integer", cleaned)
		}
		i = int64(f)
	}
	if i < 0 {
		return sql.NullInt64{}, fmt.Errorf("negative value %d", i)
	}
	return sql.NullInt64{Int64: i, Valid: true}, nil
}

// toNullFloat parses a non-negative currency cell
func toNullFloat(v string) (sql.NullFloat64, error) {
	cleaned := strings.TrimSpace(v)
	if cleaned == "" {
		return sql.NullFloat64{}, nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return sql.NullFloat64{}, fmt.Errorf("cannot parse %q as number", cleaned)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}, fmt.Errorf("non-finite value %q", cleaned)
	}
	if f < 0 {
		return sql.NullFloat64{}, fmt.Errorf("negative value %v", f)
	}
	return sql.NullFloat64{Float64: f, Valid: true}, nil
}
