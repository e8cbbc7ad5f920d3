// pkg/converter/converter.go
package converter

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Dialect selects the SQL flavour produced by the converter
type Dialect string

const (
	DialectSnowflake Dialect = "snowflake"
	DialectPostgres  Dialect = "postgres"
	DialectSQLite    Dialect = "sqlite"
)

// DialectForDriver maps a database/sql driver name to its dialect
func DialectForDriver(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "snowflake":
		return DialectSnowflake, nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", driver)
	}
}

// TypeConverter maps Snowflake column types to other dialects and renders DDL
type TypeConverter struct {
	logger *zap.Logger
	config TypeConverterConfig
}

// TypeConverterConfig tunes the PostgreSQL mapping
type TypeConverterConfig struct {
	// VARCHARs longer than this become TEXT
	MaxVarcharLength int
	// Keep NUMBER(p,s) with s > 0 as NUMERIC(p,s); otherwise DOUBLE PRECISION
	PreserveNumericPrecision bool
}

// DefaultConfig keeps NUMBER precision and VARCHARs up to 10000
func DefaultConfig() TypeConverterConfig {
	return TypeConverterConfig{
		MaxVarcharLength:         10000,
		PreserveNumericPrecision: true,
	}
}

// NewTypeConverter uses DefaultConfig
func NewTypeConverter(logger *zap.Logger) *TypeConverter {
	return NewTypeConverterWithConfig(logger, DefaultConfig())
}

func NewTypeConverterWithConfig(logger *zap.Logger, cfg TypeConverterConfig) *TypeConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypeConverter{logger: logger.Named("converter"), config: cfg}
}

// Fixed mappings; VARCHAR and NUMBER depend on their arguments and are
// handled separately
var (
	postgresTypes = map[string]string{
		"ARRAY":         "JSONB",
		"OBJECT":        "JSONB",
		"VARIANT":       "JSONB",
		"DATE":          "DATE",
		"TIMESTAMP_NTZ": "TIMESTAMP",
		"TIMESTAMP_TZ":  "TIMESTAMP WITH TIME ZONE",
		"TIMESTAMP_LTZ": "TIMESTAMP WITH TIME ZONE",
		"BOOLEAN":       "BOOLEAN",
		"FLOAT":         "DOUBLE PRECISION",
		"DOUBLE":        "DOUBLE PRECISION",
		"BINARY":        "BYTEA",
		"VARBINARY":     "BYTEA",
	}
	// the sqlite driver only parses times back for DATE and TIMESTAMP
	sqliteTypes = map[string]string{
		"VARCHAR":       "TEXT",
		"STRING":        "TEXT",
		"TEXT":          "TEXT",
		"ARRAY":         "TEXT",
		"OBJECT":        "TEXT",
		"VARIANT":       "TEXT",
		"DATE":          "DATE",
		"TIMESTAMP_NTZ": "TIMESTAMP",
		"TIMESTAMP_TZ":  "TIMESTAMP",
		"TIMESTAMP_LTZ": "TIMESTAMP",
		"BOOLEAN":       "INTEGER",
		"FLOAT":         "REAL",
		"DOUBLE":        "REAL",
		"BINARY":        "BLOB",
		"VARBINARY":     "BLOB",
	}
)

// MapType converts a Snowflake column type to the target dialect. Unknown
// types map to TEXT and are reported as an error alongside the fallback.
func (c *TypeConverter) MapType(raw string, dialect Dialect) (string, error) {
	if dialect == DialectSnowflake {
		if raw == "" {
			return "VARCHAR", nil
		}
		return strings.ToUpper(raw), nil
	}
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return "", fmt.Errorf("unsupported dialect: %s", dialect)
	}
	if raw == "" || strings.EqualFold(raw, "NULL") {
		return "TEXT", nil
	}

	t := parseSnowType(raw)
	if dialect == DialectPostgres {
		switch t.base {
		case "VARCHAR", "STRING", "TEXT":
			return c.pgVarchar(t), nil
		case "NUMBER":
			return c.pgNumber(t), nil
		}
		if mapped, ok := postgresTypes[t.base]; ok {
			return mapped, nil
		}
	} else {
		if t.base == "NUMBER" {
			if t.scale == 0 {
				return "INTEGER", nil
			}
			return "REAL", nil
		}
		if mapped, ok := sqliteTypes[t.base]; ok {
			return mapped, nil
		}
	}

	c.logger.Warn("Unknown column type, using TEXT",
		zap.String("type", t.raw),
		zap.String("dialect", string(dialect)))
	return "TEXT", fmt.Errorf("unknown Snowflake type %s for %s", t.raw, dialect)
}
