// pkg/converter/mapping.go
package converter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var typePattern = regexp.MustCompile(`^([A-Z_0-9]+)\s*(?:\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\))?`)

// columnType is a parsed Snowflake column type such as NUMBER(10,2)
type columnType struct {
	raw       string
	base      string
	sized     bool
	precision int // length for VARCHAR
	scale     int
}

func parseSnowType(s string) columnType {
	s = strings.ToUpper(strings.TrimSpace(s))
	t := columnType{raw: s, base: s}
	m := typePattern.FindStringSubmatch(s)
	if m == nil {
		return t
	}
	t.base = m[1]
	if m[2] != "" {
		t.sized = true
		t.precision, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		t.scale, _ = strconv.Atoi(m[3])
	}
	return t
}

// pgVarchar keeps declared lengths up to MaxVarcharLength
func (c *TypeConverter) pgVarchar(t columnType) string {
	if !t.sized {
		return "TEXT"
	}
	if t.precision > c.config.MaxVarcharLength {
		c.logger.Debug("Converting large VARCHAR to TEXT", zap.String("original", t.raw))
		return "TEXT"
	}
	return fmt.Sprintf("VARCHAR(%d)", t.precision)
}

// pgNumber picks the narrowest integer type for scale 0 and NUMERIC or
// DOUBLE PRECISION otherwise
func (c *TypeConverter) pgNumber(t columnType) string {
	switch {
	case !t.sized:
		return "NUMERIC"
	case t.scale == 0 && t.precision <= 4:
		return "SMALLINT"
	case t.scale == 0 && t.precision <= 9:
		return "INTEGER"
	case t.scale == 0 && t.precision <= 18:
		return "BIGINT"
	case t.scale == 0:
		return fmt.Sprintf("NUMERIC(%d)", t.precision)
	case c.config.PreserveNumericPrecision:
		return fmt.Sprintf("NUMERIC(%d,%d)", t.precision, t.scale)
	default:
		return "DOUBLE PRECISION"
	}
}
