// pkg/converter/ddl.go
package converter

import (
	"fmt"
	"strings"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// GenerateColumnDefinitions creates column definitions for the dialect
func (c *TypeConverter) GenerateColumnDefinitions(metadata *model.TableMetadata, dialect Dialect) ([]string, error) {
	definitions := make([]string, 0, len(metadata.Columns))

	for _, col := range metadata.Columns {
		colType := col.PgType
		if colType == "" || dialect != DialectPostgres {
			var err error
			colType, err = c.MapType(col.DataType, dialect)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.Name, err)
			}
		}

		nullability := "NULL"
		if col.IsPrimaryKey || !col.Nullable {
			nullability = "NOT NULL"
		}

		definitions = append(definitions, fmt.Sprintf("%s %s %s",
			QuoteIdentifier(col.Name, dialect), colType, nullability))
	}

	return definitions, nil
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for the dialect
func (c *TypeConverter) CreateTableSQL(metadata *model.TableMetadata, dialect Dialect) (string, error) {
	definitions, err := c.GenerateColumnDefinitions(metadata, dialect)
	if err != nil {
		return "", err
	}

	if len(metadata.PrimaryKeys) > 0 {
		keys := make([]string, len(metadata.PrimaryKeys))
		for i, k := range metadata.PrimaryKeys {
			keys[i] = QuoteIdentifier(k, dialect)
		}
		definitions = append(definitions, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keys, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		QualifiedName(metadata, dialect),
		strings.Join(definitions, ",\n  ")), nil
}

// NamedInsertSQL renders an INSERT using sqlx named parameters. Parameter
// names are the lower-cased column names.
func NamedInsertSQL(metadata *model.TableMetadata, dialect Dialect) string {
	cols := make([]string, len(metadata.Columns))
	params := make([]string, len(metadata.Columns))
	for i, col := range metadata.Columns {
		cols[i] = QuoteIdentifier(col.Name, dialect)
		params[i] = ":" + strings.ToLower(col.Name)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QualifiedName(metadata, dialect),
		strings.Join(cols, ", "),
		strings.Join(params, ", "))
}

// QualifiedName returns the quoted table name, schema qualified when the
// dialect has schemas
func QualifiedName(metadata *model.TableMetadata, dialect Dialect) string {
	table := QuoteIdentifier(metadata.Table, dialect)
	if metadata.Schema == "" || dialect == DialectSQLite {
		return table
	}
	return QuoteIdentifier(metadata.Schema, dialect) + "." + table
}

// QuoteIdentifier quotes and escapes an identifier. Postgres and SQLite
// names are folded to lower case; Snowflake names to upper case.
func QuoteIdentifier(name string, dialect Dialect) string {
	escaped := strings.ReplaceAll(name, "\"", "\"\"")
	if dialect == DialectSnowflake {
		return "\"" + strings.ToUpper(escaped) + "\""
	}
	return "\"" + strings.ToLower(escaped) + "\""
}
