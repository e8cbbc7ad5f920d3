package converter

import (
	"strings"
	"testing"

	"github.com/David-Botos/churn-ml/pkg/model"
)

func TestMapType(t *testing.T) {
	c := NewTypeConverter(nil)
	tests := []struct {
		snow    string
		dialect Dialect
		want    string
	}{
		{"VARCHAR(32)", DialectPostgres, "VARCHAR(32)"},
		{"VARCHAR(16777216)", DialectPostgres, "TEXT"},
		{"NUMBER(1,0)", DialectPostgres, "SMALLINT"},
		{"NUMBER(10,0)", DialectPostgres, "BIGINT"},
		{"NUMBER(10,2)", DialectPostgres, "NUMERIC(10,2)"},
		{"NUMBER", DialectPostgres, "NUMERIC"},
		{"FLOAT", DialectPostgres, "DOUBLE PRECISION"},
		{"VARIANT", DialectPostgres, "JSONB"},
		{"TIMESTAMP_TZ", DialectPostgres, "TIMESTAMP WITH TIME ZONE"},
		{"VARCHAR(32)", DialectSQLite, "TEXT"},
		{"NUMBER(4,0)", DialectSQLite, "INTEGER"},
		{"NUMBER(10,2)", DialectSQLite, "REAL"},
		{"FLOAT", DialectSQLite, "REAL"},
		{"TIMESTAMP_TZ", DialectSQLite, "TIMESTAMP"},
		{"number(10, 2)", DialectSnowflake, "NUMBER(10, 2)"},
	}

	for _, tt := range tests {
		got, err := c.MapType(tt.snow, tt.dialect)
		if err != nil {
			t.Errorf("MapType(%s, %s): %v", tt.snow, tt.dialect, err)
			continue
		}
		if got != tt.want {
			t.Errorf("MapType(%s, %s) = %s, want %s", tt.snow, tt.dialect, got, tt.want)
		}
	}

	if got, err := c.MapType("GEOGRAPHY", DialectPostgres); err == nil || got != "TEXT" {
		t.Errorf("unknown type: got %s, %v", got, err)
	}
	if _, err := c.MapType("FLOAT", Dialect("oracle")); err == nil {
		t.Error("expected error for unknown dialect")
	}
}

func TestCreateTableSQL(t *testing.T) {
	c := NewTypeConverter(nil)
	md := model.FeatureTableMetadata("ANALYTICS")

	pg, err := c.CreateTableSQL(md, DialectPostgres)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "analytics"."customer_churn_features"`,
		`"customer_id" VARCHAR(32) NOT NULL`,
		`"monthly_charges" DOUBLE PRECISION NOT NULL`,
		`PRIMARY KEY ("customer_id")`,
	} {
		if !strings.Contains(pg, want) {
			t.Errorf("postgres DDL missing %q:\n%s", want, pg)
		}
	}

	lite, err := c.CreateTableSQL(md, DialectSQLite)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(lite, `CREATE TABLE IF NOT EXISTS "customer_churn_features" (`) {
		t.Errorf("sqlite DDL should not be schema qualified:\n%s", lite)
	}

	sf, err := c.CreateTableSQL(model.RawTableMetadata("PUBLIC"), DialectSnowflake)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sf, `"TOTALCHARGES" NUMBER(10,2) NULL`) {
		t.Errorf("snowflake DDL:\n%s", sf)
	}
}

func TestNamedInsertSQL(t *testing.T) {
	md := &model.TableMetadata{
		Table:   "Scores",
		Columns: []model.Column{{Name: "run_id"}, {Name: "Score"}},
	}
	got := NamedInsertSQL(md, DialectSQLite)
	want := `INSERT INTO "scores" ("run_id", "score") VALUES (:run_id, :score)`
	if got != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

func TestDialectForDriver(t *testing.T) {
	for driver, want := range map[string]Dialect{"pgx": DialectPostgres, "sqlite": DialectSQLite, "snowflake": DialectSnowflake} {
		got, err := DialectForDriver(driver)
		if err != nil || got != want {
			t.Errorf("DialectForDriver(%s) = %s, %v", driver, got, err)
		}
	}
	if _, err := DialectForDriver("mysql"); err == nil {
		t.Error("expected error for mysql")
	}
}

func TestParseSnowType(t *testing.T) {
	tests := []struct {
		in               string
		base             string
		sized            bool
		precision, scale int
	}{
		{"number(10, 2)", "NUMBER", true, 10, 2},
		{"VARCHAR(32)", "VARCHAR", true, 32, 0},
		{" TIMESTAMP_TZ ", "TIMESTAMP_TZ", false, 0, 0},
		{"NUMBER", "NUMBER", false, 0, 0},
	}
	for _, tt := range tests {
		got := parseSnowType(tt.in)
		if got.base != tt.base || got.sized != tt.sized || got.precision != tt.precision || got.scale != tt.scale {
			t.Errorf("parseSnowType(%q) = %+v", tt.in, got)
		}
	}

	widen := NewTypeConverterWithConfig(nil, TypeConverterConfig{MaxVarcharLength: 10})
	if got, _ := widen.MapType("NUMBER(10,2)", DialectPostgres); got != "DOUBLE PRECISION" {
		t.Errorf("expected DOUBLE PRECISION without precision preservation, got %s", got)
	}
	if got, _ := widen.MapType("VARCHAR(11)", DialectPostgres); got != "TEXT" {
		t.Errorf("expected TEXT above the varchar limit, got %s", got)
	}
}
