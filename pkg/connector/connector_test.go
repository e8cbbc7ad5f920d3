package connector

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/David-Botos/churn-ml/pkg/config"
)

func TestBootstrapStatements(t *testing.T) {
	cfg := &config.SnowflakeConfig{
		Warehouse:     "CHURN_WH",
		WarehouseSize: "xsmall",
		Database:      "CHURN_DB",
		Schema:        "PUBLIC",
		Stage:         "CHURN_STAGE",
	}
	stmts := BootstrapStatements(cfg, "CREATE TABLE IF NOT EXISTS RAW (X INT)")

	want := []string{
		"CREATE WAREHOUSE IF NOT EXISTS CHURN_WH WITH WAREHOUSE_SIZE = 'XSMALL'",
		"USE WAREHOUSE CHURN_WH",
		"CREATE DATABASE IF NOT EXISTS CHURN_DB",
		"USE DATABASE CHURN_DB",
		"CREATE SCHEMA IF NOT EXISTS PUBLIC",
		"USE SCHEMA PUBLIC",
		"CREATE STAGE IF NOT EXISTS CHURN_STAGE",
		"CREATE TABLE IF NOT EXISTS RAW (X INT)",
	}
	if len(stmts) != len(want) {
		t.Fatalf("got %d statements, want %d", len(stmts), len(want))
	}
	for i := range want {
		if !strings.HasPrefix(stmts[i], want[i]) {
			t.Errorf("statement %d = %q, want prefix %q", i, stmts[i], want[i])
		}
	}
}

func TestPutAndCopySQL(t *testing.T) {
	put := PutSQL("/data/telco.csv", "CHURN_STAGE")
	if put != "PUT 'file:///data/telco.csv' @CHURN_STAGE AUTO_COMPRESS = TRUE OVERWRITE = TRUE" {
		t.Errorf("put = %q", put)
	}

	cp := CopyIntoSQL("PUBLIC.RAW", "CHURN_STAGE", "telco.csv")
	for _, want := range []string{
		"COPY INTO PUBLIC.RAW FROM @CHURN_STAGE",
		"FILES = ('telco.csv.gz')",
		"SKIP_HEADER = 1",
		"ON_ERROR = CONTINUE",
	} {
		if !strings.Contains(cp, want) {
			t.Errorf("copy statement missing %q: %s", want, cp)
		}
	}
}

func TestLoadStatsAdd(t *testing.T) {
	var s LoadStats
	cols := []string{"file", "status", "rows_parsed", "rows_loaded", "errors_seen", "first_error"}
	s.add(cols, nullStrings("a.csv.gz", "PARTIALLY_LOADED", "100", "97", "3", "Numeric value 'x' is not recognized"))
	s.add(cols, nullStrings("b.csv.gz", "LOADED", "10", "10", "0", ""))

	if s.Files != 2 || s.RowsParsed != 110 || s.RowsLoaded != 107 || s.ErrorsSeen != 3 {
		t.Fatalf("stats = %+v", s)
	}
	if s.Rejected() != 3 {
		t.Errorf("rejected = %d", s.Rejected())
	}
	if !strings.HasPrefix(s.FirstError, "Numeric value") {
		t.Errorf("first error = %q", s.FirstError)
	}
}

func nullStrings(values ...string) []sql.NullString {
	out := make([]sql.NullString, len(values))
	for i, v := range values {
		out[i] = sql.NullString{String: v, Valid: v != ""}
	}
	return out
}

func TestOpenPoolAppliesLimits(t *testing.T) {
	pool := config.PoolConfig{MaxOpenConns: 3, MaxIdleConns: 1, ConnMaxLifetime: time.Minute}
	db, err := openPool(context.Background(), "sqlite", filepath.Join(t.TempDir(), "pool.db"), pool, time.Second)
	if err != nil {
		t.Fatalf("openPool: %v", err)
	}
	defer db.Close()

	if got := db.Stats().MaxOpenConnections; got != 3 {
		t.Errorf("max open = %d, want 3", got)
	}
	if got := len(poolFields(db)); got != 6 {
		t.Errorf("expected 6 pool fields, got %d", got)
	}
}

func TestOpenPoolUnknownDriver(t *testing.T) {
	if _, err := openPool(context.Background(), "nope", "", config.PoolConfig{}, time.Second); err == nil {
		t.Fatal("expected error for unregistered driver")
	}
}

type fakeConn struct {
	validateErr error
	closed      bool
}

func (f *fakeConn) DB() *sql.DB { return nil }

func (f *fakeConn) Validate(ctx context.Context) error { return f.validateErr }

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestOpenValidated(t *testing.T) {
	ok := &fakeConn{}
	got, err := OpenValidated(context.Background(), func(context.Context) (*fakeConn, error) { return ok, nil })
	if err != nil || got != ok || ok.closed {
		t.Fatalf("unexpected result: %v %v closed=%v", got, err, ok.closed)
	}

	bad := &fakeConn{validateErr: errors.New("no privilege")}
	got, err = OpenValidated(context.Background(), func(context.Context) (*fakeConn, error) { return bad, nil })
	if err == nil || got != nil {
		t.Fatalf("expected validation error, got %v %v", got, err)
	}
	if !bad.closed {
		t.Fatal("connector should be closed after failed validation")
	}

	openErr := errors.New("refused")
	if _, err := OpenValidated(context.Background(), func(context.Context) (*fakeConn, error) { return nil, openErr }); !errors.Is(err, openErr) {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestFactoryRequiresSections(t *testing.T) {
	f := NewFactory(&config.Config{}, nil)
	if _, err := f.Snowflake(context.Background()); err == nil {
		t.Error("expected error without snowflake section")
	}
	if _, err := f.Postgres(context.Background()); err == nil {
		t.Error("expected error without postgres section")
	}
}
