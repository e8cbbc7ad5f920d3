package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snowflakedb/gosnowflake"
)

// isolate points the loader at an empty working directory so a developer's
// .env or churn.yaml cannot leak into the test
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, key := range []string{"CHURN_CONFIG", "CHURN_SOURCE", "CHURN_MODEL", "CHURN_SEED", "SNOWFLAKE_ACCOUNT", "POSTGRES_DB", "STORE_DRIVER", "STORE_DSN"} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Pipeline.Source != SourceCSV || cfg.Pipeline.Model != ModelLogistic {
		t.Fatalf("unexpected source/model: %s/%s", cfg.Pipeline.Source, cfg.Pipeline.Model)
	}
	if cfg.Pipeline.SplitFraction != 0.8 {
		t.Fatalf("split fraction default = %f", cfg.Pipeline.SplitFraction)
	}
	if cfg.Pipeline.Seed != nil {
		t.Fatalf("seed should be unset by default")
	}
	if cfg.Snowflake != nil || cfg.Postgres != nil {
		t.Fatalf("database sections should be nil without configuration")
	}
	if cfg.StoreDSN() != "churn.db" {
		t.Fatalf("store DSN default = %q", cfg.StoreDSN())
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "pipeline.yaml")
	content := `
log_level: debug
pipeline:
  csv_path: /data/telco.csv
  split_fraction: 0.7
  seed: 42
  worker_pool_size: 3
  predict_timeout: 2s
  train_timeout: 45m
  logistic:
    epochs: 50
snowflake:
  account: yaml-account
  user: yaml-user
  password: yaml-pass
  database: YAML_DB
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CHURN_CONFIG", path)
	t.Setenv("CHURN_SPLIT_FRACTION", "0.75")
	t.Setenv("SNOWFLAKE_DATABASE", "ENV_DB")
	t.Setenv("PREDICT_TIMEOUT", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	p := cfg.Pipeline
	if p.CSVPath != "/data/telco.csv" {
		t.Errorf("csv path from yaml = %q", p.CSVPath)
	}
	if p.SplitFraction != 0.75 {
		t.Errorf("split fraction env override = %f", p.SplitFraction)
	}
	if p.Seed == nil || *p.Seed != 42 {
		t.Errorf("seed from yaml = %v", p.Seed)
	}
	if p.WorkerPoolSize != 3 {
		t.Errorf("worker pool size = %d", p.WorkerPoolSize)
	}
	if p.PredictTimeout != 5*time.Second {
		t.Errorf("predict timeout env override = %s", p.PredictTimeout)
	}
	if p.TrainTimeout != 45*time.Minute {
		t.Errorf("train timeout from yaml = %s", p.TrainTimeout)
	}
	if p.Logistic.Epochs != 50 || p.Logistic.LearningRate != 0.1 {
		t.Errorf("logistic = %+v", p.Logistic)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}

	sf := cfg.Snowflake
	if sf == nil {
		t.Fatal("snowflake section missing")
	}
	if sf.Database != "ENV_DB" || sf.Account != "yaml-account" {
		t.Errorf("snowflake = %+v", sf)
	}
	if sf.Schema != "PUBLIC" || sf.Warehouse != "CHURN_WH" {
		t.Errorf("snowflake defaults not filled: %+v", sf)
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CHURN_SEED=7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override variables that are already set
	if err := os.Unsetenv("CHURN_SEED"); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Pipeline.Seed == nil || *cfg.Pipeline.Seed != 7 {
		t.Fatalf("seed from .env = %v", cfg.Pipeline.Seed)
	}
}

func TestLoadConfigExplicitMissingFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("CHURN_CONFIG", filepath.Join(dir, "missing.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown source", func(c *Config) { c.Pipeline.Source = "parquet" }, true},
		{"unknown model", func(c *Config) { c.Pipeline.Model = "xgboost" }, true},
		{"snowflake model without section", func(c *Config) { c.Pipeline.Model = ModelSnowflake }, true},
		{"snowflake model missing password", func(c *Config) {
			c.Pipeline.Model = ModelSnowflake
			c.Snowflake = &SnowflakeConfig{Account: "a", User: "u"}
		}, true},
		{"snowflake model with jwt", func(c *Config) {
			c.Pipeline.Model = ModelSnowflake
			c.Snowflake = &SnowflakeConfig{Account: "a", User: "u", Authenticator: "jwt"}
		}, false},
		{"negative workers", func(c *Config) { c.Pipeline.WorkerPoolSize = -1 }, true},
		{"negative train timeout", func(c *Config) { c.Pipeline.TrainTimeout = -time.Second }, true},
		{"pgx store without dsn", func(c *Config) { c.Pipeline.StoreDriver = "pgx"; c.Pipeline.StoreDSN = "" }, true},
		{"pgx store from section", func(c *Config) {
			c.Pipeline.StoreDriver = "pgx"
			c.Pipeline.StoreDSN = ""
			c.Postgres = &PostgresConfig{Host: "db", Port: 5432, Database: "churn"}
		}, false},
		{"unknown store", func(c *Config) { c.Pipeline.StoreDriver = "mysql" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthType(t *testing.T) {
	c := &SnowflakeConfig{Authenticator: "externalbrowser"}
	if c.AuthType() != gosnowflake.AuthTypeExternalBrowser {
		t.Fatalf("unexpected auth type %v", c.AuthType())
	}
	c.Authenticator = ""
	if c.AuthType() != gosnowflake.AuthTypeSnowflake {
		t.Fatalf("empty authenticator should default to snowflake")
	}
}

func TestPostgresConnectionString(t *testing.T) {
	c := &PostgresConfig{Host: "h", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "require"}
	want := "host=h port=5433 user=u password=p dbname=d sslmode=require"
	if got := c.ConnectionString(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
