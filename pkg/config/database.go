// pkg/config/database.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"
)

// SnowflakeConfig holds Snowflake connection parameters
type SnowflakeConfig struct {
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Account       string `yaml:"account"`
	Warehouse     string `yaml:"warehouse"`
	WarehouseSize string `yaml:"warehouse_size"`
	Database      string `yaml:"database"`
	Schema        string `yaml:"schema"`
	Role          string `yaml:"role"`
	Authenticator string `yaml:"authenticator"`
	Stage         string `yaml:"stage"`
	RawTable      string `yaml:"raw_table"`

	Pool PoolConfig `yaml:",inline"`

	// Query timeout
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// PoolConfig bounds a database/sql connection pool; zero values keep the
// driver defaults
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// PostgresConfig holds PostgreSQL connection parameters
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`

	Pool PoolConfig `yaml:",inline"`

	// Statement timeout
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// applyEnv layers SNOWFLAKE_* variables over file values and fills defaults
func (c *SnowflakeConfig) applyEnv() error {
	overrideString(&c.User, "SNOWFLAKE_USER")
	overrideString(&c.Password, "SNOWFLAKE_PASSWORD")
	overrideString(&c.Account, "SNOWFLAKE_ACCOUNT")
	overrideString(&c.Warehouse, "SNOWFLAKE_WAREHOUSE")
	overrideString(&c.WarehouseSize, "SNOWFLAKE_WAREHOUSE_SIZE")
	overrideString(&c.Database, "SNOWFLAKE_DATABASE")
	overrideString(&c.Schema, "SNOWFLAKE_SCHEMA")
	overrideString(&c.Role, "SNOWFLAKE_ROLE")
	overrideString(&c.Authenticator, "SNOWFLAKE_AUTHENTICATOR")
	overrideString(&c.Stage, "SNOWFLAKE_STAGE")
	overrideString(&c.RawTable, "SNOWFLAKE_RAW_TABLE")

	c.Warehouse = defaultString(c.Warehouse, "CHURN_WH")
	c.WarehouseSize = defaultString(c.WarehouseSize, "XSMALL")
	c.Database = defaultString(c.Database, "CHURN_DB")
	c.Schema = defaultString(c.Schema, "PUBLIC")
	c.Authenticator = defaultString(c.Authenticator, "snowflake")
	c.Stage = defaultString(c.Stage, "CHURN_STAGE")
	c.RawTable = defaultString(c.RawTable, "CUSTOMER_CHURN_RAW")

	c.Pool.MaxOpenConns = getEnvAsInt("SNOWFLAKE_MAX_OPEN_CONNS", defaultInt(c.Pool.MaxOpenConns, 10))
	c.Pool.MaxIdleConns = getEnvAsInt("SNOWFLAKE_MAX_IDLE_CONNS", defaultInt(c.Pool.MaxIdleConns, 5))
	c.Pool.ConnMaxLifetime = defaultDuration(c.Pool.ConnMaxLifetime, 10*time.Minute)
	c.Pool.ConnMaxIdleTime = defaultDuration(c.Pool.ConnMaxIdleTime, 5*time.Minute)
	c.QueryTimeout = defaultDuration(c.QueryTimeout, 5*time.Minute)

	return errors.Join(
		overrideDuration(&c.Pool.ConnMaxLifetime, "SNOWFLAKE_CONN_MAX_LIFETIME_SECONDS"),
		overrideDuration(&c.Pool.ConnMaxIdleTime, "SNOWFLAKE_CONN_MAX_IDLE_TIME_SECONDS"),
		overrideDuration(&c.QueryTimeout, "SNOWFLAKE_QUERY_TIMEOUT_SECONDS"),
	)
}

// Validate checks the credentials needed to open a session
func (c *SnowflakeConfig) Validate() error {
	var missing []string
	if c.Account == "" {
		missing = append(missing, "SNOWFLAKE_ACCOUNT")
	}
	if c.User == "" {
		missing = append(missing, "SNOWFLAKE_USER")
	}
	if c.Password == "" && c.AuthType() == gosnowflake.AuthTypeSnowflake {
		missing = append(missing, "SNOWFLAKE_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("snowflake configuration incomplete: %s required", strings.Join(missing, ", "))
	}
	return nil
}

// AuthType converts the configured authenticator to the driver type
func (c *SnowflakeConfig) AuthType() gosnowflake.AuthType {
	switch strings.ToLower(c.Authenticator) {
	case "oauth":
		return gosnowflake.AuthTypeOAuth
	case "externalbrowser":
		return gosnowflake.AuthTypeExternalBrowser
	case "username_password_mfa":
		return gosnowflake.AuthTypeUsernamePasswordMFA
	case "jwt":
		return gosnowflake.AuthTypeJwt
	case "token":
		return gosnowflake.AuthTypeTokenAccessor
	case "okta":
		return gosnowflake.AuthTypeOkta
	default:
		return gosnowflake.AuthTypeSnowflake
	}
}

// DriverConfig returns the gosnowflake config used to build the DSN
func (c *SnowflakeConfig) DriverConfig() *gosnowflake.Config {
	return &gosnowflake.Config{
		Account:       c.Account,
		User:          c.User,
		Password:      c.Password,
		Database:      c.Database,
		Schema:        c.Schema,
		Warehouse:     c.Warehouse,
		Role:          c.Role,
		Authenticator: c.AuthType(),
	}
}

// applyEnv layers POSTGRES_* variables over file values and fills defaults
func (c *PostgresConfig) applyEnv() error {
	overrideString(&c.Host, "POSTGRES_HOST")
	overrideString(&c.User, "POSTGRES_USER")
	overrideString(&c.Password, "POSTGRES_PASSWORD")
	overrideString(&c.Database, "POSTGRES_DB")
	overrideString(&c.SSLMode, "POSTGRES_SSLMODE")

	c.Host = defaultString(c.Host, "localhost")
	c.SSLMode = defaultString(c.SSLMode, "disable")
	c.Port = getEnvAsInt("POSTGRES_PORT", defaultInt(c.Port, 5432))
	c.Pool.MaxOpenConns = getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", defaultInt(c.Pool.MaxOpenConns, 25))
	c.Pool.MaxIdleConns = getEnvAsInt("POSTGRES_MAX_IDLE_CONNS", defaultInt(c.Pool.MaxIdleConns, 10))
	c.Pool.ConnMaxLifetime = defaultDuration(c.Pool.ConnMaxLifetime, 30*time.Minute)
	c.Pool.ConnMaxIdleTime = defaultDuration(c.Pool.ConnMaxIdleTime, 10*time.Minute)
	c.StatementTimeout = defaultDuration(c.StatementTimeout, 5*time.Minute)

	return errors.Join(
		overrideDuration(&c.Pool.ConnMaxLifetime, "POSTGRES_CONN_MAX_LIFETIME_SECONDS"),
		overrideDuration(&c.Pool.ConnMaxIdleTime, "POSTGRES_CONN_MAX_IDLE_TIME_SECONDS"),
		overrideDuration(&c.StatementTimeout, "POSTGRES_STATEMENT_TIMEOUT_SECONDS"),
	)
}

// ConnectionString returns a formatted PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func defaultDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}
