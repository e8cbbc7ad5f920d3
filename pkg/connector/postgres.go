// pkg/connector/postgres.go
package connector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"go.uber.org/zap"

	"github.com/David-Botos/churn-ml/pkg/config"
)

// PostgresConnector is the result sink connection used when the store
// driver is pgx and no DSN is given
type PostgresConnector struct {
	db     *sql.DB
	cfg    *config.PostgresConfig
	logger *zap.Logger
}

// NewPostgresConnector opens a pgx pool from cfg
func NewPostgresConnector(ctx context.Context, cfg *config.PostgresConfig, logger *zap.Logger) (*PostgresConnector, error) {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("postgres").With(
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	db, err := openPool(ctx, "pgx", cfg.ConnectionString(), cfg.Pool, 5*time.Second)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to PostgreSQL", poolFields(db)...)

	return &PostgresConnector{db: db, cfg: cfg, logger: logger}, nil
}

// DB returns the pool
func (c *PostgresConnector) DB() *sql.DB {
	return c.db
}

// Validate checks that the session may create the result tables in its
// current schema and bounds statements with the configured timeout
func (c *PostgresConnector) Validate(ctx context.Context) error {
	var schema sql.NullString
	var canCreate bool
	err := c.db.QueryRowContext(ctx,
		"SELECT current_schema(), has_schema_privilege(current_schema(), 'CREATE')").Scan(&schema, &canCreate)
	if err != nil {
		return fmt.Errorf("postgres session check: %w", err)
	}
	if !schema.Valid {
		return errors.New("postgres session has no current schema")
	}
	if !canCreate {
		return fmt.Errorf("postgres user %s cannot create tables in schema %s", c.cfg.User, schema.String)
	}

	if c.cfg.StatementTimeout > 0 {
		stmt := fmt.Sprintf("SET statement_timeout = %d", c.cfg.StatementTimeout.Milliseconds())
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			c.logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	c.logger.Info("PostgreSQL result sink ready", zap.String("schema", schema.String))
	return nil
}

// Close closes the pool
func (c *PostgresConnector) Close() error {
	return closePool(c.logger, c.db)
}
