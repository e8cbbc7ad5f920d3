// pkg/connector/snowflake.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/David-Botos/churn-ml/pkg/config"
	"github.com/David-Botos/churn-ml/pkg/converter"
	"github.com/David-Botos/churn-ml/pkg/model"
)

// SnowflakeConnector is the warehouse connection: raw table bootstrap and
// load, and the session used by the Snowflake source and classifier
type SnowflakeConnector struct {
	db        *sql.DB
	logger    *zap.Logger
	cfg       *config.SnowflakeConfig
	converter *converter.TypeConverter
}

// LoadStats summarizes one COPY INTO
type LoadStats struct {
	Files      int
	RowsParsed int64
	RowsLoaded int64
	ErrorsSeen int64
	FirstError string
}

// Rejected returns the number of rows skipped under ON_ERROR = CONTINUE
func (s LoadStats) Rejected() int64 {
	return s.RowsParsed - s.RowsLoaded
}

// NewSnowflakeConnector opens a gosnowflake pool from cfg and applies the
// session statement timeout
func NewSnowflakeConnector(ctx context.Context, cfg *config.SnowflakeConfig, logger *zap.Logger) (*SnowflakeConnector, error) {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("snowflake").With(
		zap.String("account", cfg.Account),
		zap.String("database", cfg.Database),
		zap.String("warehouse", cfg.Warehouse))

	dsn, err := sf.DSN(cfg.DriverConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to build Snowflake DSN: %w", err)
	}

	db, err := openPool(ctx, "snowflake", dsn, cfg.Pool, 30*time.Second)
	if err != nil {
		return nil, err
	}

	if cfg.QueryTimeout > 0 {
		stmt := fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d", int(cfg.QueryTimeout.Seconds()))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	logger.Info("Connected to Snowflake", append(poolFields(db), zap.String("role", cfg.Role))...)
	return &SnowflakeConnector{
		db:        db,
		logger:    logger,
		cfg:       cfg,
		converter: converter.NewTypeConverter(logger),
	}, nil
}

// DB returns the underlying database connection
func (c *SnowflakeConnector) DB() *sql.DB {
	return c.db
}

// RawTable describes the raw customer table in the configured schema. The
// database comes from the session.
func (c *SnowflakeConnector) RawTable() *model.TableMetadata {
	md := model.RawTableMetadata(c.cfg.Schema)
	md.Table = c.cfg.RawTable
	return md
}

// Validate verifies the Snowflake session and that it points at the
// configured database
func (c *SnowflakeConnector) Validate(ctx context.Context) error {
	var role, database, warehouse sql.NullString
	err := c.db.QueryRowContext(ctx, "SELECT CURRENT_ROLE(), CURRENT_DATABASE(), CURRENT_WAREHOUSE()").Scan(
		&role, &database, &warehouse)
	if err != nil {
		return fmt.Errorf("failed to verify Snowflake access: %w", err)
	}

	c.logger.Info("Connected to Snowflake",
		zap.String("role", role.String),
		zap.String("database", database.String),
		zap.String("warehouse", warehouse.String))

	if !strings.EqualFold(database.String, c.cfg.Database) {
		return fmt.Errorf("connected to wrong database: %q (expected: %s)",
			database.String, c.cfg.Database)
	}

	return nil
}

// Bootstrap creates the warehouse, database, schema, stage and raw table
// when they do not exist and selects them for the session
func (c *SnowflakeConnector) Bootstrap(ctx context.Context) error {
	ddl, err := c.converter.CreateTableSQL(c.RawTable(), converter.DialectSnowflake)
	if err != nil {
		return fmt.Errorf("failed to render raw table DDL: %w", err)
	}

	for _, stmt := range BootstrapStatements(c.cfg, ddl) {
		c.logger.Debug("Executing bootstrap statement", zap.String("sql", stmt))
		if err := c.exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap statement failed (%s): %w", firstLine(stmt), err)
		}
	}

	c.logger.Info("Snowflake environment ready",
		zap.String("warehouse", c.cfg.Warehouse),
		zap.String("database", c.cfg.Database),
		zap.String("schema", c.cfg.Schema),
		zap.String("table", c.cfg.RawTable))
	return nil
}

// StageAndCopyCSV uploads a local CSV to the internal stage and copies it
// into the raw table. Bad rows are skipped, not fatal.
func (c *SnowflakeConnector) StageAndCopyCSV(ctx context.Context, path string) (LoadStats, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return LoadStats{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	start := time.Now()
	if _, err := c.db.ExecContext(ctx, PutSQL(abs, c.cfg.Stage)); err != nil {
		return LoadStats{}, fmt.Errorf("failed to stage %s: %w", abs, err)
	}
	c.logger.Info("Staged CSV",
		zap.String("file", abs),
		zap.String("stage", c.cfg.Stage),
		zap.Duration("duration", time.Since(start)))

	rows, err := c.db.QueryContext(ctx, CopyIntoSQL(c.RawTable().FullName(), c.cfg.Stage, filepath.Base(abs)))
	if err != nil {
		return LoadStats{}, fmt.Errorf("copy into %s failed: %w", c.cfg.RawTable, err)
	}
	defer rows.Close()

	stats, err := scanCopyResults(rows)
	if err != nil {
		return LoadStats{}, err
	}

	c.logger.Info("Loaded raw table",
		zap.String("table", c.RawTable().FullName()),
		zap.Int("files", stats.Files),
		zap.Int64("rowsParsed", stats.RowsParsed),
		zap.Int64("rowsLoaded", stats.RowsLoaded),
		zap.Int64("errorsSeen", stats.ErrorsSeen))
	if stats.FirstError != "" {
		c.logger.Warn("Rows rejected during load", zap.String("firstError", stats.FirstError))
	}

	return stats, nil
}

// Close closes the pool
func (c *SnowflakeConnector) Close() error {
	return closePool(c.logger, c.db)
}

// exec runs one statement bounded by the configured query timeout
func (c *SnowflakeConnector) exec(ctx context.Context, stmt string) error {
	if c.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.QueryTimeout)
		defer cancel()
	}
	_, err := c.db.ExecContext(ctx, stmt)
	return err
}

// BootstrapStatements lists the idempotent setup statements in order
func BootstrapStatements(cfg *config.SnowflakeConfig, rawTableDDL string) []string {
	return []string{
		fmt.Sprintf("CREATE WAREHOUSE IF NOT EXISTS %s WITH WAREHOUSE_SIZE = '%s' AUTO_SUSPEND = 60 AUTO_RESUME = TRUE INITIALLY_SUSPENDED = TRUE",
			cfg.Warehouse, strings.ToUpper(cfg.WarehouseSize)),
		fmt.Sprintf("USE WAREHOUSE %s", cfg.Warehouse),
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.Database),
		fmt.Sprintf("USE DATABASE %s", cfg.Database),
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", cfg.Schema),
		fmt.Sprintf("USE SCHEMA %s", cfg.Schema),
		fmt.Sprintf("CREATE STAGE IF NOT EXISTS %s", cfg.Stage),
		rawTableDDL,
	}
}

// PutSQL uploads a local file to an internal stage
func PutSQL(absPath, stage string) string {
	return fmt.Sprintf("PUT 'file://%s' @%s AUTO_COMPRESS = TRUE OVERWRITE = TRUE",
		filepath.ToSlash(absPath), stage)
}

// CopyIntoSQL loads one staged CSV, skipping rows that fail to parse
func CopyIntoSQL(table, stage, fileName string) string {
	return fmt.Sprintf(
		"COPY INTO %s FROM @%s FILES = ('%s.gz') "+
			"FILE_FORMAT = (TYPE = 'CSV' SKIP_HEADER = 1 FIELD_OPTIONALLY_ENCLOSED_BY = '\"' "+
			"EMPTY_FIELD_AS_NULL = TRUE NULL_IF = ('', ' ')) ON_ERROR = CONTINUE",
		table, stage, fileName)
}

// scanCopyResults reads the per-file result set of COPY INTO. Columns are
// matched by name since their number varies between Snowflake releases.
func scanCopyResults(rows *sql.Rows) (LoadStats, error) {
	cols, err := rows.Columns()
	if err != nil {
		return LoadStats{}, fmt.Errorf("failed to read copy result columns: %w", err)
	}

	var stats LoadStats
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		dest := make([]interface{}, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return LoadStats{}, fmt.Errorf("failed to scan copy result: %w", err)
		}
		stats.add(cols, values)
	}
	if err := rows.Err(); err != nil {
		return LoadStats{}, fmt.Errorf("error iterating copy results: %w", err)
	}
	return stats, nil
}

func (s *LoadStats) add(cols []string, values []sql.NullString) {
	s.Files++
	for i, col := range cols {
		v := values[i]
		if !v.Valid {
			continue
		}
		n, _ := strconv.ParseInt(v.String, 10, 64)
		switch strings.ToLower(col) {
		case "rows_parsed":
			s.RowsParsed += n
		case "rows_loaded":
			s.RowsLoaded += n
		case "errors_seen":
			s.ErrorsSeen += n
		case "first_error":
			if s.FirstError == "" {
				s.FirstError = v.String
			}
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
