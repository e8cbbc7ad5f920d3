// pkg/connector/connector.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/churn-ml/pkg/config"
)

// Connector is an open, pooled connection to the warehouse or the result sink
type Connector interface {
	DB() *sql.DB
	// Validate checks the session can do what the pipeline needs from it
	Validate(ctx context.Context) error
	Close() error
}

// openPool opens a pool for driver, applies the configured limits and waits
// for the first successful ping
func openPool(ctx context.Context, driver, dsn string, pool config.PoolConfig, pingTimeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s (timeout %v): %w", driver, pingTimeout, err)
	}
	return db, nil
}

// poolFields renders sql.DBStats as log fields
func poolFields(db *sql.DB) []zap.Field {
	st := db.Stats()
	return []zap.Field{
		zap.Int("open", st.OpenConnections),
		zap.Int("in_use", st.InUse),
		zap.Int("idle", st.Idle),
		zap.Int("max_open", st.MaxOpenConnections),
		zap.Int64("wait_count", st.WaitCount),
		zap.Duration("wait", st.WaitDuration),
	}
}

// closePool logs the final pool counters before closing
func closePool(logger *zap.Logger, db *sql.DB) error {
	logger.Debug("Closing connection pool", poolFields(db)...)
	return db.Close()
}
