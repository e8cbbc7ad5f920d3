// pkg/connector/factory.go
package connector

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/David-Botos/churn-ml/pkg/config"
)

// Factory opens the connections a run needs from the loaded configuration
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a factory for cfg
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{cfg: cfg, logger: logger}
}

// Snowflake connects to the warehouse
func (f *Factory) Snowflake(ctx context.Context) (*SnowflakeConnector, error) {
	if f.cfg.Snowflake == nil {
		return nil, errors.New("snowflake is not configured")
	}
	if err := f.cfg.Snowflake.Validate(); err != nil {
		return nil, err
	}
	return NewSnowflakeConnector(ctx, f.cfg.Snowflake, f.logger)
}

// Postgres connects to the result sink described by the postgres section
func (f *Factory) Postgres(ctx context.Context) (*PostgresConnector, error) {
	if f.cfg.Postgres == nil {
		return nil, errors.New("postgres is not configured")
	}
	return NewPostgresConnector(ctx, f.cfg.Postgres, f.logger)
}

// OpenValidated opens a connector with open and validates it, closing it
// again when validation fails
func OpenValidated[C Connector](ctx context.Context, open func(context.Context) (C, error)) (C, error) {
	conn, err := open(ctx)
	if err != nil {
		var zero C
		return zero, err
	}
	if err := conn.Validate(ctx); err != nil {
		conn.Close()
		var zero C
		return zero, err
	}
	return conn, nil
}
