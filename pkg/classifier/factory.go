// pkg/classifier/factory.go
package classifier

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Options carries what either backend may need. DB, Schema and
// TrainTimeout are only consulted for the Snowflake backend.
type Options struct {
	Logistic     LogisticConfig
	DB           SQLExecutor
	Schema       string
	TrainTimeout time.Duration // 0 keeps the backend default
	Logger       *zap.Logger
}

// New creates a classifier of the given kind
func New(kind string, opts Options) (Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindLogistic, "":
		return NewLogistic(opts.Logistic, opts.Logger), nil
	case KindSnowflake:
		if opts.DB == nil {
			return nil, fmt.Errorf("snowflake classifier requires a database connection")
		}
		return NewSnowflake(opts.DB, opts.Schema, opts.Logger).WithTrainTimeout(opts.TrainTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported classifier: %s", kind)
	}
}
