// Package classifier defines the Model Adapter boundary: any classifier
// that can be trained on a Dataset and queried one record at a time.
package classifier

import (
	"context"
	"fmt"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// ModelHandle identifies a trained model
type ModelHandle interface {
	Name() string
}

// Result is one prediction: a class and the probability of every class
type Result struct {
	Class         string
	Probabilities map[string]float64
}

// Classifier is implemented by every concrete model backend. Predict must be
// safe for concurrent use with the same handle.
type Classifier interface {
	Train(ctx context.Context, ds *model.Dataset) (ModelHandle, error)
	Predict(ctx context.Context, handle ModelHandle, rec model.FeatureRecord) (Result, error)
}

// Kinds accepted by New
const (
	KindLogistic  = "logistic"
	KindSnowflake = "snowflake"
)

func wrongHandle(want string, got ModelHandle) error {
	if got == nil {
		return fmt.Errorf("expected %s model handle, got nil", want)
	}
	return fmt.Errorf("expected %s model handle, got %T (%s)", want, got, got.Name())
}
