package scoring

import (
	"time"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// PredictJob is one test record queued for the classifier
type PredictJob struct {
	Index      int // position in the dataset
	Record     model.FeatureRecord
	RetryCount int
}

// Retry increments the retry count and returns the modified job
func (j PredictJob) Retry() PredictJob {
	j.RetryCount++
	return j
}

// PredictResult is the outcome of one PredictJob
type PredictResult struct {
	Index      int
	CustomerID string
	WorkerID   int
	Prediction model.Prediction
	Err        *model.PredictionError
	StartTime  time.Time
	Duration   time.Duration
	Attempts   int
}

// Success reports whether the classifier returned a prediction
func (r PredictResult) Success() bool {
	return r.Err == nil
}

// Batch is the scored test set. Predictions and Failures are each in
// dataset order; together they cover every record exactly once.
type Batch struct {
	Predictions []model.Prediction
	Failures    []*model.PredictionError
	Metrics     *RunMetrics
}

// Errors returns the failures as uniform error records
func (b *Batch) Errors() []model.ErrorRecord {
	records := make([]model.ErrorRecord, 0, len(b.Failures))
	for _, f := range b.Failures {
		records = append(records, model.NewErrorRecord(f))
	}
	return records
}

// Total returns the number of records the batch accounts for
func (b *Batch) Total() int {
	return len(b.Predictions) + len(b.Failures)
}
