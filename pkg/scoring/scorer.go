// Package scoring drives the classifier over a test set with a bounded
// worker pool and a per-call timeout.
package scoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/churn-ml/pkg/classifier"
	"github.com/David-Botos/churn-ml/pkg/model"
)

// DefaultTimeout bounds a single classifier call
const DefaultTimeout = 30 * time.Second

// Scorer runs batch prediction
type Scorer struct {
	clf         classifier.Classifier
	workerCount int
	timeout     time.Duration
	maxRetries  int
	backoff     time.Duration
	logger      *zap.Logger
}

// NewScorer creates a scorer for clf
func NewScorer(clf classifier.Classifier, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		clf:         clf,
		workerCount: DefaultWorkerCount(),
		timeout:     DefaultTimeout,
		backoff:     defaultRetryBackoff,
		logger:      logger.Named("scoring"),
	}
}

// WithWorkerCount sets the number of concurrent classifier calls
func (s *Scorer) WithWorkerCount(count int) *Scorer {
	if count > 0 {
		s.workerCount = count
	}
	return s
}

// WithTimeout sets the per-call timeout; zero disables it
func (s *Scorer) WithTimeout(d time.Duration) *Scorer {
	if d >= 0 {
		s.timeout = d
	}
	return s
}

// WithMaxRetries sets how often a retryable failure is re-attempted
func (s *Scorer) WithMaxRetries(n int) *Scorer {
	if n >= 0 {
		s.maxRetries = n
	}
	return s
}

// WithRetryBackoff sets the wait before the first retry; later retries
// double it
func (s *Scorer) WithRetryBackoff(d time.Duration) *Scorer {
	if d >= 0 {
		s.backoff = d
	}
	return s
}

// Score predicts every record of ds. Failures are per record and never
// abort the batch. Once ctx is cancelled no further calls are issued and
// the remaining records are returned as failures.
func (s *Scorer) Score(ctx context.Context, handle classifier.ModelHandle, ds *model.Dataset) *Batch {
	n := 0
	if ds != nil {
		n = ds.Len()
	}
	metrics := NewRunMetrics(n, s.logger)
	batch := &Batch{Metrics: metrics}
	if n == 0 {
		metrics.Complete()
		return batch
	}

	workers := s.workerCount
	if workers > n {
		workers = n
	}

	s.logger.Info("Starting scoring",
		zap.String("dataset", ds.Name()),
		zap.String("model", handle.Name()),
		zap.Int("records", n),
		zap.Int("workers", workers),
		zap.Duration("timeout", s.timeout))

	jobs := make(chan PredictJob)
	results := make(chan PredictResult, n)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		w := NewWorker(i, s.clf, handle, s.timeout, s.logger).WithMaxRetries(s.maxRetries).
			WithRetryBackoff(s.backoff)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start(ctx, jobs, results)
		}()
	}

	submitted := s.submit(ctx, ds, jobs)
	close(jobs)
	wg.Wait()
	close(results)

	slots := make([]*PredictResult, n)
	for r := range results {
		r := r
		slots[r.Index] = &r
		metrics.RecordResult(r)
	}

	for i, slot := range slots {
		if slot != nil {
			if slot.Success() {
				batch.Predictions = append(batch.Predictions, slot.Prediction)
			} else {
				batch.Failures = append(batch.Failures, slot.Err)
			}
			continue
		}
		rec := ds.At(i)
		batch.Failures = append(batch.Failures, &model.PredictionError{
			ID:  rec.CustomerID,
			Err: fmt.Errorf("not issued: %w", context.Cause(ctx)),
		})
		metrics.RecordCancelled()
	}

	if submitted < n {
		s.logger.Warn("Scoring cancelled before all records were issued",
			zap.Int("submitted", submitted),
			zap.Int("records", n))
	}

	metrics.Complete()
	return batch
}

// submit feeds jobs in dataset order until ctx is cancelled
func (s *Scorer) submit(ctx context.Context, ds *model.Dataset, jobs chan<- PredictJob) int {
	for i := 0; i < ds.Len(); i++ {
		if ctx.Err() != nil {
			return i
		}
		select {
		case jobs <- PredictJob{Index: i, Record: ds.At(i)}:
		case <-ctx.Done():
			return i
		}
	}
	return ds.Len()
}

// DefaultWorkerCount sizes the pool from the CPU count, between 2 and 12
func DefaultWorkerCount() int {
	n := runtime.NumCPU()
	if n < 2 {
		return 2
	}
	if n > 12 {
		return 12
	}
	return n
}
