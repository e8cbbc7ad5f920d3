package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/churn-ml/pkg/classifier"
	"github.com/David-Botos/churn-ml/pkg/model"
)

// Retry waits start at the backoff and double per attempt up to maxRetryBackoff
const (
	defaultRetryBackoff = 200 * time.Millisecond
	maxRetryBackoff     = 5 * time.Second
)

// Worker issues classifier calls for jobs taken from a shared channel
type Worker struct {
	ID         int
	clf        classifier.Classifier
	handle     classifier.ModelHandle
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewWorker creates a new worker
func NewWorker(id int, clf classifier.Classifier, handle classifier.ModelHandle, timeout time.Duration, logger *zap.Logger) *Worker {
	return &Worker{
		ID:      id,
		clf:     clf,
		handle:  handle,
		timeout: timeout,
		backoff: defaultRetryBackoff,
		logger:  logger.With(zap.Int("workerID", id)),
	}
}

// WithMaxRetries sets how often a retryable failure is re-attempted
func (w *Worker) WithMaxRetries(maxRetries int) *Worker {
	w.maxRetries = maxRetries
	return w
}

// WithRetryBackoff sets the wait before the first retry; zero retries at once
func (w *Worker) WithRetryBackoff(d time.Duration) *Worker {
	if d >= 0 {
		w.backoff = d
	}
	return w
}

// retryDelay is the wait before retry number n (0-based)
func (w *Worker) retryDelay(n int) time.Duration {
	if w.backoff <= 0 {
		return 0
	}
	d := w.backoff
	for i := 0; i < n && d < maxRetryBackoff; i++ {
		d *= 2
	}
	return min(d, maxRetryBackoff)
}

// waitRetry sleeps for d unless ctx ends first
func waitRetry(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Start drains jobs until the channel is closed. Every received job yields
// exactly one result; once ctx is cancelled the remaining jobs are answered
// without calling the classifier. results must have room for every job.
func (w *Worker) Start(ctx context.Context, jobs <-chan PredictJob, results chan<- PredictResult) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- cancelledResult(job, w.ID, err)
			continue
		}
		results <- w.ProcessJob(ctx, job)
	}
}

// ProcessJob runs one prediction, retrying retryable failures
func (w *Worker) ProcessJob(ctx context.Context, job PredictJob) PredictResult {
	result := PredictResult{
		Index:      job.Index,
		CustomerID: job.Record.CustomerID,
		WorkerID:   w.ID,
		StartTime:  time.Now(),
	}

	for {
		result.Attempts++
		res, err := w.call(ctx, job.Record)
		if err == nil {
			result.Prediction = model.Prediction{
				CustomerID:    job.Record.CustomerID,
				Actual:        job.Record.Label(),
				Predicted:     res.Class,
				Probabilities: res.Probabilities,
			}
			break
		}

		var predErr *model.PredictionError
		if !errors.As(err, &predErr) {
			predErr = &model.PredictionError{ID: job.Record.CustomerID, Err: err}
		}
		if !predErr.TimedOut && ctx.Err() == nil && job.RetryCount < w.maxRetries && IsRetryableError(err) {
			delay := w.retryDelay(job.RetryCount)
			w.logger.Debug("Retrying prediction",
				zap.String("customerID", job.Record.CustomerID),
				zap.Int("retryCount", job.RetryCount+1),
				zap.Duration("backoff", delay),
				zap.Error(err))
			if waitRetry(ctx, delay) {
				job = job.Retry()
				continue
			}
		}

		result.Err = predErr
		w.logger.Warn("Prediction failed",
			zap.String("customerID", job.Record.CustomerID),
			zap.Bool("timedOut", predErr.TimedOut),
			zap.Error(predErr.Err))
		break
	}

	result.Duration = time.Since(result.StartTime)
	return result
}

// call runs Predict under the per-call timeout. The deadline is enforced
// here as well so an adapter that ignores its context cannot stall the pool.
func (w *Worker) call(ctx context.Context, rec model.FeatureRecord) (classifier.Result, error) {
	callCtx := ctx
	cancel := func() {}
	if w.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, w.timeout)
	}
	defer cancel()

	type outcome struct {
		res classifier.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := w.clf.Predict(callCtx, w.handle, rec)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return classifier.Result{}, &model.PredictionError{
				ID:       rec.CustomerID,
				TimedOut: timedOut(ctx, callCtx),
				Err:      out.err,
			}
		}
		return out.res, nil
	case <-callCtx.Done():
		return classifier.Result{}, &model.PredictionError{
			ID:       rec.CustomerID,
			TimedOut: timedOut(ctx, callCtx),
			Err:      callCtx.Err(),
		}
	}
}

// timedOut is true when the per-call deadline fired, not the caller's context
func timedOut(parent, call context.Context) bool {
	return parent.Err() == nil && errors.Is(call.Err(), context.DeadlineExceeded)
}

func cancelledResult(job PredictJob, workerID int, cause error) PredictResult {
	return PredictResult{
		Index:      job.Index,
		CustomerID: job.Record.CustomerID,
		WorkerID:   workerID,
		StartTime:  time.Now(),
		Err: &model.PredictionError{
			ID:  job.Record.CustomerID,
			Err: fmt.Errorf("not issued: %w", cause),
		},
	}
}
