// Package evaluate aggregates predictions into a distribution, a confusion
// matrix, confidence scores and summary metrics.
package evaluate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// PredictionDistribution counts predictions per predicted class
func PredictionDistribution(preds []model.Prediction) map[string]int {
	dist := make(map[string]int)
	for _, p := range preds {
		dist[p.Predicted]++
	}
	return dist
}

// ConfusionMatrix cross-tabulates actual against predicted labels
func ConfusionMatrix(preds []model.Prediction) []model.Cell {
	acc := NewAccumulator()
	for _, p := range preds {
		acc.cells[cellKey{p.Actual, p.Predicted}]++
	}
	return acc.Cells()
}

// ConfidenceScore returns the probability of the predicted class
func ConfidenceScore(p model.Prediction) (float64, error) {
	score, ok := p.Probabilities[p.Predicted]
	if !ok {
		return 0, &model.MissingProbabilityError{ID: p.CustomerID, Class: p.Predicted}
	}
	return score, nil
}

// Evaluate builds the report for a batch. failures are the records whose
// prediction call failed; they appear only in the error list.
func Evaluate(preds []model.Prediction, failures []*model.PredictionError) *Report {
	acc := NewAccumulator()
	for _, p := range preds {
		acc.Add(p)
	}
	for _, f := range failures {
		acc.AddFailure(f)
	}
	return acc.Report()
}

// EvaluateParallel partitions preds across workers and merges the partial
// accumulators. The report equals Evaluate's for the same input.
func EvaluateParallel(ctx context.Context, preds []model.Prediction, failures []*model.PredictionError, workers int) (*Report, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(preds) {
		workers = len(preds)
	}
	if workers <= 1 {
		return Evaluate(preds, failures), nil
	}

	partials := make([]*Accumulator, workers)
	chunk := (len(preds) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		start, end := w*chunk, (w+1)*chunk
		if end > len(preds) {
			end = len(preds)
		}
		g.Go(func() error {
			acc := NewAccumulator()
			for i := start; i < end; i++ {
				if i%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				acc.Add(preds[i])
			}
			partials[w] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// partials in chunk order, then failures, as Evaluate orders its errors
	total := NewAccumulator()
	for _, p := range partials {
		total.Merge(p)
	}
	for _, f := range failures {
		total.AddFailure(f)
	}
	return total.Report(), nil
}
