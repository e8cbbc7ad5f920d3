package evaluate

import (
	"sort"

	"github.com/David-Botos/churn-ml/pkg/model"
)

type cellKey struct {
	actual    string
	predicted string
}

// Accumulator holds partial counts for a slice of predictions. Partials
// from separate workers are combined with Merge in any order.
type Accumulator struct {
	distribution map[string]int
	cells        map[cellKey]int
	confidences  []model.Confidence
	errors       []model.ErrorRecord
	evaluated    int
	missingProb  int
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{
		distribution: make(map[string]int),
		cells:        make(map[cellKey]int),
	}
}

// Add counts one successful prediction. A prediction without a probability
// for its class still counts toward the distribution and the matrix.
func (a *Accumulator) Add(p model.Prediction) {
	a.evaluated++
	a.distribution[p.Predicted]++
	a.cells[cellKey{p.Actual, p.Predicted}]++

	score, err := ConfidenceScore(p)
	if err != nil {
		a.missingProb++
		a.errors = append(a.errors, model.NewErrorRecord(err))
		return
	}
	a.confidences = append(a.confidences, model.Confidence{
		CustomerID: p.CustomerID,
		Class:      p.Predicted,
		Score:      score,
	})
}

// AddFailure records a prediction that never produced a class
func (a *Accumulator) AddFailure(err error) {
	a.errors = append(a.errors, model.NewErrorRecord(err))
}

// Merge folds other into a
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil {
		return
	}
	for class, n := range other.distribution {
		a.distribution[class] += n
	}
	for k, n := range other.cells {
		a.cells[k] += n
	}
	a.confidences = append(a.confidences, other.confidences...)
	a.errors = append(a.errors, other.errors...)
	a.evaluated += other.evaluated
	a.missingProb += other.missingProb
}

// Distribution returns predicted class counts
func (a *Accumulator) Distribution() map[string]int {
	out := make(map[string]int, len(a.distribution))
	for k, v := range a.distribution {
		out[k] = v
	}
	return out
}

// Cells returns the confusion matrix ordered by (actual, predicted)
func (a *Accumulator) Cells() []model.Cell {
	cells := make([]model.Cell, 0, len(a.cells))
	for k, n := range a.cells {
		cells = append(cells, model.Cell{Actual: k.actual, Predicted: k.predicted, Count: n})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Actual != cells[j].Actual {
			return cells[i].Actual < cells[j].Actual
		}
		return cells[i].Predicted < cells[j].Predicted
	})
	return cells
}

// Report builds the evaluation report from the accumulated counts
func (a *Accumulator) Report() *Report {
	cells := a.Cells()

	confidences := make([]model.Confidence, len(a.confidences))
	copy(confidences, a.confidences)
	sort.Slice(confidences, func(i, j int) bool {
		return confidences[i].CustomerID < confidences[j].CustomerID
	})

	errs := make([]model.ErrorRecord, len(a.errors))
	copy(errs, a.errors)

	failures := 0
	for _, e := range errs {
		if e.Kind == model.ErrorKindPrediction {
			failures++
		}
	}

	return &Report{EvaluationReport: model.EvaluationReport{
		Distribution:       a.Distribution(),
		ConfusionMatrix:    cells,
		Confidences:        confidences,
		Metrics:            ComputeMetrics(cells, model.LabelYes),
		Evaluated:          a.evaluated,
		PredictionFailures: failures,
		MissingProbability: a.missingProb,
		Errors:             errs,
	}}
}
