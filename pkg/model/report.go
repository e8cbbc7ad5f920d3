// pkg/model/report.go
package model

import "sort"

// Cell is one confusion matrix entry
type Cell struct {
	Actual    string `json:"actual"`
	Predicted string `json:"predicted"`
	Count     int    `json:"count"`
}

// Confidence is the probability a classifier assigned to its own prediction
type Confidence struct {
	CustomerID string  `json:"customer_id"`
	Class      string  `json:"class"`
	Score      float64 `json:"score"`
}

// Metrics summarizes binary classification quality for the positive class
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// EvaluationReport is the terminal artifact of a run
type EvaluationReport struct {
	Distribution       map[string]int `json:"prediction_distribution"`
	ConfusionMatrix    []Cell         `json:"confusion_matrix"`
	Confidences        []Confidence   `json:"confidences"`
	Metrics            Metrics        `json:"metrics"`
	Evaluated          int            `json:"evaluated"`
	PredictionFailures int            `json:"prediction_failures"`
	MissingProbability int            `json:"missing_probability"`
	Errors             []ErrorRecord  `json:"-"`
}

// CellCount returns the count for one (actual, predicted) pair
func (r *EvaluationReport) CellCount(actual, predicted string) int {
	for _, c := range r.ConfusionMatrix {
		if c.Actual == actual && c.Predicted == predicted {
			return c.Count
		}
	}
	return 0
}

// Classes returns the sorted union of actual and predicted labels
func (r *EvaluationReport) Classes() []string {
	seen := make(map[string]bool)
	var classes []string
	for _, c := range r.ConfusionMatrix {
		for _, label := range []string{c.Actual, c.Predicted} {
			if !seen[label] {
				seen[label] = true
				classes = append(classes, label)
			}
		}
	}
	sort.Strings(classes)
	return classes
}
