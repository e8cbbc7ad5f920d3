package evaluate

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// Report wraps the evaluation report with its renderings
type Report struct {
	model.EvaluationReport
}

// JSON serializes the report
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r.EvaluationReport, "", "  ")
}

// WriteTable writes the distribution, the confusion matrix (rows actual,
// columns predicted) and the summary metrics as aligned text.
func (r *Report) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "PREDICTED\tCOUNT")
	classes := make([]string, 0, len(r.Distribution))
	for c := range r.Distribution {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	for _, c := range classes {
		fmt.Fprintf(tw, "%s\t%d\n", c, r.Distribution[c])
	}
	fmt.Fprintln(tw)

	labels := r.Classes()
	fmt.Fprint(tw, "ACTUAL \\ PREDICTED")
	for _, p := range labels {
		fmt.Fprintf(tw, "\t%s", p)
	}
	fmt.Fprintln(tw)
	for _, a := range labels {
		fmt.Fprint(tw, a)
		for _, p := range labels {
			fmt.Fprintf(tw, "\t%d", r.CellCount(a, p))
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "evaluated\t%d\n", r.Evaluated)
	fmt.Fprintf(tw, "prediction failures\t%d\n", r.PredictionFailures)
	fmt.Fprintf(tw, "missing probability\t%d\n", r.MissingProbability)
	fmt.Fprintf(tw, "accuracy\t%.4f\n", r.Metrics.Accuracy)
	fmt.Fprintf(tw, "precision\t%.4f\n", r.Metrics.Precision)
	fmt.Fprintf(tw, "recall\t%.4f\n", r.Metrics.Recall)
	fmt.Fprintf(tw, "f1\t%.4f\n", r.Metrics.F1)

	return tw.Flush()
}
