package evaluate

import "github.com/David-Botos/churn-ml/pkg/model"

// ComputeMetrics derives accuracy and the positive class precision, recall
// and F1 from confusion matrix cells. Undefined ratios are reported as 0.
func ComputeMetrics(cells []model.Cell, positive string) model.Metrics {
	var total, correct, tp, fp, fn int
	for _, c := range cells {
		total += c.Count
		if c.Actual == c.Predicted {
			correct += c.Count
		}
		switch {
		case c.Actual == positive && c.Predicted == positive:
			tp += c.Count
		case c.Actual != positive && c.Predicted == positive:
			fp += c.Count
		case c.Actual == positive && c.Predicted != positive:
			fn += c.Count
		}
	}

	m := model.Metrics{
		Accuracy:  ratio(correct, total),
		Precision: ratio(tp, tp+fp),
		Recall:    ratio(tp, tp+fn),
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
