package classifier

import (
	"context"
	"fmt"
	"testing"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// separable builds records where churn follows short tenure and high charges
func separable(t *testing.T, n int) *model.Dataset {
	t.Helper()
	records := make([]model.FeatureRecord, n)
	for i := range records {
		churn := i % 2
		tenure := 60 - i%10
		charges := 20.0 + float64(i%7)
		if churn == 1 {
			tenure = 1 + i%10
			charges = 90.0 + float64(i%7)
		}
		records[i] = model.FeatureRecord{
			CustomerID:     fmt.Sprintf("C%04d", i),
			Tenure:         tenure,
			MonthlyCharges: charges,
			TotalCharges:   charges * float64(tenure),
			GenderMale:     i % 3 % 2,
			ChurnLabel:     churn,
		}
	}
	ds, err := model.NewDataset("train", records)
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	return ds
}

func TestLogisticLearnsSeparableData(t *testing.T) {
	ds := separable(t, 400)
	clf := NewLogistic(LogisticConfig{Epochs: 50}, nil)

	handle, err := clf.Train(context.Background(), ds)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	correct := 0
	for _, rec := range ds.Records() {
		res, err := clf.Predict(context.Background(), handle, rec)
		if err != nil {
			t.Fatalf("Predict(%s): %v", rec.CustomerID, err)
		}
		if res.Class == rec.Label() {
			correct++
		}
		p := res.Probabilities[model.LabelYes] + res.Probabilities[model.LabelNo]
		if p < 0.999 || p > 1.001 {
			t.Fatalf("probabilities for %s sum to %f", rec.CustomerID, p)
		}
		if _, ok := res.Probabilities[res.Class]; !ok {
			t.Fatalf("predicted class %s has no probability", res.Class)
		}
	}

	if acc := float64(correct) / float64(ds.Len()); acc < 0.95 {
		t.Fatalf("accuracy = %.3f, want >= 0.95", acc)
	}
}

func TestLogisticDeterministicForSeed(t *testing.T) {
	ds := separable(t, 100)
	cfg := LogisticConfig{Epochs: 10, Seed: 7}

	a, err := NewLogistic(cfg, nil).Train(context.Background(), ds)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewLogistic(cfg, nil).Train(context.Background(), ds)
	if err != nil {
		t.Fatal(err)
	}

	ma, mb := a.(*LogisticModel), b.(*LogisticModel)
	for j := range ma.W {
		if ma.W[j] != mb.W[j] {
			t.Fatalf("weight %d differs: %f vs %f", j, ma.W[j], mb.W[j])
		}
	}
	if ma.B != mb.B {
		t.Fatalf("bias differs: %f vs %f", ma.B, mb.B)
	}
}

func TestLogisticRejectsEmptyDataset(t *testing.T) {
	ds, err := model.NewDataset("empty", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewLogistic(DefaultLogisticConfig(), nil).Train(context.Background(), ds); err == nil {
		t.Fatal("expected error for empty dataset")
	}
}

func TestLogisticWrongHandle(t *testing.T) {
	clf := NewLogistic(DefaultLogisticConfig(), nil)
	_, err := clf.Predict(context.Background(), &SnowflakeModel{Model: "M"}, model.FeatureRecord{CustomerID: "X"})
	if err == nil {
		t.Fatal("expected error for foreign handle")
	}
}

func TestLogisticTrainHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLogistic(DefaultLogisticConfig(), nil).Train(ctx, separable(t, 10)); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNewFactory(t *testing.T) {
	if _, err := New("logistic", Options{}); err != nil {
		t.Fatalf("logistic: %v", err)
	}
	if _, err := New("snowflake", Options{}); err == nil {
		t.Fatal("snowflake without a connection should fail")
	}
	if _, err := New("xgboost", Options{}); err == nil {
		t.Fatal("unknown kind should fail")
	}
}
