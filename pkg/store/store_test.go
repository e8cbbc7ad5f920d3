package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/David-Botos/churn-ml/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "churn.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func features(n int) []model.FeatureRecord {
	records := make([]model.FeatureRecord, n)
	for i := range records {
		records[i] = model.FeatureRecord{
			CustomerID:     fmt.Sprintf("C%04d", i),
			Tenure:         i,
			MonthlyCharges: 20 + float64(i),
			TotalCharges:   float64(i) * 20,
			ChurnLabel:     i % 2,
		}
	}
	return records
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x", nil); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := &Run{RunID: "run-1", Source: "csv", Model: "logistic", Seed: 42, SplitFraction: 0.8}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != StatusRunning || got.Seed != 42 || got.FinishedAt.Valid {
		t.Fatalf("unexpected run after create: %+v", got)
	}

	run.Status = StatusSucceeded
	run.RowsRead = 10
	run.Records = 9
	run.TrainSize = 7
	run.TestSize = 2
	run.ScoringMetrics = sql.NullString{String: `{"succeeded":2}`, Valid: true}
	if err := s.CompleteRun(ctx, run); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}

	got, err = s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != StatusSucceeded || got.Records != 9 || got.TestSize != 2 || !got.FinishedAt.Valid {
		t.Fatalf("unexpected run after complete: %+v", got)
	}
	if got.ScoringMetrics.String != `{"succeeded":2}` {
		t.Fatalf("scoring metrics = %+v", got.ScoringMetrics)
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.CompleteRun(ctx, &Run{RunID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound completing unknown run, got %v", err)
	}
}

func TestSaveArtifactsAndVerify(t *testing.T) {
	s := openTestStore(t)
	s.batchSize = 3
	ctx := context.Background()

	records := features(8)
	train, err := model.NewDataset("train", records[:6])
	if err != nil {
		t.Fatal(err)
	}
	test, err := model.NewDataset("test", records[6:])
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.SaveFeatures(ctx, "run-1", records)
	if err != nil || n != 8 {
		t.Fatalf("SaveFeatures: n=%d err=%v", n, err)
	}
	if n, err = s.SaveSplit(ctx, "run-1", train, test); err != nil || n != 8 {
		t.Fatalf("SaveSplit: n=%d err=%v", n, err)
	}

	preds := []model.Prediction{{
		CustomerID:    "C0006",
		Actual:        model.LabelNo,
		Predicted:     model.LabelNo,
		Probabilities: map[string]float64{model.LabelNo: 0.7, model.LabelYes: 0.3},
	}}
	failures := []*model.PredictionError{{ID: "C0007", TimedOut: true, Err: context.DeadlineExceeded}}
	if n, err = s.SavePredictions(ctx, "run-1", preds, failures); err != nil || n != 2 {
		t.Fatalf("SavePredictions: n=%d err=%v", n, err)
	}

	var confidence sql.NullFloat64
	if err := s.db.Get(&confidence, "SELECT confidence FROM churn_predictions WHERE customer_id = ?", "C0006"); err != nil {
		t.Fatalf("read confidence: %v", err)
	}
	if !confidence.Valid || confidence.Float64 != 0.7 {
		t.Fatalf("expected confidence 0.7, got %+v", confidence)
	}

	errs := []model.ErrorRecord{model.NewErrorRecord(failures[0])}
	if n, err = s.SaveErrors(ctx, "run-1", errs); err != nil || n != 1 {
		t.Fatalf("SaveErrors: n=%d err=%v", n, err)
	}

	want := RunCounts{Features: 8, Splits: 8, Predictions: 2, Errors: 1}
	if err := s.VerifyRun(ctx, "run-1", want); err != nil {
		t.Fatalf("VerifyRun: %v", err)
	}
	want.Features = 9
	if err := s.VerifyRun(ctx, "run-1", want); err == nil {
		t.Fatal("expected count mismatch")
	}
}

func TestSaveFeaturesRejectsDuplicateRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	records := features(2)
	if _, err := s.SaveFeatures(ctx, "run-1", records); err != nil {
		t.Fatalf("SaveFeatures: %v", err)
	}
	if _, err := s.SaveFeatures(ctx, "run-1", records); err == nil {
		t.Fatal("expected primary key violation")
	}
	if _, err := s.SaveFeatures(ctx, "run-2", records); err != nil {
		t.Fatalf("same ids under another run: %v", err)
	}
}

func TestReportRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	report := &model.EvaluationReport{
		Distribution: map[string]int{model.LabelYes: 1, model.LabelNo: 2},
		ConfusionMatrix: []model.Cell{
			{Actual: model.LabelNo, Predicted: model.LabelNo, Count: 2},
			{Actual: model.LabelYes, Predicted: model.LabelYes, Count: 1},
		},
		Metrics:            model.Metrics{Accuracy: 1, Precision: 1, Recall: 1, F1: 1},
		Evaluated:          3,
		PredictionFailures: 1,
	}
	errs := []model.ErrorRecord{
		model.NewErrorRecord(&model.PredictionError{ID: "C9", Err: errors.New("boom")}),
		model.NewErrorRecord(&model.SchemaError{Row: 4, Reason: "bad tenure"}),
	}

	if err := s.SaveReport(ctx, "run-1", report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if _, err := s.SaveErrors(ctx, "run-1", errs); err != nil {
		t.Fatalf("SaveErrors: %v", err)
	}

	loaded, err := s.LoadReport(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if loaded.Evaluated != 3 || loaded.CellCount(model.LabelNo, model.LabelNo) != 2 || loaded.Metrics.F1 != 1 {
		t.Fatalf("unexpected report: %+v", loaded)
	}
	if len(loaded.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(loaded.Errors))
	}
	if loaded.Errors[0].Kind != model.ErrorKindPrediction || loaded.Errors[0].CustomerID != "C9" {
		t.Errorf("unexpected first error: %+v", loaded.Errors[0])
	}
	if loaded.Errors[1].Kind != model.ErrorKindSchema || loaded.Errors[1].Row != 4 {
		t.Errorf("unexpected second error: %+v", loaded.Errors[1])
	}

	if _, err := s.LoadReport(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
