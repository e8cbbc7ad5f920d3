package split

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/David-Botos/churn-ml/pkg/model"
)

func makeDataset(t *testing.T, n int) *model.Dataset {
	t.Helper()
	records := make([]model.FeatureRecord, n)
	for i := range records {
		records[i] = model.FeatureRecord{CustomerID: fmt.Sprintf("C%05d", i), Tenure: i}
	}
	ds, err := model.NewDataset("features", records)
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	return ds
}

func TestSplitIsReproducibleWithSeed(t *testing.T) {
	ds := makeDataset(t, 500)

	first, err := Split(ds, Options{Fraction: 0.8, Seed: Seed(42)})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	second, err := Split(ds, Options{Fraction: 0.8, Seed: Seed(42)})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	if !reflect.DeepEqual(first.Train.IDs(), second.Train.IDs()) {
		t.Fatal("same (dataset, fraction, seed) produced different train sets")
	}
	if first.Seed != 42 {
		t.Fatalf("expected seed 42 to be reported, got %d", first.Seed)
	}
}

func TestSplitIsDisjointAndCovering(t *testing.T) {
	ds := makeDataset(t, 400)

	for _, fraction := range []float64{-0.5, 0, 0.1, 0.5, 0.8, 1, 1.7} {
		for _, seed := range []int64{1, 7, 99} {
			res, err := Split(ds, Options{Fraction: fraction, Seed: Seed(seed)})
			if err != nil {
				t.Fatalf("Split(%v, %d): %v", fraction, seed, err)
			}
			if err := Verify(ds, res.Train, res.Test); err != nil {
				t.Fatalf("Split(%v, %d): %v", fraction, seed, err)
			}
		}
	}
}

func TestSplitEdgeFractions(t *testing.T) {
	ds := makeDataset(t, 50)

	all, err := Split(ds, Options{Fraction: 1.0, Seed: Seed(3)})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if all.Train.Len() != 50 || all.Test.Len() != 0 {
		t.Fatalf("fraction 1.0: expected 50/0, got %d/%d", all.Train.Len(), all.Test.Len())
	}

	none, err := Split(ds, Options{Fraction: 0, Seed: Seed(3)})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if none.Train.Len() != 0 || none.Test.Len() != 50 {
		t.Fatalf("fraction 0: expected 0/50, got %d/%d", none.Train.Len(), none.Test.Len())
	}
}

func TestSplitIsApproximate(t *testing.T) {
	ds := makeDataset(t, 5000)

	res, err := Split(ds, Options{Fraction: 0.8, Seed: Seed(11)})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	share := float64(res.Train.Len()) / float64(ds.Len())
	if math.Abs(share-0.8) > 0.03 {
		t.Fatalf("train share %.3f too far from 0.8", share)
	}
}

func TestSplitIgnoresRecordOrder(t *testing.T) {
	ds := makeDataset(t, 200)
	records := ds.Records()
	reversed := make([]model.FeatureRecord, len(records))
	for i, rec := range records {
		reversed[len(records)-1-i] = rec
	}
	rds, err := model.NewDataset("features", reversed)
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}

	a, _ := Split(ds, Options{Fraction: 0.6, Seed: Seed(5)})
	b, _ := Split(rds, Options{Fraction: 0.6, Seed: Seed(5)})

	for _, id := range a.Train.IDs() {
		if !b.Train.Contains(id) {
			t.Fatalf("record %s changed partition when input order changed", id)
		}
	}
	if a.Train.Len() != b.Train.Len() {
		t.Fatalf("train sizes differ: %d vs %d", a.Train.Len(), b.Train.Len())
	}
}

func TestSplitWithoutSeedStillPartitions(t *testing.T) {
	ds := makeDataset(t, 100)

	res, err := Split(ds, Options{Fraction: 0.8})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if err := Verify(ds, res.Train, res.Test); err != nil {
		t.Fatal(err)
	}

	replay, err := Split(ds, Options{Fraction: 0.8, Seed: Seed(res.Seed)})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !reflect.DeepEqual(res.Train.IDs(), replay.Train.IDs()) {
		t.Fatal("replaying the reported seed did not reproduce the split")
	}
}

func TestSplitRejectsNaN(t *testing.T) {
	if _, err := Split(makeDataset(t, 3), Options{Fraction: math.NaN()}); err == nil {
		t.Fatal("expected error for NaN fraction")
	}
}

func TestVerifyDetectsOverlap(t *testing.T) {
	full := makeDataset(t, 3)
	train, _ := model.NewDataset("train", full.Records()[:2])
	test, _ := model.NewDataset("test", full.Records()[1:])

	if err := Verify(full, train, test); err == nil {
		t.Fatal("expected overlap to be reported")
	}
}
