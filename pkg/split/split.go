// Package split partitions a feature dataset into train and test subsets.
//
// Membership is sampled independently per record: each record lands in the
// train set with probability Fraction, so set sizes are approximately, not
// exactly, Fraction*N and (1-Fraction)*N. The test set is the set difference
// of the full dataset and the train set, keyed by customer identifier.
package split

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cespare/xxhash/v2"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// DefaultFraction is the share of records sampled into the train set
const DefaultFraction = 0.8

// Options controls a split
type Options struct {
	Fraction float64
	// Seed makes the partition reproducible; nil draws a fresh seed
	Seed *int64
}

// Result holds both partitions and the seed that produced them
type Result struct {
	Train    *model.Dataset
	Test     *model.Dataset
	Seed     int64
	Fraction float64
}

// Seed is a helper for building Options literals
func Seed(s int64) *int64 { return &s }

// InTrain reports whether id is sampled into the train set. The decision
// depends only on (seed, id, fraction), never on record order.
func InTrain(seed int64, id string, fraction float64) bool {
	if fraction >= 1 {
		return true
	}
	if fraction <= 0 {
		return false
	}
	return uniform(seed, id) < fraction
}

// uniform maps (seed, id) to [0, 1)
func uniform(seed int64, id string) float64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))

	d := xxhash.New()
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(id)
	return float64(d.Sum64()>>11) / (1 << 53)
}

// Split partitions ds into train and test
func Split(ds *model.Dataset, opts Options) (*Result, error) {
	if ds == nil {
		return nil, errors.New("dataset cannot be nil")
	}
	if math.IsNaN(opts.Fraction) {
		return nil, errors.New("split fraction is NaN")
	}

	seed := rand.Int63()
	if opts.Seed != nil {
		seed = *opts.Seed
	}

	train := make([]model.FeatureRecord, 0, int(float64(ds.Len())*clamp(opts.Fraction))+1)
	for _, rec := range ds.Records() {
		if InTrain(seed, rec.CustomerID, opts.Fraction) {
			train = append(train, rec)
		}
	}

	trainSet, err := model.NewDataset(ds.Name()+"_train", train)
	if err != nil {
		return nil, fmt.Errorf("failed to build train set: %w", err)
	}

	test := make([]model.FeatureRecord, 0, ds.Len()-trainSet.Len())
	for _, rec := range ds.Records() {
		if !trainSet.Contains(rec.CustomerID) {
			test = append(test, rec)
		}
	}

	testSet, err := model.NewDataset(ds.Name()+"_test", test)
	if err != nil {
		return nil, fmt.Errorf("failed to build test set: %w", err)
	}

	return &Result{
		Train:    trainSet,
		Test:     testSet,
		Seed:     seed,
		Fraction: opts.Fraction,
	}, nil
}

func clamp(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
