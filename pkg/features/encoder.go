// Package features derives the numeric feature table from raw customer records.
package features

import (
	"context"
	"math"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// EncodeResult is the output of one encoding pass
type EncodeResult struct {
	Features []model.FeatureRecord
	// Filtered counts records excluded because TotalCharges was null
	Filtered int
	Errors   []model.ErrorRecord
}

// EncodeRecord derives one FeatureRecord. ok is false when the record is
// filtered out (null TotalCharges); err is a *model.SchemaError when a
// required field is missing or a charge is not a finite non-negative amount.
func EncodeRecord(rec model.RawRecord) (feature model.FeatureRecord, ok bool, err error) {
	if missing := rec.MissingRequired(); len(missing) > 0 {
		return model.FeatureRecord{}, false, &model.SchemaError{
			Row:    rec.Row,
			ID:     rec.ID(),
			Fields: missing,
			Reason: "required field missing",
		}
	}

	if bad := invalidAmounts(rec); len(bad) > 0 {
		return model.FeatureRecord{}, false, &model.SchemaError{
			Row:    rec.Row,
			ID:     rec.ID(),
			Fields: bad,
			Reason: "charge is not a finite non-negative amount",
		}
	}

	if !rec.TotalCharges.Valid {
		return model.FeatureRecord{}, false, nil
	}

	return model.FeatureRecord{
		CustomerID:       rec.CustomerID.String,
		SeniorCitizen:    int(rec.SeniorCitizen.Int64),
		Tenure:           int(rec.Tenure.Int64),
		MonthlyCharges:   rec.MonthlyCharges.Float64,
		TotalCharges:     rec.TotalCharges.Float64,
		GenderMale:       indicator(rec.Gender.String, "Male"),
		HasPartner:       indicator(rec.Partner.String, "Yes"),
		HasDependents:    indicator(rec.Dependents.String, "Yes"),
		PaperlessBilling: indicator(rec.PaperlessBilling.String, "Yes"),
		ChurnLabel:       indicator(rec.Churn.String, "Yes"),
	}, true, nil
}

// invalidAmounts lists charge columns holding NaN, an infinity or a negative
// value. Rows read from a warehouse FLOAT column can carry any of them.
func invalidAmounts(rec model.RawRecord) []string {
	var bad []string
	check := func(v float64, valid bool, column string) {
		if valid && (math.IsNaN(v) || math.IsInf(v, 0) || v < 0) {
			bad = append(bad, column)
		}
	}
	check(rec.MonthlyCharges.Float64, rec.MonthlyCharges.Valid, model.ColMonthlyCharges)
	check(rec.TotalCharges.Float64, rec.TotalCharges.Valid, model.ColTotalCharges)
	return bad
}

func indicator(value, literal string) int {
	if value == literal {
		return 1
	}
	return 0
}

// Encode runs EncodeRecord over records sequentially, preserving order
func Encode(records []model.RawRecord) *EncodeResult {
	result := &EncodeResult{Features: make([]model.FeatureRecord, 0, len(records))}
	for _, rec := range records {
		feature, ok, err := EncodeRecord(rec)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, model.NewErrorRecord(err))
		case !ok:
			result.Filtered++
		default:
			result.Features = append(result.Features, feature)
		}
	}
	return result
}

// Encoder parallelizes Encode across chunks of the input
type Encoder struct {
	workers   int
	chunkSize int
	logger    *zap.Logger
}

// NewEncoder creates an encoder; workers <= 0 means runtime.NumCPU()
func NewEncoder(workers int, logger *zap.Logger) *Encoder {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Encoder{
		workers:   workers,
		chunkSize: 2048,
		logger:    logger.Named("encoder"),
	}
}

// WithChunkSize sets the number of records per work unit
func (e *Encoder) WithChunkSize(size int) *Encoder {
	if size > 0 {
		e.chunkSize = size
	}
	return e
}

// EncodeParallel encodes records with bounded concurrency. Each chunk owns
// its partial result; partials are concatenated in chunk order so the output
// matches Encode exactly.
func (e *Encoder) EncodeParallel(ctx context.Context, records []model.RawRecord) (*EncodeResult, error) {
	nChunks := (len(records) + e.chunkSize - 1) / e.chunkSize
	partials := make([]*EncodeResult, nChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := 0; i < nChunks; i++ {
		i := i
		start := i * e.chunkSize
		end := start + e.chunkSize
		if end > len(records) {
			end = len(records)
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			partials[i] = Encode(records[start:end])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &EncodeResult{Features: make([]model.FeatureRecord, 0, len(records))}
	for _, p := range partials {
		result.Features = append(result.Features, p.Features...)
		result.Filtered += p.Filtered
		result.Errors = append(result.Errors, p.Errors...)
	}

	e.logger.Info("Encoded feature records",
		zap.Int("input", len(records)),
		zap.Int("features", len(result.Features)),
		zap.Int("filtered", result.Filtered),
		zap.Int("schemaErrors", len(result.Errors)),
		zap.Int("workers", e.workers))

	for _, errRec := range result.Errors {
		e.logger.Warn("Record rejected by encoder", zap.String("error", errRec.String()))
	}

	return result, nil
}
