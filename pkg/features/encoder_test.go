package features

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/David-Botos/churn-ml/pkg/model"
)

func validRaw(id string) model.RawRecord {
	str := func(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }
	return model.RawRecord{
		CustomerID:       str(id),
		Gender:           str("Male"),
		SeniorCitizen:    sql.NullInt64{Int64: 1, Valid: true},
		Partner:          str("Yes"),
		Dependents:       str("No"),
		Tenure:           sql.NullInt64{Int64: 12, Valid: true},
		PaperlessBilling: str("Yes"),
		MonthlyCharges:   sql.NullFloat64{Float64: 70.5, Valid: true},
		TotalCharges:     sql.NullFloat64{Float64: 846, Valid: true},
		Churn:            str("Yes"),
	}
}

func TestEncodeRecordMapping(t *testing.T) {
	feature, ok, err := EncodeRecord(validRaw("C1"))
	if err != nil || !ok {
		t.Fatalf("expected encoded record, got ok=%v err=%v", ok, err)
	}

	want := model.FeatureRecord{
		CustomerID:       "C1",
		SeniorCitizen:    1,
		Tenure:           12,
		MonthlyCharges:   70.5,
		TotalCharges:     846,
		GenderMale:       1,
		HasPartner:       1,
		HasDependents:    0,
		PaperlessBilling: 1,
		ChurnLabel:       1,
	}
	if feature != want {
		t.Fatalf("unexpected feature record:\n got %+v\nwant %+v", feature, want)
	}
}

func TestEncodeIndicatorsAreExactMatches(t *testing.T) {
	rec := validRaw("C1")
	rec.Gender.String = "male"
	rec.Partner.String = "No internet service"
	rec.Churn.String = "No"

	feature, _, err := EncodeRecord(rec)
	if err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	if feature.GenderMale != 0 || feature.HasPartner != 0 || feature.ChurnLabel != 0 {
		t.Fatalf("expected literal equality tests, got %+v", feature)
	}
}

func TestEncodeRejectsNonFiniteCharges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.RawRecord)
		fields []string
	}{
		{"NaN monthly", func(r *model.RawRecord) { r.MonthlyCharges.Float64 = math.NaN() }, []string{model.ColMonthlyCharges}},
		{"infinite total", func(r *model.RawRecord) { r.TotalCharges.Float64 = math.Inf(1) }, []string{model.ColTotalCharges}},
		{"negative total", func(r *model.RawRecord) { r.TotalCharges.Float64 = -1 }, []string{model.ColTotalCharges}},
		{"both", func(r *model.RawRecord) {
			r.MonthlyCharges.Float64 = math.Inf(-1)
			r.TotalCharges.Float64 = math.NaN()
		}, []string{model.ColMonthlyCharges, model.ColTotalCharges}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRaw("BAD")
			tc.mutate(&rec)

			result := Encode([]model.RawRecord{validRaw("C1"), rec, validRaw("C2")})
			if len(result.Features) != 2 {
				t.Fatalf("expected the other records to encode, got %d", len(result.Features))
			}
			if len(result.Errors) != 1 {
				t.Fatalf("expected 1 error, got %v", result.Errors)
			}
			var schemaErr *model.SchemaError
			if !errors.As(result.Errors[0].Err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %T", result.Errors[0].Err)
			}
			if !reflect.DeepEqual(schemaErr.Fields, tc.fields) {
				t.Fatalf("expected fields %v, got %v", tc.fields, schemaErr.Fields)
			}
			for _, f := range result.Features {
				if math.IsNaN(f.MonthlyCharges) || math.IsNaN(f.TotalCharges) {
					t.Fatalf("non-finite value leaked into %+v", f)
				}
			}
		})
	}
}

func TestEncodeFiltersNullTotalCharges(t *testing.T) {
	rec := validRaw("C2")
	rec.TotalCharges = sql.NullFloat64{}

	result := Encode([]model.RawRecord{validRaw("C1"), rec})
	if len(result.Features) != 1 || result.Filtered != 1 {
		t.Fatalf("expected 1 feature and 1 filtered, got %d/%d", len(result.Features), result.Filtered)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("null total charges must not be an error: %v", result.Errors)
	}
}

func TestEncodeMissingTenureIsSchemaError(t *testing.T) {
	bad := validRaw("C2")
	bad.Tenure = sql.NullInt64{}

	result := Encode([]model.RawRecord{validRaw("C1"), bad, validRaw("C3")})
	if len(result.Features) != 2 {
		t.Fatalf("expected siblings to be encoded, got %d", len(result.Features))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(result.Errors))
	}

	var schemaErr *model.SchemaError
	if !errors.As(result.Errors[0].Err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %T", result.Errors[0].Err)
	}
	if schemaErr.ID != "C2" || !reflect.DeepEqual(schemaErr.Fields, []string{model.ColTenure}) {
		t.Fatalf("unexpected schema error: %+v", schemaErr)
	}
	for _, f := range result.Features {
		if f.CustomerID == "C2" {
			t.Fatal("rejected record leaked into output")
		}
	}
}

func TestEncodeMissingFieldWinsOverNullTotal(t *testing.T) {
	rec := validRaw("C1")
	rec.Gender = sql.NullString{}
	rec.TotalCharges = sql.NullFloat64{}

	result := Encode([]model.RawRecord{rec})
	if result.Filtered != 0 || len(result.Errors) != 1 {
		t.Fatalf("expected schema error, got filtered=%d errors=%d", result.Filtered, len(result.Errors))
	}
}

func TestEncodeParallelMatchesSequential(t *testing.T) {
	var records []model.RawRecord
	for i := 0; i < 1000; i++ {
		rec := validRaw(fmt.Sprintf("C%04d", i))
		switch i % 7 {
		case 0:
			rec.TotalCharges = sql.NullFloat64{}
		case 3:
			rec.Churn = sql.NullString{}
		case 5:
			rec.Gender.String = "Female"
		}
		records = append(records, rec)
	}

	want := Encode(records)
	got, err := NewEncoder(4, nil).WithChunkSize(37).EncodeParallel(context.Background(), records)
	if err != nil {
		t.Fatalf("EncodeParallel: %v", err)
	}

	if !reflect.DeepEqual(got.Features, want.Features) {
		t.Fatal("parallel output differs from sequential output")
	}
	if got.Filtered != want.Filtered || len(got.Errors) != len(want.Errors) {
		t.Fatalf("counts differ: filtered %d/%d errors %d/%d",
			got.Filtered, want.Filtered, len(got.Errors), len(want.Errors))
	}
	for _, f := range got.Features {
		for _, v := range []int{f.GenderMale, f.HasPartner, f.HasDependents, f.PaperlessBilling, f.ChurnLabel} {
			if v != 0 && v != 1 {
				t.Fatalf("non-binary indicator in %+v", f)
			}
		}
	}
}

func TestEncodeParallelEmptyInput(t *testing.T) {
	got, err := NewEncoder(2, nil).EncodeParallel(context.Background(), nil)
	if err != nil {
		t.Fatalf("EncodeParallel: %v", err)
	}
	if len(got.Features) != 0 || got.Filtered != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}
