// pkg/model/records.go
package model

import (
	"database/sql"
	"fmt"
)

// Class labels produced by classifiers and used in evaluation reports
const (
	LabelYes = "Yes"
	LabelNo  = "No"
)

// LabelFromChurn maps a binary churn_label to its class label
func LabelFromChurn(churn int) string {
	if churn == 1 {
		return LabelYes
	}
	return LabelNo
}

// RawRecord is one telecom customer as ingested from CSV or the raw table.
// Every field is nullable so absent values survive ingestion and can be
// rejected (or filtered) by the encoder.
type RawRecord struct {
	Row              int // 1-based source row, 0 when unknown
	CustomerID       sql.NullString
	Gender           sql.NullString
	SeniorCitizen    sql.NullInt64
	Partner          sql.NullString
	Dependents       sql.NullString
	Tenure           sql.NullInt64
	PhoneService     sql.NullString
	MultipleLines    sql.NullString
	InternetService  sql.NullString
	OnlineSecurity   sql.NullString
	OnlineBackup     sql.NullString
	DeviceProtection sql.NullString
	TechSupport      sql.NullString
	StreamingTV      sql.NullString
	StreamingMovies  sql.NullString
	Contract         sql.NullString
	PaperlessBilling sql.NullString
	PaymentMethod    sql.NullString
	MonthlyCharges   sql.NullFloat64
	TotalCharges     sql.NullFloat64
	Churn            sql.NullString
}

// ID returns the customer identifier or an empty string
func (r RawRecord) ID() string {
	if !r.CustomerID.Valid {
		return ""
	}
	return r.CustomerID.String
}

// MissingRequired lists the required columns that are null on this record.
// A null TotalCharges is a filter, not an error, so it is not checked here.
func (r RawRecord) MissingRequired() []string {
	var missing []string
	check := func(valid bool, column string) {
		if !valid {
			missing = append(missing, column)
		}
	}
	check(r.CustomerID.Valid && r.CustomerID.String != "", ColCustomerID)
	check(r.Gender.Valid, ColGender)
	check(r.SeniorCitizen.Valid, ColSeniorCitizen)
	check(r.Partner.Valid, ColPartner)
	check(r.Dependents.Valid, ColDependents)
	check(r.Tenure.Valid, ColTenure)
	check(r.PaperlessBilling.Valid, ColPaperlessBilling)
	check(r.MonthlyCharges.Valid, ColMonthlyCharges)
	check(r.Churn.Valid, ColChurn)
	return missing
}

// FeatureRecord is the numeric encoding of a RawRecord
type FeatureRecord struct {
	CustomerID       string  `db:"customer_id" json:"customer_id"`
	SeniorCitizen    int     `db:"senior_citizen" json:"senior_citizen"`
	Tenure           int     `db:"tenure" json:"tenure"`
	MonthlyCharges   float64 `db:"monthly_charges" json:"monthly_charges"`
	TotalCharges     float64 `db:"total_charges" json:"total_charges"`
	GenderMale       int     `db:"gender_male" json:"gender_male"`
	HasPartner       int     `db:"has_partner" json:"has_partner"`
	HasDependents    int     `db:"has_dependents" json:"has_dependents"`
	PaperlessBilling int     `db:"paperless_billing" json:"paperless_billing"`
	ChurnLabel       int     `db:"churn_label" json:"churn_label"`
}

// FeatureNames is the column order returned by Vector
var FeatureNames = []string{
	"senior_citizen",
	"tenure",
	"monthly_charges",
	"total_charges",
	"gender_male",
	"has_partner",
	"has_dependents",
	"paperless_billing",
}

// Vector returns the model inputs in FeatureNames order
func (f FeatureRecord) Vector() []float64 {
	return []float64{
		float64(f.SeniorCitizen),
		float64(f.Tenure),
		f.MonthlyCharges,
		f.TotalCharges,
		float64(f.GenderMale),
		float64(f.HasPartner),
		float64(f.HasDependents),
		float64(f.PaperlessBilling),
	}
}

// Label returns the actual class of the record
func (f FeatureRecord) Label() string {
	return LabelFromChurn(f.ChurnLabel)
}

// Dataset is a named, ordered collection of FeatureRecords keyed by identifier
type Dataset struct {
	name    string
	records []FeatureRecord
	index   map[string]int
}

// NewDataset builds a dataset, rejecting duplicate identifiers
func NewDataset(name string, records []FeatureRecord) (*Dataset, error) {
	ds := &Dataset{
		name:    name,
		records: make([]FeatureRecord, len(records)),
		index:   make(map[string]int, len(records)),
	}
	copy(ds.records, records)

	for i, rec := range ds.records {
		if rec.CustomerID == "" {
			return nil, fmt.Errorf("dataset %s: record %d has empty identifier", name, i)
		}
		if _, dup := ds.index[rec.CustomerID]; dup {
			return nil, fmt.Errorf("dataset %s: duplicate identifier %s", name, rec.CustomerID)
		}
		ds.index[rec.CustomerID] = i
	}

	return ds, nil
}

// Name returns the dataset name
func (d *Dataset) Name() string { return d.name }

// Len returns the number of records
func (d *Dataset) Len() int { return len(d.records) }

// Records returns a copy of the records in order
func (d *Dataset) Records() []FeatureRecord {
	out := make([]FeatureRecord, len(d.records))
	copy(out, d.records)
	return out
}

// At returns the i-th record
func (d *Dataset) At(i int) FeatureRecord { return d.records[i] }

// Contains reports whether the identifier is in the dataset
func (d *Dataset) Contains(id string) bool {
	_, ok := d.index[id]
	return ok
}

// Get returns the record for an identifier
func (d *Dataset) Get(id string) (FeatureRecord, bool) {
	i, ok := d.index[id]
	if !ok {
		return FeatureRecord{}, false
	}
	return d.records[i], true
}

// IDs returns identifiers in dataset order
func (d *Dataset) IDs() []string {
	ids := make([]string, len(d.records))
	for i, rec := range d.records {
		ids[i] = rec.CustomerID
	}
	return ids
}

// Prediction is the classifier output for one test record
type Prediction struct {
	CustomerID    string             `json:"customer_id"`
	Actual        string             `json:"actual"`
	Predicted     string             `json:"predicted"`
	Probabilities map[string]float64 `json:"probabilities"`
}
