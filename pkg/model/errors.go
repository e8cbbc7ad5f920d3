// pkg/model/errors.go
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies per-record failures. None of them abort a batch.
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	// ErrorKindSchema is a malformed or missing input field
	ErrorKindSchema
	// ErrorKindPrediction is a failed or timed out classifier call
	ErrorKindPrediction
	// ErrorKindMissingProbability is a predicted class absent from the probability map
	ErrorKindMissingProbability
	ErrorKindOther
)

// String returns a string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "None"
	case ErrorKindSchema:
		return "SchemaError"
	case ErrorKindPrediction:
		return "PredictionError"
	case ErrorKindMissingProbability:
		return "MissingProbabilityError"
	case ErrorKindOther:
		return "Other"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// SchemaError reports a record that could not be ingested or encoded
type SchemaError struct {
	Row    int
	ID     string
	Fields []string
	Reason string
}

func (e *SchemaError) Error() string {
	var sb strings.Builder
	sb.WriteString("schema error")
	if e.Row > 0 {
		sb.WriteString(fmt.Sprintf(" at row %d", e.Row))
	}
	if e.ID != "" {
		sb.WriteString(fmt.Sprintf(" (customer %s)", e.ID))
	}
	if len(e.Fields) > 0 {
		sb.WriteString(": fields " + strings.Join(e.Fields, ", "))
	}
	if e.Reason != "" {
		sb.WriteString(": " + e.Reason)
	}
	return sb.String()
}

// PredictionError reports a classifier call that failed for one record
type PredictionError struct {
	ID       string
	TimedOut bool
	Err      error
}

func (e *PredictionError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("prediction for customer %s timed out: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("prediction for customer %s failed: %v", e.ID, e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }

// MissingProbabilityError reports a predicted class with no probability entry
type MissingProbabilityError struct {
	ID    string
	Class string
}

func (e *MissingProbabilityError) Error() string {
	return fmt.Sprintf("customer %s: no probability for predicted class %q", e.ID, e.Class)
}

// ErrorRecord is the uniform shape of a per-record error in batch results
type ErrorRecord struct {
	Kind       ErrorKind
	CustomerID string
	Row        int
	Err        error
	Message    string
	Timestamp  time.Time
}

// NewErrorRecord classifies err and captures its message
func NewErrorRecord(err error) ErrorRecord {
	record := ErrorRecord{
		Kind:      KindOf(err),
		Err:       err,
		Timestamp: time.Now(),
	}
	if err != nil {
		record.Message = err.Error()
	}

	var schemaErr *SchemaError
	var predErr *PredictionError
	var probErr *MissingProbabilityError
	switch {
	case errors.As(err, &schemaErr):
		record.CustomerID = schemaErr.ID
		record.Row = schemaErr.Row
	case errors.As(err, &predErr):
		record.CustomerID = predErr.ID
	case errors.As(err, &probErr):
		record.CustomerID = probErr.ID
	}
	return record
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Kind))
	if r.CustomerID != "" {
		sb.WriteString(fmt.Sprintf("Customer: %s ", r.CustomerID))
	}
	if r.Row > 0 {
		sb.WriteString(fmt.Sprintf("Row: %d ", r.Row))
	}
	sb.WriteString(r.Message)
	return sb.String()
}

// KindOf returns the ErrorKind for err
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var schemaErr *SchemaError
	var predErr *PredictionError
	var probErr *MissingProbabilityError
	switch {
	case errors.As(err, &schemaErr):
		return ErrorKindSchema
	case errors.As(err, &predErr):
		return ErrorKindPrediction
	case errors.As(err, &probErr):
		return ErrorKindMissingProbability
	default:
		return ErrorKindOther
	}
}

// CountByKind tallies a batch error list
func CountByKind(records []ErrorRecord) map[ErrorKind]int {
	counts := make(map[ErrorKind]int)
	for _, r := range records {
		counts[r.Kind]++
	}
	return counts
}

// ParseErrorKind is the inverse of ErrorKind.String
func ParseErrorKind(s string) ErrorKind {
	for k := ErrorKindNone; k <= ErrorKindOther; k++ {
		if k.String() == s {
			return k
		}
	}
	return ErrorKindOther
}
