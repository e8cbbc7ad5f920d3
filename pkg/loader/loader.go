// pkg/loader/loader.go
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// LoadResult carries the records that parsed plus one error per rejected row
type LoadResult struct {
	Records  []model.RawRecord
	Errors   []model.ErrorRecord
	RowsRead int
}

// Rejected returns the number of rows that produced a SchemaError
func (r *LoadResult) Rejected() int {
	return len(r.Errors)
}

// Loader ingests raw customer records. Malformed rows are reported and
// skipped; ingestion continues with the remaining rows.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a new Loader
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.Named("loader")}
}

// LoadCSVFile opens path and reads it with ReadCSV
func (l *Loader) LoadCSVFile(ctx context.Context, path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	l.logger.Info("Loading raw records", zap.String("path", path))
	return l.ReadCSV(ctx, f)
}

// ReadCSV parses a header-first CSV stream into RawRecords. Only a missing
// header or an I/O failure is fatal.
func (l *Loader) ReadCSV(ctx context.Context, r io.Reader) (*LoadResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv input is empty: header row required")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	idx := headerIndex(header)
	if _, ok := idx[strings.ToLower(model.ColCustomerID)]; !ok {
		return nil, fmt.Errorf("csv header has no %s column", model.ColCustomerID)
	}
	for _, b := range bindings {
		if _, ok := idx[strings.ToLower(b.column)]; !ok {
			l.logger.Warn("Column missing from csv header", zap.String("column", b.column))
		}
	}

	result := &LoadResult{}
	seen := make(map[string]int)

	for {
		if result.RowsRead%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			result.RowsRead++
			l.reject(result, &model.SchemaError{Row: parseErr.Line, Reason: parseErr.Err.Error()})
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to read csv: %w", err)
		}

		result.RowsRead++
		line, _ := reader.FieldPos(0)

		if len(fields) != len(header) {
			l.reject(result, &model.SchemaError{
				Row:    line,
				Reason: fmt.Sprintf("expected %d columns, got %d", len(header), len(fields)),
			})
			continue
		}

		rec, schemaErr := parseRow(fields, idx, line)
		if schemaErr != nil {
			l.reject(result, schemaErr)
			continue
		}

		if id := rec.ID(); id != "" {
			if firstRow, dup := seen[id]; dup {
				l.reject(result, &model.SchemaError{
					Row:    line,
					ID:     id,
					Fields: []string{model.ColCustomerID},
					Reason: fmt.Sprintf("duplicate identifier (first seen at row %d)", firstRow),
				})
				continue
			}
			seen[id] = line
		}

		result.Records = append(result.Records, rec)
	}

	l.logger.Info("Loaded raw records",
		zap.Int("rowsRead", result.RowsRead),
		zap.Int("records", len(result.Records)),
		zap.Int("rejected", result.Rejected()))

	return result, nil
}

// parseRow binds each known column; the first unparsable cell rejects the row
func parseRow(fields []string, idx map[string]int, line int) (model.RawRecord, *model.SchemaError) {
	rec := model.RawRecord{Row: line}
	var badFields []string
	var reasons []string

	for _, b := range bindings {
		pos, ok := idx[strings.ToLower(b.column)]
		if !ok {
			continue
		}
		if err := b.set(&rec, fields[pos]); err != nil {
			badFields = append(badFields, b.column)
			reasons = append(reasons, fmt.Sprintf("%s: %v", b.column, err))
		}
	}

	if len(badFields) > 0 {
		return rec, &model.SchemaError{
			Row:    line,
			ID:     rec.ID(),
			Fields: badFields,
			Reason: strings.Join(reasons, "; "),
		}
	}
	return rec, nil
}

func (l *Loader) reject(result *LoadResult, err *model.SchemaError) {
	l.logger.Warn("Skipping malformed row", zap.Error(err))
	result.Errors = append(result.Errors, model.NewErrorRecord(err))
}
