// pkg/loader/table.go
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// Querier is the read side of a database connection
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// TableSource reads RawRecords from a warehouse table with the raw layout
type TableSource struct {
	db       Querier
	metadata *model.TableMetadata
	logger   *zap.Logger
}

// NewTableSource creates a source over the raw table described by metadata
func NewTableSource(db Querier, metadata *model.TableMetadata, logger *zap.Logger) *TableSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TableSource{db: db, metadata: metadata, logger: logger.Named("table-source")}
}

// SelectQuery returns the statement Fetch executes
func (s *TableSource) SelectQuery() string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(s.metadata.ColumnNames(), ", "),
		s.metadata.FullName(),
		model.ColCustomerID)
}

// Fetch reads every row of the raw table. Duplicate identifiers are
// rejected the same way the CSV loader rejects them.
func (s *TableSource) Fetch(ctx context.Context) (*LoadResult, error) {
	query := s.SelectQuery()
	s.logger.Info("Fetching raw records", zap.String("table", s.metadata.FullName()))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.metadata.FullName(), err)
	}
	defer rows.Close()

	result := &LoadResult{}
	seen := make(map[string]bool)

	for rows.Next() {
		result.RowsRead++
		rec := model.RawRecord{Row: result.RowsRead}
		if err := rows.Scan(
			&rec.CustomerID,
			&rec.Gender,
			&rec.SeniorCitizen,
			&rec.Partner,
			&rec.Dependents,
			&rec.Tenure,
			&rec.PhoneService,
			&rec.MultipleLines,
			&rec.InternetService,
			&rec.OnlineSecurity,
			&rec.OnlineBackup,
			&rec.DeviceProtection,
			&rec.TechSupport,
			&rec.StreamingTV,
			&rec.StreamingMovies,
			&rec.Contract,
			&rec.PaperlessBilling,
			&rec.PaymentMethod,
			&rec.MonthlyCharges,
			&rec.TotalCharges,
			&rec.Churn,
		); err != nil {
			schemaErr := &model.SchemaError{Row: result.RowsRead, Reason: err.Error()}
			s.logger.Warn("Skipping unreadable row", zap.Error(schemaErr))
			result.Errors = append(result.Errors, model.NewErrorRecord(schemaErr))
			continue
		}

		if id := rec.ID(); id != "" {
			if seen[id] {
				schemaErr := &model.SchemaError{
					Row:    rec.Row,
					ID:     id,
					Fields: []string{model.ColCustomerID},
					Reason: "duplicate identifier",
				}
				s.logger.Warn("Skipping duplicate row", zap.Error(schemaErr))
				result.Errors = append(result.Errors, model.NewErrorRecord(schemaErr))
				continue
			}
			seen[id] = true
		}

		result.Records = append(result.Records, rec)
	}

	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("error iterating %s: %w", s.metadata.FullName(), err)
	}

	s.logger.Info("Fetched raw records",
		zap.Int("rowsRead", result.RowsRead),
		zap.Int("records", len(result.Records)))

	return result, nil
}
