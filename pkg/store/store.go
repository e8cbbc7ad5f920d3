// Package store persists run artifacts (features, split membership,
// predictions, errors and the evaluation report) to PostgreSQL or SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/David-Botos/churn-ml/pkg/converter"
	"github.com/David-Botos/churn-ml/pkg/model"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Run statuses
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when a run has no stored row
var ErrNotFound = errors.New("not found")

// Run is one pipeline execution
type Run struct {
	RunID         string         `db:"run_id"`
	Status        string         `db:"status"`
	Source        string         `db:"source"`
	Model         string         `db:"model"`
	Seed          int64          `db:"seed"`
	SplitFraction float64        `db:"split_fraction"`
	RowsRead      int            `db:"rows_read"`
	Records       int            `db:"records"`
	Filtered      int            `db:"filtered"`
	SchemaErrors  int            `db:"schema_errors"`
	TrainSize     int            `db:"train_size"`
	TestSize      int            `db:"test_size"`
	StartedAt     time.Time      `db:"started_at"`
	FinishedAt    sql.NullTime   `db:"finished_at"`
	Error         sql.NullString `db:"error"`

	// ScoringMetrics is the JSON form of the scorer's run metrics
	ScoringMetrics sql.NullString `db:"scoring_metrics"`
}

// Store writes run artifacts through sqlx
type Store struct {
	db        *sqlx.DB
	dialect   converter.Dialect
	converter *converter.TypeConverter
	batchSize int
	logger    *zap.Logger
}

// Open connects to driver ("pgx" or "sqlite") at dsn
func Open(driver, dsn string, logger *zap.Logger) (*Store, error) {
	driver = strings.ToLower(driver)
	if driver == "postgres" {
		driver = "pgx"
	}
	if _, err := converter.DialectForDriver(driver); err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	s, err := newStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if s.dialect == converter.DialectSQLite {
		// one writer at a time avoids SQLITE_BUSY under concurrent saves
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}
	return s, nil
}

// New wraps an already open connection, such as a connector's pool
func New(db *sql.DB, driver string, logger *zap.Logger) (*Store, error) {
	return newStore(sqlx.NewDb(db, driver), logger)
}

func newStore(db *sqlx.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialect, err := converter.DialectForDriver(db.DriverName())
	if err != nil {
		return nil, err
	}
	if dialect == converter.DialectSnowflake {
		return nil, errors.New("snowflake is not supported as a result store")
	}
	logger = logger.Named("store")
	return &Store{
		db:        db,
		dialect:   dialect,
		converter: converter.NewTypeConverter(logger),
		batchSize: 500,
		logger:    logger,
	}, nil
}

// Close closes the underlying connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates every table that does not exist yet
func (s *Store) Migrate(ctx context.Context) error {
	for _, md := range allTables() {
		ddl, err := s.converter.CreateTableSQL(md, s.dialect)
		if err != nil {
			return fmt.Errorf("render %s: %w", md.Table, err)
		}
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("migrate %s: %w", md.Table, err)
		}
	}
	s.logger.Debug("Store migrated", zap.String("dialect", string(s.dialect)))
	return nil
}

// CreateRun inserts the run row
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	if run.Status == "" {
		run.Status = StatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	query := converter.NamedInsertSQL(runsTable(), s.dialect)
	if _, err := s.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create run %s: %w", run.RunID, err)
	}
	return nil
}

// CompleteRun records the final counters and status of a run
func (s *Store) CompleteRun(ctx context.Context, run *Run) error {
	if !run.FinishedAt.Valid {
		run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}
	query := `UPDATE churn_runs SET
		status = :status, seed = :seed, rows_read = :rows_read, records = :records,
		filtered = :filtered, schema_errors = :schema_errors, train_size = :train_size,
		test_size = :test_size, finished_at = :finished_at, error = :error,
		scoring_metrics = :scoring_metrics
		WHERE run_id = :run_id`
	res, err := s.db.NamedExecContext(ctx, query, run)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", run.RunID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("complete run %s: %w", run.RunID, ErrNotFound)
	}
	return nil
}

// GetRun loads a run row
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	query := s.db.Rebind(`SELECT run_id, status, source, model, seed, split_fraction, rows_read,
		records, filtered, schema_errors, train_size, test_size, started_at, finished_at, error,
		scoring_metrics
		FROM churn_runs WHERE run_id = ?`)
	if err := s.db.GetContext(ctx, &run, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &run, nil
}

type featureRow struct {
	RunID string `db:"run_id"`
	model.FeatureRecord
}

// SaveFeatures stores the encoded feature table of a run
func (s *Store) SaveFeatures(ctx context.Context, runID string, records []model.FeatureRecord) (int64, error) {
	rows := make([]interface{}, len(records))
	for i, rec := range records {
		rows[i] = featureRow{RunID: runID, FeatureRecord: rec}
	}
	return s.insertBatches(ctx, featuresTable(), rows)
}

type splitRow struct {
	RunID      string `db:"run_id"`
	CustomerID string `db:"customer_id"`
	Partition  string `db:"partition"`
}

// Partition names stored for split membership
const (
	PartitionTrain = "train"
	PartitionTest  = "test"
)

// SaveSplit stores which partition every identifier landed in
func (s *Store) SaveSplit(ctx context.Context, runID string, train, test *model.Dataset) (int64, error) {
	rows := make([]interface{}, 0, train.Len()+test.Len())
	for _, id := range train.IDs() {
		rows = append(rows, splitRow{RunID: runID, CustomerID: id, Partition: PartitionTrain})
	}
	for _, id := range test.IDs() {
		rows = append(rows, splitRow{RunID: runID, CustomerID: id, Partition: PartitionTest})
	}
	return s.insertBatches(ctx, splitsTable(), rows)
}

type predictionRow struct {
	RunID         string          `db:"run_id"`
	CustomerID    string          `db:"customer_id"`
	Actual        sql.NullString  `db:"actual"`
	Predicted     sql.NullString  `db:"predicted"`
	Confidence    sql.NullFloat64 `db:"confidence"`
	Probabilities sql.NullString  `db:"probabilities"`
	Error         sql.NullString  `db:"error"`
}

// SavePredictions stores successful predictions and failed calls alike
func (s *Store) SavePredictions(ctx context.Context, runID string, preds []model.Prediction, failures []*model.PredictionError) (int64, error) {
	rows := make([]interface{}, 0, len(preds)+len(failures))
	for _, p := range preds {
		row := predictionRow{
			RunID:      runID,
			CustomerID: p.CustomerID,
			Actual:     sql.NullString{String: p.Actual, Valid: true},
			Predicted:  sql.NullString{String: p.Predicted, Valid: true},
		}
		if c, ok := p.Probabilities[p.Predicted]; ok {
			row.Confidence = sql.NullFloat64{Float64: c, Valid: true}
		}
		if len(p.Probabilities) > 0 {
			data, err := json.Marshal(p.Probabilities)
			if err != nil {
				return 0, fmt.Errorf("marshal probabilities for %s: %w", p.CustomerID, err)
			}
			row.Probabilities = sql.NullString{String: string(data), Valid: true}
		}
		rows = append(rows, row)
	}
	for _, f := range failures {
		rows = append(rows, predictionRow{
			RunID:      runID,
			CustomerID: f.ID,
			Error:      sql.NullString{String: f.Error(), Valid: true},
		})
	}
	return s.insertBatches(ctx, predictionsTable(), rows)
}

type errorRow struct {
	RunID      string         `db:"run_id"`
	Seq        int            `db:"seq"`
	Kind       string         `db:"kind"`
	CustomerID sql.NullString `db:"customer_id"`
	RowNum     int            `db:"row_num"`
	Message    string         `db:"message"`
}

// SaveErrors stores the per-record error list of a run
func (s *Store) SaveErrors(ctx context.Context, runID string, records []model.ErrorRecord) (int64, error) {
	rows := make([]interface{}, len(records))
	for i, r := range records {
		rows[i] = errorRow{
			RunID:      runID,
			Seq:        i,
			Kind:       r.Kind.String(),
			CustomerID: sql.NullString{String: r.CustomerID, Valid: r.CustomerID != ""},
			RowNum:     r.Row,
			Message:    r.Message,
		}
	}
	return s.insertBatches(ctx, errorsTable(), rows)
}

type reportRow struct {
	RunID              string  `db:"run_id"`
	Evaluated          int     `db:"evaluated"`
	PredictionFailures int     `db:"prediction_failures"`
	MissingProbability int     `db:"missing_probability"`
	Accuracy           float64 `db:"accuracy"`
	Precision          float64 `db:"precision"`
	Recall             float64 `db:"recall"`
	F1                 float64 `db:"f1"`
	ReportJSON         string  `db:"report_json"`
}

// SaveReport stores the evaluation report and its error list
func (s *Store) SaveReport(ctx context.Context, runID string, report *model.EvaluationReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	row := reportRow{
		RunID:              runID,
		Evaluated:          report.Evaluated,
		PredictionFailures: report.PredictionFailures,
		MissingProbability: report.MissingProbability,
		Accuracy:           report.Metrics.Accuracy,
		Precision:          report.Metrics.Precision,
		Recall:             report.Metrics.Recall,
		F1:                 report.Metrics.F1,
		ReportJSON:         string(data),
	}
	if _, err := s.db.NamedExecContext(ctx, converter.NamedInsertSQL(reportsTable(), s.dialect), row); err != nil {
		return fmt.Errorf("save report for %s: %w", runID, err)
	}
	return nil
}

// LoadReport reads back a stored report together with its error list
func (s *Store) LoadReport(ctx context.Context, runID string) (*model.EvaluationReport, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, s.db.Rebind("SELECT report_json FROM churn_reports WHERE run_id = ?"), runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report for run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("load report for %s: %w", runID, err)
	}

	var report model.EvaluationReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("decode report for %s: %w", runID, err)
	}

	var rows []errorRow
	err = s.db.SelectContext(ctx, &rows, s.db.Rebind(
		"SELECT run_id, seq, kind, customer_id, row_num, message FROM churn_errors WHERE run_id = ? ORDER BY seq"), runID)
	if err != nil {
		return nil, fmt.Errorf("load errors for %s: %w", runID, err)
	}
	for _, r := range rows {
		report.Errors = append(report.Errors, model.ErrorRecord{
			Kind:       model.ParseErrorKind(r.Kind),
			CustomerID: r.CustomerID.String,
			Row:        r.RowNum,
			Message:    r.Message,
		})
	}

	return &report, nil
}

// insertBatches writes rows with one prepared named statement per
// transaction, committing every batchSize rows
func (s *Store) insertBatches(ctx context.Context, md *model.TableMetadata, rows []interface{}) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	query := converter.NamedInsertSQL(md, s.dialect)

	var total int64
	for start := 0; start < len(rows); start += s.batchSize {
		end := start + s.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		n, err := s.insertBatch(ctx, query, rows[start:end])
		total += n
		if err != nil {
			return total, fmt.Errorf("insert into %s at offset %d: %w", md.Table, start, err)
		}
	}

	s.logger.Debug("Inserted rows",
		zap.String("table", md.Table),
		zap.Int64("rows", total))
	return total, nil
}

func (s *Store) insertBatch(ctx context.Context, query string, rows []interface{}) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int64(len(rows)), nil
}

// RunCounts is the number of rows stored for one run per table
type RunCounts struct {
	Features    int
	Splits      int
	Predictions int
	Errors      int
}

// CountRun counts the rows stored for runID
func (s *Store) CountRun(ctx context.Context, runID string) (RunCounts, error) {
	var counts RunCounts
	targets := []struct {
		md  *model.TableMetadata
		dst *int
	}{
		{featuresTable(), &counts.Features},
		{splitsTable(), &counts.Splits},
		{predictionsTable(), &counts.Predictions},
		{errorsTable(), &counts.Errors},
	}
	for _, target := range targets {
		query := s.db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE run_id = ?",
			converter.QualifiedName(target.md, s.dialect)))
		if err := s.db.GetContext(ctx, target.dst, query, runID); err != nil {
			return counts, fmt.Errorf("count %s: %w", target.md.Table, err)
		}
	}
	return counts, nil
}

// VerifyRun checks the stored row counts against what the run produced
func (s *Store) VerifyRun(ctx context.Context, runID string, want RunCounts) error {
	got, err := s.CountRun(ctx, runID)
	if err != nil {
		return err
	}
	if got != want {
		s.logger.Error("Stored row counts do not match",
			zap.String("run_id", runID),
			zap.Any("expected", want),
			zap.Any("actual", got))
		return fmt.Errorf("run %s: stored counts %+v, expected %+v", runID, got, want)
	}
	return nil
}
