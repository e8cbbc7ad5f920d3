// pkg/classifier/snowflake.go
package classifier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// SQLExecutor is the subset of *sql.DB the Snowflake backend needs
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Snowflake trains and serves a SNOWFLAKE.ML.CLASSIFICATION model object
// inside the warehouse. Training data is uploaded into a scratch table.
type Snowflake struct {
	db           SQLExecutor
	schema       string
	insertBatch  int
	trainTimeout time.Duration
	logger       *zap.Logger
}

// SnowflakeModel names the model object and its training table
type SnowflakeModel struct {
	Model      string
	TrainTable string
	Rows       int
}

// Name implements ModelHandle
func (m *SnowflakeModel) Name() string { return m.Model }

// NewSnowflake creates a Snowflake ML backend writing into schema
func NewSnowflake(db SQLExecutor, schema string, logger *zap.Logger) *Snowflake {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snowflake{
		db:           db,
		schema:       schema,
		insertBatch:  500,
		trainTimeout: 30 * time.Minute,
		logger:       logger.Named("snowflake-ml"),
	}
}

// WithTrainTimeout bounds model creation
func (s *Snowflake) WithTrainTimeout(d time.Duration) *Snowflake {
	if d > 0 {
		s.trainTimeout = d
	}
	return s
}

// Train uploads ds and creates the classification model
func (s *Snowflake) Train(ctx context.Context, ds *model.Dataset) (ModelHandle, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, errors.New("cannot train on an empty dataset")
	}

	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:12]
	handle := &SnowflakeModel{
		Model:      s.qualify("CHURN_MODEL_" + suffix),
		TrainTable: s.qualify("CHURN_TRAIN_" + suffix),
		Rows:       ds.Len(),
	}

	s.logger.Info("Uploading training data",
		zap.String("table", handle.TrainTable),
		zap.Int("rows", ds.Len()))

	if _, err := s.db.ExecContext(ctx, CreateTrainTableSQL(handle.TrainTable)); err != nil {
		return nil, fmt.Errorf("failed to create training table: %w", err)
	}

	records := ds.Records()
	for i := 0; i < len(records); i += s.insertBatch {
		end := i + s.insertBatch
		if end > len(records) {
			end = len(records)
		}
		query, args := InsertTrainRowsSQL(handle.TrainTable, records[i:end])
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("failed to insert training rows at offset %d: %w", i, err)
		}
	}

	trainCtx, cancel := context.WithTimeout(ctx, s.trainTimeout)
	defer cancel()

	start := time.Now()
	if _, err := s.db.ExecContext(trainCtx, CreateModelSQL(handle.Model, handle.TrainTable)); err != nil {
		return nil, fmt.Errorf("failed to create classification model: %w", err)
	}

	s.logger.Info("Trained Snowflake classification model",
		zap.String("model", handle.Model),
		zap.Duration("duration", time.Since(start)))

	return handle, nil
}

// Predict calls <model>!PREDICT for one record
func (s *Snowflake) Predict(ctx context.Context, handle ModelHandle, rec model.FeatureRecord) (Result, error) {
	m, ok := handle.(*SnowflakeModel)
	if !ok {
		return Result{}, wrongHandle("snowflake", handle)
	}

	query, args := PredictSQL(m.Model, rec)
	var raw string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return Result{}, fmt.Errorf("predict query failed: %w", err)
	}

	return ParsePrediction(raw)
}

// Drop removes the model object and its training table
func (s *Snowflake) Drop(ctx context.Context, handle *SnowflakeModel) error {
	if _, err := s.db.ExecContext(ctx, "DROP SNOWFLAKE.ML.CLASSIFICATION IF EXISTS "+handle.Model); err != nil {
		return fmt.Errorf("failed to drop model %s: %w", handle.Model, err)
	}
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+handle.TrainTable); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", handle.TrainTable, err)
	}
	return nil
}

func (s *Snowflake) qualify(name string) string {
	if s.schema == "" {
		return name
	}
	return s.schema + "." + name
}

// CreateTrainTableSQL builds the scratch table DDL. The identifier is not
// uploaded so the model cannot learn from it.
func CreateTrainTableSQL(table string) string {
	cols := make([]string, 0, len(model.FeatureNames)+1)
	for _, name := range model.FeatureNames {
		cols = append(cols, strings.ToUpper(name)+" FLOAT")
	}
	cols = append(cols, "CHURN_LABEL NUMBER(1,0)")
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", table, strings.Join(cols, ", "))
}

// InsertTrainRowsSQL builds one multi-row INSERT with positional binds
func InsertTrainRowsSQL(table string, records []model.FeatureRecord) (string, []interface{}) {
	width := len(model.FeatureNames) + 1
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"

	rows := make([]string, len(records))
	args := make([]interface{}, 0, len(records)*width)
	for i, rec := range records {
		rows[i] = placeholder
		for _, v := range rec.Vector() {
			args = append(args, v)
		}
		args = append(args, rec.ChurnLabel)
	}

	cols := make([]string, 0, width)
	for _, name := range model.FeatureNames {
		cols = append(cols, strings.ToUpper(name))
	}
	cols = append(cols, "CHURN_LABEL")

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(cols, ", "), strings.Join(rows, ", ")), args
}

// CreateModelSQL builds the model creation statement
func CreateModelSQL(modelName, table string) string {
	return fmt.Sprintf(
		"CREATE OR REPLACE SNOWFLAKE.ML.CLASSIFICATION %s(INPUT_DATA => SYSTEM$REFERENCE('TABLE', '%s'), TARGET_COLNAME => 'CHURN_LABEL')",
		modelName, table)
}

// PredictSQL builds the single-record inference query
func PredictSQL(modelName string, rec model.FeatureRecord) (string, []interface{}) {
	pairs := make([]string, len(model.FeatureNames))
	args := make([]interface{}, 0, len(model.FeatureNames))
	for i, name := range model.FeatureNames {
		pairs[i] = fmt.Sprintf("'%s', ?", strings.ToUpper(name))
	}
	for _, v := range rec.Vector() {
		args = append(args, v)
	}
	return fmt.Sprintf("SELECT %s!PREDICT(INPUT_DATA => OBJECT_CONSTRUCT(%s))::VARCHAR",
		modelName, strings.Join(pairs, ", ")), args
}

// ParsePrediction decodes the VARIANT returned by PREDICT, e.g.
// {"class":"1","probability":{"0":0.12,"1":0.88}}. Class keys are mapped
// from the 0/1 churn_label to Yes/No.
func ParsePrediction(raw string) (Result, error) {
	if !gjson.Valid(raw) {
		return Result{}, fmt.Errorf("invalid prediction payload: %q", raw)
	}

	parsed := gjson.Parse(raw)
	class := parsed.Get("class")
	if !class.Exists() {
		return Result{}, fmt.Errorf("prediction payload has no class: %s", raw)
	}

	result := Result{
		Class:         normalizeClass(class.String()),
		Probabilities: make(map[string]float64),
	}
	parsed.Get("probability").ForEach(func(key, value gjson.Result) bool {
		result.Probabilities[normalizeClass(key.String())] = value.Float()
		return true
	})

	return result, nil
}

func normalizeClass(c string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "1", "true", "yes":
		return model.LabelYes
	case "0", "false", "no":
		return model.LabelNo
	default:
		return c
	}
}
