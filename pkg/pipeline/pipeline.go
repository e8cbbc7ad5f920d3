// Package pipeline wires the loader, encoder, splitter, classifier, scorer,
// evaluator and store into a single run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David-Botos/churn-ml/pkg/classifier"
	"github.com/David-Botos/churn-ml/pkg/config"
	"github.com/David-Botos/churn-ml/pkg/connector"
	"github.com/David-Botos/churn-ml/pkg/evaluate"
	"github.com/David-Botos/churn-ml/pkg/features"
	"github.com/David-Botos/churn-ml/pkg/loader"
	"github.com/David-Botos/churn-ml/pkg/model"
	"github.com/David-Botos/churn-ml/pkg/scoring"
	"github.com/David-Botos/churn-ml/pkg/split"
	"github.com/David-Botos/churn-ml/pkg/store"
)

// ErrEmptyTrainSet is returned when the split leaves nothing to train on
var ErrEmptyTrainSet = errors.New("split produced an empty training set")

// RunSummary describes a finished run
type RunSummary struct {
	RunID        string
	Seed         int64
	RowsRead     int
	Records      int
	Filtered     int
	SchemaErrors int
	TrainSize    int
	TestSize     int
	Model        string
	Report       *evaluate.Report
	Metrics      *scoring.RunMetrics
	// Errors holds every per-record error of the run in stage order
	Errors   []model.ErrorRecord
	Duration time.Duration
}

// Pipeline runs the churn workflow once per Run call
type Pipeline struct {
	cfg        *config.Config
	snowflake  *connector.SnowflakeConnector
	store      *store.Store
	classifier classifier.Classifier
	logger     *zap.Logger
}

// New creates a pipeline for cfg. Connections are supplied with the With
// methods; a Snowflake connector is required when the source or model is
// Snowflake.
func New(cfg *config.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:    cfg,
		logger: logger.Named("pipeline"),
	}
}

// WithSnowflake sets the warehouse connection
func (p *Pipeline) WithSnowflake(conn *connector.SnowflakeConnector) *Pipeline {
	p.snowflake = conn
	return p
}

// WithStore sets the result sink; without one nothing is persisted
func (p *Pipeline) WithStore(st *store.Store) *Pipeline {
	p.store = st
	return p
}

// WithClassifier overrides the classifier selected by the configuration
func (p *Pipeline) WithClassifier(clf classifier.Classifier) *Pipeline {
	p.classifier = clf
	return p
}

// Run executes every stage. Per-record errors are collected in the summary;
// only infrastructure failures are returned.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	pc := p.cfg.Pipeline
	summary := &RunSummary{RunID: uuid.NewString(), Model: pc.Model}
	logger := p.logger.With(zap.String("run_id", summary.RunID))

	run := &store.Run{
		RunID:         summary.RunID,
		Source:        pc.Source,
		Model:         pc.Model,
		SplitFraction: pc.SplitFraction,
		StartedAt:     start.UTC(),
	}
	if p.store != nil {
		if err := p.store.CreateRun(ctx, run); err != nil {
			return nil, err
		}
	}

	err := p.execute(ctx, summary, logger)
	summary.Duration = time.Since(start)

	if p.store != nil {
		run.Seed = summary.Seed
		run.RowsRead = summary.RowsRead
		run.Records = summary.Records
		run.Filtered = summary.Filtered
		run.SchemaErrors = summary.SchemaErrors
		run.TrainSize = summary.TrainSize
		run.TestSize = summary.TestSize
		if summary.Metrics != nil {
			if data, merr := summary.Metrics.ToJSON(); merr == nil {
				run.ScoringMetrics.String, run.ScoringMetrics.Valid = string(data), true
			} else {
				logger.Warn("Failed to encode scoring metrics", zap.Error(merr))
			}
		}
		run.Status = store.StatusSucceeded
		if err != nil {
			run.Status = store.StatusFailed
			run.Error.String, run.Error.Valid = err.Error(), true
		}
		// the run row is closed even when ctx was cancelled mid-run
		if cerr := p.store.CompleteRun(context.WithoutCancel(ctx), run); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	if err != nil {
		logger.Error("Run failed", zap.Error(err), zap.Duration("duration", summary.Duration))
		return summary, err
	}

	logger.Info("Run completed",
		zap.Int("records", summary.Records),
		zap.Int("train", summary.TrainSize),
		zap.Int("test", summary.TestSize),
		zap.Int("errors", len(summary.Errors)),
		zap.Float64("accuracy", summary.Report.Metrics.Accuracy),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

func (p *Pipeline) execute(ctx context.Context, summary *RunSummary, logger *zap.Logger) error {
	pc := p.cfg.Pipeline

	loaded, err := p.load(ctx)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	summary.RowsRead = loaded.RowsRead
	summary.Errors = append(summary.Errors, loaded.Errors...)
	logger.Info("Loaded raw records",
		zap.Int("rows", loaded.RowsRead),
		zap.Int("records", len(loaded.Records)),
		zap.Int("rejected", loaded.Rejected()))

	encoded, err := features.NewEncoder(pc.EncodeWorkers, logger).EncodeParallel(ctx, loaded.Records)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	summary.Records = len(encoded.Features)
	summary.Filtered = encoded.Filtered
	summary.Errors = append(summary.Errors, encoded.Errors...)
	summary.SchemaErrors = loaded.Rejected() + len(encoded.Errors)
	logger.Info("Encoded features",
		zap.Int("features", len(encoded.Features)),
		zap.Int("filtered", encoded.Filtered),
		zap.Int("schema_errors", len(encoded.Errors)))

	full, err := model.NewDataset("churn", encoded.Features)
	if err != nil {
		return fmt.Errorf("build dataset: %w", err)
	}

	parts, err := split.Split(full, split.Options{Fraction: pc.SplitFraction, Seed: pc.Seed})
	if err != nil {
		return fmt.Errorf("split: %w", err)
	}
	if err := split.Verify(full, parts.Train, parts.Test); err != nil {
		return fmt.Errorf("split verification: %w", err)
	}
	summary.Seed = parts.Seed
	summary.TrainSize = parts.Train.Len()
	summary.TestSize = parts.Test.Len()
	logger.Info("Split dataset",
		zap.Int64("seed", parts.Seed),
		zap.Float64("fraction", parts.Fraction),
		zap.Int("train", parts.Train.Len()),
		zap.Int("test", parts.Test.Len()))

	if parts.Train.Len() == 0 {
		return fmt.Errorf("train: %w (fraction %v)", ErrEmptyTrainSet, parts.Fraction)
	}

	clf, err := p.buildClassifier(parts.Seed)
	if err != nil {
		return err
	}

	trainStart := time.Now()
	handle, err := clf.Train(ctx, parts.Train)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	logger.Info("Trained model",
		zap.String("model", handle.Name()),
		zap.Duration("duration", time.Since(trainStart)))
	defer p.dropModel(ctx, clf, handle, logger)

	batch := scoring.NewScorer(clf, logger).
		WithWorkerCount(pc.WorkerPoolSize).
		WithTimeout(pc.PredictTimeout).
		WithMaxRetries(pc.MaxRetries).
		Score(ctx, handle, parts.Test)
	summary.Metrics = batch.Metrics
	logger.Info("Scored test set",
		zap.Int("predictions", len(batch.Predictions)),
		zap.Int("failures", len(batch.Failures)),
		zap.Duration("avgLatency", batch.Metrics.AverageLatency()))
	if err := ctx.Err(); err != nil {
		summary.Report = evaluate.Evaluate(batch.Predictions, batch.Failures)
		return fmt.Errorf("scoring interrupted: %w", context.Cause(ctx))
	}

	report, err := evaluate.EvaluateParallel(ctx, batch.Predictions, batch.Failures, pc.EncodeWorkers)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	summary.Report = report
	summary.Errors = append(summary.Errors, report.Errors...)

	if err := p.persist(ctx, summary, encoded.Features, parts, batch); err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	if pc.ReportPath != "" {
		data, err := report.JSON()
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		if err := os.WriteFile(pc.ReportPath, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info("Wrote report", zap.String("path", pc.ReportPath))
	}

	return nil
}

func (p *Pipeline) load(ctx context.Context) (*loader.LoadResult, error) {
	switch p.cfg.Pipeline.Source {
	case config.SourceSnowflake:
		if p.snowflake == nil {
			return nil, errors.New("snowflake source selected without a connection")
		}
		return loader.NewTableSource(p.snowflake.DB(), p.snowflake.RawTable(), p.logger).Fetch(ctx)
	default:
		return loader.NewLoader(p.logger).LoadCSVFile(ctx, p.cfg.Pipeline.CSVPath)
	}
}

func (p *Pipeline) buildClassifier(seed int64) (classifier.Classifier, error) {
	if p.classifier != nil {
		return p.classifier, nil
	}

	lc := p.cfg.Pipeline.Logistic
	opts := classifier.Options{
		Logistic: classifier.LogisticConfig{
			LearningRate: lc.LearningRate,
			Epochs:       lc.Epochs,
			BatchSize:    lc.BatchSize,
			Threshold:    lc.Threshold,
			Seed:         seed,
		},
		Logger: p.logger,
	}
	if p.cfg.Pipeline.Model == config.ModelSnowflake {
		if p.snowflake == nil {
			return nil, errors.New("snowflake model selected without a connection")
		}
		opts.DB = p.snowflake.DB()
		opts.Schema = p.cfg.Snowflake.Schema
		opts.TrainTimeout = p.cfg.Pipeline.TrainTimeout
	}

	clf, err := classifier.New(p.cfg.Pipeline.Model, opts)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	return clf, nil
}

// dropModel removes warehouse objects created by training
func (p *Pipeline) dropModel(ctx context.Context, clf classifier.Classifier, handle classifier.ModelHandle, logger *zap.Logger) {
	sf, ok := clf.(*classifier.Snowflake)
	if !ok {
		return
	}
	m, ok := handle.(*classifier.SnowflakeModel)
	if !ok {
		return
	}
	if err := sf.Drop(context.WithoutCancel(ctx), m); err != nil {
		logger.Warn("Failed to drop model", zap.String("model", m.Model), zap.Error(err))
	}
}

func (p *Pipeline) persist(ctx context.Context, summary *RunSummary, feats []model.FeatureRecord, parts *split.Result, batch *scoring.Batch) error {
	if p.store == nil {
		return nil
	}
	runID := summary.RunID

	if _, err := p.store.SaveFeatures(ctx, runID, feats); err != nil {
		return err
	}
	if _, err := p.store.SaveSplit(ctx, runID, parts.Train, parts.Test); err != nil {
		return err
	}
	if _, err := p.store.SavePredictions(ctx, runID, batch.Predictions, batch.Failures); err != nil {
		return err
	}
	if _, err := p.store.SaveErrors(ctx, runID, summary.Errors); err != nil {
		return err
	}
	if err := p.store.SaveReport(ctx, runID, &summary.Report.EvaluationReport); err != nil {
		return err
	}

	return p.store.VerifyRun(ctx, runID, store.RunCounts{
		Features:    len(feats),
		Splits:      parts.Train.Len() + parts.Test.Len(),
		Predictions: batch.Total(),
		Errors:      len(summary.Errors),
	})
}
