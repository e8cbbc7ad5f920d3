// pkg/classifier/logistic.go
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// LogisticConfig holds the training hyper-parameters
type LogisticConfig struct {
	LearningRate float64
	Epochs       int
	BatchSize    int
	Threshold    float64
	Seed         int64
}

// DefaultLogisticConfig returns the defaults used by the CLI
func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{
		LearningRate: 0.1,
		Epochs:       200,
		BatchSize:    64,
		Threshold:    0.5,
		Seed:         1,
	}
}

// Logistic is an in-process binary logistic regression trained with
// mini-batch gradient descent on standardized features.
type Logistic struct {
	cfg    LogisticConfig
	logger *zap.Logger
}

// LogisticModel is the trained state; it is read-only after Train
type LogisticModel struct {
	W         []float64
	B         float64
	Mean      []float64
	Std       []float64
	Threshold float64
	Rows      int
}

// Name implements ModelHandle
func (m *LogisticModel) Name() string { return "logistic" }

// NewLogistic creates a logistic classifier
func NewLogistic(cfg LogisticConfig, logger *zap.Logger) *Logistic {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultLogisticConfig()
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		cfg.Threshold = def.Threshold
	}
	return &Logistic{cfg: cfg, logger: logger.Named("logistic")}
}

// Train fits the model on ds
func (l *Logistic) Train(ctx context.Context, ds *model.Dataset) (ModelHandle, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, errors.New("cannot train on an empty dataset")
	}

	records := ds.Records()
	X := make([][]float64, len(records))
	Y := make([]float64, len(records))
	for i, rec := range records {
		X[i] = rec.Vector()
		Y[i] = float64(rec.ChurnLabel)
	}

	nFeatures := len(model.FeatureNames)
	m := &LogisticModel{
		W:         make([]float64, nFeatures),
		Mean:      make([]float64, nFeatures),
		Std:       make([]float64, nFeatures),
		Threshold: l.cfg.Threshold,
		Rows:      len(records),
	}
	m.fitScaler(X)

	Z := make([][]float64, len(X))
	for i, row := range X {
		Z[i] = m.standardize(row)
	}

	rng := rand.New(rand.NewSource(l.cfg.Seed))
	// Small random weights break symmetry
	for i := range m.W {
		m.W[i] = rng.NormFloat64() * 0.01
	}

	order := make([]int, len(Z))
	for i := range order {
		order[i] = i
	}

	var loss float64
	for ep := 0; ep < l.cfg.Epochs; ep++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += l.cfg.BatchSize {
			end := start + l.cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			m.step(Z, Y, order[start:end], l.cfg.LearningRate)
		}

		if ep == l.cfg.Epochs-1 {
			loss = m.logLoss(Z, Y)
		}
	}

	l.logger.Info("Trained logistic model",
		zap.Int("rows", len(records)),
		zap.Int("epochs", l.cfg.Epochs),
		zap.Float64("logLoss", loss))

	return m, nil
}

// Predict scores one record
func (l *Logistic) Predict(ctx context.Context, handle ModelHandle, rec model.FeatureRecord) (Result, error) {
	m, ok := handle.(*LogisticModel)
	if !ok {
		return Result{}, wrongHandle("logistic", handle)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	p := m.proba(m.standardize(rec.Vector()))
	if math.IsNaN(p) {
		return Result{}, fmt.Errorf("model produced NaN for customer %s", rec.CustomerID)
	}

	class := model.LabelNo
	if p >= m.Threshold {
		class = model.LabelYes
	}
	return Result{
		Class: class,
		Probabilities: map[string]float64{
			model.LabelYes: p,
			model.LabelNo:  1 - p,
		},
	}, nil
}

func (m *LogisticModel) fitScaler(X [][]float64) {
	n := float64(len(X))
	for _, row := range X {
		for j, v := range row {
			m.Mean[j] += v / n
		}
	}
	for _, row := range X {
		for j, v := range row {
			d := v - m.Mean[j]
			m.Std[j] += d * d / n
		}
	}
	for j := range m.Std {
		m.Std[j] = math.Sqrt(m.Std[j])
		if m.Std[j] == 0 {
			m.Std[j] = 1
		}
	}
}

func (m *LogisticModel) standardize(row []float64) []float64 {
	z := make([]float64, len(row))
	for j, v := range row {
		z[j] = (v - m.Mean[j]) / m.Std[j]
	}
	return z
}

func (m *LogisticModel) proba(z []float64) float64 {
	sum := m.B
	for j, v := range z {
		sum += m.W[j] * v
	}
	return sigmoid(sum)
}

// step applies one gradient update of binary cross-entropy over batch
func (m *LogisticModel) step(Z [][]float64, Y []float64, batch []int, lr float64) {
	gW := make([]float64, len(m.W))
	gb := 0.0
	for _, i := range batch {
		d := m.proba(Z[i]) - Y[i]
		for j, v := range Z[i] {
			gW[j] += d * v
		}
		gb += d
	}
	n := float64(len(batch))
	for j := range m.W {
		m.W[j] -= lr * gW[j] / n
	}
	m.B -= lr * gb / n
}

func (m *LogisticModel) logLoss(Z [][]float64, Y []float64) float64 {
	const eps = 1e-12
	var s float64
	for i, z := range Z {
		p := m.proba(z)
		s -= Y[i]*math.Log(p+eps) + (1-Y[i])*math.Log(1-p+eps)
	}
	return s / float64(len(Z))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
