package scoring

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunMetrics tracks classifier calls for one scoring run
type RunMetrics struct {
	mu                sync.Mutex
	logger            *zap.Logger
	StartTime         time.Time             `json:"start_time"`
	EndTime           time.Time             `json:"end_time"`
	Records           int                   `json:"records"`
	Calls             int                   `json:"calls"`
	Succeeded         int                   `json:"succeeded"`
	Failed            int                   `json:"failed"`
	TimedOut          int                   `json:"timed_out"`
	Cancelled         int                   `json:"cancelled"`
	Retries           int                   `json:"retries"`
	TotalLatency      time.Duration         `json:"total_latency"`
	MaxLatency        time.Duration         `json:"max_latency"`
	WorkerUtilization map[int]time.Duration `json:"worker_utilization"`
	ErrorSamples      []string              `json:"error_samples,omitempty"`
	maxSamples        int
}

// NewRunMetrics creates a new metrics tracker for n records
func NewRunMetrics(n int, logger *zap.Logger) *RunMetrics {
	return &RunMetrics{
		logger:            logger,
		StartTime:         time.Now(),
		Records:           n,
		WorkerUtilization: make(map[int]time.Duration),
		maxSamples:        5,
	}
}

// RecordResult folds one worker result into the totals
func (rm *RunMetrics) RecordResult(r PredictResult) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if r.Attempts > 0 {
		rm.Calls += r.Attempts
		rm.Retries += r.Attempts - 1
		rm.TotalLatency += r.Duration
		if r.Duration > rm.MaxLatency {
			rm.MaxLatency = r.Duration
		}
		rm.WorkerUtilization[r.WorkerID] += r.Duration
	}

	switch {
	case r.Success():
		rm.Succeeded++
	case r.Attempts == 0:
		rm.Cancelled++
	case r.Err.TimedOut:
		rm.TimedOut++
	default:
		rm.Failed++
	}

	if r.Err != nil && len(rm.ErrorSamples) < rm.maxSamples {
		rm.ErrorSamples = append(rm.ErrorSamples, r.Err.Error())
	}
}

// RecordCancelled counts a record that was never handed to a worker
func (rm *RunMetrics) RecordCancelled() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.Cancelled++
}

// Complete marks the run as finished and logs the totals
func (rm *RunMetrics) Complete() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.EndTime = time.Now()
	if rm.logger != nil {
		rm.logger.Info("Scoring completed",
			zap.Duration("totalDuration", rm.EndTime.Sub(rm.StartTime)),
			zap.Int("records", rm.Records),
			zap.Int("succeeded", rm.Succeeded),
			zap.Int("failed", rm.Failed),
			zap.Int("timedOut", rm.TimedOut),
			zap.Int("cancelled", rm.Cancelled),
			zap.Duration("avgLatency", rm.averageLatency()),
			zap.Float64("throughput", rm.throughput()))
	}
}

// Duration returns the elapsed run time
func (rm *RunMetrics) Duration() time.Duration {
	if rm.EndTime.IsZero() {
		return time.Since(rm.StartTime)
	}
	return rm.EndTime.Sub(rm.StartTime)
}

// AverageLatency returns the mean time spent per scored record
func (rm *RunMetrics) AverageLatency() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.averageLatency()
}

func (rm *RunMetrics) averageLatency() time.Duration {
	n := rm.Succeeded + rm.Failed + rm.TimedOut
	if n == 0 {
		return 0
	}
	return rm.TotalLatency / time.Duration(n)
}

func (rm *RunMetrics) throughput() float64 {
	secs := rm.Duration().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(rm.Succeeded) / secs
}

// workerEfficiency returns each worker's busy share of the run.
// Callers hold rm.mu.
func (rm *RunMetrics) workerEfficiency() map[int]float64 {
	efficiency := make(map[int]float64, len(rm.WorkerUtilization))
	total := rm.Duration()
	if total <= 0 {
		return efficiency
	}
	for id, busy := range rm.WorkerUtilization {
		efficiency[id] = float64(busy) / float64(total)
	}
	return efficiency
}

// GenerateMetricsReport renders a human readable summary
func (rm *RunMetrics) GenerateMetricsReport() string {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("Scoring Metrics\n")
	sb.WriteString("===============\n")
	sb.WriteString(fmt.Sprintf("Duration:     %s\n", rm.Duration().Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Records:      %d\n", rm.Records))
	sb.WriteString(fmt.Sprintf("Calls:        %d (retries %d)\n", rm.Calls, rm.Retries))
	sb.WriteString(fmt.Sprintf("Succeeded:    %d\n", rm.Succeeded))
	sb.WriteString(fmt.Sprintf("Failed:       %d\n", rm.Failed))
	sb.WriteString(fmt.Sprintf("Timed out:    %d\n", rm.TimedOut))
	sb.WriteString(fmt.Sprintf("Cancelled:    %d\n", rm.Cancelled))
	sb.WriteString(fmt.Sprintf("Avg latency:  %s\n", rm.averageLatency()))
	sb.WriteString(fmt.Sprintf("Max latency:  %s\n", rm.MaxLatency))
	if eff := rm.workerEfficiency(); len(eff) > 0 {
		ids := make([]int, 0, len(eff))
		for id := range eff {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		sb.WriteString("Worker efficiency:\n")
		for _, id := range ids {
			sb.WriteString(fmt.Sprintf("  worker %d: %.1f%%\n", id, eff[id]*100))
		}
	}
	if len(rm.ErrorSamples) > 0 {
		sb.WriteString("Sample errors:\n")
		for _, s := range rm.ErrorSamples {
			sb.WriteString("  - " + s + "\n")
		}
	}
	return sb.String()
}

// ToJSON serializes the metrics
func (rm *RunMetrics) ToJSON() ([]byte, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return json.Marshal(rm)
}
