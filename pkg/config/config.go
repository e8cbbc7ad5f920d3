// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Data sources and model backends accepted in the pipeline section
const (
	SourceCSV       = "csv"
	SourceSnowflake = "snowflake"
	ModelLogistic   = "logistic"
	ModelSnowflake  = "snowflake"
)

// defaultConfigPath is read when CHURN_CONFIG is not set; missing is fine
const defaultConfigPath = "churn.yaml"

// Config represents the application configuration
type Config struct {
	// Database connections; nil when not configured
	Snowflake *SnowflakeConfig `yaml:"snowflake"`
	Postgres  *PostgresConfig  `yaml:"postgres"`

	Pipeline PipelineConfig `yaml:"pipeline"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// PipelineConfig holds the settings of a single run
type PipelineConfig struct {
	CSVPath        string         `yaml:"csv_path"`
	Source         string         `yaml:"source"`
	Model          string         `yaml:"model"`
	SplitFraction  float64        `yaml:"split_fraction"`
	Seed           *int64         `yaml:"seed"`
	WorkerPoolSize int            `yaml:"worker_pool_size"` // 0 means derive from CPU count
	EncodeWorkers  int            `yaml:"encode_workers"`
	PredictTimeout time.Duration  `yaml:"predict_timeout"`
	TrainTimeout   time.Duration  `yaml:"train_timeout"` // warehouse model creation; 0 keeps the backend default
	MaxRetries     int            `yaml:"max_retries"`
	StoreDriver    string         `yaml:"store_driver"`
	StoreDSN       string         `yaml:"store_dsn"`
	ReportPath     string         `yaml:"report_path"`
	Logistic       LogisticConfig `yaml:"logistic"`
}

// LogisticConfig holds the in-process model hyper-parameters
type LogisticConfig struct {
	LearningRate float64 `yaml:"learning_rate"`
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	Threshold    float64 `yaml:"threshold"`
}

// LoadConfig builds the configuration from, in increasing precedence,
// defaults, the YAML file named by CHURN_CONFIG, a .env file and the
// process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()

	path := defaultConfigPath
	explicit := false
	if p := os.Getenv("CHURN_CONFIG"); p != "" {
		path, explicit = p, true
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			CSVPath:        "WA_Fn-UseC_-Telco-Customer-Churn.csv",
			Source:         SourceCSV,
			Model:          ModelLogistic,
			SplitFraction:  0.8,
			PredictTimeout: 30 * time.Second,
			StoreDriver:    "sqlite",
			StoreDSN:       "churn.db",
			Logistic: LogisticConfig{
				LearningRate: 0.1,
				Epochs:       200,
				BatchSize:    64,
				Threshold:    0.5,
			},
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

func (c *Config) loadFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	p := &c.Pipeline
	overrideString(&p.CSVPath, "CHURN_CSV_PATH")
	overrideString(&p.Source, "CHURN_SOURCE")
	overrideString(&p.Model, "CHURN_MODEL")
	overrideString(&p.StoreDriver, "STORE_DRIVER")
	overrideString(&p.StoreDSN, "STORE_DSN")
	overrideString(&p.ReportPath, "REPORT_PATH")
	overrideString(&c.LogLevel, "LOG_LEVEL")
	overrideString(&c.LogFormat, "LOG_FORMAT")

	var errs []error
	errs = append(errs,
		overrideFloat(&p.SplitFraction, "CHURN_SPLIT_FRACTION"),
		overrideInt(&p.WorkerPoolSize, "WORKER_POOL_SIZE"),
		overrideInt(&p.EncodeWorkers, "ENCODE_WORKERS"),
		overrideInt(&p.MaxRetries, "PREDICT_MAX_RETRIES"),
		overrideDuration(&p.PredictTimeout, "PREDICT_TIMEOUT"),
		overrideDuration(&p.TrainTimeout, "TRAIN_TIMEOUT"),
		overrideFloat(&p.Logistic.LearningRate, "LOGISTIC_LEARNING_RATE"),
		overrideInt(&p.Logistic.Epochs, "LOGISTIC_EPOCHS"),
		overrideInt(&p.Logistic.BatchSize, "LOGISTIC_BATCH_SIZE"),
		overrideFloat(&p.Logistic.Threshold, "LOGISTIC_THRESHOLD"),
	)

	if v := os.Getenv("CHURN_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHURN_SEED: %w", err))
		} else {
			p.Seed = &seed
		}
	}

	if os.Getenv("SNOWFLAKE_ACCOUNT") != "" || c.Snowflake != nil {
		if c.Snowflake == nil {
			c.Snowflake = &SnowflakeConfig{}
		}
		errs = append(errs, c.Snowflake.applyEnv())
	}
	if os.Getenv("POSTGRES_DB") != "" || c.Postgres != nil {
		if c.Postgres == nil {
			c.Postgres = &PostgresConfig{}
		}
		errs = append(errs, c.Postgres.applyEnv())
	}

	return errors.Join(errs...)
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	p := c.Pipeline

	switch p.Source {
	case SourceCSV:
		if p.CSVPath == "" {
			return errors.New("csv path is required for the csv source")
		}
	case SourceSnowflake:
	default:
		return fmt.Errorf("unknown source %q (want csv or snowflake)", p.Source)
	}

	switch p.Model {
	case ModelLogistic, ModelSnowflake:
	default:
		return fmt.Errorf("unknown model %q (want logistic or snowflake)", p.Model)
	}

	if c.NeedsSnowflake() {
		if c.Snowflake == nil {
			return errors.New("snowflake configuration is required for the selected source or model")
		}
		if err := c.Snowflake.Validate(); err != nil {
			return err
		}
	}

	if math.IsNaN(p.SplitFraction) {
		return errors.New("split fraction must be a number")
	}
	if p.WorkerPoolSize < 0 {
		return errors.New("worker pool size cannot be negative")
	}
	if p.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if p.PredictTimeout < 0 {
		return errors.New("predict timeout cannot be negative")
	}
	if p.TrainTimeout < 0 {
		return errors.New("train timeout cannot be negative")
	}

	switch strings.ToLower(p.StoreDriver) {
	case "sqlite":
		if p.StoreDSN == "" {
			return errors.New("store DSN is required for sqlite")
		}
	case "pgx", "postgres":
		if p.StoreDSN == "" && c.Postgres == nil {
			return errors.New("postgres store needs STORE_DSN or a postgres section")
		}
	case "", "none":
	default:
		return fmt.Errorf("unknown store driver %q", p.StoreDriver)
	}

	return nil
}

// NeedsSnowflake reports whether the run reads from or trains in Snowflake
func (c *Config) NeedsSnowflake() bool {
	return c.Pipeline.Source == SourceSnowflake || c.Pipeline.Model == ModelSnowflake
}

// StoreDSN returns the result sink DSN, falling back to the postgres section
func (c *Config) StoreDSN() string {
	if c.Pipeline.StoreDSN != "" {
		return c.Pipeline.StoreDSN
	}
	if c.Postgres != nil {
		return c.Postgres.ConnectionString()
	}
	return ""
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func overrideString(field *string, key string) {
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}

func overrideInt(field *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*field = n
	return nil
}

func overrideFloat(field *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*field = f
	return nil
}

// overrideDuration accepts Go durations ("45s") or plain seconds ("45")
func overrideDuration(field *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*field = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*field = d
	return nil
}
