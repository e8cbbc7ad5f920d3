package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/churn-ml/pkg/config"
	"github.com/David-Botos/churn-ml/pkg/connector"
	"github.com/David-Botos/churn-ml/pkg/pipeline"
	"github.com/David-Botos/churn-ml/pkg/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Train and evaluate a churn classifier",
	Long: `Run the whole pipeline once: load, encode, split, train, score and
evaluate. The report is printed as a table and, when a store is configured,
persisted together with every intermediate artifact.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

var runFlags struct {
	source   string
	model    string
	csvPath  string
	fraction float64
	seed     int64
	report   string
	noStore  bool
}

func init() {
	runCmd.Flags().StringVar(&runFlags.source, "source", "", "Record source: csv or snowflake")
	runCmd.Flags().StringVar(&runFlags.model, "model", "", "Classifier: logistic or snowflake")
	runCmd.Flags().StringVar(&runFlags.csvPath, "csv", "", "Path to the customer CSV")
	runCmd.Flags().Float64Var(&runFlags.fraction, "fraction", 0, "Share of records sampled into the train set")
	runCmd.Flags().Int64Var(&runFlags.seed, "seed", 0, "Split seed; omitted means a fresh random seed")
	runCmd.Flags().StringVar(&runFlags.report, "report", "", "Write the JSON report to this path")
	runCmd.Flags().BoolVar(&runFlags.noStore, "no-store", false, "Do not persist run artifacts")

	rootCmd.AddCommand(runCmd)
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	p := &cfg.Pipeline
	if runFlags.source != "" {
		p.Source = runFlags.source
	}
	if runFlags.model != "" {
		p.Model = runFlags.model
	}
	if runFlags.csvPath != "" {
		p.CSVPath = runFlags.csvPath
	}
	if cmd.Flags().Changed("fraction") {
		p.SplitFraction = runFlags.fraction
	}
	if cmd.Flags().Changed("seed") {
		seed := runFlags.seed
		p.Seed = &seed
	}
	if runFlags.report != "" {
		p.ReportPath = runFlags.report
	}
	if runFlags.noStore {
		p.StoreDriver = "none"
	}
	if cfg.NeedsSnowflake() && cfg.Snowflake == nil {
		cfg.Snowflake = &config.SnowflakeConfig{}
	}
	return cfg.Validate()
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := applyRunFlags(cmd, cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory := connector.NewFactory(cfg, logger)
	p := pipeline.New(cfg, logger)

	if cfg.NeedsSnowflake() {
		sf, err := connector.OpenValidated(ctx, factory.Snowflake)
		if err != nil {
			return err
		}
		defer sf.Close()
		p.WithSnowflake(sf)
	}

	st, closeStore, err := openStore(ctx, cfg, factory, logger)
	if err != nil {
		return err
	}
	if st != nil {
		defer closeStore()
		p.WithStore(st)
	}

	summary, err := p.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s  seed %d  train %d  test %d  filtered %d  schema errors %d\n\n",
		summary.RunID, summary.Seed, summary.TrainSize, summary.TestSize, summary.Filtered, summary.SchemaErrors)
	if err := summary.Report.WriteTable(out); err != nil {
		return err
	}
	if summary.Metrics != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, summary.Metrics.GenerateMetricsReport())
	}
	return nil
}

// openStore returns nil when persistence is disabled. A postgres store
// without STORE_DSN reuses the postgres connector's pool.
func openStore(ctx context.Context, cfg *config.Config, factory *connector.Factory, logger *zap.Logger) (*store.Store, func(), error) {
	driver := strings.ToLower(cfg.Pipeline.StoreDriver)

	var st *store.Store
	var err error
	switch {
	case driver == "" || driver == "none":
		return nil, nil, nil
	case (driver == "pgx" || driver == "postgres") && cfg.Pipeline.StoreDSN == "":
		pg, cerr := connector.OpenValidated(ctx, factory.Postgres)
		if cerr != nil {
			return nil, nil, cerr
		}
		st, err = store.New(pg.DB(), "pgx", logger)
	default:
		st, err = store.Open(driver, cfg.StoreDSN(), logger)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, func() { st.Close() }, nil
}
