package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/David-Botos/churn-ml/pkg/config"
	"github.com/David-Botos/churn-ml/pkg/connector"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap [csv]",
	Short: "Create the Snowflake warehouse objects and load the raw table",
	Long: `Create the warehouse, database and raw customer table if they do not
exist, then PUT the CSV onto the internal stage and COPY it into the raw
table. Rows Snowflake cannot parse are skipped and counted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBootstrap,
}

var bootstrapFlags struct {
	skipLoad bool
}

func init() {
	bootstrapCmd.Flags().BoolVar(&bootstrapFlags.skipLoad, "skip-load", false, "Only create objects; do not stage the CSV")
	rootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Snowflake == nil {
		return fmt.Errorf("snowflake is not configured (set SNOWFLAKE_ACCOUNT)")
	}

	path := cfg.Pipeline.CSVPath
	if len(args) == 1 {
		path = args[0]
	}

	ctx := cmd.Context()
	sf, err := connector.NewFactory(cfg, logger).Snowflake(ctx)
	if err != nil {
		return err
	}
	defer sf.Close()

	if err := sf.Bootstrap(ctx); err != nil {
		return err
	}
	if bootstrapFlags.skipLoad {
		return nil
	}

	stats, err := sf.StageAndCopyCSV(ctx, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d of %d rows into %s (%d rejected)\n",
		stats.RowsLoaded, stats.RowsParsed, describeTable(cfg.Snowflake), stats.Rejected())
	if stats.FirstError != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "first error: %s\n", stats.FirstError)
	}
	return nil
}

func describeTable(cfg *config.SnowflakeConfig) string {
	return cfg.Database + "." + cfg.Schema + "." + cfg.RawTable
}
