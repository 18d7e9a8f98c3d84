package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
	"github.com/malbeclabs/stakes/stakes/pkg/history"
	"github.com/malbeclabs/stakes/stakes/pkg/metrics"
	"github.com/malbeclabs/stakes/stakes/pkg/report"
	"github.com/malbeclabs/stakes/stakes/pkg/snapshot"
)

type HistoryCmd struct{}

func NewHistoryCmd() *HistoryCmd {
	return &HistoryCmd{}
}

func (c *HistoryCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Analyze every stored snapshot and track the coefficients over time",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, opts, store, err := setup(cmd)
			if err != nil {
				return err
			}
			quarterly, err := cmd.Flags().GetBool("quarterly")
			if err != nil {
				return fmt.Errorf("failed to get quarterly flag: %w", err)
			}
			csvPath, err := cmd.Flags().GetString("csv")
			if err != nil {
				return fmt.Errorf("failed to get csv flag: %w", err)
			}
			poolSize, err := cmd.Flags().GetInt("pool-size")
			if err != nil {
				return fmt.Errorf("failed to get pool-size flag: %w", err)
			}

			dates, err := store.Dates()
			if err != nil {
				return err
			}
			if quarterly {
				dates = snapshot.QuarterlyDates(dates)
			}
			if len(dates) == 0 {
				return fmt.Errorf("no snapshots found in %s", store.Root())
			}

			cfg := opts.engineConfig()
			cfg.Logger = log
			eng, err := engine.NewAnalyzer(cfg)
			if err != nil {
				return fmt.Errorf("failed to create analyzer: %w", err)
			}
			analyzer, err := history.NewAnalyzer(history.AnalyzerConfig{
				Logger:   log,
				Loader:   store,
				Engine:   eng,
				PoolSize: poolSize,
				Observe:  metrics.ObserveAnalysis,
			})
			if err != nil {
				return fmt.Errorf("failed to create history analyzer: %w", err)
			}
			defer analyzer.Close()

			ctx := cmd.Context()
			results, err := analyzer.Run(ctx, dates)
			if err != nil {
				return err
			}

			db, err := history.NewStore(ctx, history.StoreConfig{Logger: log, Path: opts.historyDBPath()})
			if err != nil {
				return err
			}
			defer db.Close()

			rows := make([]history.Row, 0, len(results))
			for _, res := range results {
				rows = append(rows, history.NewRow(res))
			}
			if err := db.Upsert(ctx, rows); err != nil {
				return err
			}
			log.Info("history: stored snapshot metrics", "snapshots", len(rows), "db", opts.historyDBPath())

			stored, err := db.List(ctx, opts.Group)
			if err != nil {
				return err
			}
			if csvPath == "" {
				report.WriteHistory(cmd.OutOrStdout(), stored)
				return nil
			}

			f, err := os.Create(csvPath)
			if err != nil {
				return fmt.Errorf("failed to create csv file: %w", err)
			}
			if err := history.WriteCSV(f, stored); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close csv file: %w", err)
			}
			log.Info("history: wrote csv", "path", csvPath, "rows", len(stored))
			return nil
		},
	}

	addAnalysisFlags(cmd)
	cmd.Flags().Bool("quarterly", false, "only analyze the last snapshot of every quarter")
	cmd.Flags().String("db", "", "path of the history database (default <data-dir>/history.duckdb)")
	cmd.Flags().String("csv", "", "write the history as CSV to this file instead of a table")
	cmd.Flags().Int("pool-size", 0, "number of snapshots analyzed concurrently (default 4)")

	return cmd
}
