package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
	"github.com/malbeclabs/stakes/stakes/pkg/metrics"
	"github.com/malbeclabs/stakes/stakes/pkg/report"
	"github.com/malbeclabs/stakes/stakes/pkg/snapshot"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

type ReportCmd struct{}

func NewReportCmd() *ReportCmd {
	return &ReportCmd{}
}

func (c *ReportCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute GINI and Nakamoto coefficients of a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, opts, store, err := setup(cmd)
			if err != nil {
				return err
			}
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}
			write, err := cmd.Flags().GetBool("write")
			if err != nil {
				return fmt.Errorf("failed to get write flag: %w", err)
			}
			date, err := snapshotDate(cmd, store)
			if err != nil {
				return err
			}

			res, err := analyzeSnapshot(log, store, opts, date)
			if err != nil {
				return err
			}

			if write {
				path, err := store.WriteReport(snapshot.NewReport(res, opts.Top))
				if err != nil {
					return err
				}
				log.Info("report: wrote report", "path", path)
			}

			return renderResult(cmd.OutOrStdout(), format, res, opts.Top)
		},
	}

	addDateFlag(cmd, "snapshot date to analyze (default latest)")
	addAnalysisFlags(cmd)
	cmd.Flags().Int("top", defaultTop, "number of ranked units to show")
	cmd.Flags().StringP("format", "o", formatTable, "output format (table, json, csv)")
	cmd.Flags().Bool("write", false, "also persist the report into the snapshot directory")

	return cmd
}

// analyzeSnapshot loads and analyzes one snapshot with the configured engine.
func analyzeSnapshot(log *slog.Logger, store *snapshot.Store, opts Options, date time.Time) (*engine.Result, error) {
	cfg := opts.engineConfig()
	cfg.Logger = log
	analyzer, err := engine.NewAnalyzer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	in, problems, err := store.LoadInput(date, opts.Extended)
	if err != nil {
		return nil, err
	}
	for _, p := range problems {
		log.Debug("report: record problem", "error", p)
	}

	start := time.Now()
	res, err := analyzer.Analyze(in)
	metrics.ObserveAnalysis(opts.Group, time.Since(start), err)
	if err != nil {
		var undefined *engine.UndefinedMetricError
		if errors.As(err, &undefined) {
			log.Error("report: metric is undefined for this snapshot", "metric", undefined.Metric, "reason", undefined.Reason)
		}
		return nil, fmt.Errorf("failed to analyze snapshot %s: %w", date.Format(time.DateOnly), err)
	}
	return res, nil
}

func renderResult(w io.Writer, format string, res *engine.Result, top int) error {
	switch format {
	case formatTable:
		report.WriteSummary(w, res)
		report.WriteTop(w, res, top)
		return nil
	case formatJSON:
		return report.WriteJSON(w, snapshot.NewReport(res, top))
	case formatCSV:
		return report.WriteDistributionCSV(w, res)
	default:
		return fmt.Errorf("unknown format %q, must be one of: %s, %s, %s", format, formatTable, formatJSON, formatCSV)
	}
}
