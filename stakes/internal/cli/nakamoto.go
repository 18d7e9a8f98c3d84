package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
	"github.com/malbeclabs/stakes/stakes/pkg/report"
	"github.com/malbeclabs/stakes/stakes/pkg/snapshot"
)

const defaultSetThreshold = 0.30

type NakamotoCmd struct{}

func NewNakamotoCmd() *NakamotoCmd {
	return &NakamotoCmd{}
}

func (c *NakamotoCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nakamoto",
		Short: "Break down the controlling set of a snapshot by entity, country and ASN",
		Long:  "Break down the controlling set of a snapshot by entity, country and ASN.\nExtended snapshots are analyzed unless --extended=false is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, opts, store, err := setup(cmd)
			if err != nil {
				return err
			}
			opts = concentrationOptions(cmd, opts)
			threshold, err := cmd.Flags().GetFloat64("set")
			if err != nil {
				return fmt.Errorf("failed to get set flag: %w", err)
			}
			quarterly, err := cmd.Flags().GetBool("quarterly")
			if err != nil {
				return fmt.Errorf("failed to get quarterly flag: %w", err)
			}

			if !quarterly {
				date, err := snapshotDate(cmd, store)
				if err != nil {
					return err
				}
				res, err := analyzeSnapshot(log, store, opts, date)
				if err != nil {
					return err
				}
				conc, err := concentrate(log, res, threshold)
				if err != nil {
					return err
				}
				report.WriteConcentration(cmd.OutOrStdout(), threshold, conc)
				return nil
			}

			dates, err := store.Dates()
			if err != nil {
				return err
			}
			dates = snapshot.QuarterlyDates(dates)
			rows := make([]report.DatedConcentration, 0, len(dates))
			for _, date := range dates {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				res, err := analyzeSnapshot(log, store, opts, date)
				if err != nil {
					return err
				}
				conc, err := concentrate(log, res, threshold)
				if err != nil {
					return fmt.Errorf("snapshot %s: %w", date.Format(time.DateOnly), err)
				}
				rows = append(rows, report.DatedConcentration{Date: date, Concentration: conc})
			}
			report.WriteConcentrationHistory(cmd.OutOrStdout(), threshold, rows)
			return nil
		},
	}

	addDateFlag(cmd, "snapshot date to analyze (default latest)")
	addAnalysisFlags(cmd)
	cmd.Flags().Float64("set", defaultSetThreshold, "stake share that defines the controlling set")
	cmd.Flags().Bool("quarterly", false, "summarize the last snapshot of every quarter instead of one date")

	return cmd
}

// concentrationOptions analyzes extended snapshots unless --extended was set explicitly; the
// breakdown needs geolocation and IPs.
func concentrationOptions(cmd *cobra.Command, opts Options) Options {
	if !cmd.Flags().Changed("extended") {
		opts.Extended = true
	}
	return opts
}

func concentrate(log *slog.Logger, res *engine.Result, threshold float64) (engine.Concentration, error) {
	if res.Validators > 0 && res.MissingGeo == res.Validators {
		log.Warn("nakamoto: no validator has geolocation, country and ASN columns will be empty", "date", res.Date.Format(time.DateOnly))
	}
	set, err := engine.NakamotoSet(res.Ranked, engine.IncludingDelegations, threshold)
	if err != nil {
		return engine.Concentration{}, fmt.Errorf("failed to compute controlling set: %w", err)
	}
	return engine.Concentrate(set, res.Including.Total), nil
}
