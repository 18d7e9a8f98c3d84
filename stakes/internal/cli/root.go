package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/malbeclabs/stakes/config"
	"github.com/malbeclabs/stakes/stakes/pkg/snapshot"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func Run(info BuildInfo) ExitCode {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	rootCmd := NewRootCmd(info)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

func NewRootCmd(info BuildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "stakes",
		Short:        "Stake concentration analysis for the Avalanche primary network.",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", info.Version, info.Commit, info.Date),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "set debug logging level")
	pf.String("env", config.EnvMainnet, "the network environment (mainnet, fuji)")
	pf.String("data-dir", defaultDataDir, "root directory of the dated snapshots")
	pf.String("config", "", "optional YAML config file")

	rootCmd.AddCommand(
		NewFetchCmd().Command(),
		NewEnrichCmd().Command(),
		NewReportCmd().Command(),
		NewNakamotoCmd().Command(),
		NewHistoryCmd().Command(),
		NewServeCmd(info).Command(),
	)
	return rootCmd
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(formatRFC3339Millis(a.Value.Time()))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}

// setup resolves the options of cmd and builds the logger and snapshot store every command
// needs.
func setup(cmd *cobra.Command) (*slog.Logger, Options, *snapshot.Store, error) {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, Options{}, nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	log := newLogger(verbose)

	opts, err := resolveOptions(cmd)
	if err != nil {
		return nil, Options{}, nil, err
	}
	store, err := snapshot.NewStore(snapshot.StoreConfig{Logger: log, Root: opts.DataDir})
	if err != nil {
		return nil, Options{}, nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}
	return log, opts, store, nil
}

// snapshotDate returns the date named by the --date flag, or the latest snapshot date.
func snapshotDate(cmd *cobra.Command, store *snapshot.Store) (time.Time, error) {
	s, err := cmd.Flags().GetString("date")
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get date flag: %w", err)
	}
	if s == "" {
		return store.Latest()
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return d, nil
}

func addDateFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().String("date", "", usage)
}
