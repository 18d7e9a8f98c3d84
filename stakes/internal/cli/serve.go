package cli

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/stakes/stakes/pkg/metrics"
	"github.com/malbeclabs/stakes/stakes/pkg/server"
)

type ServeCmd struct {
	info BuildInfo
}

func NewServeCmd(info BuildInfo) *ServeCmd {
	return &ServeCmd{info: info}
}

func (c *ServeCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the latest snapshot report and Prometheus metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, opts, store, err := setup(cmd)
			if err != nil {
				return err
			}
			metrics.BuildInfo.WithLabelValues(c.info.Version, c.info.Commit, c.info.Date).Set(1)

			engineCfg := opts.engineConfig()
			engineCfg.Logger = log
			srv, err := server.New(server.Config{
				Logger:          log,
				Snapshots:       store,
				Engine:          engineCfg,
				RefreshInterval: opts.RefreshInterval,
				Top:             opts.Top,
			})
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			listener, err := net.Listen("tcp", opts.ListenAddr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", opts.ListenAddr, err)
			}
			defer listener.Close()

			log.Info("serve: starting", "env", opts.Env, "data_dir", opts.DataDir, "listen", opts.ListenAddr, "refresh_interval", opts.RefreshInterval)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var errs []error
			for err := range srv.Start(ctx, cancel, listener) {
				errs = append(errs, err)
			}
			if err := errors.Join(errs...); err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}
			return nil
		},
	}

	addAnalysisFlags(cmd)
	cmd.Flags().String("listen", defaultListenAddr, "address the HTTP server listens on")
	cmd.Flags().Duration("refresh-interval", defaultRefreshInterval, "how often the latest snapshot is re-analyzed")
	cmd.Flags().Int("top", defaultTop, "number of ranked units included in served reports")

	return cmd
}
