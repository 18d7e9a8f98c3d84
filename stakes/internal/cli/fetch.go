package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/stakes/config"
	"github.com/malbeclabs/stakes/stakes/pkg/avax"
	"github.com/malbeclabs/stakes/stakes/pkg/engine"
	"github.com/malbeclabs/stakes/stakes/pkg/geoip"
	"github.com/malbeclabs/stakes/stakes/pkg/snapshot"
)

type FetchCmd struct{}

func NewFetchCmd() *FetchCmd {
	return &FetchCmd{}
}

func (c *FetchCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the current validator set and peers into a dated snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, opts, store, err := setup(cmd)
			if err != nil {
				return err
			}
			enrich, err := cmd.Flags().GetBool("geoip")
			if err != nil {
				return fmt.Errorf("failed to get geoip flag: %w", err)
			}
			timeout, err := cmd.Flags().GetDuration("timeout")
			if err != nil {
				return fmt.Errorf("failed to get timeout flag: %w", err)
			}
			date := time.Now().UTC().Truncate(24 * time.Hour)
			if s, _ := cmd.Flags().GetString("date"); s != "" {
				if date, err = time.Parse(time.DateOnly, s); err != nil {
					return fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
				}
			}

			networkConfig, err := config.NetworkConfigForEnv(opts.Env)
			if err != nil {
				return fmt.Errorf("failed to get network config: %w", err)
			}
			client, err := avax.NewClient(avax.ClientConfig{
				Logger:    log,
				PChainURL: networkConfig.PChainURL(),
				InfoURL:   networkConfig.InfoURL(),
			})
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			validators, err := client.GetCurrentValidators(ctx)
			if err != nil {
				return fmt.Errorf("failed to get current validators: %w", err)
			}
			peers, err := client.GetPeers(ctx)
			if err != nil {
				return fmt.Errorf("failed to get peers: %w", err)
			}
			log.Info("fetch: fetched network state", "env", networkConfig.Moniker, "validators", len(validators), "peers", len(peers))

			path, err := store.WriteValidators(date, validators, false)
			if err != nil {
				return err
			}
			log.Info("fetch: wrote validators", "path", path)

			if !enrich {
				path, err := store.WritePeers(date, peers)
				if err != nil {
					return err
				}
				log.Info("fetch: wrote peers", "path", path)
				return nil
			}

			dbs, err := geoip.Open(opts.GeoipCityDB, opts.GeoipASNDB)
			if err != nil {
				return err
			}
			defer dbs.Close()
			resolver, err := geoip.NewResolver(log, dbs.City, dbs.ASN)
			if err != nil {
				return fmt.Errorf("failed to create geoip resolver: %w", err)
			}
			return writeEnriched(log, store, resolver, date, validators, peers)
		},
	}

	addDateFlag(cmd, "snapshot date to write (default today, UTC)")
	addGeoipFlags(cmd)
	cmd.Flags().Bool("geoip", false, "also geolocate peers and write the extended snapshot")
	cmd.Flags().Duration("timeout", 2*time.Minute, "overall timeout of the API calls")

	return cmd
}

// writeEnriched geolocates peers, joins them with validators and writes the extended snapshot
// together with the enriched peers.
func writeEnriched(log *slog.Logger, store *snapshot.Store, resolver geoip.Resolver, date time.Time, validators []engine.ValidatorRecord, peers []engine.PeerRecord) error {
	peers = geoip.EnrichPeers(log, resolver, peers)
	path, err := store.WritePeers(date, peers)
	if err != nil {
		return err
	}
	log.Info("enrich: wrote peers", "path", path)

	joined, stats := engine.JoinValidatorsPeers(validators, peers)
	if err := stats.Mismatch(); err != nil {
		log.Warn("enrich: validators and peers do not fully match", "matched", stats.Matched, "validators_only", stats.LeftOnly, "peers_only", stats.RightOnly)
	}
	if len(joined) == 0 {
		return &engine.EmptyDatasetError{Stage: "join"}
	}
	path, err = store.WriteValidators(date, joined, true)
	if err != nil {
		return err
	}
	log.Info("enrich: wrote extended validators", "path", path, "records", len(joined))
	return nil
}
