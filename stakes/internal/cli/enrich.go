package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/stakes/stakes/pkg/geoip"
)

type EnrichCmd struct{}

func NewEnrichCmd() *EnrichCmd {
	return &EnrichCmd{}
}

func (c *EnrichCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Geolocate the peers of a snapshot and write its extended validator file",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, opts, store, err := setup(cmd)
			if err != nil {
				return err
			}
			date, err := snapshotDate(cmd, store)
			if err != nil {
				return err
			}

			validators, problems, err := store.LoadValidators(date, false)
			if err != nil {
				return err
			}
			if len(problems) > 0 {
				log.Warn("enrich: validators with missing fields", "count", len(problems))
			}
			peers, err := store.LoadPeers(date)
			if err != nil {
				return err
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

			log.Info("enrich: enriching snapshot", "date", date.Format(time.DateOnly), "validators", len(validators), "peers", len(peers))
			return writeEnriched(log, store, resolver, date, validators, peers)
		},
	}

	addDateFlag(cmd, "snapshot date to enrich (default latest)")
	addGeoipFlags(cmd)

	return cmd
}
