package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/malbeclabs/stakes/config"
	"github.com/malbeclabs/stakes/stakes/pkg/engine"
)

const (
	defaultDataDir         = "data"
	defaultGeoipCityDBPath = "/usr/share/GeoIP/GeoLite2-City.mmdb"
	defaultGeoipASNDBPath  = "/usr/share/GeoIP/GeoLite2-ASN.mmdb"
	defaultListenAddr      = ":8080"
	defaultRefreshInterval = 10 * time.Minute
	defaultTop             = 20

	envDataDir     = "STAKES_DATA_DIR"
	envGeoipCityDB = "STAKES_GEOIP_CITY_DB"
	envGeoipASNDB  = "STAKES_GEOIP_ASN_DB"
	envHistoryDB   = "STAKES_HISTORY_DB"
)

// Options are the settings shared by all commands. Values come from defaults, then the YAML
// config file, then STAKES_* environment variables, then flags that were set explicitly.
type Options struct {
	Env     string `yaml:"env"`
	DataDir string `yaml:"data_dir"`

	Thresholds     []float64 `yaml:"thresholds"`
	Seed           uint64    `yaml:"seed"`
	Exponent       float64   `yaml:"exponent"`
	WeightExponent float64   `yaml:"weight_exponent"`
	Group          bool      `yaml:"group"`
	Extended       bool      `yaml:"extended"`

	GeoipCityDB string `yaml:"geoip_city_db"`
	GeoipASNDB  string `yaml:"geoip_asn_db"`
	HistoryDB   string `yaml:"history_db"`

	ListenAddr      string        `yaml:"listen_addr"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Top             int           `yaml:"top"`
}

func defaultOptions() Options {
	return Options{
		Env:             config.EnvMainnet,
		DataDir:         defaultDataDir,
		GeoipCityDB:     defaultGeoipCityDBPath,
		GeoipASNDB:      defaultGeoipASNDBPath,
		ListenAddr:      defaultListenAddr,
		RefreshInterval: defaultRefreshInterval,
		Top:             defaultTop,
	}
}

// loadOptions reads the YAML file at path over the defaults. An empty path yields the
// defaults.
func loadOptions(path string) (Options, error) {
	opts := defaultOptions()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return opts, nil
}

func (o *Options) applyEnv() {
	if v := os.Getenv(envDataDir); v != "" {
		o.DataDir = v
	}
	if v := os.Getenv(envGeoipCityDB); v != "" {
		o.GeoipCityDB = v
	}
	if v := os.Getenv(envGeoipASNDB); v != "" {
		o.GeoipASNDB = v
	}
	if v := os.Getenv(envHistoryDB); v != "" {
		o.HistoryDB = v
	}
}

// applyFlags copies every flag of fs that was set on the command line into o.
func (o *Options) applyFlags(fs *pflag.FlagSet) error {
	var errs []error
	fs.Visit(func(f *pflag.Flag) {
		var err error
		switch f.Name {
		case "env":
			o.Env, err = fs.GetString(f.Name)
		case "data-dir":
			o.DataDir, err = fs.GetString(f.Name)
		case "threshold":
			o.Thresholds, err = fs.GetFloat64Slice(f.Name)
		case "seed":
			o.Seed, err = fs.GetUint64(f.Name)
		case "exponent":
			o.Exponent, err = fs.GetFloat64(f.Name)
		case "weight-exponent":
			o.WeightExponent, err = fs.GetFloat64(f.Name)
		case "group":
			o.Group, err = fs.GetBool(f.Name)
		case "extended":
			o.Extended, err = fs.GetBool(f.Name)
		case "geoip-city-db":
			o.GeoipCityDB, err = fs.GetString(f.Name)
		case "geoip-asn-db":
			o.GeoipASNDB, err = fs.GetString(f.Name)
		case "db":
			o.HistoryDB, err = fs.GetString(f.Name)
		case "listen":
			o.ListenAddr, err = fs.GetString(f.Name)
		case "refresh-interval":
			o.RefreshInterval, err = fs.GetDuration(f.Name)
		case "top":
			o.Top, err = fs.GetInt(f.Name)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to get %s flag: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

func (o *Options) historyDBPath() string {
	if o.HistoryDB != "" {
		return o.HistoryDB
	}
	return filepath.Join(o.DataDir, "history.duckdb")
}

func (o *Options) engineConfig() engine.Config {
	return engine.Config{
		Thresholds:     o.Thresholds,
		Seed:           o.Seed,
		Exponent:       o.Exponent,
		WeightExponent: o.WeightExponent,
		GroupByEntity:  o.Group,
		UseExtended:    o.Extended,
	}
}

func addAnalysisFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Slice("threshold", engine.DefaultThresholds, "stake shares to compute the Nakamoto coefficient for (repeatable)")
	fs.Uint64("seed", 1, "seed of the reference distributions")
	fs.Float64("exponent", 1.0, "shape exponent of the log-logistic reference")
	fs.Float64("weight-exponent", 1.0, "map measured weights through w^x before building curves")
	fs.BoolP("group", "g", false, "rank ownership entities (shared reward addresses) instead of validators")
	fs.BoolP("extended", "e", false, "analyze extended snapshots joined with peers and geolocation")
}

func addGeoipFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.String("geoip-city-db", defaultGeoipCityDBPath, "path to the GeoLite2 City database")
	fs.String("geoip-asn-db", defaultGeoipASNDBPath, "path to the GeoLite2 ASN database")
}

// resolveOptions builds the options of cmd from the config file, environment and flags.
func resolveOptions(cmd *cobra.Command) (Options, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return Options{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	opts, err := loadOptions(path)
	if err != nil {
		return Options{}, err
	}
	opts.applyEnv()
	if err := opts.applyFlags(cmd.Flags()); err != nil {
		return Options{}, err
	}
	if opts.DataDir == "" {
		return Options{}, errors.New("data directory is required")
	}
	return opts, nil
}
