package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"
)

const (
	defaultSeed     uint64  = 1
	defaultExponent float64 = 1.0
)

// DefaultThresholds are the Nakamoto cut-points computed when none are configured.
var DefaultThresholds = []float64{0.30, 0.33, 0.50}

// Config is the immutable configuration of an Analyzer.
type Config struct {
	Logger *slog.Logger

	// Thresholds are the stake shares for which the Nakamoto coefficient is computed.
	Thresholds []float64
	// Seed seeds every reference distribution.
	Seed uint64
	// Exponent controls the shape of the log-logistic reference.
	Exponent float64
	// WeightExponent maps measured weights through w^x before the curves are built.
	WeightExponent float64
	// GroupByEntity ranks ownership entities instead of individual validators.
	GroupByEntity bool
	// UseExtended expects records carrying peer and geolocation metadata.
	UseExtended bool
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Thresholds) == 0 {
		cfg.Thresholds = DefaultThresholds
	}
	thresholds := slices.Clone(cfg.Thresholds)
	slices.Sort(thresholds)
	thresholds = slices.Compact(thresholds)
	for _, t := range thresholds {
		if math.IsNaN(t) || t <= 0 || t >= 1 {
			return fmt.Errorf("threshold must be in (0, 1), got %v", t)
		}
	}
	cfg.Thresholds = thresholds

	if cfg.Seed == 0 {
		cfg.Seed = defaultSeed
	}
	if cfg.Exponent == 0 {
		cfg.Exponent = defaultExponent
	}
	if cfg.Exponent < 0 || math.IsNaN(cfg.Exponent) || math.IsInf(cfg.Exponent, 0) {
		return fmt.Errorf("exponent must be positive, got %v", cfg.Exponent)
	}
	if cfg.WeightExponent == 0 {
		cfg.WeightExponent = defaultExponent
	}
	if cfg.WeightExponent < 0 || math.IsNaN(cfg.WeightExponent) || math.IsInf(cfg.WeightExponent, 0) {
		return fmt.Errorf("weight exponent must be positive, got %v", cfg.WeightExponent)
	}
	return nil
}

// Input is one snapshot of records. When Peers is non-empty the validators are joined with
// them first; otherwise the validators are taken as already joined (or basic).
type Input struct {
	Date       time.Time
	Validators []ValidatorRecord
	Peers      []PeerRecord
}

// NakamotoPoint is the Nakamoto coefficient at one threshold.
type NakamotoPoint struct {
	Threshold float64 `json:"threshold"`
	Count     int     `json:"count"`
}

// Metrics are the measurements of one weight kind.
type Metrics struct {
	Kind         WeightKind      `json:"-"`
	Total        uint64          `json:"total"`
	Gini         float64         `json:"gini"`
	Nakamoto     []NakamotoPoint `json:"nakamoto"`
	Distribution Distribution    `json:"distribution"`
}

// NakamotoAt returns the coefficient computed for threshold.
func (m Metrics) NakamotoAt(threshold float64) (int, bool) {
	for _, p := range m.Nakamoto {
		if p.Threshold == threshold {
			return p.Count, true
		}
	}
	return 0, false
}

// ReferenceCurve is a synthetic comparison curve of the same size as the measured one.
type ReferenceCurve struct {
	Kind         ReferenceKind `json:"kind"`
	Gini         float64       `json:"gini"`
	Distribution Distribution  `json:"distribution"`
}

// Result is the complete, consistent set of measurements of one snapshot.
type Result struct {
	Date       time.Time `json:"date"`
	Grouped    bool      `json:"grouped"`
	Validators int       `json:"validators"`
	Units      int       `json:"units"`

	Join       *JoinStats `json:"join,omitempty"`
	Group      GroupStats `json:"group"`
	Excluded   []error    `json:"-"`
	MissingGeo int        `json:"missing_geo"`

	Including  Metrics          `json:"including_delegations"`
	Excluding  Metrics          `json:"excluding_delegations"`
	References []ReferenceCurve `json:"references"`

	// Ranked holds the units ranked by total weight.
	Ranked []Entity `json:"-"`
}

// Metrics returns the measurements for kind.
func (r *Result) Metrics(kind WeightKind) Metrics {
	if kind == ExcludingDelegations {
		return r.Excluding
	}
	return r.Including
}

// Analyzer computes the stake concentration metrics of snapshots. It holds no state between
// calls; Analyze is safe to call concurrently.
type Analyzer struct {
	log *slog.Logger
	cfg Config
}

func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	return &Analyzer{log: cfg.Logger, cfg: cfg}, nil
}

// Config returns a copy of the validated configuration.
func (a *Analyzer) Config() Config {
	cfg := a.cfg
	cfg.Thresholds = slices.Clone(a.cfg.Thresholds)
	return cfg
}

// Analyze runs join, grouping, ranking and the metric calculators over one snapshot. Any
// metric failure aborts the whole computation; a partial Result is never returned.
func (a *Analyzer) Analyze(in Input) (*Result, error) {
	res := &Result{Date: in.Date, Grouped: a.cfg.GroupByEntity}

	records := make([]ValidatorRecord, 0, len(in.Validators))
	for i, v := range in.Validators {
		if v.ID == "" {
			res.Excluded = append(res.Excluded, &MissingFieldError{Index: i, Field: "id"})
			continue
		}
		records = append(records, v)
	}
	if len(res.Excluded) > 0 {
		a.log.Warn("engine: excluded records without id", "count", len(res.Excluded))
	}

	if len(in.Peers) > 0 {
		joined, stats := JoinValidatorsPeers(records, in.Peers)
		res.Join = &stats
		if err := stats.Mismatch(); err != nil {
			a.log.Info("engine: join dropped unmatched records", "matched", stats.Matched, "validators_only", stats.LeftOnly, "peers_only", stats.RightOnly)
		}
		records = joined
	} else {
		var dups int
		records, dups = DedupeByKey(records, func(v ValidatorRecord) string { return v.ID })
		if dups > 0 {
			a.log.Warn("engine: duplicate validator ids, keeping the last record", "count", dups)
		}
	}

	if a.cfg.UseExtended {
		for _, v := range records {
			if v.Geo == nil {
				res.MissingGeo++
			}
		}
		if res.MissingGeo > 0 {
			a.log.Warn("engine: records without geolocation", "count", res.MissingGeo, "total", len(records))
		}
	}

	res.Validators = len(records)
	if len(records) == 0 {
		return nil, &EmptyDatasetError{Stage: "join"}
	}

	var units []Entity
	if a.cfg.GroupByEntity {
		var stats GroupStats
		units, stats = GroupByRewardAddresses(records)
		res.Group = stats
		if stats.Degraded > 0 {
			a.log.Warn("engine: validators without reward addresses kept as singleton entities", "count", stats.Degraded)
		}
	} else {
		units = Singletons(records)
		res.Group = GroupStats{Validators: len(records), Entities: len(units)}
		for _, u := range units {
			if u.Degraded {
				res.Group.Degraded++
			}
		}
	}
	res.Units = len(units)
	if len(units) == 0 {
		return nil, &EmptyDatasetError{Stage: "group"}
	}

	var err error
	res.Ranked = Rank(units, IncludingDelegations)
	res.Including, err = a.measure(res.Ranked, IncludingDelegations)
	if err != nil {
		return nil, err
	}
	res.Excluding, err = a.measure(Rank(units, ExcludingDelegations), ExcludingDelegations)
	if err != nil {
		return nil, err
	}

	for _, kind := range ReferenceKinds {
		d, err := Reference(kind, len(units), a.cfg.Seed, a.cfg.Exponent)
		if err != nil {
			return nil, fmt.Errorf("%s reference: %w", kind, err)
		}
		g, err := GiniFromDistribution(d)
		if err != nil {
			return nil, fmt.Errorf("%s reference gini: %w", kind, err)
		}
		res.References = append(res.References, ReferenceCurve{Kind: kind, Gini: g, Distribution: d})
	}

	a.log.Debug("engine: snapshot analyzed",
		"date", in.Date.Format(time.DateOnly),
		"grouped", res.Grouped,
		"validators", res.Validators,
		"units", res.Units,
		"gini_including", res.Including.Gini,
		"gini_excluding", res.Excluding.Gini,
	)
	return res, nil
}

func (a *Analyzer) measure(ranked []Entity, kind WeightKind) (Metrics, error) {
	m := Metrics{Kind: kind}
	for _, u := range ranked {
		m.Total += u.Stake(kind)
	}

	weights := ExponentMap(Weights(ranked, kind), a.cfg.WeightExponent)
	d, err := NewDistribution(kind, weights)
	if err != nil {
		return Metrics{}, fmt.Errorf("distribution (%s): %w", kind, err)
	}
	m.Distribution = d

	m.Gini, err = Gini(weights)
	if err != nil {
		return Metrics{}, fmt.Errorf("gini (%s): %w", kind, err)
	}

	m.Nakamoto = make([]NakamotoPoint, 0, len(a.cfg.Thresholds))
	for _, t := range a.cfg.Thresholds {
		k, err := d.Nakamoto(t)
		if err != nil {
			return Metrics{}, fmt.Errorf("nakamoto %.2f (%s): %w", t, kind, err)
		}
		m.Nakamoto = append(m.Nakamoto, NakamotoPoint{Threshold: t, Count: k})
	}
	return m, nil
}
