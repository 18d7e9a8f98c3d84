package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
	"github.com/malbeclabs/stakes/stakes/pkg/metrics"
	"github.com/malbeclabs/stakes/stakes/pkg/snapshot"
)

// SnapshotView keeps the reports of the latest snapshot, refreshed on a ticker.
type SnapshotView struct {
	log       *slog.Logger
	clock     clockwork.Clock
	interval  time.Duration
	ttl       time.Duration
	top       int
	extended  bool
	snapshots Snapshots

	analyzers map[bool]*engine.Analyzer
	cache     *ttlcache.Cache[bool, snapshot.Report]

	ready atomic.Bool
}

func NewSnapshotView(cfg Config) (*SnapshotView, error) {
	analyzers := make(map[bool]*engine.Analyzer, 2)
	for _, grouped := range []bool{false, true} {
		ecfg := cfg.Engine
		ecfg.GroupByEntity = grouped
		a, err := engine.NewAnalyzer(ecfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create analyzer: %w", err)
		}
		analyzers[grouped] = a
	}

	return &SnapshotView{
		log:       cfg.Logger,
		clock:     cfg.Clock,
		interval:  cfg.RefreshInterval,
		ttl:       cfg.CacheTTL,
		top:       cfg.Top,
		extended:  cfg.Engine.UseExtended,
		snapshots: cfg.Snapshots,
		analyzers: analyzers,
		cache: ttlcache.New(
			ttlcache.WithTTL[bool, snapshot.Report](cfg.CacheTTL),
			ttlcache.WithDisableTouchOnHit[bool, snapshot.Report](),
		),
	}, nil
}

func (v *SnapshotView) Ready() bool {
	return v.ready.Load()
}

// Report returns the cached report of the latest snapshot, if it has not expired.
func (v *SnapshotView) Report(grouped bool) (snapshot.Report, bool) {
	item := v.cache.Get(grouped)
	if item == nil {
		return snapshot.Report{}, false
	}
	return item.Value(), true
}

func (v *SnapshotView) Run(ctx context.Context) error {
	go v.cache.Start()
	defer v.cache.Stop()

	if err := v.Refresh(ctx); err != nil {
		v.log.Error("server: initial refresh failed", "error", err)
	}
	ticker := v.clock.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := v.Refresh(ctx); err != nil {
				v.log.Error("server: refresh failed", "error", err)
			}
		}
	}
}

// Refresh analyzes the latest snapshot grouped and ungrouped. Either both reports are replaced
// or neither is.
func (v *SnapshotView) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := v.clock.Now()

	date, err := v.snapshots.Latest()
	if err != nil {
		metrics.Errors.WithLabelValues(metrics.ErrorTypeLoadSnapshot).Inc()
		return fmt.Errorf("failed to find latest snapshot: %w", err)
	}
	in, problems, err := v.snapshots.LoadInput(date, v.extended)
	if err != nil {
		metrics.Errors.WithLabelValues(metrics.ErrorTypeLoadSnapshot).Inc()
		return fmt.Errorf("failed to load snapshot %s: %w", date.Format(time.DateOnly), err)
	}
	if len(problems) > 0 {
		v.log.Warn("server: snapshot has records with missing fields", "date", date.Format(time.DateOnly), "count", len(problems))
	}

	results := make(map[bool]*engine.Result, len(v.analyzers))
	for grouped, a := range v.analyzers {
		analysisStart := v.clock.Now()
		res, err := a.Analyze(in)
		metrics.ObserveAnalysis(grouped, v.clock.Since(analysisStart), err)
		if err != nil {
			metrics.Errors.WithLabelValues(metrics.ErrorTypeAnalyze).Inc()
			return fmt.Errorf("failed to analyze snapshot %s (grouped=%t): %w", date.Format(time.DateOnly), grouped, err)
		}
		results[grouped] = res
	}

	for grouped, res := range results {
		metrics.ObserveResult(res)
		v.cache.Set(grouped, snapshot.NewReport(res, v.top), ttlcache.DefaultTTL)
	}
	v.ready.Store(true)

	v.log.Info("server: refreshed latest snapshot",
		"date", date.Format(time.DateOnly),
		"validators", results[false].Validators,
		"entities", results[true].Units,
		"duration", v.clock.Since(start).String(),
	)
	return nil
}
