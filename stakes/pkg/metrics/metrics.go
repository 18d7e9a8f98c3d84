package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
)

const (
	Namespace = "stakes"

	// Metrics names.
	MetricNameBuildInfo         = Namespace + "_build_info"
	MetricNameGini              = Namespace + "_gini"
	MetricNameNakamoto          = Namespace + "_nakamoto_coefficient"
	MetricNameReferenceGini     = Namespace + "_reference_gini"
	MetricNameValidators        = Namespace + "_validators"
	MetricNameUnits             = Namespace + "_units"
	MetricNameTotalStake        = Namespace + "_total_stake_navax"
	MetricNameSnapshotTimestamp = Namespace + "_snapshot_timestamp_seconds"
	MetricNameAnalysisDuration  = Namespace + "_analysis_duration_seconds"
	MetricNameAnalyses          = Namespace + "_analyses_total"
	MetricNameErrors            = Namespace + "_errors_total"

	// Labels.
	LabelVersion   = "version"
	LabelCommit    = "commit"
	LabelDate      = "date"
	LabelGrouped   = "grouped"
	LabelKind      = "kind"
	LabelThreshold = "threshold"
	LabelReference = "reference"
	LabelResult    = "result"
	LabelErrorType = "error_type"

	// Error types.
	ErrorTypeLoadSnapshot = "load_snapshot"
	ErrorTypeAnalyze      = "analyze"
	ErrorTypeRefresh      = "refresh"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameBuildInfo,
			Help: "Build information of the stakes service",
		},
		[]string{LabelVersion, LabelCommit, LabelDate},
	)

	Gini = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameGini,
			Help: "GINI coefficient of the latest analyzed snapshot",
		},
		[]string{LabelGrouped, LabelKind},
	)

	Nakamoto = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameNakamoto,
			Help: "Nakamoto coefficient of the latest analyzed snapshot per stake threshold",
		},
		[]string{LabelGrouped, LabelKind, LabelThreshold},
	)

	ReferenceGini = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameReferenceGini,
			Help: "GINI coefficient of the reference distributions of the latest analyzed snapshot",
		},
		[]string{LabelGrouped, LabelReference},
	)

	Validators = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameValidators,
			Help: "Number of validators in the latest analyzed snapshot",
		},
		[]string{LabelGrouped},
	)

	Units = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameUnits,
			Help: "Number of ranked units (validators or entities) in the latest analyzed snapshot",
		},
		[]string{LabelGrouped},
	)

	TotalStake = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameTotalStake,
			Help: "Total stake in nAVAX of the latest analyzed snapshot",
		},
		[]string{LabelGrouped, LabelKind},
	)

	SnapshotTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameSnapshotTimestamp,
			Help: "Date of the latest analyzed snapshot as a unix timestamp",
		},
		[]string{LabelGrouped},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameAnalysisDuration,
			Help:    "Duration of snapshot analyses",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{LabelGrouped},
	)

	Analyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameAnalyses,
			Help: "Number of snapshot analyses by result",
		},
		[]string{LabelGrouped, LabelResult},
	)

	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameErrors,
			Help: "Number of errors encountered",
		},
		[]string{LabelErrorType},
	)
)

// ObserveAnalysis records the duration and outcome of one analysis.
func ObserveAnalysis(grouped bool, d time.Duration, err error) {
	g := strconv.FormatBool(grouped)
	AnalysisDuration.WithLabelValues(g).Observe(d.Seconds())
	result := "success"
	if err != nil {
		result = "error"
	}
	Analyses.WithLabelValues(g, result).Inc()
}

// ObserveResult publishes the measurements of res as gauges.
func ObserveResult(res *engine.Result) {
	g := strconv.FormatBool(res.Grouped)
	Validators.WithLabelValues(g).Set(float64(res.Validators))
	Units.WithLabelValues(g).Set(float64(res.Units))
	SnapshotTimestamp.WithLabelValues(g).Set(float64(res.Date.Unix()))

	for _, m := range []engine.Metrics{res.Including, res.Excluding} {
		kind := m.Kind.String()
		Gini.WithLabelValues(g, kind).Set(m.Gini)
		TotalStake.WithLabelValues(g, kind).Set(float64(m.Total))
		for _, p := range m.Nakamoto {
			Nakamoto.WithLabelValues(g, kind, FormatThreshold(p.Threshold)).Set(float64(p.Count))
		}
	}
	for _, ref := range res.References {
		ReferenceGini.WithLabelValues(g, string(ref.Kind)).Set(ref.Gini)
	}
}

// FormatThreshold renders a threshold the way it appears in labels, e.g. "0.33".
func FormatThreshold(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}
