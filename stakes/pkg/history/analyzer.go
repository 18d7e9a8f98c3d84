package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
)

const defaultPoolSize = 4

// Loader supplies the analysis input of a snapshot date.
type Loader interface {
	LoadInput(date time.Time, extended bool) (engine.Input, []error, error)
}

type AnalyzerConfig struct {
	Logger   *slog.Logger
	Loader   Loader
	Engine   *engine.Analyzer
	PoolSize int
	// Observe, when set, is called with the duration and outcome of every snapshot analysis.
	Observe func(grouped bool, d time.Duration, err error)
}

func (cfg *AnalyzerConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Loader == nil {
		return errors.New("loader is required")
	}
	if cfg.Engine == nil {
		return errors.New("engine is required")
	}
	if cfg.PoolSize < 0 {
		return errors.New("pool size must not be negative")
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaultPoolSize
	}
	return nil
}

// Analyzer runs the engine over many snapshot dates concurrently. Each snapshot is loaded and
// analyzed independently by one worker.
type Analyzer struct {
	log      *slog.Logger
	cfg      AnalyzerConfig
	extended bool
	pool     pond.ResultPool[*engine.Result]
}

func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	return &Analyzer{
		log:      cfg.Logger,
		cfg:      cfg,
		extended: cfg.Engine.Config().UseExtended,
		pool:     pond.NewResultPool[*engine.Result](cfg.PoolSize),
	}, nil
}

// Run analyzes every date and returns the results in the order of dates. The first failure
// cancels the remaining work and is returned.
func (a *Analyzer) Run(ctx context.Context, dates []time.Time) ([]*engine.Result, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	group := a.pool.NewGroupContext(ctx)
	for _, date := range dates {
		group.SubmitErr(func() (*engine.Result, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return a.analyze(date)
		})
	}
	results, err := group.Wait()
	if err != nil {
		return nil, err
	}
	a.log.Info("history: analyzed snapshots", "count", len(results), "grouped", a.cfg.Engine.Config().GroupByEntity)
	return results, nil
}

// Close stops the worker pool after in-flight work completes.
func (a *Analyzer) Close() {
	a.pool.StopAndWait()
}

func (a *Analyzer) analyze(date time.Time) (*engine.Result, error) {
	start := time.Now()
	res, err := a.analyzeDate(date)
	if a.cfg.Observe != nil {
		a.cfg.Observe(a.cfg.Engine.Config().GroupByEntity, time.Since(start), err)
	}
	return res, err
}

func (a *Analyzer) analyzeDate(date time.Time) (*engine.Result, error) {
	day := date.Format(time.DateOnly)
	in, problems, err := a.cfg.Loader.LoadInput(date, a.extended)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", day, err)
	}
	if len(problems) > 0 {
		a.log.Debug("history: snapshot has records with missing fields", "date", day, "count", len(problems))
	}
	res, err := a.cfg.Engine.Analyze(in)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze snapshot %s: %w", day, err)
	}
	return res, nil
}
