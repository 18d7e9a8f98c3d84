package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
)

const (
	defaultRefreshInterval = 10 * time.Minute
	defaultShutdownTimeout = 10 * time.Second
	defaultTop             = 20
)

// Snapshots supplies the most recent snapshot and its analysis input.
type Snapshots interface {
	Latest() (time.Time, error)
	LoadInput(date time.Time, extended bool) (engine.Input, []error, error)
}

type Config struct {
	Logger    *slog.Logger
	Snapshots Snapshots
	// Engine is the base analysis configuration; the server runs it both grouped and ungrouped.
	Engine engine.Config

	// Optional configuration.
	Clock           clockwork.Clock
	RefreshInterval time.Duration
	// CacheTTL bounds how long a result is served after the last successful refresh.
	CacheTTL        time.Duration
	ShutdownTimeout time.Duration
	Top             int
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Snapshots == nil {
		return errors.New("snapshots are required")
	}
	if c.Engine.Logger == nil {
		c.Engine.Logger = c.Logger
	}

	// Optional configuration.
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = defaultRefreshInterval
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 3 * c.RefreshInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Top <= 0 {
		c.Top = defaultTop
	}
	return nil
}
