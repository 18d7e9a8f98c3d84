package server

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
)

func newTestLogger() *slog.Logger {
	if os.Getenv("DEBUG") != "" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testDate = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

func testValidators() []engine.ValidatorRecord {
	return []engine.ValidatorRecord{
		{ID: "NodeID-A", RewardAddresses: []string{"P-avax1a"}, Weight: 50, DelegatedWeight: 10},
		{ID: "NodeID-B", RewardAddresses: []string{"P-avax1b"}, Weight: 30},
		{ID: "NodeID-C", RewardAddresses: []string{"P-avax1b"}, Weight: 10},
		{ID: "NodeID-D", RewardAddresses: []string{"P-avax1d"}, Weight: 10},
	}
}

// fakeSnapshots serves one snapshot and fails while err is set.
type fakeSnapshots struct {
	mu    sync.Mutex
	date  time.Time
	err   error
	calls chan int
	n     int
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{date: testDate, calls: make(chan int, 16)}
}

func (f *fakeSnapshots) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSnapshots) Latest() (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	select {
	case f.calls <- f.n:
	default:
	}
	if f.err != nil {
		return time.Time{}, f.err
	}
	return f.date, nil
}

func (f *fakeSnapshots) LoadInput(date time.Time, extended bool) (engine.Input, []error, error) {
	if !date.Equal(f.date) {
		return engine.Input{}, nil, errors.New("unknown date")
	}
	return engine.Input{Date: date, Validators: testValidators()}, nil, nil
}
