package engine

import (
	"io"
	"log/slog"
	"os"
)

func newTestLogger() *slog.Logger {
	if os.Getenv("DEBUG") != "" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validator(id string, weight, delegated uint64, addrs ...string) ValidatorRecord {
	return ValidatorRecord{
		ID:              id,
		RewardAddresses: NormalizeAddresses(addrs),
		Weight:          weight,
		DelegatedWeight: delegated,
	}
}
