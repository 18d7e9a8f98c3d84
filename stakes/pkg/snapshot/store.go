package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
)

const (
	peersFile         = "peers.json"
	reportFile        = "report.json"
	reportGroupedFile = "report-grouped.json"
)

var (
	ErrNotFound = errors.New("snapshot not found")

	basicPattern    = regexp.MustCompile(`^validators(\.([0-9]+))?\.json$`)
	extendedPattern = regexp.MustCompile(`^validators-ext(\.([0-9]+))?\.json$`)
)

type StoreConfig struct {
	Logger *slog.Logger
	Root   string
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Root == "" {
		return errors.New("root is required")
	}
	return nil
}

// Store reads and writes date-keyed snapshot directories under a root:
//
//	<root>/<YYYY-MM-DD>/validators[.N].json
//	<root>/<YYYY-MM-DD>/validators-ext[.N].json
//	<root>/<YYYY-MM-DD>/peers.json
//	<root>/<YYYY-MM-DD>/report.json, report-grouped.json
type Store struct {
	log  *slog.Logger
	cfg  StoreConfig
	mu   sync.Mutex
	root string
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	return &Store{log: cfg.Logger, cfg: cfg, root: filepath.Clean(cfg.Root)}, nil
}

func (s *Store) Root() string {
	return s.root
}

// Dates returns the snapshot dates under the root in ascending order. Entries that are not
// YYYY-MM-DD directories are ignored.
func (s *Store) Dates() ([]time.Time, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot root: %w", err)
	}
	var dates []time.Time
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d, err := time.Parse(time.DateOnly, e.Name())
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	return dates, nil
}

// Latest returns the most recent snapshot date.
func (s *Store) Latest() (time.Time, error) {
	dates, err := s.Dates()
	if err != nil {
		return time.Time{}, err
	}
	if len(dates) == 0 {
		return time.Time{}, ErrNotFound
	}
	return dates[len(dates)-1], nil
}

func (s *Store) dir(date time.Time) string {
	return filepath.Join(s.root, date.Format(time.DateOnly))
}

// validatorFiles returns the basic or extended validator files of a date, in part order.
func (s *Store) validatorFiles(date time.Time, extended bool) ([]string, error) {
	pattern := basicPattern
	if extended {
		pattern = extendedPattern
	}
	entries, err := os.ReadDir(s.dir(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, date.Format(time.DateOnly))
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	type part struct {
		name string
		n    int
	}
	var parts []part
	for _, e := range entries {
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		n := -1
		if m[2] != "" {
			n, _ = strconv.Atoi(m[2])
		}
		parts = append(parts, part{name: e.Name(), n: n})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no validator files for %s (extended=%t)", ErrNotFound, date.Format(time.DateOnly), extended)
	}
	slices.SortFunc(parts, func(a, b part) int { return a.n - b.n })

	files := make([]string, len(parts))
	for i, p := range parts {
		files[i] = filepath.Join(s.dir(date), p.name)
	}
	return files, nil
}

// LoadValidators reads every validator part of a date. Records that cannot be used are
// excluded; they and degraded records are reported in the returned problems.
func (s *Store) LoadValidators(date time.Time, extended bool) ([]engine.ValidatorRecord, []error, error) {
	files, err := s.validatorFiles(date, extended)
	if err != nil {
		return nil, nil, err
	}

	var records []engine.ValidatorRecord
	var problems []error
	offset := 0
	for _, f := range files {
		var raw []Validator
		if err := readJSON(f, &raw); err != nil {
			return nil, nil, err
		}
		recs, probs := DecodeValidators(raw, offset)
		records = append(records, recs...)
		problems = append(problems, probs...)
		offset += len(raw)
	}
	if len(problems) > 0 {
		s.log.Warn("snapshot: records with missing fields", "date", date.Format(time.DateOnly), "count", len(problems), "loaded", len(records))
	}
	s.log.Debug("snapshot: loaded validators", "date", date.Format(time.DateOnly), "extended", extended, "files", len(files), "records", len(records))
	return records, problems, nil
}

// LoadInput assembles the analysis input of a date. Extended snapshots are already joined.
// Basic snapshots carry the peers of the date when a peers file exists, so the analysis joins
// them; without one the validators are analyzed as they are.
func (s *Store) LoadInput(date time.Time, extended bool) (engine.Input, []error, error) {
	records, problems, err := s.LoadValidators(date, extended)
	if err != nil {
		return engine.Input{}, nil, err
	}
	in := engine.Input{Date: date, Validators: records}
	if extended {
		return in, problems, nil
	}
	peers, err := s.LoadPeers(date)
	switch {
	case errors.Is(err, ErrNotFound):
		s.log.Debug("snapshot: no peers, analyzing validators unjoined", "date", date.Format(time.DateOnly))
	case err != nil:
		return engine.Input{}, nil, err
	default:
		in.Peers = peers
	}
	return in, problems, nil
}

// LoadPeers reads the peers of a date. A missing peers file yields ErrNotFound.
func (s *Store) LoadPeers(date time.Time) ([]engine.PeerRecord, error) {
	path := filepath.Join(s.dir(date), peersFile)
	var raw []Peer
	if err := readJSON(path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no peers for %s", ErrNotFound, date.Format(time.DateOnly))
		}
		return nil, err
	}
	peers := make([]engine.PeerRecord, 0, len(raw))
	for i, p := range raw {
		rec, err := p.ToRecord(i)
		if err != nil {
			s.log.Warn("snapshot: skipping peer", "date", date.Format(time.DateOnly), "error", err)
			continue
		}
		peers = append(peers, rec)
	}
	return peers, nil
}

// WriteValidators writes records as the single part of a date, replacing any existing parts
// of the same kind.
func (s *Store) WriteValidators(date time.Time, records []engine.ValidatorRecord, extended bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir(date), 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if files, err := s.validatorFiles(date, extended); err == nil {
		for _, f := range files {
			if err := os.Remove(f); err != nil {
				return "", fmt.Errorf("failed to remove old part: %w", err)
			}
		}
	}

	name := "validators.json"
	if extended {
		name = "validators-ext.json"
	}
	raw := make([]Validator, len(records))
	for i, r := range records {
		raw[i] = FromRecord(r)
	}
	path := filepath.Join(s.dir(date), name)
	if err := writeJSON(path, raw); err != nil {
		return "", err
	}
	s.log.Info("snapshot: wrote validators", "path", path, "records", len(records))
	return path, nil
}

func (s *Store) WritePeers(date time.Time, peers []engine.PeerRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir(date), 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	raw := make([]Peer, len(peers))
	for i, p := range peers {
		raw[i] = FromPeer(p)
	}
	path := filepath.Join(s.dir(date), peersFile)
	if err := writeJSON(path, raw); err != nil {
		return "", err
	}
	s.log.Info("snapshot: wrote peers", "path", path, "records", len(peers))
	return path, nil
}

// WriteReport persists a report next to the snapshot it was computed from.
func (s *Store) WriteReport(r Report) (string, error) {
	date, err := time.Parse(time.DateOnly, r.Date)
	if err != nil {
		return "", fmt.Errorf("failed to parse report date: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir(date), 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	path := filepath.Join(s.dir(date), reportName(r.Grouped))
	if err := writeJSON(path, r); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) LoadReport(date time.Time, grouped bool) (Report, error) {
	var r Report
	if err := readJSON(filepath.Join(s.dir(date), reportName(grouped)), &r); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Report{}, fmt.Errorf("%w: no report for %s", ErrNotFound, date.Format(time.DateOnly))
		}
		return Report{}, err
	}
	return r, nil
}

func reportName(grouped bool) string {
	if grouped {
		return reportGroupedFile
	}
	return reportFile
}

// QuarterlyDates keeps the last available date of every calendar quarter, in ascending order.
func QuarterlyDates(dates []time.Time) []time.Time {
	sorted := slices.Clone(dates)
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })

	var out []time.Time
	for i, d := range sorted {
		if i+1 < len(sorted) && quarterOf(sorted[i+1]) == quarterOf(d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func quarterOf(t time.Time) int {
	return t.Year()*4 + (int(t.Month())-1)/3
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
