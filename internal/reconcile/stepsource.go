// Package reconcile re-derives local streak state from an authoritative
// external step-history source. It recovers from the failure modes local
// continuity assumptions cannot: a fresh install whose health history
// predates the install, a reinstall with an activity gap, and a crash between
// a confirmed shield purchase and the repair it was meant to fund.
package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/stride-app/stride/internal/utils"
)

// DayTotal is one day's step count as reported by the authoritative source.
type DayTotal struct {
	Day   string `json:"day"`
	Steps int    `json:"steps"`
}

// StepSource provides authoritative daily step totals. Implementations talk
// to whatever health integration is available; any error means the source is
// unavailable and reconciliation must not run.
type StepSource interface {
	FetchDailyTotals() ([]DayTotal, error)
}

// FileSource reads day totals from a JSON export, the interchange format the
// mobile companion writes. Useful for manual reconciliation and tests.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) FetchDailyTotals() ([]DayTotal, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read step export %s: %w", f.Path, err)
	}

	var totals []DayTotal
	if err := json.Unmarshal(data, &totals); err != nil {
		return nil, fmt.Errorf("failed to parse step export %s: %w", f.Path, err)
	}

	seen := make(map[string]bool, len(totals))
	for _, t := range totals {
		if !utils.ValidateDayKey(t.Day) {
			return nil, fmt.Errorf("invalid day in step export: %q", t.Day)
		}
		if t.Steps < 0 {
			return nil, fmt.Errorf("negative step count in export for %s: %d", t.Day, t.Steps)
		}
		if seen[t.Day] {
			return nil, fmt.Errorf("duplicate day in step export: %s", t.Day)
		}
		seen[t.Day] = true
	}

	sort.Slice(totals, func(i, j int) bool { return totals[i].Day < totals[j].Day })
	return totals, nil
}

// staticSource serves a fixed slice of totals. Test seam.
type staticSource struct {
	totals []DayTotal
	err    error
}

func (s *staticSource) FetchDailyTotals() ([]DayTotal, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]DayTotal, len(s.totals))
	copy(out, s.totals)
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}
