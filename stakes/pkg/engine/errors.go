package engine

import "fmt"

// MissingFieldError reports a record that lacks a required field.
type MissingFieldError struct {
	Index    int
	RecordID string
	Field    string
}

func (e *MissingFieldError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("record %d (%s): missing field %q", e.Index, e.RecordID, e.Field)
	}
	return fmt.Sprintf("record %d: missing field %q", e.Index, e.Field)
}

// EmptyDatasetError is returned when a stage has no records to work on.
type EmptyDatasetError struct {
	Stage string
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("%s: empty dataset", e.Stage)
}

// UndefinedMetricError is returned instead of a sentinel when a metric has no defined value.
type UndefinedMetricError struct {
	Metric    string
	Threshold float64
	Reason    string
}

func (e *UndefinedMetricError) Error() string {
	if e.Threshold != 0 {
		return fmt.Sprintf("%s at threshold %.4f is undefined: %s", e.Metric, e.Threshold, e.Reason)
	}
	return fmt.Sprintf("%s is undefined: %s", e.Metric, e.Reason)
}

// JoinMismatchError is informational: records present on only one side of a join were dropped.
type JoinMismatchError struct {
	LeftOnly  int
	RightOnly int
}

func (e *JoinMismatchError) Error() string {
	return fmt.Sprintf("join dropped %d left-only and %d right-only records", e.LeftOnly, e.RightOnly)
}
