package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordReport collects the cleaning findings for one record: the field
// names that were dropped, and the error that stopped its resolution, if
// any. Ignored keys are sorted so reports are stable run to run.
type RecordReport struct {
	ID      string   `json:"id"`
	Ignored []string `json:"ignored,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// CleaningReport aggregates per-record findings for one cleaning run.
// Every resolution returns its own findings and the pipeline folds them in
// here, keyed and ordered by the dataset's identifiers; no state is shared
// between records while they are cleaned.
type CleaningReport struct {
	RunID     string         `json:"runId"`
	StartedAt time.Time      `json:"startedAt"`
	Total     int            `json:"total"`
	Cleaned   int            `json:"cleaned"`
	Failed    int            `json:"failed"`
	Records   []RecordReport `json:"records,omitempty"`

	index map[string]int
}

// NewCleaningReport returns an empty report with a fresh run ID.
func NewCleaningReport() *CleaningReport {
	return &CleaningReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		index:     make(map[string]int),
	}
}

// AddIgnored records the field names dropped from the record with the
// given identifier.
func (r *CleaningReport) AddIgnored(id string, keys []string) {
	if len(keys) == 0 {
		return
	}
	rec := r.record(id)
	rec.Ignored = append(rec.Ignored, keys...)
}

// AddError records the error that stopped resolution of the record with
// the given identifier.
func (r *CleaningReport) AddError(id string, err error) {
	if err == nil {
		return
	}
	r.record(id).Error = err.Error()
}

// AnyIgnored reports whether any record had fields dropped.
func (r *CleaningReport) AnyIgnored() bool {
	for _, rec := range r.Records {
		if len(rec.Ignored) > 0 {
			return true
		}
	}
	return false
}

// IgnoredFor returns the ignored field names recorded for id.
func (r *CleaningReport) IgnoredFor(id string) []string {
	if pos, ok := r.index[id]; ok {
		return r.Records[pos].Ignored
	}
	return nil
}

func (r *CleaningReport) record(id string) *RecordReport {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if pos, ok := r.index[id]; ok {
		return &r.Records[pos]
	}
	r.index[id] = len(r.Records)
	r.Records = append(r.Records, RecordReport{ID: id})
	return &r.Records[len(r.Records)-1]
}
