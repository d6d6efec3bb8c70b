package pipeline

import (
	"time"

	"photosync/internal/syncerr"
)

// Outcome is the per-item result of a transfer.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDuplicate Outcome = "duplicate"
)

// ItemResult records what happened to one candidate.
type ItemResult struct {
	Code        string  `json:"code,omitempty" yaml:"code,omitempty"`
	Path        string  `json:"path,omitempty" yaml:"path,omitempty"`
	Outcome     Outcome `json:"outcome" yaml:"outcome"`
	Reason      string  `json:"reason,omitempty" yaml:"reason,omitempty"`
	ErrorKind   string  `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	DuplicateOf string  `json:"duplicate_of,omitempty" yaml:"duplicate_of,omitempty"`
	ArchivedTo  string  `json:"archived_to,omitempty" yaml:"archived_to,omitempty"`
}

// BatchResult summarises one pipeline run. Partial failure is reported in the
// counts, never as a returned error.
type BatchResult struct {
	Stage      string        `json:"stage" yaml:"stage"`
	Found      int           `json:"found" yaml:"found"`
	Succeeded  int           `json:"succeeded" yaml:"succeeded"`
	Failed     int           `json:"failed" yaml:"failed"`
	Skipped    int           `json:"skipped" yaml:"skipped"`
	Duplicates int           `json:"duplicates" yaml:"duplicates"`
	Archived   int           `json:"archived" yaml:"archived"`
	Success    bool          `json:"success" yaml:"success"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns" yaml:"duration_ns"`
	Items      []ItemResult  `json:"items,omitempty" yaml:"items,omitempty"`
}

func newBatch(stage string) BatchResult {
	return BatchResult{Stage: stage, Items: []ItemResult{}}
}

func (b *BatchResult) succeed(item ItemResult) int {
	item.Outcome = OutcomeSucceeded
	b.Succeeded++
	return b.add(item)
}

func (b *BatchResult) skip(item ItemResult, reason string) int {
	item.Outcome = OutcomeSkipped
	item.Reason = reason
	b.Skipped++
	return b.add(item)
}

func (b *BatchResult) duplicate(item ItemResult, of string) int {
	item.Outcome = OutcomeDuplicate
	item.DuplicateOf = of
	b.Duplicates++
	return b.add(item)
}

func (b *BatchResult) fail(item ItemResult, err error) int {
	item.Outcome = OutcomeFailed
	item.Reason = err.Error()
	item.ErrorKind = syncerr.KindOf(err).String()
	b.Failed++
	return b.add(item)
}

func (b *BatchResult) add(item ItemResult) int {
	b.Items = append(b.Items, item)
	return len(b.Items) - 1
}

// abort marks the batch failed before any item was processed.
func (b *BatchResult) abort(err error) {
	b.Success = false
	b.Error = err.Error()
}
