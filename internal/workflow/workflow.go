// Package workflow chains the transfer pipelines into one run with an
// optional field reset and a side-effect free dry-run preview.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"photosync/internal/models"
	"photosync/internal/pipeline"
	"photosync/internal/syncerr"
)

// Ledger is the part of the repository the orchestrator touches directly.
type Ledger interface {
	ClearField(ctx context.Context, field models.Field) (int64, error)
	CountField(ctx context.Context, field models.Field) (int64, error)
}

// Pipelines is the set of transfers the orchestrator sequences.
type Pipelines interface {
	Import(ctx context.Context, opts pipeline.ImportOptions) (pipeline.BatchResult, error)
	Upload(ctx context.Context, opts pipeline.UploadOptions) (pipeline.BatchResult, error)
	Download(ctx context.Context) (pipeline.BatchResult, error)
	Export(ctx context.Context, opts pipeline.ExportOptions) (pipeline.BatchResult, error)

	ImportCandidates(dir string) (int, error)
	UploadCandidates(ctx context.Context, opts pipeline.UploadOptions) (int, error)
	DownloadCandidates(ctx context.Context) (int, error)
	ExportCandidates(ctx context.Context, opts pipeline.ExportOptions) (int, error)
}

// Request describes one workflow run.
type Request struct {
	Stages StageSet
	// ClearField, when set, is reset on every record before the stages run.
	ClearField models.Field
	DryRun     bool

	Import pipeline.ImportOptions
	Upload pipeline.UploadOptions
	Export pipeline.ExportOptions
}

// StageResult is the outcome of one stage. In dry-run mode only Candidates is set.
type StageResult struct {
	Stage      Stage                 `json:"stage" yaml:"stage"`
	Candidates int                   `json:"candidates" yaml:"candidates"`
	Batch      *pipeline.BatchResult `json:"batch,omitempty" yaml:"batch,omitempty"`
	Error      string                `json:"error,omitempty" yaml:"error,omitempty"`
	Duration   time.Duration         `json:"duration_ns" yaml:"duration_ns"`
}

// Succeeded reports whether the stage succeeded or had nothing to do. A
// preview succeeds when its candidates could be counted.
func (r StageResult) Succeeded() bool {
	if r.Error != "" {
		return false
	}
	if r.Batch == nil {
		return true
	}
	return r.Batch.Success || r.Batch.Found == 0
}

// Result aggregates a workflow run.
type Result struct {
	RunID        string        `json:"run_id" yaml:"run_id"`
	DryRun       bool          `json:"dry_run" yaml:"dry_run"`
	ClearedField string        `json:"cleared_field,omitempty" yaml:"cleared_field,omitempty"`
	ClearedCount int64         `json:"cleared_count" yaml:"cleared_count"`
	Stages       []StageResult `json:"stages" yaml:"stages"`
	Success      bool          `json:"success" yaml:"success"`
	Error        string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration     time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

// Orchestrator runs workflows.
type Orchestrator struct {
	ledger    Ledger
	pipelines Pipelines
	logger    *slog.Logger
	now       func() time.Time
	newRunID  func() string
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRunIDs sets the run id generator.
func WithRunIDs(next func() string) Option {
	return func(o *Orchestrator) {
		if next != nil {
			o.newRunID = next
		}
	}
}

// New constructs an Orchestrator.
func New(ledger Ledger, pipelines Pipelines, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ledger:    ledger,
		pipelines: pipelines,
		logger:    slog.Default(),
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "workflow")
	return o
}

// Run executes req. Stages always run in the order import, upload,
// download, export. A returned error means the run could not start; stage
// failures are reported in the result.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	result := Result{RunID: o.newRunID(), DryRun: req.DryRun, Stages: []StageResult{}}
	start := o.now()
	logger := o.logger.With("run_id", result.RunID)

	stages := req.Stages
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	for s := range stages {
		if err := s.valid(); err != nil {
			err = syncerr.Validation("workflow", err)
			result.Error = err.Error()
			return result, err
		}
	}
	if req.ClearField != "" && !req.ClearField.Valid() {
		err := &syncerr.InvalidFieldError{Field: string(req.ClearField)}
		result.Error = err.Error()
		return result, err
	}
	logger.Info("workflow started", "stages", stages.String(), "dry_run", req.DryRun, "clear_field", string(req.ClearField))

	if req.ClearField != "" {
		result.ClearedField = req.ClearField.String()
		var (
			count int64
			err   error
		)
		if req.DryRun {
			count, err = o.ledger.CountField(ctx, req.ClearField)
		} else {
			count, err = o.ledger.ClearField(ctx, req.ClearField)
		}
		if err != nil {
			result.Error = fmt.Sprintf("clear %s: %v", req.ClearField, err)
			result.Duration = o.now().Sub(start)
			return result, err
		}
		result.ClearedCount = count
		logger.Info("field reset", "field", req.ClearField.String(), "rows", count, "dry_run", req.DryRun)
	}

	allOK := true
	for _, stage := range stages.Ordered() {
		var sr StageResult
		if req.DryRun {
			sr = o.preview(ctx, stage, req)
		} else {
			sr = o.execute(ctx, stage, req)
		}
		if !sr.Succeeded() {
			allOK = false
		}
		logger.Info("workflow stage done", "stage", stage.String(), "ok", sr.Succeeded(), "candidates", sr.Candidates, "duration", sr.Duration)
		result.Stages = append(result.Stages, sr)
	}

	result.Success = !req.DryRun && allOK
	result.Duration = o.now().Sub(start)
	logger.Info("workflow finished", "success", result.Success, "duration", result.Duration)
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, stage Stage, req Request) StageResult {
	sr := StageResult{Stage: stage}
	start := o.now()

	var (
		batch pipeline.BatchResult
		err   error
	)
	switch stage {
	case StageImport:
		batch, err = o.pipelines.Import(ctx, req.Import)
	case StageUpload:
		batch, err = o.pipelines.Upload(ctx, req.Upload)
	case StageDownload:
		batch, err = o.pipelines.Download(ctx)
	case StageExport:
		batch, err = o.pipelines.Export(ctx, req.Export)
	}
	sr.Batch = &batch
	sr.Candidates = batch.Found
	if err != nil {
		sr.Error = err.Error()
	}
	sr.Duration = o.now().Sub(start)
	return sr
}

// preview counts candidates with the same selection queries the stages use.
// It performs no mutation.
func (o *Orchestrator) preview(ctx context.Context, stage Stage, req Request) StageResult {
	sr := StageResult{Stage: stage}
	start := o.now()

	var (
		count int
		err   error
	)
	switch stage {
	case StageImport:
		count, err = o.pipelines.ImportCandidates(req.Import.Dir)
	case StageUpload:
		count, err = o.pipelines.UploadCandidates(ctx, req.Upload)
	case StageDownload:
		count, err = o.pipelines.DownloadCandidates(ctx)
	case StageExport:
		count, err = o.pipelines.ExportCandidates(ctx, req.Export)
	}
	sr.Candidates = count
	if err != nil {
		sr.Error = err.Error()
	}
	sr.Duration = o.now().Sub(start)
	return sr
}
