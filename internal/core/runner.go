package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/hrpipe/internal/hr"
	"github.com/JonMunkholm/hrpipe/internal/logging"
)

// ErrMissingColumns matches a *MissingColumnsError.
var ErrMissingColumns = errors.New("missing required columns")

// ErrImportInterrupted is returned when the context ends mid-run. The job
// is still finalized with the rows processed so far.
var ErrImportInterrupted = errors.New("import interrupted")

// ProgressLogInterval is how often, in rows, the runner logs progress.
var ProgressLogInterval = 1000

// MissingColumnsError lists required columns absent from a file header.
type MissingColumnsError struct {
	Kind    Kind
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required column(s) for %s: %s", e.Kind, strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Is(target error) bool { return target == ErrMissingColumns }

// RunRequest describes one import.
type RunRequest struct {
	Kind        Kind
	Source      io.Reader
	FileName    string
	SourceRef   string
	InitiatedBy string

	// Delimiter defaults to a comma.
	Delimiter rune
}

// Runner executes imports: it reads rows, maps them, writes them one at a
// time and keeps the job record. A failing row never stops the batch.
type Runner struct {
	store  ImportStore
	jobs   JobRepository
	mapper *Mapper
	now    func() time.Time
	newID  func() string
}

// NewRunner creates a Runner writing to store and recording jobs in jobs.
func NewRunner(store ImportStore, jobs JobRepository, opts MapperOptions) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		store:  store,
		jobs:   jobs,
		mapper: NewMapper(store, opts),
		now:    opts.Now,
		newID:  uuid.NewString,
	}
}

// Run imports req.Source. A source without a readable header, or missing a
// required column, is rejected before a job exists. Otherwise a job is
// created in processing and finalized exactly once as completed, even when
// every row fails.
//
// If reading stops early, because the context ended or the source failed,
// the job is finalized with the counts so far, marked interrupted with a
// trailing entry in Errors, and returned together with the error.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*hr.ImportJob, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind)
	}

	comma := req.Delimiter
	if comma == 0 {
		comma = ','
	}

	rows, err := NewRowReader(req.Source, comma)
	if err != nil {
		return nil, err
	}
	if missing := rows.Header().Missing(req.Kind.RequiredColumns()); len(missing) > 0 {
		return nil, &MissingColumnsError{Kind: req.Kind, Columns: missing}
	}

	job := &hr.ImportJob{
		ID:          r.newID(),
		Kind:        req.Kind.String(),
		SourceRef:   req.SourceRef,
		FileName:    req.FileName,
		Status:      hr.JobProcessing,
		Errors:      []string{},
		StartedAt:   r.now().UTC(),
		InitiatedBy: req.InitiatedBy,
		Source: hr.JobSource{
			Delimiter: string(comma),
			Columns:   rows.Header().Names(),
		},
	}
	if err := r.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}

	log := logging.WithFields(ctx, "job_id", job.ID, "kind", job.Kind)
	log.Info("import started", "file", req.FileName, "columns", rows.Header().Len())

	runErr := r.process(ctx, log, req.Kind, rows, job)

	completed := r.now().UTC()
	job.Status = hr.JobCompleted
	job.CompletedAt = &completed
	job.Source.BytesRead = rows.BytesRead()
	if runErr != nil {
		job.Source.Interrupted = true
		job.Errors = append(job.Errors, fmt.Sprintf("Import interrupted after %d rows: %s", job.TotalRows, stopCause(ctx, runErr)))
	}

	// The job must be written even if the caller has gone away.
	if err := r.jobs.Finalize(context.WithoutCancel(ctx), job); err != nil {
		log.Error("finalize import job", "error", err)
		return job, errors.Join(runErr, fmt.Errorf("finalize import job: %w", err))
	}

	log.Info("import completed",
		"total_rows", job.TotalRows,
		"success_rows", job.SuccessRows,
		"error_rows", job.ErrorRows,
		"bytes", job.Source.BytesRead,
		"duration_ms", completed.Sub(job.StartedAt).Milliseconds(),
	)
	if runErr != nil {
		log.Warn("import stopped early", "error", runErr)
	}
	return job, runErr
}

func (r *Runner) process(ctx context.Context, log *slog.Logger, kind Kind, rows *RowReader, job *hr.ImportJob) error {
	spec := kindSpecs[kind]

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w after %d rows: %w", ErrImportInterrupted, job.TotalRows, err)
		}

		row, err := rows.Next()
		if err == io.EOF {
			return nil
		}

		var rowErr *RowError
		switch {
		case errors.As(err, &rowErr):
			job.TotalRows++
			r.fail(job, rowErr.Line, rowErr.Err)
		case err != nil:
			return fmt.Errorf("read source: %w", err)
		default:
			job.TotalRows++
			if err := r.importRow(ctx, spec, row); err != nil {
				r.fail(job, row.Line, err)
			} else {
				job.SuccessRows++
			}
		}
		job.ProcessedRows = job.SuccessRows + job.ErrorRows

		if ProgressLogInterval > 0 && job.TotalRows%ProgressLogInterval == 0 {
			log.Debug("import progress",
				"rows", job.TotalRows,
				"errors", job.ErrorRows,
				"bytes", rows.BytesRead(),
			)
		}
	}
}

// stopCause is the reason recorded on an interrupted job.
func stopCause(ctx context.Context, runErr error) string {
	if ctx.Err() != nil {
		return context.Cause(ctx).Error()
	}
	return runErr.Error()
}

func (r *Runner) importRow(ctx context.Context, spec kindSpec, row Row) error {
	rec, err := spec.mapRow(ctx, r.mapper, row.Fields)
	if err != nil {
		return err
	}
	return rec.save(ctx, r.store)
}

func (r *Runner) fail(job *hr.ImportJob, line int, err error) {
	job.ErrorRows++
	job.Errors = append(job.Errors, fmt.Sprintf("Row %d: %s", line, err))
}
