// Package jobstore persists import job records with gorm on the shared pgx
// pool.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JonMunkholm/hrpipe/internal/core"
	"github.com/JonMunkholm/hrpipe/internal/hr"
)

var _ core.JobRepository = (*Repository)(nil)

type importJobModel struct {
	ID            string         `gorm:"type:uuid;primaryKey"`
	Kind          string         `gorm:"type:text;not null"`
	SourceRef     string         `gorm:"type:text;not null;default:''"`
	FileName      string         `gorm:"type:text;not null;default:''"`
	Status        string         `gorm:"type:text;not null"`
	TotalRows     int            `gorm:"not null;default:0"`
	ProcessedRows int            `gorm:"not null;default:0"`
	SuccessRows   int            `gorm:"not null;default:0"`
	ErrorRows     int            `gorm:"not null;default:0"`
	Errors        pq.StringArray `gorm:"type:text[];not null"`
	Meta          datatypes.JSON `gorm:"type:jsonb"`
	StartedAt     time.Time      `gorm:"not null"`
	CompletedAt   *time.Time
	InitiatedBy   string `gorm:"type:text;not null;default:''"`
}

func (importJobModel) TableName() string {
	return "import_jobs"
}

func toModel(job *hr.ImportJob) (importJobModel, error) {
	meta, err := json.Marshal(job.Source)
	if err != nil {
		return importJobModel{}, fmt.Errorf("encode job source: %w", err)
	}
	errs := job.Errors
	if errs == nil {
		errs = []string{}
	}
	return importJobModel{
		ID:            job.ID,
		Kind:          job.Kind,
		SourceRef:     job.SourceRef,
		FileName:      job.FileName,
		Status:        string(job.Status),
		TotalRows:     job.TotalRows,
		ProcessedRows: job.ProcessedRows,
		SuccessRows:   job.SuccessRows,
		ErrorRows:     job.ErrorRows,
		Errors:        pq.StringArray(errs),
		Meta:          datatypes.JSON(meta),
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
		InitiatedBy:   job.InitiatedBy,
	}, nil
}

func fromModel(m importJobModel) hr.ImportJob {
	job := hr.ImportJob{
		ID:            m.ID,
		Kind:          m.Kind,
		SourceRef:     m.SourceRef,
		FileName:      m.FileName,
		Status:        hr.JobStatus(m.Status),
		TotalRows:     m.TotalRows,
		ProcessedRows: m.ProcessedRows,
		SuccessRows:   m.SuccessRows,
		ErrorRows:     m.ErrorRows,
		Errors:        []string(m.Errors),
		StartedAt:     m.StartedAt.UTC(),
		InitiatedBy:   m.InitiatedBy,
	}
	if job.Errors == nil {
		job.Errors = []string{}
	}
	if m.CompletedAt != nil {
		t := m.CompletedAt.UTC()
		job.CompletedAt = &t
	}
	if len(m.Meta) > 0 {
		if err := json.Unmarshal(m.Meta, &job.Source); err != nil {
			slog.Warn("decode import job source", "job_id", m.ID, "error", err)
		}
	}
	return job
}

// Repository implements core.JobRepository.
type Repository struct {
	db *gorm.DB
}

// New wraps an open gorm handle.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Open builds a gorm handle over pool so jobs share the pgx connections
// used by the record store.
func Open(pool *pgxpool.Pool) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.New(slogWriter{}, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return db, nil
}

// slogWriter sends gorm's log lines to slog.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...), "component", "gorm")
}

func (r *Repository) Create(ctx context.Context, job *hr.ImportJob) error {
	m, err := toModel(job)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

// Finalize writes the final state of a job that is still processing.
func (r *Repository) Finalize(ctx context.Context, job *hr.ImportJob) error {
	m, err := toModel(job)
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&importJobModel{}).
		Where("id = ? AND status = ?", job.ID, string(hr.JobProcessing)).
		Updates(map[string]any{
			"status":         m.Status,
			"total_rows":     m.TotalRows,
			"processed_rows": m.ProcessedRows,
			"success_rows":   m.SuccessRows,
			"error_rows":     m.ErrorRows,
			"errors":         m.Errors,
			"meta":           m.Meta,
			"completed_at":   m.CompletedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("finalize import job: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	if _, err := r.Get(ctx, job.ID); err != nil {
		return err
	}
	return core.ErrJobFinalized
}

func (r *Repository) Get(ctx context.Context, id string) (*hr.ImportJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.ErrJobNotFound
	}

	var m importJobModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	job := fromModel(m)
	return &job, nil
}

// List returns the newest jobs first, optionally of one kind.
func (r *Repository) List(ctx context.Context, kind string, limit int) ([]hr.ImportJob, error) {
	q := r.db.WithContext(ctx).Order("started_at DESC")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []importJobModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}

	jobs := make([]hr.ImportJob, 0, len(models))
	for _, m := range models {
		jobs = append(jobs, fromModel(m))
	}
	return jobs, nil
}

// PruneCompleted deletes finished jobs completed before the cutoff and
// returns their non-empty source references.
func (r *Repository) PruneCompleted(ctx context.Context, before time.Time) ([]string, error) {
	refs := make([]string, 0)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doomed []importJobModel
		err := tx.Select("id", "source_ref").
			Where("status IN ? AND completed_at < ?", []string{string(hr.JobCompleted), string(hr.JobFailed)}, before).
			Find(&doomed).Error
		if err != nil || len(doomed) == 0 {
			return err
		}

		ids := make([]string, 0, len(doomed))
		for _, m := range doomed {
			ids = append(ids, m.ID)
			if m.SourceRef != "" {
				refs = append(refs, m.SourceRef)
			}
		}
		return tx.Where("id IN ?", ids).Delete(&importJobModel{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("prune import jobs: %w", err)
	}
	return refs, nil
}
