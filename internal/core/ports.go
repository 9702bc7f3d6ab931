package core

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/JonMunkholm/hrpipe/internal/hr"
)

// ErrJobFinalized is returned by a JobRepository when Finalize is called on
// a job that is no longer processing.
var ErrJobFinalized = errors.New("import job already finalized")

// ErrJobNotFound is returned when an import job id does not exist.
var ErrJobNotFound = errors.New("import job not found")

// StaffLookup resolves a staff code to the internal staff id. Unknown codes
// return an error wrapping hr.ErrNotFound.
type StaffLookup interface {
	StaffIDByCode(ctx context.Context, code string) (int64, error)
}

// ImportStore persists mapped rows. Every method is atomic on its own; the
// runner never groups calls into a larger transaction.
type ImportStore interface {
	StaffLookup

	// InsertStaff creates a staff row and fills in ID, and Code when the
	// store assigns one.
	InsertStaff(ctx context.Context, s *hr.Staff) error

	// UpsertStaffByEmail updates the staff row with the same personal email,
	// or inserts one.
	UpsertStaffByEmail(ctx context.Context, s *hr.Staff) error

	// UpsertWorkLog writes the log keyed on (StaffID, LogDate).
	UpsertWorkLog(ctx context.Context, w *hr.WorkLog) error

	// UpsertHoliday writes the holiday keyed on Date.
	UpsertHoliday(ctx context.Context, h *hr.Holiday) error
}

// JobRepository persists import job records.
type JobRepository interface {
	Create(ctx context.Context, job *hr.ImportJob) error

	// Finalize writes final counters and status. It must succeed at most
	// once per job and return ErrJobFinalized afterwards.
	Finalize(ctx context.Context, job *hr.ImportJob) error

	Get(ctx context.Context, id string) (*hr.ImportJob, error)
	List(ctx context.Context, kind string, limit int) ([]hr.ImportJob, error)

	// PruneCompleted deletes finished jobs completed before the cutoff and
	// returns their source references.
	PruneCompleted(ctx context.Context, before time.Time) ([]string, error)
}

// FileStore keeps uploaded import sources.
type FileStore interface {
	Save(ctx context.Context, key string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
