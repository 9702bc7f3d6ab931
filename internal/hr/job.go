package hr

import "time"

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// ImportJob records one batch import. Once Status is JobCompleted,
// ProcessedRows == SuccessRows + ErrorRows and TotalRows counts every data
// row read from the file.
type ImportJob struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	SourceRef     string     `json:"source_ref,omitempty"`
	FileName      string     `json:"file_name"`
	Status        JobStatus  `json:"status"`
	TotalRows     int        `json:"total_rows"`
	ProcessedRows int        `json:"processed_rows"`
	SuccessRows   int        `json:"success_rows"`
	ErrorRows     int        `json:"error_rows"`
	Errors        []string   `json:"errors"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	InitiatedBy   string     `json:"initiated_by,omitempty"`
	Source        JobSource  `json:"source"`
}

// JobSource describes the file an import read.
type JobSource struct {
	Delimiter string   `json:"delimiter"`
	Columns   []string `json:"columns"`
	BytesRead int64    `json:"bytes_read"`

	// Interrupted is set when reading stopped before the end of the file.
	Interrupted bool `json:"interrupted,omitempty"`
}

// Done reports whether the job has been finalized.
func (j *ImportJob) Done() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
