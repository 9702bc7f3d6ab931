package core

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/hrpipe/internal/hr"
	"github.com/JonMunkholm/hrpipe/internal/logging"
)

// Job listing bounds.
const (
	DefaultJobListLimit = 50
	MaxJobListLimit     = 500
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	MaxConcurrent int
	MaxWait       time.Duration

	// Timeout bounds one import run; zero disables it.
	Timeout time.Duration

	// Delimiter is used when a request does not set one.
	Delimiter rune

	Mapper MapperOptions
}

// Service is the entry point for imports, used by the web handlers and
// hrctl alike.
type Service struct {
	runner    *Runner
	jobs      JobRepository
	files     FileStore
	limiter   *ImportLimiter
	delimiter rune
	timeout   time.Duration
	now       func() time.Time
}

// NewService wires a Service. files may be nil, in which case sources are
// streamed straight into the runner and not retained.
func NewService(store ImportStore, jobs JobRepository, files FileStore, cfg ServiceConfig) *Service {
	now := cfg.Mapper.Now
	if now == nil {
		now = time.Now
	}
	delim := cfg.Delimiter
	if delim == 0 {
		delim = ','
	}
	return &Service{
		runner:    NewRunner(store, jobs, cfg.Mapper),
		jobs:      jobs,
		files:     files,
		limiter:   NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		delimiter: delim,
		timeout:   cfg.Timeout,
		now:       now,
	}
}

// Limiter exposes the import limiter for shutdown drain and health output.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

// ImportRequest is one uploaded file.
type ImportRequest struct {
	Kind        Kind
	FileName    string
	Body        io.Reader
	Size        int64
	InitiatedBy string
	Delimiter   rune
}

// Import saves the source to the file store and runs it. A request-level
// failure returns a nil job and removes the saved source.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*hr.ImportJob, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	delim := req.Delimiter
	if delim == 0 {
		delim = s.delimiter
	}

	source, key, err := s.stage(ctx, req)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	job, err := s.runner.Run(ctx, RunRequest{
		Kind:        req.Kind,
		Source:      source,
		FileName:    req.FileName,
		SourceRef:   key,
		InitiatedBy: req.InitiatedBy,
		Delimiter:   delim,
	})
	if job == nil && key != "" {
		s.discard(ctx, key)
	}
	return job, err
}

// stage stores the upload and reopens it for reading.
func (s *Service) stage(ctx context.Context, req ImportRequest) (io.ReadCloser, string, error) {
	if s.files == nil {
		return io.NopCloser(req.Body), "", nil
	}

	key := s.sourceKey(req.Kind, req.FileName)
	if err := s.files.Save(ctx, key, req.Body, req.Size); err != nil {
		return nil, "", fmt.Errorf("save import source: %w", err)
	}

	rc, err := s.files.Open(ctx, key)
	if err != nil {
		s.discard(ctx, key)
		return nil, "", fmt.Errorf("open import source: %w", err)
	}
	return rc, key, nil
}

func (s *Service) discard(ctx context.Context, key string) {
	if err := s.files.Delete(context.WithoutCancel(ctx), key); err != nil {
		logging.FromContext(ctx).Warn("delete import source", "key", key, "error", err)
	}
}

// sourceKey builds kind/YYYY/MM/DD/<uuid><ext>.
func (s *Service) sourceKey(kind Kind, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	switch ext {
	case ".csv", ".tsv", ".txt":
	default:
		ext = ".csv"
	}
	return path.Join(kind.String(), s.now().UTC().Format("2006/01/02"), uuid.NewString()+ext)
}

// Job returns one import job.
func (s *Service) Job(ctx context.Context, id string) (*hr.ImportJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrJobNotFound, id)
	}
	return s.jobs.Get(ctx, id)
}

// Jobs lists recent jobs, newest first. kind may be empty for all kinds.
func (s *Service) Jobs(ctx context.Context, kind string, limit int) ([]hr.ImportJob, error) {
	if kind != "" {
		k, err := ParseKind(kind)
		if err != nil {
			return nil, err
		}
		kind = k.String()
	}
	switch {
	case limit <= 0:
		limit = DefaultJobListLimit
	case limit > MaxJobListLimit:
		limit = MaxJobListLimit
	}
	return s.jobs.List(ctx, kind, limit)
}

// Template returns the file layout for a kind name.
func (s *Service) Template(kind string) (Template, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return Template{}, err
	}
	return k.Template(), nil
}
