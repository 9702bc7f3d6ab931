package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/JonMunkholm/hrpipe/internal/hr"
)

type workLogKey struct {
	staffID int64
	date    time.Time
}

// fakeStore is an in-memory ImportStore. Like the real stores it keeps
// staff codes unique and lets a personal email repeat.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	codes    map[string]int64
	staff    []hr.Staff
	workLogs map[workLogKey]hr.WorkLog
	holidays map[time.Time]hr.Holiday

	// failWrite, when set, is returned by every write whose key matches.
	failWrite func(key string) error
}

func newFakeStore(codes ...string) *fakeStore {
	s := &fakeStore{
		codes:    make(map[string]int64),
		workLogs: make(map[workLogKey]hr.WorkLog),
		holidays: make(map[time.Time]hr.Holiday),
	}
	for _, c := range codes {
		s.nextID++
		s.codes[c] = s.nextID
		s.staff = append(s.staff, hr.Staff{ID: s.nextID, Code: c})
	}
	return s
}

func (s *fakeStore) check(key string) error {
	if s.failWrite == nil {
		return nil
	}
	return s.failWrite(key)
}

func (s *fakeStore) StaffIDByCode(_ context.Context, code string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[code]
	if !ok {
		return 0, fmt.Errorf("staff %s: %w", code, hr.ErrNotFound)
	}
	return id, nil
}

func (s *fakeStore) InsertStaff(_ context.Context, st *hr.Staff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(st.PersonalEmail); err != nil {
		return err
	}
	if _, taken := s.codes[st.Code]; st.Code != "" && taken {
		return errDuplicateCode
	}
	s.nextID++
	st.ID = s.nextID
	if st.Code == "" {
		st.Code = fmt.Sprintf("EMP%03d", st.ID)
	}
	s.codes[st.Code] = st.ID
	s.staff = append(s.staff, *st)
	return nil
}

func (s *fakeStore) UpsertStaffByEmail(ctx context.Context, st *hr.Staff) error {
	s.mu.Lock()
	i := slices.IndexFunc(s.staff, func(x hr.Staff) bool { return x.PersonalEmail == st.PersonalEmail })
	if i >= 0 {
		st.ID = s.staff[i].ID
		if st.Code == "" {
			st.Code = s.staff[i].Code
		} else if id, taken := s.codes[st.Code]; taken && id != st.ID {
			s.mu.Unlock()
			return errDuplicateCode
		}
		s.codes[st.Code] = st.ID
		s.staff[i] = *st
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.InsertStaff(ctx, st)
}

func (s *fakeStore) UpsertWorkLog(_ context.Context, w *hr.WorkLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(w.StaffCode); err != nil {
		return err
	}
	s.workLogs[workLogKey{w.StaffID, w.LogDate}] = *w
	return nil
}

func (s *fakeStore) UpsertHoliday(_ context.Context, h *hr.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(h.Title); err != nil {
		return err
	}
	s.holidays[h.Date] = *h
	return nil
}

// fakeJobs is an in-memory JobRepository that records calls.
type fakeJobs struct {
	mu        sync.Mutex
	jobs      map[string]hr.ImportJob
	order     []string
	finalized int
	createErr error
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[string]hr.ImportJob)}
}

func (f *fakeJobs) Create(_ context.Context, job *hr.ImportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.jobs[job.ID] = *job
	f.order = append(f.order, job.ID)
	return nil
}

func (f *fakeJobs) Finalize(ctx context.Context, job *hr.ImportJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.jobs[job.ID]
	if !ok {
		return ErrJobNotFound
	}
	if stored.Status != hr.JobProcessing {
		return ErrJobFinalized
	}
	f.finalized++
	f.jobs[job.ID] = *job
	return nil
}

func (f *fakeJobs) Get(_ context.Context, id string) (*hr.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (f *fakeJobs) List(_ context.Context, kind string, limit int) ([]hr.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []hr.ImportJob
	for i := len(f.order) - 1; i >= 0 && len(out) < limit; i-- {
		job := f.jobs[f.order[i]]
		if kind == "" || job.Kind == kind {
			out = append(out, job)
		}
	}
	return out, nil
}

func (f *fakeJobs) PruneCompleted(_ context.Context, before time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var refs []string
	for id, job := range f.jobs {
		if job.Status == hr.JobCompleted && job.CompletedAt != nil && job.CompletedAt.Before(before) {
			refs = append(refs, job.SourceRef)
			delete(f.jobs, id)
		}
	}
	return refs, nil
}

var (
	errWriteFailed   = errors.New("write failed")
	errDuplicateCode = errors.New("duplicate value: staff_code")
)
