package jobstore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/hrpipe/internal/core"
	"github.com/JonMunkholm/hrpipe/internal/hr"
	"github.com/JonMunkholm/hrpipe/internal/jobstore"
	"github.com/JonMunkholm/hrpipe/internal/store"
)

func TestRepositoryLifecycleIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect db: %v", err)
	}
	defer pool.Close()
	if err := store.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	db, err := jobstore.Open(pool)
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	repo := jobstore.New(db)

	started := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Millisecond)
	job := &hr.ImportJob{
		ID: uuid.NewString(), Kind: "company_holidays", SourceRef: "company_holidays/test.csv",
		Status: hr.JobProcessing, Errors: []string{}, StartedAt: started,
		Source: hr.JobSource{Delimiter: ",", Columns: []string{"title", "holiday_date"}},
	}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	done := started.Add(time.Second)
	job.Status, job.CompletedAt = hr.JobCompleted, &done
	job.TotalRows, job.ProcessedRows, job.ErrorRows = 1, 1, 1
	job.Errors = []string{"Row 2: holiday_date is required"}
	if err := repo.Finalize(ctx, job); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if err := repo.Finalize(ctx, job); !errors.Is(err, core.ErrJobFinalized) {
		t.Errorf("second Finalize() error = %v, want ErrJobFinalized", err)
	}

	got, err := repo.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != hr.JobCompleted || len(got.Errors) != 1 || got.Source.Columns[1] != "holiday_date" {
		t.Errorf("Get() = %+v", got)
	}
	if _, err := repo.Get(ctx, "not-a-uuid"); !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("Get(not-a-uuid) error = %v", err)
	}

	list, err := repo.List(ctx, "company_holidays", 5)
	if err != nil || len(list) == 0 {
		t.Fatalf("List() = %v, %v", list, err)
	}

	refs, err := repo.PruneCompleted(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneCompleted() error = %v", err)
	}
	found := false
	for _, ref := range refs {
		found = found || ref == job.SourceRef
	}
	if !found {
		t.Errorf("PruneCompleted() = %v, missing %s", refs, job.SourceRef)
	}
	if _, err := repo.Get(ctx, job.ID); !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("Get(pruned) error = %v", err)
	}
}
