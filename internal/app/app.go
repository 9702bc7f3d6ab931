// Package app wires configuration into the stores and services shared by
// cmd/server and cmd/hrctl.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/hrpipe/internal/config"
	"github.com/JonMunkholm/hrpipe/internal/core"
	"github.com/JonMunkholm/hrpipe/internal/export"
	"github.com/JonMunkholm/hrpipe/internal/filestore"
	"github.com/JonMunkholm/hrpipe/internal/hr"
	"github.com/JonMunkholm/hrpipe/internal/jobstore"
	"github.com/JonMunkholm/hrpipe/internal/report"
	"github.com/JonMunkholm/hrpipe/internal/store"
)

// App holds the open connections and the services built on them.
type App struct {
	Config *config.Config
	Pool   *pgxpool.Pool
	Store  *store.Postgres
	Jobs   *jobstore.Repository
	Files  core.FileStore

	Imports  *core.Service
	Reports  *report.Engine
	Exporter *export.Exporter

	closeJobs func() error
}

// Connect opens and pings a pool sized from cfg.Database.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// New connects to the database and file store and builds every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	gdb, err := jobstore.Open(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("job store handle: %w", err)
	}

	files, err := filestore.New(ctx, cfg.Storage)
	if err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("open file store: %w", err)
	}

	pg := store.NewPostgres(pool)
	jobs := jobstore.New(gdb)
	return &App{
		Config:    cfg,
		Pool:      pool,
		Store:     pg,
		Jobs:      jobs,
		Files:     files,
		Imports:   core.NewService(pg, jobs, files, ServiceConfig(cfg)),
		Reports:   report.NewEngine(pg),
		Exporter:  export.New(pg),
		closeJobs: sqlDB.Close,
	}, nil
}

// Close releases the job store handle and the pool.
func (a *App) Close() {
	if a.closeJobs != nil {
		if err := a.closeJobs(); err != nil {
			slog.Warn("close job store", "error", err)
		}
	}
	a.Pool.Close()
}

// ServiceConfig maps the import settings onto core.ServiceConfig.
func ServiceConfig(cfg *config.Config) core.ServiceConfig {
	return core.ServiceConfig{
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		Timeout:       cfg.Import.Timeout,
		Delimiter:     cfg.Import.DelimiterRune(),
		Mapper: core.MapperOptions{
			Shift:              cfg.Attendance.Shift(),
			StaffUpsertByEmail: cfg.Import.StaffUpsertByEmail,
		},
	}
}

// DryRunStore keeps writes in memory while resolving staff codes against a
// real store, so work log rows validate against existing staff without
// changing anything.
type DryRunStore struct {
	*store.Memory
	lookup core.StaffLookup
}

var _ core.ImportStore = (*DryRunStore)(nil)

// NewDryRunStore returns a DryRunStore; lookup may be nil.
func NewDryRunStore(lookup core.StaffLookup) *DryRunStore {
	return &DryRunStore{Memory: store.NewMemory(), lookup: lookup}
}

// StaffIDByCode prefers staff written during the run, then the lookup.
func (d *DryRunStore) StaffIDByCode(ctx context.Context, code string) (int64, error) {
	id, err := d.Memory.StaffIDByCode(ctx, code)
	if err == nil || d.lookup == nil || !errors.Is(err, hr.ErrNotFound) {
		return id, err
	}
	return d.lookup.StaffIDByCode(ctx, code)
}
