// Copyright 2024 Replicasync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package journal keeps a history of scan and record runs in a SQLite file.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/tursodatabase/go-libsql"

	"replicasync/internal/common"
	"replicasync/internal/util"
)

// DefaultBusyTimeout is the busy_timeout in milliseconds
const DefaultBusyTimeout = 30000

// Journal is an open run history database.
type Journal struct {
	path string
	db   *sql.DB
	bun  *bun.DB
}

// Open opens the journal at path, creating the file and schema if needed.
func Open(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// libsql ignores DSN-based _pragma=value parameters
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{
		path: path,
		db:   db,
		bun:  bun.NewDB(db, sqlitedialect.New()),
	}
	if err := j.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	return j, nil
}

func execPragma(db *sql.DB, pragma string) error {
	rows, err := db.Query(pragma)
	if err != nil {
		return err
	}
	rows.Close()
	return nil
}

func applyPragmas(db *sql.DB) error {
	// busy_timeout first so journal_mode=WAL waits for locks
	if err := execPragma(db, fmt.Sprintf("PRAGMA busy_timeout = %d", DefaultBusyTimeout)); err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if err := execPragma(db, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}
	if err := execPragma(db, "PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous=NORMAL: %w", err)
	}
	return nil
}

func (j *Journal) createSchema(ctx context.Context) error {
	if _, err := j.bun.NewCreateTable().
		Model((*RunModel)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}
	_, err := j.bun.NewCreateIndex().
		Model((*RunModel)(nil)).
		Index("idx_runs_started").
		Column("started_at").
		IfNotExists().
		Exec(ctx)
	return err
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.bun.Close()
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Start records a new run in the running state.
func (j *Journal) Start(ctx context.Context, command string, roots []string) (*Run, error) {
	run := &Run{
		ID:        uuid.New(),
		Command:   command,
		Roots:     roots,
		StartedAt: time.Now(),
		Status:    StatusRunning,
	}
	err := util.Retry(ctx, func() error {
		_, err := j.bun.NewInsert().Model(RunModelFromRun(run)).Exec(ctx)
		return err
	}, util.DatabaseRetryOptions(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	log.Debugf("Started run %s (%s)", run.ID, command)
	return run, nil
}

// Finish stores the outcome of run. A nil runErr marks it successful.
func (j *Journal) Finish(ctx context.Context, run *Run, directories, differences int, runErr error) error {
	run.FinishedAt = time.Now()
	run.Directories = directories
	run.Differences = differences
	run.Status = StatusOK
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
	}

	model := RunModelFromRun(run)
	return util.Retry(ctx, func() error {
		_, err := j.bun.NewUpdate().
			Model(model).
			Column("finished_at", "directories", "differences", "status", "error").
			WherePK().
			Exec(ctx)
		return err
	}, util.DatabaseRetryOptions(ctx)...)
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]*Run, error) {
	var models []RunModel
	err := j.bun.NewSelect().
		Model(&models).
		OrderExpr("started_at DESC, rowid DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	runs := make([]*Run, 0, len(models))
	for i := range models {
		run, err := models[i].ToRun()
		if err != nil {
			log.Warnf("Skipping run with malformed id %q: %v", models[i].ID, err)
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Get returns the run with the given id.
func (j *Journal) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	model := new(RunModel)
	err := j.bun.NewSelect().
		Model(model).
		Where("id = ?", id.String()).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return model.ToRun()
}
