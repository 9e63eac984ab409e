package journal

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// RunModel is the Bun model for the runs table.
type RunModel struct {
	bun.BaseModel `bun:"table:runs"`

	ID          string `bun:"id,pk"`
	Command     string `bun:"command,notnull"`
	Roots       string `bun:"roots,notnull"`       // newline separated
	StartedAt   int64  `bun:"started_at,notnull"`  // Unix milliseconds
	FinishedAt  int64  `bun:"finished_at,notnull"` // Unix milliseconds, 0 while running
	Directories int    `bun:"directories,notnull"`
	Differences int    `bun:"differences,notnull"`
	Status      string `bun:"status,notnull"`
	Error       string `bun:"error,notnull"`
}

// Run is one recorded invocation of a scan or record command.
type Run struct {
	ID          uuid.UUID
	Command     string
	Roots       []string
	StartedAt   time.Time
	FinishedAt  time.Time
	Directories int
	Differences int
	Status      string
	Error       string
}

// Duration returns how long the run took, or zero while it is still running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ToRun converts a RunModel to a Run.
func (m *RunModel) ToRun() (*Run, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	run := &Run{
		ID:          id,
		Command:     m.Command,
		StartedAt:   time.UnixMilli(m.StartedAt),
		Directories: m.Directories,
		Differences: m.Differences,
		Status:      m.Status,
		Error:       m.Error,
	}
	if m.Roots != "" {
		run.Roots = strings.Split(m.Roots, "\n")
	}
	if m.FinishedAt != 0 {
		run.FinishedAt = time.UnixMilli(m.FinishedAt)
	}
	return run, nil
}

// RunModelFromRun creates a RunModel from a Run.
func RunModelFromRun(r *Run) *RunModel {
	m := &RunModel{
		ID:          r.ID.String(),
		Command:     r.Command,
		Roots:       strings.Join(r.Roots, "\n"),
		StartedAt:   r.StartedAt.UnixMilli(),
		Directories: r.Directories,
		Differences: r.Differences,
		Status:      r.Status,
		Error:       r.Error,
	}
	if !r.FinishedAt.IsZero() {
		m.FinishedAt = r.FinishedAt.UnixMilli()
	}
	return m
}
