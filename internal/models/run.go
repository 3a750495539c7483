package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshRun tracks one refresh cycle and its outcome.
type RefreshRun struct {
	bun.BaseModel `bun:"table:refresh_runs,alias:rr"`

	ID                 int64      `bun:"id,pk,autoincrement" json:"-"`
	RunID              string     `bun:"run_id,unique,notnull" json:"run_id"`
	Trigger            RunTrigger `bun:"run_trigger,notnull" json:"trigger"`
	StartTime          time.Time  `bun:"start_time,notnull" json:"start_time"`
	EndTime            *time.Time `bun:"end_time" json:"end_time,omitempty"`
	Status             RunStatus  `bun:"status,notnull" json:"status"`
	ActiveExpected     int        `bun:"active_expected,default:0" json:"active_expected"`
	ActiveFetched      int        `bun:"active_fetched,default:0" json:"active_fetched"`
	ActiveKept         int        `bun:"active_kept,default:0" json:"active_kept"`
	HistoricalExpected int        `bun:"historical_expected,default:0" json:"historical_expected"`
	HistoricalFetched  int        `bun:"historical_fetched,default:0" json:"historical_fetched"`
	HistoricalKept     int        `bun:"historical_kept,default:0" json:"historical_kept"`
	NewContracts       int        `bun:"new_contracts,default:0" json:"new_contracts"`
	ErrorLog           *string    `bun:"error_log" json:"error_log,omitempty"`
	ConfigSnapshot     *string    `bun:"config_snapshot" json:"config_snapshot,omitempty"`
	CreatedAt          time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"-"`
}

// NewRefreshRun starts a run record with a fresh id.
func NewRefreshRun(trigger RunTrigger, now time.Time) *RefreshRun {
	return &RefreshRun{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartTime: now,
		Status:    RunRunning,
	}
}

// Finish closes the run, marking it failed when err is non-nil.
func (r *RefreshRun) Finish(now time.Time, err error) {
	r.EndTime = &now
	if err != nil {
		msg := err.Error()
		r.ErrorLog = &msg
		r.Status = RunFailed
		return
	}
	r.Status = RunSucceeded
}

// Skip closes the run without doing any work.
func (r *RefreshRun) Skip(now time.Time, reason string) {
	r.EndTime = &now
	r.ErrorLog = &reason
	r.Status = RunSkipped
}

// Duration is zero while the run is still in progress.
func (r *RefreshRun) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
