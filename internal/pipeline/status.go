package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/takahashim/broadlistening-go/internal/domain"
)

// Run status values.
const (
	StatusInitialized = "initialized"
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusError       = "error"
)

// lockLeaseSeconds is how long a "running" status is honored before a new
// invocation is allowed to take over, interpreted as a soft lease.
const lockLeaseSeconds = 300

// Status is the persistent per-run journal: lock, plan, provenance, and
// running token totals. It is written atomically (whole-file replace) at
// every stage boundary.
type Status struct {
	Status                string              `json:"status"`
	Plan                  []domain.PlanStep   `json:"plan,omitempty"`
	StartTime             string              `json:"start_time,omitempty"`
	EndTime               string              `json:"end_time,omitempty"`
	LockUntil             string              `json:"lock_until,omitempty"`
	CurrentJob            string              `json:"current_job,omitempty"`
	CurrentJobStarted     string              `json:"current_job_started,omitempty"`
	CompletedJobs         []domain.CompletedJob `json:"completed_jobs"`
	PreviouslyCompletedJobs []domain.CompletedJob `json:"previously_completed_jobs"`
	TotalTokenUsage       int                 `json:"total_token_usage"`
	TokenUsageInput       int                 `json:"token_usage_input"`
	TokenUsageOutput      int                 `json:"token_usage_output"`
	Error                 string              `json:"error,omitempty"`
	ErrorStackTrace       string              `json:"error_stack_trace,omitempty"`
}

func statusPath(dir string) string {
	return filepath.Join(dir, "status.json")
}

// nowISO returns the current local time formatted as RFC 3339 (ISO-8601)
// with its UTC offset, written as "Z" when the local zone is UTC.
func nowISO() string {
	return time.Now().Format(time.RFC3339)
}

// LoadStatus reads status.json from dir. A missing file is not an error:
// it returns a fresh Status with StatusInitialized.
func LoadStatus(dir string) (*Status, error) {
	data, err := os.ReadFile(statusPath(dir))
	if os.IsNotExist(err) {
		return &Status{Status: StatusInitialized}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: read status: %w", err)
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("pipeline: parse status: %w", err)
	}
	return &st, nil
}

// Save writes st to dir/status.json as a whole-file replace.
func (st *Status) Save(dir string) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: marshal status: %w", err)
	}
	tmp := statusPath(dir) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("pipeline: write status: %w", err)
	}
	return os.Rename(tmp, statusPath(dir))
}

// Locked reports whether st represents another run's active lease.
func (st *Status) Locked() bool {
	if st.Status != StatusRunning {
		return false
	}
	until, err := time.Parse(time.RFC3339, st.LockUntil)
	if err != nil {
		return false
	}
	return time.Now().Before(until)
}

// RenewLock advances the lock lease from now.
func (st *Status) RenewLock() {
	st.LockUntil = time.Now().Add(lockLeaseSeconds * time.Second).Format(time.RFC3339)
}

// AllCompletedJobs returns every completed job of every step, across the
// current and all previous runs.
func (st *Status) AllCompletedJobs() []domain.CompletedJob {
	all := make([]domain.CompletedJob, 0, len(st.CompletedJobs)+len(st.PreviouslyCompletedJobs))
	all = append(all, st.PreviouslyCompletedJobs...)
	all = append(all, st.CompletedJobs...)
	return all
}

// LastCompletedJob returns the most recent CompletedJob for step, if any.
func (st *Status) LastCompletedJob(step string) (domain.CompletedJob, bool) {
	var found domain.CompletedJob
	ok := false
	for _, j := range st.AllCompletedJobs() {
		if j.Step == step {
			found = j
			ok = true
		}
	}
	return found, ok
}

// AddTokenUsage accumulates a delta into the journal's running totals.
func (st *Status) AddTokenUsage(u domain.TokenUsage) {
	st.TotalTokenUsage += u.Total
	st.TokenUsageInput += u.Input
	st.TokenUsageOutput += u.Output
}

// Finalize moves this run's CompletedJobs into PreviouslyCompletedJobs,
// replacing any prior entry for the same step, and marks the run
// completed.
func (st *Status) Finalize() {
	byStep := make(map[string]domain.CompletedJob, len(st.PreviouslyCompletedJobs))
	for _, j := range st.PreviouslyCompletedJobs {
		byStep[j.Step] = j
	}
	for _, j := range st.CompletedJobs {
		byStep[j.Step] = j
	}
	merged := make([]domain.CompletedJob, 0, len(byStep))
	for _, j := range byStep {
		merged = append(merged, j)
	}
	st.PreviouslyCompletedJobs = merged
	st.CompletedJobs = nil
	st.Status = StatusCompleted
	st.EndTime = nowISO()
}
