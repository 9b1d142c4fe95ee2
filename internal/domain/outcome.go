package domain

import "time"

// Outcome records the result of one account's check-in attempt.
// Immutable once produced; aggregated, never mutated.
type Outcome struct {
	Account string
	// AccountKey identifies the account across runs; Account is the
	// display name and may shift with the account's file position.
	AccountKey string
	Provider   string
	Method     AuthMethod
	Status     Status
	Detail     string
	Quota      int64
	UsedQuota  int64
	Timestamp  time.Time
}

// RunSummary aggregates the outcomes of one batch run
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
}

// SuccessCount returns how many accounts checked in (or already had)
func (r *RunSummary) SuccessCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status.Succeeded() {
			n++
		}
	}
	return n
}

// FailureCount returns how many accounts failed
func (r *RunSummary) FailureCount() int {
	return len(r.Outcomes) - r.SuccessCount()
}

// Succeeded reports whether the run as a whole succeeded: at least one
// account reached Success or AlreadyCheckedIn.
func (r *RunSummary) Succeeded() bool {
	return r.SuccessCount() > 0
}
