package models

// SyncResult accumulates the outcome of one reconciliation run. Produced
// fresh on every sync call; failures are enumerated in Errors rather than
// aborting the run.
type SyncResult struct {
	Synced  int      `json:"synced"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Deleted int      `json:"deleted"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`

	// InProgress marks a run that never started because another sync held
	// the single-flight lock.
	InProgress bool `json:"in_progress,omitempty"`
}

func (r *SyncResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Success reports whether the run completed without any recorded error.
func (r *SyncResult) Success() bool {
	return len(r.Errors) == 0
}
