package models

import "time"

// Markers published through current_recipient when a job is not mid-recipient.
const (
	RecipientInitializing = "Initializing..."
	RecipientCompleted    = "Completed"
)

// FailedEntry records one recipient that could not be delivered to.
type FailedEntry struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// Job is the live state of one bulk campaign. All mutation happens inside the
// registry's critical sections; callers outside the registry only ever see
// copies produced by Clone.
type Job struct {
	ID                   string        `json:"job_id"`
	Total                int           `json:"total"`
	Processed            int           `json:"processed"`
	Success              int           `json:"success"`
	Failed               int           `json:"failed"`
	Running              bool          `json:"in_progress"`
	StartTime            time.Time     `json:"start_time"`
	EndTime              *time.Time    `json:"end_time"`
	Duration             float64       `json:"duration"` // seconds, set at terminal transition
	CurrentRecipient     string        `json:"current_recipient"`
	CompletionPercentage int           `json:"completion_percentage"`
	FailedEntries        []FailedEntry `json:"failed_emails"`
	FatalError           string        `json:"error,omitempty"`
}

// Clone returns a copy that is safe to hand out after the registry lock is
// released. The failed-entries slice is duplicated so later worker appends
// cannot be observed through the snapshot.
func (j *Job) Clone() Job {
	c := *j
	if j.EndTime != nil {
		t := *j.EndTime
		c.EndTime = &t
	}
	c.FailedEntries = append([]FailedEntry(nil), j.FailedEntries...)
	return c
}
