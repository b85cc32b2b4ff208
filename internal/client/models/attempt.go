package models

import "time"

// AttemptStep is one labelled point on a login attempt's timeline.
type AttemptStep struct {
	Label string    `json:"label"`
	At    time.Time `json:"at"`
}

// AttemptRecord is the audit entry for one login call. Once appended to a
// Session it is never modified.
type AttemptRecord struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Strategy  string        `json:"strategy"`
	Steps     []AttemptStep `json:"steps"`
	Retries   int           `json:"retries"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// Step appends a labelled step at time at.
func (r *AttemptRecord) Step(label string, at time.Time) {
	r.Steps = append(r.Steps, AttemptStep{Label: label, At: at})
}

// Clone returns a deep copy of r.
func (r AttemptRecord) Clone() AttemptRecord {
	r.Steps = append([]AttemptStep(nil), r.Steps...)
	return r
}

// Labels returns the step labels in order.
func (r AttemptRecord) Labels() []string {
	labels := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		labels[i] = s.Label
	}
	return labels
}
