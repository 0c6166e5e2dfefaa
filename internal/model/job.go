package model

import "time"

// Job status constants. These are also the wire values.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// MaxQuestionLength is the upper bound on question length, in characters.
const MaxQuestionLength = 10000

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusQueued: {
		StatusRunning: true,
	},
	StatusRunning: {
		StatusDone:   true,
		StatusFailed: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether no further transitions can leave status.
func IsTerminal(status string) bool {
	return status == StatusDone || status == StatusFailed
}

// AnswerRecord is the result payload of a successfully completed job. The
// same record is kept in the recent answers history.
type AnswerRecord struct {
	Question   string    `json:"question"`
	Company    string    `json:"company"`
	Answer     string    `json:"answer"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Job is one asynchronous question/company processing request.
type Job struct {
	ID          string
	Question    string
	Company     string
	Status      string
	UserID      string
	SubmittedAt time.Time
	CompletedAt *time.Time
	Result      *AnswerRecord
	Error       string
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	c := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	return &c
}

// JobView is the externally visible snapshot of a job.
type JobView struct {
	JobID       string        `json:"jobId"`
	Status      string        `json:"status"`
	SubmittedAt time.Time     `json:"submittedAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Result      *AnswerRecord `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// View builds the snapshot for j. Result is only exposed for done jobs and
// Error only for failed ones.
func (j *Job) View() JobView {
	c := j.Clone()
	v := JobView{
		JobID:       c.ID,
		Status:      c.Status,
		SubmittedAt: c.SubmittedAt,
		CompletedAt: c.CompletedAt,
	}
	switch c.Status {
	case StatusDone:
		v.Result = c.Result
	case StatusFailed:
		v.Error = c.Error
	}
	return v
}

// JobUpdate is the notification pushed to subscribers on every transition.
type JobUpdate struct {
	JobID     string    `json:"jobId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
