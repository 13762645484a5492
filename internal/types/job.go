package types

import "time"

// JobType is the kind of background refresh a job tracks.
type JobType string

const (
	JobDashboardRefresh JobType = "dashboard_refresh"
	JobClaimsRefresh    JobType = "claims_refresh"
	JobAllRefresh       JobType = "all_refresh"
)

// JobStatus moves strictly forward: pending -> running -> completed | failed.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

var jobStatusRank = map[JobStatus]int{
	JobPending:   0,
	JobRunning:   1,
	JobCompleted: 2,
	JobFailed:    2,
}

// Terminal reports whether no further transition is allowed out of s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

func (s JobStatus) Valid() bool {
	_, ok := jobStatusRank[s]
	return ok
}

// CanTransition reports whether a job in status from may move to status to.
// Re-applying the same terminal status is tolerated.
func CanTransition(from, to JobStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.Terminal() {
		return from == to
	}
	return jobStatusRank[to] > jobStatusRank[from]
}

// BackgroundJob is the audit record of one refresh. Jobs are never deleted.
type BackgroundJob struct {
	ID           string     `json:"id" dynamodbav:"job_id"`
	Type         JobType    `json:"type" dynamodbav:"job_type"`
	Status       JobStatus  `json:"status" dynamodbav:"status"`
	StartedAt    time.Time  `json:"started_at" dynamodbav:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" dynamodbav:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty" dynamodbav:"error_message,omitempty"`
}

// Apply moves the job to status at now, enforcing forward-only transitions.
func (j *BackgroundJob) Apply(status JobStatus, errMsg string, now time.Time) error {
	if !CanTransition(j.Status, status) {
		return Err(ErrInvalidTransition, nil, "job %s: %s -> %s", j.ID, j.Status, status)
	}
	if j.Status == status {
		return nil
	}
	j.Status = status
	if status.Terminal() {
		t := now
		j.CompletedAt = &t
	}
	if status == JobFailed {
		j.ErrorMessage = errMsg
	}
	return nil
}

// DataType is the refresh selector accepted by the background refresh endpoint.
type DataType string

const (
	DataDashboard DataType = "dashboard"
	DataClaims    DataType = "claims"
	DataAll       DataType = "all"
)

// JobType maps a DataType to the job kind tracking its refresh.
func (d DataType) JobType() (JobType, error) {
	switch d {
	case DataDashboard:
		return JobDashboardRefresh, nil
	case DataClaims:
		return JobClaimsRefresh, nil
	case DataAll:
		return JobAllRefresh, nil
	}
	return "", Err(ErrInvalidDataType, nil, "unknown data type %q", string(d))
}
