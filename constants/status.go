package constants

// JobStatus is the canonical status for rows in parsing_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending    JobStatus = "PENDING"    // created, waiting for a worker
	JobStatusQueued     JobStatus = "QUEUED"     // picked up by the queue
	JobStatusProcessing JobStatus = "PROCESSING" // worker is parsing
	JobStatusCompleted  JobStatus = "COMPLETED"  // terminal success
	JobStatusFailed     JobStatus = "FAILED"     // terminal failure
	JobStatusRetrying   JobStatus = "RETRYING"   // worker scheduled a retry
	JobStatusCancelled  JobStatus = "CANCELLED"  // terminal, cancelled by an operator
)

// ActiveJobStatuses are the non-terminal statuses. At most one job per
// document file may be in any of these at a time (enforced by the partial
// unique index ux_parsing_jobs_active_file).
var ActiveJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusQueued,
	JobStatusProcessing,
	JobStatusRetrying,
}

// IsTerminal reports whether s is a terminal job status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
