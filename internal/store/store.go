package store

// Store defines the persistence operations for credentials and the submission
// log. Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type Store interface {
	PutCredential(c Credential) error
	GetCredential(address string) (*Credential, error)
	DeleteCredential(address string) error
	AppendSubmission(s Submission) error
	ListSubmissions(limit int) ([]Submission, error)
	LatestGoal(profileID string) (*Submission, error)
	Close() error
}

// Submission statuses recorded in the log.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
