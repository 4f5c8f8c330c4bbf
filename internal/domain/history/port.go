package history

import "context"

// Repository port for persisting and querying analysis history.
// Every operation is scoped by the owning username; implementations must
// serialize mutations so concurrent writers cannot lose updates.
type Repository interface {
	// Insert prepends rec to the owner's records and evicts that owner's
	// oldest records beyond the retention cap. Other owners are untouched.
	Insert(ctx context.Context, rec Record) error
	// List returns the owner's records newest-first.
	List(ctx context.Context, username string) ([]Record, error)
	// Get returns ErrNotFound when the id does not exist or belongs to a
	// different owner; the two cases are indistinguishable to the caller.
	Get(ctx context.Context, username string, id RecordID) (*Record, error)
	// DeleteOne removes exactly one matching record or returns ErrNotFound.
	DeleteOne(ctx context.Context, username string, id RecordID) error
	// DeleteAll removes every record owned by username; removing zero
	// records is still a success.
	DeleteAll(ctx context.Context, username string) error
}
