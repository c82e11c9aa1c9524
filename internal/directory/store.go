package directory

import "context"

// Store describes persistence for user records. The directory is a shared
// multi-writer resource: updates replace whole records (last write wins) and
// no optimistic concurrency tokens are kept.
type Store interface {
	Insert(ctx context.Context, u User) error
	Get(ctx context.Context, id string) (User, error)
	// FindByCredential matches either username or email, exact.
	FindByCredential(ctx context.Context, credential string) (User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u User) error
	Delete(ctx context.Context, id string) error
}
