package jobs

import "context"

// Store describes persistence for job records. Insert assigns the sequence
// number; Update replaces whole records (last write wins across processes, the
// Engine serializes read-modify-write within one).
type Store interface {
	Insert(ctx context.Context, j Job) (Job, error)
	Get(ctx context.Context, id JobID) (Job, error)
	List(ctx context.Context) ([]Job, error)
	Update(ctx context.Context, j Job) error
	Delete(ctx context.Context, id JobID) error
}
