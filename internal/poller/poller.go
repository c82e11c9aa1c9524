package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"fieldops.lk/internal/directory"
	"fieldops.lk/internal/jobs"
	"fieldops.lk/internal/obs"
)

// DefaultInterval is the poll cadence used by Run when none is given.
const DefaultInterval = 2 * time.Second

// ChangeSet says which datasets moved since the previous reconcile.
type ChangeSet struct {
	Jobs  bool      `json:"jobs"`
	Users bool      `json:"users"`
	At    time.Time `json:"at"`
}

// Any reports whether anything changed.
func (c ChangeSet) Any() bool { return c.Jobs || c.Users }

// Poller detects dataset changes by periodically serializing full snapshots
// and comparing them structurally against the previous round. Field order is
// fixed by sorting on id first, so byte equality of the JSON means structural
// equality of the dataset. Detected changes fan out to all subscribers.
type Poller struct {
	jobStore  jobs.Store
	userStore directory.Store
	now       func() time.Time

	mu        sync.Mutex
	lastJobs  []byte
	lastUsers []byte
	primed    bool

	subMu sync.RWMutex
	subs  map[int]chan ChangeSet
	next  int
}

// Option configures Poller behavior.
type Option func(*Poller)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(p *Poller) {
		if fn != nil {
			p.now = fn
		}
	}
}

// New constructs a Poller over the two stores.
func New(jobStore jobs.Store, userStore directory.Store, opts ...Option) *Poller {
	p := &Poller{
		jobStore:  jobStore,
		userStore: userStore,
		now:       time.Now,
		subs:      make(map[int]chan ChangeSet),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers a subscriber and returns a channel receiving change
// notifications. The channel is closed when the provided context ends. Slow
// subscribers drop notifications rather than stall the poll loop.
func (p *Poller) Subscribe(ctx context.Context) <-chan ChangeSet {
	ch := make(chan ChangeSet, 16)

	p.subMu.Lock()
	id := p.next
	p.next++
	p.subs[id] = ch
	p.subMu.Unlock()

	go func() {
		<-ctx.Done()
		p.subMu.Lock()
		delete(p.subs, id)
		close(ch)
		p.subMu.Unlock()
	}()

	return ch
}

func (p *Poller) publish(cs ChangeSet) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()
	for _, ch := range p.subs {
		select {
		case ch <- cs:
		default:
		}
	}
}

// Reconcile takes one snapshot, compares it to the previous one, and notifies
// subscribers of any difference. The first round primes the baseline and
// never reports a change.
func (p *Poller) Reconcile(ctx context.Context) (ChangeSet, error) {
	jobsJSON, err := p.snapshotJobs(ctx)
	if err != nil {
		return ChangeSet{}, err
	}
	usersJSON, err := p.snapshotUsers(ctx)
	if err != nil {
		return ChangeSet{}, err
	}

	p.mu.Lock()
	cs := ChangeSet{At: p.now().UTC()}
	if p.primed {
		cs.Jobs = !bytes.Equal(jobsJSON, p.lastJobs)
		cs.Users = !bytes.Equal(usersJSON, p.lastUsers)
	}
	p.lastJobs = jobsJSON
	p.lastUsers = usersJSON
	p.primed = true
	p.mu.Unlock()

	if cs.Any() {
		p.publish(cs)
	}
	return cs, nil
}

// Run reconciles on the given interval until ctx is done. Snapshot errors are
// logged and the loop keeps going; a transient store failure must not kill
// change detection for the life of the process.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Reconcile(ctx); err != nil {
				obs.LogRequest(map[string]any{
					"level": "error",
					"msg":   "poll reconcile failed",
					"error": err.Error(),
				})
			}
		}
	}
}

func (p *Poller) snapshotJobs(ctx context.Context) ([]byte, error) {
	all, err := p.jobStore.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return json.Marshal(all)
}

func (p *Poller) snapshotUsers(ctx context.Context) ([]byte, error) {
	all, err := p.userStore.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	// Password hashes are json:"-" on the user type, so credential rotation
	// alone does not count as a visible change.
	return json.Marshal(all)
}
