package poller

import (
	"context"
	"testing"
	"time"

	"fieldops.lk/internal/directory"
	"fieldops.lk/internal/jobs"
	"fieldops.lk/internal/rbac"
)

func TestFirstReconcilePrimesWithoutChange(t *testing.T) {
	p := New(jobs.NewMemoryStore(), directory.NewMemoryStore())
	cs, err := p.Reconcile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cs.Any() {
		t.Errorf("priming round reported changes: %+v", cs)
	}
}

func TestReconcileDetectsJobAndUserChanges(t *testing.T) {
	ctx := context.Background()
	jobStore := jobs.NewMemoryStore()
	userStore := directory.NewMemoryStore()
	p := New(jobStore, userStore)

	if _, err := p.Reconcile(ctx); err != nil {
		t.Fatal(err)
	}

	// No writes: quiet round.
	cs, err := p.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Any() {
		t.Errorf("quiet round reported changes: %+v", cs)
	}

	// A new job flips only the jobs flag.
	if _, err := jobStore.Insert(ctx, jobs.Job{Title: "Splice", Status: jobs.StatusAssigned}); err != nil {
		t.Fatal(err)
	}
	cs, err = p.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !cs.Jobs || cs.Users {
		t.Errorf("after job insert: %+v", cs)
	}

	// A new user flips only the users flag.
	if err := userStore.Insert(ctx, directory.User{
		ID: "USER-1", Username: "nimal", Role: rbac.RoleTechLeadPartner,
	}); err != nil {
		t.Fatal(err)
	}
	cs, err = p.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Jobs || !cs.Users {
		t.Errorf("after user insert: %+v", cs)
	}

	// A field mutation (not just membership) is a change too.
	j, err := jobStore.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	j.Progress = 50
	if err := jobStore.Update(ctx, j); err != nil {
		t.Fatal(err)
	}
	cs, err = p.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !cs.Jobs {
		t.Errorf("progress update not detected: %+v", cs)
	}
}

func TestPasswordRotationIsInvisible(t *testing.T) {
	ctx := context.Background()
	userStore := directory.NewMemoryStore()
	p := New(jobs.NewMemoryStore(), userStore)

	u := directory.User{ID: "USER-1", Username: "nimal", PasswordHash: "a", Role: rbac.RoleTechLeadPartner}
	if err := userStore.Insert(ctx, u); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Reconcile(ctx); err != nil {
		t.Fatal(err)
	}

	u.PasswordHash = "b"
	if err := userStore.Update(ctx, u); err != nil {
		t.Fatal(err)
	}
	cs, err := p.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Users {
		t.Errorf("hash-only rotation reported as change: %+v", cs)
	}
}

func TestSubscribeFanOut(t *testing.T) {
	ctx := context.Background()
	jobStore := jobs.NewMemoryStore()
	p := New(jobStore, directory.NewMemoryStore())

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := p.Subscribe(subCtx)

	if _, err := p.Reconcile(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := jobStore.Insert(ctx, jobs.Job{Title: "Splice"}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Reconcile(ctx); err != nil {
		t.Fatal(err)
	}

	select {
	case cs := <-ch:
		if !cs.Jobs {
			t.Errorf("notification = %+v, want Jobs set", cs)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification delivered")
	}

	cancel()
	// The subscriber channel closes once the context ends.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after context cancel")
		}
	}
}
