package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"fieldops.lk/internal/ids"
	"fieldops.lk/internal/obs"
	"fieldops.lk/internal/rbac"
)

// MaxEntries caps the retained history; oldest entries are evicted first.
const MaxEntries = 1000

var (
	ErrPermissionDenied = errors.New("audit: permission denied")
)

// Store persists entries newest-first. Implementations enforce no cap of
// their own; the Log trims before writing through.
type Store interface {
	// Prepend inserts the entry at the head and drops everything beyond max.
	Prepend(entry Entry, max int) error
	// All returns every retained entry, newest first.
	All() ([]Entry, error)
	// Reset discards all entries.
	Reset() error
}

// Log is the append-only audit trail. Recording never fails the caller:
// storage errors are written to the operational logger and swallowed, so
// audit plumbing cannot block the primary action it is attached to.
type Log struct {
	store Store
	now   func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Log) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewLog constructs a Log over the given store.
func NewLog(store Store, opts ...Option) *Log {
	l := &Log{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record captures the context principal (nil actor when unauthenticated) and
// appends an entry. A failed write is logged, not returned; auditing never
// blocks the operation being audited.
func (l *Log) Record(ctx context.Context, typ EntryType, details map[string]any) {
	var actor *Actor
	if principal, ok := rbac.PrincipalFromContext(ctx); ok {
		actor = &Actor{ID: principal.UserID, Name: principal.Name, Role: principal.Role}
	}
	if details == nil {
		details = map[string]any{}
	}
	entry := Entry{
		ID:        "LOG-" + ids.New(),
		Timestamp: l.now().UTC(),
		Type:      typ,
		Actor:     actor,
		Details:   details,
	}
	if err := l.store.Prepend(entry, MaxEntries); err != nil {
		obs.LogRequest(map[string]any{
			"level": "error",
			"msg":   "audit append failed",
			"type":  string(typ),
			"error": err.Error(),
		})
	}
}

// Recent returns up to n entries, newest first.
func (l *Log) Recent(n int) ([]Entry, error) {
	all, err := l.store.All()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if n > len(all) {
		n = len(all)
	}
	return all[:n], nil
}

// ByType returns entries with the given type, newest first.
func (l *Log) ByType(typ EntryType) ([]Entry, error) {
	all, err := l.store.All()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out, nil
}

// ByUser returns entries whose actor matches userID, newest first.
func (l *Log) ByUser(userID string) ([]Entry, error) {
	all, err := l.store.All()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.Actor != nil && e.Actor.ID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ByDateRange returns entries with from <= timestamp <= to, newest first.
func (l *Log) ByDateRange(from, to time.Time) ([]Entry, error) {
	all, err := l.store.All()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Export serializes the full retained history as JSON.
func (l *Log) Export() ([]byte, error) {
	all, err := l.store.All()
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []Entry{}
	}
	return json.MarshalIndent(all, "", "  ")
}

// Clear wipes the history. The caller needs the audit_logs permission and the
// clear action itself is recorded after the wipe, so it survives as the sole
// remaining entry rather than vanishing with the rest.
func (l *Log) Clear(ctx context.Context) error {
	if !rbac.CanAccess(ctx, rbac.PermAuditLogs) {
		return ErrPermissionDenied
	}
	if err := l.store.Reset(); err != nil {
		return err
	}
	l.Record(ctx, TypeSystemSettings, map[string]any{"action": "clear_audit_logs"})
	return nil
}
