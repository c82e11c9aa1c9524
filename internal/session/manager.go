package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"fieldops.lk/internal/audit"
	"fieldops.lk/internal/directory"
	"fieldops.lk/internal/ids"
	"fieldops.lk/internal/rbac"
)

// IdleTimeout is how long a session survives without activity.
const IdleTimeout = 15 * time.Minute

var (
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	ErrNotFound           = errors.New("session: session not found")
	ErrExpired            = errors.New("session: session expired")
)

// Session is a live authenticated session. LastSeen advances on every Touch;
// expiry is measured from it, not from creation.
type Session struct {
	ID        string
	UserID    string
	Principal rbac.Principal
	CreatedAt time.Time
	LastSeen  time.Time
}

// Manager tracks live sessions and enforces the idle timeout. Expiry is
// detected lazily on Touch and proactively by Run's sweep; both paths record
// the same session_timeout entry exactly once.
type Manager struct {
	users    *directory.Service
	trail    *audit.Log
	now      func() time.Time
	timeout  time.Duration
	onExpire func(Session)

	mu       sync.Mutex
	sessions map[string]Session
}

// Option configures Manager behavior.
type Option func(*Manager)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithTimeout overrides the idle timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithExpiryHook registers a callback invoked after a session expires.
func WithExpiryHook(fn func(Session)) Option {
	return func(m *Manager) { m.onExpire = fn }
}

// NewManager constructs a Manager over the user directory.
func NewManager(users *directory.Service, trail *audit.Log, opts ...Option) *Manager {
	m := &Manager{
		users:    users,
		trail:    trail,
		now:      time.Now,
		timeout:  IdleTimeout,
		sessions: make(map[string]Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login authenticates a credential/password pair and opens a session. The
// login entry is recorded as the authenticated user, not the anonymous caller.
func (m *Manager) Login(ctx context.Context, credential, password string) (Session, directory.User, error) {
	user, err := m.users.Authenticate(ctx, credential, password)
	if err != nil {
		return Session{}, directory.User{}, ErrInvalidCredentials
	}
	now := m.now().UTC()
	sess := Session{
		ID:        "SES-" + ids.New(),
		UserID:    user.ID,
		Principal: user.Principal(),
		CreatedAt: now,
		LastSeen:  now,
	}
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.trail.Record(rbac.ContextWithPrincipal(ctx, sess.Principal), audit.TypeLogin, map[string]any{
		"session_id": sess.ID,
	})
	return sess, user, nil
}

// Touch marks activity on the session and returns it. An idle session is
// expired on the spot and reported as ErrExpired.
func (m *Manager) Touch(ctx context.Context, id string) (Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return Session{}, ErrNotFound
	}
	now := m.now().UTC()
	if now.Sub(sess.LastSeen) > m.timeout {
		delete(m.sessions, id)
		m.mu.Unlock()
		m.expire(ctx, sess)
		return Session{}, ErrExpired
	}
	sess.LastSeen = now
	m.sessions[id] = sess
	m.mu.Unlock()
	return sess, nil
}

// Logout closes the session. Unknown ids are a no-op.
func (m *Manager) Logout(ctx context.Context, id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.trail.Record(rbac.ContextWithPrincipal(ctx, sess.Principal), audit.TypeLogout, map[string]any{
		"session_id": sess.ID,
	})
}

// Active returns the number of live sessions, sweeping idle ones first.
func (m *Manager) Active(ctx context.Context) int {
	m.sweep(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps idle sessions on the given interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Manager) sweep(ctx context.Context) {
	now := m.now().UTC()
	var expired []Session
	m.mu.Lock()
	for id, sess := range m.sessions {
		if now.Sub(sess.LastSeen) > m.timeout {
			delete(m.sessions, id)
			expired = append(expired, sess)
		}
	}
	m.mu.Unlock()
	for _, sess := range expired {
		m.expire(ctx, sess)
	}
}

func (m *Manager) expire(ctx context.Context, sess Session) {
	m.trail.Record(rbac.ContextWithPrincipal(ctx, sess.Principal), audit.TypeSessionTimeout, map[string]any{
		"session_id": sess.ID,
	})
	if m.onExpire != nil {
		m.onExpire(sess)
	}
}
